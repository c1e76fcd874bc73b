package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/lucasjlepore/ttbin-analyzer/internal/ttbintest"
	"github.com/lucasjlepore/ttbin-analyzer/ttbin"
)

const testStart = 1714546800

func decodeRun(t *testing.T, segments ...ttbintest.Segment) *ttbin.Activity {
	t.Helper()
	res, err := ttbin.Decode(ttbintest.IntervalRun(testStart, segments), ttbin.Options{})
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	return res.Activity
}

func openStore(t *testing.T, path string) *Store {
	t.Helper()
	s, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveIsIdempotentOnSourceHash(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, filepath.Join(t.TempDir(), "library.db"))
	act := decodeRun(t,
		ttbintest.Segment{Seconds: 30, SpeedMps: 3, HeartRate: 140},
		ttbintest.Segment{Seconds: 20, SpeedMps: 4, HeartRate: 165},
	)

	id, created, err := s.Save(ctx, act, Source{Name: "a.ttbin", SHA256: "abc"})
	if err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if !created || id == "" {
		t.Fatalf("expected new activity, got id=%q created=%v", id, created)
	}

	again, created, err := s.Save(ctx, act, Source{Name: "copy.ttbin", SHA256: "abc"})
	if err != nil {
		t.Fatalf("second Save error: %v", err)
	}
	if created || again != id {
		t.Fatalf("expected existing id %q, got %q (created=%v)", id, again, created)
	}

	found, err := s.FindBySHA(ctx, "abc")
	if err != nil || found != id {
		t.Fatalf("FindBySHA = %q, %v", found, err)
	}

	list, err := s.List(ctx, 0)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 activity, got %d", len(list))
	}
	if list[0].SourceName != "a.ttbin" || list[0].Sport != "Running" {
		t.Fatalf("unexpected listed activity: %+v", list[0])
	}
}

func TestGetReturnsLaps(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, filepath.Join(t.TempDir(), "library.db"))
	act := decodeRun(t,
		ttbintest.Segment{Seconds: 30, SpeedMps: 3, HeartRate: 140},
		ttbintest.Segment{Seconds: 20, SpeedMps: 4, HeartRate: 165},
	)
	id, _, err := s.Save(ctx, act, Source{SHA256: "def"})
	if err != nil {
		t.Fatalf("Save error: %v", err)
	}

	rec, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if rec.LapCount != 2 || len(rec.Laps) != 2 {
		t.Fatalf("expected 2 laps, got %d / %d", rec.LapCount, len(rec.Laps))
	}
	if rec.PointCount != 31+21 {
		t.Fatalf("expected 52 points, got %d", rec.PointCount)
	}
	if rec.Laps[0].PointCount != 31 || rec.Laps[0].DurationSeconds != 30 {
		t.Fatalf("unexpected first lap: %+v", rec.Laps[0])
	}
	if !rec.StartTime.Equal(act.Date) {
		t.Fatalf("start time mismatch: %v vs %v", rec.StartTime, act.Date)
	}
}

func TestLoadActivityRestoresPoints(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, filepath.Join(t.TempDir(), "library.db"))
	act := decodeRun(t,
		ttbintest.Segment{Seconds: 10, SpeedMps: 3, HeartRate: 140},
		ttbintest.Segment{Seconds: 10, SpeedMps: 4.5, HeartRate: 170},
	)
	id, _, err := s.Save(ctx, act, Source{SHA256: "ghi"})
	if err != nil {
		t.Fatalf("Save error: %v", err)
	}

	loaded, err := s.LoadActivity(ctx, id)
	if err != nil {
		t.Fatalf("LoadActivity error: %v", err)
	}
	if loaded.Sport != act.Sport {
		t.Fatalf("sport mismatch: %v vs %v", loaded.Sport, act.Sport)
	}
	if diff := cmp.Diff(act.Points(), loaded.Points()); diff != "" {
		t.Fatalf("points mismatch (-want +got):\n%s", diff)
	}
	if loaded.TotalDistance() != act.TotalDistance() {
		t.Fatalf("distance mismatch: %v vs %v", loaded.TotalDistance(), act.TotalDistance())
	}
}

func TestMissingActivity(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, filepath.Join(t.TempDir(), "library.db"))

	if _, err := s.Get(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get error = %v, want ErrNotFound", err)
	}
	if _, err := s.FindBySHA(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FindBySHA error = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Delete error = %v, want ErrNotFound", err)
	}
}

func TestDeleteCascades(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, filepath.Join(t.TempDir(), "library.db"))
	act := decodeRun(t, ttbintest.Segment{Seconds: 5, SpeedMps: 3, HeartRate: 140})
	id, _, err := s.Save(ctx, act, Source{SHA256: "jkl"})
	if err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if err := s.Delete(ctx, id); err != nil {
		t.Fatalf("Delete error: %v", err)
	}

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM points WHERE activity_id = ?`, id).Scan(&n); err != nil {
		t.Fatalf("count points: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected points to be deleted, %d remain", n)
	}
}

func TestReopenKeepsSchema(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "library.db")

	first, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	act := decodeRun(t, ttbintest.Segment{Seconds: 5, SpeedMps: 3, HeartRate: 140})
	if _, _, err := first.Save(ctx, act, Source{SHA256: "mno"}); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	first.Close()

	second := openStore(t, path)
	applied, err := second.appliedMigrations(ctx)
	if err != nil {
		t.Fatalf("appliedMigrations error: %v", err)
	}
	if len(applied) != len(migrations) {
		t.Fatalf("expected %d migrations, got %d", len(migrations), len(applied))
	}
	list, err := second.List(ctx, 10)
	if err != nil || len(list) != 1 {
		t.Fatalf("List = %d, %v", len(list), err)
	}
}
