package ttbin

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func pointAt(base time.Time, sec int, cumulative float64, calories int) *TrackPoint {
	tp := NewTrackPoint()
	tp.Time = base.Add(time.Duration(sec) * time.Second)
	tp.CumulativeDistance = cumulative
	tp.Calories = calories
	return tp
}

func TestLapCalcTotals(t *testing.T) {
	base := time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC)
	lap := &Lap{Points: []*TrackPoint{
		pointAt(base, 0, 1000, 50),
		pointAt(base, 120, 1300, 62),
		pointAt(base, 300, 1850, 80),
	}}
	lap.CalcTotals()

	type totals struct {
		Seconds  float64
		Length   float64
		Calories int
	}
	got := totals{lap.TotalSeconds, lap.Length, lap.Calories}
	want := totals{300, 850, 30}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("lap totals mismatch (-want +got):\n%s", diff)
	}

	lap.CalcTotals()
	if lap.Length != 850 {
		t.Fatalf("CalcTotals is not idempotent: %v", lap.Length)
	}
}

func TestLapCalcTotalsEmptyAndDecreasingCalories(t *testing.T) {
	empty := &Lap{TotalSeconds: 5, Length: 5, Calories: 5}
	empty.CalcTotals()
	if empty.TotalSeconds != 0 || empty.Length != 0 || empty.Calories != 0 {
		t.Fatalf("expected zero totals for an empty lap, got %+v", empty)
	}

	base := time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC)
	lap := &Lap{Points: []*TrackPoint{pointAt(base, 0, 0, 40), pointAt(base, 10, 0, 30)}}
	lap.CalcTotals()
	if lap.Calories != 0 {
		t.Fatalf("expected calories clamped at 0, got %d", lap.Calories)
	}
}

func TestActivityAggregates(t *testing.T) {
	base := time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC)
	act := NewActivity()
	act.Date = base
	act.currentLap().Points = append(act.currentLap().Points, pointAt(base, 0, 0, 0), pointAt(base, 60, 200, 10))
	act.startLap()
	act.currentLap().Points = append(act.currentLap().Points, pointAt(base, 90, 250, 12), pointAt(base, 150, 500, 20))
	act.calcTotals()

	if len(act.Laps) != 2 {
		t.Fatalf("expected 2 laps, got %d", len(act.Laps))
	}
	if act.TotalSeconds() != 120 {
		t.Fatalf("unexpected total seconds: %v", act.TotalSeconds())
	}
	if act.TotalDistance() != 450 {
		t.Fatalf("unexpected total distance: %v", act.TotalDistance())
	}
	if act.TotalCalories() != 18 {
		t.Fatalf("unexpected total calories: %d", act.TotalCalories())
	}
	if p := act.PointAt(75 * time.Second); p == nil || !p.Time.Equal(base.Add(90*time.Second)) {
		t.Fatalf("unexpected PointAt result: %+v", p)
	}
	if p := act.PointAt(time.Hour); p != nil {
		t.Fatalf("expected no point past the end, got %+v", p)
	}
	if n := len(act.Points()); n != 4 {
		t.Fatalf("expected 4 points, got %d", n)
	}
}

func TestParseSport(t *testing.T) {
	if s, err := ParseSport("Biking"); err != nil || s != SportBiking {
		t.Fatalf("ParseSport(Biking) = %v, %v", s, err)
	}
	if _, err := ParseSport("Rowing"); err == nil {
		t.Fatal("expected error for unknown sport")
	}
}
