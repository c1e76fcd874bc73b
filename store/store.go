// Package store keeps decoded activities in a SQLite library keyed by the
// SHA-256 of the source file.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/coreos/pkg/capnslog"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/lucasjlepore/ttbin-analyzer/ttbin"
)

var plog = capnslog.NewPackageLogger("github.com/lucasjlepore/ttbin-analyzer", "store")

// DefaultPath is used when neither a flag nor TTBIN_DB_PATH names a database.
const DefaultPath = "./data/ttbin/library.db"

// ErrNotFound is returned when an activity id is not in the library.
var ErrNotFound = errors.New("store: activity not found")

// PathFromEnv returns TTBIN_DB_PATH, or DefaultPath when it is unset.
func PathFromEnv() string {
	if v := os.Getenv("TTBIN_DB_PATH"); v != "" {
		return v
	}
	return DefaultPath
}

// Store is a SQLite backed activity library.
type Store struct {
	db *sql.DB
}

// Source identifies the file an activity was decoded from.
type Source struct {
	Name   string
	SHA256 string
}

// ActivityRecord is the stored summary of one activity.
type ActivityRecord struct {
	ID              string      `json:"id"`
	SourceSHA256    string      `json:"source_sha256"`
	SourceName      string      `json:"source_name,omitempty"`
	Sport           string      `json:"sport"`
	StartTime       time.Time   `json:"start_time"`
	ImportedAt      time.Time   `json:"imported_at"`
	DurationSeconds float64     `json:"duration_s"`
	DistanceMeters  float64     `json:"distance_m"`
	Calories        int         `json:"calories"`
	LapCount        int         `json:"lap_count"`
	PointCount      int         `json:"point_count"`
	Laps            []LapRecord `json:"laps,omitempty"`
}

// LapRecord is the stored summary of one lap.
type LapRecord struct {
	Index           int       `json:"index"`
	StartTime       time.Time `json:"start_time"`
	DurationSeconds float64   `json:"duration_s"`
	DistanceMeters  float64   `json:"distance_m"`
	Calories        int       `json:"calories"`
	PointCount      int       `json:"point_count"`
}

// Open opens or creates the library at path and applies pending migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	plog.Debugf("opened library %s", path)
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) transaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction error: %v, rollback error: %w", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Save stores the activity and returns its id. Saving a source whose
// SHA-256 is already in the library returns the existing id and reports
// created=false.
func (s *Store) Save(ctx context.Context, act *ttbin.Activity, src Source) (id string, created bool, err error) {
	if act == nil {
		return "", false, fmt.Errorf("activity is required")
	}
	if src.SHA256 == "" {
		return "", false, fmt.Errorf("source sha256 is required")
	}
	if existing, ok, err := s.lookupSHA(ctx, src.SHA256); err != nil {
		return "", false, err
	} else if ok {
		plog.Debugf("source %s already stored as %s", src.SHA256, existing)
		return existing, false, nil
	}

	id = uuid.NewString()
	points := act.Points()
	err = s.transaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO activities (id, source_sha256, source_name, sport, start_time, imported_at,
				duration_s, distance_m, calories, lap_count, point_count)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, src.SHA256, src.Name, act.Sport.String(), formatTime(act.Date),
			formatTime(time.Now()), act.TotalSeconds(), act.TotalDistance(), act.TotalCalories(),
			len(act.Laps), len(points),
		)
		if err != nil {
			return fmt.Errorf("insert activity: %w", err)
		}

		lapStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO laps (activity_id, lap_index, start_time, total_s, distance_m, calories, point_count)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare lap insert: %w", err)
		}
		defer lapStmt.Close()

		pointStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO points (activity_id, seq, lap_index, ts_unix, latitude, longitude, speed_mps,
				calories, cumulative_distance, incremental_distance, cadence, heart_rate)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare point insert: %w", err)
		}
		defer pointStmt.Close()

		seq := 0
		for i, lap := range act.Laps {
			if _, err := lapStmt.ExecContext(ctx, id, i, formatTime(lap.StartTime()),
				lap.TotalSeconds, lap.Length, lap.Calories, len(lap.Points)); err != nil {
				return fmt.Errorf("insert lap %d: %w", i, err)
			}
			for _, p := range lap.Points {
				if _, err := pointStmt.ExecContext(ctx, id, seq, i, p.Time.Unix(), p.Latitude, p.Longitude,
					p.Speed, p.Calories, p.CumulativeDistance, p.IncrementalDistance, p.Cadence, p.HeartRate); err != nil {
					return fmt.Errorf("insert point %d: %w", seq, err)
				}
				seq++
			}
		}
		return nil
	})
	if err != nil {
		return "", false, err
	}
	plog.Infof("stored %s activity %s (%d laps, %d points)", act.Sport, id, len(act.Laps), len(points))
	return id, true, nil
}

// FindBySHA returns the id of the activity imported from the given source hash.
func (s *Store) FindBySHA(ctx context.Context, sha string) (string, error) {
	id, ok, err := s.lookupSHA(ctx, sha)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrNotFound
	}
	return id, nil
}

func (s *Store) lookupSHA(ctx context.Context, sha string) (string, bool, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM activities WHERE source_sha256 = ?`, sha).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup source: %w", err)
	}
	return id, true, nil
}

const activityColumns = `id, source_sha256, source_name, sport, start_time, imported_at,
	duration_s, distance_m, calories, lap_count, point_count`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanActivity(row rowScanner) (ActivityRecord, error) {
	var (
		rec               ActivityRecord
		start, importedAt string
	)
	if err := row.Scan(&rec.ID, &rec.SourceSHA256, &rec.SourceName, &rec.Sport, &start, &importedAt,
		&rec.DurationSeconds, &rec.DistanceMeters, &rec.Calories, &rec.LapCount, &rec.PointCount); err != nil {
		return ActivityRecord{}, err
	}
	rec.StartTime = parseTime(start)
	rec.ImportedAt = parseTime(importedAt)
	return rec, nil
}

// Get returns the activity summary with its laps.
func (s *Store) Get(ctx context.Context, id string) (*ActivityRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+activityColumns+` FROM activities WHERE id = ?`, id)
	rec, err := scanActivity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get activity %s: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT lap_index, start_time, total_s, distance_m, calories, point_count
		FROM laps WHERE activity_id = ? ORDER BY lap_index`, id)
	if err != nil {
		return nil, fmt.Errorf("query laps: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			lap   LapRecord
			start string
		)
		if err := rows.Scan(&lap.Index, &start, &lap.DurationSeconds, &lap.DistanceMeters, &lap.Calories, &lap.PointCount); err != nil {
			return nil, fmt.Errorf("scan lap: %w", err)
		}
		lap.StartTime = parseTime(start)
		rec.Laps = append(rec.Laps, lap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate laps: %w", err)
	}
	return &rec, nil
}

// List returns up to limit activities, most recent start first. A
// non-positive limit lists everything.
func (s *Store) List(ctx context.Context, limit int) ([]ActivityRecord, error) {
	query := `SELECT ` + activityColumns + ` FROM activities ORDER BY start_time DESC, imported_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	var out []ActivityRecord
	for rows.Next() {
		rec, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// LoadActivity rebuilds the stored activity with its laps and track points,
// ready to be analyzed again.
func (s *Store) LoadActivity(ctx context.Context, id string) (*ttbin.Activity, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	act := ttbin.NewActivity()
	act.Date = rec.StartTime
	if sport, err := ttbin.ParseSport(rec.Sport); err == nil {
		act.Sport = sport
	}
	for range rec.Laps {
		act.Laps = append(act.Laps, &ttbin.Lap{})
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT lap_index, ts_unix, latitude, longitude, speed_mps, calories,
			cumulative_distance, incremental_distance, cadence, heart_rate
		FROM points WHERE activity_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("query points: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			lapIndex int
			ts       int64
			p        ttbin.TrackPoint
		)
		if err := rows.Scan(&lapIndex, &ts, &p.Latitude, &p.Longitude, &p.Speed, &p.Calories,
			&p.CumulativeDistance, &p.IncrementalDistance, &p.Cadence, &p.HeartRate); err != nil {
			return nil, fmt.Errorf("scan point: %w", err)
		}
		if lapIndex < 0 || lapIndex >= len(act.Laps) {
			return nil, fmt.Errorf("point references lap %d of %d", lapIndex, len(act.Laps))
		}
		p.Time = time.Unix(ts, 0).In(rec.StartTime.Location())
		act.Laps[lapIndex].Points = append(act.Laps[lapIndex].Points, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate points: %w", err)
	}
	for _, lap := range act.Laps {
		lap.CalcTotals()
	}
	return act, nil
}

// Delete removes an activity with its laps and points.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM activities WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete activity %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete activity %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		plog.Warningf("stored time %q is not RFC3339: %v", s, err)
		return time.Time{}
	}
	return t
}
