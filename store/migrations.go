package store

import (
	"context"
	"database/sql"
	"fmt"
)

type migration struct {
	version int
	name    string
	sql     string
}

var migrations = []migration{
	{
		version: 1,
		name:    "create_activity_tables",
		sql: `
			CREATE TABLE activities (
				id            TEXT PRIMARY KEY,
				source_sha256 TEXT NOT NULL UNIQUE,
				source_name   TEXT NOT NULL DEFAULT '',
				sport         TEXT NOT NULL,
				start_time    TEXT NOT NULL DEFAULT '',
				imported_at   TEXT NOT NULL,
				duration_s    REAL NOT NULL DEFAULT 0,
				distance_m    REAL NOT NULL DEFAULT 0,
				calories      INTEGER NOT NULL DEFAULT 0,
				lap_count     INTEGER NOT NULL DEFAULT 0,
				point_count   INTEGER NOT NULL DEFAULT 0
			);
			CREATE TABLE laps (
				activity_id TEXT NOT NULL REFERENCES activities(id) ON DELETE CASCADE,
				lap_index   INTEGER NOT NULL,
				start_time  TEXT NOT NULL DEFAULT '',
				total_s     REAL NOT NULL DEFAULT 0,
				distance_m  REAL NOT NULL DEFAULT 0,
				calories    INTEGER NOT NULL DEFAULT 0,
				point_count INTEGER NOT NULL DEFAULT 0,
				PRIMARY KEY (activity_id, lap_index)
			);
			CREATE TABLE points (
				activity_id          TEXT NOT NULL REFERENCES activities(id) ON DELETE CASCADE,
				seq                  INTEGER NOT NULL,
				lap_index            INTEGER NOT NULL,
				ts_unix              INTEGER NOT NULL,
				latitude             REAL NOT NULL,
				longitude            REAL NOT NULL,
				speed_mps            REAL NOT NULL,
				calories             INTEGER NOT NULL,
				cumulative_distance  REAL NOT NULL,
				incremental_distance REAL NOT NULL,
				cadence              INTEGER NOT NULL,
				heart_rate           INTEGER NOT NULL,
				PRIMARY KEY (activity_id, seq)
			);
		`,
	},
	{
		version: 2,
		name:    "index_activity_start",
		sql:     `CREATE INDEX IF NOT EXISTS idx_activities_start_time ON activities(start_time)`,
	},
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	applied, err := s.appliedMigrations(ctx)
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		err := s.transaction(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, m.sql); err != nil {
				return fmt.Errorf("apply migration %d (%s): %w", m.version, m.name, err)
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, name) VALUES (?, ?)`, m.version, m.name); err != nil {
				return fmt.Errorf("record migration %d: %w", m.version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		plog.Infof("applied migration %d: %s", m.version, m.name)
	}
	return nil
}

func (s *Store) appliedMigrations(ctx context.Context) (map[int]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT version FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("query migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}
