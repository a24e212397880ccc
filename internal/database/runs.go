package database

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// StartRun records the start of a refresh and returns the new run.
func (db *DB) StartRun(ctx context.Context, scope string, startedAt time.Time) (*RefreshRun, error) {
	run := &RefreshRun{
		ID:        uuid.NewString(),
		Scope:     scope,
		StartedAt: startedAt.UTC(),
	}
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO refresh_runs (id, scope, started_at) VALUES (?, ?, ?)`,
		run.ID, run.Scope, run.StartedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, err
	}
	return run, nil
}

// FinishRun stores the outcome of run.
func (db *DB) FinishRun(ctx context.Context, run *RefreshRun) error {
	var finished *string
	if run.FinishedAt != nil {
		s := run.FinishedAt.UTC().Format(time.RFC3339Nano)
		finished = &s
	}
	_, err := db.conn.ExecContext(ctx,
		`UPDATE refresh_runs
		SET finished_at = ?, fetched = ?, added = ?, moves = ?, stale = ?, error = ?
		WHERE id = ?`,
		finished, run.Fetched, run.Added, run.Moves, run.Stale, run.Error, run.ID,
	)
	return err
}

// RecentRuns returns up to limit runs, newest first.
func (db *DB) RecentRuns(ctx context.Context, limit int) ([]RefreshRun, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, scope, started_at, finished_at, fetched, added, moves, stale, error
		FROM refresh_runs ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RefreshRun
	for rows.Next() {
		var r RefreshRun
		var started string
		var finished *string
		if err := rows.Scan(&r.ID, &r.Scope, &started, &finished, &r.Fetched, &r.Added, &r.Moves, &r.Stale, &r.Error); err != nil {
			return nil, err
		}
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		if finished != nil {
			if t, err := time.Parse(time.RFC3339Nano, *finished); err == nil {
				r.FinishedAt = &t
			}
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
