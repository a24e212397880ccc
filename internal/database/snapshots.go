package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jacob-sheng/iran-situation-room/internal/fusion"
)

// keepSnapshots is how many snapshots survive each save.
const keepSnapshots = 20

// SaveSnapshot stores s and prunes older snapshots.
func (db *DB) SaveSnapshot(ctx context.Context, s fusion.State) (int64, error) {
	payload, err := json.Marshal(s)
	if err != nil {
		return 0, fmt.Errorf("encoding snapshot: %w", err)
	}

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO state_snapshots (news_count, unit_count, payload) VALUES (?, ?, ?)`,
		len(s.News), len(s.Units), string(payload),
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if _, err := db.conn.ExecContext(ctx,
		`DELETE FROM state_snapshots WHERE id <= ?`, id-keepSnapshots,
	); err != nil {
		return id, fmt.Errorf("pruning snapshots: %w", err)
	}
	return id, nil
}

// LatestSnapshot returns the most recent state, or nil if none is stored.
func (db *DB) LatestSnapshot(ctx context.Context) (*fusion.State, error) {
	var payload string
	err := db.conn.QueryRowContext(ctx,
		`SELECT payload FROM state_snapshots ORDER BY id DESC LIMIT 1`,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var s fusion.State
	if err := json.Unmarshal([]byte(payload), &s); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return &s, nil
}

// LatestSnapshotInfo describes the most recent snapshot, or nil.
func (db *DB) LatestSnapshotInfo(ctx context.Context) (*SnapshotInfo, error) {
	var info SnapshotInfo
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, news_count, unit_count, taken_at FROM state_snapshots ORDER BY id DESC LIMIT 1`,
	).Scan(&info.ID, &info.NewsCount, &info.UnitCount, &info.TakenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &info, nil
}
