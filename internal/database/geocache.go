package database

import (
	"context"
	"fmt"

	"github.com/jacob-sheng/iran-situation-room/internal/geocode"
	"github.com/jacob-sheng/iran-situation-room/internal/intel"
)

// LoadGeocodeCache returns the persisted cache entries, oldest first.
func (db *DB) LoadGeocodeCache(ctx context.Context) ([]geocode.Entry, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT key, name, country, lon, lat, verified FROM geocode_cache ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []geocode.Entry
	for rows.Next() {
		var e geocode.Entry
		var country *string
		var lon, lat float64
		if err := rows.Scan(&e.Key, &e.Result.Location.Name, &country, &lon, &lat, &e.Result.Verified); err != nil {
			return nil, err
		}
		if country != nil {
			e.Result.Location.Country = *country
		}
		e.Result.Location.Coordinates = intel.Coordinates{lon, lat}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SaveGeocodeCache replaces the persisted cache with entries, which are
// expected oldest first.
func (db *DB) SaveGeocodeCache(ctx context.Context, entries []geocode.Entry) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cache save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM geocode_cache"); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO geocode_cache (key, name, country, lon, lat, verified, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, e := range entries {
		loc := e.Result.Location
		var country *string
		if loc.Country != "" {
			country = &loc.Country
		}
		if _, err := stmt.ExecContext(ctx, e.Key, loc.Name, country,
			loc.Coordinates.Lon(), loc.Coordinates.Lat(), e.Result.Verified, i); err != nil {
			return fmt.Errorf("saving cache entry %q: %w", e.Key, err)
		}
	}
	return tx.Commit()
}
