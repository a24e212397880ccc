package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func TestMigrateNewDB(t *testing.T) {
	db := openTestDB(t)

	version, err := getSchemaVersion(db.conn)
	if err != nil {
		t.Fatalf("getSchemaVersion: %v", err)
	}
	if version != latestVersion() {
		t.Errorf("expected version %d, got %d", latestVersion(), version)
	}

	if _, err := db.RecentRuns(context.Background(), 1); err != nil {
		t.Errorf("expected refresh_runs table: %v", err)
	}
	if _, err := db.LatestSnapshot(context.Background()); err != nil {
		t.Errorf("expected state_snapshots table: %v", err)
	}
}

func TestMigrateFromVersionOne(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "v1.db")

	raw, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	raw.SetMaxOpenConns(1)
	if err := apply(raw, migrations[0]); err != nil {
		t.Fatalf("apply first migration: %v", err)
	}
	_, err = raw.Exec(`INSERT INTO geocode_cache (key, name, country, lon, lat, verified, seq)
		VALUES ('k', 'Tehran', 'Iran', 51.389, 35.6892, 1, 0)`)
	if err != nil {
		t.Fatalf("insert cache row: %v", err)
	}
	raw.Close()

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	version, err := getSchemaVersion(db.conn)
	if err != nil {
		t.Fatalf("getSchemaVersion: %v", err)
	}
	if version != latestVersion() {
		t.Errorf("expected version %d after migration, got %d", latestVersion(), version)
	}

	entries, err := db.LoadGeocodeCache(context.Background())
	if err != nil {
		t.Fatalf("LoadGeocodeCache: %v", err)
	}
	if len(entries) != 1 || entries[0].Result.Location.Name != "Tehran" {
		t.Errorf("expected cache row to survive migration, got %+v", entries)
	}
}

func TestMigrateIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "idem.db")

	db1, err := Open(dbPath)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	db1.Close()

	db2, err := Open(dbPath)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer db2.Close()

	version, err := getSchemaVersion(db2.conn)
	if err != nil {
		t.Fatalf("getSchemaVersion: %v", err)
	}
	if version != latestVersion() {
		t.Errorf("expected version %d, got %d", latestVersion(), version)
	}
}

func TestOpenRejectsNewerSchema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "future.db")

	raw, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	if _, err := raw.Exec(fmt.Sprintf("PRAGMA user_version = %d", latestVersion()+1)); err != nil {
		t.Fatalf("stamp version: %v", err)
	}
	raw.Close()

	db, err := Open(dbPath)
	if err == nil {
		db.Close()
		t.Fatal("expected Open to fail on a newer schema")
	}
	if !errors.Is(err, ErrSchemaTooNew) {
		t.Errorf("expected ErrSchemaTooNew, got %v", err)
	}

	raw, err = sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("reopen raw db: %v", err)
	}
	defer raw.Close()
	var tables int
	if err := raw.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table'").Scan(&tables); err != nil {
		t.Fatalf("count tables: %v", err)
	}
	if tables != 0 {
		t.Errorf("expected newer database left untouched, found %d tables", tables)
	}
}

func TestPendingMigrations(t *testing.T) {
	if got := len(pending(0)); got != len(migrations) {
		t.Errorf("expected %d pending on a new db, got %d", len(migrations), got)
	}
	if got := pending(1); len(got) != len(migrations)-1 || got[0].Version != 2 {
		t.Errorf("expected migrations from version 2, got %+v", got)
	}
	if got := pending(latestVersion()); len(got) != 0 {
		t.Errorf("expected nothing pending at latest, got %d", len(got))
	}
}
