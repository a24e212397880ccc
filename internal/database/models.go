package database

import "time"

// RefreshRun is one entry of the refresh log.
type RefreshRun struct {
	ID         string
	Scope      string
	StartedAt  time.Time
	FinishedAt *time.Time
	Fetched    int
	Added      int
	Moves      int
	Stale      bool
	Error      *string
}

// SnapshotInfo describes a stored state snapshot without its payload.
type SnapshotInfo struct {
	ID        int64
	NewsCount int
	UnitCount int
	TakenAt   string
}

// Stats holds database statistics.
type Stats struct {
	CachedLocations   int
	VerifiedLocations int
	Snapshots         int
	RefreshRuns       int
	FailedRuns        int
}
