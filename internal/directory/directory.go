// Package directory is the user store behind onboarding, activity stats and
// broadcast fan-out. One record per user id; writes are whole-record upserts.
package directory

import (
	"context"
	"time"
)

type UserRecord struct {
	ID         int64
	Username   string
	LastActive time.Time
}

// ActivityStats are counts of users active within trailing windows.
type ActivityStats struct {
	Day   int
	Week  int
	Month int
	Year  int
	Total int
}

type Store interface {
	// Upsert inserts or replaces the record keyed by UserRecord.ID.
	Upsert(ctx context.Context, rec UserRecord) error

	// Stats counts records with LastActive inside 1d/7d/30d/365d of now.
	Stats(ctx context.Context, now time.Time) (ActivityStats, error)

	// RecipientIDs returns a snapshot of every known user id in insertion
	// order. Broadcast jobs read it exactly once, at job start.
	RecipientIDs(ctx context.Context) ([]int64, error)

	Close() error
}
