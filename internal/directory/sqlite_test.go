package directory

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	logx "teraboxbot/pkg/logx"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	st, err := Open(Config{
		Path:        filepath.Join(t.TempDir(), "users.db"),
		BusyTimeout: time.Second,
	}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestUpsertIsIdempotent(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		if err := st.Upsert(ctx, UserRecord{ID: 1, Username: "alice", LastActive: now}); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	stats, err := st.Stats(ctx, now)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 1 {
		t.Fatalf("total = %d, want 1 (repeat onboarding must not duplicate)", stats.Total)
	}
}

func TestUpsertAdvancesActivity(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	old := now.Add(-48 * time.Hour)
	if err := st.Upsert(ctx, UserRecord{ID: 1, Username: "alice", LastActive: old}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	stats, err := st.Stats(ctx, now)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Day != 0 {
		t.Fatalf("day = %d, want 0 before the fresh interaction", stats.Day)
	}

	if err := st.Upsert(ctx, UserRecord{ID: 1, Username: "alice", LastActive: now}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	stats, err = st.Stats(ctx, now)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Day != 1 {
		t.Fatalf("day = %d, want 1 after the fresh interaction", stats.Day)
	}
}

func TestStatsWindows(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seed := []struct {
		id  int64
		ago time.Duration
	}{
		{1, time.Hour},            // within a day
		{2, 3 * 24 * time.Hour},   // within a week
		{3, 20 * 24 * time.Hour},  // within a month
		{4, 200 * 24 * time.Hour}, // within a year
		{5, 400 * 24 * time.Hour}, // older than a year
	}
	for _, s := range seed {
		if err := st.Upsert(ctx, UserRecord{ID: s.id, LastActive: now.Add(-s.ago)}); err != nil {
			t.Fatalf("Upsert %d: %v", s.id, err)
		}
	}

	stats, err := st.Stats(ctx, now)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	want := ActivityStats{Day: 1, Week: 2, Month: 3, Year: 4, Total: 5}
	if stats != want {
		t.Fatalf("stats = %+v, want %+v", stats, want)
	}
}

func TestStatsEmptyStore(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)

	stats, err := st.Stats(context.Background(), time.Now().UTC())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats != (ActivityStats{}) {
		t.Fatalf("stats = %+v, want all-zero", stats)
	}
}

func TestRecipientIDsSnapshotOrder(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	order := []int64{42, 7, 99}
	for _, id := range order {
		if err := st.Upsert(ctx, UserRecord{ID: id, LastActive: now}); err != nil {
			t.Fatalf("Upsert %d: %v", id, err)
		}
	}

	ids, err := st.RecipientIDs(ctx)
	if err != nil {
		t.Fatalf("RecipientIDs: %v", err)
	}
	if len(ids) != len(order) {
		t.Fatalf("got %d ids, want %d", len(ids), len(order))
	}
	for i, id := range order {
		if ids[i] != id {
			t.Fatalf("ids[%d] = %d, want %d (insertion order)", i, ids[i], id)
		}
	}
}

func TestRecipientIDsEmpty(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)

	ids, err := st.RecipientIDs(context.Background())
	if err != nil {
		t.Fatalf("RecipientIDs: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("got %d ids, want 0", len(ids))
	}
}
