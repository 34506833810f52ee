package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/larder/internal/testutil"
)

// createTestStore creates a new file-backed store in a temp dir with a
// stepping clock and sequential commit ids.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path,
		WithNow(testutil.NewStepClock(time.Second).Now),
		WithCommitIDs(testutil.NewSequentialIDs("").Next),
	)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// mustUpsert applies records and fails the test on error.
func mustUpsert(t *testing.T, s *Store, records ...testutil.Record) CommitResult {
	t.Helper()
	res, err := s.Upsert(context.Background(), testutil.Raws(records...))
	require.NoError(t, err)
	return res
}

// mustSnapshot reads a snapshot and fails the test on error.
func mustSnapshot(t *testing.T, s *Store) Snapshot {
	t.Helper()
	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	return snap
}

// recvEvent waits for one event or fails after a second.
func recvEvent(t *testing.T, sub *Subscription) CommitEvent {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "subscription closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for commit event")
		return CommitEvent{}
	}
}
