package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/larder/internal/testutil"
)

func TestSubscribe_DeliversAfterVisibility(t *testing.T) {
	s := createTestStore(t)
	sub := s.Subscribe()
	defer sub.Close()

	mustUpsert(t, s, testutil.R(1, "a"))

	ev := recvEvent(t, sub)
	assert.Equal(t, int64(1), ev.Seq)
	assert.Equal(t, []string{testutil.ID(1)}, ev.Inserted)
	assert.Empty(t, ev.Updated)

	// The commit is visible by the time the event arrives.
	snap := mustSnapshot(t, s)
	assert.GreaterOrEqual(t, snap.Seq, ev.Seq)
	assert.Contains(t, snap.IDs(), testutil.ID(1))
}

func TestSubscribe_NoReplay(t *testing.T) {
	s := createTestStore(t)
	mustUpsert(t, s, testutil.R(1, "a"))

	sub := s.Subscribe()
	defer sub.Close()

	mustUpsert(t, s, testutil.R(1, "a2"), testutil.R(2, "b"))

	ev := recvEvent(t, sub)
	assert.Equal(t, int64(2), ev.Seq)
	assert.Equal(t, []string{testutil.ID(2)}, ev.Inserted)
	assert.Equal(t, []string{testutil.ID(1)}, ev.Updated)
	assert.Equal(t, []string{testutil.ID(2), testutil.ID(1)}, ev.Affected())
}

func TestSubscribe_OrderedAndUnbounded(t *testing.T) {
	s := createTestStore(t)
	sub := s.Subscribe()
	defer sub.Close()

	// Nobody reads while the writer commits; the writer must not block.
	for i := 1; i <= 20; i++ {
		mustUpsert(t, s, testutil.R(i, "r"))
	}

	for i := 1; i <= 20; i++ {
		ev := recvEvent(t, sub)
		assert.Equal(t, int64(i), ev.Seq)
	}
}

func TestSubscribe_MultipleSubscribers(t *testing.T) {
	s := createTestStore(t)
	a := s.Subscribe()
	b := s.Subscribe()
	defer a.Close()
	defer b.Close()

	mustUpsert(t, s, testutil.R(1, "a"))

	assert.Equal(t, int64(1), recvEvent(t, a).Seq)
	assert.Equal(t, int64(1), recvEvent(t, b).Seq)
}

func TestSubscribe_FailedCommitNotPublished(t *testing.T) {
	s := createTestStore(t)
	sub := s.Subscribe()
	defer sub.Close()

	_, err := s.DB().Exec(`
		CREATE TRIGGER fail_all BEFORE INSERT ON recipes
		BEGIN
			SELECT RAISE(ABORT, 'disk full');
		END
	`)
	require.NoError(t, err)

	_, err = s.Upsert(t.Context(), testutil.Raws(testutil.R(1, "a")))
	require.Error(t, err)

	select {
	case ev := <-sub.Events():
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscription_Close(t *testing.T) {
	s := createTestStore(t)
	sub := s.Subscribe()

	sub.Close()
	sub.Close() // idempotent

	_, ok := <-sub.Events()
	assert.False(t, ok)

	// Commits after close go nowhere and do not block.
	mustUpsert(t, s, testutil.R(1, "a"))
}

func TestStoreClose_ClosesSubscriptions(t *testing.T) {
	s := createTestStore(t)
	sub := s.Subscribe()

	require.NoError(t, s.Close())

	select {
	case _, ok := <-sub.Events():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription not closed by store close")
	}
}

func TestEventQueue(t *testing.T) {
	q := newEventQueue()
	assert.True(t, q.Enqueue(CommitEvent{Seq: 1}))
	assert.True(t, q.Enqueue(CommitEvent{Seq: 2}))
	assert.Equal(t, 2, q.Len())

	ev, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, int64(1), ev.Seq)

	q.Close()
	assert.False(t, q.Enqueue(CommitEvent{Seq: 3}))

	ev, ok = q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, int64(2), ev.Seq)

	_, ok = q.TryDequeue()
	assert.False(t, ok)

	// Closed signal channel never blocks.
	<-q.Wait()
}
