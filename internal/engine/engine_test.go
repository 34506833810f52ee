package engine

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/larder/internal/recipe"
	"github.com/roach88/larder/internal/remote"
	"github.com/roach88/larder/internal/store"
	"github.com/roach88/larder/internal/testutil"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "engine.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func snapshotIDs(t *testing.T, s *store.Store) []string {
	t.Helper()
	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	return snap.IDs()
}

func TestSync_Success(t *testing.T) {
	s := openStore(t)
	f := testutil.NewStubFetcher().Respond(testutil.Payload(
		testutil.Record{UUID: testutil.ID(1), Name: "Soup", Difficulty: 9},
		testutil.Record{UUID: testutil.ID(2), Name: "Pie", Difficulty: 0},
		testutil.Record{Name: "no id"},
	))
	e := New(s, f)

	out, err := e.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), out.Cycle)
	assert.Equal(t, int64(1), out.Seq)
	assert.Equal(t, 2, out.Inserted)
	assert.Equal(t, 1, out.Dropped)
	assert.Equal(t, int64(1), e.Cycles())

	a, err := s.Get(context.Background(), testutil.ID(1))
	require.NoError(t, err)
	assert.Equal(t, 5, a.Difficulty)
	b, err := s.Get(context.Background(), testutil.ID(2))
	require.NoError(t, err)
	assert.Equal(t, 1, b.Difficulty)
}

func TestSync_ServiceRejected(t *testing.T) {
	s := openStore(t)
	f := testutil.NewStubFetcher().
		Respond(testutil.Payload(testutil.R(1, "a"))).
		Respond(testutil.ErrorPayload("down"))
	e := New(s, f)

	_, err := e.Sync(context.Background())
	require.NoError(t, err)
	before := snapshotIDs(t, s)

	_, err = e.Sync(context.Background())
	require.Error(t, err)
	assert.True(t, IsServiceRejected(err))

	var se *SyncError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "down", se.Message)
	assert.Equal(t, "down", UserMessage(err))
	assert.Equal(t, before, snapshotIDs(t, s))
}

func TestSync_ServiceRejectedWithoutMessage(t *testing.T) {
	e := New(openStore(t), testutil.NewStubFetcher().Respond([]byte(`{"error":{}}`)))

	_, err := e.Sync(context.Background())
	require.Error(t, err)
	assert.True(t, IsServiceRejected(err))
	assert.Equal(t, remote.UnknownServiceError, UserMessage(err))
}

func TestSync_ServiceRejectedEmptyMessageVerbatim(t *testing.T) {
	e := New(openStore(t), testutil.NewStubFetcher().Respond(testutil.ErrorPayload("")))

	_, err := e.Sync(context.Background())
	require.Error(t, err)
	assert.True(t, IsServiceRejected(err))
	assert.Equal(t, "", UserMessage(err))
}

func TestSync_Transport(t *testing.T) {
	s := openStore(t)
	netErr := &remote.TransportError{Op: "/recipes.json", Err: errors.New("connection refused")}
	e := New(s, testutil.NewStubFetcher().Fail(netErr))

	_, err := e.Sync(context.Background())
	require.Error(t, err)
	assert.True(t, IsTransport(err))
	assert.True(t, remote.IsTransportError(err))
	assert.Empty(t, snapshotIDs(t, s))
}

func TestSync_MalformedPayload(t *testing.T) {
	tests := []string{
		`not json`,
		`{"recipes": {"uuid": "x"}}`,
		`{"recipes": [1, 2]}`,
		`{}`,
	}
	for _, body := range tests {
		t.Run(body, func(t *testing.T) {
			s := openStore(t)
			e := New(s, testutil.NewStubFetcher().Respond([]byte(body)))

			_, err := e.Sync(context.Background())
			require.Error(t, err)
			assert.True(t, IsMalformedPayload(err))
			assert.ErrorIs(t, err, remote.ErrMalformedPayload)

			st, err := s.Stats(context.Background())
			require.NoError(t, err)
			assert.Zero(t, st.Commits)
		})
	}
}

// failingStore rejects every commit.
type failingStore struct{}

func (failingStore) Upsert(context.Context, []recipe.RawRecord) (store.CommitResult, error) {
	return store.CommitResult{}, &store.StorageError{Op: "commit", Err: errors.New("disk full")}
}

func TestSync_StorageFailure(t *testing.T) {
	e := New(failingStore{}, testutil.NewStubFetcher().Respond(testutil.Payload(testutil.R(1, "a"))))

	_, err := e.Sync(context.Background())
	require.Error(t, err)
	assert.True(t, IsStorageFailure(err))
	assert.True(t, store.IsStorageError(err))
	assert.False(t, IsServiceRejected(err))
}

func TestSync_EmptyBatchEndsLoading(t *testing.T) {
	s := openStore(t)
	e := New(s, testutil.NewStubFetcher().Respond(testutil.Payload()))

	out, err := e.Sync(context.Background())
	require.NoError(t, err)
	assert.Zero(t, out.Inserted)

	synced, err := s.HasSynced(context.Background())
	require.NoError(t, err)
	assert.True(t, synced)
}

func TestSync_TimeoutBoundsFetch(t *testing.T) {
	f := testutil.NewStubFetcher().Respond(testutil.Payload())
	release := f.Gate()
	defer release()

	e := New(openStore(t), f, WithTimeout(20*time.Millisecond))

	_, err := e.Sync(context.Background())
	require.Error(t, err)
	assert.True(t, IsTransport(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSync_ConcurrentDisjointBatchesBothLand(t *testing.T) {
	s := openStore(t)
	f := testutil.NewStubFetcher().
		Respond(testutil.Payload(testutil.R(1, "a"))).
		Respond(testutil.Payload(testutil.R(2, "b")))
	e := New(s, f)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = e.Sync(context.Background())
		}()
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.ElementsMatch(t, []string{testutil.ID(1), testutil.ID(2)}, snapshotIDs(t, s))
}

func TestSync_RejectConcurrent(t *testing.T) {
	s := openStore(t)
	f := testutil.NewStubFetcher().Respond(testutil.Payload(testutil.R(1, "a")))
	release := f.Gate()
	e := New(s, f, WithRejectConcurrent())

	first := make(chan error, 1)
	go func() {
		_, err := e.Sync(context.Background())
		first <- err
	}()
	<-f.Started()

	_, err := e.Sync(context.Background())
	require.Error(t, err)
	assert.True(t, IsBusy(err))

	release()
	require.NoError(t, <-first)
	assert.Equal(t, 1, f.Calls())
}

func TestSync_WaitingCallerHonorsContext(t *testing.T) {
	f := testutil.NewStubFetcher().Respond(testutil.Payload())
	release := f.Gate()
	e := New(openStore(t), f)

	first := make(chan error, 1)
	go func() {
		_, err := e.Sync(context.Background())
		first <- err
	}()
	<-f.Started()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := e.Sync(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	require.NoError(t, <-first)
}

func TestSyncWithHTTPClient(t *testing.T) {
	srv := newRecipeServer(t, string(testutil.Payload(testutil.R(1, "Borscht"))))
	s := openStore(t)
	e := New(s, remote.NewClient(remote.Config{BaseURL: srv.URL}))

	out, err := e.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, out.Inserted)
	assert.Equal(t, []string{testutil.ID(1)}, snapshotIDs(t, s))
}

func TestSyncErrorMessage(t *testing.T) {
	assert.Equal(t, "sync busy", (&SyncError{Kind: KindBusy}).Error())
	assert.Equal(t, "sync service_rejected: down", (&SyncError{Kind: KindServiceRejected, Message: "down"}).Error())

	wrapped := newSyncError(KindTransport, errors.New("refused"))
	assert.Equal(t, "sync transport: refused", wrapped.Error())

	_, ok := KindOf(errors.New("plain"))
	assert.False(t, ok)
}
