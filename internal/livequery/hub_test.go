package livequery

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/larder/internal/queryir"
	"github.com/roach88/larder/internal/store"
	"github.com/roach88/larder/internal/testutil"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "hub.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// updates collects Updates on a channel.
func updates(q *LiveQuery) <-chan Update {
	ch := make(chan Update, 64)
	q.Subscribe(SubscriberFunc(func(u Update) { ch <- u }))
	return ch
}

func waitFor(t *testing.T, ch <-chan Update, pred func(Update) bool) Update {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case u := <-ch:
			if pred(u) {
				return u
			}
		case <-deadline:
			t.Fatal("timed out waiting for update")
			return Update{}
		}
	}
}

func TestHub_ReevaluatesAllQueriesOnCommit(t *testing.T) {
	s := openStore(t)
	hub := NewHub(s)

	byName, err := New(s)
	require.NoError(t, err)
	soups, err := New(s, WithView(queryir.DefaultView().WithFilter(queryir.Search("soup"))))
	require.NoError(t, err)

	hub.Register(byName)
	unregister := hub.Register(soups)
	assert.Equal(t, 2, hub.Len())

	nameCh := updates(byName)
	soupCh := updates(soups)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- hub.Run(ctx, ready) }()
	<-ready

	// Initial evaluation against an empty store reports loading.
	u := waitFor(t, nameCh, func(u Update) bool { return true })
	assert.True(t, u.Loading)

	_, err = s.Upsert(context.Background(), testutil.Raws(
		testutil.R(1, "Soup"),
		testutil.R(2, "Piecrust"),
	))
	require.NoError(t, err)

	u = waitFor(t, nameCh, func(u Update) bool { return u.Seq == 1 })
	assert.False(t, u.Loading)
	assert.Equal(t, []string{testutil.ID(2), testutil.ID(1)}, u.Diff.Inserted)

	u = waitFor(t, soupCh, func(u Update) bool { return u.Seq == 1 })
	assert.Equal(t, []string{testutil.ID(1)}, u.Diff.Inserted)

	unregister()
	assert.Equal(t, 1, hub.Len())

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestHub_StopsWhenStoreCloses(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "hub.db"))
	require.NoError(t, err)

	hub := NewHub(s)
	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- hub.Run(context.Background(), ready) }()
	<-ready

	require.NoError(t, s.Close())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop after store close")
	}
}
