package livequery

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/larder/internal/store"
)

// CommitSource is a Source that also publishes commits. *store.Store
// implements it.
type CommitSource interface {
	Source
	Subscribe() *store.Subscription
}

// Hub re-evaluates every registered LiveQuery after each store commit.
// Queries are independent, so they are evaluated in parallel against one
// shared snapshot.
type Hub struct {
	source CommitSource

	mu      sync.Mutex
	queries map[*LiveQuery]struct{}
}

// NewHub creates a hub over source. Call Run to start following commits.
func NewHub(source CommitSource) *Hub {
	return &Hub{
		source:  source,
		queries: make(map[*LiveQuery]struct{}),
	}
}

// Register adds q to the hub. The returned function removes it.
func (h *Hub) Register(q *LiveQuery) (unregister func()) {
	h.mu.Lock()
	h.queries[q] = struct{}{}
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.queries, q)
		h.mu.Unlock()
	}
}

// Len returns the number of registered queries.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.queries)
}

// Run subscribes to commits, evaluates every query once against the current
// snapshot, then re-evaluates after every commit until ctx is done or the
// store closes. ready, when non-nil, is closed once the subscription is in
// place and the initial evaluation finished.
func (h *Hub) Run(ctx context.Context, ready chan<- struct{}) error {
	sub := h.source.Subscribe()
	defer sub.Close()

	slog.Debug("livequery hub started", "queries", h.Len())

	if err := h.Evaluate(ctx); err != nil {
		return err
	}
	if ready != nil {
		close(ready)
	}

	for {
		select {
		case <-ctx.Done():
			slog.Debug("livequery hub stopped", "reason", ctx.Err())
			return ctx.Err()
		case ev, ok := <-sub.Events():
			if !ok {
				slog.Debug("livequery hub stopped", "reason", "store closed")
				return nil
			}
			// Later events are covered by the snapshot taken below.
			ev = drain(sub, ev)
			slog.Debug("livequery hub commit", "seq", ev.Seq, "affected", len(ev.Affected()))
			if err := h.Evaluate(ctx); err != nil {
				return err
			}
		}
	}
}

// Evaluate takes one snapshot and re-evaluates every registered query
// against it in parallel.
func (h *Hub) Evaluate(ctx context.Context) error {
	snap, err := h.source.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("hub evaluate: %w", err)
	}

	h.mu.Lock()
	queries := make([]*LiveQuery, 0, len(h.queries))
	for q := range h.queries {
		queries = append(queries, q)
	}
	h.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, q := range queries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			q.Reevaluate(snap)
			return nil
		})
	}
	return g.Wait()
}

// drain consumes events already queued without blocking and returns the
// newest one.
func drain(sub *store.Subscription, last store.CommitEvent) store.CommitEvent {
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return last
			}
			last = ev
		default:
			return last
		}
	}
}
