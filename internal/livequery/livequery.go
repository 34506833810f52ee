package livequery

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/larder/internal/queryir"
	"github.com/roach88/larder/internal/recipe"
	"github.com/roach88/larder/internal/store"
)

// DefaultPlaceholderRows is how many skeleton rows a presentation layer
// should draw while the first sync is outstanding.
const DefaultPlaceholderRows = 10

// Source provides consistent snapshots. *store.Store implements it.
type Source interface {
	Snapshot(ctx context.Context) (store.Snapshot, error)
}

// Update is delivered to subscribers after every evaluation.
type Update struct {
	Diff    RowDiff
	Loading bool
	Seq     int64 // commit seq of the snapshot evaluated
	View    queryir.View

	// Rows are the rows after applying Diff. Shared between subscribers;
	// treat as read-only.
	Rows []recipe.Recipe
}

// Subscriber receives updates in evaluation order.
type Subscriber interface {
	Apply(Update)
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc func(Update)

// Apply calls f.
func (f SubscriberFunc) Apply(u Update) { f(u) }

// Dispatcher runs fn on the execution context the embedding layer designates
// (a UI loop, a channel consumer). The default runs fn inline.
type Dispatcher func(fn func())

func inline(fn func()) { fn() }

// State is the externally visible state of a LiveQuery.
type State struct {
	// Loading is true until the store has completed its first commit.
	// Rows is then empty and PlaceholderRows says how many skeleton rows
	// to draw.
	Loading         bool
	PlaceholderRows int
	Rows            []recipe.Recipe
	Seq             int64
	View            queryir.View
}

// Option configures a LiveQuery.
type Option func(*LiveQuery)

// WithView sets the initial view (default: sort by name, no filter).
func WithView(v queryir.View) Option {
	return func(q *LiveQuery) {
		q.view = v
	}
}

// WithPlaceholderRows overrides DefaultPlaceholderRows.
func WithPlaceholderRows(n int) Option {
	return func(q *LiveQuery) {
		q.placeholders = n
	}
}

// WithDispatcher sets the context subscriber callbacks run on.
func WithDispatcher(d Dispatcher) Option {
	return func(q *LiveQuery) {
		q.dispatch = d
	}
}

// LiveQuery is one standing view. All methods are safe for concurrent use.
//
// Subscribers are called in evaluation order with the state lock released,
// so they may call CurrentRows and State. With the default inline dispatcher
// they must not call SetSort, SetFilter or Reevaluate.
type LiveQuery struct {
	// emitMu serializes evaluations and is always taken before mu. It stays
	// held through delivery so updates leave in order; mu does not.
	emitMu sync.Mutex
	mu     sync.Mutex

	source       Source
	view         queryir.View
	placeholders int
	dispatch     Dispatcher

	snapshot store.Snapshot // latest snapshot evaluated
	hasSnap  bool
	rows     []recipe.Recipe // last emitted rows, in view order
	emitted  []emittedRow
	loading  bool

	subs   map[int]Subscriber
	nextID int
}

// New creates a LiveQuery over source. It starts in the loading state with
// no rows until the first Refresh or Reevaluate.
func New(source Source, opts ...Option) (*LiveQuery, error) {
	q := &LiveQuery{
		source:       source,
		view:         queryir.DefaultView(),
		placeholders: DefaultPlaceholderRows,
		dispatch:     inline,
		loading:      true,
		rows:         []recipe.Recipe{},
		emitted:      []emittedRow{},
		subs:         make(map[int]Subscriber),
	}
	for _, opt := range opts {
		opt(q)
	}
	if err := queryir.Validate(q.view); err != nil {
		return nil, fmt.Errorf("livequery: %w", err)
	}
	if q.placeholders < 0 {
		q.placeholders = 0
	}
	return q, nil
}

// Subscribe registers sub. The returned function unregisters it.
func (q *LiveQuery) Subscribe(sub Subscriber) (cancel func()) {
	q.mu.Lock()
	id := q.nextID
	q.nextID++
	q.subs[id] = sub
	q.mu.Unlock()

	return func() {
		q.mu.Lock()
		delete(q.subs, id)
		q.mu.Unlock()
	}
}

// Refresh reads a fresh snapshot from the source and re-evaluates.
func (q *LiveQuery) Refresh(ctx context.Context) (RowDiff, error) {
	snap, err := q.source.Snapshot(ctx)
	if err != nil {
		return RowDiff{}, fmt.Errorf("livequery refresh: %w", err)
	}
	return q.Reevaluate(snap), nil
}

// Reevaluate applies the view to snap and returns the diff against the
// previously emitted rows.
//
// A snapshot older than the last one evaluated is ignored and yields an
// empty diff. Before the store's first commit the query stays loading and
// the diff is empty.
func (q *LiveQuery) Reevaluate(snap store.Snapshot) RowDiff {
	q.emitMu.Lock()
	defer q.emitMu.Unlock()

	q.mu.Lock()
	if q.hasSnap && snap.Seq < q.snapshot.Seq {
		q.mu.Unlock()
		slog.Debug("livequery stale snapshot ignored", "seq", snap.Seq, "current", q.snapshot.Seq)
		return emptyDiff()
	}
	q.snapshot = snap
	q.hasSnap = true
	return q.evaluateLocked()
}

// SetSort changes the sort order and immediately re-evaluates against the
// latest snapshot.
func (q *LiveQuery) SetSort(s queryir.Sort) (RowDiff, error) {
	q.emitMu.Lock()
	defer q.emitMu.Unlock()

	q.mu.Lock()
	next := q.view.WithSort(s)
	if err := queryir.Validate(next); err != nil {
		q.mu.Unlock()
		return RowDiff{}, fmt.Errorf("set sort: %w", err)
	}
	q.view = next
	return q.evaluateLocked(), nil
}

// SetFilter changes the filter (nil = match all) and immediately
// re-evaluates against the latest snapshot.
func (q *LiveQuery) SetFilter(p queryir.Predicate) (RowDiff, error) {
	q.emitMu.Lock()
	defer q.emitMu.Unlock()

	q.mu.Lock()
	next := q.view.WithFilter(p)
	if err := queryir.Validate(next); err != nil {
		q.mu.Unlock()
		return RowDiff{}, fmt.Errorf("set filter: %w", err)
	}
	q.view = next
	return q.evaluateLocked(), nil
}

// SetSearch is SetFilter(queryir.Search(text)).
func (q *LiveQuery) SetSearch(text string) (RowDiff, error) {
	return q.SetFilter(queryir.Search(text))
}

// CurrentRows returns a copy of the rows last emitted, in view order.
// Empty while loading.
func (q *LiveQuery) CurrentRows() []recipe.Recipe {
	q.mu.Lock()
	defer q.mu.Unlock()
	return cloneRows(q.rows)
}

// State returns the current state.
func (q *LiveQuery) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()

	st := State{
		Loading: q.loading,
		Rows:    cloneRows(q.rows),
		Seq:     q.snapshot.Seq,
		View:    q.view,
	}
	if q.loading {
		st.PlaceholderRows = q.placeholders
	}
	return st
}

// View returns the current view.
func (q *LiveQuery) View() queryir.View {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.view
}

// evaluateLocked recomputes rows, swaps state, and delivers the update.
// Called with q.emitMu and q.mu held; releases q.mu before delivery.
func (q *LiveQuery) evaluateLocked() RowDiff {
	var (
		diff RowDiff
		rows []recipe.Recipe
	)

	switch {
	case !q.hasSnap || !q.snapshot.Synced():
		// Nothing to show yet. The query remains loading and emits no diff.
		q.loading = true
		diff = emptyDiff()
		rows = []recipe.Recipe{}
		q.rows = rows
		q.emitted = []emittedRow{}
	default:
		rows = Evaluate(q.snapshot.Recipes, q.view)
		next := fingerprint(rows)
		diff = diffRows(q.emitted, next)
		q.loading = false
		q.rows = rows
		q.emitted = next
	}

	update := Update{
		Diff:    diff,
		Loading: q.loading,
		Seq:     q.snapshot.Seq,
		View:    q.view,
		Rows:    cloneRows(rows),
	}
	subs := make([]Subscriber, 0, len(q.subs))
	for id := 0; id < q.nextID; id++ {
		if sub, ok := q.subs[id]; ok {
			subs = append(subs, sub)
		}
	}
	dispatch := q.dispatch
	q.mu.Unlock()

	if !diff.IsEmpty() || update.Loading {
		slog.Debug("livequery evaluated",
			"view", update.View.String(),
			"seq", update.Seq,
			"loading", update.Loading,
			"inserted", len(diff.Inserted),
			"removed", len(diff.Removed),
			"updated", len(diff.Updated),
			"moved", len(diff.Moved))
	}

	for _, sub := range subs {
		dispatch(func() { sub.Apply(update) })
	}
	return diff
}

func emptyDiff() RowDiff {
	return RowDiff{
		Inserted: []string{},
		Removed:  []string{},
		Updated:  []string{},
		Moved:    []Move{},
	}
}

func cloneRows(rows []recipe.Recipe) []recipe.Recipe {
	out := make([]recipe.Recipe, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}
