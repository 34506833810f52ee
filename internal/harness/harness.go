package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/roach88/larder/internal/engine"
	"github.com/roach88/larder/internal/livequery"
	"github.com/roach88/larder/internal/queryir"
	"github.com/roach88/larder/internal/store"
	"github.com/roach88/larder/internal/testutil"
)

// Harness is the test execution engine.
// It runs scenarios with a deterministic clock and commit ids.
type Harness struct {
	store   *store.Store
	engine  *engine.Engine
	fetcher *testutil.StubFetcher
	query   *livequery.LiveQuery
	hub     *livequery.Hub
	logger  *slog.Logger

	mu      sync.Mutex
	updates []livequery.Update
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs against a fresh database in a temporary directory.
//
// Execution flow:
// 1. Open the store and wire engine, live query and hub
// 2. Evaluate the view once (the open event, still loading)
// 3. Execute steps, checking expect clauses
// 4. Evaluate assertions against the final state
func Run(scenario *Scenario) (*Result, error) {
	view, err := scenario.View.Build()
	if err != nil {
		return nil, fmt.Errorf("invalid view: %w", err)
	}

	dir, err := os.MkdirTemp("", "larder-harness-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario dir: %w", err)
	}
	defer os.RemoveAll(dir)

	st, err := store.Open(filepath.Join(dir, "larder.db"),
		store.WithNow(testutil.NewStepClock(time.Second).Now),
		store.WithCommitIDs(testutil.NewSequentialIDs("commit").Next),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	fetcher := testutil.NewStubFetcher()
	q, err := livequery.New(st, livequery.WithView(view))
	if err != nil {
		return nil, err
	}

	h := &Harness{
		store:   st,
		engine:  engine.New(st, fetcher, engine.WithNow(testutil.NewStepClock(time.Millisecond).Now)),
		fetcher: fetcher,
		query:   q,
		hub:     livequery.NewHub(st),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	q.Subscribe(livequery.SubscriberFunc(h.record))
	h.hub.Register(q)

	ctx := context.Background()
	result := NewResult()

	if err := h.hub.Evaluate(ctx); err != nil {
		return nil, fmt.Errorf("initial evaluation: %w", err)
	}
	result.AddTrace(h.event(0, ActionOpen))

	if err := h.executeSteps(ctx, scenario.Steps, result); err != nil {
		return nil, fmt.Errorf("failed to execute steps: %w", err)
	}

	actx := &AssertionContext{
		Store: st,
		Query: q,
		Ctx:   ctx,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// record is the live query subscriber.
func (h *Harness) record(u livequery.Update) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.updates = append(h.updates, u)
}

// lastUpdate returns the most recent update delivered to the harness.
func (h *Harness) lastUpdate() (livequery.Update, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.updates) == 0 {
		return livequery.Update{}, false
	}
	return h.updates[len(h.updates)-1], true
}

// event builds the trace event for the latest update.
func (h *Harness) event(step int, action string) TraceEvent {
	ev := TraceEvent{Step: step, Action: action, Rows: []string{}}
	u, ok := h.lastUpdate()
	if !ok {
		return ev
	}
	ev.Seq = u.Seq
	ev.Loading = u.Loading
	ev.Diff = u.Diff
	for _, r := range u.Rows {
		ev.Rows = append(ev.Rows, r.ID)
	}
	return ev
}

// executeSteps runs all steps and validates expect clauses.
func (h *Harness) executeSteps(ctx context.Context, steps []Step, result *Result) error {
	for i, step := range steps {
		n := i + 1
		var (
			outcome *SyncTrace
			syncErr *ErrorTrace
		)

		switch {
		case step.Sync != nil:
			out, err := h.sync(ctx, *step.Sync)
			if err != nil {
				kind, ok := engine.KindOf(err)
				if !ok {
					return fmt.Errorf("step %d: %w", n, err)
				}
				syncErr = &ErrorTrace{Kind: string(kind), Message: engine.UserMessage(err)}
			} else {
				outcome = &SyncTrace{
					CommitID: out.CommitID,
					Inserted: out.Inserted,
					Updated:  out.Updated,
					Dropped:  out.Dropped,
				}
			}
			if err := h.hub.Evaluate(ctx); err != nil {
				return fmt.Errorf("step %d: %w", n, err)
			}

		case step.Sort != "":
			sort, err := queryir.ParseSort(step.Sort)
			if err != nil {
				return fmt.Errorf("step %d: %w", n, err)
			}
			if _, err := h.query.SetSort(sort); err != nil {
				return fmt.Errorf("step %d: %w", n, err)
			}

		default:
			if _, err := h.query.SetSearch(*step.Search); err != nil {
				return fmt.Errorf("step %d: %w", n, err)
			}
		}

		ev := h.event(n, step.action())
		ev.Outcome = outcome
		ev.Error = syncErr
		result.AddTrace(ev)

		h.logger.Info("step completed",
			"step", n,
			"action", ev.Action,
			"seq", ev.Seq,
			"rows", len(ev.Rows),
		)

		if step.Expect != nil {
			for _, msg := range checkExpect(n, *step.Expect, ev) {
				result.AddError(msg)
			}
		}
	}
	return nil
}

// sync serves the step's response to exactly one engine cycle.
func (h *Harness) sync(ctx context.Context, step SyncStep) (engine.Outcome, error) {
	if step.Fail != "" {
		h.fetcher.Fail(errors.New(step.Fail))
	} else {
		body, err := step.body()
		if err != nil {
			return engine.Outcome{}, fmt.Errorf("encode payload: %w", err)
		}
		h.fetcher.Respond(body)
	}
	return h.engine.Sync(ctx)
}

// checkExpect compares one step's trace event against its expect clause.
func checkExpect(step int, want Expect, ev TraceEvent) []string {
	var errs []string
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf("step %d: "+format, append([]any{step}, args...)...))
	}

	if ev.Action == ActionSync {
		gotKind := ""
		if ev.Error != nil {
			gotKind = ev.Error.Kind
		}
		if gotKind != want.Error {
			fail("expected sync error %q, got %q", want.Error, gotKind)
		}
		if want.Message != "" && (ev.Error == nil || ev.Error.Message != want.Message) {
			got := ""
			if ev.Error != nil {
				got = ev.Error.Message
			}
			fail("expected message %q, got %q", want.Message, got)
		}
		if ev.Outcome != nil {
			checkCount := func(name string, want *int, got int) {
				if want != nil && *want != got {
					fail("expected %s=%d, got %d", name, *want, got)
				}
			}
			checkCount("inserted", want.Inserted, ev.Outcome.Inserted)
			checkCount("updated", want.Updated, ev.Outcome.Updated)
			checkCount("dropped", want.Dropped, ev.Outcome.Dropped)
		}
	}

	if want.Rows != nil && !slices.Equal(want.Rows, ev.Rows) {
		fail("expected rows %v, got %v", want.Rows, ev.Rows)
	}
	return errs
}
