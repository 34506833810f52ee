package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/roach88/larder/internal/recipe"
	"github.com/roach88/larder/internal/remote"
	"github.com/roach88/larder/internal/store"
)

// DefaultTimeout bounds one cycle's fetch.
const DefaultTimeout = 15 * time.Second

// Store is the part of the entity store a cycle writes to.
// Implemented by *store.Store.
type Store interface {
	Upsert(ctx context.Context, batch []recipe.RawRecord) (store.CommitResult, error)
}

// Outcome summarizes a successful cycle.
type Outcome struct {
	Cycle    int64         `json:"cycle"`
	Seq      int64         `json:"seq"`
	CommitID string        `json:"commit_id"`
	Inserted int           `json:"inserted"`
	Updated  int           `json:"updated"`
	Dropped  int           `json:"dropped"`
	Duration time.Duration `json:"duration"`
}

// Engine runs sync cycles against one store and one fetcher.
//
// Thread-safety model:
//   - Sync(): safe from any goroutine; cycles never interleave
//
// INVARIANTS:
//   - the store is written at most once per cycle, and only after the
//     response has been fully validated
//   - a failed cycle leaves the store exactly as it was
type Engine struct {
	store   Store
	fetcher remote.Fetcher
	clock   *Clock
	sem     chan struct{} // capacity 1: the single writer slot

	timeout          time.Duration
	rejectConcurrent bool
	now              func() time.Time
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithTimeout bounds the fetch step of each cycle.
//
// Default: 15s (DefaultTimeout). Zero or negative disables the bound; the
// caller's context still applies.
func WithTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.timeout = d
	}
}

// WithRejectConcurrent makes a Sync that finds another cycle running fail
// immediately with a busy error instead of waiting.
func WithRejectConcurrent() EngineOption {
	return func(e *Engine) {
		e.rejectConcurrent = true
	}
}

// WithNow overrides the clock used to measure cycle duration.
func WithNow(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// WithClock sets the cycle counter (useful to resume numbering).
func WithClock(c *Clock) EngineOption {
	return func(e *Engine) {
		e.clock = c
	}
}

// New creates an Engine writing to st with payloads from f.
func New(st Store, f remote.Fetcher, opts ...EngineOption) *Engine {
	e := &Engine{
		store:   st,
		fetcher: f,
		clock:   NewClock(),
		sem:     make(chan struct{}, 1),
		timeout: DefaultTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Sync runs one cycle: fetch, validate, commit.
//
// On failure the returned error is a *SyncError and the store is unchanged.
// Context cancellation while waiting for a running cycle returns ctx.Err().
func (e *Engine) Sync(ctx context.Context) (Outcome, error) {
	if err := e.acquire(ctx); err != nil {
		return Outcome{}, err
	}
	defer e.release()

	cycle := e.clock.Next()
	start := e.now()
	log := slog.With("cycle", cycle)
	log.Debug("sync started")

	out, err := e.run(ctx, cycle)
	out.Duration = e.now().Sub(start)
	if err != nil {
		kind, _ := KindOf(err)
		log.Warn("sync failed", "kind", kind, "error", err, "duration", out.Duration)
		return Outcome{}, err
	}

	log.Info("sync finished",
		"seq", out.Seq,
		"inserted", out.Inserted,
		"updated", out.Updated,
		"dropped", out.Dropped,
		"duration", out.Duration)
	return out, nil
}

// run holds the writer slot.
func (e *Engine) run(ctx context.Context, cycle int64) (Outcome, error) {
	// Step 1: fetch
	payload, err := e.fetch(ctx)
	if err != nil {
		return Outcome{}, newSyncError(KindTransport, err)
	}

	// Step 2: envelope
	env, err := remote.DecodeEnvelope(payload)
	if err != nil {
		return Outcome{}, newSyncError(KindMalformedPayload, err)
	}
	if env.Error != nil {
		return Outcome{}, &SyncError{Kind: KindServiceRejected, Message: env.Error.Message}
	}

	// Steps 3-4: parse and commit in one transaction
	res, err := e.store.Upsert(ctx, env.Recipes)
	if err != nil {
		return Outcome{}, newSyncError(KindStorageFailure, err)
	}

	return Outcome{
		Cycle:    cycle,
		Seq:      res.Seq,
		CommitID: res.CommitID,
		Inserted: res.Inserted,
		Updated:  res.Updated,
		Dropped:  res.Dropped,
	}, nil
}

func (e *Engine) fetch(ctx context.Context) (remote.Payload, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	return e.fetcher.FetchAll(ctx)
}

// acquire claims the writer slot.
func (e *Engine) acquire(ctx context.Context) error {
	if e.rejectConcurrent {
		select {
		case e.sem <- struct{}{}:
			return nil
		default:
			return &SyncError{Kind: KindBusy, Message: "a sync is already in flight"}
		}
	}

	select {
	case e.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) release() {
	<-e.sem
}

// Cycles returns how many cycles have started.
func (e *Engine) Cycles() int64 {
	return e.clock.Current()
}

// UserMessage renders err for users. Service rejections are shown verbatim.
func UserMessage(err error) string {
	var se *SyncError
	if errors.As(err, &se) && (se.Kind == KindServiceRejected || se.Message != "") {
		return se.Message
	}
	return err.Error()
}
