package engine

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Defaults for Scheduler.
const (
	DefaultInterval     = 5 * time.Minute
	DefaultTriggerEvery = 2 * time.Second
	DefaultTriggerBurst = 1
)

// Syncer runs one sync cycle. Implemented by *Engine.
type Syncer interface {
	Sync(ctx context.Context) (Outcome, error)
}

// Reason says what started a scheduled cycle.
type Reason string

const (
	ReasonStart    Reason = "start"
	ReasonInterval Reason = "interval"
	ReasonTrigger  Reason = "trigger"
)

// Result is reported after every scheduled cycle (including its retries).
type Result struct {
	Reason  Reason
	Outcome Outcome
	Err     error
}

// Scheduler runs cycles on a fixed interval and on demand.
//
// Manual triggers are throttled by a token bucket so a burst of refresh
// requests collapses into a bounded number of cycles. Failed cycles are
// retried according to the retry config.
type Scheduler struct {
	syncer   Syncer
	interval time.Duration
	retry    RetryConfig
	limiter  *rate.Limiter
	trigger  chan struct{}
	onResult func(Result)
	runFirst bool
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithInterval sets the periodic interval. Zero disables periodic cycles.
func WithInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		s.interval = d
	}
}

// WithRetryConfig sets the retry policy for scheduled cycles.
func WithRetryConfig(cfg RetryConfig) SchedulerOption {
	return func(s *Scheduler) {
		s.retry = cfg
	}
}

// WithTriggerLimit allows one manual trigger every `every`, with the given
// burst.
func WithTriggerLimit(every time.Duration, burst int) SchedulerOption {
	return func(s *Scheduler) {
		s.limiter = rate.NewLimiter(rate.Every(every), burst)
	}
}

// WithResultHandler is called after every scheduled cycle, from the Run
// goroutine.
func WithResultHandler(fn func(Result)) SchedulerOption {
	return func(s *Scheduler) {
		s.onResult = fn
	}
}

// WithoutInitialSync skips the cycle Run performs on start.
func WithoutInitialSync() SchedulerOption {
	return func(s *Scheduler) {
		s.runFirst = false
	}
}

// NewScheduler creates a scheduler for syncer.
func NewScheduler(syncer Syncer, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		syncer:   syncer,
		interval: DefaultInterval,
		retry:    DefaultRetryConfig(),
		limiter:  rate.NewLimiter(rate.Every(DefaultTriggerEvery), DefaultTriggerBurst),
		trigger:  make(chan struct{}, 1),
		onResult: func(Result) {},
		runFirst: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Trigger requests a cycle as soon as possible. It returns false when the
// request was throttled or one is already pending.
//
// Safe to call from any goroutine.
func (s *Scheduler) Trigger() bool {
	if !s.limiter.Allow() {
		slog.Debug("sync trigger throttled")
		return false
	}
	select {
	case s.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Run executes cycles until ctx is done. It returns ctx.Err().
func (s *Scheduler) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if s.interval > 0 {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	slog.Debug("scheduler started", "interval", s.interval, "max_attempts", s.retry.MaxAttempts)

	if s.runFirst {
		s.runCycle(ctx, ReasonStart)
	}

	for {
		select {
		case <-ctx.Done():
			slog.Debug("scheduler stopped")
			return ctx.Err()
		case <-tick:
			s.runCycle(ctx, ReasonInterval)
		case <-s.trigger:
			s.runCycle(ctx, ReasonTrigger)
		}
	}
}

func (s *Scheduler) runCycle(ctx context.Context, reason Reason) {
	if ctx.Err() != nil {
		return
	}
	out, err := WithRetry(ctx, s.retry, s.syncer.Sync)
	if err != nil && ctx.Err() != nil {
		return
	}
	s.onResult(Result{Reason: reason, Outcome: out, Err: err})
}
