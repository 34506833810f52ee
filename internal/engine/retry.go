package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"
)

// RetryConfig controls retry behavior.
type RetryConfig struct {
	MaxAttempts int           // maximum number of attempts (default: 3)
	InitialWait time.Duration // wait before first retry (default: 500ms)
	MaxWait     time.Duration // maximum wait between retries (default: 30s)
	Multiplier  float64       // backoff multiplier (default: 2.0)
	Clock       clock.Clock   // nil means the wall clock
}

// DefaultRetryConfig returns the defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		InitialWait: 500 * time.Millisecond,
		MaxWait:     30 * time.Second,
		Multiplier:  2.0,
	}
}

// Retryable returns true if the error should trigger a retry.
// Transport, storage and busy failures are transient; a service rejection or
// a malformed payload will come back the same way and is not retried.
func Retryable(err error) bool {
	kind, ok := KindOf(err)
	if !ok {
		return false
	}
	switch kind {
	case KindTransport, KindStorageFailure, KindBusy:
		return true
	default:
		return false
	}
}

// WithRetry executes fn until it succeeds, returns a non-retryable error, or
// MaxAttempts is reached. The last error is returned unchanged. Cancelling
// ctx stops the wait between attempts and returns ctx.Err().
func WithRetry[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	var (
		zero   T
		result T
	)

	err := retry.Call(cfg.callArgs(ctx, func() error {
		out, err := fn(ctx)
		if err != nil {
			return err
		}
		result = out
		return nil
	}))
	switch {
	case err == nil:
		return result, nil
	case retry.IsRetryStopped(err):
		return zero, ctx.Err()
	case retry.IsAttemptsExceeded(err), retry.IsDurationExceeded(err):
		return zero, retry.LastError(err)
	default:
		return zero, err
	}
}

// callArgs maps cfg onto retry.CallArgs. Non-retryable errors are fatal and
// come back from retry.Call as is.
func (cfg RetryConfig) callArgs(ctx context.Context, fn func() error) retry.CallArgs {
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	delay := cfg.InitialWait
	if delay <= 0 {
		delay = DefaultRetryConfig().InitialWait
	}
	multiplier := cfg.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.WallClock
	}

	return retry.CallArgs{
		Func: fn,
		IsFatalError: func(err error) bool {
			return !Retryable(err)
		},
		NotifyFunc: func(err error, attempt int) {
			slog.Debug("sync retry scheduled", "attempt", attempt, "error", err)
		},
		Attempts: attempts,
		Delay:    delay,
		MaxDelay: cfg.MaxWait,
		BackoffFunc: func(delay time.Duration, attempt int) time.Duration {
			if attempt == 1 {
				return delay
			}
			return time.Duration(float64(delay) * multiplier)
		},
		Clock: clk,
		Stop:  ctx.Done(),
	}
}
