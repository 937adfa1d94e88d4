package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryConfig controls a bounded retry loop.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts including the first.
	// A value of 1 means no retries. Default: 3.
	MaxAttempts int

	// InitialBackoff, MaxBackoff, Multiplier and JitterFraction describe the
	// default exponential schedule. Ignored when Backoff is set.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	JitterFraction float64

	// Backoff returns the delay before retry number n (1-based). Overrides
	// the exponential schedule.
	Backoff func(n int) time.Duration

	// Wait blocks for d or until ctx is done. Defaults to a timer; tests
	// inject a recorder.
	Wait func(ctx context.Context, d time.Duration) error

	// ShouldRetry decides whether an error is worth another attempt.
	// If nil, IsTransient is used.
	ShouldRetry func(err error) bool

	// OnRetry is called before each wait with the retry number, the delay
	// about to be waited and the error that caused it.
	OnRetry func(n int, delay time.Duration, err error)
}

// DefaultRetryConfig returns an exponential schedule suitable for HTTP calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.25,
	}
}

// LinearBackoff waits step, 2*step, 3*step and so on.
func LinearBackoff(step time.Duration) func(int) time.Duration {
	return func(n int) time.Duration {
		return step * time.Duration(n)
	}
}

// Do runs fn until it succeeds, returns a non-retryable error, or the
// attempt budget is spent. A spent budget yields an *ExhaustedError.
// Context cancellation stops the loop and returns the last error.
func Do(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal is Do for functions that return a value.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = applyDefaults(cfg)

	var zero T
	for attempt := 1; ; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		if ctx.Err() != nil || !cfg.ShouldRetry(err) {
			return zero, err
		}
		if attempt >= cfg.MaxAttempts {
			return zero, &ExhaustedError{Attempts: attempt, Err: err}
		}

		delay := cfg.Backoff(attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, delay, err)
		}
		if werr := cfg.Wait(ctx, delay); werr != nil {
			return zero, err
		}
	}
}

func applyDefaults(cfg RetryConfig) RetryConfig {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2.0
	}
	if cfg.JitterFraction < 0 {
		cfg.JitterFraction = 0
	}
	if cfg.ShouldRetry == nil {
		cfg.ShouldRetry = IsTransient
	}
	if cfg.Wait == nil {
		cfg.Wait = Sleep
	}
	if cfg.Backoff == nil {
		exp := cfg
		cfg.Backoff = func(n int) time.Duration { return computeBackoff(n, exp) }
	}
	return cfg
}

// computeBackoff returns the exponential delay before retry n (1-based).
func computeBackoff(n int, cfg RetryConfig) time.Duration {
	delay := float64(cfg.InitialBackoff) * math.Pow(cfg.Multiplier, float64(n-1))
	if delay > float64(cfg.MaxBackoff) {
		delay = float64(cfg.MaxBackoff)
	}

	if cfg.JitterFraction > 0 {
		jitterRange := delay * cfg.JitterFraction
		delay += (rand.Float64()*2 - 1) * jitterRange
	}

	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryLogger returns an OnRetry callback that logs each retry with the
// given fields attached.
func RetryLogger(operation string, fields ...zap.Field) func(int, time.Duration, error) {
	return func(n int, delay time.Duration, err error) {
		fs := make([]zap.Field, 0, len(fields)+3)
		fs = append(fs, fields...)
		fs = append(fs, zap.Int("attempt", n), zap.Duration("backoff", delay), zap.Error(err))
		zap.L().Warn("retrying "+operation, fs...)
	}
}
