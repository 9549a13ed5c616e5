package upstream

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for retry operations.
var (
	upstreamRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tmdb_upstream_retries_total",
		Help: "Total number of retry attempts against TMDB",
	})

	upstreamRetryExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tmdb_upstream_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted",
	})
)

// Common errors returned by the retry loop.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during backoff.
	ErrContextCancelled = errors.New("context cancelled")
)

// retryConfig holds the configuration for retry logic.
type retryConfig struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

func defaultRetryConfig() retryConfig {
	return retryConfig{
		MaxAttempts:       3,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// retryWithBackoff executes fn with exponential backoff. fn reports whether
// its error is retryable; non-retryable errors are returned immediately.
// Backoff gets ±20% jitter to avoid synchronized retries.
func retryWithBackoff(ctx context.Context, cfg retryConfig, logger zerolog.Logger, fn func() (retryable bool, err error)) error {
	var lastErr error
	backoff := cfg.InitialBackoff

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		retryable, err := fn()
		if err == nil {
			if attempt > 1 {
				logger.Info().
					Int("attempt", attempt).
					Msg("Upstream request succeeded after retry")
			}
			return nil
		}

		lastErr = err
		if !retryable {
			return lastErr
		}

		if attempt >= cfg.MaxAttempts {
			break
		}

		upstreamRetriesTotal.Inc()

		jitter := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("backoff", jitter).
			Msg("Retrying upstream request after backoff")

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-time.After(jitter):
		}

		backoff = time.Duration(float64(backoff) * cfg.BackoffMultiplier)
		if backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}

	upstreamRetryExhaustedTotal.Inc()
	logger.Warn().
		Int("max_attempts", cfg.MaxAttempts).
		Msg("Upstream retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, cfg.MaxAttempts, lastErr)
}
