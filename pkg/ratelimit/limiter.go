package ratelimit

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for rate limit decisions.
var (
	rateLimitChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tmdb_ratelimit_checks_total",
		Help: "Total rate limit checks by endpoint and outcome",
	}, []string{"endpoint", "outcome"}) // outcome: allowed, too_fast, minute_limit, hour_limit

	rateLimitFailOpenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tmdb_ratelimit_fail_open_total",
		Help: "Total checks allowed because the backing store errored",
	})

	rateLimitRecordErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tmdb_ratelimit_record_errors_total",
		Help: "Total usage recording failures (logged and ignored)",
	})
)

// ErrUnknownEndpoint is returned when no policy is configured for the
// requested endpoint.
var ErrUnknownEndpoint = fmt.Errorf("no rate limit policy for endpoint")

// Limiter gates requests per (user, endpoint) against configured policies.
type Limiter struct {
	store    Store
	policies map[string]Policy
	logger   zerolog.Logger
}

// NewLimiter creates a limiter over the given backing store. Nil or empty
// policies fall back to the defaults.
func NewLimiter(store Store, policies map[string]Policy, logger zerolog.Logger) (*Limiter, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if len(policies) == 0 {
		policies = DefaultPolicies()
	}
	for endpoint, policy := range policies {
		if err := policy.Validate(); err != nil {
			return nil, fmt.Errorf("policy %q: %w", endpoint, err)
		}
	}

	return &Limiter{
		store:    store,
		policies: policies,
		logger:   logger,
	}, nil
}

// Endpoints returns the endpoint names with a configured policy.
func (l *Limiter) Endpoints() []string {
	names := make([]string, 0, len(l.policies))
	for name := range l.policies {
		names = append(names, name)
	}
	return names
}

// Check decides whether userID may invoke endpoint right now. The decision
// and the window update are one atomic operation at the storage layer.
//
// If the backing check itself fails the limiter fails OPEN: blocking
// legitimate users on infrastructure errors is judged worse than an
// occasional unmetered burst. The failure is logged and counted.
func (l *Limiter) Check(ctx context.Context, userID, endpoint string) (Result, error) {
	policy, ok := l.policies[endpoint]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownEndpoint, endpoint)
	}

	result, err := l.store.Check(ctx, userID, endpoint, policy)
	if err != nil {
		rateLimitFailOpenTotal.Inc()
		l.logger.Warn().
			Err(err).
			Str("user_id", userID).
			Str("endpoint", endpoint).
			Msg("Rate limit check failed - failing open")
		return Result{Allowed: true, Reason: ReasonNone, WaitSeconds: 0, Remaining: -1}, nil
	}

	outcome := "allowed"
	if !result.Allowed {
		outcome = string(result.Reason)
		l.logger.Debug().
			Str("user_id", userID).
			Str("endpoint", endpoint).
			Str("reason", string(result.Reason)).
			Int("wait_seconds", result.WaitSeconds).
			Msg("Rate limit denied")
	}
	rateLimitChecksTotal.WithLabelValues(endpoint, outcome).Inc()

	return result, nil
}

// Record attributes usage cost after the gated action actually succeeded.
// Failures are logged and otherwise ignored; usage accounting is telemetry,
// not a gate.
func (l *Limiter) Record(ctx context.Context, userID, endpoint string, costUnits int64) {
	if err := l.store.Record(ctx, userID, endpoint, costUnits); err != nil {
		rateLimitRecordErrors.Inc()
		l.logger.Warn().
			Err(err).
			Str("user_id", userID).
			Str("endpoint", endpoint).
			Int64("cost_units", costUnits).
			Msg("Usage recording failed")
	}
}
