// Package ratelimit implements per-(user, endpoint) request gating for the
// cost-incurring generative-text endpoints. Each endpoint combines a minimum
// inter-request interval, a per-minute cap and a per-hour cap; the check and
// the window update happen in one atomic storage operation.
package ratelimit

import "fmt"

// Reason identifies which rule denied a request.
type Reason string

const (
	// ReasonNone means the request was allowed.
	ReasonNone Reason = "none"

	// ReasonTooFast means the minimum interval since the last accepted
	// request has not elapsed. Reported even when the minute or hour cap is
	// also exceeded: it is the most specific, most actionable reason.
	ReasonTooFast Reason = "too_fast"

	// ReasonMinuteLimit means the per-minute cap is reached.
	ReasonMinuteLimit Reason = "minute_limit"

	// ReasonHourLimit means the per-hour cap is reached.
	ReasonHourLimit Reason = "hour_limit"
)

// Policy configures the three limits for one endpoint class.
type Policy struct {
	// MinIntervalSeconds is the minimum number of seconds between two
	// consecutive accepted requests.
	MinIntervalSeconds int `yaml:"min_interval_seconds"`

	// MaxPerMinute caps accepted requests per minute window.
	MaxPerMinute int `yaml:"max_per_minute"`

	// MaxPerHour caps accepted requests per hour window.
	MaxPerHour int `yaml:"max_per_hour"`
}

// Validate checks that the policy values are usable.
func (p Policy) Validate() error {
	if p.MinIntervalSeconds < 0 {
		return fmt.Errorf("min_interval_seconds must be >= 0 (got %d)", p.MinIntervalSeconds)
	}
	if p.MaxPerMinute <= 0 {
		return fmt.Errorf("max_per_minute must be > 0 (got %d)", p.MaxPerMinute)
	}
	if p.MaxPerHour <= 0 {
		return fmt.Errorf("max_per_hour must be > 0 (got %d)", p.MaxPerHour)
	}
	return nil
}

// Result is the outcome of one rate limit check.
type Result struct {
	// Allowed reports whether the request may proceed.
	Allowed bool `json:"allowed"`

	// Reason names the violated rule, or ReasonNone when allowed.
	Reason Reason `json:"reason"`

	// WaitSeconds is the smallest non-negative wait before a retry can
	// succeed under the violated rule.
	WaitSeconds int `json:"wait_seconds"`

	// Remaining is the number of requests left in the tighter of the two
	// windows. -1 when unknown (fail-open path).
	Remaining int `json:"requests_remaining"`
}

// DefaultPolicies returns the built-in per-endpoint limits for the
// generative-text endpoints.
func DefaultPolicies() map[string]Policy {
	return map[string]Policy{
		"ai-chat": {
			MinIntervalSeconds: 2,
			MaxPerMinute:       10,
			MaxPerHour:         50,
		},
		"ai-search-plan": {
			MinIntervalSeconds: 3,
			MaxPerMinute:       6,
			MaxPerHour:         40,
		},
		"ai-movie-insight": {
			MinIntervalSeconds: 1,
			MaxPerMinute:       15,
			MaxPerHour:         100,
		},
	}
}
