package ratelimit

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// fakeStore scripts the backing store's behavior for unit tests.
type fakeStore struct {
	result     Result
	checkErr   error
	recordErr  error
	checkCalls int
	lastUser   string
	lastPolicy Policy
	recorded   []int64
}

func (f *fakeStore) Check(_ context.Context, userID, _ string, policy Policy) (Result, error) {
	f.checkCalls++
	f.lastUser = userID
	f.lastPolicy = policy
	return f.result, f.checkErr
}

func (f *fakeStore) Record(_ context.Context, _, _ string, costUnits int64) error {
	f.recorded = append(f.recorded, costUnits)
	return f.recordErr
}

func newTestLimiter(t *testing.T, store Store) *Limiter {
	t.Helper()
	limiter, err := NewLimiter(store, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewLimiter() error = %v", err)
	}
	return limiter
}

func TestNewLimiter_ValidatesPolicies(t *testing.T) {
	tests := []struct {
		name     string
		policies map[string]Policy
		wantErr  bool
	}{
		{
			name:     "defaults when empty",
			policies: nil,
			wantErr:  false,
		},
		{
			name: "valid custom policy",
			policies: map[string]Policy{
				"ai-chat": {MinIntervalSeconds: 1, MaxPerMinute: 5, MaxPerHour: 20},
			},
			wantErr: false,
		},
		{
			name: "zero minute cap rejected",
			policies: map[string]Policy{
				"ai-chat": {MinIntervalSeconds: 1, MaxPerMinute: 0, MaxPerHour: 20},
			},
			wantErr: true,
		},
		{
			name: "negative interval rejected",
			policies: map[string]Policy{
				"ai-chat": {MinIntervalSeconds: -1, MaxPerMinute: 5, MaxPerHour: 20},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLimiter(&fakeStore{}, tt.policies, zerolog.Nop())
			if (err != nil) != tt.wantErr {
				t.Errorf("NewLimiter() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCheck_PassesPolicyToStore(t *testing.T) {
	store := &fakeStore{result: Result{Allowed: true, Reason: ReasonNone}}
	limiter := newTestLimiter(t, store)

	result, err := limiter.Check(context.Background(), "user-1", "ai-search-plan")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !result.Allowed {
		t.Error("expected allowed result")
	}
	if store.lastPolicy.MaxPerMinute != 6 || store.lastPolicy.MaxPerHour != 40 || store.lastPolicy.MinIntervalSeconds != 3 {
		t.Errorf("store received policy %+v, want ai-search-plan defaults", store.lastPolicy)
	}
}

func TestCheck_UnknownEndpoint(t *testing.T) {
	store := &fakeStore{}
	limiter := newTestLimiter(t, store)

	_, err := limiter.Check(context.Background(), "user-1", "ai-unknown")
	if !errors.Is(err, ErrUnknownEndpoint) {
		t.Errorf("Check() error = %v, want ErrUnknownEndpoint", err)
	}
	if store.checkCalls != 0 {
		t.Error("store must not be consulted for unknown endpoints")
	}
}

// TestCheck_FailsOpen verifies that a backing store failure allows the
// request instead of blocking a legitimate user.
func TestCheck_FailsOpen(t *testing.T) {
	store := &fakeStore{checkErr: errors.New("redis: connection refused")}
	limiter := newTestLimiter(t, store)

	result, err := limiter.Check(context.Background(), "user-1", "ai-chat")
	if err != nil {
		t.Fatalf("Check() must not surface store errors, got %v", err)
	}
	if !result.Allowed {
		t.Error("fail-open check must allow the request")
	}
	if result.Remaining != -1 {
		t.Errorf("fail-open Remaining = %d, want -1 (unknown)", result.Remaining)
	}
}

func TestCheck_DeniedResultPassedThrough(t *testing.T) {
	store := &fakeStore{result: Result{
		Allowed:     false,
		Reason:      ReasonMinuteLimit,
		WaitSeconds: 42,
		Remaining:   0,
	}}
	limiter := newTestLimiter(t, store)

	result, err := limiter.Check(context.Background(), "user-1", "ai-chat")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if result.Allowed || result.Reason != ReasonMinuteLimit || result.WaitSeconds != 42 {
		t.Errorf("result = %+v, want denied minute_limit with 42s wait", result)
	}
}

func TestRecord_SwallowsErrors(t *testing.T) {
	store := &fakeStore{recordErr: errors.New("redis down")}
	limiter := newTestLimiter(t, store)

	// Must not panic or surface anything.
	limiter.Record(context.Background(), "user-1", "ai-chat", 120)

	if len(store.recorded) != 1 || store.recorded[0] != 120 {
		t.Errorf("recorded = %v, want [120]", store.recorded)
	}
}

func TestNewDenial_Messages(t *testing.T) {
	tests := []struct {
		name       string
		result     Result
		wantESPart string
		wantENPart string
	}{
		{
			name:       "too fast singular",
			result:     Result{Reason: ReasonTooFast, WaitSeconds: 1},
			wantESPart: "Espera 1 segundo antes",
			wantENPart: "Wait 1 second before",
		},
		{
			name:       "too fast plural",
			result:     Result{Reason: ReasonTooFast, WaitSeconds: 3},
			wantESPart: "Espera 3 segundos antes",
			wantENPart: "Wait 3 seconds before",
		},
		{
			name:       "minute limit",
			result:     Result{Reason: ReasonMinuteLimit, WaitSeconds: 30},
			wantESPart: "Espera un minuto",
			wantENPart: "Wait a minute",
		},
		{
			name:       "hour limit",
			result:     Result{Reason: ReasonHourLimit, WaitSeconds: 1800},
			wantESPart: "límite de solicitudes por hora",
			wantENPart: "hourly request limit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			denial := NewDenial(tt.result)

			if denial.Code != "RATE_LIMITED" {
				t.Errorf("Code = %q, want RATE_LIMITED", denial.Code)
			}
			if denial.WaitSeconds != tt.result.WaitSeconds {
				t.Errorf("WaitSeconds = %d, want %d", denial.WaitSeconds, tt.result.WaitSeconds)
			}
			if !strings.Contains(denial.Message.ES, tt.wantESPart) {
				t.Errorf("ES message %q missing %q", denial.Message.ES, tt.wantESPart)
			}
			if !strings.Contains(denial.Message.EN, tt.wantENPart) {
				t.Errorf("EN message %q missing %q", denial.Message.EN, tt.wantENPart)
			}
		})
	}
}

func TestParseScriptResult(t *testing.T) {
	tests := []struct {
		name    string
		raw     interface{}
		want    Result
		wantErr bool
	}{
		{
			name: "allowed",
			raw:  []interface{}{int64(1), "none", int64(0), int64(9)},
			want: Result{Allowed: true, Reason: ReasonNone, WaitSeconds: 0, Remaining: 9},
		},
		{
			name: "too fast",
			raw:  []interface{}{int64(0), "too_fast", int64(2), int64(0)},
			want: Result{Allowed: false, Reason: ReasonTooFast, WaitSeconds: 2, Remaining: 0},
		},
		{
			name: "negative wait clamped",
			raw:  []interface{}{int64(0), "minute_limit", int64(-1), int64(0)},
			want: Result{Allowed: false, Reason: ReasonMinuteLimit, WaitSeconds: 0, Remaining: 0},
		},
		{
			name:    "malformed reply",
			raw:     "OK",
			wantErr: true,
		},
		{
			name:    "short reply",
			raw:     []interface{}{int64(1)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseScriptResult(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseScriptResult() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseScriptResult() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
