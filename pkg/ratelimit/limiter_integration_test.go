//go:build integration

package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container and returns a client
func setupRedis(t *testing.T) (*redis.Client, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: endpoint,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func TestRedisStore_Integration_MinuteLimit(t *testing.T) {
	client, cleanup := setupRedis(t)
	defer cleanup()

	store := NewRedisStore(client)
	ctx := context.Background()

	// No interval rule so consecutive checks only hit the caps.
	policy := Policy{MinIntervalSeconds: 0, MaxPerMinute: 3, MaxPerHour: 100}

	for i := 0; i < 3; i++ {
		result, err := store.Check(ctx, "user-1", "ai-chat", policy)
		if err != nil {
			t.Fatalf("Check #%d error = %v", i+1, err)
		}
		if !result.Allowed {
			t.Fatalf("Check #%d denied (%s), want allowed", i+1, result.Reason)
		}
		wantRemaining := policy.MaxPerMinute - (i + 1)
		if result.Remaining != wantRemaining {
			t.Errorf("Check #%d Remaining = %d, want %d", i+1, result.Remaining, wantRemaining)
		}
	}

	// The call that exceeds the cap is denied with a positive wait.
	result, err := store.Check(ctx, "user-1", "ai-chat", policy)
	if err != nil {
		t.Fatalf("Check over cap error = %v", err)
	}
	if result.Allowed {
		t.Fatal("check over minute cap was allowed")
	}
	if result.Reason != ReasonMinuteLimit {
		t.Errorf("Reason = %s, want minute_limit", result.Reason)
	}
	if result.WaitSeconds <= 0 || result.WaitSeconds > 60 {
		t.Errorf("WaitSeconds = %d, want in (0, 60]", result.WaitSeconds)
	}

	// Another user is unaffected.
	other, err := store.Check(ctx, "user-2", "ai-chat", policy)
	if err != nil {
		t.Fatalf("Check other user error = %v", err)
	}
	if !other.Allowed {
		t.Error("other user's first request denied")
	}
}

// TestRedisStore_Integration_TooFastPrecedence verifies the denial ordering:
// a minimum-interval violation is reported as too_fast even when the minute
// cap is also exhausted.
func TestRedisStore_Integration_TooFastPrecedence(t *testing.T) {
	client, cleanup := setupRedis(t)
	defer cleanup()

	store := NewRedisStore(client)
	ctx := context.Background()

	policy := Policy{MinIntervalSeconds: 5, MaxPerMinute: 1, MaxPerHour: 2}

	first, err := store.Check(ctx, "user-1", "ai-search-plan", policy)
	if err != nil {
		t.Fatalf("first Check error = %v", err)
	}
	if !first.Allowed {
		t.Fatalf("first check denied: %s", first.Reason)
	}

	// Immediately again: both the interval and the minute cap are violated;
	// too_fast must win.
	second, err := store.Check(ctx, "user-1", "ai-search-plan", policy)
	if err != nil {
		t.Fatalf("second Check error = %v", err)
	}
	if second.Allowed {
		t.Fatal("immediate second check was allowed")
	}
	if second.Reason != ReasonTooFast {
		t.Errorf("Reason = %s, want too_fast (interval violation reported first)", second.Reason)
	}
	if second.WaitSeconds <= 0 || second.WaitSeconds > policy.MinIntervalSeconds {
		t.Errorf("WaitSeconds = %d, want in (0, %d]", second.WaitSeconds, policy.MinIntervalSeconds)
	}
}

func TestRedisStore_Integration_HourLimit(t *testing.T) {
	client, cleanup := setupRedis(t)
	defer cleanup()

	store := NewRedisStore(client)
	ctx := context.Background()

	policy := Policy{MinIntervalSeconds: 0, MaxPerMinute: 100, MaxPerHour: 2}

	for i := 0; i < 2; i++ {
		result, err := store.Check(ctx, "user-1", "ai-movie-insight", policy)
		if err != nil {
			t.Fatalf("Check #%d error = %v", i+1, err)
		}
		if !result.Allowed {
			t.Fatalf("Check #%d denied", i+1)
		}
	}

	result, err := store.Check(ctx, "user-1", "ai-movie-insight", policy)
	if err != nil {
		t.Fatalf("Check over hour cap error = %v", err)
	}
	if result.Allowed {
		t.Fatal("check over hour cap was allowed")
	}
	if result.Reason != ReasonHourLimit {
		t.Errorf("Reason = %s, want hour_limit", result.Reason)
	}
	if result.WaitSeconds <= 0 || result.WaitSeconds > 3600 {
		t.Errorf("WaitSeconds = %d, want in (0, 3600]", result.WaitSeconds)
	}
}

// TestRedisStore_Integration_ConcurrentChecksAtomic fires concurrent checks
// for the same user and asserts that no more than the cap are allowed: the
// script must not let two near-simultaneous requests both pass against a
// not-yet-updated counter.
func TestRedisStore_Integration_ConcurrentChecksAtomic(t *testing.T) {
	client, cleanup := setupRedis(t)
	defer cleanup()

	store := NewRedisStore(client)
	policy := Policy{MinIntervalSeconds: 0, MaxPerMinute: 5, MaxPerHour: 100}

	const attempts = 25
	var wg sync.WaitGroup
	allowed := make(chan bool, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			result, err := store.Check(ctx, "user-1", "ai-chat", policy)
			if err != nil {
				t.Errorf("concurrent Check error = %v", err)
				return
			}
			allowed <- result.Allowed
		}()
	}
	wg.Wait()
	close(allowed)

	var passed int
	for ok := range allowed {
		if ok {
			passed++
		}
	}
	if passed != policy.MaxPerMinute {
		t.Errorf("%d concurrent checks allowed, want exactly %d", passed, policy.MaxPerMinute)
	}
}

func TestRedisStore_Integration_Record(t *testing.T) {
	client, cleanup := setupRedis(t)
	defer cleanup()

	store := NewRedisStore(client)
	ctx := context.Background()

	if err := store.Record(ctx, "user-1", "ai-chat", 150); err != nil {
		t.Fatalf("Record error = %v", err)
	}
	if err := store.Record(ctx, "user-1", "ai-chat", 50); err != nil {
		t.Fatalf("Record error = %v", err)
	}

	total, err := client.Get(ctx, "usage:user-1:ai-chat:total").Int64()
	if err != nil {
		t.Fatalf("read total: %v", err)
	}
	if total != 200 {
		t.Errorf("total usage = %d, want 200", total)
	}

	day := time.Now().UTC().Format("2006-01-02")
	dayKey := "usage:user-1:ai-chat:" + day
	ttl, err := client.TTL(ctx, dayKey).Result()
	if err != nil {
		t.Fatalf("read day TTL: %v", err)
	}
	if ttl <= 0 {
		t.Error("daily usage counter has no retention TTL")
	}
}

func TestLimiter_Integration_EndToEnd(t *testing.T) {
	client, cleanup := setupRedis(t)
	defer cleanup()

	limiter, err := NewLimiter(NewRedisStore(client), map[string]Policy{
		"ai-chat": {MinIntervalSeconds: 0, MaxPerMinute: 2, MaxPerHour: 10},
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewLimiter error = %v", err)
	}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		result, err := limiter.Check(ctx, "user-9", "ai-chat")
		if err != nil || !result.Allowed {
			t.Fatalf("Check #%d = (%+v, %v), want allowed", i+1, result, err)
		}
	}

	result, err := limiter.Check(ctx, "user-9", "ai-chat")
	if err != nil {
		t.Fatalf("Check error = %v", err)
	}
	if result.Allowed || result.Reason != ReasonMinuteLimit {
		t.Errorf("result = %+v, want minute_limit denial", result)
	}

	limiter.Record(ctx, "user-9", "ai-chat", 1)
}
