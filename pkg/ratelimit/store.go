package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is the backing contract the limiter consumes. Check must evaluate all
// three rules and record the acceptance in ONE indivisible operation: a
// separate check-then-increment from the caller would let two concurrent
// requests both pass against a not-yet-updated counter.
type Store interface {
	// Check atomically evaluates the policy for (userID, endpoint) and, when
	// the request is allowed, records it in the same operation.
	Check(ctx context.Context, userID, endpoint string, policy Policy) (Result, error)

	// Record attributes real usage cost after the gated action succeeded.
	Record(ctx context.Context, userID, endpoint string, costUnits int64) error
}

// usageRetention bounds how long per-day usage counters are kept.
const usageRetention = 90 * 24 * time.Hour

// checkScript evaluates the three rules in denial-precedence order
// (too_fast, then minute_limit, then hour_limit) and on allow updates the
// last-request timestamp and both window counters, all in a single atomic
// script execution.
//
// KEYS[1] last-request timestamp, KEYS[2] minute counter, KEYS[3] hour counter
// ARGV[1] now (unix seconds), ARGV[2] min interval, ARGV[3] minute cap,
// ARGV[4] hour cap
//
// Returns {allowed, reason, wait_seconds, remaining}.
var checkScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local min_interval = tonumber(ARGV[2])
local max_minute = tonumber(ARGV[3])
local max_hour = tonumber(ARGV[4])

if min_interval > 0 then
	local last = redis.call('GET', KEYS[1])
	if last then
		local elapsed = now - tonumber(last)
		if elapsed < min_interval then
			return {0, 'too_fast', min_interval - elapsed, 0}
		end
	end
end

local minute = tonumber(redis.call('GET', KEYS[2]) or '0')
if minute >= max_minute then
	local wait = redis.call('TTL', KEYS[2])
	if wait < 0 then wait = 60 end
	return {0, 'minute_limit', wait, 0}
end

local hour = tonumber(redis.call('GET', KEYS[3]) or '0')
if hour >= max_hour then
	local wait = redis.call('TTL', KEYS[3])
	if wait < 0 then wait = 3600 end
	return {0, 'hour_limit', wait, 0}
end

redis.call('SET', KEYS[1], now, 'EX', 7200)
local new_minute = redis.call('INCR', KEYS[2])
if new_minute == 1 then redis.call('EXPIRE', KEYS[2], 60) end
local new_hour = redis.call('INCR', KEYS[3])
if new_hour == 1 then redis.call('EXPIRE', KEYS[3], 3600) end

local remaining = max_minute - new_minute
local hour_remaining = max_hour - new_hour
if hour_remaining < remaining then remaining = hour_remaining end
return {1, 'none', 0, remaining}
`)

// RedisStore implements Store on Redis counters. Window counters are fixed
// 60s/3600s windows expired by Redis; the Lua script gives the required
// server-side atomicity.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a Redis-backed rate limit store.
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{redis: redisClient}
}

// Check runs the atomic check-and-record script.
func (s *RedisStore) Check(ctx context.Context, userID, endpoint string, policy Policy) (Result, error) {
	keys := []string{
		fmt.Sprintf("ratelimit:%s:%s:last", userID, endpoint),
		fmt.Sprintf("ratelimit:%s:%s:minute", userID, endpoint),
		fmt.Sprintf("ratelimit:%s:%s:hour", userID, endpoint),
	}

	raw, err := checkScript.Run(ctx, s.redis, keys,
		time.Now().Unix(),
		policy.MinIntervalSeconds,
		policy.MaxPerMinute,
		policy.MaxPerHour,
	).Result()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit script: %w", err)
	}

	return parseScriptResult(raw)
}

// Record increments the usage counters for (userID, endpoint): a lifetime
// total and a per-day counter with bounded retention.
func (s *RedisStore) Record(ctx context.Context, userID, endpoint string, costUnits int64) error {
	if costUnits <= 0 {
		costUnits = 1
	}

	day := time.Now().UTC().Format("2006-01-02")
	totalKey := fmt.Sprintf("usage:%s:%s:total", userID, endpoint)
	dayKey := fmt.Sprintf("usage:%s:%s:%s", userID, endpoint, day)

	pipe := s.redis.Pipeline()
	pipe.IncrBy(ctx, totalKey, costUnits)
	pipe.IncrBy(ctx, dayKey, costUnits)
	pipe.Expire(ctx, dayKey, usageRetention)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

// parseScriptResult decodes the {allowed, reason, wait, remaining} reply.
func parseScriptResult(raw interface{}) (Result, error) {
	reply, ok := raw.([]interface{})
	if !ok || len(reply) != 4 {
		return Result{}, fmt.Errorf("unexpected script reply: %v", raw)
	}

	allowed, ok := reply[0].(int64)
	if !ok {
		return Result{}, fmt.Errorf("unexpected allowed value: %v", reply[0])
	}
	reason, ok := reply[1].(string)
	if !ok {
		return Result{}, fmt.Errorf("unexpected reason value: %v", reply[1])
	}
	wait, ok := reply[2].(int64)
	if !ok {
		return Result{}, fmt.Errorf("unexpected wait value: %v", reply[2])
	}
	remaining, ok := reply[3].(int64)
	if !ok {
		return Result{}, fmt.Errorf("unexpected remaining value: %v", reply[3])
	}

	if wait < 0 {
		wait = 0
	}

	return Result{
		Allowed:     allowed == 1,
		Reason:      Reason(reason),
		WaitSeconds: int(wait),
		Remaining:   int(remaining),
	}, nil
}
