package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	// ErrCacheMiss indicates the key is absent or the entry has expired.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the stored row is corrupted.
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Redis hash fields of a cache row.
const (
	fieldPayload   = "payload"
	fieldExpiresAt = "expires_at"
	fieldHitCount  = "hit_count"
	fieldStoredAt  = "stored_at"
)

// recordHitTimeout bounds the detached hit-count increment.
const recordHitTimeout = 5 * time.Second

// Store is the persistent cache overlay backed by Redis. Each entry is one
// hash keyed by the canonical cache key, upserted as a whole on every write.
type Store struct {
	redis  *redis.Client
	logger zerolog.Logger
}

// NewStore creates a cache store with a Redis backend.
func NewStore(redisClient *redis.Client, logger zerolog.Logger) *Store {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Store{
		redis:  redisClient,
		logger: logger,
	}
}

// Get retrieves a cache entry by key.
// Returns ErrCacheMiss if the key doesn't exist or the entry has expired.
// An expired row is a miss even while it still physically exists; physical
// removal is left to the key's Redis expiry.
func (s *Store) Get(ctx context.Context, key string) (*Entry, error) {
	fields, err := s.redis.HGetAll(ctx, key).Result()
	if err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}

	if len(fields) == 0 {
		CacheMisses.WithLabelValues("absent").Inc()
		return nil, ErrCacheMiss
	}

	entry, err := entryFromFields(fields)
	if err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	if entry.IsExpired() {
		CacheMisses.WithLabelValues("expired").Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.Inc()
	return entry, nil
}

// Put upserts a cache entry, computing the expiry from the given TTL and
// resetting the hit counter. Repeated writes to the same key overwrite the
// previous row; duplicates cannot occur. A non-positive TTL is a no-op.
func (s *Store) Put(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	now := time.Now()
	expiresAt := now.Add(ttl)

	pipe := s.redis.TxPipeline()
	pipe.HSet(ctx, key,
		fieldPayload, payload,
		fieldExpiresAt, expiresAt.Unix(),
		fieldHitCount, 0,
		fieldStoredAt, now.Unix(),
	)
	pipe.PExpire(ctx, key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("redis cache put: %w", err)
	}

	CacheWrites.Inc()
	CachePayloadBytes.Observe(float64(len(payload)))

	return nil
}

// RecordHit increments the advisory hit counter for a key. The increment runs
// detached from the calling request and is allowed to be lost: the counter is
// telemetry, never a correctness input.
func (s *Store) RecordHit(key string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordHitTimeout)
		defer cancel()

		// Existence check first so a concurrent expiry doesn't leave a
		// stray counter-only hash without TTL. Racy, and that is fine.
		exists, err := s.redis.HExists(ctx, key, fieldPayload).Result()
		if err != nil || !exists {
			if err != nil {
				CacheErrors.WithLabelValues("record_hit").Inc()
				s.logger.Warn().Err(err).Str("cache_key", key).Msg("Hit count check failed")
			}
			return
		}

		if err := s.redis.HIncrBy(ctx, key, fieldHitCount, 1).Err(); err != nil {
			CacheErrors.WithLabelValues("record_hit").Inc()
			s.logger.Warn().Err(err).Str("cache_key", key).Msg("Hit count increment failed")
		}
	}()
}

// entryFromFields decodes a Redis hash into an Entry.
func entryFromFields(fields map[string]string) (*Entry, error) {
	payload, ok := fields[fieldPayload]
	if !ok {
		return nil, fmt.Errorf("missing %s field", fieldPayload)
	}

	expiresUnix, err := strconv.ParseInt(fields[fieldExpiresAt], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", fieldExpiresAt, err)
	}

	entry := &Entry{
		Payload:   []byte(payload),
		ExpiresAt: time.Unix(expiresUnix, 0),
	}

	if raw, ok := fields[fieldHitCount]; ok {
		if hits, err := strconv.ParseInt(raw, 10, 64); err == nil {
			entry.HitCount = hits
		}
	}
	if raw, ok := fields[fieldStoredAt]; ok {
		if storedUnix, err := strconv.ParseInt(raw, 10, 64); err == nil {
			entry.StoredAt = time.Unix(storedUnix, 0)
		}
	}

	return entry, nil
}
