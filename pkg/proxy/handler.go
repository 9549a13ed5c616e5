// Package proxy orchestrates the request flow of the gateway: path
// validation, cache lookup, upstream fetch on miss and the asynchronous
// write-back, for both single-resource and bulk requests.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/cinegate/tmdb-gateway/pkg/cache"
	"github.com/cinegate/tmdb-gateway/pkg/logging"
	"github.com/cinegate/tmdb-gateway/pkg/routes"
)

// Prometheus metrics for proxied requests.
var (
	proxyRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tmdb_proxy_requests_total",
		Help: "Total proxied requests by cache status",
	}, []string{"cache_status"}) // "hit", "miss", "bypass"

	proxyForbiddenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tmdb_proxy_forbidden_total",
		Help: "Total requests rejected by the path allow-list",
	})
)

// CacheStatus signals how a response was produced.
type CacheStatus string

const (
	// CacheHit means the response came from a fresh cache entry.
	CacheHit CacheStatus = "HIT"

	// CacheMiss means the response was fetched from upstream and queued for
	// caching.
	CacheMiss CacheStatus = "MISS"

	// CacheBypass means the endpoint is non-cacheable and was fetched
	// directly.
	CacheBypass CacheStatus = "BYPASS"
)

// cacheWriteTimeout bounds the asynchronous write-back after a miss.
const cacheWriteTimeout = 10 * time.Second

// fetchTimeout bounds a coalesced upstream fetch. Wide enough for the
// client's full retry schedule.
const fetchTimeout = 60 * time.Second

// Request is one proxied lookup.
type Request struct {
	// Path is the TMDB resource path (e.g. "movie/603").
	Path string `json:"path"`

	// Query carries optional query parameters.
	Query map[string]string `json:"query,omitempty"`

	// Language is an IETF BCP 47 tag (e.g. "es-MX"). Empty means the
	// configured default.
	Language string `json:"language,omitempty"`

	// Region is an ISO 3166-1 alpha-2 code (e.g. "MX").
	Region string `json:"region,omitempty"`
}

// Result is the outcome of a proxied lookup.
type Result struct {
	// Payload is the upstream JSON body, passed through unchanged.
	Payload json.RawMessage

	// Status reports whether the cache was hit, missed or bypassed.
	Status CacheStatus
}

// Store is the cache surface the handlers need.
type Store interface {
	Get(ctx context.Context, key string) (*cache.Entry, error)
	Put(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	RecordHit(key string)
}

// Fetcher is the upstream surface the handlers need.
type Fetcher interface {
	Get(ctx context.Context, path string, query map[string]string, language, region string) ([]byte, error)
	DefaultLanguage() string
}

// Handler serves single-resource proxy lookups.
type Handler struct {
	store   Store
	fetcher Fetcher
	logger  zerolog.Logger

	// flight coalesces concurrent upstream fetches for the same cache key so
	// a burst of identical misses costs one upstream call.
	flight singleflight.Group
}

// NewHandler creates a proxy handler.
func NewHandler(store Store, fetcher Fetcher) *Handler {
	return &Handler{
		store:   store,
		fetcher: fetcher,
		logger:  logging.NewLogger("proxy"),
	}
}

// Handle validates, resolves and returns one proxied resource.
//
// Cache read errors are treated as misses; cache write failures never fail
// the request (the authoritative payload has already been fetched). The
// write-back runs detached from the request.
func (h *Handler) Handle(ctx context.Context, req Request) (*Result, error) {
	if req.Path == "" {
		return nil, NewValidationError(CodeMissingPath, "field 'path' is required")
	}

	path := routes.Normalize(req.Path)
	if !routes.IsAllowed(path) {
		proxyForbiddenTotal.Inc()
		return nil, fmt.Errorf("%w: %s", ErrForbiddenPath, path)
	}

	language := req.Language
	if language == "" {
		language = h.fetcher.DefaultLanguage()
	}

	if !cache.IsCacheable(path) {
		body, err := h.fetcher.Get(ctx, path, req.Query, language, req.Region)
		if err != nil {
			return nil, err
		}
		proxyRequestsTotal.WithLabelValues("bypass").Inc()
		return &Result{Payload: body, Status: CacheBypass}, nil
	}

	key := cache.BuildKey(path, req.Query, language, req.Region)

	entry, err := h.store.Get(ctx, key)
	if err == nil {
		h.store.RecordHit(key)
		proxyRequestsTotal.WithLabelValues("hit").Inc()
		h.logger.Debug().Str("cache_key", key).Msg("Cache hit")
		return &Result{Payload: entry.Payload, Status: CacheHit}, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		// Storage trouble is a miss, not a failure: upstream stays authoritative.
		h.logger.Warn().Err(err).Str("cache_key", key).Msg("Cache read error - treating as miss")
	}

	body, err, _ := h.flight.Do(key, func() (interface{}, error) {
		// The fetch is shared by every coalesced caller, so it must not die
		// with whichever request happened to start it. Detached context with
		// its own deadline instead of the leader's.
		fetchCtx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		payload, err := h.fetcher.Get(fetchCtx, path, req.Query, language, req.Region)
		if err != nil {
			return nil, err
		}
		asyncPut(h.store, h.logger, key, payload, cache.TTLFor(path))
		return payload, nil
	})
	if err != nil {
		return nil, err
	}

	proxyRequestsTotal.WithLabelValues("miss").Inc()
	h.logger.Debug().Str("cache_key", key).Msg("Cache miss - fetched upstream")
	return &Result{Payload: body.([]byte), Status: CacheMiss}, nil
}

// asyncPut writes a cache entry without blocking the caller. Terminal
// failures are logged; a lost write only costs a refetch on the next miss.
func asyncPut(store Store, logger zerolog.Logger, key string, payload []byte, ttl time.Duration) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), cacheWriteTimeout)
		defer cancel()

		if err := store.Put(ctx, key, payload, ttl); err != nil {
			logger.Warn().Err(err).Str("cache_key", key).Msg("Cache write failed")
			return
		}
		logger.Debug().Str("cache_key", key).Dur("ttl", ttl).Msg("Cached response")
	}()
}
