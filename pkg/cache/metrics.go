package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits.
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tmdb_cache_hits_total",
			Help: "Total number of cache hits",
		},
	)

	// CacheMisses tracks cache misses by cause (absent, expired).
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tmdb_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cause"}, // "absent", "expired"
	)

	// CacheWrites tracks successful cache writes.
	CacheWrites = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tmdb_cache_writes_total",
			Help: "Total number of cache entries written",
		},
	)

	// CacheErrors tracks cache operation errors.
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tmdb_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "put", "record_hit"
	)

	// CachePayloadBytes observes the size of cached payloads.
	CachePayloadBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tmdb_cache_payload_bytes",
			Help:    "Size distribution of cached payloads in bytes",
			Buckets: prometheus.ExponentialBuckets(256, 4, 8),
		},
	)
)
