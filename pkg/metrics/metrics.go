// Package metrics provides the centralized Prometheus metrics registry for
// the TMDB gateway. All metrics are defined in their respective packages
// (proxy, cache, ratelimit, upstream) to maintain modularity and avoid
// circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the gateway.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Proxy Metrics (pkg/proxy):
//   - tmdb_proxy_requests_total{cache_status} (Counter): Proxied requests by cache status (hit, miss, bypass)
//   - tmdb_proxy_forbidden_total (Counter): Requests rejected by the path allow-list
//   - tmdb_bulk_requests_total (Counter): Bulk detail requests
//   - tmdb_bulk_items_total{outcome} (Counter): Bulk items by resolution outcome (hit, miss, failed)
//
// Cache Metrics (pkg/cache):
//   - tmdb_cache_hits_total (Counter): Cache hits
//   - tmdb_cache_misses_total{cause} (Counter): Cache misses by cause (absent, expired, error)
//   - tmdb_cache_writes_total (Counter): Cache writes
//   - tmdb_cache_errors_total{operation} (Counter): Cache operation errors
//   - tmdb_cache_payload_bytes (Histogram): Cached payload sizes
//
// Rate Limit Metrics (pkg/ratelimit):
//   - tmdb_ratelimit_checks_total{endpoint, outcome} (Counter): Checks by endpoint and outcome
//   - tmdb_ratelimit_fail_open_total (Counter): Checks allowed because the store failed
//   - tmdb_ratelimit_record_errors_total (Counter): Failed usage recordings
//
// Upstream Metrics (pkg/upstream):
//   - tmdb_upstream_requests_total{status} (Counter): Upstream requests by HTTP status
//   - tmdb_upstream_request_duration_seconds (Histogram): Upstream request duration
//   - tmdb_upstream_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//   - tmdb_upstream_retries_total (Counter): Retry attempts
//   - tmdb_upstream_retry_exhausted_total (Counter): Requests that exhausted max retries
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(tmdb_cache_hits_total[5m])) /
//   (sum(rate(tmdb_cache_hits_total[5m])) + sum(rate(tmdb_cache_misses_total[5m])))
//
//   # Upstream Error Rate
//   rate(tmdb_upstream_errors_total[5m])
//
//   # P95 Upstream Latency
//   histogram_quantile(0.95, rate(tmdb_upstream_request_duration_seconds_bucket[5m]))
//
//   # Rate Limit Denial Rate by Endpoint
//   sum by (endpoint) (rate(tmdb_ratelimit_checks_total{outcome="denied"}[5m]))
