// Package upstream provides the HTTP client for the TMDB catalog API with
// bearer-token auth, a client-side courtesy rate limiter and retry with
// exponential backoff.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/cinegate/tmdb-gateway/pkg/logging"
)

// Prometheus metrics for upstream requests.
var (
	upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tmdb_upstream_requests_total",
		Help: "Total TMDB requests by HTTP status",
	}, []string{"status"})

	upstreamRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tmdb_upstream_request_duration_seconds",
		Help:    "TMDB request duration in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	upstreamErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tmdb_upstream_errors_total",
		Help: "Total TMDB errors by class",
	}, []string{"class"}) // "client", "server", "rate_limit", "network"
)

// ErrMissingToken indicates the TMDB bearer token is not configured.
var ErrMissingToken = errors.New("TMDB bearer token is not configured")

// Error is a non-success response from TMDB. Status and body are preserved
// verbatim so callers can propagate the provider's own answer.
type Error struct {
	StatusCode int
	Body       []byte
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("TMDB error (status %d): %s", e.StatusCode, truncate(string(e.Body), 200))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Config holds the upstream client configuration.
type Config struct {
	// BaseURL of the TMDB API (default: https://api.themoviedb.org/3).
	BaseURL string

	// BearerToken is the TMDB API read access token (REQUIRED).
	BearerToken string

	// DefaultLanguage applies when a request carries no language tag.
	DefaultLanguage string

	// Timeout per HTTP request.
	Timeout time.Duration

	// RequestsPerSecond is the client-side courtesy limit toward TMDB.
	RequestsPerSecond float64

	// Burst allowance for the courtesy limiter.
	Burst int
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(bearerToken string) Config {
	return Config{
		BaseURL:           "https://api.themoviedb.org/3",
		BearerToken:       bearerToken,
		DefaultLanguage:   "es-ES",
		Timeout:           15 * time.Second,
		RequestsPerSecond: 40,
		Burst:             40,
	}
}

// Client performs GET requests against the TMDB API.
type Client struct {
	httpClient      *http.Client
	baseURL         string
	token           string
	defaultLanguage string
	limiter         *rate.Limiter
	logger          zerolog.Logger
}

// New creates an upstream client. The bearer token is required.
func New(cfg Config) (*Client, error) {
	if cfg.BearerToken == "" {
		return nil, ErrMissingToken
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.themoviedb.org/3"
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "es-ES"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 40
	}
	if cfg.Burst <= 0 {
		cfg.Burst = int(cfg.RequestsPerSecond)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		token:           cfg.BearerToken,
		defaultLanguage: cfg.DefaultLanguage,
		limiter:         rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		logger:          logging.NewLogger("upstream"),
	}, nil
}

// DefaultLanguage returns the language applied when requests carry none.
func (c *Client) DefaultLanguage() string {
	return c.defaultLanguage
}

// Get fetches a TMDB resource and returns the response body on success.
// The language tag is always applied (falling back to the configured
// default); the region, when present, is applied as both region and
// watch_region. Server and network errors are retried with backoff; client
// errors are returned immediately as *Error with the upstream status and
// body preserved.
func (c *Client) Get(ctx context.Context, path string, query map[string]string, language, region string) ([]byte, error) {
	if c.token == "" {
		return nil, ErrMissingToken
	}

	reqURL, err := c.buildURL(path, query, language, region)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		upstreamRequestDuration.Observe(time.Since(start).Seconds())
	}()

	var body []byte
	err = retryWithBackoff(ctx, defaultRetryConfig(), c.logger, func() (bool, error) {
		// Courtesy limit toward the provider's own per-second caps.
		if err := c.limiter.Wait(ctx); err != nil {
			return false, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return false, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			upstreamErrorsTotal.WithLabelValues("network").Inc()
			return true, fmt.Errorf("tmdb request: %w", err)
		}
		defer resp.Body.Close()

		upstreamRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			upstreamErrorsTotal.WithLabelValues("network").Inc()
			return true, fmt.Errorf("read tmdb response: %w", err)
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			body = respBody
			return false, nil
		}

		upstreamErr := &Error{StatusCode: resp.StatusCode, Body: respBody}
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			upstreamErrorsTotal.WithLabelValues("rate_limit").Inc()
			return true, upstreamErr
		case resp.StatusCode >= 500:
			upstreamErrorsTotal.WithLabelValues("server").Inc()
			return true, upstreamErr
		default:
			// 4xx: retrying wastes quota and cannot succeed.
			upstreamErrorsTotal.WithLabelValues("client").Inc()
			return false, upstreamErr
		}
	})
	if err != nil {
		return nil, err
	}

	return body, nil
}

// buildURL assembles the full request URL with locale and query parameters.
func (c *Client) buildURL(path string, query map[string]string, language, region string) (string, error) {
	u, err := url.Parse(c.baseURL + "/" + strings.Trim(path, "/"))
	if err != nil {
		return "", fmt.Errorf("build tmdb url: %w", err)
	}

	params := url.Values{}
	if language == "" {
		language = c.defaultLanguage
	}
	params.Set("language", language)

	if region != "" {
		params.Set("region", region)
		// Watch provider endpoints filter by watch_region instead.
		params.Set("watch_region", region)
	}

	for name, value := range query {
		if name == "" || value == "" {
			continue
		}
		params.Set(name, value)
	}

	u.RawQuery = params.Encode()
	return u.String(), nil
}
