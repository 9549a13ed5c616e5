// Package server assembles the HTTP surface of the gateway: the proxy and
// bulk endpoints, rate-limit endpoints, health and Prometheus metrics.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/cinegate/tmdb-gateway/pkg/logging"
	"github.com/cinegate/tmdb-gateway/pkg/proxy"
	"github.com/cinegate/tmdb-gateway/pkg/ratelimit"
)

// Server is the gateway HTTP server.
type Server struct {
	router *chi.Mux
	server *http.Server
	addr   string
	logger zerolog.Logger

	proxyHandler *proxy.Handler
	bulkHandler  *proxy.BulkHandler
	limiter      *ratelimit.Limiter
	redis        *redis.Client
}

// New creates a server with all routes registered.
func New(addr string, proxyHandler *proxy.Handler, bulkHandler *proxy.BulkHandler, limiter *ratelimit.Limiter, redisClient *redis.Client) *Server {
	s := &Server{
		addr:         addr,
		logger:       logging.NewLogger("server"),
		proxyHandler: proxyHandler,
		bulkHandler:  bulkHandler,
		limiter:      limiter,
		redis:        redisClient,
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Post("/tmdb/proxy", s.handleProxy)
	r.Post("/tmdb/bulk", s.handleBulk)
	r.Post("/ratelimit/check", s.handleRateLimitCheck)
	r.Post("/ratelimit/record", s.handleRateLimitRecord)
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	s.router = r
	return s
}

// Start runs the server until it fails or is shut down.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info().Str("addr", s.addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
