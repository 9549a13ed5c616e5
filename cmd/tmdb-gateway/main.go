// Command tmdb-gateway runs the caching TMDB API gateway: an allow-listed
// proxy with Redis-backed response caching, bulk detail resolution and
// per-user rate limiting for generative-text endpoints.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cinegate/tmdb-gateway/internal/server"
	"github.com/cinegate/tmdb-gateway/pkg/cache"
	"github.com/cinegate/tmdb-gateway/pkg/config"
	"github.com/cinegate/tmdb-gateway/pkg/logging"
	"github.com/cinegate/tmdb-gateway/pkg/proxy"
	"github.com/cinegate/tmdb-gateway/pkg/ratelimit"
	"github.com/cinegate/tmdb-gateway/pkg/upstream"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Setup(logging.DefaultConfig())
		logging.NewLogger("main").Fatal().Err(err).Msg("Configuration error")
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Logging.Level),
		Pretty: cfg.Logging.Pretty,
		Output: os.Stderr,
	}).With().Str("component", "main").Logger()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		cancel()
		logger.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("Failed to connect to Redis")
	}
	cancel()
	logger.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")

	upstreamCfg := upstream.DefaultConfig(cfg.TMDB.BearerToken)
	upstreamCfg.BaseURL = cfg.TMDB.BaseURL
	upstreamCfg.DefaultLanguage = cfg.TMDB.DefaultLanguage
	tmdbClient, err := upstream.New(upstreamCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create TMDB client")
	}

	store := cache.NewStore(redisClient, logging.NewLogger("cache"))

	limiter, err := ratelimit.NewLimiter(ratelimit.NewRedisStore(redisClient), cfg.RateLimits, logging.NewLogger("ratelimit"))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create rate limiter")
	}
	logger.Info().Strs("endpoints", limiter.Endpoints()).Msg("Rate limit policies loaded")

	srv := server.New(
		cfg.Server.Addr,
		proxy.NewHandler(store, tmdbClient),
		proxy.NewBulkHandler(store, tmdbClient, cfg.Bulk.MaxIDs, cfg.Bulk.Concurrency),
		limiter,
		redisClient,
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.Fatal().Err(err).Msg("Server failed")
	case sig := <-stop:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
	}
	if err := redisClient.Close(); err != nil {
		logger.Error().Err(err).Msg("Failed to close Redis connection")
	}
	logger.Info().Msg("Shutdown complete")
}
