package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/netutil"

	"github.com/girderhq/api/internal/config"
	"github.com/girderhq/api/internal/infra/http/middleware"
	"github.com/girderhq/api/internal/infra/redis"
	"github.com/girderhq/api/pkg/logger"
)

// Server wraps the HTTP server with its middleware lifecycle.
type Server struct {
	httpServer   *http.Server
	config       *config.Config
	logger       *logger.Logger
	cleanupFuncs []func()
}

// NewServer creates the HTTP server. The rate limiter is built here so the
// server owns its stop function; pass a Redis client to switch the limiter
// to the distributed sliding window.
func NewServer(cfg *config.Config, log *logger.Logger, deps RouterDeps, redisClient *redis.Client) (*Server, error) {
	s := &Server{
		config: cfg,
		logger: log,
	}

	rateLimitMW, err := s.buildRateLimiter(cfg, log, redisClient)
	if err != nil {
		return nil, err
	}
	deps.RateLimit = rateLimitMW

	s.httpServer = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      NewRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  time.Minute,
	}

	return s, nil
}

func (s *Server) buildRateLimiter(cfg *config.Config, log *logger.Logger, redisClient *redis.Client) (func(http.Handler) http.Handler, error) {
	if !cfg.RateLimit.Enabled {
		return nil, nil
	}

	if cfg.RateLimit.Distributed && redisClient != nil {
		limiter, err := redis.NewRateLimiter(
			redisClient,
			"ratelimit:http",
			cfg.RateLimit.Burst,
			cfg.RateLimit.WindowSize,
			log,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to build distributed rate limiter: %w", err)
		}
		return middleware.DistributedRateLimit(middleware.DistributedRateLimitConfig{
			Limiter: limiter,
			Logger:  log,
		}), nil
	}

	mw, stop := middleware.RateLimitWithStop(&cfg.RateLimit, log)
	s.cleanupFuncs = append(s.cleanupFuncs, stop)
	return mw, nil
}

// Start starts the HTTP server and blocks until it stops. When MaxConns is
// set, the listener caps concurrent accepted connections.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.config.Server.Addr())

	listener, err := net.Listen("tcp", s.config.Server.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Server.Addr(), err)
	}
	if s.config.Server.MaxConns > 0 {
		listener = netutil.LimitListener(listener, s.config.Server.MaxConns)
	}

	if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	for _, cleanup := range s.cleanupFuncs {
		cleanup()
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info("HTTP server stopped")
	return nil
}
