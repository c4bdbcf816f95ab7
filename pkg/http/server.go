package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"SessionLens/pkg/http/middleware"
	applogger "SessionLens/pkg/logger"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ServerOption configures Server.
type ServerOption func(*ServerConfig)

// ServerConfig holds listener and middleware settings.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	SlowThreshold   time.Duration
	MetricsPath     string
	CORS            bool
	Observer        middleware.HTTPObserver
	RateLimiter     echomw.RateLimiterStore
}

// Server wraps an Echo instance with the shared middleware stack.
type Server struct {
	echo *echo.Echo
	cfg  *ServerConfig
	l    *applogger.Logger
}

// NewServer builds the Echo instance and registers every handler.
func NewServer(l *applogger.Logger, handlers []Handler, opts ...ServerOption) *Server {
	cfg := &ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    10 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		SlowThreshold:   500 * time.Millisecond,
		MetricsPath:     "/metrics",
		CORS:            true,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if l == nil {
		l = applogger.Nop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.ReadTimeout
	e.Server.WriteTimeout = cfg.WriteTimeout

	e.Use(middleware.Recover(l))
	e.Use(middleware.RequestLogging(l, cfg.SlowThreshold))
	if cfg.Observer != nil {
		e.Use(middleware.Metrics(cfg.Observer))
	}
	if cfg.CORS {
		e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
			AllowOrigins: []string{"*"},
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}

	if cfg.RateLimiter != nil {
		e.Use(middleware.RateLimit(cfg.RateLimiter, "/health", cfg.MetricsPath))
	}

	for _, h := range handlers {
		if h != nil {
			h.RegisterRoutes(e)
		}
	}
	if cfg.MetricsPath != "" {
		e.GET(cfg.MetricsPath, echo.WrapHandler(promhttp.Handler()))
	}

	return &Server{echo: e, cfg: cfg, l: l}
}

// Start listens in the background. Listener failures are logged.
func (s *Server) Start() {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	go func() {
		s.l.Info("http server listening", applogger.String("addr", addr))
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.l.Error("http server error", applogger.Error(err))
		}
	}()
}

// Stop drains in-flight requests for at most the configured shutdown timeout.
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.l.Info("http server stopped")
	return nil
}

func (s *Server) Echo() *echo.Echo { return s.echo }

func WithHost(host string) ServerOption {
	return func(c *ServerConfig) { c.Host = host }
}

func WithPort(port int) ServerOption {
	return func(c *ServerConfig) { c.Port = port }
}

// WithTimeouts sets read, write and shutdown timeouts.
func WithTimeouts(read, write, shutdown time.Duration) ServerOption {
	return func(c *ServerConfig) {
		c.ReadTimeout = read
		c.WriteTimeout = write
		c.ShutdownTimeout = shutdown
	}
}

// WithSlowThreshold sets the latency above which requests are logged as slow.
func WithSlowThreshold(d time.Duration) ServerOption {
	return func(c *ServerConfig) { c.SlowThreshold = d }
}

// WithMetrics records request latency on o and serves Prometheus on path.
// An empty path disables the scrape endpoint.
func WithMetrics(o middleware.HTTPObserver, path string) ServerOption {
	return func(c *ServerConfig) {
		c.Observer = o
		c.MetricsPath = path
	}
}

func WithCORS(enabled bool) ServerOption {
	return func(c *ServerConfig) { c.CORS = enabled }
}

// WithRateLimit throttles every route except /health and the metrics endpoint.
func WithRateLimit(store echomw.RateLimiterStore) ServerOption {
	return func(c *ServerConfig) { c.RateLimiter = store }
}
