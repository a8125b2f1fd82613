// Package web serves the dashboard and the Phillips-curve panel as HTML.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"macropulse/internal/config"
	"macropulse/internal/dashboard"
	"macropulse/internal/macroapi"
	"macropulse/internal/metrics"
	"macropulse/internal/phillips"
)

// Source is everything the pages read from the backend.
type Source interface {
	macroapi.DashboardSource
	macroapi.PhillipsSource
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics reports page outcomes to rec and exposes gatherer on /metrics.
func WithMetrics(rec *metrics.Recorder, gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		if rec != nil {
			s.pageOpts = append(s.pageOpts, dashboard.WithObserver(rec))
			s.panelOpts = append(s.panelOpts, phillips.WithObserver(rec))
		}
		s.gatherer = gatherer
	}
}

// Server wraps the echo instance.
type Server struct {
	echo     *echo.Echo
	cfg      config.ServerConfig
	source   Source
	logger   zerolog.Logger
	gatherer prometheus.Gatherer

	pageOpts  []dashboard.Option
	panelOpts []phillips.Option
}

// NewServer builds the HTTP server and registers its routes.
func NewServer(cfg config.ServerConfig, source Source, logger zerolog.Logger, opts ...Option) (*Server, error) {
	if cfg.RenderWait <= 0 {
		cfg.RenderWait = 20 * time.Second
	}

	s := &Server{
		cfg:    cfg,
		source: source,
		logger: logger.With().Str("component", "web").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	tmpl, err := newRenderer()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = tmpl

	e.Use(requestLogging(s.logger))
	e.Use(recoverPanics(s.logger))

	e.GET("/", s.handleDashboard)
	e.GET("/phillips", s.handlePhillips)
	e.POST("/phillips", s.handlePredict)
	e.GET("/healthz", s.handleHealth)
	if s.gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	s.echo = e
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves on cfg.Addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:         s.cfg.Addr,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.cfg.Addr).Msg("http server listening")
		if err := s.echo.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	s.logger.Info().Msg("http server stopped")
	return nil
}
