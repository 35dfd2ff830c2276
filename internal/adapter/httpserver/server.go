// Package httpserver exposes the read-only serving layer over HTTP and
// websockets.
package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/dkrasnow/worldmood/internal/app"
	"github.com/dkrasnow/worldmood/internal/broadcast"
	"github.com/dkrasnow/worldmood/internal/cache"
	"github.com/dkrasnow/worldmood/internal/config"
	"github.com/dkrasnow/worldmood/internal/domain"
)

type moodService interface {
	CountryEmotion(ctx context.Context, country string) (domain.AggregationResult, error)
	WorldView(ctx context.Context) ([]domain.AggregationResult, error)
	Trend(country string) (string, error)
	CountryStats(ctx context.Context, country string) (app.CountryStats, error)
	SchedulerStats(ctx context.Context) (domain.SchedulerStats, error)
	CacheStats() cache.Stats
	Countries() []string
}

// HealthCheck is a named health check function.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	app          moodService
	hub          *broadcast.Hub
	healthChecks []HealthCheck
	startTime    time.Time
}

func NewServer(cfg *config.Config, app moodService, hub *broadcast.Hub, healthChecks []HealthCheck) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:         e,
		config:       cfg,
		app:          app,
		hub:          hub,
		healthChecks: healthChecks,
		startTime:    time.Now(),
	}

	srv.registerRoutes()
	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
