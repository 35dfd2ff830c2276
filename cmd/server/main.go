package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/dkrasnow/worldmood/internal/adapter/analyzer"
	"github.com/dkrasnow/worldmood/internal/adapter/collector"
	"github.com/dkrasnow/worldmood/internal/adapter/httpserver"
	"github.com/dkrasnow/worldmood/internal/adapter/postgres"
	"github.com/dkrasnow/worldmood/internal/adapter/redis"
	"github.com/dkrasnow/worldmood/internal/app"
	"github.com/dkrasnow/worldmood/internal/broadcast"
	"github.com/dkrasnow/worldmood/internal/cache"
	"github.com/dkrasnow/worldmood/internal/config"
	"github.com/dkrasnow/worldmood/internal/logging"
	"github.com/dkrasnow/worldmood/internal/resource"
	"github.com/dkrasnow/worldmood/internal/scheduler"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

func setupRedis(cfg *config.Config) *goredis.Client {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func runGracefulShutdown(srv *httpserver.Server, hub *broadcast.Hub, cancel context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		// Stop the coordinator, sweeper, reaper, and subscriber first.
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		hub.Stop()
		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port,
		"countries", len(cfg.Countries))

	pool := setupDB(cfg)
	defer pool.Close()

	redisClient := setupRedis(cfg)
	defer func() { _ = redisClient.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	postRepo := postgres.NewPostRepo(pool)
	resultRepo := postgres.NewResultRepo(pool)
	publisher := redis.NewPublisher(redisClient, clock)

	resultCache := cache.New(cfg.Cache, clock)
	go resultCache.Run(ctx)

	manager := resource.NewManager(cfg.Resource, analyzer.NewClient(cfg.AnalyzerURL), clock)
	go manager.Run(ctx)

	sched := scheduler.New(cfg, postRepo, clock)
	hub := broadcast.NewHub()

	// The hub is fed through the Redis subscription only, so map clients on
	// every instance see updates exactly once, including from this one.
	service := app.NewService(cfg, clock, resultCache, sched, manager,
		postRepo, resultRepo, publisher, nil)

	subscriber := redis.NewSubscriber(redisClient, hub.Broadcast)
	go subscriber.Run(ctx)

	coordinator := app.NewCoordinator(cfg.Coordinator, clock, sched,
		collector.NewClient(cfg.CollectorURL), service)
	go coordinator.Run(ctx)

	healthChecks := []httpserver.HealthCheck{
		{Name: "postgres", Check: pool.Ping},
		{Name: "redis", Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
	}
	srv := httpserver.NewServer(cfg, service, hub, healthChecks)

	done := runGracefulShutdown(srv, hub, cancel)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
