// Package main is the entrypoint for the spectrajobs API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/spectraml/spectrajobs/internal/api"
	"github.com/spectraml/spectrajobs/internal/api/handler"
	mw "github.com/spectraml/spectrajobs/internal/api/middleware"
	"github.com/spectraml/spectrajobs/internal/api/response"
	"github.com/spectraml/spectrajobs/internal/cache"
	"github.com/spectraml/spectrajobs/internal/config"
	"github.com/spectraml/spectrajobs/internal/jobs"
	"github.com/spectraml/spectrajobs/internal/labellings"
	"github.com/spectraml/spectrajobs/internal/queue"
	"github.com/spectraml/spectrajobs/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env, "jobs_root", cfg.Jobs.RootDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Connect to the execution queue broker
	conn, err := amqp.Dial(cfg.Queue.AMQPURL)
	if err != nil {
		return fmt.Errorf("connect broker: %w", err)
	}
	defer conn.Close()

	execQueue, err := queue.NewAMQPQueue(conn)
	if err != nil {
		return fmt.Errorf("create execution queue: %w", err)
	}
	defer execQueue.Close()
	slog.Info("execution queue connected")

	// 6. Create store and services
	pgStore := store.NewPostgresStore(pool)
	jobService := jobs.NewService(pgStore, execQueue, redisCache, cfg.Jobs.RootDir)
	labellingService := labellings.NewService(pgStore)

	// 7. Build router with dependencies
	workerAuth := mw.NewWorkerAuth(cfg.Worker.TokenHash)
	rateLimit := mw.NewRateLimit(redisCache, cfg.Server.RateLimitPerMin)

	deps := api.Dependencies{
		WorkerAuth: workerAuth,
		RateLimit:  rateLimit,

		HealthHandler: healthHandler(pgStore, redisCache),

		InitializeJob: handler.NewInitializeJobHandler(jobService),
		RetrieveJob:   handler.NewRetrieveJobHandler(jobService),
		EditJob:       handler.NewEditJobHandler(jobService),
		RemoveJob:     handler.NewRemoveJobHandler(jobService),
		ProcessJob:    handler.NewProcessJobHandler(jobService),
		EndJob:        handler.NewEndJobHandler(jobService),
		ListJobs:      handler.NewListJobsHandler(jobService),

		InitializeLabelling:      handler.NewInitializeLabellingHandler(labellingService),
		InitializeLabellingBatch: handler.NewInitializeLabellingBatchHandler(labellingService),
		RetrieveLabelling:        handler.NewRetrieveLabellingHandler(labellingService),
		EditLabelling:            handler.NewEditLabellingHandler(labellingService),
		EditLabellingBatch:       handler.NewEditLabellingBatchHandler(labellingService),
		ListLabellings:           handler.NewListLabellingsHandler(labellingService),
	}

	router := api.NewRouter(deps)

	// 8. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
