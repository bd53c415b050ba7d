// Package main is the entrypoint for a spectrajobs worker process. It
// consumes dispatched jobs for one job type and reports COMPLETE or ERROR
// back through the worker end-report endpoint. The actual job body
// (preprocessing, active-learning iterations) is plugged in by builds that
// link the relevant pipeline; this binary wires the queue and callback
// plumbing around it.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/spectraml/spectrajobs/internal/config"
	"github.com/spectraml/spectrajobs/internal/queue"
	"github.com/spectraml/spectrajobs/internal/workerclient"
	"github.com/spectraml/spectrajobs/pkg/models"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("worker failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadWorkerProcess()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "job_type", cfg.JobType, "api", cfg.APIBaseURL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := amqp.Dial(cfg.AMQPURL)
	if err != nil {
		return fmt.Errorf("connect broker: %w", err)
	}
	defer conn.Close()

	consumer, err := queue.NewConsumer(conn, cfg.JobType)
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}
	defer consumer.Close()
	slog.Info("consuming dispatches", "job_type", cfg.JobType)

	client := workerclient.New(cfg.APIBaseURL, cfg.Token)

	return consumer.Start(ctx, func(ctx context.Context, msg queue.StartMessage) error {
		return execute(ctx, client, msg)
	})
}

// execute runs one dispatched job and reports its outcome. Report failures
// are returned so the delivery is redelivered rather than silently dropped.
func execute(ctx context.Context, client *workerclient.Client, msg queue.StartMessage) error {
	startedAt := time.Now().UTC()
	slog.Info("job started", "job_id", msg.JobID, "type", msg.Type, "dir_path", msg.DirPath)

	runErr := runJobBody(ctx, msg)
	endedAt := time.Now().UTC()

	action := models.EndActionComplete
	if runErr != nil {
		action = models.EndActionError
		slog.Error("job body failed", "job_id", msg.JobID, "error", runErr)
	}

	report := workerclient.EndReport{StartedAt: startedAt, EndedAt: endedAt}
	if err := client.EndJob(ctx, msg.JobID, action, report); err != nil {
		return fmt.Errorf("report end action: %w", err)
	}

	slog.Info("job ended", "job_id", msg.JobID, "action", action,
		"duration_s", endedAt.Sub(startedAt).Seconds())
	return nil
}

// runJobBody is the pluggable execution body. The default build only prepares
// the job directory; pipeline builds replace this with real work.
func runJobBody(_ context.Context, msg queue.StartMessage) error {
	return os.MkdirAll(msg.DirPath, 0o755)
}
