package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"

	"casedesk/internal/app"
	"casedesk/internal/cases/retention"
	"casedesk/internal/platform/config"
	"casedesk/internal/platform/logger"
)

// main runs the retention worker: an asynq server executing purge tasks and a
// scheduler enqueueing them every RETENTION_SWEEP_INTERVAL.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat).With("component", "worker")

	if cfg.Redis.URL == "" {
		log.Error("worker cannot start", "error", app.ErrRedisRequired)
		os.Exit(1)
	}
	redisOpt, err := asynq.ParseRedisURI(cfg.Redis.URL)
	if err != nil {
		log.Error("invalid REDIS_URL", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backends, err := app.Open(ctx, cfg, log, prometheus.DefaultRegisterer)
	if err != nil {
		log.Error("failed to open backends", "error", err)
		os.Exit(1)
	}
	defer backends.Close()

	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 2,
		Logger:      newAsynqLogger(log),
	})
	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Location: cfg.ReportLocation(),
		Logger:   newAsynqLogger(log),
	})
	if err := retention.Register(scheduler, cfg.Retention.SweepInterval); err != nil {
		log.Error("failed to register retention schedule", "error", err)
		os.Exit(1)
	}

	if err := scheduler.Start(); err != nil {
		log.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	if err := server.Start(backends.Retention().Handler()); err != nil {
		scheduler.Shutdown()
		log.Error("failed to start worker", "error", err)
		os.Exit(1)
	}
	log.Info("retention worker running", "interval", cfg.Retention.SweepInterval.String())

	<-ctx.Done()
	log.Info("shutting down retention worker")
	scheduler.Shutdown()
	server.Shutdown()
}
