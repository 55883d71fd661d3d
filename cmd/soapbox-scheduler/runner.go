// Package main provides the Soapbox publishing scheduler daemon.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/soapbox-hq/soapbox/pkg/publishing"
)

// Runner keeps the scheduler alive until the process receives a shutdown
// signal.
type Runner struct {
	scheduler *publishing.Scheduler
	logger    *slog.Logger
}

func NewRunner(scheduler *publishing.Scheduler, logger *slog.Logger) *Runner {
	return &Runner{
		scheduler: scheduler,
		logger:    logger.With("module", "scheduler_runner"),
	}
}

// Run starts the polling loop and blocks until SIGINT or SIGTERM.
func (r *Runner) Run(ctx context.Context) {
	if err := r.scheduler.Start(ctx); err != nil {
		r.logger.ErrorContext(ctx, "Failed to start scheduler", "error", err)

		return
	}

	r.logger.InfoContext(ctx, "Scheduler started")

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-signals:
		r.logger.InfoContext(ctx, "Received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		r.logger.InfoContext(ctx, "Context cancelled")
	}

	if err := r.scheduler.Stop(ctx); err != nil {
		r.logger.ErrorContext(ctx, "Failed to stop scheduler", "error", err)
	}

	r.logger.InfoContext(ctx, "Scheduler stopped")
}
