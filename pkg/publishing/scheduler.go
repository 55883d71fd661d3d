package publishing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/soapbox-hq/soapbox/pkg/persistence"
)

const (
	// DefaultPollInterval is how often the scheduler scans for due jobs.
	DefaultPollInterval = 10 * time.Second

	// DefaultBatchSize caps how many due jobs one pass dispatches.
	DefaultBatchSize = 10
)

// Scheduler is the centralized polling dispatcher for scheduled publishing
// jobs. It scans the ledger for due pending jobs and hands them to the
// executor in publish_at order. Multiple scheduler instances may run
// concurrently; the executor's atomic claim keeps dispatch exactly once.
type Scheduler struct {
	jobs      persistence.PublishingJobRepository
	executor  *Executor
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
	ticker    *time.Ticker
	done      chan bool
	started   bool
	mu        sync.Mutex
}

// NewScheduler creates a publishing scheduler. Zero interval and batch size
// fall back to the defaults.
func NewScheduler(jobs persistence.PublishingJobRepository, executor *Executor, interval time.Duration, batchSize int, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &Scheduler{
		jobs:      jobs,
		executor:  executor,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger.With("module", "publishing_scheduler"),
	}
}

// Start begins the polling loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info("Starting publishing scheduler", "interval", s.interval, "batch_size", s.batchSize)

	s.ticker = time.NewTicker(s.interval)
	s.done = make(chan bool)
	s.started = true

	go s.poll(ctx)

	return nil
}

// Stop gracefully shuts down the polling loop. An in-flight pass finishes.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.logger.Info("Stopping publishing scheduler")

	if s.ticker != nil {
		s.ticker.Stop()
	}

	select {
	case s.done <- true:
	default:
	}

	s.started = false

	return nil
}

func (s *Scheduler) poll(ctx context.Context) {
	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-s.ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one scheduler pass: fetch due pending jobs and dispatch them in
// publish_at order. A failed job never blocks the rest of the batch.
func (s *Scheduler) Tick(ctx context.Context) {
	now := time.Now().UTC()

	due, err := s.jobs.DueJobs(ctx, now, s.batchSize)
	if err != nil {
		s.logger.Error("Failed to fetch due jobs", "error", err)

		return
	}

	if len(due) == 0 {
		return
	}

	s.logger.Info("Dispatching due publishing jobs", "count", len(due))

	for _, job := range due {
		if err := s.executor.Execute(ctx, job); err != nil {
			s.logger.Error("Publishing job execution failed",
				"job_id", job.ID,
				"workflow_id", job.WorkflowID,
				"platform", job.Platform,
				"error", err)
		}
	}
}
