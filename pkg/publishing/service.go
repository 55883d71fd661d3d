package publishing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/soapbox-hq/soapbox/pkg/events"
	"github.com/soapbox-hq/soapbox/pkg/eventbus"
	"github.com/soapbox-hq/soapbox/pkg/models"
	"github.com/soapbox-hq/soapbox/pkg/persistence"
	"github.com/soapbox-hq/soapbox/pkg/workflow"
)

// DefaultTimezone is applied when a scheduling request carries none.
const DefaultTimezone = "UTC"

// CreateJobRequest asks for one accepted draft to be published. A nil
// PublishAt means publish now.
type CreateJobRequest struct {
	WorkflowID string
	Platform   models.Platform
	PublishAt  *time.Time
	Timezone   string
}

// Service creates, cancels and reschedules publishing jobs. A job is only
// ever created for a platform whose draft a human accepted.
type Service struct {
	persistence persistence.Persistence
	executor    *Executor
	completion  *workflow.CompletionService
	eventBus    eventbus.EventPublisher
	logger      *slog.Logger
}

// NewService creates a publishing service.
func NewService(p persistence.Persistence, executor *Executor, completion *workflow.CompletionService, bus eventbus.EventPublisher, logger *slog.Logger) *Service {
	return &Service{
		persistence: p,
		executor:    executor,
		completion:  completion,
		eventBus:    bus,
		logger:      logger.With("module", "publishing_service"),
	}
}

// CreateJob records the intent to publish the platform's active draft.
//
// Immediate jobs (nil PublishAt) mark the platform published, execute
// synchronously and sweep any other jobs already due; a failed immediate
// execution is recorded on the job ledger without reverting the platform.
// Scheduled jobs mark the platform scheduled and wait for the scheduler. Either way the workflow completion check runs
// afterwards, since the platform left the review-active set.
func (s *Service) CreateJob(ctx context.Context, userID string, req CreateJobRequest) (*models.PublishingJob, error) {
	state, err := s.authorize(ctx, userID, req.WorkflowID, req.Platform)
	if err != nil {
		return nil, err
	}

	if state.Status != models.PlatformStatusAccepted {
		return nil, fmt.Errorf("%w: platform %s is %s", ErrPlatformNotAccepted, req.Platform, state.Status)
	}

	if state.ActiveDraftID == nil {
		return nil, fmt.Errorf("%w: platform %s", ErrNoActiveDraft, req.Platform)
	}

	now := time.Now().UTC()

	job := &models.PublishingJob{
		ID:         uuid.New().String(),
		WorkflowID: req.WorkflowID,
		Platform:   req.Platform,
		DraftID:    *state.ActiveDraftID,
		Timezone:   req.Timezone,
		Status:     models.PublishingStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if job.Timezone == "" {
		job.Timezone = DefaultTimezone
	}

	if req.PublishAt == nil {
		job.PublishAt = now
		job.Immediate = true
	} else {
		if req.PublishAt.Before(now) {
			return nil, fmt.Errorf("%w: %s", ErrPublishAtPast, req.PublishAt.Format(time.RFC3339))
		}

		job.PublishAt = req.PublishAt.UTC()
	}

	if err := s.persistence.PublishingJobRepository().Create(ctx, job); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Publishing job created",
		"job_id", job.ID,
		"workflow_id", job.WorkflowID,
		"platform", job.Platform,
		"publish_at", job.PublishAt,
		"immediate", job.Immediate)

	s.publish(ctx, job.WorkflowID, events.JobCreated{
		BaseEvent: events.NewBase(events.JobCreatedEvent, job.WorkflowID),
		JobID:     job.ID,
		Platform:  job.Platform,
		DraftID:   job.DraftID,
		PublishAt: job.PublishAt,
		Immediate: job.Immediate,
	})

	if job.Immediate {
		err := s.persistence.PlatformStateRepository().UpdateStatus(ctx, job.WorkflowID, job.Platform, models.PlatformStatusPublished)
		if err != nil {
			return nil, fmt.Errorf("failed to mark platform published: %w", err)
		}

		// Synchronous dispatch. A failure here is already recorded on the
		// job; the caller still gets the job back for inspection.
		if execErr := s.executor.Execute(ctx, job); execErr != nil {
			s.logger.WarnContext(ctx, "Immediate publish failed", "job_id", job.ID, "error", execErr)
		}

		// An immediate publish doubles as a scheduler pass: anything else
		// already due goes out now instead of waiting for the next poll.
		s.dispatchDue(ctx)
	} else {
		err := s.persistence.PlatformStateRepository().UpdateStatus(ctx, job.WorkflowID, job.Platform, models.PlatformStatusScheduled)
		if err != nil {
			return nil, fmt.Errorf("failed to mark platform scheduled: %w", err)
		}
	}

	if err := s.completion.Recompute(ctx, job.WorkflowID); err != nil {
		return nil, fmt.Errorf("failed to recompute workflow completion: %w", err)
	}

	return job, nil
}

// dispatchDue executes one batch of due pending jobs. The executor's atomic
// claim keeps this safe next to a concurrently polling scheduler.
func (s *Service) dispatchDue(ctx context.Context) {
	due, err := s.persistence.PublishingJobRepository().DueJobs(ctx, time.Now().UTC(), DefaultBatchSize)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to fetch due jobs", "error", err)

		return
	}

	for _, dueJob := range due {
		if err := s.executor.Execute(ctx, dueJob); err != nil {
			s.logger.WarnContext(ctx, "Due job execution failed", "job_id", dueJob.ID, "error", err)
		}
	}
}

// CancelJob cancels a pending job and returns the platform to accepted so a
// new job can be created later.
func (s *Service) CancelJob(ctx context.Context, userID, jobID string) (*models.PublishingJob, error) {
	job, err := s.ownedJob(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status != models.PublishingStatusPending {
		return nil, fmt.Errorf("%w: job %s is %s", ErrJobNotPending, job.ID, job.Status)
	}

	job.Status = models.PublishingStatusCancelled
	job.UpdatedAt = time.Now().UTC()

	if err := s.persistence.PublishingJobRepository().Update(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to cancel job %s: %w", job.ID, err)
	}

	err = s.persistence.PlatformStateRepository().UpdateStatus(ctx, job.WorkflowID, job.Platform, models.PlatformStatusAccepted)
	if err != nil {
		return nil, fmt.Errorf("failed to return platform to accepted: %w", err)
	}

	s.logger.InfoContext(ctx, "Publishing job cancelled", "job_id", job.ID, "workflow_id", job.WorkflowID)

	return job, nil
}

// RescheduleJob moves a pending or cancelled job to a new future time.
// Cancelled jobs return to pending.
func (s *Service) RescheduleJob(ctx context.Context, userID, jobID string, publishAt time.Time, timezone string) (*models.PublishingJob, error) {
	job, err := s.ownedJob(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status != models.PublishingStatusPending && job.Status != models.PublishingStatusCancelled {
		return nil, fmt.Errorf("%w: job %s is %s", ErrJobNotReschedulable, job.ID, job.Status)
	}

	now := time.Now().UTC()
	if publishAt.Before(now) {
		return nil, fmt.Errorf("%w: %s", ErrPublishAtPast, publishAt.Format(time.RFC3339))
	}

	reactivated := job.Status == models.PublishingStatusCancelled

	job.PublishAt = publishAt.UTC()
	job.Status = models.PublishingStatusPending
	job.Immediate = false
	job.UpdatedAt = now

	if timezone != "" {
		job.Timezone = timezone
	}

	if err := s.persistence.PublishingJobRepository().Update(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to reschedule job %s: %w", job.ID, err)
	}

	if reactivated {
		err = s.persistence.PlatformStateRepository().UpdateStatus(ctx, job.WorkflowID, job.Platform, models.PlatformStatusScheduled)
		if err != nil {
			return nil, fmt.Errorf("failed to mark platform scheduled: %w", err)
		}
	}

	s.logger.InfoContext(ctx, "Publishing job rescheduled",
		"job_id", job.ID, "publish_at", job.PublishAt, "reactivated", reactivated)

	return job, nil
}

// ListJobs returns the workflow's jobs for the owning user.
func (s *Service) ListJobs(ctx context.Context, userID, workflowID string) ([]*models.PublishingJob, error) {
	wf, err := s.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if wf.UserID != userID {
		return nil, workflow.ErrNotAuthorized
	}

	return s.persistence.PublishingJobRepository().ListByWorkflow(ctx, workflowID)
}

// authorize loads the platform state after checking workflow ownership.
func (s *Service) authorize(ctx context.Context, userID, workflowID string, platform models.Platform) (*models.PlatformState, error) {
	wf, err := s.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if wf.UserID != userID {
		return nil, workflow.ErrNotAuthorized
	}

	return s.persistence.PlatformStateRepository().GetByWorkflowAndPlatform(ctx, workflowID, platform)
}

func (s *Service) ownedJob(ctx context.Context, userID, jobID string) (*models.PublishingJob, error) {
	job, err := s.persistence.PublishingJobRepository().GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	wf, err := s.persistence.WorkflowRepository().GetByID(ctx, job.WorkflowID)
	if err != nil {
		return nil, err
	}

	if wf.UserID != userID {
		return nil, workflow.ErrNotAuthorized
	}

	return job, nil
}

func (s *Service) publish(ctx context.Context, key string, event eventbus.Event) {
	if s.eventBus == nil {
		return
	}

	if err := s.eventBus.Publish(ctx, key, event); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}
