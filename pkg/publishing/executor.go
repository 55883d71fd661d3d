package publishing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/soapbox-hq/soapbox/pkg/events"
	"github.com/soapbox-hq/soapbox/pkg/eventbus"
	"github.com/soapbox-hq/soapbox/pkg/models"
	"github.com/soapbox-hq/soapbox/pkg/otelhelper"
	"github.com/soapbox-hq/soapbox/pkg/persistence"
	"github.com/soapbox-hq/soapbox/pkg/protocol"
)

// Executor dispatches one publishing job to the platform publisher and
// records the outcome on the ledger. Failures are terminal: the job is marked
// failed and left for an operator, never retried automatically.
type Executor struct {
	persistence persistence.Persistence
	publishers  map[models.Platform]protocol.Publisher
	eventBus    eventbus.EventPublisher
	logger      *slog.Logger
	tracer      trace.Tracer
}

// NewExecutor creates a job executor. The tracer may be nil.
func NewExecutor(p persistence.Persistence, publishers map[models.Platform]protocol.Publisher, bus eventbus.EventPublisher, logger *slog.Logger, tracer trace.Tracer) *Executor {
	return &Executor{
		persistence: p,
		publishers:  publishers,
		eventBus:    bus,
		logger:      logger.With("module", "publishing_executor"),
		tracer:      tracer,
	}
}

// Execute runs one job end to end. The pending-to-running flip is atomic in
// the store, so a job picked up by two scheduler passes executes exactly
// once; the loser of the race skips silently.
func (e *Executor) Execute(ctx context.Context, job *models.PublishingJob) error {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "publishing.execute",
		attribute.String(otelhelper.WorkflowIDKey, job.WorkflowID),
		attribute.String(otelhelper.PlatformKey, string(job.Platform)),
		attribute.String(otelhelper.JobIDKey, job.ID),
		attribute.String(otelhelper.DraftIDKey, job.DraftID))
	defer span.End()

	claimed, err := e.persistence.PublishingJobRepository().MarkRunning(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("failed to claim job %s: %w", job.ID, err)
	}

	if !claimed {
		e.logger.DebugContext(ctx, "Job already claimed, skipping", "job_id", job.ID)

		return nil
	}

	job.Status = models.PublishingStatusRunning

	e.logger.InfoContext(ctx, "Executing publishing job",
		"job_id", job.ID, "workflow_id", job.WorkflowID, "platform", job.Platform)

	result, err := e.dispatch(ctx, job)

	now := time.Now().UTC()
	job.ExecutedAt = &now
	job.UpdatedAt = now

	if err != nil {
		otelhelper.SetError(span, err)

		return e.recordFailure(ctx, job, err)
	}

	return e.recordSuccess(ctx, job, result)
}

// dispatch resolves the publisher and draft for the job and performs the
// external call.
func (e *Executor) dispatch(ctx context.Context, job *models.PublishingJob) (protocol.PublishResult, error) {
	publisher, ok := e.publishers[job.Platform]
	if !ok {
		return protocol.PublishResult{}, fmt.Errorf("%w: %s", ErrNoPublisher, job.Platform)
	}

	draft, err := e.persistence.DraftRepository().GetByID(ctx, job.DraftID)
	if err != nil {
		return protocol.PublishResult{}, fmt.Errorf("failed to load draft %s: %w", job.DraftID, err)
	}

	return publisher.Publish(ctx, protocol.PublishRequest{
		Platform:  job.Platform,
		Content:   draft.Content,
		MediaURLs: draft.MediaURLs,
	})
}

func (e *Executor) recordSuccess(ctx context.Context, job *models.PublishingJob, result protocol.PublishResult) error {
	job.Status = models.PublishingStatusSuccess
	job.LastError = ""
	job.ExternalID = result.ExternalID
	job.PostURL = result.URL

	if err := e.persistence.PublishingJobRepository().RecordOutcome(ctx, job); err != nil {
		return fmt.Errorf("failed to record job outcome: %w", err)
	}

	err := e.persistence.PlatformStateRepository().UpdateStatus(ctx, job.WorkflowID, job.Platform, models.PlatformStatusPublished)
	if err != nil {
		return fmt.Errorf("failed to mark platform published: %w", err)
	}

	e.logger.InfoContext(ctx, "Publishing job succeeded",
		"job_id", job.ID, "platform", job.Platform, "external_id", job.ExternalID)

	e.publish(ctx, job.WorkflowID, events.JobSucceeded{
		BaseEvent:  events.NewBase(events.JobSucceededEvent, job.WorkflowID),
		JobID:      job.ID,
		Platform:   job.Platform,
		ExternalID: job.ExternalID,
	})

	return nil
}

// recordFailure marks the job failed. Immediate jobs leave the platform row
// untouched (it was already marked published when the job was accepted);
// scheduled jobs move the platform to failed so the miss is visible.
func (e *Executor) recordFailure(ctx context.Context, job *models.PublishingJob, cause error) error {
	job.Status = models.PublishingStatusFailed
	job.LastError = cause.Error()

	if err := e.persistence.PublishingJobRepository().RecordOutcome(ctx, job); err != nil {
		return fmt.Errorf("failed to record job outcome: %w", err)
	}

	if !job.Immediate {
		err := e.persistence.PlatformStateRepository().UpdateStatus(ctx, job.WorkflowID, job.Platform, models.PlatformStatusFailed)
		if err != nil {
			return fmt.Errorf("failed to mark platform failed: %w", err)
		}
	}

	e.logger.ErrorContext(ctx, "Publishing job failed",
		"job_id", job.ID, "platform", job.Platform, "error", cause)

	e.publish(ctx, job.WorkflowID, events.JobFailed{
		BaseEvent: events.NewBase(events.JobFailedEvent, job.WorkflowID),
		JobID:     job.ID,
		Platform:  job.Platform,
		Error:     job.LastError,
	})

	return cause
}

func (e *Executor) publish(ctx context.Context, key string, event eventbus.Event) {
	if e.eventBus == nil {
		return
	}

	if err := e.eventBus.Publish(ctx, key, event); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}
