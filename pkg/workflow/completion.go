package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/soapbox-hq/soapbox/pkg/events"
	"github.com/soapbox-hq/soapbox/pkg/eventbus"
	"github.com/soapbox-hq/soapbox/pkg/models"
	"github.com/soapbox-hq/soapbox/pkg/persistence"
)

// CompletionService derives the terminal workflow status from the set of
// platform states. It is the only component allowed to move a workflow into
// completed or cancelled.
type CompletionService struct {
	persistence persistence.Persistence
	eventBus    eventbus.EventPublisher
	logger      *slog.Logger
}

// NewCompletionService creates a new completion service.
func NewCompletionService(p persistence.Persistence, bus eventbus.EventPublisher, logger *slog.Logger) *CompletionService {
	return &CompletionService{
		persistence: p,
		eventBus:    bus,
		logger:      logger.With("module", "completion_service"),
	}
}

// Recompute re-derives the workflow status after a platform decision or a
// publishing outcome. While any platform is still pending, awaiting review or
// holding unpublished accepted content, the workflow stays open. Once no
// platform remains active, the workflow becomes cancelled when every platform
// was rejected and completed otherwise. Recompute is idempotent: calling it on
// an already terminal workflow changes nothing.
func (s *CompletionService) Recompute(ctx context.Context, workflowID string) error {
	workflow, err := s.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return err
	}

	if workflow.Status == models.WorkflowStatusCompleted || workflow.Status == models.WorkflowStatusCancelled {
		return nil
	}

	states, err := s.persistence.PlatformStateRepository().ListByWorkflow(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("failed to list platform states: %w", err)
	}

	if len(states) == 0 {
		return nil
	}

	rejected := 0

	for _, state := range states {
		if state.Status.ReviewActive() {
			return nil
		}

		if state.Status == models.PlatformStatusRejected {
			rejected++
		}
	}

	status := models.WorkflowStatusCompleted
	if rejected == len(states) {
		status = models.WorkflowStatusCancelled
	}

	now := time.Now().UTC()
	if err := s.persistence.WorkflowRepository().UpdateStatus(ctx, workflowID, status, &now); err != nil {
		return fmt.Errorf("failed to update workflow status: %w", err)
	}

	s.logger.InfoContext(ctx, "Workflow reached terminal status",
		"workflow_id", workflowID, "status", status)

	if status == models.WorkflowStatusCancelled {
		s.publish(ctx, workflowID, events.WorkflowCancelled{
			BaseEvent: newBaseEvent(events.WorkflowCancelledEvent, workflowID),
		})
	} else {
		s.publish(ctx, workflowID, events.WorkflowCompleted{
			BaseEvent: newBaseEvent(events.WorkflowCompletedEvent, workflowID),
			Status:    status,
		})
	}

	return nil
}

func (s *CompletionService) publish(ctx context.Context, key string, event eventbus.Event) {
	publishEvent(ctx, s.eventBus, s.logger, key, event)
}

func newBaseEvent(eventType events.EventType, workflowID string) events.BaseEvent {
	return events.NewBase(eventType, workflowID)
}

// publishEvent emits an event without failing the surrounding operation.
// Event delivery is best effort; state changes are already persisted.
func publishEvent(ctx context.Context, bus eventbus.EventPublisher, logger *slog.Logger, key string, event eventbus.Event) {
	if bus == nil {
		return
	}

	if err := bus.Publish(ctx, key, event); err != nil {
		logger.WarnContext(ctx, "Failed to publish event",
			"event_type", event.GetType(), "error", err)
	}
}
