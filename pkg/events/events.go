// Package events defines event types for workflow and publishing lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/soapbox-hq/soapbox/pkg/models"
)

type EventType string

// Kafka topic carrying all lifecycle events.
const Topic = "soapbox.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Workflow lifecycle events.
	WorkflowCreatedEvent   EventType = "workflow.created"
	WorkflowCompletedEvent EventType = "workflow.completed"
	WorkflowCancelledEvent EventType = "workflow.cancelled"

	// Platform review events.
	ReviewRequestedEvent  EventType = "platform.review_requested"
	PlatformAcceptedEvent EventType = "platform.accepted"
	PlatformRejectedEvent EventType = "platform.rejected"

	// Publishing events.
	JobCreatedEvent   EventType = "publishing.job.created"
	JobSucceededEvent EventType = "publishing.job.succeeded"
	JobFailedEvent    EventType = "publishing.job.failed"
)

type BaseEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	WorkflowID string    `json:"workflow_id"`
}

// NewBase stamps a fresh event envelope for the given workflow.
func NewBase(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
	}
}

type WorkflowCreated struct {
	BaseEvent

	UserID    string            `json:"user_id"`
	Platforms []models.Platform `json:"platforms"`
}

func (e WorkflowCreated) GetType() EventType { return WorkflowCreatedEvent }

type WorkflowCompleted struct {
	BaseEvent

	Status models.WorkflowStatus `json:"status"`
}

func (e WorkflowCompleted) GetType() EventType { return WorkflowCompletedEvent }

type WorkflowCancelled struct {
	BaseEvent
}

func (e WorkflowCancelled) GetType() EventType { return WorkflowCancelledEvent }

type ReviewRequested struct {
	BaseEvent

	Platform models.Platform `json:"platform"`
	DraftID  string          `json:"draft_id,omitempty"`
	Message  string          `json:"message"`
}

func (e ReviewRequested) GetType() EventType { return ReviewRequestedEvent }

type PlatformAccepted struct {
	BaseEvent

	Platform models.Platform `json:"platform"`
	DraftID  string          `json:"draft_id,omitempty"`

	// HumanOverride is true when the accepted content was edited by a human.
	HumanOverride bool `json:"human_override"`
}

func (e PlatformAccepted) GetType() EventType { return PlatformAcceptedEvent }

type PlatformRejected struct {
	BaseEvent

	Platform models.Platform `json:"platform"`
}

func (e PlatformRejected) GetType() EventType { return PlatformRejectedEvent }

type JobCreated struct {
	BaseEvent

	JobID     string          `json:"job_id"`
	Platform  models.Platform `json:"platform"`
	DraftID   string          `json:"draft_id"`
	PublishAt time.Time       `json:"publish_at"`
	Immediate bool            `json:"immediate"`
}

func (e JobCreated) GetType() EventType { return JobCreatedEvent }

type JobSucceeded struct {
	BaseEvent

	JobID      string          `json:"job_id"`
	Platform   models.Platform `json:"platform"`
	ExternalID string          `json:"external_id,omitempty"`
}

func (e JobSucceeded) GetType() EventType { return JobSucceededEvent }

type JobFailed struct {
	BaseEvent

	JobID    string          `json:"job_id"`
	Platform models.Platform `json:"platform"`
	Error    string          `json:"error"`
}

func (e JobFailed) GetType() EventType { return JobFailedEvent }
