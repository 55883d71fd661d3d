package models

import "time"

// PublishingStatus is the lifecycle of a publishing job.
type PublishingStatus string

const (
	PublishingStatusPending   PublishingStatus = "pending"   // Created, waiting for execution time
	PublishingStatusRunning   PublishingStatus = "running"   // Scheduler picked it up
	PublishingStatusSuccess   PublishingStatus = "success"   // Published successfully
	PublishingStatusFailed    PublishingStatus = "failed"    // Permanent failure, operator retry only
	PublishingStatusCancelled PublishingStatus = "cancelled" // User cancelled before execution
)

// PublishingJob is an intent to publish one accepted draft to one platform.
//
// Jobs are created only after human acceptance; at most one job exists per
// (workflow, platform, draft), enforced by a uniqueness constraint in the
// store rather than by application logic alone.
type PublishingJob struct {
	ID         string           `json:"id"`
	WorkflowID string           `json:"workflow_id" validate:"required"`
	Platform   Platform         `json:"platform"    validate:"required"`
	DraftID    string           `json:"draft_id"    validate:"required"`
	PublishAt  time.Time        `json:"publish_at"`
	Timezone   string           `json:"timezone"`
	Status     PublishingStatus `json:"status"`
	Attempts   int              `json:"attempts"`
	LastError  string           `json:"last_error,omitempty"`
	Immediate  bool             `json:"immediate"`
	ExternalID string           `json:"external_id,omitempty"`
	PostURL    string           `json:"post_url,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
	ExecutedAt *time.Time       `json:"executed_at,omitempty"`
}

// Due reports whether the job should be dispatched at the given time.
func (j *PublishingJob) Due(now time.Time) bool {
	return j.Status == PublishingStatusPending && !j.PublishAt.After(now)
}
