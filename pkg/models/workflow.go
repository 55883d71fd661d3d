package models

import "time"

// WorkflowStatus represents the high-level lifecycle state of a workflow.
type WorkflowStatus string

const (
	WorkflowStatusCreated        WorkflowStatus = "created"
	WorkflowStatusInProgress     WorkflowStatus = "in_progress"
	WorkflowStatusAwaitingReview WorkflowStatus = "awaiting_review"
	WorkflowStatusCompleted      WorkflowStatus = "completed"
	WorkflowStatusCancelled      WorkflowStatus = "cancelled"
)

// Workflow is the root aggregate for one content creation session.
//
// It owns one PlatformState per requested platform and the drafts produced for
// them. Status is derived: only the completion aggregator transitions it once
// every platform has reached a final state.
type Workflow struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"     validate:"required"`
	Status      WorkflowStatus `json:"status"      validate:"required"`
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// PlatformState is the per-platform authority inside a workflow: HITL
// decisions, the active draft pointer and publishing readiness.
//
// (WorkflowID, Platform) is unique. Rows are mutated only by the platform
// state machine and by human review actions, always as single-row updates.
type PlatformState struct {
	ID            string         `json:"id"`
	WorkflowID    string         `json:"workflow_id" validate:"required"`
	Platform      Platform       `json:"platform"    validate:"required"`
	Status        PlatformStatus `json:"status"`
	ActiveDraftID *string        `json:"active_draft_id,omitempty"`
	HumanOverride bool           `json:"human_override"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}
