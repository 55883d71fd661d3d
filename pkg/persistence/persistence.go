// Package persistence provides the data storage abstraction layer for
// workflows, platform states, drafts, publishing jobs and checkpoints.
package persistence

import (
	"context"
	"time"

	"github.com/soapbox-hq/soapbox/pkg/models"
)

// Persistence aggregates the repositories backing the orchestration engine.
type Persistence interface {
	WorkflowRepository() WorkflowRepository
	PlatformStateRepository() PlatformStateRepository
	DraftRepository() DraftRepository
	PublishingJobRepository() PublishingJobRepository
	CheckpointRepository() CheckpointRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository persists workflow aggregates.
type WorkflowRepository interface {
	Save(ctx context.Context, workflow *models.Workflow) error
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Workflow, error)
	UpdateStatus(ctx context.Context, id string, status models.WorkflowStatus, completedAt *time.Time) error
}

// PlatformStateRepository persists per-platform workflow state. Every write
// is a single-row update keyed by (workflow_id, platform).
type PlatformStateRepository interface {
	Save(ctx context.Context, state *models.PlatformState) error
	GetByWorkflowAndPlatform(ctx context.Context, workflowID string, platform models.Platform) (*models.PlatformState, error)
	ListByWorkflow(ctx context.Context, workflowID string) ([]*models.PlatformState, error)
	UpdateStatus(ctx context.Context, workflowID string, platform models.Platform, status models.PlatformStatus) error
	SetActiveDraft(ctx context.Context, workflowID string, platform models.Platform, draftID string, humanOverride bool) error
}

// DraftRepository persists immutable draft snapshots.
type DraftRepository interface {
	Save(ctx context.Context, draft *models.Draft) error
	GetByID(ctx context.Context, id string) (*models.Draft, error)
	ListByWorkflowAndPlatform(ctx context.Context, workflowID string, platform models.Platform) ([]*models.Draft, error)
}

// PublishingJobRepository is the publishing job ledger.
type PublishingJobRepository interface {
	// Create inserts a new job. Returns ErrDuplicateJob when a job for the
	// same (workflow, platform, draft) already exists.
	Create(ctx context.Context, job *models.PublishingJob) error

	GetByID(ctx context.Context, id string) (*models.PublishingJob, error)
	ListByWorkflow(ctx context.Context, workflowID string) ([]*models.PublishingJob, error)

	// DueJobs returns up to limit pending jobs with publish_at <= now,
	// ordered by publish_at ascending.
	DueJobs(ctx context.Context, now time.Time, limit int) ([]*models.PublishingJob, error)

	// MarkRunning atomically flips a job from pending to running. It returns
	// false when the job was not pending anymore, which makes concurrent
	// scheduler passes safe without loop-level mutual exclusion.
	MarkRunning(ctx context.Context, id string) (bool, error)

	// RecordOutcome persists the execution result and increments attempts.
	RecordOutcome(ctx context.Context, job *models.PublishingJob) error

	// Update rewrites scheduling fields of a pending or cancelled job.
	Update(ctx context.Context, job *models.PublishingJob) error
}

// CheckpointRepository durably persists suspended workflow execution state,
// keyed by workflow id, so a run can resume in a different process.
type CheckpointRepository interface {
	SaveCheckpoint(ctx context.Context, state *models.WorkflowExecutionState) error

	// GetCheckpoint returns the latest checkpoint for a workflow, or
	// ErrCheckpointNotFound.
	GetCheckpoint(ctx context.Context, workflowID string) (*models.WorkflowExecutionState, error)

	DeleteCheckpoint(ctx context.Context, workflowID string) error
}
