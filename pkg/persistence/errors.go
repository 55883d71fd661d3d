// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrPlatformStateNotFound indicates no state row exists for (workflow, platform).
	ErrPlatformStateNotFound = errors.New("platform state not found")

	// ErrDraftNotFound indicates a draft was not found by the given identifier.
	ErrDraftNotFound = errors.New("draft not found")

	// ErrJobNotFound indicates a publishing job was not found.
	ErrJobNotFound = errors.New("publishing job not found")

	// ErrDuplicateJob indicates a job for the same (workflow, platform, draft)
	// already exists. Raised by the store's uniqueness constraint.
	ErrDuplicateJob = errors.New("publishing job already exists for this draft")

	// ErrCheckpointNotFound indicates no checkpoint exists for the workflow.
	ErrCheckpointNotFound = errors.New("checkpoint not found")
)

// WorkflowError wraps workflow-related errors with additional context.
type WorkflowError struct {
	Op         string // Operation being performed (e.g., "GetByID", "Save")
	WorkflowID string
	Err        error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s operation failed for workflow %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

func (e *WorkflowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWorkflowError creates a new workflow error with context.
func NewWorkflowError(op, workflowID string, err error) *WorkflowError {
	return &WorkflowError{Op: op, WorkflowID: workflowID, Err: err}
}

// PlatformStateError wraps platform-state errors with additional context.
type PlatformStateError struct {
	Op         string
	WorkflowID string
	Platform   string
	Err        error
}

func (e *PlatformStateError) Error() string {
	return fmt.Sprintf("%s operation failed for platform %s in workflow %s: %v", e.Op, e.Platform, e.WorkflowID, e.Err)
}

func (e *PlatformStateError) Unwrap() error {
	return e.Err
}

func (e *PlatformStateError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewPlatformStateError creates a new platform-state error with context.
func NewPlatformStateError(op, workflowID, platform string, err error) *PlatformStateError {
	return &PlatformStateError{Op: op, WorkflowID: workflowID, Platform: platform, Err: err}
}

// JobError wraps publishing job errors with additional context.
type JobError struct {
	Op    string
	JobID string
	Err   error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("%s operation failed for job %s: %v", e.Op, e.JobID, e.Err)
}

func (e *JobError) Unwrap() error {
	return e.Err
}

func (e *JobError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewJobError creates a new publishing job error with context.
func NewJobError(op, jobID string, err error) *JobError {
	return &JobError{Op: op, JobID: jobID, Err: err}
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsPlatformStateNotFound checks if an error indicates a missing platform state.
func IsPlatformStateNotFound(err error) bool {
	return errors.Is(err, ErrPlatformStateNotFound)
}

// IsDuplicateJob checks if an error indicates a duplicate publishing job.
func IsDuplicateJob(err error) bool {
	return errors.Is(err, ErrDuplicateJob)
}

// IsCheckpointNotFound checks if an error indicates a missing checkpoint.
func IsCheckpointNotFound(err error) bool {
	return errors.Is(err, ErrCheckpointNotFound)
}
