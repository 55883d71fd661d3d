// Package graph implements the workflow orchestration engine: a per-platform
// generate/evaluate/review state machine driven concurrently across platforms
// by a fan-out/merge coordinator, with durable checkpoint/resume around human
// review pauses.
package graph

import "github.com/soapbox-hq/soapbox/pkg/models"

// BranchStatus tags the result of a state-machine step. Suspension is an
// expected outcome modelled as data, never as a control-flow panic.
type BranchStatus string

const (
	// BranchContinuing means the branch routes to another node in this pass.
	BranchContinuing BranchStatus = "continuing"

	// BranchSuspended means the branch paused for human review. Its state is
	// checkpointed and the pass ends for this platform.
	BranchSuspended BranchStatus = "suspended"

	// BranchDone means the branch reached a decided state and needs no
	// further automatic processing.
	BranchDone BranchStatus = "done"
)

// ReviewPrompt is the resumable continuation token yielded when a branch
// suspends: everything a human reviewer needs to pick the work up later.
type ReviewPrompt struct {
	WorkflowID string          `json:"workflow_id"`
	Platform   models.Platform `json:"platform"`
	DraftID    string          `json:"draft_id,omitempty"`
	Message    string          `json:"message"`
}

// BranchResult is the outcome of running one platform branch to its rest
// point for a round.
type BranchResult struct {
	Status BranchStatus
	State  *models.PlatformExecutionState

	// Prompt is set iff Status is BranchSuspended.
	Prompt *ReviewPrompt
}

// node is an internal routing target inside the platform state machine.
type node int

const (
	nodeGenerate node = iota
	nodeEvaluate
	nodeHITL
)
