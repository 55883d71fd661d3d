package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/soapbox-hq/soapbox/pkg/models"
	"github.com/soapbox-hq/soapbox/pkg/otelhelper"
	"github.com/soapbox-hq/soapbox/pkg/persistence"
	"github.com/soapbox-hq/soapbox/pkg/protocol"
)

// ResumePayload is the externally supplied continuation input for a
// suspended workflow: which platform the human acted on, and optional
// refinement instructions that re-open the generation loop.
type ResumePayload struct {
	Platform             models.Platform
	FeedbackInstructions string
}

// ErrBranchNotFound is returned when a resume addresses a platform that is
// not part of the checkpointed run.
var ErrBranchNotFound = errors.New("platform branch not found in workflow state")

// Coordinator fans a workflow out to one independent platform branch per
// undecided platform, joins all branches, merges their results and loops
// until every branch is at rest. Workflow state is checkpointed after every
// round so a crash or a long human pause never loses progress.
type Coordinator struct {
	machine     *Machine
	checkpoints persistence.CheckpointRepository
	logger      *slog.Logger
	tracer      trace.Tracer
}

// NewCoordinator creates a workflow coordinator. The tracer may be nil.
func NewCoordinator(machine *Machine, checkpoints persistence.CheckpointRepository, logger *slog.Logger, tracer trace.Tracer) *Coordinator {
	return &Coordinator{
		machine:     machine,
		checkpoints: checkpoints,
		logger:      logger.With("module", "workflow_coordinator"),
		tracer:      tracer,
	}
}

// Start runs a fresh workflow execution until quiescence and returns the
// merged state plus the prompts of every branch suspended for review.
func (c *Coordinator) Start(ctx context.Context, state *models.WorkflowExecutionState) (*models.WorkflowExecutionState, []*ReviewPrompt, error) {
	c.logger.Info("Starting workflow execution", "workflow_id", state.WorkflowID, "platforms", len(state.Platforms))

	return c.run(ctx, state)
}

// Resume reloads the latest checkpoint for the workflow, injects the human
// payload into the addressed branch and re-drives the coordinator from that
// point. A further suspension during resume is a normal outcome.
func (c *Coordinator) Resume(ctx context.Context, workflowID string, payload ResumePayload) (*models.WorkflowExecutionState, []*ReviewPrompt, error) {
	state, err := c.checkpoints.GetCheckpoint(ctx, workflowID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load checkpoint for workflow %s: %w", workflowID, err)
	}

	branch := state.PlatformBranch(payload.Platform)
	if branch == nil {
		return nil, nil, fmt.Errorf("%w: workflow %s platform %s", ErrBranchNotFound, workflowID, payload.Platform)
	}

	if payload.FeedbackInstructions != "" {
		// Feedback re-opens the generation loop for exactly this branch.
		branch.FeedbackInstructions = payload.FeedbackInstructions
		branch.AwaitingHuman = false
	}

	c.logger.Info("Resuming workflow execution",
		"workflow_id", workflowID,
		"platform", payload.Platform,
		"with_feedback", payload.FeedbackInstructions != "")

	return c.run(ctx, state)
}

func (c *Coordinator) run(ctx context.Context, state *models.WorkflowExecutionState) (*models.WorkflowExecutionState, []*ReviewPrompt, error) {
	ctx, span := otelhelper.StartSpan(ctx, c.tracer, "workflow.run",
		attribute.String(otelhelper.WorkflowIDKey, state.WorkflowID))
	defer span.End()

	var prompts []*ReviewPrompt

	for round := 1; ; round++ {
		branches := c.undecidedBranches(state)
		if len(branches) == 0 {
			break
		}

		results, err := c.fanOut(ctx, state, branches, round)

		// Merge whatever the round produced before deciding about the error:
		// completed sibling branches keep their progress either way.
		prompts = c.merge(state, results)

		if saveErr := c.checkpoints.SaveCheckpoint(ctx, state); saveErr != nil {
			otelhelper.SetError(span, saveErr)

			return state, prompts, fmt.Errorf("failed to checkpoint workflow %s: %w", state.WorkflowID, saveErr)
		}

		if err != nil {
			otelhelper.SetError(span, err)

			return state, prompts, err
		}

		// Completion check: every branch accepted, rejected or suspended.
		// The loop guard below is defensive; a successful round always ends
		// with every spawned branch quiescent.
		if state.Complete() {
			break
		}

		c.logger.Warn("Workflow not quiescent after merge, re-entering fan-out",
			"workflow_id", state.WorkflowID, "round", round)
	}

	c.logger.Info("Workflow execution quiescent",
		"workflow_id", state.WorkflowID,
		"suspended", len(prompts))

	return state, prompts, nil
}

// undecidedBranches selects the platforms to spawn this round. Platforms
// already accepted or rejected are excluded, which is what lets the loop
// re-enter without re-processing finished branches.
func (c *Coordinator) undecidedBranches(state *models.WorkflowExecutionState) []*models.PlatformExecutionState {
	var branches []*models.PlatformExecutionState

	for _, p := range state.Platforms {
		if !p.Decided() {
			branches = append(branches, p)
		}
	}

	return branches
}

// fanOut runs one branch per platform concurrently and waits for all of them
// (the join barrier). Branch errors are collected, never short-circuited:
// sibling branches always run to their own rest point first.
func (c *Coordinator) fanOut(ctx context.Context, state *models.WorkflowExecutionState, branches []*models.PlatformExecutionState, round int) ([]*BranchResult, error) {
	results := make([]*BranchResult, len(branches))
	branchErrs := make([]error, len(branches))

	group := new(errgroup.Group)

	for i, branch := range branches {
		bctx := BranchContext{
			WorkflowID:    state.WorkflowID,
			UserID:        state.UserID,
			MaxIterations: state.MaxIterations,
			Generation: protocol.GenerationContext{
				Mode:          state.Mode,
				SourceContent: state.SourceContent,
				TemplateInput: state.TemplateInput,
				ManualOptions: state.ManualOptions,
				Resources:     state.Resources,
			},
		}
		branchState := branch.Clone()

		group.Go(func() error {
			branchCtx, branchSpan := otelhelper.StartSpan(ctx, c.tracer, "workflow.branch",
				attribute.String(otelhelper.WorkflowIDKey, state.WorkflowID),
				attribute.String(otelhelper.PlatformKey, string(branchState.Platform)))
			defer branchSpan.End()

			result, err := c.machine.RunBranch(branchCtx, bctx, branchState)
			if err != nil {
				otelhelper.SetError(branchSpan, err)
				branchErrs[i] = err

				// Keep the pre-round state for a failed branch.
				results[i] = &BranchResult{Status: BranchContinuing, State: branch}

				return nil
			}

			branchSpan.SetAttributes(attribute.Int(otelhelper.IterationKey, result.State.Iteration))

			results[i] = result

			return nil
		})
	}

	// Join barrier: merge never runs before every branch has yielded.
	_ = group.Wait()

	if err := errors.Join(branchErrs...); err != nil {
		return results, fmt.Errorf("workflow %s round %d branch failure: %w", state.WorkflowID, round, err)
	}

	return results, nil
}

// merge folds the per-branch results back into the aggregate state, keyed by
// platform, and collects the prompts of suspended branches. Branch order is
// irrelevant; only the joint post-merge state matters.
func (c *Coordinator) merge(state *models.WorkflowExecutionState, results []*BranchResult) []*ReviewPrompt {
	var prompts []*ReviewPrompt

	for _, result := range results {
		if result == nil {
			continue
		}

		for i, p := range state.Platforms {
			if p.Platform == result.State.Platform {
				state.Platforms[i] = result.State

				break
			}
		}

		if result.Status == BranchSuspended && result.Prompt != nil {
			prompts = append(prompts, result.Prompt)
		}
	}

	return prompts
}
