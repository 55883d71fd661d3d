package graph

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/soapbox-hq/soapbox/pkg/models"
	"github.com/soapbox-hq/soapbox/pkg/protocol"
)

// DraftStore is the narrow persistence contract the state machine consumes.
// Implemented by the workflow draft service over the persistence layer.
type DraftStore interface {
	CreateAndSetActive(ctx context.Context, workflowID string, platform models.Platform, content string, source models.DraftSource, mediaURLs []string, mediaType string) (*models.Draft, error)
	ActiveDraft(ctx context.Context, workflowID string, platform models.Platform) (*models.Draft, error)
	UpdatePlatformStatus(ctx context.Context, workflowID string, platform models.Platform, status models.PlatformStatus) error
}

// Config carries the externally configured loop bounds.
type Config struct {
	// MaxIterations caps generate calls per platform in an unattended run.
	MaxIterations int

	// ScoreThreshold is the minimum evaluation score that passes the gate.
	ScoreThreshold int
}

const (
	DefaultMaxIterations  = 3
	DefaultScoreThreshold = 70
)

// DefaultConfig returns the default loop bounds.
func DefaultConfig() Config {
	return Config{MaxIterations: DefaultMaxIterations, ScoreThreshold: DefaultScoreThreshold}
}

// BranchContext is the read-only shared context handed to one branch. Each
// branch receives its own copy; branches never write it.
type BranchContext struct {
	WorkflowID string
	UserID     string
	Generation protocol.GenerationContext

	// MaxIterations overrides the configured cap when positive. Workflows may
	// carry their own cap, chosen at creation time.
	MaxIterations int
}

// Machine drives a single platform's generate -> evaluate -> (regenerate | review)
// loop. Iterations within one branch are strictly sequential.
type Machine struct {
	drafts    DraftStore
	generator protocol.Generator
	evaluator protocol.Evaluator
	config    Config
	logger    *slog.Logger
}

// NewMachine creates a platform state machine.
func NewMachine(drafts DraftStore, generator protocol.Generator, evaluator protocol.Evaluator, config Config, logger *slog.Logger) *Machine {
	if config.MaxIterations <= 0 {
		config.MaxIterations = DefaultMaxIterations
	}

	if config.ScoreThreshold <= 0 {
		config.ScoreThreshold = DefaultScoreThreshold
	}

	return &Machine{
		drafts:    drafts,
		generator: generator,
		evaluator: evaluator,
		config:    config,
		logger:    logger.With("module", "platform_machine"),
	}
}

// RunBranch executes one platform branch until it suspends or terminates.
// Generation and storage errors abort the pass and propagate; evaluation
// errors are recovered locally with a default-pass fallback.
func (m *Machine) RunBranch(ctx context.Context, bctx BranchContext, state *models.PlatformExecutionState) (*BranchResult, error) {
	logger := m.logger.With("workflow_id", bctx.WorkflowID, "platform", state.Platform)

	// A branch that is already at its pause point re-enters at the review
	// node, not at generation. Only an injected feedback payload (which
	// clears AwaitingHuman) re-opens the generation loop.
	next := nodeGenerate
	if state.AwaitingHuman {
		next = nodeHITL
	}

	for {
		switch next {
		case nodeGenerate:
			if err := m.generate(ctx, bctx, state, logger); err != nil {
				return nil, err
			}

			next = nodeEvaluate

		case nodeEvaluate:
			next = m.evaluate(ctx, bctx, state, logger)

		case nodeHITL:
			return m.hitl(ctx, bctx, state, logger)
		}
	}
}

// generate produces a new AI draft for this platform and makes it active.
// Re-entry safety: when a draft already exists and no human feedback is
// pending, generation is a no-op.
func (m *Machine) generate(ctx context.Context, bctx BranchContext, state *models.PlatformExecutionState, logger *slog.Logger) error {
	if state.CurrentDraft != nil && state.FeedbackInstructions == "" {
		logger.Debug("Draft already exists and no feedback pending, skipping generation")

		return nil
	}

	state.ArchiveCurrentDraft()

	previousFeedback := ""
	if state.LastEvaluation != nil {
		previousFeedback = state.LastEvaluation.Feedback
	}

	logger.Info("Generating draft", "iteration", state.Iteration+1)

	content, err := m.generator.Generate(ctx, protocol.GenerationRequest{
		Platform:             state.Platform,
		Context:              bctx.Generation,
		PreviousFeedback:     previousFeedback,
		FeedbackInstructions: state.FeedbackInstructions,
	})
	if err != nil {
		return fmt.Errorf("generation failed for platform %s: %w", state.Platform, err)
	}

	mediaURLs, mediaType := mediaFromResources(bctx.Generation.Resources)

	draft, err := m.drafts.CreateAndSetActive(ctx, bctx.WorkflowID, state.Platform, content, models.DraftSourceAI, mediaURLs, mediaType)
	if err != nil {
		return fmt.Errorf("failed to persist draft for platform %s: %w", state.Platform, err)
	}

	state.CurrentDraft = draft.Snapshot()
	state.Iteration++
	// Consume the instructions so one feedback round yields one regeneration.
	state.FeedbackInstructions = ""

	logger.Info("Draft generated", "draft_id", draft.ID, "length", len(content), "iteration", state.Iteration)

	return nil
}

// evaluate scores the current draft and routes the branch: pass -> review,
// fail under the cap -> regenerate, fail at the cap -> force a human decision.
func (m *Machine) evaluate(ctx context.Context, bctx BranchContext, state *models.PlatformExecutionState, logger *slog.Logger) node {
	if state.Decided() {
		logger.Debug("Platform already decided, skipping evaluation")

		return nodeHITL
	}

	if state.CurrentDraft == nil {
		logger.Warn("No draft to evaluate, sending to review")

		return nodeHITL
	}

	result, err := m.evaluator.Evaluate(ctx, protocol.EvaluationRequest{
		Platform:  state.Platform,
		Content:   state.CurrentDraft.Content,
		Context:   bctx.Generation,
		Iteration: state.Iteration,
	})
	if err != nil {
		// Evaluator failures must not stall the branch: fall back to a
		// passing score at the threshold so a human decides instead.
		logger.Warn("Evaluation failed, falling back to default passing score", "error", err)

		result = protocol.EvaluationResult{
			Score:    m.config.ScoreThreshold,
			Passed:   true,
			Feedback: "automatic evaluation unavailable, routed to human review",
		}
	}

	maxIterations := m.config.MaxIterations
	if bctx.MaxIterations > 0 {
		maxIterations = bctx.MaxIterations
	}

	passed := result.Score >= m.config.ScoreThreshold

	state.LastEvaluation = &models.EvaluationSnapshot{
		Score:     result.Score,
		Passed:    passed,
		Feedback:  result.Feedback,
		Iteration: state.Iteration,
	}

	logger.Info("Evaluation complete",
		"score", result.Score,
		"passed", passed,
		"iteration", state.Iteration,
		"max_iterations", maxIterations)

	if passed {
		return nodeHITL
	}

	if state.Iteration < maxIterations {
		logger.Info("Draft failed evaluation, regenerating")
		state.ArchiveCurrentDraft()

		return nodeGenerate
	}

	logger.Warn("Max iterations reached, forcing human review", "score", result.Score)

	return nodeHITL
}

// hitl marks the platform as awaiting review and suspends the branch,
// yielding a resumable prompt. Re-entry on an already suspended or decided
// branch is a no-op.
func (m *Machine) hitl(ctx context.Context, bctx BranchContext, state *models.PlatformExecutionState, logger *slog.Logger) (*BranchResult, error) {
	if state.Decided() {
		return &BranchResult{Status: BranchDone, State: state}, nil
	}

	prompt := &ReviewPrompt{
		WorkflowID: bctx.WorkflowID,
		Platform:   state.Platform,
		Message:    fmt.Sprintf("Please review the draft for %s", state.Platform),
	}
	if state.CurrentDraft != nil {
		prompt.DraftID = state.CurrentDraft.DraftID
	}

	if state.AwaitingHuman {
		logger.Debug("Already awaiting human review")

		return &BranchResult{Status: BranchSuspended, State: state, Prompt: prompt}, nil
	}

	err := m.drafts.UpdatePlatformStatus(ctx, bctx.WorkflowID, state.Platform, models.PlatformStatusAwaitingReview)
	if err != nil {
		return nil, fmt.Errorf("failed to mark platform %s awaiting review: %w", state.Platform, err)
	}

	state.AwaitingHuman = true

	logger.Info("Requesting human review", "draft_id", prompt.DraftID)

	return &BranchResult{Status: BranchSuspended, State: state, Prompt: prompt}, nil
}

// mediaFromResources extracts publishable media attachments from workflow
// resources. Mixed image/video sets are tagged "mixed".
func mediaFromResources(resources []models.ResourceSnapshot) ([]string, string) {
	var (
		urls      []string
		mediaType string
	)

	for _, r := range resources {
		if r.Type != "image" && r.Type != "video" {
			continue
		}

		urls = append(urls, r.Source)

		switch {
		case mediaType == "":
			mediaType = r.Type
		case mediaType != r.Type:
			mediaType = "mixed"
		}
	}

	return urls, mediaType
}
