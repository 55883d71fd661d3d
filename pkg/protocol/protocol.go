// Package protocol defines the collaborator contracts the orchestration engine
// depends on. The engine treats generation, evaluation and publication as
// opaque functions; concrete implementations are wired in at startup.
package protocol

import (
	"context"

	"github.com/soapbox-hq/soapbox/pkg/models"
)

// GenerationContext carries the read-only inputs for one generation call.
type GenerationContext struct {
	Mode          models.CreationMode
	SourceContent string
	TemplateInput map[string]any
	ManualOptions map[string]any
	Resources     []models.ResourceSnapshot
}

// GenerationRequest is one draft generation call for a single platform.
type GenerationRequest struct {
	Platform models.Platform
	Context  GenerationContext

	// PreviousFeedback is the evaluator feedback from the last failed pass.
	PreviousFeedback string

	// FeedbackInstructions are explicit human refinement instructions. When
	// set they take precedence over automatic evaluator feedback.
	FeedbackInstructions string
}

// Generator produces platform-specific draft content.
//
// Implementations must not fail for recoverable quality issues; a returned
// error is treated as a branch failure and aborts the pass.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

// EvaluationRequest is one quality-gate call.
type EvaluationRequest struct {
	Platform  models.Platform
	Content   string
	Context   GenerationContext
	Iteration int
}

// EvaluationResult is the evaluator's verdict. Score is in [0,100].
type EvaluationResult struct {
	Score    int
	Passed   bool
	Feedback string
}

// Evaluator scores a draft against the quality gate.
//
// Implementations must recover internal failures and return a fallback
// passing result instead of an error wherever possible; the state machine
// additionally applies its own default-pass fallback on error so a broken
// evaluator routes drafts to human review rather than stalling the branch.
type Evaluator interface {
	Evaluate(ctx context.Context, req EvaluationRequest) (EvaluationResult, error)
}

// PublishRequest is one publication call for an accepted draft.
type PublishRequest struct {
	Platform  models.Platform
	Content   string
	MediaURLs []string
}

// PublishResult identifies the created post on the external platform.
type PublishResult struct {
	ExternalID string
	URL        string
}

// Publisher pushes content to an external platform. Errors are permanent as
// far as the job executor is concerned: they are recorded, never retried
// automatically.
type Publisher interface {
	Publish(ctx context.Context, req PublishRequest) (PublishResult, error)
}
