// Package collaborators provides deterministic development implementations of
// the generation, evaluation and publishing contracts. They keep the full
// orchestration path exercisable without any external LLM or platform API.
package collaborators

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/soapbox-hq/soapbox/pkg/models"
	"github.com/soapbox-hq/soapbox/pkg/protocol"
)

// platformLimits mirrors each platform's post length cap.
var platformLimits = map[models.Platform]int{
	models.PlatformLinkedIn: 3000,
	models.PlatformX:        280,
}

// EchoGenerator derives drafts from the source content without calling any
// model. Refinement rounds append the feedback so iteration effects are
// visible in tests and local runs.
type EchoGenerator struct {
	logger *slog.Logger
}

// NewEchoGenerator creates a development generator.
func NewEchoGenerator(logger *slog.Logger) *EchoGenerator {
	return &EchoGenerator{logger: logger.With("module", "echo_generator")}
}

func (g *EchoGenerator) Generate(_ context.Context, req protocol.GenerationRequest) (string, error) {
	var b strings.Builder

	switch req.Context.Mode {
	case models.ModeTemplate:
		fmt.Fprintf(&b, "[%s] template post", req.Platform)

		if id, ok := req.Context.TemplateInput["template_id"].(string); ok {
			fmt.Fprintf(&b, " from %s", id)
		}
	default:
		fmt.Fprintf(&b, "[%s] %s", req.Platform, req.Context.SourceContent)
	}

	if req.FeedbackInstructions != "" {
		fmt.Fprintf(&b, "\n\nrevised per: %s", req.FeedbackInstructions)
	} else if req.PreviousFeedback != "" {
		fmt.Fprintf(&b, "\n\nrevised per: %s", req.PreviousFeedback)
	}

	content := b.String()

	if limit, ok := platformLimits[req.Platform]; ok && len(content) > limit {
		content = content[:limit]
	}

	g.logger.Debug("Generated draft", "platform", req.Platform, "length", len(content))

	return content, nil
}

// LengthEvaluator scores drafts on fit to the platform's length cap. It is
// deterministic: the same draft always gets the same score, which makes the
// regenerate loop reproducible.
type LengthEvaluator struct {
	logger *slog.Logger
}

// NewLengthEvaluator creates a development evaluator.
func NewLengthEvaluator(logger *slog.Logger) *LengthEvaluator {
	return &LengthEvaluator{logger: logger.With("module", "length_evaluator")}
}

func (e *LengthEvaluator) Evaluate(_ context.Context, req protocol.EvaluationRequest) (protocol.EvaluationResult, error) {
	limit, ok := platformLimits[req.Platform]
	if !ok {
		limit = 1000
	}

	if len(req.Content) == 0 {
		return protocol.EvaluationResult{
			Score:    0,
			Feedback: "draft is empty",
		}, nil
	}

	if len(req.Content) > limit {
		return protocol.EvaluationResult{
			Score:    40,
			Feedback: fmt.Sprintf("draft exceeds the %d character limit for %s", limit, req.Platform),
		}, nil
	}

	// Refined drafts score higher, so the loop converges within the cap.
	score := 75 + 5*req.Iteration
	if score > 100 {
		score = 100
	}

	e.logger.Debug("Evaluated draft", "platform", req.Platform, "score", score, "iteration", req.Iteration)

	return protocol.EvaluationResult{
		Score:    score,
		Passed:   true,
		Feedback: "draft fits the platform constraints",
	}, nil
}

// LogPublisher pretends to publish by logging the post and fabricating an
// external ID. Used in development and tests.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher creates a development publisher.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.With("module", "log_publisher")}
}

func (p *LogPublisher) Publish(_ context.Context, req protocol.PublishRequest) (protocol.PublishResult, error) {
	externalID := uuid.New().String()

	p.logger.Info("Publishing content",
		"platform", req.Platform,
		"length", len(req.Content),
		"media_count", len(req.MediaURLs),
		"external_id", externalID)

	return protocol.PublishResult{
		ExternalID: externalID,
		URL:        fmt.Sprintf("https://%s.example.com/posts/%s", req.Platform, externalID),
	}, nil
}
