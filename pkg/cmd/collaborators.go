package cmd

import (
	"log/slog"

	"github.com/soapbox-hq/soapbox/pkg/collaborators"
	"github.com/soapbox-hq/soapbox/pkg/models"
	"github.com/soapbox-hq/soapbox/pkg/protocol"
)

// NewCollaborators returns the built-in generator and evaluator pair. Real
// LLM-backed collaborators plug in here without touching the engine.
func NewCollaborators(logger *slog.Logger) (protocol.Generator, protocol.Evaluator) {
	return collaborators.NewEchoGenerator(logger), collaborators.NewLengthEvaluator(logger)
}

// NewPublishers returns one publisher per known platform.
func NewPublishers(logger *slog.Logger) map[models.Platform]protocol.Publisher {
	publishers := make(map[models.Platform]protocol.Publisher, len(models.KnownPlatforms))
	for _, platform := range models.KnownPlatforms {
		publishers[platform] = collaborators.NewLogPublisher(logger)
	}

	return publishers
}
