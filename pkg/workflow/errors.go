// Package workflow provides the services that create workflows, apply human
// review decisions and derive workflow completion.
package workflow

import (
	"errors"

	"github.com/soapbox-hq/soapbox/pkg/models"
	"github.com/soapbox-hq/soapbox/pkg/persistence"
)

// Validation errors (surfaced to the caller, never retried automatically).
var (
	// ErrNoPlatforms is returned when a creation request names no platforms.
	ErrNoPlatforms = errors.New("at least one platform is required")

	// ErrContentRequired is returned for manual mode without source content.
	ErrContentRequired = errors.New("source content is required in manual mode")

	// ErrTemplateRequired is returned for template mode without template input.
	ErrTemplateRequired = errors.New("template input is required in template mode")

	// ErrInvalidTemplateInput is returned when template input fails schema validation.
	ErrInvalidTemplateInput = errors.New("template input failed schema validation")

	// ErrUnknownMode is returned for a creation mode other than manual or template.
	ErrUnknownMode = errors.New("unknown creation mode")
)

// ErrNotAuthorized indicates the acting user does not own the workflow.
// Authorization failures are surfaced distinctly from validation failures.
var ErrNotAuthorized = errors.New("not authorized to modify this workflow")

// IsValidationError checks if an error should surface as a client validation failure.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrNoPlatforms) ||
		errors.Is(err, ErrContentRequired) ||
		errors.Is(err, ErrTemplateRequired) ||
		errors.Is(err, ErrInvalidTemplateInput) ||
		errors.Is(err, ErrUnknownMode) ||
		errors.Is(err, models.ErrUnknownPlatform) ||
		errors.Is(err, models.ErrEditedContentRequired) ||
		errors.Is(err, models.ErrEditedContentForbidden) ||
		errors.Is(err, models.ErrUnsupportedReviewAction)
}

// IsAuthorizationError checks if an error is an ownership failure.
func IsAuthorizationError(err error) bool {
	return errors.Is(err, ErrNotAuthorized)
}

// IsNotFoundError checks if an error indicates a missing workflow or platform.
func IsNotFoundError(err error) bool {
	return persistence.IsWorkflowNotFound(err) ||
		persistence.IsPlatformStateNotFound(err) ||
		errors.Is(err, persistence.ErrDraftNotFound)
}
