package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/soapbox-hq/soapbox/pkg/models"
	"github.com/soapbox-hq/soapbox/pkg/persistence"
)

// DraftService persists drafts and maintains the active draft pointer for each
// platform. Drafts are immutable once written; a new version is always a new row.
type DraftService struct {
	persistence persistence.Persistence
	logger      *slog.Logger
}

// NewDraftService creates a new draft service.
func NewDraftService(p persistence.Persistence, logger *slog.Logger) *DraftService {
	return &DraftService{
		persistence: p,
		logger:      logger.With("module", "draft_service"),
	}
}

// CreateAndSetActive stores a new draft and points the platform state at it.
// Human-authored drafts flip the platform's override flag so later automated
// regeneration cannot silently replace the human's words.
func (s *DraftService) CreateAndSetActive(ctx context.Context, workflowID string, platform models.Platform, content string, source models.DraftSource, mediaURLs []string, mediaType string) (*models.Draft, error) {
	now := time.Now().UTC()

	draft := &models.Draft{
		ID:         uuid.New().String(),
		WorkflowID: workflowID,
		Platform:   platform,
		Content:    content,
		Source:     source,
		MediaURLs:  mediaURLs,
		MediaType:  mediaType,
		CreatedAt:  now,
	}

	if err := s.persistence.DraftRepository().Save(ctx, draft); err != nil {
		return nil, fmt.Errorf("failed to save draft: %w", err)
	}

	humanOverride := source == models.DraftSourceHuman
	if err := s.persistence.PlatformStateRepository().SetActiveDraft(ctx, workflowID, platform, draft.ID, humanOverride); err != nil {
		return nil, fmt.Errorf("failed to set active draft: %w", err)
	}

	s.logger.DebugContext(ctx, "Draft created",
		"workflow_id", workflowID, "platform", platform, "draft_id", draft.ID, "source", source)

	return draft, nil
}

// ActiveDraft returns the draft currently pointed at by the platform state,
// or nil when the platform has no active draft yet.
func (s *DraftService) ActiveDraft(ctx context.Context, workflowID string, platform models.Platform) (*models.Draft, error) {
	state, err := s.persistence.PlatformStateRepository().GetByWorkflowAndPlatform(ctx, workflowID, platform)
	if err != nil {
		return nil, err
	}

	if state.ActiveDraftID == nil {
		return nil, nil
	}

	return s.persistence.DraftRepository().GetByID(ctx, *state.ActiveDraftID)
}

// UpdatePlatformStatus moves a platform through its review lifecycle.
func (s *DraftService) UpdatePlatformStatus(ctx context.Context, workflowID string, platform models.Platform, status models.PlatformStatus) error {
	return s.persistence.PlatformStateRepository().UpdateStatus(ctx, workflowID, platform, status)
}
