package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/soapbox-hq/soapbox/pkg/events"
	"github.com/soapbox-hq/soapbox/pkg/eventbus"
	"github.com/soapbox-hq/soapbox/pkg/graph"
	"github.com/soapbox-hq/soapbox/pkg/models"
	"github.com/soapbox-hq/soapbox/pkg/persistence"
)

// ErrPlatformDecided is returned when a review action targets a platform that
// already has a final decision.
var ErrPlatformDecided = errors.New("platform already has a final decision")

// IsConflictError checks if an error indicates a state conflict with the
// current platform or job lifecycle.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrPlatformDecided) || errors.Is(err, persistence.ErrDuplicateJob)
}

// defaultRefineFeedback re-opens the generation loop when edit_and_refine
// arrives without explicit instructions.
const defaultRefineFeedback = "Refine the draft, keeping the human edits as the baseline"

// ReviewService applies human review decisions to suspended platform
// branches: accept, reject, or edit with either immediate acceptance or a
// further refinement round.
type ReviewService struct {
	persistence persistence.Persistence
	drafts      *DraftService
	coordinator *graph.Coordinator
	completion  *CompletionService
	eventBus    eventbus.EventPublisher
	logger      *slog.Logger
}

// NewReviewService creates a new review service.
func NewReviewService(p persistence.Persistence, drafts *DraftService, coordinator *graph.Coordinator, completion *CompletionService, bus eventbus.EventPublisher, logger *slog.Logger) *ReviewService {
	return &ReviewService{
		persistence: p,
		drafts:      drafts,
		coordinator: coordinator,
		completion:  completion,
		eventBus:    bus,
		logger:      logger.With("module", "review_service"),
	}
}

// Handle validates and applies one review action. The acting user must own
// the workflow, and the platform must not already be decided or published.
func (s *ReviewService) Handle(ctx context.Context, userID string, req models.ReviewRequest) error {
	workflow, err := s.persistence.WorkflowRepository().GetByID(ctx, req.WorkflowID)
	if err != nil {
		return err
	}

	if workflow.UserID != userID {
		return ErrNotAuthorized
	}

	state, err := s.persistence.PlatformStateRepository().GetByWorkflowAndPlatform(ctx, req.WorkflowID, req.Platform)
	if err != nil {
		return err
	}

	if err := req.Validate(); err != nil {
		return err
	}

	if state.Status.Terminal() || state.Status == models.PlatformStatusAccepted {
		return fmt.Errorf("%w: platform %s is %s", ErrPlatformDecided, req.Platform, state.Status)
	}

	s.logger.InfoContext(ctx, "Applying review action",
		"workflow_id", req.WorkflowID, "platform", req.Platform, "action", req.Action)

	switch req.Action {
	case models.ReviewActionAccept:
		return s.accept(ctx, state, false)

	case models.ReviewActionReject:
		return s.reject(ctx, state)

	case models.ReviewActionEditAndPublish:
		return s.editAndPublish(ctx, state, req.EditedContent)

	case models.ReviewActionEditAndRefine:
		return s.editAndRefine(ctx, req, state)

	default:
		return models.ErrUnsupportedReviewAction
	}
}

// accept marks the platform accepted and folds the decision into the
// checkpoint so later resumes never re-run this branch.
func (s *ReviewService) accept(ctx context.Context, state *models.PlatformState, humanOverride bool) error {
	err := s.persistence.PlatformStateRepository().UpdateStatus(ctx, state.WorkflowID, state.Platform, models.PlatformStatusAccepted)
	if err != nil {
		return fmt.Errorf("failed to accept platform %s: %w", state.Platform, err)
	}

	if err := s.amendCheckpoint(ctx, state.WorkflowID, state.Platform, func(branch *models.PlatformExecutionState) {
		branch.Accepted = true
		branch.AwaitingHuman = false
	}); err != nil {
		return err
	}

	event := events.PlatformAccepted{
		BaseEvent:     newBaseEvent(events.PlatformAcceptedEvent, state.WorkflowID),
		Platform:      state.Platform,
		HumanOverride: humanOverride || state.HumanOverride,
	}
	if state.ActiveDraftID != nil {
		event.DraftID = *state.ActiveDraftID
	}

	publishEvent(ctx, s.eventBus, s.logger, state.WorkflowID, event)

	return s.completion.Recompute(ctx, state.WorkflowID)
}

// reject marks the platform rejected. No content is ever published for it.
func (s *ReviewService) reject(ctx context.Context, state *models.PlatformState) error {
	err := s.persistence.PlatformStateRepository().UpdateStatus(ctx, state.WorkflowID, state.Platform, models.PlatformStatusRejected)
	if err != nil {
		return fmt.Errorf("failed to reject platform %s: %w", state.Platform, err)
	}

	if err := s.amendCheckpoint(ctx, state.WorkflowID, state.Platform, func(branch *models.PlatformExecutionState) {
		branch.Rejected = true
		branch.AwaitingHuman = false
	}); err != nil {
		return err
	}

	publishEvent(ctx, s.eventBus, s.logger, state.WorkflowID, events.PlatformRejected{
		BaseEvent: newBaseEvent(events.PlatformRejectedEvent, state.WorkflowID),
		Platform:  state.Platform,
	})

	return s.completion.Recompute(ctx, state.WorkflowID)
}

// editAndPublish stores the human's version as a new draft and accepts the
// platform in one step, without another generation round.
func (s *ReviewService) editAndPublish(ctx context.Context, state *models.PlatformState, content string) error {
	draft, err := s.storeHumanDraft(ctx, state, content)
	if err != nil {
		return err
	}

	if err := s.amendCheckpoint(ctx, state.WorkflowID, state.Platform, func(branch *models.PlatformExecutionState) {
		branch.ArchiveCurrentDraft()
		branch.CurrentDraft = draft.Snapshot()
	}); err != nil {
		return err
	}

	state.ActiveDraftID = &draft.ID
	state.HumanOverride = true

	return s.accept(ctx, state, true)
}

// editAndRefine stores the human's version, then re-enters the generation
// loop with the human's feedback so the next AI draft builds on the edits.
// The branch normally suspends again for another review round.
func (s *ReviewService) editAndRefine(ctx context.Context, req models.ReviewRequest, state *models.PlatformState) error {
	draft, err := s.storeHumanDraft(ctx, state, req.EditedContent)
	if err != nil {
		return err
	}

	if err := s.amendCheckpoint(ctx, state.WorkflowID, state.Platform, func(branch *models.PlatformExecutionState) {
		branch.ArchiveCurrentDraft()
		branch.CurrentDraft = draft.Snapshot()
	}); err != nil {
		return err
	}

	feedback := req.FeedbackInstructions
	if feedback == "" {
		feedback = defaultRefineFeedback
	}

	_, prompts, err := s.coordinator.Resume(ctx, state.WorkflowID, graph.ResumePayload{
		Platform:             state.Platform,
		FeedbackInstructions: feedback,
	})
	if err != nil {
		return fmt.Errorf("failed to resume workflow %s: %w", state.WorkflowID, err)
	}

	for _, prompt := range prompts {
		publishEvent(ctx, s.eventBus, s.logger, state.WorkflowID, events.ReviewRequested{
			BaseEvent: newBaseEvent(events.ReviewRequestedEvent, state.WorkflowID),
			Platform:  prompt.Platform,
			DraftID:   prompt.DraftID,
			Message:   prompt.Message,
		})
	}

	return nil
}

// storeHumanDraft persists the edited content as a human draft, carrying over
// the media attachments of the draft it replaces.
func (s *ReviewService) storeHumanDraft(ctx context.Context, state *models.PlatformState, content string) (*models.Draft, error) {
	var (
		mediaURLs []string
		mediaType string
	)

	if state.ActiveDraftID != nil {
		previous, err := s.persistence.DraftRepository().GetByID(ctx, *state.ActiveDraftID)
		if err != nil {
			return nil, err
		}

		mediaURLs = previous.MediaURLs
		mediaType = previous.MediaType
	}

	return s.drafts.CreateAndSetActive(ctx, state.WorkflowID, state.Platform, content, models.DraftSourceHuman, mediaURLs, mediaType)
}

// amendCheckpoint applies a mutation to one branch of the stored checkpoint.
// A missing checkpoint is tolerated: the platform row stays authoritative.
func (s *ReviewService) amendCheckpoint(ctx context.Context, workflowID string, platform models.Platform, mutate func(*models.PlatformExecutionState)) error {
	checkpoints := s.persistence.CheckpointRepository()

	execState, err := checkpoints.GetCheckpoint(ctx, workflowID)
	if err != nil {
		if persistence.IsCheckpointNotFound(err) {
			return nil
		}

		return fmt.Errorf("failed to load checkpoint for workflow %s: %w", workflowID, err)
	}

	branch := execState.PlatformBranch(platform)
	if branch == nil {
		return nil
	}

	mutate(branch)

	if err := checkpoints.SaveCheckpoint(ctx, execState); err != nil {
		return fmt.Errorf("failed to checkpoint workflow %s: %w", workflowID, err)
	}

	return nil
}
