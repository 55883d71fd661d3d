package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"

	"github.com/soapbox-hq/soapbox/pkg/events"
	"github.com/soapbox-hq/soapbox/pkg/eventbus"
	"github.com/soapbox-hq/soapbox/pkg/graph"
	"github.com/soapbox-hq/soapbox/pkg/models"
	"github.com/soapbox-hq/soapbox/pkg/persistence"
)

// templateInputSchema constrains template mode input: which template to fill
// and the field values to fill it with.
const templateInputSchema = `{
	"type": "object",
	"required": ["template_id", "fields"],
	"properties": {
		"template_id": {"type": "string", "minLength": 1},
		"fields": {
			"type": "object",
			"additionalProperties": {"type": ["string", "number", "boolean"]}
		}
	},
	"additionalProperties": false
}`

// CreateRequest is the input for starting a new content workflow.
type CreateRequest struct {
	UserID        string
	Title         string
	Description   string
	Mode          models.CreationMode
	SourceContent string
	TemplateInput map[string]any
	ManualOptions map[string]any
	Resources     []models.ResourceSnapshot
	Platforms     []models.Platform
	MaxIterations int
}

// WorkflowView aggregates a workflow with its per-platform states and active
// drafts for read endpoints.
type WorkflowView struct {
	Workflow  *models.Workflow        `json:"workflow"`
	Platforms []*PlatformView         `json:"platforms"`
	Jobs      []*models.PublishingJob `json:"jobs,omitempty"`
}

// PlatformView pairs a platform state with its active draft.
type PlatformView struct {
	State       *models.PlatformState `json:"state"`
	ActiveDraft *models.Draft         `json:"active_draft,omitempty"`
}

// WorkflowService creates workflows and drives their execution through the
// coordinator.
type WorkflowService struct {
	persistence persistence.Persistence
	coordinator *graph.Coordinator
	eventBus    eventbus.EventPublisher
	schema      *gojsonschema.Schema
	logger      *slog.Logger
}

// NewWorkflowService creates a new workflow service.
func NewWorkflowService(p persistence.Persistence, coordinator *graph.Coordinator, bus eventbus.EventPublisher, logger *slog.Logger) (*WorkflowService, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(templateInputSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile template input schema: %w", err)
	}

	return &WorkflowService{
		persistence: p,
		coordinator: coordinator,
		eventBus:    bus,
		schema:      schema,
		logger:      logger.With("module", "workflow_service"),
	}, nil
}

// Create validates the request, persists the workflow aggregate and returns
// the execution state ready to be run. Execution itself is a separate step so
// callers can run it off the request path.
func (s *WorkflowService) Create(ctx context.Context, req CreateRequest) (*models.Workflow, *models.WorkflowExecutionState, error) {
	if err := s.validateCreate(req); err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()

	workflow := &models.Workflow{
		ID:          uuid.New().String(),
		UserID:      req.UserID,
		Status:      models.WorkflowStatusCreated,
		Title:       req.Title,
		Description: req.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.persistence.WorkflowRepository().Save(ctx, workflow); err != nil {
		return nil, nil, fmt.Errorf("failed to save workflow: %w", err)
	}

	branches := make([]*models.PlatformExecutionState, 0, len(req.Platforms))

	for _, platform := range req.Platforms {
		state := &models.PlatformState{
			ID:         uuid.New().String(),
			WorkflowID: workflow.ID,
			Platform:   platform,
			Status:     models.PlatformStatusPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		}

		if err := s.persistence.PlatformStateRepository().Save(ctx, state); err != nil {
			return nil, nil, fmt.Errorf("failed to save platform state for %s: %w", platform, err)
		}

		branches = append(branches, &models.PlatformExecutionState{Platform: platform})
	}

	execState := &models.WorkflowExecutionState{
		WorkflowID:    workflow.ID,
		UserID:        req.UserID,
		Mode:          req.Mode,
		SourceContent: req.SourceContent,
		TemplateInput: req.TemplateInput,
		ManualOptions: req.ManualOptions,
		Resources:     req.Resources,
		Platforms:     branches,
		MaxIterations: req.MaxIterations,
	}

	s.logger.InfoContext(ctx, "Workflow created",
		"workflow_id", workflow.ID, "user_id", req.UserID, "mode", req.Mode, "platforms", len(req.Platforms))

	publishEvent(ctx, s.eventBus, s.logger, workflow.ID, events.WorkflowCreated{
		BaseEvent: newBaseEvent(events.WorkflowCreatedEvent, workflow.ID),
		UserID:    req.UserID,
		Platforms: req.Platforms,
	})

	return workflow, execState, nil
}

// Run drives the coordinator for a freshly created workflow until every
// branch is at rest, then reflects the outcome on the workflow row and emits
// a review request per suspended branch.
func (s *WorkflowService) Run(ctx context.Context, state *models.WorkflowExecutionState) error {
	if err := s.persistence.WorkflowRepository().UpdateStatus(ctx, state.WorkflowID, models.WorkflowStatusInProgress, nil); err != nil {
		return fmt.Errorf("failed to mark workflow in progress: %w", err)
	}

	_, prompts, err := s.coordinator.Start(ctx, state)
	if err != nil {
		return fmt.Errorf("workflow %s execution failed: %w", state.WorkflowID, err)
	}

	return s.afterRun(ctx, state.WorkflowID, prompts)
}

// afterRun publishes review prompts and moves the workflow into
// awaiting_review when any branch suspended.
func (s *WorkflowService) afterRun(ctx context.Context, workflowID string, prompts []*graph.ReviewPrompt) error {
	if len(prompts) == 0 {
		return nil
	}

	if err := s.persistence.WorkflowRepository().UpdateStatus(ctx, workflowID, models.WorkflowStatusAwaitingReview, nil); err != nil {
		return fmt.Errorf("failed to mark workflow awaiting review: %w", err)
	}

	for _, prompt := range prompts {
		publishEvent(ctx, s.eventBus, s.logger, workflowID, events.ReviewRequested{
			BaseEvent: newBaseEvent(events.ReviewRequestedEvent, workflowID),
			Platform:  prompt.Platform,
			DraftID:   prompt.DraftID,
			Message:   prompt.Message,
		})
	}

	return nil
}

// Get returns the workflow with its platform states and active drafts. The
// acting user must own the workflow.
func (s *WorkflowService) Get(ctx context.Context, userID, workflowID string) (*WorkflowView, error) {
	workflow, err := s.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if workflow.UserID != userID {
		return nil, ErrNotAuthorized
	}

	states, err := s.persistence.PlatformStateRepository().ListByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list platform states: %w", err)
	}

	view := &WorkflowView{Workflow: workflow}

	for _, state := range states {
		pv := &PlatformView{State: state}

		if state.ActiveDraftID != nil {
			draft, err := s.persistence.DraftRepository().GetByID(ctx, *state.ActiveDraftID)
			if err != nil {
				return nil, err
			}

			pv.ActiveDraft = draft
		}

		view.Platforms = append(view.Platforms, pv)
	}

	jobs, err := s.persistence.PublishingJobRepository().ListByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list publishing jobs: %w", err)
	}

	view.Jobs = jobs

	return view, nil
}

// List returns the user's workflows, newest first.
func (s *WorkflowService) List(ctx context.Context, userID string) ([]*models.Workflow, error) {
	return s.persistence.WorkflowRepository().ListByUser(ctx, userID)
}

func (s *WorkflowService) validateCreate(req CreateRequest) error {
	if len(req.Platforms) == 0 {
		return ErrNoPlatforms
	}

	seen := make(map[models.Platform]bool, len(req.Platforms))

	for _, platform := range req.Platforms {
		if _, err := models.ParsePlatform(string(platform)); err != nil {
			return err
		}

		if seen[platform] {
			return fmt.Errorf("%w: duplicate platform %s", models.ErrUnknownPlatform, platform)
		}

		seen[platform] = true
	}

	switch req.Mode {
	case models.ModeManual:
		if strings.TrimSpace(req.SourceContent) == "" {
			return ErrContentRequired
		}

	case models.ModeTemplate:
		if len(req.TemplateInput) == 0 {
			return ErrTemplateRequired
		}

		result, err := s.schema.Validate(gojsonschema.NewGoLoader(req.TemplateInput))
		if err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidTemplateInput, err)
		}

		if !result.Valid() {
			details := make([]string, 0, len(result.Errors()))
			for _, e := range result.Errors() {
				details = append(details, e.String())
			}

			return fmt.Errorf("%w: %s", ErrInvalidTemplateInput, strings.Join(details, "; "))
		}

	default:
		return fmt.Errorf("%w: %q", ErrUnknownMode, req.Mode)
	}

	return nil
}
