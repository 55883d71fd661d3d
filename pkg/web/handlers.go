// Package web provides HTTP handlers and REST API endpoints for content workflows.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/soapbox-hq/soapbox/pkg/models"
	"github.com/soapbox-hq/soapbox/pkg/persistence"
	"github.com/soapbox-hq/soapbox/pkg/publishing"
	"github.com/soapbox-hq/soapbox/pkg/workflow"
)

// userIDHeader carries the acting user. Authentication happens upstream; the
// API trusts the header the gateway injects.
const userIDHeader = "X-User-ID"

type APIHandlers struct {
	workflowService   *workflow.WorkflowService
	reviewService     *workflow.ReviewService
	draftService      *workflow.DraftService
	publishingService *publishing.Service
	persistence       persistence.Persistence
	validator         *validator.Validate
	logger            *slog.Logger
}

func NewAPIHandlers(
	workflowService *workflow.WorkflowService,
	reviewService *workflow.ReviewService,
	draftService *workflow.DraftService,
	publishingService *publishing.Service,
	p persistence.Persistence,
	validate *validator.Validate,
	logger *slog.Logger,
) *APIHandlers {
	return &APIHandlers{
		workflowService:   workflowService,
		reviewService:     reviewService,
		draftService:      draftService,
		publishingService: publishingService,
		persistence:       p,
		validator:         validate,
		logger:            logger.With("module", "api_handlers"),
	}
}

// CreateWorkflow starts a new content workflow. Generation runs off the
// request path; the response carries the workflow in its created state and
// review prompts arrive through events.
func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	// The header value aliases fasthttp's request buffer and is only valid
	// until this handler returns; it must be copied before it escapes into
	// the persisted workflow and the background goroutine.
	userID := strings.Clone(c.Get(userIDHeader))
	if userID == "" {
		return unauthorized(c, "missing "+userIDHeader+" header")
	}

	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, execState, err := h.workflowService.Create(c.Context(), workflow.CreateRequest{
		UserID:        userID,
		Title:         req.Title,
		Description:   req.Description,
		Mode:          models.CreationMode(req.Mode),
		SourceContent: req.Content,
		TemplateInput: req.TemplateInput,
		ManualOptions: req.Options,
		Resources:     req.resources(),
		Platforms:     req.platforms(),
		MaxIterations: req.MaxIterations,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	// Snapshot the platform list now: once the goroutine below starts, the
	// coordinator owns execState and rewrites its branches.
	platforms := execState.PlatformNames()

	// Drive generation in the background; it outlives this request.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		if err := h.workflowService.Run(ctx, execState); err != nil {
			h.logger.Error("Workflow execution failed", "workflow_id", created.ID, "error", err)
		}
	}()

	return c.Status(fiber.StatusAccepted).JSON(WorkflowResponse{
		Workflow:  created,
		Platforms: platforms,
	})
}

// GetWorkflows lists the acting user's workflows.
func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	userID := c.Get(userIDHeader)
	if userID == "" {
		return unauthorized(c, "missing "+userIDHeader+" header")
	}

	workflows, err := h.workflowService.List(c.Context(), userID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"workflows": workflows})
}

// GetWorkflow returns one workflow with platform states, active drafts and jobs.
func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	userID := c.Get(userIDHeader)
	if userID == "" {
		return unauthorized(c, "missing "+userIDHeader+" header")
	}

	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	view, err := h.workflowService.Get(c.Context(), userID, id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(view)
}

// GetDrafts returns the full draft history for one platform of a workflow.
func (h *APIHandlers) GetDrafts(c fiber.Ctx) error {
	userID := c.Get(userIDHeader)
	if userID == "" {
		return unauthorized(c, "missing "+userIDHeader+" header")
	}

	id := c.Params("id")

	platform, err := models.ParsePlatform(c.Params("platform"))
	if err != nil {
		return badRequest(c, err.Error())
	}

	// Ownership check happens in the workflow lookup.
	if _, err := h.workflowService.Get(c.Context(), userID, id); err != nil {
		return handleServiceError(c, err)
	}

	drafts, err := h.persistence.DraftRepository().ListByWorkflowAndPlatform(c.Context(), id, platform)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"drafts": drafts})
}

// ReviewPlatform applies a human review action to one platform.
func (h *APIHandlers) ReviewPlatform(c fiber.Ctx) error {
	userID := c.Get(userIDHeader)
	if userID == "" {
		return unauthorized(c, "missing "+userIDHeader+" header")
	}

	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req ReviewRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	platform, err := models.ParsePlatform(req.Platform)
	if err != nil {
		return badRequest(c, err.Error())
	}

	err = h.reviewService.Handle(c.Context(), userID, models.ReviewRequest{
		WorkflowID:           id,
		Platform:             platform,
		Action:               models.ReviewAction(req.Action),
		EditedContent:        req.EditedContent,
		FeedbackInstructions: req.FeedbackInstructions,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	view, err := h.workflowService.Get(c.Context(), userID, id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(view)
}

// PublishPlatform creates a publishing job for an accepted platform.
func (h *APIHandlers) PublishPlatform(c fiber.Ctx) error {
	userID := c.Get(userIDHeader)
	if userID == "" {
		return unauthorized(c, "missing "+userIDHeader+" header")
	}

	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req PublishRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	platform, err := models.ParsePlatform(req.Platform)
	if err != nil {
		return badRequest(c, err.Error())
	}

	job, err := h.publishingService.CreateJob(c.Context(), userID, publishing.CreateJobRequest{
		WorkflowID: id,
		Platform:   platform,
		PublishAt:  req.PublishAt,
		Timezone:   req.Timezone,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(job)
}

// GetJobs lists the workflow's publishing jobs.
func (h *APIHandlers) GetJobs(c fiber.Ctx) error {
	userID := c.Get(userIDHeader)
	if userID == "" {
		return unauthorized(c, "missing "+userIDHeader+" header")
	}

	jobs, err := h.publishingService.ListJobs(c.Context(), userID, c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"jobs": jobs})
}

// CancelJob cancels a pending publishing job.
func (h *APIHandlers) CancelJob(c fiber.Ctx) error {
	userID := c.Get(userIDHeader)
	if userID == "" {
		return unauthorized(c, "missing "+userIDHeader+" header")
	}

	job, err := h.publishingService.CancelJob(c.Context(), userID, c.Params("jobId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(job)
}

// RescheduleJob moves a job to a new publish time.
func (h *APIHandlers) RescheduleJob(c fiber.Ctx) error {
	userID := c.Get(userIDHeader)
	if userID == "" {
		return unauthorized(c, "missing "+userIDHeader+" header")
	}

	var req RescheduleRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	job, err := h.publishingService.RescheduleJob(c.Context(), userID, c.Params("jobId"), req.PublishAt, req.Timezone)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(job)
}

// HealthCheck reports storage health.
func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	httpStatus := http.StatusOK

	if err := h.persistence.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError

		h.logger.Error("Health check failed", "error", err)
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"timestamp": time.Now().UTC(),
	})
}
