// Package web provides HTTP request and response types for the content workflow API.
package web

import (
	"time"

	"github.com/soapbox-hq/soapbox/pkg/models"
)

// CreateWorkflowRequest represents the request body for starting a workflow.
type CreateWorkflowRequest struct {
	Title         string            `json:"title"`
	Description   string            `json:"description"`
	Mode          string            `json:"mode"           validate:"required,oneof=manual template"`
	Content       string            `json:"content"`
	TemplateInput map[string]any    `json:"template_input,omitempty"`
	Options       map[string]any    `json:"options,omitempty"`
	Resources     []ResourceRequest `json:"resources,omitempty"`
	Platforms     []string          `json:"platforms"      validate:"required,min=1"`
	MaxIterations int               `json:"max_iterations" validate:"omitempty,min=1,max=10"`
}

// ResourceRequest is a contextual resource attached to the workflow.
type ResourceRequest struct {
	Type     string `json:"type"      validate:"required,oneof=article image video"`
	Source   string `json:"source"    validate:"required"`
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}

// ReviewRequest represents the request body for a human review action.
type ReviewRequest struct {
	Platform             string `json:"platform"              validate:"required"`
	Action               string `json:"action"                validate:"required,oneof=accept reject edit_and_refine edit_and_publish"`
	EditedContent        string `json:"edited_content,omitempty"`
	FeedbackInstructions string `json:"feedback_instructions,omitempty"`
}

// PublishRequest represents the request body for creating a publishing job.
// A nil publish_at means publish immediately.
type PublishRequest struct {
	Platform  string     `json:"platform"   validate:"required"`
	PublishAt *time.Time `json:"publish_at,omitempty"`
	Timezone  string     `json:"timezone,omitempty"`
}

// RescheduleRequest represents the request body for moving a job's publish time.
type RescheduleRequest struct {
	PublishAt time.Time `json:"publish_at" validate:"required"`
	Timezone  string    `json:"timezone,omitempty"`
}

// WorkflowResponse is the creation response: the workflow plus the platforms
// the engine is generating for.
type WorkflowResponse struct {
	Workflow  *models.Workflow  `json:"workflow"`
	Platforms []models.Platform `json:"platforms"`
}

func (r *CreateWorkflowRequest) resources() []models.ResourceSnapshot {
	if len(r.Resources) == 0 {
		return nil
	}

	resources := make([]models.ResourceSnapshot, len(r.Resources))
	for i, res := range r.Resources {
		resources[i] = models.ResourceSnapshot{
			Type:     res.Type,
			Source:   res.Source,
			Name:     res.Name,
			MimeType: res.MimeType,
		}
	}

	return resources
}

func (r *CreateWorkflowRequest) platforms() []models.Platform {
	platforms := make([]models.Platform, len(r.Platforms))
	for i, p := range r.Platforms {
		platforms[i] = models.Platform(p)
	}

	return platforms
}
