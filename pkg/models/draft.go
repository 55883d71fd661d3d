package models

import "time"

// DraftSource records the origin of a draft.
type DraftSource string

const (
	DraftSourceAI    DraftSource = "ai"
	DraftSourceHuman DraftSource = "human"
)

// Draft is an immutable content snapshot for a single platform.
//
// Drafts are never updated: every edit creates a new row and moves the
// platform's active pointer. Human drafts override AI drafts and AI never
// overwrites human content.
type Draft struct {
	ID         string      `json:"id"`
	WorkflowID string      `json:"workflow_id" validate:"required"`
	Platform   Platform    `json:"platform"    validate:"required"`
	Content    string      `json:"content"     validate:"required"`
	Source     DraftSource `json:"source"`
	MediaURLs  []string    `json:"media_urls,omitempty"`
	MediaType  string      `json:"media_type,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

// DraftSnapshot is the lightweight projection of a draft carried inside the
// execution state. It is not the persisted row.
type DraftSnapshot struct {
	DraftID   string      `json:"draft_id"`
	Platform  Platform    `json:"platform"`
	Content   string      `json:"content"`
	Source    DraftSource `json:"source"`
	CreatedAt time.Time   `json:"created_at"`
}

// Snapshot projects a persisted draft into its execution-state form.
func (d *Draft) Snapshot() *DraftSnapshot {
	return &DraftSnapshot{
		DraftID:   d.ID,
		Platform:  d.Platform,
		Content:   d.Content,
		Source:    d.Source,
		CreatedAt: d.CreatedAt,
	}
}

// ResourceSnapshot is a contextual resource (article, image, video) attached
// to the workflow and passed read-only to generation.
type ResourceSnapshot struct {
	Type     string `json:"type"`
	Source   string `json:"source"`
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}
