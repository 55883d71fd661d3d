package models

import "errors"

// ReviewAction is a human decision on one platform draft.
type ReviewAction string

const (
	ReviewActionAccept         ReviewAction = "accept"
	ReviewActionReject         ReviewAction = "reject"
	ReviewActionEditAndRefine  ReviewAction = "edit_and_refine"
	ReviewActionEditAndPublish ReviewAction = "edit_and_publish"
)

var (
	// ErrEditedContentRequired is returned when an edit action carries no content.
	ErrEditedContentRequired = errors.New("edited content is required for edit actions")

	// ErrEditedContentForbidden is returned when accept/reject carries content.
	ErrEditedContentForbidden = errors.New("edited content must not be provided for accept or reject")

	// ErrUnsupportedReviewAction is returned for an unknown action value.
	ErrUnsupportedReviewAction = errors.New("unsupported review action")
)

// ReviewRequest is a human-in-the-loop action on a specific platform draft.
type ReviewRequest struct {
	WorkflowID           string       `json:"workflow_id" validate:"required"`
	Platform             Platform     `json:"platform"    validate:"required"`
	Action               ReviewAction `json:"action"      validate:"required"`
	EditedContent        string       `json:"edited_content,omitempty"`
	FeedbackInstructions string       `json:"feedback_instructions,omitempty"`
}

// Validate enforces the per-action payload rules.
func (r *ReviewRequest) Validate() error {
	switch r.Action {
	case ReviewActionEditAndRefine, ReviewActionEditAndPublish:
		if isBlank(r.EditedContent) {
			return ErrEditedContentRequired
		}
	case ReviewActionAccept, ReviewActionReject:
		if r.EditedContent != "" {
			return ErrEditedContentForbidden
		}
	default:
		return ErrUnsupportedReviewAction
	}

	return nil
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}

	return true
}
