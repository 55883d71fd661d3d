package models

// EvaluationSnapshot is the result of one automated quality pass. It is
// produced each evaluate cycle and consumed immediately to route the branch.
type EvaluationSnapshot struct {
	Score     int    `json:"score"`
	Passed    bool   `json:"passed"`
	Feedback  string `json:"feedback,omitempty"`
	Iteration int    `json:"iteration"`
}

// PlatformExecutionState is the in-flight state of one platform branch.
//
// Created at fan-out, mutated on every node transition, folded back into the
// PlatformState row once the branch suspends or terminates, and re-created
// from the checkpoint on resume.
type PlatformExecutionState struct {
	Platform             Platform            `json:"platform"`
	CurrentDraft         *DraftSnapshot      `json:"current_draft,omitempty"`
	PreviousDrafts       []*DraftSnapshot    `json:"previous_drafts,omitempty"`
	LastEvaluation       *EvaluationSnapshot `json:"last_evaluation,omitempty"`
	Iteration            int                 `json:"iteration"`
	AwaitingHuman        bool                `json:"awaiting_human"`
	Accepted             bool                `json:"accepted"`
	Rejected             bool                `json:"rejected"`
	FeedbackInstructions string              `json:"feedback_instructions,omitempty"`
}

// Decided reports whether the branch has a final human decision and must be
// excluded from further fan-out rounds.
func (p *PlatformExecutionState) Decided() bool {
	return p.Accepted || p.Rejected
}

// Quiescent reports whether the branch has reached its rest point for a
// round: decided, or suspended awaiting a human.
func (p *PlatformExecutionState) Quiescent() bool {
	return p.Decided() || p.AwaitingHuman
}

// Clone returns a deep copy so a branch can run on private state and be
// merged back explicitly after the join barrier.
func (p *PlatformExecutionState) Clone() *PlatformExecutionState {
	clone := *p

	if p.CurrentDraft != nil {
		draft := *p.CurrentDraft
		clone.CurrentDraft = &draft
	}

	if p.LastEvaluation != nil {
		eval := *p.LastEvaluation
		clone.LastEvaluation = &eval
	}

	if len(p.PreviousDrafts) > 0 {
		clone.PreviousDrafts = make([]*DraftSnapshot, len(p.PreviousDrafts))
		for i, d := range p.PreviousDrafts {
			draft := *d
			clone.PreviousDrafts[i] = &draft
		}
	}

	return &clone
}

// ArchiveCurrentDraft moves the current draft into history.
func (p *PlatformExecutionState) ArchiveCurrentDraft() {
	if p.CurrentDraft == nil {
		return
	}

	p.PreviousDrafts = append(p.PreviousDrafts, p.CurrentDraft)
	p.CurrentDraft = nil
}

// WorkflowExecutionState is the root checkpointed state of one workflow run.
//
// The shared context fields (mode, source content, template input, resources)
// are read-only snapshots: branches receive copies and never write them back.
type WorkflowExecutionState struct {
	WorkflowID    string                    `json:"workflow_id"`
	UserID        string                    `json:"user_id"`
	Mode          CreationMode              `json:"mode"`
	SourceContent string                    `json:"source_content,omitempty"`
	TemplateInput map[string]any            `json:"template_input,omitempty"`
	ManualOptions map[string]any            `json:"manual_options,omitempty"`
	Resources     []ResourceSnapshot        `json:"resources,omitempty"`
	Platforms     []*PlatformExecutionState `json:"platforms"`
	MaxIterations int                       `json:"max_iterations"`
}

// CreationMode selects how generation context is built.
type CreationMode string

const (
	ModeManual   CreationMode = "manual"
	ModeTemplate CreationMode = "template"
)

// PlatformNames returns the platform of every branch, in branch order.
func (w *WorkflowExecutionState) PlatformNames() []Platform {
	platforms := make([]Platform, len(w.Platforms))
	for i, p := range w.Platforms {
		platforms[i] = p.Platform
	}

	return platforms
}

// PlatformBranch returns the execution state for one platform, or nil.
func (w *WorkflowExecutionState) PlatformBranch(platform Platform) *PlatformExecutionState {
	for _, p := range w.Platforms {
		if p.Platform == platform {
			return p
		}
	}

	return nil
}

// Complete reports whether every branch is at rest: accepted, rejected or
// suspended awaiting a human. Nothing may be silently mid-generation.
func (w *WorkflowExecutionState) Complete() bool {
	for _, p := range w.Platforms {
		if !p.Quiescent() {
			return false
		}
	}

	return true
}
