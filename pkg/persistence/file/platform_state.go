package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/soapbox-hq/soapbox/pkg/models"
	"github.com/soapbox-hq/soapbox/pkg/persistence"
)

// PlatformStateRepository handles per-platform state file operations. Each
// state lives at platform_states/<workflow_id>/<platform>.json.
type PlatformStateRepository struct {
	root string
}

// NewPlatformStateRepository creates a new platform state repository.
func NewPlatformStateRepository(root string) *PlatformStateRepository {
	return &PlatformStateRepository{root: root}
}

func (pr *PlatformStateRepository) dir(workflowID string) string {
	return filepath.Join(pr.root, "platform_states", workflowID)
}

func (pr *PlatformStateRepository) path(workflowID string, platform models.Platform) string {
	return filepath.Join(pr.dir(workflowID), string(platform)+".json")
}

// Save writes the platform state, creating or replacing its file.
func (pr *PlatformStateRepository) Save(_ context.Context, state *models.PlatformState) error {
	if err := validateID(state.WorkflowID); err != nil {
		return fmt.Errorf("invalid workflow ID: %w", err)
	}

	if err := os.MkdirAll(pr.dir(state.WorkflowID), 0750); err != nil {
		return fmt.Errorf("failed to create platform states directory: %w", err)
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal platform state %s/%s: %w", state.WorkflowID, state.Platform, err)
	}

	if err := os.WriteFile(pr.path(state.WorkflowID, state.Platform), data, 0600); err != nil {
		return fmt.Errorf("failed to write platform state %s/%s: %w", state.WorkflowID, state.Platform, err)
	}

	return nil
}

// GetByWorkflowAndPlatform reads one platform state, returning
// ErrPlatformStateNotFound when absent.
func (pr *PlatformStateRepository) GetByWorkflowAndPlatform(_ context.Context, workflowID string, platform models.Platform) (*models.PlatformState, error) {
	if err := validateID(workflowID); err != nil {
		return nil, fmt.Errorf("invalid workflow ID: %w", err)
	}

	data, err := os.ReadFile(pr.path(workflowID, platform)) // #nosec G304 -- path is validated and constructed safely
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewPlatformStateError("GetByWorkflowAndPlatform", workflowID, string(platform), persistence.ErrPlatformStateNotFound)
		}

		return nil, fmt.Errorf("failed to read platform state %s/%s: %w", workflowID, platform, err)
	}

	var state models.PlatformState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal platform state %s/%s: %w", workflowID, platform, err)
	}

	return &state, nil
}

// ListByWorkflow returns every platform state of the workflow, ordered by
// platform for stable output.
func (pr *PlatformStateRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.PlatformState, error) {
	if err := validateID(workflowID); err != nil {
		return nil, fmt.Errorf("invalid workflow ID: %w", err)
	}

	entries, err := fs.Glob(os.DirFS(pr.dir(workflowID)), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list platform states for workflow %s: %w", workflowID, err)
	}

	states := make([]*models.PlatformState, 0, len(entries))

	for _, entry := range entries {
		platform := models.Platform(entry[:len(entry)-len(".json")])

		state, err := pr.GetByWorkflowAndPlatform(ctx, workflowID, platform)
		if err != nil {
			return nil, err
		}

		states = append(states, state)
	}

	sort.Slice(states, func(i, j int) bool {
		return states[i].Platform < states[j].Platform
	})

	return states, nil
}

// UpdateStatus rewrites the platform's lifecycle status.
func (pr *PlatformStateRepository) UpdateStatus(ctx context.Context, workflowID string, platform models.Platform, status models.PlatformStatus) error {
	state, err := pr.GetByWorkflowAndPlatform(ctx, workflowID, platform)
	if err != nil {
		return err
	}

	state.Status = status
	state.UpdatedAt = time.Now().UTC()

	return pr.Save(ctx, state)
}

// SetActiveDraft moves the platform's active draft pointer. The override flag
// only ever latches on: once human content is active it stays marked.
func (pr *PlatformStateRepository) SetActiveDraft(ctx context.Context, workflowID string, platform models.Platform, draftID string, humanOverride bool) error {
	state, err := pr.GetByWorkflowAndPlatform(ctx, workflowID, platform)
	if err != nil {
		return err
	}

	state.ActiveDraftID = &draftID
	state.UpdatedAt = time.Now().UTC()

	if humanOverride {
		state.HumanOverride = true
	}

	return pr.Save(ctx, state)
}
