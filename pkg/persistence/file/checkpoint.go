package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/soapbox-hq/soapbox/pkg/models"
	"github.com/soapbox-hq/soapbox/pkg/persistence"
)

// CheckpointRepository persists workflow execution state snapshots, one file
// per workflow. Saving replaces the previous checkpoint; only the latest one
// is ever needed for resume.
type CheckpointRepository struct {
	root string
}

// NewCheckpointRepository creates a new checkpoint repository.
func NewCheckpointRepository(root string) *CheckpointRepository {
	return &CheckpointRepository{root: root}
}

func (cr *CheckpointRepository) path(workflowID string) string {
	return filepath.Join(cr.root, "checkpoints", workflowID+".json")
}

// SaveCheckpoint writes the execution state, replacing any previous snapshot.
func (cr *CheckpointRepository) SaveCheckpoint(_ context.Context, state *models.WorkflowExecutionState) error {
	if err := validateID(state.WorkflowID); err != nil {
		return fmt.Errorf("invalid workflow ID: %w", err)
	}

	dir := filepath.Join(cr.root, "checkpoints")
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create checkpoints directory: %w", err)
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint for workflow %s: %w", state.WorkflowID, err)
	}

	if err := os.WriteFile(cr.path(state.WorkflowID), data, 0600); err != nil {
		return fmt.Errorf("failed to write checkpoint for workflow %s: %w", state.WorkflowID, err)
	}

	return nil
}

// GetCheckpoint reads the latest execution state, returning
// ErrCheckpointNotFound when absent.
func (cr *CheckpointRepository) GetCheckpoint(_ context.Context, workflowID string) (*models.WorkflowExecutionState, error) {
	if err := validateID(workflowID); err != nil {
		return nil, fmt.Errorf("invalid workflow ID: %w", err)
	}

	data, err := os.ReadFile(cr.path(workflowID)) // #nosec G304 -- path is validated and constructed safely
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("workflow %s: %w", workflowID, persistence.ErrCheckpointNotFound)
		}

		return nil, fmt.Errorf("failed to read checkpoint for workflow %s: %w", workflowID, err)
	}

	var state models.WorkflowExecutionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint for workflow %s: %w", workflowID, err)
	}

	return &state, nil
}

// DeleteCheckpoint removes the workflow's checkpoint. Deleting an absent
// checkpoint is not an error.
func (cr *CheckpointRepository) DeleteCheckpoint(_ context.Context, workflowID string) error {
	if err := validateID(workflowID); err != nil {
		return fmt.Errorf("invalid workflow ID: %w", err)
	}

	if err := os.Remove(cr.path(workflowID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint for workflow %s: %w", workflowID, err)
	}

	return nil
}
