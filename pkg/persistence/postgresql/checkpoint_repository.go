package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/soapbox-hq/soapbox/pkg/models"
	"github.com/soapbox-hq/soapbox/pkg/persistence"
)

// CheckpointRepository stores workflow execution state as a JSONB document,
// one row per workflow. Saving replaces the previous snapshot.
type CheckpointRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewCheckpointRepository creates a new checkpoint repository.
func NewCheckpointRepository(db *sql.DB, logger *slog.Logger) *CheckpointRepository {
	return &CheckpointRepository{db: db, logger: logger}
}

// SaveCheckpoint upserts the workflow's execution state snapshot.
func (r *CheckpointRepository) SaveCheckpoint(ctx context.Context, state *models.WorkflowExecutionState) error {
	query := `
		INSERT INTO checkpoints (workflow_id, state, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (workflow_id) DO UPDATE SET
			state = EXCLUDED.state
		  , updated_at = EXCLUDED.updated_at
	`

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint for workflow %s: %w", state.WorkflowID, err)
	}

	_, err = r.db.ExecContext(ctx, query, state.WorkflowID, data, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save checkpoint for workflow %s: %w", state.WorkflowID, err)
	}

	return nil
}

// GetCheckpoint returns the latest execution state, or ErrCheckpointNotFound.
func (r *CheckpointRepository) GetCheckpoint(ctx context.Context, workflowID string) (*models.WorkflowExecutionState, error) {
	query := `SELECT state FROM checkpoints WHERE workflow_id = $1`

	var data []byte

	err := r.db.QueryRowContext(ctx, query, workflowID).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("workflow %s: %w", workflowID, persistence.ErrCheckpointNotFound)
		}

		return nil, fmt.Errorf("failed to query checkpoint for workflow %s: %w", workflowID, err)
	}

	var state models.WorkflowExecutionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint for workflow %s: %w", workflowID, err)
	}

	return &state, nil
}

// DeleteCheckpoint removes the workflow's checkpoint. Deleting an absent
// checkpoint is not an error.
func (r *CheckpointRepository) DeleteCheckpoint(ctx context.Context, workflowID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE workflow_id = $1`, workflowID)
	if err != nil {
		return fmt.Errorf("failed to delete checkpoint for workflow %s: %w", workflowID, err)
	}

	return nil
}
