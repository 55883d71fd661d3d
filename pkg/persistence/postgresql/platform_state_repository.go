package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/soapbox-hq/soapbox/pkg/models"
	"github.com/soapbox-hq/soapbox/pkg/persistence"
)

// PlatformStateRepository handles per-platform state database operations.
// Every write is a single-row statement keyed by (workflow_id, platform).
type PlatformStateRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPlatformStateRepository creates a new platform state repository.
func NewPlatformStateRepository(db *sql.DB, logger *slog.Logger) *PlatformStateRepository {
	return &PlatformStateRepository{db: db, logger: logger}
}

// Save inserts or updates a platform state row.
func (r *PlatformStateRepository) Save(ctx context.Context, state *models.PlatformState) error {
	query := `
		INSERT INTO platform_states (
			id
		  , workflow_id
		  , platform
		  , status
		  , active_draft_id
		  , human_override
		  , created_at
		  , updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (workflow_id, platform) DO UPDATE SET
			status = EXCLUDED.status
		  , active_draft_id = EXCLUDED.active_draft_id
		  , human_override = EXCLUDED.human_override
		  , updated_at = EXCLUDED.updated_at
	`

	now := time.Now().UTC()

	if state.CreatedAt.IsZero() {
		state.CreatedAt = now
	}

	state.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		state.ID,
		state.WorkflowID,
		state.Platform,
		state.Status,
		state.ActiveDraftID,
		state.HumanOverride,
		state.CreatedAt,
		state.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save platform state %s/%s: %w", state.WorkflowID, state.Platform, err)
	}

	return nil
}

// GetByWorkflowAndPlatform returns one platform state, or ErrPlatformStateNotFound.
func (r *PlatformStateRepository) GetByWorkflowAndPlatform(ctx context.Context, workflowID string, platform models.Platform) (*models.PlatformState, error) {
	query := `
		SELECT
			id
		  , workflow_id
		  , platform
		  , status
		  , active_draft_id
		  , human_override
		  , created_at
		  , updated_at
		FROM platform_states
		WHERE workflow_id = $1 AND platform = $2
	`

	state, err := scanPlatformState(r.db.QueryRowContext(ctx, query, workflowID, platform))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewPlatformStateError("GetByWorkflowAndPlatform", workflowID, string(platform), persistence.ErrPlatformStateNotFound)
		}

		return nil, fmt.Errorf("failed to scan platform state %s/%s: %w", workflowID, platform, err)
	}

	return state, nil
}

// ListByWorkflow returns every platform state of the workflow.
func (r *PlatformStateRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.PlatformState, error) {
	query := `
		SELECT
			id
		  , workflow_id
		  , platform
		  , status
		  , active_draft_id
		  , human_override
		  , created_at
		  , updated_at
		FROM platform_states
		WHERE workflow_id = $1
		ORDER BY platform
	`

	rows, err := r.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query platform states for workflow %s: %w", workflowID, err)
	}

	defer closeRows(ctx, rows, r.logger)

	states := make([]*models.PlatformState, 0)

	for rows.Next() {
		state, err := scanPlatformState(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan platform state: %w", err)
		}

		states = append(states, state)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating platform states: %w", err)
	}

	return states, nil
}

// UpdateStatus moves the platform's lifecycle status.
func (r *PlatformStateRepository) UpdateStatus(ctx context.Context, workflowID string, platform models.Platform, status models.PlatformStatus) error {
	query := `
		UPDATE platform_states
		SET status = $3
		  , updated_at = $4
		WHERE workflow_id = $1 AND platform = $2
	`

	result, err := r.db.ExecContext(ctx, query, workflowID, platform, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update platform state %s/%s: %w", workflowID, platform, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check platform state %s/%s update: %w", workflowID, platform, err)
	}

	if affected == 0 {
		return persistence.NewPlatformStateError("UpdateStatus", workflowID, string(platform), persistence.ErrPlatformStateNotFound)
	}

	return nil
}

// SetActiveDraft moves the active draft pointer. The human override flag only
// ever latches on.
func (r *PlatformStateRepository) SetActiveDraft(ctx context.Context, workflowID string, platform models.Platform, draftID string, humanOverride bool) error {
	query := `
		UPDATE platform_states
		SET active_draft_id = $3
		  , human_override = human_override OR $4
		  , updated_at = $5
		WHERE workflow_id = $1 AND platform = $2
	`

	result, err := r.db.ExecContext(ctx, query, workflowID, platform, draftID, humanOverride, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set active draft for %s/%s: %w", workflowID, platform, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check active draft update for %s/%s: %w", workflowID, platform, err)
	}

	if affected == 0 {
		return persistence.NewPlatformStateError("SetActiveDraft", workflowID, string(platform), persistence.ErrPlatformStateNotFound)
	}

	return nil
}

func scanPlatformState(row rowScanner) (*models.PlatformState, error) {
	var (
		state         models.PlatformState
		activeDraftID sql.NullString
	)

	err := row.Scan(
		&state.ID,
		&state.WorkflowID,
		&state.Platform,
		&state.Status,
		&activeDraftID,
		&state.HumanOverride,
		&state.CreatedAt,
		&state.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if activeDraftID.Valid {
		state.ActiveDraftID = &activeDraftID.String
	}

	return &state, nil
}
