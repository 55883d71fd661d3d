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

// WorkflowRepository handles workflow database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

// Save inserts or updates a workflow row.
func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	query := `
		INSERT INTO workflows (
			id
		  , user_id
		  , status
		  , title
		  , description
		  , created_at
		  , updated_at
		  , completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status
		  , title = EXCLUDED.title
		  , description = EXCLUDED.description
		  , updated_at = EXCLUDED.updated_at
		  , completed_at = EXCLUDED.completed_at
	`

	now := time.Now().UTC()

	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		workflow.ID,
		workflow.UserID,
		workflow.Status,
		workflow.Title,
		workflow.Description,
		workflow.CreatedAt,
		workflow.UpdatedAt,
		workflow.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save workflow %s: %w", workflow.ID, err)
	}

	return nil
}

// GetByID returns one workflow, or ErrWorkflowNotFound.
func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	query := `
		SELECT
			id
		  , user_id
		  , status
		  , title
		  , description
		  , created_at
		  , updated_at
		  , completed_at
		FROM workflows
		WHERE id = $1
	`

	workflow, err := scanWorkflow(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to scan workflow %s: %w", id, err)
	}

	return workflow, nil
}

// ListByUser returns the user's workflows, newest first.
func (r *WorkflowRepository) ListByUser(ctx context.Context, userID string) ([]*models.Workflow, error) {
	query := `
		SELECT
			id
		  , user_id
		  , status
		  , title
		  , description
		  , created_at
		  , updated_at
		  , completed_at
		FROM workflows
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows for user %s: %w", userID, err)
	}

	defer closeRows(ctx, rows, r.logger)

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return workflows, nil
}

// UpdateStatus moves the workflow's lifecycle status and, for terminal
// statuses, stamps the completion time.
func (r *WorkflowRepository) UpdateStatus(ctx context.Context, id string, status models.WorkflowStatus, completedAt *time.Time) error {
	query := `
		UPDATE workflows
		SET status = $2
		  , updated_at = $3
		  , completed_at = COALESCE($4, completed_at)
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC(), completedAt)
	if err != nil {
		return fmt.Errorf("failed to update workflow %s status: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check workflow %s update: %w", id, err)
	}

	if affected == 0 {
		return persistence.NewWorkflowError("UpdateStatus", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row rowScanner) (*models.Workflow, error) {
	var (
		workflow    models.Workflow
		completedAt sql.NullTime
	)

	err := row.Scan(
		&workflow.ID,
		&workflow.UserID,
		&workflow.Status,
		&workflow.Title,
		&workflow.Description,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		workflow.CompletedAt = &completedAt.Time
	}

	return &workflow, nil
}

func closeRows(ctx context.Context, rows *sql.Rows, logger *slog.Logger) {
	if err := rows.Close(); err != nil {
		logger.ErrorContext(ctx, "failed to close rows", "error", err)
	}
}
