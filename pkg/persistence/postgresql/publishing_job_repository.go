package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/soapbox-hq/soapbox/pkg/models"
	"github.com/soapbox-hq/soapbox/pkg/persistence"
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations.
const uniqueViolation = "23505"

// PublishingJobRepository handles publishing job database operations.
type PublishingJobRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPublishingJobRepository creates a new publishing job repository.
func NewPublishingJobRepository(db *sql.DB, logger *slog.Logger) *PublishingJobRepository {
	return &PublishingJobRepository{db: db, logger: logger}
}

// Create inserts a job. The unique index on (workflow_id, platform, draft_id)
// turns a duplicate insert into ErrDuplicateJob.
func (r *PublishingJobRepository) Create(ctx context.Context, job *models.PublishingJob) error {
	query := `
		INSERT INTO publishing_jobs (
			id
		  , workflow_id
		  , platform
		  , draft_id
		  , publish_at
		  , timezone
		  , status
		  , attempts
		  , last_error
		  , immediate
		  , external_id
		  , post_url
		  , created_at
		  , updated_at
		  , executed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.db.ExecContext(ctx, query,
		job.ID,
		job.WorkflowID,
		job.Platform,
		job.DraftID,
		job.PublishAt,
		job.Timezone,
		job.Status,
		job.Attempts,
		job.LastError,
		job.Immediate,
		job.ExternalID,
		job.PostURL,
		job.CreatedAt,
		job.UpdatedAt,
		job.ExecutedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return persistence.NewJobError("Create", job.ID, persistence.ErrDuplicateJob)
		}

		return fmt.Errorf("failed to create publishing job %s: %w", job.ID, err)
	}

	return nil
}

// GetByID returns one job, or ErrJobNotFound.
func (r *PublishingJobRepository) GetByID(ctx context.Context, id string) (*models.PublishingJob, error) {
	query := selectJobs + ` WHERE id = $1`

	job, err := scanJob(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewJobError("GetByID", id, persistence.ErrJobNotFound)
		}

		return nil, fmt.Errorf("failed to scan publishing job %s: %w", id, err)
	}

	return job, nil
}

// ListByWorkflow returns the workflow's jobs, newest first.
func (r *PublishingJobRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.PublishingJob, error) {
	query := selectJobs + ` WHERE workflow_id = $1 ORDER BY created_at DESC`

	return r.queryJobs(ctx, query, workflowID)
}

// DueJobs returns up to limit pending jobs due at now, publish_at ascending.
func (r *PublishingJobRepository) DueJobs(ctx context.Context, now time.Time, limit int) ([]*models.PublishingJob, error) {
	query := selectJobs + `
		WHERE status = 'pending' AND publish_at <= $1
		ORDER BY publish_at ASC
		LIMIT $2
	`

	return r.queryJobs(ctx, query, now, limit)
}

// MarkRunning atomically flips a job from pending to running. Returns false
// when another scheduler pass won the race.
func (r *PublishingJobRepository) MarkRunning(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE publishing_jobs
		SET status = 'running'
		  , updated_at = $2
		WHERE id = $1 AND status = 'pending'
	`

	result, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to mark job %s running: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check job %s claim: %w", id, err)
	}

	return affected == 1, nil
}

// RecordOutcome persists the execution result and increments attempts.
func (r *PublishingJobRepository) RecordOutcome(ctx context.Context, job *models.PublishingJob) error {
	query := `
		UPDATE publishing_jobs
		SET status = $2
		  , attempts = attempts + 1
		  , last_error = $3
		  , external_id = $4
		  , post_url = $5
		  , executed_at = $6
		  , updated_at = $7
		WHERE id = $1
		RETURNING attempts
	`

	err := r.db.QueryRowContext(ctx, query,
		job.ID,
		job.Status,
		job.LastError,
		job.ExternalID,
		job.PostURL,
		job.ExecutedAt,
		time.Now().UTC(),
	).Scan(&job.Attempts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.NewJobError("RecordOutcome", job.ID, persistence.ErrJobNotFound)
		}

		return fmt.Errorf("failed to record outcome for job %s: %w", job.ID, err)
	}

	return nil
}

// Update rewrites the job's scheduling fields.
func (r *PublishingJobRepository) Update(ctx context.Context, job *models.PublishingJob) error {
	query := `
		UPDATE publishing_jobs
		SET publish_at = $2
		  , timezone = $3
		  , status = $4
		  , immediate = $5
		  , updated_at = $6
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		job.ID,
		job.PublishAt,
		job.Timezone,
		job.Status,
		job.Immediate,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to update publishing job %s: %w", job.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check job %s update: %w", job.ID, err)
	}

	if affected == 0 {
		return persistence.NewJobError("Update", job.ID, persistence.ErrJobNotFound)
	}

	return nil
}

const selectJobs = `
	SELECT
		id
	  , workflow_id
	  , platform
	  , draft_id
	  , publish_at
	  , timezone
	  , status
	  , attempts
	  , last_error
	  , immediate
	  , external_id
	  , post_url
	  , created_at
	  , updated_at
	  , executed_at
	FROM publishing_jobs
`

func (r *PublishingJobRepository) queryJobs(ctx context.Context, query string, args ...any) ([]*models.PublishingJob, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query publishing jobs: %w", err)
	}

	defer closeRows(ctx, rows, r.logger)

	jobs := make([]*models.PublishingJob, 0)

	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan publishing job: %w", err)
		}

		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating publishing jobs: %w", err)
	}

	return jobs, nil
}

func scanJob(row rowScanner) (*models.PublishingJob, error) {
	var (
		job        models.PublishingJob
		executedAt sql.NullTime
	)

	err := row.Scan(
		&job.ID,
		&job.WorkflowID,
		&job.Platform,
		&job.DraftID,
		&job.PublishAt,
		&job.Timezone,
		&job.Status,
		&job.Attempts,
		&job.LastError,
		&job.Immediate,
		&job.ExternalID,
		&job.PostURL,
		&job.CreatedAt,
		&job.UpdatedAt,
		&executedAt,
	)
	if err != nil {
		return nil, err
	}

	if executedAt.Valid {
		job.ExecutedAt = &executedAt.Time
	}

	return &job, nil
}
