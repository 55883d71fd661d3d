package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/soapbox-hq/soapbox/pkg/models"
	"github.com/soapbox-hq/soapbox/pkg/persistence"
)

// PublishingJobRepository handles publishing job file operations. A process
// wide mutex substitutes for the transactional guarantees of the sql backend:
// the duplicate check on Create and the pending-to-running flip in MarkRunning
// must be atomic.
type PublishingJobRepository struct {
	root string
	mu   sync.Mutex
}

// NewPublishingJobRepository creates a new publishing job repository.
func NewPublishingJobRepository(root string) *PublishingJobRepository {
	return &PublishingJobRepository{root: root}
}

func (jr *PublishingJobRepository) dir() string {
	return filepath.Join(jr.root, "publishing_jobs")
}

func (jr *PublishingJobRepository) path(id string) string {
	return filepath.Join(jr.dir(), id+".json")
}

// Create inserts a job, enforcing at most one job per (workflow, platform,
// draft). Returns ErrDuplicateJob on a second insert for the same triple.
func (jr *PublishingJobRepository) Create(ctx context.Context, job *models.PublishingJob) error {
	jr.mu.Lock()
	defer jr.mu.Unlock()

	if err := validateID(job.ID); err != nil {
		return fmt.Errorf("invalid job ID: %w", err)
	}

	existing, err := jr.listAll(ctx)
	if err != nil {
		return err
	}

	for _, other := range existing {
		if other.WorkflowID == job.WorkflowID && other.Platform == job.Platform && other.DraftID == job.DraftID {
			return persistence.NewJobError("Create", job.ID, persistence.ErrDuplicateJob)
		}
	}

	return jr.write(job)
}

// GetByID reads one job, returning ErrJobNotFound when absent.
func (jr *PublishingJobRepository) GetByID(_ context.Context, id string) (*models.PublishingJob, error) {
	if err := validateID(id); err != nil {
		return nil, fmt.Errorf("invalid job ID: %w", err)
	}

	return jr.read(id)
}

// ListByWorkflow returns the workflow's jobs, newest first.
func (jr *PublishingJobRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.PublishingJob, error) {
	all, err := jr.listAll(ctx)
	if err != nil {
		return nil, err
	}

	jobs := make([]*models.PublishingJob, 0)

	for _, job := range all {
		if job.WorkflowID == workflowID {
			jobs = append(jobs, job)
		}
	}

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})

	return jobs, nil
}

// DueJobs returns up to limit pending jobs due at now, ordered by publish_at
// ascending.
func (jr *PublishingJobRepository) DueJobs(ctx context.Context, now time.Time, limit int) ([]*models.PublishingJob, error) {
	all, err := jr.listAll(ctx)
	if err != nil {
		return nil, err
	}

	due := make([]*models.PublishingJob, 0)

	for _, job := range all {
		if job.Due(now) {
			due = append(due, job)
		}
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].PublishAt.Before(due[j].PublishAt)
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	return due, nil
}

// MarkRunning atomically flips a job from pending to running. Returns false
// when the job already left the pending state.
func (jr *PublishingJobRepository) MarkRunning(_ context.Context, id string) (bool, error) {
	jr.mu.Lock()
	defer jr.mu.Unlock()

	job, err := jr.read(id)
	if err != nil {
		return false, err
	}

	if job.Status != models.PublishingStatusPending {
		return false, nil
	}

	job.Status = models.PublishingStatusRunning
	job.UpdatedAt = time.Now().UTC()

	if err := jr.write(job); err != nil {
		return false, err
	}

	return true, nil
}

// RecordOutcome persists the execution result and increments attempts.
func (jr *PublishingJobRepository) RecordOutcome(_ context.Context, job *models.PublishingJob) error {
	jr.mu.Lock()
	defer jr.mu.Unlock()

	stored, err := jr.read(job.ID)
	if err != nil {
		return err
	}

	stored.Status = job.Status
	stored.Attempts++
	stored.LastError = job.LastError
	stored.ExternalID = job.ExternalID
	stored.PostURL = job.PostURL
	stored.ExecutedAt = job.ExecutedAt
	stored.UpdatedAt = time.Now().UTC()

	job.Attempts = stored.Attempts

	return jr.write(stored)
}

// Update rewrites the job's scheduling fields.
func (jr *PublishingJobRepository) Update(_ context.Context, job *models.PublishingJob) error {
	jr.mu.Lock()
	defer jr.mu.Unlock()

	if _, err := jr.read(job.ID); err != nil {
		return err
	}

	return jr.write(job)
}

func (jr *PublishingJobRepository) read(id string) (*models.PublishingJob, error) {
	data, err := os.ReadFile(jr.path(id)) // #nosec G304 -- path is validated and constructed safely
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewJobError("read", id, persistence.ErrJobNotFound)
		}

		return nil, fmt.Errorf("failed to read publishing job %s: %w", id, err)
	}

	var job models.PublishingJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal publishing job %s: %w", id, err)
	}

	return &job, nil
}

func (jr *PublishingJobRepository) write(job *models.PublishingJob) error {
	if err := os.MkdirAll(jr.dir(), 0750); err != nil {
		return fmt.Errorf("failed to create publishing jobs directory: %w", err)
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal publishing job %s: %w", job.ID, err)
	}

	if err := os.WriteFile(jr.path(job.ID), data, 0600); err != nil {
		return fmt.Errorf("failed to write publishing job %s: %w", job.ID, err)
	}

	return nil
}

func (jr *PublishingJobRepository) listAll(_ context.Context) ([]*models.PublishingJob, error) {
	entries, err := fs.Glob(os.DirFS(jr.dir()), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list publishing job files: %w", err)
	}

	jobs := make([]*models.PublishingJob, 0, len(entries))

	for _, entry := range entries {
		job, err := jr.read(entry[:len(entry)-len(".json")])
		if err != nil {
			return nil, err
		}

		jobs = append(jobs, job)
	}

	return jobs, nil
}
