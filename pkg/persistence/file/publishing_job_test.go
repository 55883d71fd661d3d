package file

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soapbox-hq/soapbox/pkg/models"
	"github.com/soapbox-hq/soapbox/pkg/persistence"
)

func testJob(id, workflowID string, platform models.Platform, draftID string, publishAt time.Time) *models.PublishingJob {
	now := time.Now().UTC()

	return &models.PublishingJob{
		ID:         id,
		WorkflowID: workflowID,
		Platform:   platform,
		DraftID:    draftID,
		PublishAt:  publishAt,
		Timezone:   "UTC",
		Status:     models.PublishingStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestPublishingJobRepository_CreateAndGet(t *testing.T) {
	repo := NewPublishingJobRepository(t.TempDir())
	ctx := context.Background()

	job := testJob("job-1", "wf-1", models.PlatformX, "draft-1", time.Now().UTC())
	require.NoError(t, repo.Create(ctx, job))

	loaded, err := repo.GetByID(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.PublishingStatusPending, loaded.Status)
	assert.Zero(t, loaded.Attempts)
}

func TestPublishingJobRepository_DuplicateTriple(t *testing.T) {
	repo := NewPublishingJobRepository(t.TempDir())
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, repo.Create(ctx, testJob("job-1", "wf-1", models.PlatformX, "draft-1", now)))

	// Same (workflow, platform, draft) is rejected even with a new job ID.
	err := repo.Create(ctx, testJob("job-2", "wf-1", models.PlatformX, "draft-1", now))
	require.Error(t, err)
	assert.True(t, persistence.IsDuplicateJob(err))

	// A different draft for the same platform is fine.
	require.NoError(t, repo.Create(ctx, testJob("job-3", "wf-1", models.PlatformX, "draft-2", now)))
}

func TestPublishingJobRepository_DueJobsOrderedAndLimited(t *testing.T) {
	repo := NewPublishingJobRepository(t.TempDir())
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, repo.Create(ctx, testJob("job-late", "wf-1", models.PlatformX, "draft-1", now.Add(-time.Minute))))
	require.NoError(t, repo.Create(ctx, testJob("job-early", "wf-1", models.PlatformLinkedIn, "draft-2", now.Add(-time.Hour))))
	require.NoError(t, repo.Create(ctx, testJob("job-future", "wf-1", models.PlatformX, "draft-3", now.Add(time.Hour))))

	cancelled := testJob("job-cancelled", "wf-2", models.PlatformX, "draft-4", now.Add(-time.Hour))
	require.NoError(t, repo.Create(ctx, cancelled))
	cancelled.Status = models.PublishingStatusCancelled
	require.NoError(t, repo.Update(ctx, cancelled))

	due, err := repo.DueJobs(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "job-early", due[0].ID)
	assert.Equal(t, "job-late", due[1].ID)

	limited, err := repo.DueJobs(ctx, now, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "job-early", limited[0].ID)
}

func TestPublishingJobRepository_MarkRunningClaimsOnce(t *testing.T) {
	repo := NewPublishingJobRepository(t.TempDir())
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, testJob("job-1", "wf-1", models.PlatformX, "draft-1", time.Now().UTC())))

	claimed, err := repo.MarkRunning(ctx, "job-1")
	require.NoError(t, err)
	assert.True(t, claimed)

	// The second claim loses.
	claimed, err = repo.MarkRunning(ctx, "job-1")
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestPublishingJobRepository_RecordOutcomeIncrementsAttempts(t *testing.T) {
	repo := NewPublishingJobRepository(t.TempDir())
	ctx := context.Background()

	job := testJob("job-1", "wf-1", models.PlatformX, "draft-1", time.Now().UTC())
	require.NoError(t, repo.Create(ctx, job))

	executedAt := time.Now().UTC()
	job.Status = models.PublishingStatusSuccess
	job.ExternalID = "ext-1"
	job.PostURL = "https://x.example.com/posts/1"
	job.ExecutedAt = &executedAt

	require.NoError(t, repo.RecordOutcome(ctx, job))
	assert.Equal(t, 1, job.Attempts)

	loaded, err := repo.GetByID(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.PublishingStatusSuccess, loaded.Status)
	assert.Equal(t, 1, loaded.Attempts)
	assert.Equal(t, "ext-1", loaded.ExternalID)
	require.NotNil(t, loaded.ExecutedAt)
}

func TestPublishingJobRepository_ListByWorkflowNewestFirst(t *testing.T) {
	repo := NewPublishingJobRepository(t.TempDir())
	ctx := context.Background()

	now := time.Now().UTC()

	older := testJob("job-old", "wf-1", models.PlatformX, "draft-1", now)
	older.CreatedAt = now.Add(-time.Hour)
	require.NoError(t, repo.Create(ctx, older))

	newer := testJob("job-new", "wf-1", models.PlatformLinkedIn, "draft-2", now)
	require.NoError(t, repo.Create(ctx, newer))

	require.NoError(t, repo.Create(ctx, testJob("job-other", "wf-2", models.PlatformX, "draft-3", now)))

	jobs, err := repo.ListByWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "job-new", jobs[0].ID)
	assert.Equal(t, "job-old", jobs[1].ID)
}

func TestPublishingJobRepository_MissingJob(t *testing.T) {
	repo := NewPublishingJobRepository(t.TempDir())

	_, err := repo.GetByID(context.Background(), "nope")
	require.ErrorIs(t, err, persistence.ErrJobNotFound)

	_, err = repo.MarkRunning(context.Background(), "nope")
	require.ErrorIs(t, err, persistence.ErrJobNotFound)
}
