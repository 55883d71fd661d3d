package publishing

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/soapbox-hq/soapbox/pkg/events"
	"github.com/soapbox-hq/soapbox/pkg/models"
	"github.com/soapbox-hq/soapbox/pkg/otelhelper"
	"github.com/soapbox-hq/soapbox/pkg/protocol"
)

// scheduledJob creates a pending job and backdates it so the next scheduler
// pass sees it as due.
func scheduledJob(t *testing.T, h *pubHarness, workflowID string, platform models.Platform) *models.PublishingJob {
	t.Helper()

	ctx := context.Background()
	publishAt := time.Now().UTC().Add(time.Hour)

	job, err := h.service.CreateJob(ctx, "user-1", CreateJobRequest{
		WorkflowID: workflowID,
		Platform:   platform,
		PublishAt:  &publishAt,
	})
	require.NoError(t, err)

	job.PublishAt = time.Now().UTC().Add(-time.Minute)
	require.NoError(t, h.persistence.PublishingJobRepository().Update(ctx, job))

	return job
}

func TestTick_DispatchesDueJobs(t *testing.T) {
	h := newPubHarness(t)
	wf := acceptedWorkflow(t, h, models.PlatformLinkedIn)
	job := scheduledJob(t, h, wf.ID, models.PlatformLinkedIn)

	scheduler := NewScheduler(h.persistence.PublishingJobRepository(), h.executor, 0, 0, slog.Default())
	scheduler.Tick(context.Background())

	stored, err := h.persistence.PublishingJobRepository().GetByID(context.Background(), job.ID)
	require.NoError(t, err)

	assert.Equal(t, models.PublishingStatusSuccess, stored.Status)
	assert.Equal(t, 1, stored.Attempts)
	assert.NotEmpty(t, stored.ExternalID)
	require.NotNil(t, stored.ExecutedAt)

	assert.Equal(t, models.PlatformStatusPublished, jobPlatformState(t, h, wf.ID, models.PlatformLinkedIn).Status)
	assert.Equal(t, 1, h.bus.countOf(events.JobSucceededEvent))
}

func TestTick_NothingDue(t *testing.T) {
	h := newPubHarness(t)
	wf := acceptedWorkflow(t, h, models.PlatformX)
	ctx := context.Background()

	publishAt := time.Now().UTC().Add(time.Hour)

	_, err := h.service.CreateJob(ctx, "user-1", CreateJobRequest{
		WorkflowID: wf.ID,
		Platform:   models.PlatformX,
		PublishAt:  &publishAt,
	})
	require.NoError(t, err)

	scheduler := NewScheduler(h.persistence.PublishingJobRepository(), h.executor, 0, 0, slog.Default())
	scheduler.Tick(ctx)

	assert.Zero(t, h.publisher.callCount())
}

func TestTick_FailedJobDoesNotBlockBatch(t *testing.T) {
	h := newPubHarness(t, models.PlatformLinkedIn)
	wf := acceptedWorkflow(t, h, models.PlatformLinkedIn, models.PlatformX)
	ctx := context.Background()

	failing := scheduledJob(t, h, wf.ID, models.PlatformLinkedIn)
	healthy := scheduledJob(t, h, wf.ID, models.PlatformX)

	scheduler := NewScheduler(h.persistence.PublishingJobRepository(), h.executor, 0, 0, slog.Default())
	scheduler.Tick(ctx)

	storedFailing, err := h.persistence.PublishingJobRepository().GetByID(ctx, failing.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PublishingStatusFailed, storedFailing.Status)
	assert.NotEmpty(t, storedFailing.LastError)

	storedHealthy, err := h.persistence.PublishingJobRepository().GetByID(ctx, healthy.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PublishingStatusSuccess, storedHealthy.Status)

	// A scheduled job that fails surfaces on the platform row.
	assert.Equal(t, models.PlatformStatusFailed, jobPlatformState(t, h, wf.ID, models.PlatformLinkedIn).Status)
	assert.Equal(t, models.PlatformStatusPublished, jobPlatformState(t, h, wf.ID, models.PlatformX).Status)
}

func TestExecute_LostClaimSkipsSilently(t *testing.T) {
	h := newPubHarness(t)
	wf := acceptedWorkflow(t, h, models.PlatformX)
	ctx := context.Background()

	job := scheduledJob(t, h, wf.ID, models.PlatformX)

	// First pass claims and executes; replaying the same job must not
	// publish twice or bump attempts again.
	require.NoError(t, h.executor.Execute(ctx, job))
	require.NoError(t, h.executor.Execute(ctx, job))

	assert.Equal(t, 1, h.publisher.callCount())

	stored, err := h.persistence.PublishingJobRepository().GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Attempts)
}

func TestStartStop(t *testing.T) {
	h := newPubHarness(t)
	ctx := context.Background()

	scheduler := NewScheduler(h.persistence.PublishingJobRepository(), h.executor, 10*time.Millisecond, 5, slog.Default())

	require.NoError(t, scheduler.Start(ctx))
	// Starting twice is a no-op.
	require.NoError(t, scheduler.Start(ctx))

	require.NoError(t, scheduler.Stop(ctx))
	require.NoError(t, scheduler.Stop(ctx))
}

func TestExecute_SpanRecordsDraftID(t *testing.T) {
	h := newPubHarness(t)
	wf := acceptedWorkflow(t, h, models.PlatformX)
	job := scheduledJob(t, h, wf.ID, models.PlatformX)

	recorder := tracetest.NewSpanRecorder()
	tracer := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)).Tracer("test")

	publishers := map[models.Platform]protocol.Publisher{
		models.PlatformLinkedIn: h.publisher,
		models.PlatformX:        h.publisher,
	}
	executor := NewExecutor(h.persistence, publishers, h.bus, slog.Default(), tracer)

	require.NoError(t, executor.Execute(context.Background(), job))

	spans := recorder.Ended()
	require.Len(t, spans, 1)

	assert.Equal(t, "publishing.execute", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.String(otelhelper.DraftIDKey, job.DraftID))
}
