package redis_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/soapbox-hq/soapbox/pkg/models"
	"github.com/soapbox-hq/soapbox/pkg/persistence"
	"github.com/soapbox-hq/soapbox/pkg/persistence/redis"
)

func setupCheckpoints(t *testing.T) *redis.CheckpointRepository {
	t.Helper()

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	repo, err := redis.NewCheckpointRepository(ctx, fmt.Sprintf("redis://%s:%s/0", host, port.Port()))
	require.NoError(t, err)

	t.Cleanup(func() { _ = repo.Close() })

	return repo
}

func TestCheckpointRepository_SaveAndGet(t *testing.T) {
	repo := setupCheckpoints(t)
	ctx := context.Background()

	state := &models.WorkflowExecutionState{
		WorkflowID: "wf-1",
		UserID:     "user-1",
		Mode:       models.ModeManual,
		Platforms: []*models.PlatformExecutionState{
			{
				Platform:      models.PlatformLinkedIn,
				Iteration:     1,
				AwaitingHuman: true,
				CurrentDraft:  &models.DraftSnapshot{DraftID: "draft-1", Content: "post"},
			},
		},
	}
	require.NoError(t, repo.SaveCheckpoint(ctx, state))

	loaded, err := repo.GetCheckpoint(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", loaded.UserID)
	require.Len(t, loaded.Platforms, 1)
	assert.True(t, loaded.Platforms[0].AwaitingHuman)
	require.NotNil(t, loaded.Platforms[0].CurrentDraft)
	assert.Equal(t, "draft-1", loaded.Platforms[0].CurrentDraft.DraftID)
}

func TestCheckpointRepository_OverwriteKeepsLatest(t *testing.T) {
	repo := setupCheckpoints(t)
	ctx := context.Background()

	state := &models.WorkflowExecutionState{
		WorkflowID: "wf-1",
		Platforms:  []*models.PlatformExecutionState{{Platform: models.PlatformX, Iteration: 1}},
	}
	require.NoError(t, repo.SaveCheckpoint(ctx, state))

	state.Platforms[0].Iteration = 2
	state.Platforms[0].Accepted = true
	require.NoError(t, repo.SaveCheckpoint(ctx, state))

	loaded, err := repo.GetCheckpoint(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Platforms[0].Iteration)
	assert.True(t, loaded.Platforms[0].Accepted)
}

func TestCheckpointRepository_MissingAndDelete(t *testing.T) {
	repo := setupCheckpoints(t)
	ctx := context.Background()

	_, err := repo.GetCheckpoint(ctx, "wf-missing")
	require.ErrorIs(t, err, persistence.ErrCheckpointNotFound)

	state := &models.WorkflowExecutionState{
		WorkflowID: "wf-1",
		Platforms:  []*models.PlatformExecutionState{{Platform: models.PlatformX}},
	}
	require.NoError(t, repo.SaveCheckpoint(ctx, state))
	require.NoError(t, repo.DeleteCheckpoint(ctx, "wf-1"))

	// Deleting an absent checkpoint is a no-op.
	require.NoError(t, repo.DeleteCheckpoint(ctx, "wf-1"))

	_, err = repo.GetCheckpoint(ctx, "wf-1")
	require.ErrorIs(t, err, persistence.ErrCheckpointNotFound)
}
