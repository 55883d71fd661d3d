// Package redis provides a Redis-backed checkpoint store. It can replace the
// sql checkpoint repository when suspended workflow state should live in a
// shared low-latency store instead of the primary database.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/soapbox-hq/soapbox/pkg/models"
	"github.com/soapbox-hq/soapbox/pkg/persistence"
)

const keyPrefix = "soapbox:checkpoint:"

// CheckpointRepository implements persistence.CheckpointRepository on Redis.
// Checkpoints never expire: a workflow may stay suspended for weeks while a
// human decides.
type CheckpointRepository struct {
	client *redis.Client
}

// NewCheckpointRepository connects to Redis using a redis:// URL.
func NewCheckpointRepository(ctx context.Context, redisURL string) (*CheckpointRepository, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &CheckpointRepository{client: client}, nil
}

// SaveCheckpoint replaces the workflow's execution state snapshot.
func (r *CheckpointRepository) SaveCheckpoint(ctx context.Context, state *models.WorkflowExecutionState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint for workflow %s: %w", state.WorkflowID, err)
	}

	if err := r.client.Set(ctx, keyPrefix+state.WorkflowID, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save checkpoint for workflow %s: %w", state.WorkflowID, err)
	}

	return nil
}

// GetCheckpoint returns the latest execution state, or ErrCheckpointNotFound.
func (r *CheckpointRepository) GetCheckpoint(ctx context.Context, workflowID string) (*models.WorkflowExecutionState, error) {
	data, err := r.client.Get(ctx, keyPrefix+workflowID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
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
func (r *CheckpointRepository) DeleteCheckpoint(ctx context.Context, workflowID string) error {
	if err := r.client.Del(ctx, keyPrefix+workflowID).Err(); err != nil {
		return fmt.Errorf("failed to delete checkpoint for workflow %s: %w", workflowID, err)
	}

	return nil
}

// Close releases the Redis connection.
func (r *CheckpointRepository) Close() error {
	return r.client.Close()
}
