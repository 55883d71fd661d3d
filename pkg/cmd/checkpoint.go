package cmd

import (
	"context"
	"fmt"

	"github.com/soapbox-hq/soapbox/pkg/persistence"
	"github.com/soapbox-hq/soapbox/pkg/persistence/redis"
)

// NewCheckpointRepository returns the checkpoint store for suspended
// workflows. When checkpointURL is set it must be a redis:// URL and the
// Redis store replaces the primary backend's checkpoint repository.
func NewCheckpointRepository(ctx context.Context, p persistence.Persistence, checkpointURL string) persistence.CheckpointRepository {
	if checkpointURL == "" {
		return p.CheckpointRepository()
	}

	repo, err := redis.NewCheckpointRepository(ctx, checkpointURL)
	if err != nil {
		panic(fmt.Errorf("failed to create redis checkpoint repository: %w", err))
	}

	return repo
}
