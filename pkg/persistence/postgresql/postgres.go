// Package postgresql provides the PostgreSQL persistence implementation for
// workflows, platform states, drafts, publishing jobs and checkpoints.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	// PostgreSQL driver.
	_ "github.com/lib/pq"

	"github.com/soapbox-hq/soapbox/pkg/persistence"
	"github.com/soapbox-hq/soapbox/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db             *sql.DB
	logger         *slog.Logger
	workflowRepo   *WorkflowRepository
	platformRepo   *PlatformStateRepository
	draftRepo      *DraftRepository
	jobRepo        *PublishingJobRepository
	checkpointRepo *CheckpointRepository
}

// NewPersistence creates a new PostgreSQL persistence layer and runs pending
// schema migrations.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:             database,
		logger:         logger,
		workflowRepo:   NewWorkflowRepository(database, logger),
		platformRepo:   NewPlatformStateRepository(database, logger),
		draftRepo:      NewDraftRepository(database, logger),
		jobRepo:        NewPublishingJobRepository(database, logger),
		checkpointRepo: NewCheckpointRepository(database, logger),
	}, nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflowRepo
}

func (p *Persistence) PlatformStateRepository() persistence.PlatformStateRepository {
	return p.platformRepo
}

func (p *Persistence) DraftRepository() persistence.DraftRepository {
	return p.draftRepo
}

func (p *Persistence) PublishingJobRepository() persistence.PublishingJobRepository {
	return p.jobRepo
}

func (p *Persistence) CheckpointRepository() persistence.CheckpointRepository {
	return p.checkpointRepo
}
