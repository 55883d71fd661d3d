// Package file provides file-based persistence for workflows, platform
// states, drafts, publishing jobs and checkpoints. Intended for development
// and tests; production deployments use the postgresql backend.
package file

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/soapbox-hq/soapbox/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface on the file system.
type Persistence struct {
	root           string
	workflowRepo   *WorkflowRepository
	platformRepo   *PlatformStateRepository
	draftRepo      *DraftRepository
	jobRepo        *PublishingJobRepository
	checkpointRepo *CheckpointRepository
}

// NewPersistence creates a new file persistence rooted at the given directory.
func NewPersistence(root string) persistence.Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:           cleanRoot,
		workflowRepo:   NewWorkflowRepository(cleanRoot),
		platformRepo:   NewPlatformStateRepository(cleanRoot),
		draftRepo:      NewDraftRepository(cleanRoot),
		jobRepo:        NewPublishingJobRepository(cleanRoot),
		checkpointRepo: NewCheckpointRepository(cleanRoot),
	}
}

// Close performs any necessary cleanup. For file persistence there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return fp.workflowRepo
}

func (fp *Persistence) PlatformStateRepository() persistence.PlatformStateRepository {
	return fp.platformRepo
}

func (fp *Persistence) DraftRepository() persistence.DraftRepository {
	return fp.draftRepo
}

func (fp *Persistence) PublishingJobRepository() persistence.PublishingJobRepository {
	return fp.jobRepo
}

func (fp *Persistence) CheckpointRepository() persistence.CheckpointRepository {
	return fp.checkpointRepo
}

// validateID rejects identifiers unsafe for file path construction.
func validateID(id string) error {
	if id == "" {
		return errors.New("identifier cannot be empty")
	}

	if strings.Contains(id, "..") || strings.Contains(id, "/") || strings.Contains(id, "\\") {
		return errors.New("identifier contains invalid characters")
	}

	return nil
}
