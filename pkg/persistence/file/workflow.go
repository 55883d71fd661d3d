package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/soapbox-hq/soapbox/pkg/models"
	"github.com/soapbox-hq/soapbox/pkg/persistence"
)

// WorkflowRepository handles workflow file operations.
type WorkflowRepository struct {
	root string
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(root string) *WorkflowRepository {
	return &WorkflowRepository{root: root}
}

func (wr *WorkflowRepository) dir() string {
	return filepath.Join(wr.root, "workflows")
}

func (wr *WorkflowRepository) path(id string) string {
	return filepath.Join(wr.dir(), id+".json")
}

// Save writes the workflow to disk, creating or replacing its file.
func (wr *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	if err := validateID(workflow.ID); err != nil {
		return fmt.Errorf("invalid workflow ID: %w", err)
	}

	if err := os.MkdirAll(wr.dir(), 0750); err != nil {
		return fmt.Errorf("failed to create workflows directory: %w", err)
	}

	data, err := json.Marshal(workflow)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow %s: %w", workflow.ID, err)
	}

	if err := os.WriteFile(wr.path(workflow.ID), data, 0600); err != nil {
		return fmt.Errorf("failed to write workflow %s: %w", workflow.ID, err)
	}

	return nil
}

// GetByID reads one workflow, returning ErrWorkflowNotFound when absent.
func (wr *WorkflowRepository) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	if err := validateID(id); err != nil {
		return nil, fmt.Errorf("invalid workflow ID: %w", err)
	}

	data, err := os.ReadFile(wr.path(id)) // #nosec G304 -- path is validated and constructed safely
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to read workflow %s: %w", id, err)
	}

	var workflow models.Workflow
	if err := json.Unmarshal(data, &workflow); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow %s: %w", id, err)
	}

	return &workflow, nil
}

// ListByUser returns the user's workflows, newest first.
func (wr *WorkflowRepository) ListByUser(ctx context.Context, userID string) ([]*models.Workflow, error) {
	entries, err := fs.Glob(os.DirFS(wr.dir()), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow files: %w", err)
	}

	workflows := make([]*models.Workflow, 0, len(entries))

	for _, entry := range entries {
		id := entry[:len(entry)-len(".json")]

		workflow, err := wr.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if workflow.UserID == userID {
			workflows = append(workflows, workflow)
		}
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.After(workflows[j].CreatedAt)
	})

	return workflows, nil
}

// UpdateStatus rewrites the workflow's status and completion timestamp.
func (wr *WorkflowRepository) UpdateStatus(ctx context.Context, id string, status models.WorkflowStatus, completedAt *time.Time) error {
	workflow, err := wr.GetByID(ctx, id)
	if err != nil {
		return err
	}

	workflow.Status = status
	workflow.UpdatedAt = time.Now().UTC()

	if completedAt != nil {
		workflow.CompletedAt = completedAt
	}

	return wr.Save(ctx, workflow)
}
