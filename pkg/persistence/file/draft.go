package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/soapbox-hq/soapbox/pkg/models"
	"github.com/soapbox-hq/soapbox/pkg/persistence"
)

// DraftRepository handles draft file operations. Drafts are grouped by
// workflow at drafts/<workflow_id>/<draft_id>.json so per-workflow listings
// never scan unrelated content.
type DraftRepository struct {
	root string
}

// NewDraftRepository creates a new draft repository.
func NewDraftRepository(root string) *DraftRepository {
	return &DraftRepository{root: root}
}

func (dr *DraftRepository) dir(workflowID string) string {
	return filepath.Join(dr.root, "drafts", workflowID)
}

// Save writes the draft. Drafts are immutable; writing twice with the same ID
// only happens when retrying a failed save.
func (dr *DraftRepository) Save(_ context.Context, draft *models.Draft) error {
	if err := validateID(draft.ID); err != nil {
		return fmt.Errorf("invalid draft ID: %w", err)
	}

	if err := validateID(draft.WorkflowID); err != nil {
		return fmt.Errorf("invalid workflow ID: %w", err)
	}

	if err := os.MkdirAll(dr.dir(draft.WorkflowID), 0750); err != nil {
		return fmt.Errorf("failed to create drafts directory: %w", err)
	}

	data, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("failed to marshal draft %s: %w", draft.ID, err)
	}

	path := filepath.Join(dr.dir(draft.WorkflowID), draft.ID+".json")
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write draft %s: %w", draft.ID, err)
	}

	return nil
}

// GetByID scans workflow directories for the draft. Returns ErrDraftNotFound
// when absent.
func (dr *DraftRepository) GetByID(_ context.Context, id string) (*models.Draft, error) {
	if err := validateID(id); err != nil {
		return nil, fmt.Errorf("invalid draft ID: %w", err)
	}

	draftsRoot := filepath.Join(dr.root, "drafts")

	matches, err := fs.Glob(os.DirFS(draftsRoot), "*/"+id+".json")
	if err != nil {
		return nil, fmt.Errorf("failed to locate draft %s: %w", id, err)
	}

	if len(matches) == 0 {
		return nil, fmt.Errorf("draft %s: %w", id, persistence.ErrDraftNotFound)
	}

	data, err := os.ReadFile(filepath.Join(draftsRoot, matches[0])) // #nosec G304 -- path is validated and constructed safely
	if err != nil {
		return nil, fmt.Errorf("failed to read draft %s: %w", id, err)
	}

	var draft models.Draft
	if err := json.Unmarshal(data, &draft); err != nil {
		return nil, fmt.Errorf("failed to unmarshal draft %s: %w", id, err)
	}

	return &draft, nil
}

// ListByWorkflowAndPlatform returns the platform's drafts, oldest first, so
// the caller sees the revision history in creation order.
func (dr *DraftRepository) ListByWorkflowAndPlatform(_ context.Context, workflowID string, platform models.Platform) ([]*models.Draft, error) {
	if err := validateID(workflowID); err != nil {
		return nil, fmt.Errorf("invalid workflow ID: %w", err)
	}

	entries, err := fs.Glob(os.DirFS(dr.dir(workflowID)), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list drafts for workflow %s: %w", workflowID, err)
	}

	drafts := make([]*models.Draft, 0, len(entries))

	for _, entry := range entries {
		data, err := os.ReadFile(filepath.Join(dr.dir(workflowID), entry)) // #nosec G304 -- path is validated and constructed safely
		if err != nil {
			return nil, fmt.Errorf("failed to read draft file %s: %w", entry, err)
		}

		var draft models.Draft
		if err := json.Unmarshal(data, &draft); err != nil {
			return nil, fmt.Errorf("failed to unmarshal draft file %s: %w", entry, err)
		}

		if draft.Platform == platform {
			drafts = append(drafts, &draft)
		}
	}

	sort.Slice(drafts, func(i, j int) bool {
		return drafts[i].CreatedAt.Before(drafts[j].CreatedAt)
	})

	return drafts, nil
}
