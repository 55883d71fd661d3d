package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/soapbox-hq/soapbox/pkg/models"
	"github.com/soapbox-hq/soapbox/pkg/persistence"
)

// DraftRepository handles draft database operations. Drafts are append-only;
// there is no update path.
type DraftRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewDraftRepository creates a new draft repository.
func NewDraftRepository(db *sql.DB, logger *slog.Logger) *DraftRepository {
	return &DraftRepository{db: db, logger: logger}
}

// Save inserts a draft row.
func (r *DraftRepository) Save(ctx context.Context, draft *models.Draft) error {
	query := `
		INSERT INTO drafts (
			id
		  , workflow_id
		  , platform
		  , content
		  , source
		  , media_urls
		  , media_type
		  , created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	mediaURLs, err := json.Marshal(draft.MediaURLs)
	if err != nil {
		return fmt.Errorf("failed to marshal media urls for draft %s: %w", draft.ID, err)
	}

	_, err = r.db.ExecContext(ctx, query,
		draft.ID,
		draft.WorkflowID,
		draft.Platform,
		draft.Content,
		draft.Source,
		mediaURLs,
		draft.MediaType,
		draft.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save draft %s: %w", draft.ID, err)
	}

	return nil
}

// GetByID returns one draft, or ErrDraftNotFound.
func (r *DraftRepository) GetByID(ctx context.Context, id string) (*models.Draft, error) {
	query := `
		SELECT
			id
		  , workflow_id
		  , platform
		  , content
		  , source
		  , media_urls
		  , media_type
		  , created_at
		FROM drafts
		WHERE id = $1
	`

	draft, err := scanDraft(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("draft %s: %w", id, persistence.ErrDraftNotFound)
		}

		return nil, fmt.Errorf("failed to scan draft %s: %w", id, err)
	}

	return draft, nil
}

// ListByWorkflowAndPlatform returns the platform's draft history, oldest first.
func (r *DraftRepository) ListByWorkflowAndPlatform(ctx context.Context, workflowID string, platform models.Platform) ([]*models.Draft, error) {
	query := `
		SELECT
			id
		  , workflow_id
		  , platform
		  , content
		  , source
		  , media_urls
		  , media_type
		  , created_at
		FROM drafts
		WHERE workflow_id = $1 AND platform = $2
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, workflowID, platform)
	if err != nil {
		return nil, fmt.Errorf("failed to query drafts for %s/%s: %w", workflowID, platform, err)
	}

	defer closeRows(ctx, rows, r.logger)

	drafts := make([]*models.Draft, 0)

	for rows.Next() {
		draft, err := scanDraft(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan draft: %w", err)
		}

		drafts = append(drafts, draft)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating drafts: %w", err)
	}

	return drafts, nil
}

func scanDraft(row rowScanner) (*models.Draft, error) {
	var (
		draft     models.Draft
		mediaURLs []byte
	)

	err := row.Scan(
		&draft.ID,
		&draft.WorkflowID,
		&draft.Platform,
		&draft.Content,
		&draft.Source,
		&mediaURLs,
		&draft.MediaType,
		&draft.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(mediaURLs) > 0 {
		if err := json.Unmarshal(mediaURLs, &draft.MediaURLs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal media urls: %w", err)
		}
	}

	return &draft, nil
}
