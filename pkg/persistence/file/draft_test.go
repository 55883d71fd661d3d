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

func testDraft(id, workflowID string, platform models.Platform, createdAt time.Time) *models.Draft {
	return &models.Draft{
		ID:         id,
		WorkflowID: workflowID,
		Platform:   platform,
		Content:    "content of " + id,
		Source:     models.DraftSourceAI,
		CreatedAt:  createdAt,
	}
}

func TestDraftRepository_SaveAndGet(t *testing.T) {
	repo := NewDraftRepository(t.TempDir())
	ctx := context.Background()

	draft := testDraft("draft-1", "wf-1", models.PlatformX, time.Now().UTC())
	draft.MediaURLs = []string{"https://example.com/a.png"}
	draft.MediaType = "image"

	require.NoError(t, repo.Save(ctx, draft))

	loaded, err := repo.GetByID(ctx, "draft-1")
	require.NoError(t, err)
	assert.Equal(t, draft.Content, loaded.Content)
	assert.Equal(t, draft.MediaURLs, loaded.MediaURLs)
	assert.Equal(t, "image", loaded.MediaType)
}

func TestDraftRepository_GetMissing(t *testing.T) {
	repo := NewDraftRepository(t.TempDir())

	_, err := repo.GetByID(context.Background(), "nope")
	require.ErrorIs(t, err, persistence.ErrDraftNotFound)
}

func TestDraftRepository_ListByWorkflowAndPlatformOldestFirst(t *testing.T) {
	repo := NewDraftRepository(t.TempDir())
	ctx := context.Background()

	base := time.Now().UTC()
	require.NoError(t, repo.Save(ctx, testDraft("draft-2", "wf-1", models.PlatformX, base)))
	require.NoError(t, repo.Save(ctx, testDraft("draft-1", "wf-1", models.PlatformX, base.Add(-time.Hour))))
	require.NoError(t, repo.Save(ctx, testDraft("draft-3", "wf-1", models.PlatformLinkedIn, base)))
	require.NoError(t, repo.Save(ctx, testDraft("draft-4", "wf-2", models.PlatformX, base)))

	drafts, err := repo.ListByWorkflowAndPlatform(ctx, "wf-1", models.PlatformX)
	require.NoError(t, err)
	require.Len(t, drafts, 2)
	assert.Equal(t, "draft-1", drafts[0].ID)
	assert.Equal(t, "draft-2", drafts[1].ID)
}
