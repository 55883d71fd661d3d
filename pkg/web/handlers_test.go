package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soapbox-hq/soapbox/pkg/collaborators"
	"github.com/soapbox-hq/soapbox/pkg/eventbus"
	"github.com/soapbox-hq/soapbox/pkg/graph"
	"github.com/soapbox-hq/soapbox/pkg/models"
	"github.com/soapbox-hq/soapbox/pkg/persistence"
	"github.com/soapbox-hq/soapbox/pkg/persistence/file"
	"github.com/soapbox-hq/soapbox/pkg/protocol"
	"github.com/soapbox-hq/soapbox/pkg/publishing"
	"github.com/soapbox-hq/soapbox/pkg/web"
	"github.com/soapbox-hq/soapbox/pkg/workflow"
)

type noopBus struct{}

func (noopBus) Publish(_ context.Context, _ string, _ eventbus.Event) error { return nil }

type testEnv struct {
	app         *fiber.App
	persistence persistence.Persistence
	workflows   *workflow.WorkflowService
	reviews     *workflow.ReviewService
	publishing  *publishing.Service
}

func setupTestApp(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.Default()
	p := file.NewPersistence(t.TempDir())
	bus := noopBus{}

	drafts := workflow.NewDraftService(p, logger)
	machine := graph.NewMachine(drafts, collaborators.NewEchoGenerator(logger), collaborators.NewLengthEvaluator(logger), graph.DefaultConfig(), logger)
	coordinator := graph.NewCoordinator(machine, p.CheckpointRepository(), logger, nil)
	completion := workflow.NewCompletionService(p, bus, logger)

	workflowService, err := workflow.NewWorkflowService(p, coordinator, bus, logger)
	require.NoError(t, err)

	reviewService := workflow.NewReviewService(p, drafts, coordinator, completion, bus, logger)

	publishers := make(map[models.Platform]protocol.Publisher)
	for _, platform := range models.KnownPlatforms {
		publishers[platform] = collaborators.NewLogPublisher(logger)
	}

	executor := publishing.NewExecutor(p, publishers, bus, logger, nil)
	publishingService := publishing.NewService(p, executor, completion, bus, logger)

	validate := validator.New(validator.WithRequiredStructEnabled())
	handlers := web.NewAPIHandlers(workflowService, reviewService, drafts, publishingService, p, validate, logger)

	app := fiber.New()

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Get("/:id/drafts/:platform", handlers.GetDrafts)
	w.Post("/:id/review", handlers.ReviewPlatform)
	w.Post("/:id/publish", handlers.PublishPlatform)
	w.Get("/:id/jobs", handlers.GetJobs)

	j := app.Group("/jobs")
	j.Post("/:jobId/cancel", handlers.CancelJob)
	j.Post("/:jobId/reschedule", handlers.RescheduleJob)

	app.Get("/health", handlers.HealthCheck)

	return &testEnv{
		app:         app,
		persistence: p,
		workflows:   workflowService,
		reviews:     reviewService,
		publishing:  publishingService,
	}
}

// createReviewableWorkflow creates a workflow and runs generation to the
// review suspension point, bypassing the HTTP layer's background execution.
func createReviewableWorkflow(t *testing.T, env *testEnv, userID string, platforms ...models.Platform) string {
	t.Helper()

	ctx := context.Background()

	created, state, err := env.workflows.Create(ctx, workflow.CreateRequest{
		UserID:        userID,
		Title:         "Launch post",
		Mode:          models.ModeManual,
		SourceContent: "introducing our new product",
		Platforms:     platforms,
	})
	require.NoError(t, err)
	require.NoError(t, env.workflows.Run(ctx, state))

	return created.ID
}

func doRequest(t *testing.T, env *testEnv, method, path, userID string, payload any) *http.Response {
	t.Helper()

	var body io.Reader

	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)

		body = bytes.NewBuffer(raw)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")

	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}

	resp, err := env.app.Test(req)
	require.NoError(t, err)

	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out T

	require.NoError(t, json.Unmarshal(raw, &out))

	return out
}

func TestAPIHandlers_CreateWorkflow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		userID         string
		requestBody    any
		expectedStatus int
	}{
		{
			name:   "successful creation",
			userID: "user-1",
			requestBody: web.CreateWorkflowRequest{
				Title:     "Launch post",
				Mode:      "manual",
				Content:   "introducing our new product",
				Platforms: []string{"linkedin", "x"},
			},
			expectedStatus: http.StatusAccepted,
		},
		{
			name:           "missing user header",
			userID:         "",
			requestBody:    web.CreateWorkflowRequest{Mode: "manual", Content: "post", Platforms: []string{"x"}},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "missing platforms",
			userID:         "user-1",
			requestBody:    web.CreateWorkflowRequest{Mode: "manual", Content: "post"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unknown mode",
			userID:         "user-1",
			requestBody:    web.CreateWorkflowRequest{Mode: "freestyle", Content: "post", Platforms: []string{"x"}},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unknown platform",
			userID:         "user-1",
			requestBody:    web.CreateWorkflowRequest{Mode: "manual", Content: "post", Platforms: []string{"myspace"}},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid JSON",
			userID:         "user-1",
			requestBody:    "not-json",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := setupTestApp(t)

			var (
				body []byte
				err  error
			)

			if str, ok := tt.requestBody.(string); ok {
				body = []byte(str)
			} else {
				body, err = json.Marshal(tt.requestBody)
				require.NoError(t, err)
			}

			req := httptest.NewRequest(http.MethodPost, "/workflows", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")

			if tt.userID != "" {
				req.Header.Set("X-User-ID", tt.userID)
			}

			resp, err := env.app.Test(req)
			require.NoError(t, err)

			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus == http.StatusAccepted {
				created := decodeBody[web.WorkflowResponse](t, resp)
				assert.NotEmpty(t, created.Workflow.ID)
				assert.Equal(t, "user-1", created.Workflow.UserID)
				assert.Equal(t, []models.Platform{models.PlatformLinkedIn, models.PlatformX}, created.Platforms)
			} else {
				_ = resp.Body.Close()
			}
		})
	}
}

// Header values alias fiber's request buffer, which is recycled for the next
// request while the creation goroutine is still running. Back-to-back creates
// with distinct owners must each checkpoint and persist their own owner.
func TestAPIHandlers_CreateWorkflow_OwnerSurvivesBackgroundRun(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	ctx := context.Background()

	owners := make(map[string]string)

	for i := range 20 {
		userID := fmt.Sprintf("user-%02d", i)

		resp := doRequest(t, env, http.MethodPost, "/workflows", userID, web.CreateWorkflowRequest{
			Title:     "Launch post",
			Mode:      "manual",
			Content:   "introducing our new product",
			Platforms: []string{"linkedin"},
		})
		require.Equal(t, http.StatusAccepted, resp.StatusCode)

		created := decodeBody[web.WorkflowResponse](t, resp)
		require.Equal(t, []models.Platform{models.PlatformLinkedIn}, created.Platforms)
		owners[created.Workflow.ID] = userID
	}

	for id, owner := range owners {
		require.Eventuallyf(t, func() bool {
			state, err := env.persistence.CheckpointRepository().GetCheckpoint(ctx, id)

			return err == nil && state.UserID == owner
		}, 5*time.Second, 10*time.Millisecond, "workflow %s should checkpoint owner %s", id, owner)

		stored, err := env.persistence.WorkflowRepository().GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, owner, stored.UserID)
	}
}

func TestAPIHandlers_GetWorkflow(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	id := createReviewableWorkflow(t, env, "user-1", models.PlatformLinkedIn)

	resp := doRequest(t, env, http.MethodGet, "/workflows/"+id, "user-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	view := decodeBody[workflow.WorkflowView](t, resp)
	assert.Equal(t, models.WorkflowStatusAwaitingReview, view.Workflow.Status)
	require.Len(t, view.Platforms, 1)
	assert.Equal(t, models.PlatformStatusAwaitingReview, view.Platforms[0].State.Status)
	require.NotNil(t, view.Platforms[0].ActiveDraft)
	assert.Contains(t, view.Platforms[0].ActiveDraft.Content, "introducing our new product")
}

func TestAPIHandlers_GetWorkflow_Errors(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	id := createReviewableWorkflow(t, env, "user-1", models.PlatformLinkedIn)

	resp := doRequest(t, env, http.MethodGet, "/workflows/"+id, "intruder", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doRequest(t, env, http.MethodGet, "/workflows/does-not-exist", "user-1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doRequest(t, env, http.MethodGet, "/workflows/"+id, "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAPIHandlers_GetWorkflows_OwnedOnly(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	createReviewableWorkflow(t, env, "user-1", models.PlatformX)
	createReviewableWorkflow(t, env, "user-1", models.PlatformLinkedIn)
	createReviewableWorkflow(t, env, "user-2", models.PlatformX)

	resp := doRequest(t, env, http.MethodGet, "/workflows/", "user-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	listing := decodeBody[struct {
		Workflows []*models.Workflow `json:"workflows"`
	}](t, resp)
	assert.Len(t, listing.Workflows, 2)
}

func TestAPIHandlers_GetDrafts(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	id := createReviewableWorkflow(t, env, "user-1", models.PlatformX)

	resp := doRequest(t, env, http.MethodGet, "/workflows/"+id+"/drafts/x", "user-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	listing := decodeBody[struct {
		Drafts []*models.Draft `json:"drafts"`
	}](t, resp)
	require.Len(t, listing.Drafts, 1)
	assert.Equal(t, models.PlatformX, listing.Drafts[0].Platform)

	resp = doRequest(t, env, http.MethodGet, "/workflows/"+id+"/drafts/myspace", "user-1", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIHandlers_ReviewPlatform(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	id := createReviewableWorkflow(t, env, "user-1", models.PlatformLinkedIn)

	resp := doRequest(t, env, http.MethodPost, "/workflows/"+id+"/review", "user-1", web.ReviewRequest{
		Platform: "linkedin",
		Action:   "accept",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	view := decodeBody[workflow.WorkflowView](t, resp)
	require.Len(t, view.Platforms, 1)
	assert.Equal(t, models.PlatformStatusAccepted, view.Platforms[0].State.Status)

	// A second decision on the same platform conflicts.
	resp = doRequest(t, env, http.MethodPost, "/workflows/"+id+"/review", "user-1", web.ReviewRequest{
		Platform: "linkedin",
		Action:   "reject",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPIHandlers_ReviewPlatform_Validation(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	id := createReviewableWorkflow(t, env, "user-1", models.PlatformLinkedIn)

	tests := []struct {
		name           string
		request        web.ReviewRequest
		expectedStatus int
	}{
		{
			name:           "edit without content",
			request:        web.ReviewRequest{Platform: "linkedin", Action: "edit_and_publish"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unknown action",
			request:        web.ReviewRequest{Platform: "linkedin", Action: "escalate"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unknown platform",
			request:        web.ReviewRequest{Platform: "myspace", Action: "accept"},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doRequest(t, env, http.MethodPost, "/workflows/"+id+"/review", "user-1", tt.request)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
		})
	}
}

func TestAPIHandlers_PublishPlatform(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	id := createReviewableWorkflow(t, env, "user-1", models.PlatformX)

	// Publishing requires an accepted platform.
	resp := doRequest(t, env, http.MethodPost, "/workflows/"+id+"/publish", "user-1", web.PublishRequest{Platform: "x"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = doRequest(t, env, http.MethodPost, "/workflows/"+id+"/review", "user-1", web.ReviewRequest{
		Platform: "x",
		Action:   "accept",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doRequest(t, env, http.MethodPost, "/workflows/"+id+"/publish", "user-1", web.PublishRequest{Platform: "x"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	job := decodeBody[models.PublishingJob](t, resp)
	assert.True(t, job.Immediate)
	assert.Equal(t, models.PublishingStatusSuccess, job.Status)
	assert.NotEmpty(t, job.ExternalID)
}

func TestAPIHandlers_JobLifecycle(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	id := createReviewableWorkflow(t, env, "user-1", models.PlatformX)

	resp := doRequest(t, env, http.MethodPost, "/workflows/"+id+"/review", "user-1", web.ReviewRequest{
		Platform: "x",
		Action:   "accept",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	publishAt := time.Now().UTC().Add(24 * time.Hour)

	resp = doRequest(t, env, http.MethodPost, "/workflows/"+id+"/publish", "user-1", web.PublishRequest{
		Platform:  "x",
		PublishAt: &publishAt,
		Timezone:  "UTC",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	job := decodeBody[models.PublishingJob](t, resp)
	assert.Equal(t, models.PublishingStatusPending, job.Status)

	resp = doRequest(t, env, http.MethodGet, "/workflows/"+id+"/jobs", "user-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	listing := decodeBody[struct {
		Jobs []*models.PublishingJob `json:"jobs"`
	}](t, resp)
	require.Len(t, listing.Jobs, 1)

	resp = doRequest(t, env, http.MethodPost, "/jobs/"+job.ID+"/cancel", "user-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cancelled := decodeBody[models.PublishingJob](t, resp)
	assert.Equal(t, models.PublishingStatusCancelled, cancelled.Status)

	// Cancelling twice conflicts.
	resp = doRequest(t, env, http.MethodPost, "/jobs/"+job.ID+"/cancel", "user-1", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// A cancelled job can be rescheduled to a future time.
	resp = doRequest(t, env, http.MethodPost, "/jobs/"+job.ID+"/reschedule", "user-1", web.RescheduleRequest{
		PublishAt: time.Now().UTC().Add(48 * time.Hour),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	rescheduled := decodeBody[models.PublishingJob](t, resp)
	assert.Equal(t, models.PublishingStatusPending, rescheduled.Status)

	resp = doRequest(t, env, http.MethodPost, "/jobs/"+job.ID+"/reschedule", "user-1", web.RescheduleRequest{
		PublishAt: time.Now().UTC().Add(-time.Hour),
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doRequest(t, env, http.MethodPost, "/jobs/does-not-exist/cancel", "user-1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_HealthCheck(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)

	resp := doRequest(t, env, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
