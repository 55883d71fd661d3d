package graph

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/soapbox-hq/soapbox/pkg/models"
	"github.com/soapbox-hq/soapbox/pkg/otelhelper"
	"github.com/soapbox-hq/soapbox/pkg/persistence"
	"github.com/soapbox-hq/soapbox/pkg/protocol"
)

// memCheckpoints is an in-memory checkpoint store counting saves.
type memCheckpoints struct {
	mu     sync.Mutex
	states map[string]*models.WorkflowExecutionState
	saves  int
}

func newMemCheckpoints() *memCheckpoints {
	return &memCheckpoints{states: make(map[string]*models.WorkflowExecutionState)}
}

func (m *memCheckpoints) SaveCheckpoint(_ context.Context, state *models.WorkflowExecutionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.states[state.WorkflowID] = state
	m.saves++

	return nil
}

func (m *memCheckpoints) GetCheckpoint(_ context.Context, workflowID string) (*models.WorkflowExecutionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.states[workflowID]
	if !ok {
		return nil, persistence.ErrCheckpointNotFound
	}

	return state, nil
}

func (m *memCheckpoints) DeleteCheckpoint(_ context.Context, workflowID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.states, workflowID)

	return nil
}

// flakyGenerator fails for one platform and delegates the rest.
type flakyGenerator struct {
	inner        *stubGenerator
	failPlatform models.Platform
}

func (g *flakyGenerator) Generate(ctx context.Context, req protocol.GenerationRequest) (string, error) {
	if req.Platform == g.failPlatform {
		return "", errors.New("provider unavailable")
	}

	return g.inner.Generate(ctx, req)
}

func twoPlatformState() *models.WorkflowExecutionState {
	return &models.WorkflowExecutionState{
		WorkflowID:    "wf-1",
		UserID:        "user-1",
		Mode:          models.ModeManual,
		SourceContent: "launch announcement",
		Platforms: []*models.PlatformExecutionState{
			{Platform: models.PlatformLinkedIn},
			{Platform: models.PlatformX},
		},
	}
}

func testCoordinator(t *testing.T, gen *stubGenerator, eval *stubEvaluator, checkpoints persistence.CheckpointRepository) (*Coordinator, *stubDraftStore) {
	t.Helper()

	drafts := &stubDraftStore{}
	machine := NewMachine(drafts, gen, eval, DefaultConfig(), slog.Default())

	return NewCoordinator(machine, checkpoints, slog.Default(), nil), drafts
}

func TestStart_AllBranchesSuspendForReview(t *testing.T) {
	checkpoints := newMemCheckpoints()
	coordinator, drafts := testCoordinator(t, &stubGenerator{}, &stubEvaluator{scores: []int{90}}, checkpoints)

	state, prompts, err := coordinator.Start(context.Background(), twoPlatformState())
	require.NoError(t, err)

	require.Len(t, prompts, 2)
	assert.True(t, state.Complete())

	for _, branch := range state.Platforms {
		assert.True(t, branch.AwaitingHuman)
		assert.Equal(t, 1, branch.Iteration)
		require.NotNil(t, branch.CurrentDraft)
	}

	// One round, one checkpoint, one review transition per platform.
	assert.Equal(t, 1, checkpoints.saves)
	assert.Len(t, drafts.statusUpdates, 2)
}

func TestStart_BranchFailureDoesNotBlockSiblings(t *testing.T) {
	checkpoints := newMemCheckpoints()
	drafts := &stubDraftStore{}
	gen := &flakyGenerator{inner: &stubGenerator{}, failPlatform: models.PlatformX}
	machine := NewMachine(drafts, gen, &stubEvaluator{scores: []int{90}}, DefaultConfig(), slog.Default())
	coordinator := NewCoordinator(machine, checkpoints, slog.Default(), nil)

	state, prompts, err := coordinator.Start(context.Background(), twoPlatformState())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider unavailable")

	// The healthy sibling ran to its rest point and was merged before the
	// error surfaced, and the round was still checkpointed.
	linkedin := state.PlatformBranch(models.PlatformLinkedIn)
	require.NotNil(t, linkedin)
	assert.True(t, linkedin.AwaitingHuman)
	require.Len(t, prompts, 1)
	assert.Equal(t, models.PlatformLinkedIn, prompts[0].Platform)

	// The failed branch kept its pre-round state.
	x := state.PlatformBranch(models.PlatformX)
	require.NotNil(t, x)
	assert.Zero(t, x.Iteration)
	assert.False(t, x.AwaitingHuman)

	assert.Equal(t, 1, checkpoints.saves)
}

func TestStart_DecidedBranchesAreSkipped(t *testing.T) {
	checkpoints := newMemCheckpoints()
	gen := &stubGenerator{}
	coordinator, _ := testCoordinator(t, gen, &stubEvaluator{scores: []int{90}}, checkpoints)

	state := twoPlatformState()
	state.Platforms[0].Accepted = true

	merged, prompts, err := coordinator.Start(context.Background(), state)
	require.NoError(t, err)

	// Only the undecided platform ran.
	assert.Equal(t, 1, gen.calls())
	require.Len(t, prompts, 1)
	assert.Equal(t, models.PlatformX, prompts[0].Platform)
	assert.True(t, merged.PlatformBranch(models.PlatformLinkedIn).Accepted)
}

func TestResume_WithFeedbackRegeneratesOneBranch(t *testing.T) {
	checkpoints := newMemCheckpoints()
	gen := &stubGenerator{}
	coordinator, _ := testCoordinator(t, gen, &stubEvaluator{scores: []int{90}}, checkpoints)

	_, _, err := coordinator.Start(context.Background(), twoPlatformState())
	require.NoError(t, err)

	callsAfterStart := gen.calls()

	state, prompts, err := coordinator.Resume(context.Background(), "wf-1", ResumePayload{
		Platform:             models.PlatformX,
		FeedbackInstructions: "add a call to action",
	})
	require.NoError(t, err)

	// Exactly one branch regenerated; the sibling stayed suspended at its
	// first iteration.
	assert.Equal(t, callsAfterStart+1, gen.calls())
	assert.Equal(t, 2, state.PlatformBranch(models.PlatformX).Iteration)
	assert.Equal(t, 1, state.PlatformBranch(models.PlatformLinkedIn).Iteration)

	// Both undecided branches are suspended again after the resume round.
	assert.Len(t, prompts, 2)

	lastReq := gen.requests[len(gen.requests)-1]
	assert.Equal(t, "add a call to action", lastReq.FeedbackInstructions)
}

func TestResume_WithoutFeedbackKeepsBranchSuspended(t *testing.T) {
	checkpoints := newMemCheckpoints()
	gen := &stubGenerator{}
	coordinator, _ := testCoordinator(t, gen, &stubEvaluator{scores: []int{90}}, checkpoints)

	_, _, err := coordinator.Start(context.Background(), twoPlatformState())
	require.NoError(t, err)

	callsAfterStart := gen.calls()

	state, prompts, err := coordinator.Resume(context.Background(), "wf-1", ResumePayload{Platform: models.PlatformLinkedIn})
	require.NoError(t, err)

	assert.Equal(t, callsAfterStart, gen.calls())
	assert.True(t, state.PlatformBranch(models.PlatformLinkedIn).AwaitingHuman)
	assert.Len(t, prompts, 2)
}

func TestResume_UnknownPlatform(t *testing.T) {
	checkpoints := newMemCheckpoints()
	coordinator, _ := testCoordinator(t, &stubGenerator{}, &stubEvaluator{scores: []int{90}}, checkpoints)

	_, _, err := coordinator.Start(context.Background(), &models.WorkflowExecutionState{
		WorkflowID: "wf-1",
		UserID:     "user-1",
		Mode:       models.ModeManual,
		Platforms:  []*models.PlatformExecutionState{{Platform: models.PlatformLinkedIn}},
	})
	require.NoError(t, err)

	_, _, err = coordinator.Resume(context.Background(), "wf-1", ResumePayload{Platform: models.PlatformX})
	require.ErrorIs(t, err, ErrBranchNotFound)
}

func TestResume_MissingCheckpoint(t *testing.T) {
	coordinator, _ := testCoordinator(t, &stubGenerator{}, &stubEvaluator{scores: []int{90}}, newMemCheckpoints())

	_, _, err := coordinator.Resume(context.Background(), "wf-missing", ResumePayload{Platform: models.PlatformX})
	require.ErrorIs(t, err, persistence.ErrCheckpointNotFound)
}

func TestStart_BranchSpansRecordIteration(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tracer := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)).Tracer("test")

	drafts := &stubDraftStore{}
	machine := NewMachine(drafts, &stubGenerator{}, &stubEvaluator{scores: []int{90}}, DefaultConfig(), slog.Default())
	coordinator := NewCoordinator(machine, newMemCheckpoints(), slog.Default(), tracer)

	_, _, err := coordinator.Start(context.Background(), twoPlatformState())
	require.NoError(t, err)

	var branchSpans int

	for _, span := range recorder.Ended() {
		if span.Name() != "workflow.branch" {
			continue
		}

		branchSpans++

		assert.Contains(t, span.Attributes(), attribute.Int(otelhelper.IterationKey, 1))
	}

	assert.Equal(t, 2, branchSpans)
}
