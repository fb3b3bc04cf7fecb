package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redline/api/internal/store"
)

// fakeStore is an in-memory Store with the same CAS semantics as the
// Postgres implementation.
type fakeStore struct {
	workflows   map[string]store.Workflow
	transitions []store.TransitionRecord
	failSwap    bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{workflows: make(map[string]store.Workflow)}
}

func (f *fakeStore) addWorkflow(id, stage string, active bool) {
	f.workflows[id] = store.Workflow{ID: id, DocumentID: "doc_" + id, CurrentStage: stage, IsActive: active}
}

func (f *fakeStore) GetWorkflow(ctx context.Context, workflowID string) (store.Workflow, error) {
	wf, ok := f.workflows[workflowID]
	if !ok {
		return store.Workflow{}, errors.New("workflow not found")
	}
	return wf, nil
}

func (f *fakeStore) SetWorkflowStage(ctx context.Context, workflowID, expectedStage, newStage string, isActive bool) (bool, error) {
	if f.failSwap {
		return false, nil
	}
	wf, ok := f.workflows[workflowID]
	if !ok || wf.CurrentStage != expectedStage {
		return false, nil
	}
	wf.CurrentStage = newStage
	wf.IsActive = isActive
	f.workflows[workflowID] = wf
	return true, nil
}

func (f *fakeStore) InsertTransition(ctx context.Context, record store.TransitionRecord) error {
	record.ID = int64(len(f.transitions) + 1)
	f.transitions = append(f.transitions, record)
	return nil
}

func (f *fakeStore) ListTransitions(ctx context.Context, workflowID string) ([]store.TransitionRecord, error) {
	var out []store.TransitionRecord
	for _, record := range f.transitions {
		if record.WorkflowID == workflowID {
			out = append(out, record)
		}
	}
	return out, nil
}

var (
	author    = Actor{ID: "usr_a", Name: "Avery", Role: RoleAuthor}
	icu       = Actor{ID: "usr_i", Name: "Indra", Role: RoleICUReviewer}
	technical = Actor{ID: "usr_t", Name: "Tain", Role: RoleTechnicalReviewer}
	legal     = Actor{ID: "usr_l", Name: "Lee", Role: RoleLegalReviewer}
	publisher = Actor{ID: "usr_p", Name: "Pat", Role: RolePublisher}
	admin     = Actor{ID: "usr_w", Name: "Wren", Role: RoleWorkflowAdmin}
)

func TestAdvanceRequiresTargetStageRole(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	fs.addWorkflow("wf_1", string(StageDraftCreation), true)
	m := NewMachine(fs)

	// Entering INTERNAL_COORDINATION takes the ICU reviewer.
	wf, err := m.Advance(ctx, "wf_1", icu)
	require.NoError(t, err)
	assert.Equal(t, string(StageInternalCoordination), wf.CurrentStage)

	// A legal reviewer cannot push into the author's revision stage.
	_, err = m.Advance(ctx, "wf_1", legal)
	require.ErrorIs(t, err, ErrUnauthorized)

	// State and history untouched by the rejected attempt.
	wf, err = fs.GetWorkflow(ctx, "wf_1")
	require.NoError(t, err)
	assert.Equal(t, string(StageInternalCoordination), wf.CurrentStage)
	history, err := m.History(ctx, "wf_1")
	require.NoError(t, err)
	require.Len(t, history, 1)
}

func TestAdvanceFullPipeline(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	fs.addWorkflow("wf_1", string(StageDraftCreation), true)
	m := NewMachine(fs)

	movers := []Actor{icu, author, technical, author, legal, author, publisher}
	for _, actor := range movers {
		_, err := m.Advance(ctx, "wf_1", actor)
		require.NoError(t, err, "actor %s", actor.Name)
	}

	wf, err := fs.GetWorkflow(ctx, "wf_1")
	require.NoError(t, err)
	assert.Equal(t, string(StageFinalPublishing), wf.CurrentStage)
	assert.True(t, wf.IsActive, "arrival at the terminal stage does not finish the workflow")

	// No further forward movement from the terminal stage.
	_, err = m.Advance(ctx, "wf_1", admin)
	assert.ErrorIs(t, err, ErrTerminalStage)

	history, err := m.History(ctx, "wf_1")
	require.NoError(t, err)
	require.Len(t, history, 7)
	for i, record := range history {
		assert.Equal(t, string(DirectionForward), record.Direction, "record %d", i)
	}
	assert.Equal(t, string(StageDraftCreation), history[0].FromStage)
	assert.Equal(t, string(StageFinalPublishing), history[6].ToStage)
}

func TestAdminMayAdvanceAnyStage(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	fs.addWorkflow("wf_1", string(StageDraftCreation), true)
	m := NewMachine(fs)

	for range Stages()[:len(Stages())-1] {
		_, err := m.Advance(ctx, "wf_1", admin)
		require.NoError(t, err)
	}
	wf, _ := fs.GetWorkflow(ctx, "wf_1")
	assert.Equal(t, string(StageFinalPublishing), wf.CurrentStage)
}

func TestAdvanceInactiveWorkflow(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	fs.addWorkflow("wf_1", string(StageDraftCreation), false)
	m := NewMachine(fs)

	_, err := m.Advance(ctx, "wf_1", icu)
	assert.ErrorIs(t, err, ErrNotActive)
}

func TestAdvanceStageConflict(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	fs.addWorkflow("wf_1", string(StageDraftCreation), true)
	fs.failSwap = true
	m := NewMachine(fs)

	_, err := m.Advance(ctx, "wf_1", icu)
	assert.ErrorIs(t, err, ErrStageConflict)
	assert.Empty(t, fs.transitions, "losing writer must not append history")
}

func TestRetreatAdminOnlyWithReason(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	fs.addWorkflow("wf_1", string(StageOPRRevisions), true)
	m := NewMachine(fs)

	// Non-admin rejected even with a reason.
	_, err := m.Retreat(ctx, "wf_1", StageInternalCoordination, "needs rework", icu)
	require.ErrorIs(t, err, ErrUnauthorized)

	// Blank reason rejected.
	_, err = m.Retreat(ctx, "wf_1", StageInternalCoordination, "   ", admin)
	require.ErrorIs(t, err, ErrMissingReason)

	// Skipping past the immediate predecessor rejected.
	_, err = m.Retreat(ctx, "wf_1", StageDraftCreation, "start over", admin)
	require.ErrorIs(t, err, ErrInvalidTarget)

	// Nothing recorded so far.
	history, _ := m.History(ctx, "wf_1")
	require.Empty(t, history)

	wf, err := m.Retreat(ctx, "wf_1", StageInternalCoordination, "coordination incomplete", admin)
	require.NoError(t, err)
	assert.Equal(t, string(StageInternalCoordination), wf.CurrentStage)

	history, _ = m.History(ctx, "wf_1")
	require.Len(t, history, 1)
	assert.Equal(t, string(DirectionBackward), history[0].Direction)
	assert.Equal(t, "coordination incomplete", history[0].Reason)
}

func TestCompleteTerminalStage(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	fs.addWorkflow("wf_1", string(StageFinalPublishing), true)
	m := NewMachine(fs)

	// Only the publisher or the admin may finish.
	_, err := m.CompleteTerminalStage(ctx, "wf_1", author)
	require.ErrorIs(t, err, ErrUnauthorized)

	wf, err := m.CompleteTerminalStage(ctx, "wf_1", publisher)
	require.NoError(t, err)
	assert.False(t, wf.IsActive)
	assert.Equal(t, string(StageFinalPublishing), wf.CurrentStage)

	// Finished workflows reject further completion.
	_, err = m.CompleteTerminalStage(ctx, "wf_1", publisher)
	assert.ErrorIs(t, err, ErrNotActive)

	history, _ := m.History(ctx, "wf_1")
	require.Len(t, history, 1)
	assert.Equal(t, "published", history[0].Reason)
}

func TestCompleteTerminalStageRequiresTerminal(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	fs.addWorkflow("wf_1", string(StageLegalReview), true)
	m := NewMachine(fs)

	_, err := m.CompleteTerminalStage(ctx, "wf_1", publisher)
	assert.ErrorIs(t, err, ErrNotAtTerminal)
}

func TestResetReturnsToFirstStage(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	fs.addWorkflow("wf_1", string(StageLegalReview), true)
	m := NewMachine(fs)

	_, err := m.Reset(ctx, "wf_1", publisher)
	require.ErrorIs(t, err, ErrUnauthorized)

	wf, err := m.Reset(ctx, "wf_1", admin)
	require.NoError(t, err)
	assert.Equal(t, string(StageDraftCreation), wf.CurrentStage)
	assert.True(t, wf.IsActive)

	history, _ := m.History(ctx, "wf_1")
	require.Len(t, history, 1)
	assert.Equal(t, string(DirectionBackward), history[0].Direction)
	assert.Equal(t, "reset", history[0].Reason)
	assert.Equal(t, string(StageLegalReview), history[0].FromStage)
}

func TestResetReactivatesFinishedWorkflow(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	fs.addWorkflow("wf_1", string(StageFinalPublishing), false)
	m := NewMachine(fs)

	wf, err := m.Reset(ctx, "wf_1", admin)
	require.NoError(t, err)
	assert.True(t, wf.IsActive)
	assert.Equal(t, string(StageDraftCreation), wf.CurrentStage)
}
