package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageOrderIsLinear(t *testing.T) {
	stages := Stages()
	require.Len(t, stages, 8)
	assert.Equal(t, StageDraftCreation, FirstStage())
	assert.Equal(t, StageFinalPublishing, TerminalStage())

	for i, stage := range stages {
		assert.Equal(t, i+1, StageOrder(stage), "stage %s", stage)
	}
}

func TestNextStageWalksThePipeline(t *testing.T) {
	stages := Stages()
	for i, stage := range stages[:len(stages)-1] {
		next, ok := NextStage(stage)
		require.True(t, ok, "stage %s", stage)
		assert.Equal(t, stages[i+1], next)
	}

	_, ok := NextStage(TerminalStage())
	assert.False(t, ok, "terminal stage has no successor")

	_, ok = NextStage(Stage("NO_SUCH_STAGE"))
	assert.False(t, ok)
}

func TestRequiredRoles(t *testing.T) {
	expected := map[Stage]Role{
		StageDraftCreation:        RoleAuthor,
		StageInternalCoordination: RoleICUReviewer,
		StageOPRRevisions:         RoleAuthor,
		StageExternalCoordination: RoleTechnicalReviewer,
		StageOPRFinal:             RoleAuthor,
		StageLegalReview:          RoleLegalReviewer,
		StageOPRLegal:             RoleAuthor,
		StageFinalPublishing:      RolePublisher,
	}
	for stage, role := range expected {
		assert.Equal(t, role, RequiredRole(stage), "stage %s", stage)
	}
}

// Every (stage, role) pair: forward movement is allowed exactly when the
// requester holds the next stage's required role, or is the admin.
func TestCanAdvanceGrid(t *testing.T) {
	roles := []Role{RoleAuthor, RoleICUReviewer, RoleTechnicalReviewer, RoleLegalReviewer, RolePublisher, RoleWorkflowAdmin}

	for _, stage := range Stages() {
		next, hasNext := NextStage(stage)
		for _, role := range roles {
			got := CanAdvance(stage, role)
			want := hasNext && (role == RoleWorkflowAdmin || role == RequiredRole(next))
			assert.Equal(t, want, got, "stage=%s role=%s", stage, role)
		}
	}
}

func TestCanRetreatOnlyAdminToImmediatePredecessor(t *testing.T) {
	stages := Stages()

	// Admin may step back exactly one stage.
	for i := 1; i < len(stages); i++ {
		assert.True(t, CanRetreat(stages[i], stages[i-1], RoleWorkflowAdmin),
			"admin retreat %s -> %s", stages[i], stages[i-1])
	}

	// No stage retreats past its immediate predecessor.
	assert.False(t, CanRetreat(StageOPRFinal, StageDraftCreation, RoleWorkflowAdmin))
	assert.False(t, CanRetreat(StageFinalPublishing, StageLegalReview, RoleWorkflowAdmin))

	// First stage has nowhere to go.
	assert.Empty(t, BackwardTargets(StageDraftCreation))

	// Non-admin roles never retreat, even to a valid target.
	for _, role := range []Role{RoleAuthor, RoleICUReviewer, RoleTechnicalReviewer, RoleLegalReviewer, RolePublisher} {
		assert.False(t, CanRetreat(StageOPRRevisions, StageInternalCoordination, role), "role %s", role)
	}
}

func TestIsValidStageAndRole(t *testing.T) {
	for _, stage := range Stages() {
		assert.True(t, IsValidStage(stage))
	}
	assert.False(t, IsValidStage(Stage("ARCHIVED")))

	assert.True(t, IsValidRole(RoleWorkflowAdmin))
	assert.False(t, IsValidRole(Role("EDITOR")))
}
