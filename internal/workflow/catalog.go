// Package workflow implements the eight-stage document review pipeline:
// the stage catalog, the role-gated transition rules, and the state
// machine that applies them against durable storage.
package workflow

type Stage string
type Role string
type Direction string

const (
	StageDraftCreation        Stage = "DRAFT_CREATION"
	StageInternalCoordination Stage = "INTERNAL_COORDINATION"
	StageOPRRevisions         Stage = "OPR_REVISIONS"
	StageExternalCoordination Stage = "EXTERNAL_COORDINATION"
	StageOPRFinal             Stage = "OPR_FINAL"
	StageLegalReview          Stage = "LEGAL_REVIEW"
	StageOPRLegal             Stage = "OPR_LEGAL"
	StageFinalPublishing      Stage = "FINAL_PUBLISHING"
)

const (
	RoleAuthor            Role = "AUTHOR"
	RoleICUReviewer       Role = "ICU_REVIEWER"
	RoleTechnicalReviewer Role = "TECHNICAL_REVIEWER"
	RoleLegalReviewer     Role = "LEGAL_REVIEWER"
	RolePublisher         Role = "PUBLISHER"
	RoleWorkflowAdmin     Role = "WORKFLOW_ADMIN"
)

const (
	DirectionForward  Direction = "FORWARD"
	DirectionBackward Direction = "BACKWARD"
)

type stageSpec struct {
	order        int
	requiredRole Role
	// Backward moves are restricted to the immediate predecessor; kept as
	// a set so a future catalog revision can widen it per stage.
	backwardTargets map[Stage]struct{}
}

// stageOrder is the fixed pipeline. Forward movement walks this slice.
var stageOrder = []Stage{
	StageDraftCreation,
	StageInternalCoordination,
	StageOPRRevisions,
	StageExternalCoordination,
	StageOPRFinal,
	StageLegalReview,
	StageOPRLegal,
	StageFinalPublishing,
}

var catalog = map[Stage]stageSpec{
	StageDraftCreation:        {order: 1, requiredRole: RoleAuthor, backwardTargets: map[Stage]struct{}{}},
	StageInternalCoordination: {order: 2, requiredRole: RoleICUReviewer, backwardTargets: targets(StageDraftCreation)},
	StageOPRRevisions:         {order: 3, requiredRole: RoleAuthor, backwardTargets: targets(StageInternalCoordination)},
	StageExternalCoordination: {order: 4, requiredRole: RoleTechnicalReviewer, backwardTargets: targets(StageOPRRevisions)},
	StageOPRFinal:             {order: 5, requiredRole: RoleAuthor, backwardTargets: targets(StageExternalCoordination)},
	StageLegalReview:          {order: 6, requiredRole: RoleLegalReviewer, backwardTargets: targets(StageOPRFinal)},
	StageOPRLegal:             {order: 7, requiredRole: RoleAuthor, backwardTargets: targets(StageLegalReview)},
	StageFinalPublishing:      {order: 8, requiredRole: RolePublisher, backwardTargets: targets(StageOPRLegal)},
}

func targets(stages ...Stage) map[Stage]struct{} {
	set := make(map[Stage]struct{}, len(stages))
	for _, stage := range stages {
		set[stage] = struct{}{}
	}
	return set
}

// Stages returns the pipeline in forward order.
func Stages() []Stage {
	out := make([]Stage, len(stageOrder))
	copy(out, stageOrder)
	return out
}

func FirstStage() Stage {
	return stageOrder[0]
}

func TerminalStage() Stage {
	return stageOrder[len(stageOrder)-1]
}

func IsValidStage(stage Stage) bool {
	_, ok := catalog[stage]
	return ok
}

func IsValidRole(role Role) bool {
	switch role {
	case RoleAuthor, RoleICUReviewer, RoleTechnicalReviewer, RoleLegalReviewer, RolePublisher, RoleWorkflowAdmin:
		return true
	default:
		return false
	}
}

// StageOrder returns the 1-based position of a stage, 0 if unknown.
func StageOrder(stage Stage) int {
	return catalog[stage].order
}

// RequiredRole is the role that must hold a stage for forward entry into it.
func RequiredRole(stage Stage) Role {
	return catalog[stage].requiredRole
}

// NextStage returns the stage after the given one; ok is false at the
// terminal stage and for unknown stages.
func NextStage(stage Stage) (Stage, bool) {
	spec, known := catalog[stage]
	if !known || spec.order >= len(stageOrder) {
		return "", false
	}
	return stageOrder[spec.order], true
}

// BackwardTargets lists the stages a given stage may retreat to.
func BackwardTargets(stage Stage) []Stage {
	spec := catalog[stage]
	out := make([]Stage, 0, len(spec.backwardTargets))
	for _, candidate := range stageOrder {
		if _, ok := spec.backwardTargets[candidate]; ok {
			out = append(out, candidate)
		}
	}
	return out
}

// CanAdvance reports whether the requester may move the workflow forward
// out of the given stage: the requester must hold the next stage's
// required role, or be the workflow admin.
func CanAdvance(stage Stage, requester Role) bool {
	next, ok := NextStage(stage)
	if !ok {
		return false
	}
	if requester == RoleWorkflowAdmin {
		return true
	}
	return requester == RequiredRole(next)
}

// CanRetreat reports whether the requester may move the workflow backward
// from stage to target. Only the workflow admin moves backward, and only
// to a stage in the catalog's backward-target set.
func CanRetreat(stage, target Stage, requester Role) bool {
	if requester != RoleWorkflowAdmin {
		return false
	}
	_, ok := catalog[stage].backwardTargets[target]
	return ok
}
