package workflow

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"redline/api/internal/store"
)

type Actor struct {
	ID   string
	Name string
	Role Role
}

// Store is the slice of persistence the machine needs. SetWorkflowStage
// must be a compare-and-swap on the current stage so two concurrent
// transitions cannot both succeed from the same stage.
type Store interface {
	GetWorkflow(ctx context.Context, workflowID string) (store.Workflow, error)
	SetWorkflowStage(ctx context.Context, workflowID, expectedStage, newStage string, isActive bool) (bool, error)
	InsertTransition(ctx context.Context, record store.TransitionRecord) error
	ListTransitions(ctx context.Context, workflowID string) ([]store.TransitionRecord, error)
}

// Machine applies validated transitions to workflows. Mutations for one
// workflow are serialized through a keyed in-process lock; the store-level
// stage CAS guards against writers in other processes.
type Machine struct {
	store  Store
	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

func NewMachine(s Store) *Machine {
	return &Machine{
		store: s,
		locks: make(map[string]*sync.Mutex),
	}
}

func (m *Machine) workflowLock(workflowID string) *sync.Mutex {
	m.lockMu.Lock()
	defer m.lockMu.Unlock()
	lock, ok := m.locks[workflowID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[workflowID] = lock
	}
	return lock
}

// Advance moves the workflow to the next stage. The requester must hold
// the target stage's required role or be the workflow admin. Arrival at
// FINAL_PUBLISHING does not finish the workflow; see CompleteTerminalStage.
func (m *Machine) Advance(ctx context.Context, workflowID string, actor Actor) (store.Workflow, error) {
	lock := m.workflowLock(workflowID)
	lock.Lock()
	defer lock.Unlock()

	wf, err := m.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return store.Workflow{}, err
	}
	if !wf.IsActive {
		return store.Workflow{}, ErrNotActive
	}
	current := Stage(wf.CurrentStage)
	next, ok := NextStage(current)
	if !ok {
		return store.Workflow{}, ErrTerminalStage
	}
	if !CanAdvance(current, actor.Role) {
		return store.Workflow{}, fmt.Errorf("advance into %s requires role %s, got %s: %w",
			next, RequiredRole(next), actor.Role, ErrUnauthorized)
	}

	swapped, err := m.store.SetWorkflowStage(ctx, workflowID, string(current), string(next), true)
	if err != nil {
		return store.Workflow{}, err
	}
	if !swapped {
		return store.Workflow{}, ErrStageConflict
	}
	if err := m.store.InsertTransition(ctx, store.TransitionRecord{
		WorkflowID: workflowID,
		FromStage:  string(current),
		ToStage:    string(next),
		Direction:  string(DirectionForward),
		ActorID:    actor.ID,
		ActorName:  actor.Name,
		ActorRole:  string(actor.Role),
	}); err != nil {
		return store.Workflow{}, err
	}

	wf.CurrentStage = string(next)
	return wf, nil
}

// Retreat moves the workflow backward to target. Admin only, target must
// be the stage's catalogued backward target, and a non-blank reason is
// mandatory. A rejected retreat leaves workflow and history untouched.
func (m *Machine) Retreat(ctx context.Context, workflowID string, target Stage, reason string, actor Actor) (store.Workflow, error) {
	lock := m.workflowLock(workflowID)
	lock.Lock()
	defer lock.Unlock()

	wf, err := m.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return store.Workflow{}, err
	}
	current := Stage(wf.CurrentStage)
	if actor.Role != RoleWorkflowAdmin {
		return store.Workflow{}, fmt.Errorf("backward transitions require %s: %w", RoleWorkflowAdmin, ErrUnauthorized)
	}
	if !CanRetreat(current, target, actor.Role) {
		return store.Workflow{}, fmt.Errorf("%s is not a backward target of %s: %w", target, current, ErrInvalidTarget)
	}
	if strings.TrimSpace(reason) == "" {
		return store.Workflow{}, ErrMissingReason
	}

	swapped, err := m.store.SetWorkflowStage(ctx, workflowID, string(current), string(target), wf.IsActive)
	if err != nil {
		return store.Workflow{}, err
	}
	if !swapped {
		return store.Workflow{}, ErrStageConflict
	}
	if err := m.store.InsertTransition(ctx, store.TransitionRecord{
		WorkflowID: workflowID,
		FromStage:  string(current),
		ToStage:    string(target),
		Direction:  string(DirectionBackward),
		ActorID:    actor.ID,
		ActorName:  actor.Name,
		ActorRole:  string(actor.Role),
		Reason:     strings.TrimSpace(reason),
	}); err != nil {
		return store.Workflow{}, err
	}

	wf.CurrentStage = string(target)
	return wf, nil
}

// CompleteTerminalStage finishes the workflow. Only valid at
// FINAL_PUBLISHING, by the publisher or the admin; deactivates the
// workflow and appends the closing forward record.
func (m *Machine) CompleteTerminalStage(ctx context.Context, workflowID string, actor Actor) (store.Workflow, error) {
	lock := m.workflowLock(workflowID)
	lock.Lock()
	defer lock.Unlock()

	wf, err := m.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return store.Workflow{}, err
	}
	if !wf.IsActive {
		return store.Workflow{}, ErrNotActive
	}
	terminal := TerminalStage()
	if Stage(wf.CurrentStage) != terminal {
		return store.Workflow{}, ErrNotAtTerminal
	}
	if actor.Role != RolePublisher && actor.Role != RoleWorkflowAdmin {
		return store.Workflow{}, fmt.Errorf("publishing requires %s: %w", RolePublisher, ErrUnauthorized)
	}

	swapped, err := m.store.SetWorkflowStage(ctx, workflowID, string(terminal), string(terminal), false)
	if err != nil {
		return store.Workflow{}, err
	}
	if !swapped {
		return store.Workflow{}, ErrStageConflict
	}
	if err := m.store.InsertTransition(ctx, store.TransitionRecord{
		WorkflowID: workflowID,
		FromStage:  string(terminal),
		ToStage:    string(terminal),
		Direction:  string(DirectionForward),
		ActorID:    actor.ID,
		ActorName:  actor.Name,
		ActorRole:  string(actor.Role),
		Reason:     "published",
	}); err != nil {
		return store.Workflow{}, err
	}

	wf.IsActive = false
	return wf, nil
}

// Reset returns the workflow to the first stage and reactivates it.
// Admin only. The synthetic backward record keeps the reset auditable.
func (m *Machine) Reset(ctx context.Context, workflowID string, actor Actor) (store.Workflow, error) {
	lock := m.workflowLock(workflowID)
	lock.Lock()
	defer lock.Unlock()

	if actor.Role != RoleWorkflowAdmin {
		return store.Workflow{}, fmt.Errorf("reset requires %s: %w", RoleWorkflowAdmin, ErrUnauthorized)
	}
	wf, err := m.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return store.Workflow{}, err
	}
	current := Stage(wf.CurrentStage)
	first := FirstStage()

	swapped, err := m.store.SetWorkflowStage(ctx, workflowID, string(current), string(first), true)
	if err != nil {
		return store.Workflow{}, err
	}
	if !swapped {
		return store.Workflow{}, ErrStageConflict
	}
	if err := m.store.InsertTransition(ctx, store.TransitionRecord{
		WorkflowID: workflowID,
		FromStage:  string(current),
		ToStage:    string(first),
		Direction:  string(DirectionBackward),
		ActorID:    actor.ID,
		ActorName:  actor.Name,
		ActorRole:  string(actor.Role),
		Reason:     "reset",
	}); err != nil {
		return store.Workflow{}, err
	}

	wf.CurrentStage = string(first)
	wf.IsActive = true
	return wf, nil
}

// History returns the full transition log, oldest first.
func (m *Machine) History(ctx context.Context, workflowID string) ([]store.TransitionRecord, error) {
	return m.store.ListTransitions(ctx, workflowID)
}
