package lifecycle

import (
	"fmt"

	"github.com/linkoffice/oa-approval/internal/domain/entity"
)

// Machine tracks a request's status and validates transitions. It carries
// no persistence; callers apply the resulting state to the store under
// their own transactional guarantees.
type Machine interface {
	// State returns the current state.
	State() State

	// CanFire returns true if the trigger is permitted in the current state.
	CanFire(trigger Trigger) bool

	// Fire executes the trigger, moving to the target state if permitted.
	Fire(trigger Trigger) (State, error)

	// PermittedTriggers returns all triggers valid in the current state.
	PermittedTriggers() []Trigger
}

type machine struct {
	currentState State
	transitions  map[State]map[Trigger]State
}

// State returns the current state.
func (m *machine) State() State {
	return m.currentState
}

// CanFire returns true if the trigger is permitted in the current state.
func (m *machine) CanFire(trigger Trigger) bool {
	targets, ok := m.transitions[m.currentState]
	if !ok {
		return false
	}
	_, ok = targets[trigger]
	return ok
}

// Fire executes the trigger, moving to the target state if permitted.
func (m *machine) Fire(trigger Trigger) (State, error) {
	targets, ok := m.transitions[m.currentState]
	if !ok {
		return m.currentState, fmt.Errorf("%w: cannot fire %s from %s", entity.ErrInvalidTransition, trigger, m.currentState)
	}
	to, ok := targets[trigger]
	if !ok {
		return m.currentState, fmt.Errorf("%w: cannot fire %s from %s", entity.ErrInvalidTransition, trigger, m.currentState)
	}
	m.currentState = to
	return to, nil
}

// PermittedTriggers returns all triggers valid in the current state.
func (m *machine) PermittedTriggers() []Trigger {
	targets, ok := m.transitions[m.currentState]
	if !ok {
		return []Trigger{}
	}
	triggers := make([]Trigger, 0, len(targets))
	for t := range targets {
		triggers = append(triggers, t)
	}
	return triggers
}
