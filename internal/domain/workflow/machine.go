package workflow

import "fmt"

// StateMachine tracks the current state of a Task and validates transitions
type StateMachine interface {
	// State returns the current state
	State() State

	// CanFire returns true if the trigger is permitted in the current state
	CanFire(trigger Trigger) bool

	// Fire attempts to execute the trigger, transitioning to the new state if allowed
	Fire(trigger Trigger) error

	// PermittedTriggers returns all triggers that can be fired in the current state
	PermittedTriggers() []Trigger
}

// taskLifecycle is the fixed transition table for a Task:
// ASSIGNED -> IN_PROGRESS on CHECK_IN, IN_PROGRESS -> COMPLETED on
// CHECK_OUT, nothing out of COMPLETED.
var taskLifecycle = map[State]map[Trigger]State{
	StateAssigned: {
		TriggerCheckIn: StateInProgress,
	},
	StateInProgress: {
		TriggerCheckOut: StateCompleted,
	},
	StateCompleted: {},
}

type stateMachine struct {
	currentState State
	transitions  map[State]map[Trigger]State
}

// NewTaskLifecycle creates a state machine positioned at the given state.
// Unknown stored statuses fall back to ASSIGNED.
func NewTaskLifecycle(current State) StateMachine {
	if !current.IsValid() {
		current = StateAssigned
	}
	return &stateMachine{
		currentState: current,
		transitions:  taskLifecycle,
	}
}

// State returns the current state
func (m *stateMachine) State() State {
	return m.currentState
}

// CanFire returns true if the trigger is permitted in the current state
func (m *stateMachine) CanFire(trigger Trigger) bool {
	_, ok := m.transitions[m.currentState][trigger]
	return ok
}

// Fire attempts to execute the trigger, transitioning to the new state if allowed
func (m *stateMachine) Fire(trigger Trigger) error {
	next, ok := m.transitions[m.currentState][trigger]
	if !ok {
		return fmt.Errorf("%w: cannot fire trigger %s from state %s", ErrInvalidTransition, trigger, m.currentState)
	}
	m.currentState = next
	return nil
}

// PermittedTriggers returns all triggers that can be fired in the current state
func (m *stateMachine) PermittedTriggers() []Trigger {
	perms := m.transitions[m.currentState]
	triggers := make([]Trigger, 0, len(perms))
	for trigger := range perms {
		triggers = append(triggers, trigger)
	}
	return triggers
}
