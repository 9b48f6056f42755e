package workflow

import (
	"errors"
	"testing"
)

func TestState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    State
		expected bool
	}{
		{StateAssigned, false},
		{StateInProgress, false},
		{StateCompleted, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.expected {
				t.Errorf("State.IsTerminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		expected bool
	}{
		{"assigned", StateAssigned, true},
		{"completed", StateCompleted, true},
		{"invalid state", State("INVALID"), false},
		{"empty state", State(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.expected {
				t.Errorf("State.IsValid() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_Before(t *testing.T) {
	if !StateAssigned.Before(StateInProgress) {
		t.Error("ASSIGNED should come before IN_PROGRESS")
	}
	if !StateInProgress.Before(StateCompleted) {
		t.Error("IN_PROGRESS should come before COMPLETED")
	}
	if StateCompleted.Before(StateAssigned) {
		t.Error("COMPLETED must not come before ASSIGNED")
	}
	if StateCompleted.Before(StateCompleted) {
		t.Error("a state does not come before itself")
	}
}

func TestMachine_ForwardTransitions(t *testing.T) {
	m := NewTaskLifecycle(StateAssigned)

	if !m.CanFire(TriggerCheckIn) {
		t.Fatal("CHECK_IN should be permitted from ASSIGNED")
	}
	if m.CanFire(TriggerCheckOut) {
		t.Fatal("CHECK_OUT must not be permitted from ASSIGNED")
	}

	if err := m.Fire(TriggerCheckIn); err != nil {
		t.Fatalf("Fire(CHECK_IN) error = %v", err)
	}
	if m.State() != StateInProgress {
		t.Fatalf("state = %s, want IN_PROGRESS", m.State())
	}

	if err := m.Fire(TriggerCheckOut); err != nil {
		t.Fatalf("Fire(CHECK_OUT) error = %v", err)
	}
	if m.State() != StateCompleted {
		t.Fatalf("state = %s, want COMPLETED", m.State())
	}
}

func TestMachine_NoTransitionOutOfCompleted(t *testing.T) {
	m := NewTaskLifecycle(StateCompleted)

	if got := len(m.PermittedTriggers()); got != 0 {
		t.Fatalf("PermittedTriggers() len = %d, want 0", got)
	}

	err := m.Fire(TriggerCheckOut)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Fire from COMPLETED error = %v, want ErrInvalidTransition", err)
	}
	if m.State() != StateCompleted {
		t.Fatalf("state changed to %s after failed fire", m.State())
	}
}

func TestMachine_NoRegression(t *testing.T) {
	m := NewTaskLifecycle(StateInProgress)

	if err := m.Fire(TriggerCheckIn); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Fire(CHECK_IN) from IN_PROGRESS error = %v, want ErrInvalidTransition", err)
	}
	if m.State() != StateInProgress {
		t.Fatalf("state = %s, want IN_PROGRESS", m.State())
	}
}

func TestMachine_UnknownStateFallsBackToAssigned(t *testing.T) {
	m := NewTaskLifecycle(State("GARBAGE"))
	if m.State() != StateAssigned {
		t.Fatalf("state = %s, want ASSIGNED", m.State())
	}
}
