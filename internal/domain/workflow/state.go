package workflow

// State represents a Task lifecycle state
type State string

const (
	StateAssigned   State = "ASSIGNED"
	StateInProgress State = "IN_PROGRESS"
	StateCompleted  State = "COMPLETED"
)

var validStates = map[State]bool{
	StateAssigned:   true,
	StateInProgress: true,
	StateCompleted:  true,
}

// rank orders states along the forward-only lifecycle
var rank = map[State]int{
	StateAssigned:   1,
	StateInProgress: 2,
	StateCompleted:  3,
}

// IsTerminal returns true if no further transitions are allowed from the state
func (s State) IsTerminal() bool {
	return s == StateCompleted
}

// IsValid returns true if the state is a valid lifecycle state
func (s State) IsValid() bool {
	return validStates[s]
}

// Before returns true if s precedes other in the lifecycle order.
// Status never regresses: a stored Task may only move to a state for
// which Before holds.
func (s State) Before(other State) bool {
	return rank[s] < rank[other]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}
