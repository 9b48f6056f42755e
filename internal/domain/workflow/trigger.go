package workflow

// Trigger represents an action that can cause a state transition
type Trigger string

const (
	TriggerCheckIn  Trigger = "CHECK_IN"
	TriggerCheckOut Trigger = "CHECK_OUT"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
