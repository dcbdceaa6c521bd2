package lifecycle

// State represents a request status in the approval lifecycle.
type State string

const (
	StateDraft     State = "draft"
	StatePending   State = "pending"
	StateApproving State = "approving"
	StateApproved  State = "approved"
	StateRejected  State = "rejected"
	StateCancelled State = "cancelled"
)

var validStates = map[State]bool{
	StateDraft:     true,
	StatePending:   true,
	StateApproving: true,
	StateApproved:  true,
	StateRejected:  true,
	StateCancelled: true,
}

var terminalStates = map[State]bool{
	StateApproved:  true,
	StateRejected:  true,
	StateCancelled: true,
}

// IsTerminal returns true if the state permits no further transitions.
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// IsValid returns true if the state is a valid lifecycle state.
func (s State) IsValid() bool {
	return validStates[s]
}

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}
