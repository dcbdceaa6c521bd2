package lifecycle

// NewRequestMachine builds the canonical reimbursement lifecycle machine
// positioned at the given status. Draft and pending requests behave
// identically: both may be submitted or cancelled, and a returned request
// lands back in draft with its routing cleared.
func NewRequestMachine(status State) Machine {
	b := NewBuilder()

	b.Configure(StateDraft).
		Permit(TriggerSubmit, StateApproving).
		Permit(TriggerCancel, StateCancelled)

	b.Configure(StatePending).
		Permit(TriggerSubmit, StateApproving).
		Permit(TriggerCancel, StateCancelled)

	b.Configure(StateApproving).
		Permit(TriggerApprove, StateApproved).
		Permit(TriggerReject, StateRejected).
		Permit(TriggerReturn, StateDraft)

	return b.Build(status)
}
