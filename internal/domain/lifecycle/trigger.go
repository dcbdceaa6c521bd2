package lifecycle

// Trigger represents an actor event that can cause a status transition.
type Trigger string

const (
	TriggerSubmit  Trigger = "SUBMIT"
	TriggerApprove Trigger = "APPROVE"
	TriggerReject  Trigger = "REJECT"
	TriggerReturn  Trigger = "RETURN"
	TriggerCancel  Trigger = "CANCEL"
)

// String returns the string representation of the trigger.
func (t Trigger) String() string {
	return string(t)
}
