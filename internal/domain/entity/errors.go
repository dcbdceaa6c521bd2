package entity

import "errors"

var (
	// ErrNotFound is returned when a referenced user, department, workflow
	// or request does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConfiguration is returned when a node or group references a
	// deleted or nonexistent entity.
	ErrConfiguration = errors.New("approval configuration error")

	// ErrForbidden is returned when the actor is not in the authorized set
	// for the current node.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidTransition is returned when an action is attempted from a
	// status that does not permit it.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrNoWorkflowAvailable is returned when no workflow matches a request
	// and no default workflow is configured. Submission must be refused
	// rather than silently applying no approval at all.
	ErrNoWorkflowAvailable = errors.New("no approval workflow available")
)
