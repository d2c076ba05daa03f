package domain

import (
	"errors"
	"fmt"
)

// Status is the lifecycle state of a return request.
type Status string

const (
	StatusRequested Status = "requested"
	StatusScheduled Status = "scheduled"
	StatusPickedUp  Status = "picked_up"
	StatusReceived  Status = "received"
	StatusInspected Status = "inspected"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusRefunded  Status = "refunded"
	StatusCancelled Status = "cancelled"
	StatusLost      Status = "lost"
)

// allowedTransitions is the single source of truth for the return
// lifecycle. Nothing else may write the status column.
var allowedTransitions = map[Status][]Status{
	StatusRequested: {StatusScheduled, StatusRejected},
	StatusScheduled: {StatusPickedUp, StatusCancelled},
	StatusPickedUp:  {StatusReceived, StatusLost},
	StatusReceived:  {StatusInspected},
	StatusInspected: {StatusApproved, StatusRejected},
	StatusApproved:  {StatusRefunded},
	StatusRejected:  {},
	StatusRefunded:  {},
	StatusCancelled: {},
	StatusLost:      {},
}

// ErrInvalidTransition matches any TransitionError via errors.Is.
var ErrInvalidTransition = errors.New("invalid_transition")

// TransitionError reports a rejected status change with enough context for
// the operator to correct it.
type TransitionError struct {
	Current   Status
	Attempted Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid_transition: cannot move from %s to %s", e.Current, e.Attempted)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// ValidStatus reports whether s is a known lifecycle state.
func ValidStatus(s Status) bool {
	_, ok := allowedTransitions[s]
	return ok
}

// Terminal reports whether s has no successors.
func Terminal(s Status) bool {
	next, ok := allowedTransitions[s]
	return ok && len(next) == 0
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to Status) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckTransition returns a TransitionError when from -> to is illegal.
func CheckTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return &TransitionError{Current: from, Attempted: to}
	}
	return nil
}

// StatusForOutcome derives the request status an inspection outcome
// produces. Repair and quarantine intentionally hold the request at
// inspected so ops can re-inspect later.
func StatusForOutcome(outcome string) (Status, bool) {
	switch outcome {
	case OutcomeAccept:
		return StatusApproved, true
	case OutcomeReject:
		return StatusRejected, true
	case OutcomeRepair, OutcomeQuarantine:
		return StatusInspected, true
	default:
		return "", false
	}
}
