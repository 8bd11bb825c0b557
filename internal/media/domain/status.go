package domain

import "fmt"

// State is the lifecycle state of a queued task.
type State string

const (
	Pending   State = "pending"
	Completed State = "completed"
)

func (s State) Valid() bool {
	return s == Pending || s == Completed
}

// CanTransition reports whether a task may move from one state to another.
// Completed is terminal.
func CanTransition(from, to State) bool {
	switch from {
	case Pending:
		return to == Completed
	case Completed:
		return false
	default:
		return false
	}
}

func ValidateTransition(from, to State) error {
	if from == to {
		return nil
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
