package sched

import "errors"

// TaskStatus is the lifecycle state of a task.
type TaskStatus int

const (
	StatusUnInit TaskStatus = iota
	StatusReady
	StatusRunning
	StatusExited
)

var (
	ErrInvalidTransition = errors.New("invalid task status transition")
	ErrInvalidPriority   = errors.New("invalid task priority")
	ErrUnknownTask       = errors.New("unknown task")
)

func (ts TaskStatus) String() string {
	switch ts {
	case StatusUnInit:
		return "UnInit"
	case StatusReady:
		return "Ready"
	case StatusRunning:
		return "Running"
	case StatusExited:
		return "Exited"
	default:
		return "Unknown"
	}
}

// CanTransition reports whether moving from ts to next is a legal lifecycle step.
// Exited is terminal.
func (ts TaskStatus) CanTransition(next TaskStatus) bool {
	switch ts {
	case StatusUnInit:
		return next == StatusReady
	case StatusReady:
		return next == StatusRunning
	case StatusRunning:
		return next == StatusReady || next == StatusExited
	default:
		return false
	}
}
