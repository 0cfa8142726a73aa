// internal/sched/event.go

package sched

import (
	"time"
)

// EventKind represents the type of scheduler event
type EventKind int

const (
	EventIdle EventKind = iota
	EventEnqueue
	EventDispatch
	EventPreempt
	EventYield
	EventExit
	EventFail
	EventPriorityUpdate
	EventTick
)

// StatusEvent is emitted every tick or on key actions
type StatusEvent struct {
	Time     time.Time
	Kind     EventKind
	TaskID   TaskID
	Stride   uint64
	Priority uint64
	RanTicks int64
	Err      error
}

func (ek EventKind) String() string {
	switch ek {
	case EventIdle:
		return "Idle"
	case EventEnqueue:
		return "Enqueued"
	case EventDispatch:
		return "Dispatch"
	case EventPreempt:
		return "Preempt"
	case EventYield:
		return "Yield"
	case EventExit:
		return "Exit"
	case EventFail:
		return "Fail"
	case EventPriorityUpdate:
		return "PriorityUpdate"
	case EventTick:
		return "Tick"
	default:
		return "Unknown"
	}
}
