package sched

import (
	"context"
	"fmt"
	"sync"
)

// TaskID uniquely identifies a task in the task table.
type TaskID uint64

// Work is the body of a task. It runs for one time slice per dispatch: ctx is
// cancelled when the slice expires, and sys is the task's syscall surface.
// Returning nil exits the task, returning ErrYield or ctx.Err() puts it back
// on the ready queue.
type Work func(ctx context.Context, sys Syscalls) error

// TaskContext is the execution state saved across task switches.
type TaskContext struct {
	Dispatches int64 // times the task has been switched in
	RanTicks   int64 // cumulative ticks spent running
}

// TaskControlBlock represents one schedulable task unit.
type TaskControlBlock struct {
	ID   TaskID
	Work Work

	mu           sync.Mutex // protects everything below
	clock        Clock
	bigStride    uint64
	status       TaskStatus
	cx           TaskContext
	launched     bool
	firstLaunch  uint64 // ms, valid once launched is set
	syscallTimes [MaxSyscallNum]uint32
	stride       uint64
	priority     uint64
}

// NewTaskControlBlock creates an UnInit task with a zero stride.
// priority is clamped up to MinPriority.
func NewTaskControlBlock(id TaskID, priority, bigStride uint64, clock Clock, work Work) *TaskControlBlock {
	if priority < MinPriority {
		priority = MinPriority
	}
	if bigStride == 0 {
		bigStride = DefaultBigStride
	}
	return &TaskControlBlock{
		ID:        id,
		Work:      work,
		clock:     clock,
		bigStride: bigStride,
		status:    StatusUnInit,
		priority:  priority,
	}
}

func (t *TaskControlBlock) Status() TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Transition moves the task to next, refusing steps the lifecycle does not allow.
func (t *TaskControlBlock) Transition(next TaskStatus) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.status.CanTransition(next) {
		return fmt.Errorf("task %d: %s -> %s: %w", t.ID, t.status, next, ErrInvalidTransition)
	}
	t.status = next
	return nil
}

// UpdateSyscallTimes counts one invocation of syscall id.
// An id outside the counter table is a kernel bug and panics.
func (t *TaskControlBlock) UpdateSyscallTimes(id int) {
	if id < 0 || id >= MaxSyscallNum {
		panic(fmt.Sprintf("task %d: syscall id %d out of range [0, %d)", t.ID, id, MaxSyscallNum))
	}
	t.mu.Lock()
	t.syscallTimes[id]++
	t.mu.Unlock()
}

// SyscallTimes returns a copy of the counter table.
func (t *TaskControlBlock) SyscallTimes() [MaxSyscallNum]uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.syscallTimes
}

// RecordFirstLaunchTime stamps the first dispatch. Later calls are no-ops.
func (t *TaskControlBlock) RecordFirstLaunchTime() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.launched {
		t.firstLaunch = t.clock.NowMS()
		t.launched = true
	}
}

// FirstLaunchTime returns the recorded launch time, if any.
func (t *TaskControlBlock) FirstLaunchTime() (uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.firstLaunch, t.launched
}

// RealRuntime returns milliseconds since first launch, or 0 if the task
// never ran. It panics if the clock has gone backwards.
func (t *TaskControlBlock) RealRuntime() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.launched {
		return 0
	}
	now := t.clock.NowMS()
	if now < t.firstLaunch {
		panic(fmt.Sprintf("task %d: clock went backwards: now %dms < first launch %dms", t.ID, now, t.firstLaunch))
	}
	return now - t.firstLaunch
}

func (t *TaskControlBlock) Stride() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stride
}

func (t *TaskControlBlock) Priority() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.priority
}

// Pass is the stride increment charged per dispatch: BigStride / priority.
func (t *TaskControlBlock) Pass() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bigStride / t.priority
}

// UpdateStride charges the task one pass.
func (t *TaskControlBlock) UpdateStride() {
	t.mu.Lock()
	t.stride += t.bigStride / t.priority
	t.mu.Unlock()
}

// SetPriority changes the weight used by future UpdateStride calls.
// The accumulated stride is left as is.
func (t *TaskControlBlock) SetPriority(priority uint64) error {
	if priority < MinPriority {
		return fmt.Errorf("task %d: priority %d below %d: %w", t.ID, priority, MinPriority, ErrInvalidPriority)
	}
	t.mu.Lock()
	t.priority = priority
	t.mu.Unlock()
	return nil
}

// Context returns a copy of the saved execution context.
func (t *TaskControlBlock) Context() TaskContext {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cx
}

// saveContext folds one finished slice into the saved context.
func (t *TaskControlBlock) saveContext(ranTicks int64) {
	t.mu.Lock()
	t.cx.Dispatches++
	t.cx.RanTicks += ranTicks
	t.mu.Unlock()
}
