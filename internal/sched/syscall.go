package sched

import (
	"context"
	"errors"
	"fmt"
)

// Syscall numbers, RISC-V Linux numbering.
const (
	SyscallWrite       = 64
	SyscallExit        = 93
	SyscallYield       = 124
	SyscallSetPriority = 140
	SyscallGetTime     = 169
	SyscallGetPID      = 172
	SyscallTaskInfo    = 410
)

// ErrYield is returned by a Work function that gives up the rest of its slice.
var ErrYield = errors.New("task yielded")

// TaskInfo is what the task_info syscall reports.
type TaskInfo struct {
	Status       TaskStatus
	SyscallTimes [MaxSyscallNum]uint32
	TimeMS       uint64 // real runtime since first launch
}

// Syscalls is the kernel surface a running task sees. Every call is counted
// against the calling task before it takes effect.
type Syscalls interface {
	// Syscall records a syscall the kernel does not otherwise model.
	Syscall(id int)
	// Yield returns ErrYield, to be returned from the Work function.
	Yield() error
	GetTime() uint64
	GetPID() TaskID
	TaskInfo() TaskInfo
	SetPriority(priority uint64) error
}

// taskSyscalls binds the syscall surface to the dispatched task.
type taskSyscalls struct {
	ctx context.Context
	k   *Kernel
	tcb *TaskControlBlock
}

func (s *taskSyscalls) Syscall(id int) {
	s.tcb.UpdateSyscallTimes(id)
	s.k.recorder.Syscall(s.ctx, uint64(s.tcb.ID), id)
}

func (s *taskSyscalls) Yield() error {
	s.Syscall(SyscallYield)
	return ErrYield
}

func (s *taskSyscalls) GetTime() uint64 {
	s.Syscall(SyscallGetTime)
	return s.k.now.NowMS()
}

func (s *taskSyscalls) GetPID() TaskID {
	s.Syscall(SyscallGetPID)
	return s.tcb.ID
}

func (s *taskSyscalls) TaskInfo() TaskInfo {
	s.Syscall(SyscallTaskInfo)
	return infoOf(s.tcb)
}

func (s *taskSyscalls) SetPriority(priority uint64) error {
	s.Syscall(SyscallSetPriority)
	if err := s.tcb.SetPriority(priority); err != nil {
		return fmt.Errorf("set_priority: %w", err)
	}
	s.k.emit(StatusEvent{
		Kind:     EventPriorityUpdate,
		TaskID:   s.tcb.ID,
		Stride:   s.tcb.Stride(),
		Priority: priority,
	})
	return nil
}

func infoOf(tcb *TaskControlBlock) TaskInfo {
	return TaskInfo{
		Status:       tcb.Status(),
		SyscallTimes: tcb.SyscallTimes(),
		TimeMS:       tcb.RealRuntime(),
	}
}
