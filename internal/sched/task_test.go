package sched

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTCB(clock Clock) *TaskControlBlock {
	return NewTaskControlBlock(1, DefaultPriority, DefaultBigStride, clock, nil)
}

func TestTaskControlBlock_SyscallTimes(t *testing.T) {
	tcb := newTestTCB(&ManualClock{})

	tcb.UpdateSyscallTimes(3)
	tcb.UpdateSyscallTimes(3)

	times := tcb.SyscallTimes()
	for i, n := range times {
		if i == 3 {
			assert.EqualValues(t, 2, n)
			continue
		}
		require.Zerof(t, n, "syscall %d", i)
	}
}

func TestTaskControlBlock_SyscallTimesIsACopy(t *testing.T) {
	tcb := newTestTCB(&ManualClock{})
	tcb.UpdateSyscallTimes(SyscallWrite)

	times := tcb.SyscallTimes()
	times[SyscallWrite] = 0

	assert.EqualValues(t, 1, tcb.SyscallTimes()[SyscallWrite])
}

func TestTaskControlBlock_SyscallTimesMonotonic(t *testing.T) {
	tcb := newTestTCB(&ManualClock{})
	prev := tcb.SyscallTimes()
	ids := []int{0, SyscallWrite, SyscallWrite, SyscallYield, MaxSyscallNum - 1, SyscallTaskInfo}

	for _, id := range ids {
		tcb.UpdateSyscallTimes(id)
		tcb.RecordFirstLaunchTime()
		tcb.UpdateStride()
		cur := tcb.SyscallTimes()
		for i := range cur {
			require.GreaterOrEqual(t, cur[i], prev[i])
		}
		prev = cur
	}
}

func TestTaskControlBlock_SyscallOutOfRangePanics(t *testing.T) {
	tcb := newTestTCB(&ManualClock{})
	assert.Panics(t, func() { tcb.UpdateSyscallTimes(MaxSyscallNum) })
	assert.Panics(t, func() { tcb.UpdateSyscallTimes(-1) })
}

func TestTaskControlBlock_FirstLaunchIdempotent(t *testing.T) {
	clock := &ManualClock{}
	clock.Set(100)
	tcb := newTestTCB(clock)

	_, launched := tcb.FirstLaunchTime()
	assert.False(t, launched)

	tcb.RecordFirstLaunchTime()
	clock.Advance(50)
	tcb.RecordFirstLaunchTime()

	first, launched := tcb.FirstLaunchTime()
	require.True(t, launched)
	assert.EqualValues(t, 100, first)
}

func TestTaskControlBlock_RealRuntime(t *testing.T) {
	clock := &ManualClock{}
	clock.Set(10)
	tcb := newTestTCB(clock)

	assert.Zero(t, tcb.RealRuntime(), "never launched")

	tcb.RecordFirstLaunchTime()
	clock.Advance(25)
	assert.EqualValues(t, 25, tcb.RealRuntime())
}

func TestTaskControlBlock_RealRuntimeClockBackwardsPanics(t *testing.T) {
	clock := &ManualClock{}
	clock.Set(10)
	tcb := newTestTCB(clock)
	tcb.RecordFirstLaunchTime()

	clock.Set(5)
	assert.Panics(t, func() { tcb.RealRuntime() })
}

func TestTaskControlBlock_Stride(t *testing.T) {
	tcb := NewTaskControlBlock(1, 4, 100, &ManualClock{}, nil)
	assert.Zero(t, tcb.Stride())
	assert.EqualValues(t, 25, tcb.Pass())

	tcb.UpdateStride()
	tcb.UpdateStride()
	assert.EqualValues(t, 50, tcb.Stride())

	require.NoError(t, tcb.SetPriority(10))
	tcb.UpdateStride()
	assert.EqualValues(t, 60, tcb.Stride())
}

func TestTaskControlBlock_SetPriority(t *testing.T) {
	tcb := newTestTCB(&ManualClock{})

	err := tcb.SetPriority(1)
	assert.ErrorIs(t, err, ErrInvalidPriority)
	assert.EqualValues(t, DefaultPriority, tcb.Priority())

	require.NoError(t, tcb.SetPriority(MinPriority))
	assert.Equal(t, MinPriority, tcb.Priority())
}

func TestNewTaskControlBlock_ClampsPriority(t *testing.T) {
	tcb := NewTaskControlBlock(1, 0, 0, &ManualClock{}, nil)
	assert.Equal(t, MinPriority, tcb.Priority())
	assert.Equal(t, DefaultBigStride/MinPriority, tcb.Pass())
	assert.Equal(t, StatusUnInit, tcb.Status())
}

func TestTaskControlBlock_Transition(t *testing.T) {
	tcb := newTestTCB(&ManualClock{})

	assert.ErrorIs(t, tcb.Transition(StatusRunning), ErrInvalidTransition)
	require.NoError(t, tcb.Transition(StatusReady))
	require.NoError(t, tcb.Transition(StatusRunning))
	require.NoError(t, tcb.Transition(StatusReady))
	require.NoError(t, tcb.Transition(StatusRunning))
	require.NoError(t, tcb.Transition(StatusExited))

	for _, next := range []TaskStatus{StatusUnInit, StatusReady, StatusRunning, StatusExited} {
		assert.ErrorIs(t, tcb.Transition(next), ErrInvalidTransition, next.String())
	}
	assert.Equal(t, StatusExited, tcb.Status())
}

func TestTaskStatus_String(t *testing.T) {
	assert.Equal(t, "UnInit", StatusUnInit.String())
	assert.Equal(t, "Ready", StatusReady.String())
	assert.Equal(t, "Running", StatusRunning.String())
	assert.Equal(t, "Exited", StatusExited.String())
	assert.Equal(t, "Unknown", TaskStatus(42).String())
}
