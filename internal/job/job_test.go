package job

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stridesched/internal/sched"
)

func newKernel() *sched.Kernel {
	cfg := sched.DefaultConfig()
	cfg.TickMS = 1
	cfg.SliceTicks = 2
	cfg.ExitWhenIdle = true
	return sched.NewKernel(cfg)
}

func run(t *testing.T, k *sched.Kernel) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, k.Run(ctx))
	require.NoError(t, ctx.Err())
}

func TestYieldWork(t *testing.T) {
	k := newKernel()
	id, err := k.Spawn(4, YieldWork(3))
	require.NoError(t, err)

	run(t, k)

	info, err := k.Info(id)
	require.NoError(t, err)
	assert.Equal(t, sched.StatusExited, info.Status)
	assert.EqualValues(t, 3, info.SyscallTimes[sched.SyscallWrite])
	assert.EqualValues(t, 3, info.SyscallTimes[sched.SyscallYield])
	assert.EqualValues(t, 1, info.SyscallTimes[sched.SyscallExit])
}

func TestSleepWork_SurvivesPreemption(t *testing.T) {
	k := newKernel()
	id, err := k.Spawn(4, SleepWork(20))
	require.NoError(t, err)

	run(t, k)

	info, err := k.Info(id)
	require.NoError(t, err)
	assert.Equal(t, sched.StatusExited, info.Status)
	assert.EqualValues(t, 1, info.SyscallTimes[sched.SyscallExit])

	tcb, _ := k.Table().Get(id)
	assert.Greater(t, tcb.Context().Dispatches, int64(1))
}

func TestReprioritizeWork(t *testing.T) {
	k := newKernel()
	ok, err := k.Spawn(4, ReprioritizeWork(10, 1))
	require.NoError(t, err)
	bad, err := k.Spawn(4, ReprioritizeWork(1, 1))
	require.NoError(t, err)

	run(t, k)

	tcb, _ := k.Table().Get(ok)
	assert.EqualValues(t, 10, tcb.Priority())

	tcb, _ = k.Table().Get(bad)
	assert.EqualValues(t, 4, tcb.Priority())
	assert.Equal(t, sched.StatusExited, tcb.Status())
	assert.EqualValues(t, 1, tcb.Context().Dispatches)
}
