package job

import (
	"context"
	"time"

	"stridesched/internal/sched"
)

// SleepWork returns a task that needs ms milliseconds of CPU in total.
// It sleeps through its slices, resuming where it left off after a preemption.
func SleepWork(ms int64) sched.Work {
	remaining := time.Duration(ms) * time.Millisecond
	return func(ctx context.Context, sys sched.Syscalls) error {
		start := time.Now()
		timer := time.NewTimer(remaining)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			remaining -= time.Since(start)
			if remaining < 0 {
				remaining = 0
			}
			return ctx.Err()
		case <-timer.C:
			// If the time is up, the task is done.
			remaining = 0
			sys.Syscall(sched.SyscallExit)
			return nil
		}
	}
}
