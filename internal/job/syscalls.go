package job

import (
	"context"

	"stridesched/internal/sched"
)

// YieldWork writes once per dispatch and yields, exiting after rounds dispatches.
func YieldWork(rounds int) sched.Work {
	done := 0
	return func(ctx context.Context, sys sched.Syscalls) error {
		if done >= rounds {
			sys.Syscall(sched.SyscallExit)
			return nil
		}
		done++
		sys.Syscall(sched.SyscallWrite)
		return sys.Yield()
	}
}

// ReprioritizeWork changes its own priority on first dispatch, then behaves like YieldWork.
func ReprioritizeWork(priority uint64, rounds int) sched.Work {
	inner := YieldWork(rounds)
	applied := false
	return func(ctx context.Context, sys sched.Syscalls) error {
		if !applied {
			applied = true
			if err := sys.SetPriority(priority); err != nil {
				return err
			}
		}
		return inner(ctx, sys)
	}
}
