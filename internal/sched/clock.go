package sched

import (
	"sync/atomic"
	"time"
)

// Clock is a monotonic millisecond clock.
type Clock interface {
	NowMS() uint64
}

// MonotonicClock reads milliseconds elapsed since it was created.
type MonotonicClock struct {
	start time.Time
}

func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{start: time.Now()}
}

func (c *MonotonicClock) NowMS() uint64 {
	return uint64(time.Since(c.start).Milliseconds())
}

// ManualClock only moves when told to.
type ManualClock struct {
	ms atomic.Uint64
}

func (c *ManualClock) NowMS() uint64 { return c.ms.Load() }

// Advance moves the clock forward by d milliseconds.
func (c *ManualClock) Advance(d uint64) { c.ms.Add(d) }

// Set forces the clock to ms. Setting it backwards breaks the monotonic
// contract and makes RealRuntime panic.
func (c *ManualClock) Set(ms uint64) { c.ms.Store(ms) }
