// internal/sched/tickclock.go

package sched

import (
	"sync/atomic"
	"time"
)

// TickClock emits ticks and counts them atomically. It doubles as the
// kernel's millisecond clock: one tick is worth tickMS milliseconds.
type TickClock struct {
	Ch     chan struct{}
	count  atomic.Int64
	tickMS uint64
	stop   chan struct{}
}

// NewTickClock creates a clock but does not start it.
func NewTickClock(buffer int, tickMS int) *TickClock {
	if tickMS <= 0 {
		tickMS = 1
	}
	return &TickClock{
		Ch:     make(chan struct{}, buffer),
		tickMS: uint64(tickMS),
		stop:   make(chan struct{}),
	}
}

// Start begins emitting ticks every tickMS milliseconds.
func (c *TickClock) Start() {
	ticker := time.NewTicker(time.Duration(c.tickMS) * time.Millisecond)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.count.Add(1)
				// a slow consumer loses ticks rather than stalling the clock
				select {
				case c.Ch <- struct{}{}:
				default:
				}
			case <-c.stop:
				return
			}
		}
	}()
}

// Stop signals the clock to stop emitting ticks.
func (c *TickClock) Stop() {
	close(c.stop)
}

// Count returns the current tick count atomically.
func (c *TickClock) Count() int64 {
	return c.count.Load()
}

// NowMS implements Clock.
func (c *TickClock) NowMS() uint64 {
	return uint64(c.count.Load()) * c.tickMS
}
