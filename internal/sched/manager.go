package sched

import (
	"fmt"
	"math"
	"sync"

	"github.com/emirpasic/gods/queues/linkedlistqueue"
)

// TaskManager owns the ready queue and picks the next task by stride.
//
// The queue is FIFO ordered. Fetch selects the queued task with the smallest
// stride, breaking ties in favour of the one closest to the front, charges it
// one pass and hands it out. All other tasks stay queued in their original
// relative order.
type TaskManager struct {
	mu    sync.Mutex // serializes Add and Fetch
	table *TaskTable
	ready *linkedlistqueue.Queue // of TaskID
}

// NewTaskManager creates an empty manager reading strides from table.
func NewTaskManager(table *TaskTable) *TaskManager {
	return &TaskManager{
		table: table,
		ready: linkedlistqueue.New(),
	}
}

// Add appends a task to the back of the ready queue. The caller guarantees
// the task is Ready and not already queued.
func (m *TaskManager) Add(id TaskID) {
	m.mu.Lock()
	m.ready.Enqueue(id)
	m.mu.Unlock()
}

// Fetch removes and returns the minimum-stride task. It reports false when
// the queue is empty, which is the normal "nothing to run" case.
func (m *TaskManager) Fetch() (TaskID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ready.Empty() {
		return 0, false
	}

	minStride := uint64(math.MaxUint64)
	for _, v := range m.ready.Values() {
		if s := m.lookup(v.(TaskID)).Stride(); s < minStride {
			minStride = s
		}
	}

	// One full rotation: everything but the chosen task goes back in order.
	var (
		chosen TaskID
		found  bool
	)
	for n := m.ready.Size(); n > 0; n-- {
		v, _ := m.ready.Dequeue()
		id := v.(TaskID)
		if !found && m.lookup(id).Stride() == minStride {
			chosen, found = id, true
			continue
		}
		m.ready.Enqueue(id)
	}
	if !found {
		panic("sched: ready queue lost its minimum stride task during fetch")
	}

	m.lookup(chosen).UpdateStride()
	return chosen, true
}

// Len returns the number of queued tasks.
func (m *TaskManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready.Size()
}

// Snapshot returns the queued ids front to back.
func (m *TaskManager) Snapshot() []TaskID {
	m.mu.Lock()
	defer m.mu.Unlock()

	values := m.ready.Values()
	ids := make([]TaskID, 0, len(values))
	for _, v := range values {
		ids = append(ids, v.(TaskID))
	}
	return ids
}

func (m *TaskManager) lookup(id TaskID) *TaskControlBlock {
	tcb, ok := m.table.Get(id)
	if !ok {
		panic(fmt.Sprintf("sched: ready queue holds task %d which is not in the task table", id))
	}
	return tcb
}
