package sched

import (
	"sync"

	"github.com/emirpasic/gods/maps/treemap"
)

// TaskTable is the authoritative owner of every task's control block.
// The ready queue only holds ids that point back into it.
type TaskTable struct {
	mu        sync.Mutex
	tasks     *treemap.Map // TaskID -> *TaskControlBlock, ordered by id
	nextID    TaskID
	bigStride uint64
	clock     Clock
}

func NewTaskTable(bigStride uint64, clock Clock) *TaskTable {
	return &TaskTable{
		tasks:     treemap.NewWith(cmpTaskID),
		nextID:    1,
		bigStride: bigStride,
		clock:     clock,
	}
}

// Spawn allocates the next id and stores a fresh UnInit control block.
func (tt *TaskTable) Spawn(priority uint64, work Work) *TaskControlBlock {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	tcb := NewTaskControlBlock(tt.nextID, priority, tt.bigStride, tt.clock, work)
	tt.tasks.Put(tcb.ID, tcb)
	tt.nextID++
	return tcb
}

func (tt *TaskTable) Get(id TaskID) (*TaskControlBlock, bool) {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	v, ok := tt.tasks.Get(id)
	if !ok {
		return nil, false
	}
	return v.(*TaskControlBlock), true
}

// Remove drops the task from the table. Removing an id that is still
// queued leaves a dangling ready-queue entry.
func (tt *TaskTable) Remove(id TaskID) {
	tt.mu.Lock()
	tt.tasks.Remove(id)
	tt.mu.Unlock()
}

func (tt *TaskTable) Len() int {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	return tt.tasks.Size()
}

// IDs returns every id in ascending order.
func (tt *TaskTable) IDs() []TaskID {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	keys := tt.tasks.Keys()
	ids := make([]TaskID, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, k.(TaskID))
	}
	return ids
}

// Live counts tasks that have not exited.
func (tt *TaskTable) Live() int {
	tt.mu.Lock()
	values := tt.tasks.Values()
	tt.mu.Unlock()

	n := 0
	for _, v := range values {
		if v.(*TaskControlBlock).Status() != StatusExited {
			n++
		}
	}
	return n
}

func cmpTaskID(a, b any) int {
	ia, ib := a.(TaskID), b.(TaskID)
	switch {
	case ia < ib:
		return -1
	case ia > ib:
		return 1
	default:
		return 0
	}
}
