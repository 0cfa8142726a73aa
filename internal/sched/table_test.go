package sched

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskTable_SpawnAssignsSequentialIDs(t *testing.T) {
	table := NewTaskTable(DefaultBigStride, &ManualClock{})

	a := table.Spawn(4, nil)
	b := table.Spawn(8, nil)

	assert.EqualValues(t, 1, a.ID)
	assert.EqualValues(t, 2, b.ID)
	assert.Equal(t, []TaskID{1, 2}, table.IDs())
	assert.Equal(t, 2, table.Len())

	got, ok := table.Get(b.ID)
	require.True(t, ok)
	assert.Same(t, b, got)
	assert.EqualValues(t, 8, got.Priority())
}

func TestTaskTable_RemoveAndLive(t *testing.T) {
	table := NewTaskTable(DefaultBigStride, &ManualClock{})
	a := table.Spawn(4, nil)
	b := table.Spawn(4, nil)
	table.Spawn(4, nil)

	require.NoError(t, b.Transition(StatusReady))
	require.NoError(t, b.Transition(StatusRunning))
	require.NoError(t, b.Transition(StatusExited))
	assert.Equal(t, 2, table.Live())

	table.Remove(a.ID)
	_, ok := table.Get(a.ID)
	assert.False(t, ok)
	assert.Equal(t, []TaskID{2, 3}, table.IDs())
	assert.Equal(t, 1, table.Live())
}
