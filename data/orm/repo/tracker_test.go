package repo

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type node struct{ id int }

func TestTracker_ReferenceIdentity(t *testing.T) {
	tr := NewTracker[*node, int]()
	a := &node{id: 1}
	b := &node{id: 1}

	tr.Track(1, a, StateFetched)
	assert.True(t, tr.Contains(1, a))
	assert.False(t, tr.Contains(1, b))
	assert.False(t, tr.Mark(1, b, StateDirty))

	tr.Track(1, b, StateFetched)
	assert.False(t, tr.Contains(1, a))
	assert.True(t, tr.Mark(1, b, StateDirty))

	state, ok := tr.State(1)
	assert.True(t, ok)
	assert.Equal(t, StateDirty, state)
	assert.Equal(t, "dirty", state.String())
	assert.Equal(t, 1, tr.Len())
}

func TestTracker_SnapshotOrderAndReset(t *testing.T) {
	tr := NewTracker[*node, int]()
	n1, n2, n3 := &node{1}, &node{2}, &node{3}
	tr.Track(2, n2, StateAdded)
	tr.Track(1, n1, StateFetched)
	tr.Track(3, n3, StateFetched)
	n2b := &node{2}
	tr.Track(2, n2b, StateFetched)

	assert.Equal(t, []*node{n2b, n1, n3}, tr.Snapshot())

	tr.Reset()
	assert.Empty(t, tr.Snapshot())
	_, ok := tr.State(1)
	assert.False(t, ok)
}

func TestTracker_Concurrent(t *testing.T) {
	tr := NewTracker[*node, int]()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			n := &node{i}
			tr.Track(i, n, StateFetched)
			tr.Mark(i, n, StatePersisted)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, tr.Len())
}
