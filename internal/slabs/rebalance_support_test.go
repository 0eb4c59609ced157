package slabs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanReassign_RequiresTwoPages(t *testing.T) {
	a, err := New(testConfig(), nil)
	require.NoError(t, err)

	id := a.ClassIDFor(100)
	cls := a.classes[id]

	assert.False(t, a.CanReassign(id))

	for i := int64(0); i < cls.PerPage+1; i++ {
		_, _, err := a.Alloc(100, id, 0)
		require.NoError(t, err)
	}
	assert.True(t, a.CanReassign(id))
}

func TestPickAutoSource_SkipsDestinationAndSingletonClasses(t *testing.T) {
	a, err := New(testConfig(), nil)
	require.NoError(t, err)

	small := a.ClassIDFor(100)
	large := a.ClassIDFor(4000)
	require.NotZero(t, small)
	require.NotZero(t, large)
	require.NotEqual(t, small, large)

	cls := a.classes[small]
	for i := int64(0); i < cls.PerPage+1; i++ {
		_, _, err := a.Alloc(100, small, 0)
		require.NoError(t, err)
	}

	picked, ok := a.PickAutoSource(large)
	require.True(t, ok)
	assert.Equal(t, small, picked)

	// asking to pick a source to feed the very class that has spare
	// pages must never return that same class.
	_, ok = a.PickAutoSource(small)
	assert.False(t, ok)
}

func TestCompleteRebalance_MovesVictimPage(t *testing.T) {
	a, err := New(testConfig(), nil)
	require.NoError(t, err)

	src := a.ClassIDFor(100)
	dst := a.ClassIDFor(4000)
	require.NotZero(t, src)
	require.NotZero(t, dst)

	cls := a.classes[src]
	for i := int64(0); i < cls.PerPage+1; i++ {
		_, _, err := a.Alloc(100, src, 0)
		require.NoError(t, err)
	}

	layout, ok := a.Layout(src)
	require.True(t, ok)
	victim := layout.Oldest
	require.NotNil(t, victim)

	srcPagesBefore := len(a.classes[src].Pages)
	dstPagesBefore := len(a.classes[dst].Pages)

	a.CompleteRebalance(victim, src, dst)

	assert.Equal(t, srcPagesBefore-1, len(a.classes[src].Pages))
	assert.Equal(t, dstPagesBefore+1, len(a.classes[dst].Pages))
	assert.Equal(t, dst, victim.Class)
}

func TestReclaimExcluding_SkipsVictimPage(t *testing.T) {
	a, err := New(testConfig(), nil)
	require.NoError(t, err)

	src := a.ClassIDFor(100)
	cls := a.classes[src]
	for i := int64(0); i < cls.PerPage+1; i++ {
		_, _, err := a.Alloc(100, src, 0)
		require.NoError(t, err)
	}
	// the first page is now fully used, so every free chunk is on the
	// second page
	layout, ok := a.Layout(src)
	require.True(t, ok)
	victim := layout.Oldest

	chunk, skipped, ok := a.ReclaimExcluding(src, 100, victim)
	require.True(t, ok)
	assert.NotEqual(t, victim, chunk.Page)
	assert.GreaterOrEqual(t, len(skipped), 0)
}
