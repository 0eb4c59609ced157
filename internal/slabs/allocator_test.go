package slabs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MemoryLimit = 4 * 1024 * 1024
	cfg.PageSize = 64 * 1024
	return cfg
}

func TestAlloc_RoundTripIsIdempotent(t *testing.T) {
	a, err := New(testConfig(), nil)
	require.NoError(t, err)

	id := a.ClassIDFor(100)
	require.NotZero(t, id)

	c1, _, err := a.Alloc(100, id, 0)
	require.NoError(t, err)
	a.Free(c1, 100, id)

	c2, _, err := a.Alloc(100, id, 0)
	require.NoError(t, err)

	// a freelist is LIFO, so a single alloc/free/alloc round trip hands
	// back the exact same chunk.
	assert.Equal(t, c1.Page, c2.Page)
	assert.Equal(t, c1.Offset, c2.Offset)
}

func TestAlloc_GrowsNewPageWhenFreelistEmpty(t *testing.T) {
	a, err := New(testConfig(), nil)
	require.NoError(t, err)

	id := a.ClassIDFor(100)
	require.NotZero(t, id)
	cls := a.classes[id]

	first := cls.PerPage
	for i := int64(0); i < first; i++ {
		_, _, err := a.Alloc(100, id, 0)
		require.NoError(t, err)
	}
	assert.EqualValues(t, 1, len(cls.Pages))

	_, total, err := a.Alloc(100, id, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, len(cls.Pages))
	assert.Equal(t, 2*cls.PerPage, total)
}

func TestAlloc_NoNewPageReturnsOutOfMemory(t *testing.T) {
	a, err := New(testConfig(), nil)
	require.NoError(t, err)

	id := a.ClassIDFor(100)
	require.NotZero(t, id)

	_, _, err = a.Alloc(100, id, FlagNoNewPage)
	assert.ErrorIs(t, err, ErrOutOfMemory)
}

func TestAlloc_InvalidClassIsRejected(t *testing.T) {
	a, err := New(testConfig(), nil)
	require.NoError(t, err)

	_, _, err = a.Alloc(100, 0, 0)
	assert.ErrorIs(t, err, ErrInvalidClass)

	_, _, err = a.Alloc(100, a.PowerLargest()+1, 0)
	assert.ErrorIs(t, err, ErrInvalidClass)
}

func TestAlloc_RespectsMemoryLimit(t *testing.T) {
	cfg := testConfig()
	cfg.MemoryLimit = cfg.PageSize // exactly one page's worth
	a, err := New(cfg, nil)
	require.NoError(t, err)

	id := a.ClassIDFor(100)
	require.NotZero(t, id)
	cls := a.classes[id]

	for i := int64(0); i < cls.PerPage; i++ {
		_, _, err := a.Alloc(100, id, 0)
		require.NoError(t, err)
	}

	_, _, err = a.Alloc(100, id, 0)
	assert.ErrorIs(t, err, ErrOutOfMemory)
}

func TestAdjustRequested_TracksResize(t *testing.T) {
	a, err := New(testConfig(), nil)
	require.NoError(t, err)

	id := a.ClassIDFor(100)
	require.NotZero(t, id)

	_, _, err = a.Alloc(100, id, 0)
	require.NoError(t, err)

	before := a.classes[id].requested
	a.AdjustRequested(id, 100, 150)
	assert.Equal(t, before+50, a.classes[id].requested)
}

func TestAvailableChunks_ReportsLimitReached(t *testing.T) {
	cfg := testConfig()
	cfg.MemoryLimit = cfg.PageSize
	a, err := New(cfg, nil)
	require.NoError(t, err)

	id := a.ClassIDFor(100)
	cls := a.classes[id]
	for i := int64(0); i < cls.PerPage; i++ {
		_, _, err := a.Alloc(100, id, 0)
		require.NoError(t, err)
	}
	_, _, _ = a.Alloc(100, id, 0)

	avail, err := a.AvailableChunks(id)
	require.NoError(t, err)
	assert.True(t, avail.LimitReached)
}
