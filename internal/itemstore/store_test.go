package itemstore

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthcache/slab/internal/slabs"
)

func testPage() *slabs.Page {
	return &slabs.Page{ID: 1, Buf: make([]byte, 256), Class: 1}
}

func TestStore_InsertAndGet(t *testing.T) {
	s := New(nil)
	page := testPage()
	chunk := slabs.Chunk{Page: page, Offset: 0, Size: 64}

	it := s.Insert("foo", chunk, 0)
	require.NotNil(t, it)

	got, ok := s.Get("foo")
	require.True(t, ok)
	assert.Equal(t, it, got)
	assert.True(t, got.Flags()&slabs.FlagLinked != 0)
}

func TestStore_LookupByChunk(t *testing.T) {
	s := New(nil)
	page := testPage()
	chunk := slabs.Chunk{Page: page, Offset: 64, Size: 64}
	s.Insert("bar", chunk, 0)

	handle, ok := s.Lookup(chunk)
	require.True(t, ok)
	assert.Equal(t, "bar", handle.Key())

	other := slabs.Chunk{Page: page, Offset: 128, Size: 64}
	_, ok = s.Lookup(other)
	assert.False(t, ok)
}

func TestStore_IsExpired(t *testing.T) {
	mockClock := clock.NewMock()
	s := New(mockClock)
	page := testPage()
	chunk := slabs.Chunk{Page: page, Offset: 0, Size: 64}
	it := s.Insert("baz", chunk, time.Second)

	assert.False(t, s.IsExpired(it))
	mockClock.Add(2 * time.Second)
	assert.True(t, s.IsExpired(it))
}

func TestStore_RelocateMovesChunkAndCopiesBytes(t *testing.T) {
	s := New(nil)
	src := testPage()
	dst := testPage()
	srcChunk := slabs.Chunk{Page: src, Offset: 0, Size: 32}
	dstChunk := slabs.Chunk{Page: dst, Offset: 0, Size: 32}

	copy(srcChunk.Bytes(), []byte("hello world, this is a payload!"))
	it := s.Insert("moved", srcChunk, 0)

	require.NoError(t, s.Relocate(it, dstChunk, s.Hash("moved")))

	assert.Equal(t, dstChunk.Bytes(), srcChunk.Bytes())

	handle, ok := s.Lookup(dstChunk)
	require.True(t, ok)
	assert.Equal(t, it, handle)

	_, ok = s.Lookup(srcChunk)
	assert.False(t, ok)
}

func TestStore_UnlinkRemovesFromBothIndexes(t *testing.T) {
	s := New(nil)
	page := testPage()
	chunk := slabs.Chunk{Page: page, Offset: 0, Size: 32}
	it := s.Insert("gone", chunk, 0)

	require.NoError(t, s.Unlink(it, s.Hash("gone")))

	_, ok := s.Get("gone")
	assert.False(t, ok)
	_, ok = s.Lookup(chunk)
	assert.False(t, ok)
	assert.True(t, it.Flags()&slabs.FlagLinked == 0)
}

func TestStore_TryLockIsMutuallyExclusive(t *testing.T) {
	s := New(nil)
	hv := s.Hash("shared-key")

	unlock, ok := s.TryLock(hv)
	require.True(t, ok)

	_, ok2 := s.TryLock(hv)
	assert.False(t, ok2)

	unlock()
	_, ok3 := s.TryLock(hv)
	assert.True(t, ok3)
}
