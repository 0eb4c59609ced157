package slabs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSizeClasses_Growth(t *testing.T) {
	cfg := DefaultConfig()
	classes, powerLargest, err := BuildSizeClasses(cfg)
	require.NoError(t, err)
	require.Greater(t, powerLargest, 1)

	// class 1 is the smallest, strictly below the configured page size.
	assert.Equal(t, 1, classes[1].ID)
	assert.Less(t, classes[1].ChunkSize, cfg.PageSize)

	// chunk sizes strictly increase with class id.
	for i := 2; i <= powerLargest; i++ {
		assert.Greater(t, classes[i].ChunkSize, classes[i-1].ChunkSize)
	}

	// the largest class is exactly one page, one chunk.
	largest := classes[powerLargest]
	assert.Equal(t, cfg.PageSize, largest.ChunkSize)
	assert.EqualValues(t, 1, largest.PerPage)

	// every chunk size is 8-byte aligned.
	for i := 1; i <= powerLargest; i++ {
		assert.Zero(t, classes[i].ChunkSize%Alignment)
	}
}

func TestClassIDFor_Boundaries(t *testing.T) {
	cfg := DefaultConfig()
	classes, powerLargest, err := BuildSizeClasses(cfg)
	require.NoError(t, err)

	// nothing fits a request larger than the largest class.
	tooBig := classes[powerLargest].ChunkSize + 1
	assert.Equal(t, 0, ClassIDFor(classes, powerLargest, tooBig))

	// a request exactly matching a class's chunk size lands in that class.
	for i := 1; i <= powerLargest; i++ {
		got := ClassIDFor(classes, powerLargest, classes[i].ChunkSize)
		assert.Equal(t, i, got)
	}

	// a request one byte over class i's chunk size never lands in i.
	for i := 1; i < powerLargest; i++ {
		got := ClassIDFor(classes, powerLargest, classes[i].ChunkSize+1)
		assert.NotEqual(t, i, got)
		assert.Greater(t, classes[got].ChunkSize, classes[i].ChunkSize)
	}
}

func TestBuildSizeClasses_RejectsBadFactor(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Factor = 1.0
	_, _, err := BuildSizeClasses(cfg)
	assert.Error(t, err)
}
