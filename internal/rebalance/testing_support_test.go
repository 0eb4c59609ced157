package rebalance_test

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/hearthcache/slab/internal/itemstore"
	"github.com/hearthcache/slab/internal/rebalance"
	"github.com/hearthcache/slab/internal/slabs"
)

// newHarness builds an allocator, item store and coordinator with a
// small page size so a single page holds few enough chunks for tests
// to fill and drain quickly.
func newHarness(t *testing.T) (*slabs.Allocator, *itemstore.Store, *rebalance.Coordinator, clock.Clock) {
	t.Helper()
	cfg := slabs.DefaultConfig()
	cfg.MemoryLimit = 1024 * 1024
	cfg.PageSize = 4096

	alloc, err := slabs.New(cfg, nil)
	require.NoError(t, err)

	mockClock := clock.NewMock()
	st := itemstore.New(mockClock)
	coord := rebalance.New(alloc, st, 4, nil)
	return alloc, st, coord, mockClock
}

// runUntilIdle drives the coordinator's Run loop in the background and
// blocks until Status reports PhaseIdle or the timeout elapses.
func runUntilIdle(t *testing.T, coord *rebalance.Coordinator, timeout time.Duration) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go coord.Run(ctx)

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if coord.Status().Phase == rebalance.PhaseIdle {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("rebalance job did not reach idle before timeout")
}
