package rebalance

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/errgroup"

	"github.com/hearthcache/slab/internal/obs"
	"github.com/hearthcache/slab/internal/slabs"
)

// BusyRetryInterval is how long the worker backs off after a scanOnce
// call that met busy items before making the next call over the same
// page (§9 Open Question: the spec preserves the original's unbounded
// retry rather than introducing a retry cap, so this is a pure delay,
// never a give-up threshold).
const BusyRetryInterval = 50 * time.Microsecond

// Coordinator is the external entry point for reassignment (§4.4): it
// validates and queues a request, runs a single worker goroutine
// against it, and exposes Pause/Resume/Status for operators. It holds
// no class-shape state of its own — everything about pages and
// freelists lives behind the slabs.Allocator it was built with.
type Coordinator struct {
	alloc *slabs.Allocator
	owner ItemOwner
	log   *obs.Logger
	clock clock.Clock
	bulk  int

	mu      sync.Mutex
	signal  Signal
	paused  bool
	pending job
	last    Status

	wake chan struct{}
	done chan struct{}
}

// New builds a Coordinator. bulk bounds how many chunks scanOnce
// inspects before yielding (§4.5), matching the original's
// slab_bulk_check tunable.
func New(alloc *slabs.Allocator, owner ItemOwner, bulk int, log *obs.Logger) *Coordinator {
	if log == nil {
		log = obs.Default("rebalance")
	}
	if bulk <= 0 {
		bulk = 1
	}
	return &Coordinator{
		alloc: alloc,
		owner: owner,
		log:   log,
		clock: clock.New(),
		bulk:  bulk,
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Reassign validates and queues a move of one page from src to dst
// (§4.4). src == -1 requests auto-pick via slabs.Allocator.PickAutoSource.
// Returns once the request is queued, not once it completes — callers
// that need the outcome should poll Status.
func (c *Coordinator) Reassign(src, dst int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.signal != SignalIdle {
		return slabs.ErrRebalanceBusy
	}
	if c.paused {
		return slabs.ErrRebalanceBusy
	}

	if src == -1 {
		picked, ok := c.alloc.PickAutoSource(dst)
		if !ok {
			return slabs.ErrNoSpareClass
		}
		src = picked
	}
	if src == dst {
		return slabs.ErrSrcDstSame
	}
	if _, ok := c.alloc.Layout(src); !ok || src == slabs.GlobalPagePool {
		return slabs.ErrInvalidClass
	}
	if _, ok := c.alloc.Layout(dst); !ok {
		return slabs.ErrInvalidClass
	}
	if !c.alloc.CanReassign(src) {
		return slabs.ErrNoSpareClass
	}

	c.pending = job{srcID: src, dstID: dst, phase: PhaseStart}
	c.signal = SignalRequested
	select {
	case c.wake <- struct{}{}:
	default:
	}
	return nil
}

// Pause stops the worker from accepting new Reassign requests; a job
// already running finishes normally (§4.4 rebalancer_pause).
func (c *Coordinator) Pause() {
	c.mu.Lock()
	c.paused = true
	c.mu.Unlock()
}

// Resume clears a prior Pause.
func (c *Coordinator) Resume() {
	c.mu.Lock()
	c.paused = false
	c.mu.Unlock()
}

// Status reports the current or most recently completed job. While a
// job is queued or running it reports that job's source and
// destination with PhaseStart and zero counters; the phase and
// counters the worker reaches are published only once the job ends.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.signal == SignalIdle {
		return c.last
	}
	return Status{
		Phase:          c.pending.phase,
		SrcID:          c.pending.srcID,
		DstID:          c.pending.dstID,
		Rescues:        c.pending.rescues,
		EvictionsNomem: c.pending.evictionsNomem,
		InlineReclaim:  c.pending.inlineReclaim,
		BusyTotal:      c.pending.busyTotal,
	}
}

// Run drives the worker loop until ctx is cancelled. It's meant to be
// supervised by an errgroup alongside the rest of a process's
// goroutines (see cmd/slabd).
func (c *Coordinator) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		w := &worker{c: c}
		for {
			select {
			case <-ctx.Done():
				close(c.done)
				return nil
			case <-c.wake:
				c.mu.Lock()
				if c.signal != SignalRequested {
					c.mu.Unlock()
					continue
				}
				c.signal = SignalRunning
				j := c.pending
				c.mu.Unlock()

				w.run(ctx, &j)

				c.mu.Lock()
				c.signal = SignalIdle
				c.last = Status{
					Phase:          j.phase,
					SrcID:          j.srcID,
					DstID:          j.dstID,
					Rescues:        j.rescues,
					EvictionsNomem: j.evictionsNomem,
					InlineReclaim:  j.inlineReclaim,
					BusyTotal:      j.busyTotal,
				}
				c.mu.Unlock()
			}
		}
	})
	return g.Wait()
}

// Stop blocks until Run has observed its context being cancelled and
// returned. Callers are responsible for cancelling that context first.
func (c *Coordinator) Stop() {
	<-c.done
}
