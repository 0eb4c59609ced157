package rebalance

import (
	"context"

	"github.com/hearthcache/slab/internal/obs"
	"github.com/hearthcache/slab/internal/slabs"
)

// worker runs one job through S1 Start, S2 Scan and S3 Finish (§4.4,
// §4.5). It holds no per-job state: Coordinator.Run constructs one and
// reuses it for every job it picks up.
type worker struct {
	c *Coordinator
}

// run drives j from Start through Finish, blocking until the job
// completes or ctx is cancelled mid-scan (in which case the page is
// left unfinished and stays the source class's oldest page, so a
// later job over the same source picks that same page again).
func (w *worker) run(ctx context.Context, j *job) {
	layout, ok := w.c.alloc.Layout(j.srcID)
	if !ok || layout.Oldest == nil {
		j.phase = PhaseIdle
		return
	}
	j.victim = layout.Oldest
	j.cursor = 0
	j.claimed = make(map[int64]bool)
	j.phase = PhaseScan

	w.c.log.Info("rebalance start",
		obs.Int("src", j.srcID), obs.Int("dst", j.dstID), obs.Int64("page_id", j.victim.ID))

	for {
		if ctx.Err() != nil {
			return
		}
		busyBefore := j.busyTotal
		done := w.scanOnce(j)
		if done {
			break
		}
		if j.busyTotal > busyBefore {
			select {
			case <-ctx.Done():
				return
			case <-w.c.clock.After(BusyRetryInterval):
			}
		}
	}

	j.phase = PhaseFinish
	w.c.alloc.CompleteRebalance(j.victim, j.srcID, j.dstID)
	w.c.log.Info("rebalance finish",
		obs.Int("src", j.srcID), obs.Int("dst", j.dstID),
		obs.Int64("rescues", j.rescues), obs.Int64("evictions_nomem", j.evictionsNomem),
		obs.Int64("inline_reclaim", j.inlineReclaim))
	j.phase = PhaseIdle
}

// scanOnce walks up to bulk chunks of the victim page starting at
// j.cursor, wrapping back to the front once it reaches the end. It
// returns true once a full pass has completed with zero busy items.
func (w *worker) scanOnce(j *job) bool {
	layout, ok := w.c.alloc.Layout(j.srcID)
	if !ok {
		return true
	}
	pageBytes := layout.ChunkSize * layout.PerPage

	processed := 0
	for processed < w.c.bulk && j.cursor < pageBytes {
		off := j.cursor
		chunk := slabs.Chunk{Page: j.victim, Offset: off, Size: layout.ChunkSize}

		switch {
		case j.claimed[off]:
			// Already cleared in an earlier pass over this page.
		case w.c.alloc.TakeFromFreelist(j.srcID, chunk):
			j.claimed[off] = true
		default:
			if handle, found := w.c.owner.Lookup(chunk); found {
				w.handleLinked(j, chunk, handle)
			} else {
				j.busyThisPass++
				j.busyTotal++
			}
		}

		j.cursor += layout.ChunkSize
		processed++
	}

	if j.cursor < pageBytes {
		return false
	}

	if j.busyThisPass > 0 {
		j.cursor = 0
		j.busyThisPass = 0
		return false
	}
	return true
}

// handleLinked implements the FROM_LRU branch of §4.5's scan table:
// try the item lock, confirm the item is uncontested, then either
// discard it (expired) or rescue it into a source-class chunk outside
// the victim page before claiming the source chunk for the move.
func (w *worker) handleLinked(j *job, chunk slabs.Chunk, handle ItemHandle) {
	owner := w.c.owner
	hv := owner.Hash(handle.Key())

	unlock, ok := owner.TryLock(hv)
	if !ok {
		j.busyThisPass++
		j.busyTotal++
		return
	}

	rc := handle.AddRefcount(1)
	if rc != 2 || handle.Flags()&slabs.FlagLinked == 0 {
		handle.AddRefcount(-1)
		unlock()
		j.busyThisPass++
		j.busyTotal++
		return
	}

	ntotal := handle.NTotal()
	rescued := false
	if !owner.IsExpired(handle) {
		newChunk, skipped, ok := w.c.alloc.ReclaimExcluding(j.srcID, ntotal, j.victim)
		for _, off := range skipped {
			j.claimed[off] = true
		}
		j.inlineReclaim += int64(len(skipped))
		if ok {
			if err := owner.Relocate(handle, newChunk, hv); err == nil {
				rescued = true
				j.rescues++
			}
		} else {
			// rebalance_alloc found nothing to rescue into: discard.
			j.evictionsNomem++
		}
	}
	if !rescued {
		_ = owner.Unlink(handle, hv)
	}
	unlock()

	w.c.alloc.SubtractRequested(j.srcID, ntotal)
	j.claimed[chunk.Offset] = true
}
