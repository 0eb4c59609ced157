package slabs

// This file is the allocator-side half of the rebalance protocol: the
// rebalance coordinator and worker (internal/rebalance) never reach
// into a SizeClass directly — everything they need is exposed here,
// still serialized on the single allocator mutex (§5 lock ordering:
// item lock before slabs lock, so these calls may be made while
// holding an item lock, and none of them takes an item lock itself).

// ClassLayout is a read-only snapshot of a class's current shape,
// used by the rebalance worker to plan and bound a scan.
type ClassLayout struct {
	ChunkSize int64
	PerPage   int64
	PageCount int
	Oldest    *Page // pages[0]: the victim a rebalance always picks (§4.5)
}

// Layout returns id's current layout. Returns ok=false for an invalid
// class id.
func (a *Allocator) Layout(id int) (ClassLayout, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if id != GlobalPagePool && !a.validClass(id) {
		return ClassLayout{}, false
	}
	cls := a.classes[id]
	l := ClassLayout{ChunkSize: cls.ChunkSize, PerPage: cls.PerPage, PageCount: len(cls.Pages)}
	if len(cls.Pages) > 0 {
		l.Oldest = cls.Pages[0]
	}
	return l, true
}

// CanReassign reports whether src has at least two pages — the
// minimum needed to donate one and still serve src's existing items
// (§4.4, §8.10).
func (a *Allocator) CanReassign(src int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.validClass(src) {
		return false
	}
	return len(a.classes[src].Pages) >= 2
}

// PickAutoSource implements reassign(-1, dst)'s rotating-cursor scan
// (§4.4): starting from the cursor left by the previous auto-pick, it
// returns the first class (other than dst) with more than one page,
// so repeated auto-picks sweep round-robin instead of always favoring
// low-numbered classes.
func (a *Allocator) PickAutoSource(dst int) (int, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := a.powerLargest
	if n == 0 {
		return 0, false
	}
	for i := 0; i < n; i++ {
		id := 1 + (a.autopickCursor+i)%n
		if id == dst {
			continue
		}
		if len(a.classes[id].Pages) >= 2 {
			a.autopickCursor = (a.autopickCursor + i + 1) % n
			return id, true
		}
	}
	return 0, false
}

// TakeFromFreelist removes c from src's freelist if present, returning
// true if it was found there (§4.5 scan table: "flags & SLABBED").
func (a *Allocator) TakeFromFreelist(src int, c Chunk) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	cls := a.classes[src]
	for i, fc := range cls.freeList {
		if fc.Page == c.Page && fc.Offset == c.Offset {
			cls.freeList = append(cls.freeList[:i], cls.freeList[i+1:]...)
			return true
		}
	}
	return false
}

// ReclaimExcluding performs the constrained allocation rebalance_alloc
// describes (§4.5 FROM_LRU): an Alloc(src, NoNewPage) that transparently
// skips any chunk landing inside the victim page, until it either
// yields a chunk from another page or the freelist runs dry. Each
// skipped victim-page chunk is popped off the freelist for good —
// callers must mark its offset claimed (ClaimedForMove) so a later
// scan pass doesn't mistake it for a still-busy, still-on-freelist
// chunk and spin forever; skipped reports exactly those offsets.
func (a *Allocator) ReclaimExcluding(src int, size int64, victim *Page) (chunk Chunk, skipped []int64, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.validClass(src) {
		return Chunk{}, nil, false
	}
	cls := a.classes[src]

	for len(cls.freeList) > 0 {
		c := a.popFreelistLocked(cls)
		if c.Page == victim {
			skipped = append(skipped, c.Offset)
			continue
		}
		cls.requested += size
		cls.usedCount++
		return c, skipped, true
	}
	return Chunk{}, skipped, false
}

// SubtractRequested removes ntotal from src's requested-bytes
// accounting once a rescued or evicted item's old chunk is released
// (§4.5 FROM_LRU).
func (a *Allocator) SubtractRequested(src int, ntotal int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.validClass(src) {
		a.classes[src].requested -= ntotal
	}
}

// CompleteRebalance implements Finish (§4.5 S3): moves the victim page
// from src to dst. If dst is the global pool the page is kept whole;
// otherwise it's zeroed and split into dst's freelist.
func (a *Allocator) CompleteRebalance(victim *Page, src, dst int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	srcCls := a.classes[src]
	if len(srcCls.Pages) > 0 && srcCls.Pages[0] == victim {
		srcCls.Pages = srcCls.Pages[1:]
	}

	dstCls := a.classes[dst]
	if dst == GlobalPagePool {
		victim.Class = GlobalPagePool
		dstCls.Pages = append(dstCls.Pages, victim)
		return
	}

	for i := range victim.Buf {
		victim.Buf[i] = 0
	}
	victim.Class = dst
	a.splitPageLocked(dstCls, victim)
	dstCls.Pages = append(dstCls.Pages, victim)
}
