package slabs

import (
	"sync"

	"github.com/hearthcache/slab/internal/obs"
)

// AllocFlags modify Alloc's behavior.
type AllocFlags uint8

// FlagNoNewPage forbids Alloc from growing the class with a fresh
// page; it returns ErrOutOfMemory instead once the freelist is empty.
// The rebalance worker's rescue allocations go through
// ReclaimExcluding instead, which likewise never grows the class.
const FlagNoNewPage AllocFlags = 1 << 0

const pageVectorInitialCap = 16

// Allocator is the slab subsystem's single piece of global mutable
// state (§9 Design Notes): the size-class table, the page source, and
// the bookkeeping every foreground alloc/free call and the rebalance
// worker share. All exported methods are safe for concurrent use;
// internally they serialize on one mutex, matching the C
// implementation's single slabs_lock (§5).
type Allocator struct {
	mu  sync.Mutex
	log *obs.Logger

	classes      []*SizeClass
	powerLargest int
	arena        Arena
	fullPages    bool // SlabReassign: always allocate full PageSize buffers

	pageSize    int64
	memoryLimit int64
	nextPageID  int64

	limitReached   map[int]bool
	autopickCursor int
}

// New builds an Allocator from cfg, preallocating pages up to
// PowerLargest when cfg.Prealloc is set (§4.1). A preallocation
// failure aborts construction — callers must treat it as fatal.
func New(cfg Config, log *obs.Logger) (*Allocator, error) {
	if log == nil {
		log = obs.Default("slabs")
	}
	classes, powerLargest, err := BuildSizeClasses(cfg)
	if err != nil {
		return nil, err
	}

	var arena Arena
	if cfg.Prealloc {
		arena, err = NewPreallocArena(cfg.MemoryLimit, InitialMallocSeed())
		if err != nil {
			return nil, obs.Wrap(ErrPreallocFailed, "reserving preallocated arena")
		}
	} else {
		arena = NewHostArena(InitialMallocSeed())
	}

	a := &Allocator{
		log:          log,
		classes:      classes,
		powerLargest: powerLargest,
		arena:        arena,
		fullPages:    cfg.SlabReassign,
		pageSize:     cfg.PageSize,
		memoryLimit:  cfg.MemoryLimit,
		limitReached: make(map[int]bool),
	}

	if cfg.Prealloc {
		for id := 1; id <= powerLargest; id++ {
			if err := a.newPageLocked(id); err != nil {
				return nil, obs.Wrap(err, "preallocating class pages")
			}
		}
	}

	return a, nil
}

// PowerLargest returns the id of the largest size class (one page,
// one chunk).
func (a *Allocator) PowerLargest() int { return a.powerLargest }

// ClassIDFor returns the smallest class able to hold size bytes, or 0.
func (a *Allocator) ClassIDFor(size int64) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return ClassIDFor(a.classes, a.powerLargest, size)
}

func (a *Allocator) validClass(id int) bool {
	return id >= 1 && id <= a.powerLargest && id < len(a.classes)
}

// Alloc hands out one chunk from class id, growing the class with a
// new page first if its freelist is empty and flags doesn't forbid it
// (§4.3). totalChunks reports pages.len * per_page after the call.
func (a *Allocator) Alloc(size int64, id int, flags AllocFlags) (chunk Chunk, totalChunks int64, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.validClass(id) {
		return Chunk{}, 0, ErrInvalidClass
	}
	cls := a.classes[id]

	if len(cls.freeList) == 0 && flags&FlagNoNewPage == 0 {
		if err := a.newPageLocked(id); err != nil {
			return Chunk{}, cls.TotalChunks(), err
		}
	}

	if len(cls.freeList) == 0 {
		return Chunk{}, cls.TotalChunks(), ErrOutOfMemory
	}

	c := a.popFreelistLocked(cls)
	cls.requested += size
	cls.usedCount++
	return c, cls.TotalChunks(), nil
}

// Free returns a chunk to class id's freelist (LIFO), per §4.3.
func (a *Allocator) Free(c Chunk, size int64, id int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.validClass(id) {
		return
	}
	cls := a.classes[id]
	a.pushFreelistLocked(cls, c)
	cls.requested -= size
	cls.usedCount--
}

// AdjustRequested updates a class's requested-bytes accounting when a
// record is resized in place without moving chunks (§4.3).
func (a *Allocator) AdjustRequested(id int, oldSize, newSize int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.validClass(id) {
		return
	}
	a.classes[id].requested += newSize - oldSize
}

// ClassAvailability reports a class's free/total chunk counts and
// whether the memory limit has ever blocked this class's growth.
type ClassAvailability struct {
	Free         int64
	Total        int64
	LimitReached bool
}

// AvailableChunks implements §4.3's available_chunks.
func (a *Allocator) AvailableChunks(id int) (ClassAvailability, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.validClass(id) {
		return ClassAvailability{}, ErrInvalidClass
	}
	cls := a.classes[id]
	return ClassAvailability{
		Free:         cls.FreeCount(),
		Total:        cls.TotalChunks(),
		LimitReached: a.limitReached[id],
	}, nil
}

// TotalMalloced reports the arena's running allocation total.
func (a *Allocator) TotalMalloced() int64 { return a.arena.TotalAllocated() }

// popFreelistLocked pops the LIFO head, clearing SLABBED and setting
// refcount semantics are the caller's (item store's) responsibility —
// the allocator only owns the freelist membership bit.
func (a *Allocator) popFreelistLocked(cls *SizeClass) Chunk {
	n := len(cls.freeList)
	c := cls.freeList[n-1]
	cls.freeList = cls.freeList[:n-1]
	return c
}

func (a *Allocator) pushFreelistLocked(cls *SizeClass, c Chunk) {
	cls.freeList = append(cls.freeList, c)
}

// newPageLocked implements §4.3's new_page under the held mutex.
func (a *Allocator) newPageLocked(id int) error {
	cls := a.classes[id]

	if len(cls.Pages) > 0 && a.arena.TotalAllocated()+a.pageSize > a.memoryLimit {
		if len(a.classes[GlobalPagePool].Pages) == 0 {
			if !a.limitReached[id] {
				a.log.Warn("memory limit reached", obs.Int("class", id))
			}
			a.limitReached[id] = true
			return ErrOutOfMemory
		}
	}

	page := a.popGlobalPoolLocked()
	if page == nil {
		bufSize := a.pageSize
		if !a.fullPages {
			// Without reassignment enabled a page can never move to a
			// different class, so trimming it to this class's exact
			// footprint (which may be short of a full page due to the
			// chunk-size remainder) saves the difference.
			bufSize = cls.ChunkSize * cls.PerPage
		}
		buf, err := a.arena.Allocate(bufSize)
		if err != nil {
			return obs.Wrap(ErrOutOfMemory, "allocating new page")
		}
		a.nextPageID++
		page = &Page{ID: a.nextPageID, Buf: buf}
	}

	for i := range page.Buf {
		page.Buf[i] = 0
	}
	page.Class = id

	a.splitPageLocked(cls, page)
	cls.Pages = append(cls.Pages, page)
	a.log.Debug("new page assigned", obs.Int("class", id), obs.Int64("page_id", page.ID))
	return nil
}

// splitPageLocked walks a page in chunk_size strides, pushing each
// chunk onto the class freelist in LIFO order — this is what gives a
// freshly split page's first chunk the same address a single
// alloc/free round-trip would hand back (§8, scenario S-alloc-basic).
func (a *Allocator) splitPageLocked(cls *SizeClass, page *Page) {
	for off := int64(0); off+cls.ChunkSize <= int64(len(page.Buf)); off += cls.ChunkSize {
		cls.freeList = append(cls.freeList, Chunk{Page: page, Offset: off, Size: cls.ChunkSize})
	}
}

func (a *Allocator) popGlobalPoolLocked() *Page {
	pool := a.classes[GlobalPagePool]
	n := len(pool.Pages)
	if n == 0 {
		return nil
	}
	page := pool.Pages[n-1]
	pool.Pages = pool.Pages[:n-1]
	return page
}
