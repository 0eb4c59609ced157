package slabs

// GlobalPagePool is the reserved class index holding whole, undivided
// pages available for donation to any other class.
const GlobalPagePool = 0

// maxClasses bounds the size-class table; memcached's own table caps
// out in the low hundreds, but geometric growth from a 48-byte base
// to a 1MiB page at a 1.25x factor needs only a few dozen steps.
const maxClasses = 64

// SizeClass describes one size class's chunk layout and the pages it
// currently owns. Index 0 is the global page pool (§3): its
// ChunkSize, PerPage and freelist are unused, and Pages holds whole
// pages rather than a split freelist.
type SizeClass struct {
	ID         int
	ChunkSize  int64
	PerPage    int64
	Pages      []*Page
	freeList   []Chunk // LIFO: append on free, pop from the tail on alloc
	requested  int64   // sum of alloc sizes minus free sizes (§3 requested_bytes)
	usedCount  int64
}

// FreeCount reports the number of chunks currently on this class's
// freelist.
func (sc *SizeClass) FreeCount() int64 { return int64(len(sc.freeList)) }

// UsedCount reports chunks handed out and not yet freed.
func (sc *SizeClass) UsedCount() int64 { return sc.usedCount }

// TotalChunks reports pages.len * per_page, per the invariant in §8.1.
func (sc *SizeClass) TotalChunks() int64 {
	return int64(len(sc.Pages)) * sc.PerPage
}

// RequestedBytes is the usage-accounting counter from §3: may differ
// from actual occupied bytes when the caller's size differs from the
// class's chunk size.
func (sc *SizeClass) RequestedBytes() int64 { return sc.requested }

func alignUp(n, a int64) int64 {
	if n <= 0 {
		return a
	}
	return (n + a - 1) / a * a
}

// BuildSizeClasses lays out the size-class table per §4.1: geometric
// growth from a chunk base, stopping once the next candidate size
// exceeds PageSize/Factor, with a final class pinned to exactly one
// page.
func BuildSizeClasses(cfg Config) ([]*SizeClass, int, error) {
	if err := cfg.Validate(); err != nil {
		return nil, 0, err
	}

	classes := make([]*SizeClass, 1, maxClasses)
	classes[0] = &SizeClass{ID: GlobalPagePool}

	size := float64(ItemHeaderSize + cfg.ChunkBase)
	powerLargest := 0

	for i := 1; i < maxClasses-1; i++ {
		chunkSize := alignUp(int64(size), Alignment)
		if chunkSize >= cfg.PageSize {
			break
		}
		classes = append(classes, &SizeClass{
			ID:        i,
			ChunkSize: chunkSize,
			PerPage:   cfg.PageSize / chunkSize,
		})
		powerLargest = i

		size *= cfg.Factor
		if size > float64(cfg.PageSize)/cfg.Factor {
			break
		}
	}

	// Final class: exactly one page, one chunk.
	largest := &SizeClass{
		ID:        len(classes),
		ChunkSize: cfg.PageSize,
		PerPage:   1,
	}
	classes = append(classes, largest)
	powerLargest = largest.ID

	return classes, powerLargest, nil
}

// ClassIDFor returns the smallest class id whose chunk size can hold
// size bytes, or 0 if none fits (§4.1, §8.8).
func ClassIDFor(classes []*SizeClass, powerLargest int, size int64) int {
	for i := 1; i <= powerLargest && i < len(classes); i++ {
		if classes[i].ChunkSize >= size {
			return i
		}
	}
	return 0
}
