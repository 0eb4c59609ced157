package slabs

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// ClassStats is one row of the per-class textual stats surface (§6).
type ClassStats struct {
	ID             int
	ChunkSize      int64
	ChunksPerPage  int64
	TotalPages     int64
	TotalChunks    int64
	UsedChunks     int64
	FreeChunks     int64
	FreeChunksEnd  int64 // always 0, retained for compatibility (§6)
	MemRequested   int64
}

// GlobalStats is the allocator-wide portion of the stats surface.
type GlobalStats struct {
	ActiveSlabs       int64
	TotalMalloced     int64
	GlobalPagePool    int64 // pages currently parked in the global pool
}

// Stats returns the per-class rows (only for classes with at least
// one page, per §6) and the global summary.
func (a *Allocator) Stats() ([]ClassStats, GlobalStats) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var rows []ClassStats
	var activeSlabs int64
	for id := 1; id <= a.powerLargest && id < len(a.classes); id++ {
		cls := a.classes[id]
		if len(cls.Pages) == 0 {
			continue
		}
		activeSlabs++
		rows = append(rows, ClassStats{
			ID:            id,
			ChunkSize:     cls.ChunkSize,
			ChunksPerPage: cls.PerPage,
			TotalPages:    int64(len(cls.Pages)),
			TotalChunks:   cls.TotalChunks(),
			UsedChunks:    cls.TotalChunks() - cls.FreeCount(),
			FreeChunks:    cls.FreeCount(),
			MemRequested:  cls.requested,
		})
	}

	return rows, GlobalStats{
		ActiveSlabs:    activeSlabs,
		TotalMalloced:  a.arena.TotalAllocated(),
		GlobalPagePool: int64(len(a.classes[GlobalPagePool].Pages)),
	}
}

// Collector adapts Allocator.Stats to prometheus.Collector, so the
// stats surface of §6 can be scraped alongside the rebalance
// coordinator's counters (internal/rebalance.Collector).
type Collector struct {
	alloc *Allocator
}

// NewCollector wraps alloc for Prometheus registration.
func NewCollector(alloc *Allocator) *Collector { return &Collector{alloc: alloc} }

var (
	chunkSizeDesc    = prometheus.NewDesc("slab_class_chunk_size_bytes", "Chunk size of a slab class.", []string{"class"}, nil)
	totalPagesDesc   = prometheus.NewDesc("slab_class_total_pages", "Pages owned by a slab class.", []string{"class"}, nil)
	usedChunksDesc   = prometheus.NewDesc("slab_class_used_chunks", "Chunks in use in a slab class.", []string{"class"}, nil)
	freeChunksDesc   = prometheus.NewDesc("slab_class_free_chunks", "Chunks on a slab class's freelist.", []string{"class"}, nil)
	memRequestedDesc = prometheus.NewDesc("slab_class_mem_requested_bytes", "Bytes requested (not chunk-rounded) by class.", []string{"class"}, nil)
	activeSlabsDesc  = prometheus.NewDesc("slab_active_classes", "Number of size classes with at least one page.", nil, nil)
	totalMallocedDesc = prometheus.NewDesc("slab_total_malloced_bytes", "Total bytes obtained from the page source.", nil, nil)
	globalPoolDesc   = prometheus.NewDesc("slab_global_page_pool_pages", "Pages currently parked in the global page pool.", nil, nil)
)

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- chunkSizeDesc
	ch <- totalPagesDesc
	ch <- usedChunksDesc
	ch <- freeChunksDesc
	ch <- memRequestedDesc
	ch <- activeSlabsDesc
	ch <- totalMallocedDesc
	ch <- globalPoolDesc
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	rows, global := c.alloc.Stats()
	for _, r := range rows {
		label := classLabel(r.ID)
		ch <- prometheus.MustNewConstMetric(chunkSizeDesc, prometheus.GaugeValue, float64(r.ChunkSize), label)
		ch <- prometheus.MustNewConstMetric(totalPagesDesc, prometheus.GaugeValue, float64(r.TotalPages), label)
		ch <- prometheus.MustNewConstMetric(usedChunksDesc, prometheus.GaugeValue, float64(r.UsedChunks), label)
		ch <- prometheus.MustNewConstMetric(freeChunksDesc, prometheus.GaugeValue, float64(r.FreeChunks), label)
		ch <- prometheus.MustNewConstMetric(memRequestedDesc, prometheus.GaugeValue, float64(r.MemRequested), label)
	}
	ch <- prometheus.MustNewConstMetric(activeSlabsDesc, prometheus.GaugeValue, float64(global.ActiveSlabs))
	ch <- prometheus.MustNewConstMetric(totalMallocedDesc, prometheus.GaugeValue, float64(global.TotalMalloced))
	ch <- prometheus.MustNewConstMetric(globalPoolDesc, prometheus.GaugeValue, float64(global.GlobalPagePool))
}

func classLabel(id int) string {
	return strconv.Itoa(id)
}
