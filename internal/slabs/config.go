package slabs

import (
	"fmt"
	"os"
	"strconv"
)

// Alignment every chunk size is rounded up to, matching the item
// header's required minimum alignment.
const Alignment = 8

// ItemHeaderSize is the size, in bytes, of the external item header
// this package assumes when computing the base chunk size for class 1.
// internal/itemstore keeps its item records outside chunk memory, so
// nothing there is sized from or checked against this constant
// (itemstore is a reference collaborator, not a dependency of slabs).
const ItemHeaderSize = 48

// Config holds every tunable named in the allocator's external
// interface: memory budget, class growth, and the two runtime flags
// that change page lifecycle (Prealloc, SlabReassign).
type Config struct {
	MemoryLimit  int64   // hard cap on allocator-issued memory, bytes
	Factor       float64 // chunk-size growth ratio, > 1.0
	ChunkBase    int64   // base payload size added to ItemHeaderSize for class 1
	PageSize     int64   // page size and largest chunk size
	Prealloc     bool    // reserve one contiguous block of MemoryLimit bytes at startup
	SlabReassign bool    // enable the rebalance worker; forces full-size pages
	SlabAutomove int     // automove aggressiveness; cmd/slabd runs its automove loop when > 0 and scales its rate limit by it
}

// DefaultConfig returns the defaults used throughout this module's
// tests and the cmd/slabd demo: a 64MiB budget, 1.25x growth, a 1MiB
// page, no preallocation.
func DefaultConfig() Config {
	return Config{
		MemoryLimit:  64 * 1024 * 1024,
		Factor:       1.25,
		ChunkBase:    48,
		PageSize:     1024 * 1024,
		Prealloc:     false,
		SlabReassign: true,
		SlabAutomove: 1,
	}
}

// Validate checks the configuration for the constraints spelled out in
// the allocator's external interface (§6): page size must be positive
// and no larger than 128MiB, the growth factor must exceed 1.0.
func (c Config) Validate() error {
	if c.PageSize <= 0 {
		return fmt.Errorf("slabs: page size must be positive, got %d", c.PageSize)
	}
	if c.PageSize > 128*1024*1024 {
		return fmt.Errorf("slabs: page size %d exceeds 128MiB limit", c.PageSize)
	}
	if c.Factor <= 1.0 {
		return fmt.Errorf("slabs: growth factor must be > 1.0, got %f", c.Factor)
	}
	if c.MemoryLimit < c.PageSize {
		return fmt.Errorf("slabs: memory limit %d smaller than one page (%d)", c.MemoryLimit, c.PageSize)
	}
	return nil
}

// ApplyEnvOverrides applies MEMCACHED_SLAB_BULK_CHECK, which overrides
// the rebalance worker's per-scan chunk count. The other hook,
// T_MEMD_INITIAL_MALLOC, is read by InitialMallocSeed, whose value New
// passes to the arena constructor to seed its total-allocated counter.
func ApplyEnvOverrides(bulk *int) {
	if v := os.Getenv("MEMCACHED_SLAB_BULK_CHECK"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*bulk = n
		}
	}
}

// InitialMallocSeed reads T_MEMD_INITIAL_MALLOC, returning 0 if unset
// or unparsable.
func InitialMallocSeed() int64 {
	v := os.Getenv("T_MEMD_INITIAL_MALLOC")
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
