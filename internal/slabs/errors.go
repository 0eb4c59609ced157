package slabs

import "errors"

// Sentinel errors returned by allocator and rebalance entry points.
// Callers should compare with errors.Is; none of these are fatal to
// the process. The allocator runs no internal consistency checks: a
// double Free or a chunk freed into the wrong class is not detected.
var (
	ErrInvalidClass    = errors.New("slabs: invalid size class")
	ErrOutOfMemory     = errors.New("slabs: out of memory")
	ErrPreallocFailed  = errors.New("slabs: preallocation failed")
	ErrRebalanceBusy   = errors.New("slabs: rebalance already running")
	ErrSrcDstSame      = errors.New("slabs: source and destination class are identical")
	ErrNoSpareClass    = errors.New("slabs: no class has a spare page to donate")
	ErrPreallocExhaust = errors.New("slabs: preallocated arena exhausted")
)
