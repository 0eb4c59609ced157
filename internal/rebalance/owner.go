// Package rebalance implements the coordinator/worker pair that moves
// a page from one size class to another while foreground allocation
// keeps running (spec §4.4, §4.5). The hash table, item locking and
// LRU/expiration machinery are out of scope (spec §1) — this package
// only depends on the two narrow interfaces below, so any concrete
// item subsystem (internal/itemstore is this module's reference one)
// can drive it.
package rebalance

import "github.com/hearthcache/slab/internal/slabs"

// ItemHandle is the narrow view onto a live record the rebalance
// worker needs: the fields spec §3 says only the slab subsystem may
// touch (flags, refcount) plus identity and size.
type ItemHandle interface {
	Key() string
	Flags() slabs.Flags
	SetFlags(slabs.Flags)
	Refcount() int32
	AddRefcount(delta int32) int32
	ClassID() int
	SetClassID(int)
	NTotal() int64
}

// ItemOwner is the hash table / item-lock / LRU collaborator the
// worker coordinates with during a scan. hv is an opaque hash value —
// the worker never interprets it, only passes it back to TryLock,
// Relocate and Unlink for the same key.
type ItemOwner interface {
	// Hash computes the item-lock shard / hash-table bucket for key.
	Hash(key string) uint64

	// TryLock attempts the sharded item lock for hv without blocking.
	// The lock ordering is item-lock-before-slabs-lock (§5): callers
	// must not be holding the allocator's internal lock when calling
	// this (none of this package's allocator calls hold it across a
	// return, so that's automatically satisfied).
	TryLock(hv uint64) (unlock func(), ok bool)

	// Lookup returns the live item currently stored in chunk, if any.
	Lookup(chunk slabs.Chunk) (ItemHandle, bool)

	// IsExpired reports whether h should be discarded rather than
	// rescued (item_is_flushed / exptime, owned by the LRU subsystem).
	IsExpired(h ItemHandle) bool

	// Relocate copies h's payload into dst and relinks the hash table
	// and LRU to point at dst; h itself stays the live, LINKED record,
	// now backed by dst. Equivalent to do_item_replace after a memcpy.
	Relocate(h ItemHandle, dst slabs.Chunk, hv uint64) error

	// Unlink removes h from the hash table and LRU without a
	// replacement. Equivalent to do_item_unlink.
	Unlink(h ItemHandle, hv uint64) error
}
