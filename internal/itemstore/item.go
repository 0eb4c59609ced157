// Package itemstore is a minimal reference hash table and item-lock
// layer implementing the rebalance.ItemOwner / rebalance.ItemHandle
// contract. The real collaborator is explicitly out of scope (spec
// §1); this one exists so the rebalance state machine has something
// concrete to drive in tests and in the cmd/slabd demo.
package itemstore

import (
	"sync"
	"sync/atomic"

	"github.com/hearthcache/slab/internal/slabs"
)

// Item is a live record: a key, its current chunk, and the flags and
// refcount the slab subsystem touches directly during a rebalance
// scan (§3).
type Item struct {
	key    string
	chunk  slabs.Chunk
	expire int64 // unix seconds, 0 means no expiry

	mu       sync.Mutex
	flags    slabs.Flags
	refcount int32
	classID  int
}

func (it *Item) Key() string { return it.key }

func (it *Item) Flags() slabs.Flags {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.flags
}

func (it *Item) SetFlags(f slabs.Flags) {
	it.mu.Lock()
	it.flags = f
	it.mu.Unlock()
}

func (it *Item) Refcount() int32 { return atomic.LoadInt32(&it.refcount) }

func (it *Item) AddRefcount(delta int32) int32 {
	return atomic.AddInt32(&it.refcount, delta)
}

func (it *Item) ClassID() int {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.classID
}

func (it *Item) SetClassID(id int) {
	it.mu.Lock()
	it.classID = id
	it.mu.Unlock()
}

func (it *Item) NTotal() int64 { return it.chunk.Size }

// Chunk returns the chunk currently backing this item.
func (it *Item) Chunk() slabs.Chunk {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.chunk
}
