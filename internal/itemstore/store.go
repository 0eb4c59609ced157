package itemstore

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cespare/xxhash/v2"

	"github.com/hearthcache/slab/internal/rebalance"
	"github.com/hearthcache/slab/internal/slabs"
)

// lockShards is the number of item-lock shards, mirroring the
// original's striped item lock array sized well above expected
// concurrency to keep collisions rare.
const lockShards = 256

type chunkKey struct {
	page   *slabs.Page
	offset int64
}

// Store is a minimal sharded hash table with per-shard item locks. It
// satisfies rebalance.ItemOwner and is the key generator for
// rebalance.ItemHandle values via *Item.
type Store struct {
	clk clock.Clock

	locks [lockShards]sync.Mutex

	mu    sync.RWMutex
	byKey map[string]*Item
	byPos map[chunkKey]*Item
}

// New builds an empty Store. clk is used for expiry checks so tests
// can control the passage of time.
func New(clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.New()
	}
	return &Store{
		clk:   clk,
		byKey: make(map[string]*Item),
		byPos: make(map[chunkKey]*Item),
	}
}

// Hash implements rebalance.ItemOwner.
func (s *Store) Hash(key string) uint64 { return xxhash.Sum64String(key) }

func (s *Store) shard(hv uint64) *sync.Mutex { return &s.locks[hv%lockShards] }

// TryLock implements rebalance.ItemOwner.
func (s *Store) TryLock(hv uint64) (func(), bool) {
	m := s.shard(hv)
	if !m.TryLock() {
		return nil, false
	}
	return m.Unlock, true
}

// Lock blocks until hv's shard is acquired, for normal (non-rebalance)
// foreground access such as Insert. Get takes no item lock; it reads
// the hash table under the store's own read lock.
func (s *Store) Lock(hv uint64) func() {
	m := s.shard(hv)
	m.Lock()
	return m.Unlock
}

// Insert adds a new item at chunk under key, linked and with a
// starting refcount of 1 (the caller's reference). ttl of zero means
// no expiry.
func (s *Store) Insert(key string, chunk slabs.Chunk, ttl time.Duration) *Item {
	hv := s.Hash(key)
	unlock := s.Lock(hv)
	defer unlock()

	it := &Item{
		key:      key,
		chunk:    chunk,
		flags:    slabs.FlagLinked,
		refcount: 1,
		classID:  chunk.Page.Class,
	}
	if ttl > 0 {
		it.expire = s.clk.Now().Add(ttl).Unix()
	}

	s.mu.Lock()
	s.byKey[key] = it
	s.byPos[chunkKey{chunk.Page, chunk.Offset}] = it
	s.mu.Unlock()
	return it
}

// Get looks an item up by key for foreground reads.
func (s *Store) Get(key string) (*Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.byKey[key]
	return it, ok
}

// Lookup implements rebalance.ItemOwner.
func (s *Store) Lookup(chunk slabs.Chunk) (rebalance.ItemHandle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.byPos[chunkKey{chunk.Page, chunk.Offset}]
	if !ok {
		return nil, false
	}
	return it, true
}

// IsExpired implements rebalance.ItemOwner.
func (s *Store) IsExpired(h rebalance.ItemHandle) bool {
	it, ok := h.(*Item)
	if !ok {
		return false
	}
	it.mu.Lock()
	exp := it.expire
	it.mu.Unlock()
	return exp != 0 && s.clk.Now().Unix() >= exp
}

// Relocate implements rebalance.ItemOwner: copies h's bytes into dst
// and repoints the hash table and position index at the new chunk.
func (s *Store) Relocate(h rebalance.ItemHandle, dst slabs.Chunk, hv uint64) error {
	it, ok := h.(*Item)
	if !ok {
		return slabs.ErrInvalidClass
	}

	it.mu.Lock()
	src := it.chunk
	copy(dst.Bytes(), src.Bytes())
	it.chunk = dst
	it.classID = dst.Page.Class
	it.mu.Unlock()

	s.mu.Lock()
	delete(s.byPos, chunkKey{src.Page, src.Offset})
	s.byPos[chunkKey{dst.Page, dst.Offset}] = it
	s.mu.Unlock()

	it.AddRefcount(-1)
	return nil
}

// Unlink implements rebalance.ItemOwner.
func (s *Store) Unlink(h rebalance.ItemHandle, hv uint64) error {
	it, ok := h.(*Item)
	if !ok {
		return slabs.ErrInvalidClass
	}

	it.mu.Lock()
	it.flags &^= slabs.FlagLinked
	chunk := it.chunk
	key := it.key
	it.mu.Unlock()

	s.mu.Lock()
	delete(s.byKey, key)
	delete(s.byPos, chunkKey{chunk.Page, chunk.Offset})
	s.mu.Unlock()

	it.AddRefcount(-1)
	return nil
}
