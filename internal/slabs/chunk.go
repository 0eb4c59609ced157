package slabs

// Flags mirrors the subset of the external item header's flags byte
// that the slab subsystem itself inspects or mutates (§3): SLABBED
// (on a class freelist), FETCHED (claimed for move but not yet
// relinked — the "claimed for move" sentinel is SLABBED|FETCHED) and
// LINKED (a live record owned by the hash table).
type Flags uint8

const (
	FlagSlabbed Flags = 1 << iota
	FlagFetched
	FlagLinked
)

// ClaimedForMove is the sentinel flag pattern §9 calls out for an
// explicit name rather than an overloaded bit combination: a chunk
// the rebalance worker has claimed mid-scan, no longer on any
// freelist and not yet handed to the destination class.
const ClaimedForMove = FlagSlabbed | FlagFetched

// Chunk is a handle to one fixed-size region of a page. It carries no
// payload itself — chunks are raw item storage (§1 Non-goals exclude
// per-chunk headers) — ownership and contents are tracked by whatever
// currently holds the handle: a class freelist, or the item store.
type Chunk struct {
	Page   *Page
	Offset int64
	Size   int64
}

// Bytes returns the chunk's backing storage.
func (c Chunk) Bytes() []byte {
	return c.Page.Buf[c.Offset : c.Offset+c.Size]
}

// Zero clears the chunk's backing storage.
func (c Chunk) Zero() {
	b := c.Bytes()
	for i := range b {
		b[i] = 0
	}
}
