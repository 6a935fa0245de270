package txn

import "github.com/RoaringBitmap/roaring/v2/roaring64"

// ChangeSet is the per-transaction deduplicated log of ids touched by a
// write transaction, keyed by collection. It is handed to the watcher
// dispatcher on commit and discarded on abort.
type ChangeSet struct {
	byCollection map[uint16]*roaring64.Bitmap
}

// NewChangeSet returns an empty change set.
func NewChangeSet() *ChangeSet {
	return &ChangeSet{byCollection: make(map[uint16]*roaring64.Bitmap)}
}

// Add registers that id in collectionID was put or deleted in this
// transaction. Re-adding the same id is a no-op, courtesy of the
// underlying bitmap's set semantics.
func (c *ChangeSet) Add(collectionID uint16, id int64) {
	bm, ok := c.byCollection[collectionID]
	if !ok {
		bm = roaring64.New()
		c.byCollection[collectionID] = bm
	}
	bm.Add(uint64(id))
}

// Collections returns the set of collection ids that had at least one
// change.
func (c *ChangeSet) Collections() []uint16 {
	out := make([]uint16, 0, len(c.byCollection))
	for id := range c.byCollection {
		out = append(out, id)
	}
	return out
}

// IDs returns every id touched in one collection, ordered by the id's
// unsigned 64-bit value: non-negative ids ascending, then negative ids.
func (c *ChangeSet) IDs(collectionID uint16) []int64 {
	bm, ok := c.byCollection[collectionID]
	if !ok {
		return nil
	}
	it := bm.Iterator()
	out := make([]int64, 0, bm.GetCardinality())
	for it.HasNext() {
		out = append(out, int64(it.Next()))
	}
	return out
}

// Empty reports whether any id was ever added.
func (c *ChangeSet) Empty() bool {
	return len(c.byCollection) == 0
}
