package query

import (
	"bytes"
	"math"

	"github.com/erigontech/objectdb/collection"
	"github.com/erigontech/objectdb/kv"
	"github.com/erigontech/objectdb/txn"
)

// whereClause is a bounded cursor scan over the primary key range, one
// secondary index's key range, or a single link's target set. Each
// variant yields ids in its own declared direction; duplicate
// suppression across clauses is the query engine's job, not the clause's.
type whereClause interface {
	scan(t *txn.Txn, emit func(id int64) (bool, error)) error
	// containsID reports whether id could possibly be produced by this
	// clause, without running a scan. Clauses that cannot answer cheaply
	// (index and link clauses, which would need the record's current
	// value or another cursor walk) answer true — over-inclusion here
	// only costs an extra filter re-check in the watch package, never a
	// missed notification.
	containsID(id int64) bool
}

// idRange scans the primary table for one collection between two ids,
// inclusive, in the given direction.
type idRange struct {
	collectionID uint16
	lo, hi       int64
	ascending    bool
}

// FullIDRange is the default source when a query declares no where-clause
// at all: the entire id space of the collection, ascending.
func FullIDRange(collectionID uint16) whereClause {
	return idRange{collectionID: collectionID, lo: math.MinInt64, hi: math.MaxInt64, ascending: true}
}

func IDRange(collectionID uint16, lo, hi int64, ascending bool) whereClause {
	return idRange{collectionID: collectionID, lo: lo, hi: hi, ascending: ascending}
}

func (w idRange) containsID(id int64) bool {
	return id >= w.lo && id <= w.hi
}

func (w idRange) scan(t *txn.Txn, emit func(id int64) (bool, error)) error {
	lo := collection.PrimaryKey(w.collectionID, w.lo)
	hi := collection.PrimaryKey(w.collectionID, w.hi)
	return t.WithCursor(kv.Primary, func(c kv.Cursor) error {
		var k []byte
		var err error
		if w.ascending {
			k, _, err = c.Seek(lo)
		} else {
			// Position at the first key > hi, then step back one; MDBX has
			// no "seek for less-than-or-equal" primitive exposed here, so
			// walk forward to find the boundary and reverse from there.
			k, _, err = c.Seek(hi)
			if err != nil {
				return err
			}
			if k == nil || bytes.Compare(k, hi) > 0 {
				k, _, err = c.Prev()
			}
		}
		for k != nil {
			if err != nil {
				return err
			}
			if w.ascending && bytes.Compare(k, hi) > 0 {
				return nil
			}
			if !w.ascending && bytes.Compare(k, lo) < 0 {
				return nil
			}
			cont, err := emit(collection.DecodeID(k))
			if err != nil {
				return err
			}
			if !cont {
				return nil
			}
			if w.ascending {
				k, _, err = c.Next()
			} else {
				k, _, err = c.Prev()
			}
		}
		return nil
	})
}

// indexRange scans one index's key range and resolves each matching
// secondary entry back to a primary id.
type indexRange struct {
	index          *collection.Index
	lo, hi         []byte
	ascending      bool
	skipDuplicates bool
}

func IndexRange(ix *collection.Index, lo, hi []byte, ascending, skipDuplicates bool) whereClause {
	return indexRange{index: ix, lo: lo, hi: hi, ascending: ascending, skipDuplicates: skipDuplicates}
}

func (w indexRange) containsID(id int64) bool { return true }

func (w indexRange) scan(t *txn.Txn, emit func(id int64) (bool, error)) error {
	def := w.index.Def()
	lo := collection.IndexKey(def.ID, w.lo)
	hi := collection.IndexKey(def.ID, w.hi)
	var lastKey []byte
	return t.WithCursor(kv.Secondary, func(c kv.Cursor) error {
		var k, v []byte
		var err error
		if w.ascending {
			k, v, err = c.Seek(lo)
		} else {
			k, v, err = c.Seek(hi)
			if err != nil {
				return err
			}
			if k == nil || bytes.Compare(k, hi) > 0 {
				k, v, err = c.Prev()
			}
		}
		for k != nil {
			if err != nil {
				return err
			}
			if w.ascending && bytes.Compare(k, hi) > 0 {
				return nil
			}
			if !w.ascending && bytes.Compare(k, lo) < 0 {
				return nil
			}
			if w.skipDuplicates && lastKey != nil && bytes.Equal(k, lastKey) {
				if w.ascending {
					k, v, err = c.Next()
				} else {
					k, v, err = c.Prev()
				}
				continue
			}
			lastKey = append(lastKey[:0], k...)
			cont, err := emit(collection.DecodeID(v))
			if err != nil {
				return err
			}
			if !cont {
				return nil
			}
			if w.ascending {
				k, v, err = c.Next()
			} else {
				k, v, err = c.Prev()
			}
		}
		return nil
	})
}

// linkTarget scans one link's target set for a given source id (or
// source set for a given target id, when backlink is set).
type linkTarget struct {
	link     *collection.Link
	ownerID  int64
	backlink bool
}

func LinkTarget(l *collection.Link, ownerID int64, backlink bool) whereClause {
	return linkTarget{link: l, ownerID: ownerID, backlink: backlink}
}

func (w linkTarget) containsID(id int64) bool { return true }

func (w linkTarget) scan(t *txn.Txn, emit func(id int64) (bool, error)) error {
	return w.link.Iter(t, w.ownerID, w.backlink, emit)
}
