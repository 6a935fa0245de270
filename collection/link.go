package collection

import (
	"github.com/erigontech/objectdb/kv"
	"github.com/erigontech/objectdb/schema"
	"github.com/erigontech/objectdb/txn"
)

// Link maintains a bidirectional m:n edge set between a source and target
// collection: every edge is physically stored twice (forward, keyed by
// source id; backward, keyed by target id) so either side iterates in
// O(log n + k) without a reverse scan.
type Link struct {
	def schema.Link
}

func NewLink(def schema.Link) *Link { return &Link{def: def} }

func (l *Link) Def() schema.Link { return l.def }

// Create adds one edge. Idempotent: creating the same edge twice leaves a
// single pair of entries (a Put to an existing key is a no-op overwrite).
func (l *Link) Create(t *txn.Txn, sourceID, targetID int64) error {
	fwd := linkKey(l.def.ID, linkForward, sourceID, targetID)
	bwd := linkKey(l.def.ID, linkBackward, targetID, sourceID)
	if err := t.Put(kv.Links, fwd, nil); err != nil {
		return err
	}
	return t.Put(kv.Links, bwd, nil)
}

// Delete removes exactly one edge, both its forward and backward entries.
func (l *Link) Delete(t *txn.Txn, sourceID, targetID int64) error {
	fwd := linkKey(l.def.ID, linkForward, sourceID, targetID)
	bwd := linkKey(l.def.ID, linkBackward, targetID, sourceID)
	if err := t.Delete(kv.Links, fwd); err != nil {
		return err
	}
	return t.Delete(kv.Links, bwd)
}

// DeleteAllForID removes every edge touching id on the given side
// (isSource selects the forward role). Collection.Delete calls it with
// isSource=true for every link the collection declares; Instance.Delete
// calls it with isSource=false for every link that targets the record's
// collection, so a record deleted through Instance.Delete leaves no
// dangling link entry on either side.
func (l *Link) DeleteAllForID(t *txn.Txn, id int64, isSource bool) error {
	direction, otherDirection := linkForward, linkBackward
	if !isSource {
		direction, otherDirection = linkBackward, linkForward
	}
	prefix := linkOwnerPrefix(l.def.ID, direction, id)
	var toDelete [][2][]byte
	if err := t.WithCursor(kv.Links, func(c kv.Cursor) error {
		k, _, err := c.Seek(prefix)
		for k != nil {
			if err != nil {
				return err
			}
			if !hasPrefix(k, prefix) {
				break
			}
			otherID := linkKeyOtherID(k)
			otherKey := linkKey(l.def.ID, otherDirection, otherID, id)
			toDelete = append(toDelete, [2][]byte{k, otherKey})
			k, _, err = c.Next()
		}
		return nil
	}); err != nil {
		return err
	}
	for _, pair := range toDelete {
		if err := t.Delete(kv.Links, pair[0]); err != nil {
			return err
		}
		if err := t.Delete(kv.Links, pair[1]); err != nil {
			return err
		}
	}
	return nil
}

// Iter walks every other-side id linked to id, in ascending id order.
// backlink selects traversal direction: false walks id as source
// (default forward direction), true walks id as target.
func (l *Link) Iter(t *txn.Txn, id int64, backlink bool, fn func(otherID int64) (bool, error)) error {
	direction := linkForward
	if backlink {
		direction = linkBackward
	}
	prefix := linkOwnerPrefix(l.def.ID, direction, id)
	return t.WithCursor(kv.Links, func(c kv.Cursor) error {
		k, _, err := c.Seek(prefix)
		for k != nil {
			if err != nil {
				return err
			}
			if !hasPrefix(k, prefix) {
				return nil
			}
			cont, err := fn(linkKeyOtherID(k))
			if err != nil {
				return err
			}
			if !cont {
				return nil
			}
			k, _, err = c.Next()
		}
		return nil
	})
}

func hasPrefix(k, prefix []byte) bool {
	if len(k) < len(prefix) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}
