package collection

import (
	"github.com/erigontech/objectdb/indexkey"
	"github.com/erigontech/objectdb/kv"
	"github.com/erigontech/objectdb/object"
	"github.com/erigontech/objectdb/schema"
	"github.com/erigontech/objectdb/txn"
)

// Index maintains one secondary mapping from a composite encoded key to
// the primary key of the owning record.
type Index struct {
	def          schema.Index
	collectionID uint16
	// deleteOwner removes a record (by id) from the owning Collection,
	// including every other index entry it holds. Set once by Collection
	// after construction, since Index predates the Collection that owns
	// it. Only consulted for a Unique+Replace index.
	deleteOwner func(t *txn.Txn, id int64) error
}

// NewIndex wraps a schema declaration for use by the collection engine.
func NewIndex(collectionID uint16, def schema.Index) *Index {
	return &Index{def: def, collectionID: collectionID}
}

// keysFor computes every index key this record contributes. A composite
// Value/Hash index produces exactly one key; a HashElements index
// produces one key per element — cross products across multiple list
// properties are not supported, so HashElements is only meaningful on a
// single list property.
func (ix *Index) keysFor(r *object.Record) [][]byte {
	if len(ix.def.Properties) == 1 && ix.def.Properties[0].Type == schema.HashElements {
		ip := ix.def.Properties[0]
		parts := indexkey.EncodeListElements(ip.Property.Type, r, ip.Property, ip.CaseSensitive)
		out := make([][]byte, len(parts))
		for i, p := range parts {
			out[i] = IndexKey(ix.def.ID, p)
		}
		return out
	}
	parts := make([][]byte, 0, len(ix.def.Properties))
	for _, ip := range ix.def.Properties {
		parts = append(parts, indexkey.EncodeScalar(ip.Property.Type, r, ip.Property, ip.CaseSensitive))
	}
	return [][]byte{IndexKey(ix.def.ID, indexkey.Concat(parts...))}
}

// Insert writes every (index_key, primary_key) pair for id/object. For a
// unique index, a pre-existing owner under a different id causes a
// UniqueViolation — unless the index is also declared Replace, in which
// case that owner's whole record (every index entry plus its primary
// entry) is deleted here before the new entry is written.
func (ix *Index) Insert(t *txn.Txn, id int64, r *object.Record) error {
	primary := PrimaryKey(ix.collectionID, id)
	for _, key := range ix.keysFor(r) {
		if ix.def.Unique {
			existing, err := t.Get(kv.Secondary, key)
			if err != nil {
				return err
			}
			if existing != nil && string(existing) != string(primary) {
				if !ix.def.Replace || ix.deleteOwner == nil {
					return errUniqueConflict
				}
				if err := ix.deleteOwner(t, DecodeID(existing)); err != nil {
					return err
				}
			}
		}
		if err := t.Put(kv.Secondary, key, primary); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes every index entry this (id, previously-stored object)
// combination owns. It must be called with the OLD object — the one
// being overwritten or removed — never the new one.
func (ix *Index) Delete(t *txn.Txn, id int64, r *object.Record) error {
	for _, key := range ix.keysFor(r) {
		if err := t.Delete(kv.Secondary, key); err != nil {
			return err
		}
	}
	return nil
}

// errUniqueConflict is translated to objectdb.UniqueViolation by the
// caller, kept internal so this package has no import-cycle dependency on
// the root error type.
var errUniqueConflict = uniqueConflictError{}

type uniqueConflictError struct{}

func (uniqueConflictError) Error() string { return "collection: unique index conflict" }

// IsUniqueConflict reports whether err is the unique-index sentinel.
func IsUniqueConflict(err error) bool {
	_, ok := err.(uniqueConflictError)
	return ok
}

// Def exposes the underlying schema declaration, used by the query
// engine's IndexRange where-clause to derive the same key encoding.
func (ix *Index) Def() schema.Index { return ix.def }
