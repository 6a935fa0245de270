package collection

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"sync/atomic"

	"github.com/erigontech/objectdb/kv"
	"github.com/erigontech/objectdb/object"
	"github.com/erigontech/objectdb/schema"
	"github.com/erigontech/objectdb/txn"
)

// Collection coordinates primary storage, every declared index, and every
// link declared on (originating at) one typed collection of records.
// Edges of links declared elsewhere that target this collection are
// cleaned up by the instance layer.
type Collection struct {
	def     schema.Collection
	indexes []*Index
	links   []*Link // links originating at this collection
	oid     atomic.Int64
}

// New builds a Collection from its schema declaration. initialOID is the
// highest id already on disk (0 for an empty collection), so AutoIncrement
// continues from where a previous process left off.
func New(def schema.Collection, initialOID int64) *Collection {
	c := &Collection{def: def}
	for _, ixDef := range def.Indexes {
		c.indexes = append(c.indexes, NewIndex(def.ID, ixDef))
	}
	for _, ix := range c.indexes {
		ix.deleteOwner = c.deleteIndexedOwner
	}
	for _, lDef := range def.Links {
		c.links = append(c.links, NewLink(lDef))
	}
	c.oid.Store(initialOID)
	return c
}

func (c *Collection) Def() schema.Collection { return c.def }
func (c *Collection) Indexes() []*Index      { return c.indexes }
func (c *Collection) Links() []*Link         { return c.links }

// AutoIncrement returns the next id for this collection. Fails with
// errAutoIncrementOverflow once the counter has reached math.MaxInt64.
func (c *Collection) AutoIncrement() (int64, error) {
	for {
		cur := c.oid.Load()
		if cur >= math.MaxInt64 {
			return 0, errAutoIncrementOverflow
		}
		next := cur + 1
		if c.oid.CompareAndSwap(cur, next) {
			return next, nil
		}
	}
}

// bumpOID advances the counter to at least id, used after an explicit
// (non-auto-increment) put so a later AutoIncrement never collides.
func (c *Collection) bumpOID(id int64) {
	for {
		cur := c.oid.Load()
		if id <= cur {
			return
		}
		if c.oid.CompareAndSwap(cur, id) {
			return
		}
	}
}

// Get performs a zero-copy lookup: the returned slice is a view into the
// transaction's backing pages and must not be retained past the
// transaction's Commit/Abort.
func (c *Collection) Get(t *txn.Txn, id int64) ([]byte, bool, error) {
	v, err := t.Get(kv.Primary, PrimaryKey(c.def.ID, id))
	if err != nil {
		return nil, false, err
	}
	return v, v != nil, nil
}

// Put stores object under id (auto-incrementing when id is nil),
// replacing any existing record at that id: the old record's index
// entries are removed first; its link entries are left in place.
// Ordering (verify -> fetch-old -> delete-old-index -> write-primary ->
// write-new-index) guarantees a failed put never partially mutates an
// index.
func (c *Collection) Put(t *txn.Txn, id *int64, obj []byte) (int64, error) {
	if !object.Verify(c.def.Properties, obj) {
		return 0, errInvalidObject
	}

	var oid int64
	if id == nil {
		next, err := c.AutoIncrement()
		if err != nil {
			return 0, err
		}
		oid = next
	} else {
		oid = *id
	}

	old, existed, err := c.Get(t, oid)
	if err != nil {
		return 0, err
	}
	if existed {
		oldRec := object.NewRecord(old)
		for _, ix := range c.indexes {
			if err := ix.Delete(t, oid, oldRec); err != nil {
				return 0, err
			}
		}
	}

	newRec := object.NewRecord(obj)
	for _, ix := range c.indexes {
		if err := ix.Insert(t, oid, newRec); err != nil {
			if IsUniqueConflict(err) {
				return 0, errUniqueViolation
			}
			return 0, err
		}
	}
	if err := t.Put(kv.Primary, PrimaryKey(c.def.ID, oid), obj); err != nil {
		return 0, err
	}

	c.bumpOID(oid)
	if t.ChangeSet() != nil {
		t.ChangeSet().Add(c.def.ID, oid)
	}
	return oid, nil
}

// deleteIndexedOwner removes id's primary entry and every index entry it
// holds, without touching links — used when a Unique+Replace index's
// Insert displaces a previous owner under a different id. Link cleanup is
// deliberately out of scope here: Replace is an index-uniqueness rule, and
// a record still reachable by id through Collection.Delete gets the full
// link cascade there.
func (c *Collection) deleteIndexedOwner(t *txn.Txn, id int64) error {
	old, existed, err := c.Get(t, id)
	if err != nil || !existed {
		return err
	}
	rec := object.NewRecord(old)
	for _, ix := range c.indexes {
		if err := ix.Delete(t, id, rec); err != nil {
			return err
		}
	}
	if err := t.Delete(kv.Primary, PrimaryKey(c.def.ID, id)); err != nil {
		return err
	}
	if t.ChangeSet() != nil {
		t.ChangeSet().Add(c.def.ID, id)
	}
	return nil
}

// Delete removes the record at id, its index entries, and every edge
// where it is the source on the links this collection declares; edges
// where it is the target are removed by Instance.Delete. Returns false if
// nothing was there to remove.
func (c *Collection) Delete(t *txn.Txn, id int64) (bool, error) {
	raw, existed, err := c.Get(t, id)
	if err != nil || !existed {
		return false, err
	}
	rec := object.NewRecord(raw)
	for _, ix := range c.indexes {
		if err := ix.Delete(t, id, rec); err != nil {
			return false, err
		}
	}
	for _, l := range c.links {
		if err := l.DeleteAllForID(t, id, true); err != nil {
			return false, err
		}
	}
	// Also clean up incoming edges of links this collection is only the
	// target of; those Link objects live on the source collection, so the
	// caller (Instance) is responsible for invoking DeleteAllForID(id,
	// false) against every link across the schema that targets this
	// collection. See Instance.deleteCrossLinks.
	if err := t.Delete(kv.Primary, PrimaryKey(c.def.ID, id)); err != nil {
		return false, err
	}
	if t.ChangeSet() != nil {
		t.ChangeSet().Add(c.def.ID, id)
	}
	return true, nil
}

// Clear removes every record in the collection along with all of its
// index entries, returning the count removed. Link entries mentioning
// cleared ids are not touched here — callers that clear a collection with
// active links should also clear those links explicitly, since Clear is a
// bulk bypass of the normal per-record delete path for speed.
func (c *Collection) Clear(t *txn.Txn) (int, error) {
	prefix := PrimaryKeyPrefix(c.def.ID)
	var ids []int64
	if err := t.WithCursor(kv.Primary, func(cur kv.Cursor) error {
		k, v, err := cur.Seek(prefix)
		for k != nil {
			if err != nil {
				return err
			}
			if !bytes.HasPrefix(k, prefix) {
				break
			}
			id := DecodeID(k)
			rec := object.NewRecord(v)
			for _, ix := range c.indexes {
				if err := ix.Delete(t, id, rec); err != nil {
					return err
				}
			}
			ids = append(ids, id)
			k, v, err = cur.Next()
		}
		return nil
	}); err != nil {
		return 0, err
	}
	for _, id := range ids {
		if err := t.Delete(kv.Primary, PrimaryKey(c.def.ID, id)); err != nil {
			return 0, err
		}
		if t.ChangeSet() != nil {
			t.ChangeSet().Add(c.def.ID, id)
		}
	}
	return len(ids), nil
}

// jsonDoc is the plain mapping used at the JSON import/export boundary:
// property name -> value, assignable back to the property's DataType.
type jsonDoc = map[string]any

// ImportJSON decodes a JSON array of documents and puts each one,
// returning the assigned ids in array order. A document missing the
// collection's designated id field is auto-incremented.
func (c *Collection) ImportJSON(t *txn.Txn, data []byte) ([]int64, error) {
	var docs []jsonDoc
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, errInvalidJSON
	}
	ids := make([]int64, 0, len(docs))
	for _, doc := range docs {
		var idPtr *int64
		if raw, ok := doc["id"]; ok {
			if f, ok := raw.(float64); ok {
				id := int64(f)
				idPtr = &id
			}
		}
		obj, err := c.encodeJSONDoc(doc)
		if err != nil {
			return nil, err
		}
		id, err := c.Put(t, idPtr, obj)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (c *Collection) encodeJSONDoc(doc jsonDoc) ([]byte, error) {
	b := object.NewBuilder(c.def.Properties, nil)
	for _, p := range c.def.Properties {
		raw, ok := doc[p.Name]
		if !ok || raw == nil {
			b.WriteNull(p)
			continue
		}
		if err := writeJSONValue(b, p, raw); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}

// ExportJSON streams every record in the collection as a JSON array,
// avoiding buffering the whole collection in memory at once.
func (c *Collection) ExportJSON(t *txn.Txn, w io.Writer) error {
	if _, err := w.Write([]byte("[")); err != nil {
		return err
	}
	first := true
	prefix := PrimaryKeyPrefix(c.def.ID)
	enc := json.NewEncoder(&trimNewlineWriter{w: w})
	err := t.WithCursor(kv.Primary, func(cur kv.Cursor) error {
		k, v, err := cur.Seek(prefix)
		for k != nil {
			if err != nil {
				return err
			}
			if !bytes.HasPrefix(k, prefix) {
				return nil
			}
			if !first {
				if _, err := w.Write([]byte(",")); err != nil {
					return err
				}
			}
			first = false
			doc := c.decodeToJSONDoc(DecodeID(k), object.NewRecord(v))
			if err := enc.Encode(doc); err != nil {
				return err
			}
			k, v, err = cur.Next()
		}
		return nil
	})
	if err != nil {
		return err
	}
	_, err = w.Write([]byte("]"))
	return err
}

func (c *Collection) decodeToJSONDoc(id int64, r *object.Record) jsonDoc {
	doc := jsonDoc{"id": id}
	for _, p := range c.def.Properties {
		if r.IsNull(p) {
			doc[p.Name] = nil
			continue
		}
		doc[p.Name] = readJSONValue(r, p)
	}
	return doc
}

// trimNewlineWriter strips the trailing "\n" json.Encoder.Encode always
// appends, so a streamed array doesn't carry one newline per element.
type trimNewlineWriter struct{ w io.Writer }

func (t *trimNewlineWriter) Write(p []byte) (int, error) {
	if len(p) > 0 && p[len(p)-1] == '\n' {
		p = p[:len(p)-1]
	}
	n, err := t.w.Write(p)
	if err != nil {
		return n, err
	}
	return len(p) + 1, nil // report the original length so Encode doesn't retry
}
