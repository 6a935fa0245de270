package objectdb

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/erigontech/objectdb/collection"
	"github.com/erigontech/objectdb/kv"
	"github.com/erigontech/objectdb/kv/mdbx"
	"github.com/erigontech/objectdb/object"
	"github.com/erigontech/objectdb/query"
	"github.com/erigontech/objectdb/schema"
	"github.com/erigontech/objectdb/txn"
	"github.com/erigontech/objectdb/watch"
)

// Instance is one opened database: a single MDBX environment, its schema
// arena, one Collection per declared collection, and the watcher registry
// that gets fed every write transaction's change set on commit.
//
// An Instance is safe for concurrent use: read transactions run
// concurrently, write transactions are serialized by the backing store
// (kv/mdbx's BeginRw already blocks until the previous writer finishes).
type Instance struct {
	db   *mdbx.DB
	lock *flock.Flock
	log  *zap.Logger

	arena       *schema.Arena
	collections map[uint16]*collection.Collection

	// incomingLinks maps a collection id to every Link, owned by some
	// other (or the same) collection, whose TargetCollection is that id —
	// the set Collection.Delete cannot clean up on its own, since those
	// Link values live in the source collection's Links() slice.
	incomingLinks map[uint16][]*collection.Link

	watchers *watch.Registry
}

// Open acquires path with an advisory file lock (refusing a second
// concurrent open of the same database from this process or another),
// opens the backing MDBX environment, and reconciles the stored schema
// with schemaDecl: a fresh database adopts schemaDecl outright, an
// existing one is expected to match it (collection/property/index ids
// are part of the on-disk format, not something this layer migrates).
func Open(path string, cfg Config, schemaDecl schema.Schema) (*Instance, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.MaxCollections > 0 && len(schemaDecl.Collections) > cfg.MaxCollections {
		return nil, newErr(IllegalArg, "schema declares %d collections, MaxCollections is %d", len(schemaDecl.Collections), cfg.MaxCollections)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, newErr(DBCorrupted, "mkdir %s: %v", path, err)
	}

	lockPath := filepath.Join(path, ".lock")
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, newErr(DBCorrupted, "flock %s: %v", lockPath, err)
	}
	if !locked {
		return nil, newErr(IllegalArg, "database at %s is already open in this or another process", path)
	}

	db, err := mdbx.Open(path, int64(cfg.MaxSize), cfg.RelaxedDurability)
	if err != nil {
		lock.Unlock()
		return nil, translateOpenErr(err)
	}

	log := zap.NewNop()

	inst := &Instance{
		db:            db,
		lock:          lock,
		log:           log,
		collections:   make(map[uint16]*collection.Collection),
		incomingLinks: make(map[uint16][]*collection.Link),
	}

	if err := inst.loadOrInitSchema(schemaDecl); err != nil {
		db.Close()
		lock.Unlock()
		return nil, err
	}

	inst.watchers = watch.New(context.Background(), log, inst.getRecordForWatch)
	return inst, nil
}

// loadOrInitSchema reads the persisted schema from the meta table; when
// absent (a brand-new database file) it persists schemaDecl as the
// definitive declaration. Either way it builds the arena, the per-
// collection engines, and the incoming-link index from the result.
func (inst *Instance) loadOrInitSchema(schemaDecl schema.Schema) error {
	t, err := txn.Begin(context.Background(), inst.db, true)
	if err != nil {
		return translateTxnErr(err)
	}

	raw, err := t.Get(kv.Meta, schema.MetaKey())
	if err != nil {
		t.Abort()
		return translateTxnErr(err)
	}

	active := schemaDecl
	if raw == nil {
		encoded, err := schema.MarshalJSON(schemaDecl)
		if err != nil {
			t.Abort()
			return newErr(InvalidObject, "encode schema: %v", err)
		}
		if err := t.Put(kv.Meta, schema.MetaKey(), encoded); err != nil {
			t.Abort()
			return translateTxnErr(err)
		}
	} else {
		decoded, err := schema.UnmarshalJSON(raw)
		if err != nil {
			t.Abort()
			return newErr(DBCorrupted, "decode stored schema: %v", err)
		}
		active = decoded
	}

	inst.arena = schema.NewArena(active)
	for _, c := range inst.arena.All() {
		initialOID, err := maxIDInCollection(t, c.ID)
		if err != nil {
			t.Abort()
			return translateTxnErr(err)
		}
		inst.collections[c.ID] = collection.New(c, initialOID)
	}
	for _, c := range inst.arena.All() {
		coll := inst.collections[c.ID]
		for _, l := range coll.Links() {
			inst.incomingLinks[l.Def().TargetCollection] = append(inst.incomingLinks[l.Def().TargetCollection], l)
		}
	}

	return translateTxnErr(t.Commit())
}

// maxIDInCollection reads the last key under a collection's primary key
// prefix to recover where AutoIncrement should resume after a restart.
func maxIDInCollection(t *txn.Txn, collectionID uint16) (int64, error) {
	prefix := collection.PrimaryKeyPrefix(collectionID)
	var maxID int64
	err := t.WithCursor(kv.Primary, func(c kv.Cursor) error {
		k, _, err := c.Last()
		if err != nil || k == nil {
			return err
		}
		if !hasPrefix(k, prefix) {
			// The whole table's last key isn't in this collection: seek to
			// just past the prefix and back off one instead.
			k, _, err = c.Seek(collection.PrimaryKeyPrefix(collectionID + 1))
			if err != nil {
				return err
			}
			if k == nil {
				k, _, err = c.Last()
			} else {
				k, _, err = c.Prev()
			}
			if err != nil || k == nil || !hasPrefix(k, prefix) {
				return err
			}
		}
		maxID = collection.DecodeID(k)
		return nil
	})
	return maxID, err
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

// Collection resolves a declared collection by its schema index (slot
// order in the declaration, matching the FFI layer's integer-indexed
// contract), not its numeric collection id.
func (inst *Instance) Collection(index int) (*collection.Collection, bool) {
	all := inst.arena.All()
	if index < 0 || index >= len(all) {
		return nil, false
	}
	return inst.collections[all[index].ID], true
}

// CollectionByName resolves a declared collection by name.
func (inst *Instance) CollectionByName(name string) (*collection.Collection, bool) {
	def, ok := inst.arena.ByName(name)
	if !ok {
		return nil, false
	}
	return inst.collections[def.ID], true
}

// Begin opens a transaction against the instance. write=true serializes
// against every other write transaction on this instance.
func (inst *Instance) Begin(ctx context.Context, write bool) (*txn.Txn, error) {
	t, err := txn.Begin(ctx, inst.db, write)
	if err != nil {
		return nil, translateTxnErr(err)
	}
	return t, nil
}

// Commit commits t and, for a write transaction, dispatches its change
// set to every registered watcher before returning.
func (inst *Instance) Commit(t *txn.Txn) error {
	cs := t.ChangeSet()
	if err := t.Commit(); err != nil {
		return translateTxnErr(err)
	}
	inst.watchers.Dispatch(cs)
	return nil
}

// Delete removes a record from collectionID and, unlike Collection.Delete
// on its own, also cleans up every incoming link edge from other
// collections that targets it — the cross-collection half of cascade
// deletion that Collection.Delete defers to this layer.
func (inst *Instance) Delete(t *txn.Txn, collectionID uint16, id int64) (bool, error) {
	coll, ok := inst.collections[collectionID]
	if !ok {
		return false, newErr(IllegalArg, "unknown collection id %d", collectionID)
	}
	if err := inst.deleteCrossLinks(t, collectionID, id); err != nil {
		return false, err
	}
	ok, err := coll.Delete(t, id)
	if err != nil {
		return false, translateCollectionErr(err)
	}
	return ok, nil
}

// deleteCrossLinks removes id's incoming edges on every link that targets
// this collection, including a link declared on this same collection:
// Collection.Delete only removes the edges where id is the source.
func (inst *Instance) deleteCrossLinks(t *txn.Txn, collectionID uint16, id int64) error {
	for _, l := range inst.incomingLinks[collectionID] {
		if err := l.DeleteAllForID(t, id, false); err != nil {
			return err
		}
	}
	return nil
}

// NewQueryBuilder starts a query against coll, wiring the cross-
// collection link resolver so Link filters and LinkTarget where-clauses
// can read the record on the other side of an edge.
func (inst *Instance) NewQueryBuilder(coll *collection.Collection) *query.QueryBuilder {
	return query.NewQueryBuilder(coll, inst.resolveLink)
}

// BuildQuery finalizes qb, mapping its build-time IllegalArg sentinel onto
// the typed error kind callers branch on with IsKind.
func (inst *Instance) BuildQuery(qb *query.QueryBuilder) (*query.Query, error) {
	q, err := qb.Build()
	if err != nil {
		return nil, translateQueryErr(err)
	}
	return q, nil
}

// Find runs q and maps a Link filter's VersionError (evaluated without a
// transaction reaching the filter, which should never happen through this
// entry point, but can via a caller-held Query reused incorrectly) onto
// the typed VersionError kind.
func (inst *Instance) Find(t *txn.Txn, q *query.Query) ([]query.Result, error) {
	results, err := q.Find(t)
	if err != nil {
		return nil, translateQueryErr(err)
	}
	return results, nil
}

func (inst *Instance) resolveLink(l *collection.Link, otherID int64) (*object.Record, bool, error) {
	targetDef, ok := inst.arena.Get(l.Def().TargetCollection)
	if !ok {
		return nil, false, newErr(IllegalArg, "link targets unknown collection id %d", l.Def().TargetCollection)
	}
	target := inst.collections[targetDef.ID]
	t, err := inst.Begin(context.Background(), false)
	if err != nil {
		return nil, false, err
	}
	defer t.Abort()
	raw, found, err := target.Get(t, otherID)
	if err != nil || !found {
		return nil, false, err
	}
	return object.NewRecord(append([]byte(nil), raw...)), true, nil
}

// getRecordForWatch backs the watch registry's query re-check: it needs a
// record by (collection, id) without holding the original write
// transaction open for the length of dispatch.
func (inst *Instance) getRecordForWatch(collectionID uint16, id int64) (*object.Record, bool, error) {
	coll, ok := inst.collections[collectionID]
	if !ok {
		return nil, false, nil
	}
	t, err := inst.Begin(context.Background(), false)
	if err != nil {
		return nil, false, err
	}
	defer t.Abort()
	raw, found, err := coll.Get(t, id)
	if err != nil || !found {
		return nil, false, err
	}
	return object.NewRecord(append([]byte(nil), raw...)), true, nil
}

// WatchCollection fires callback once per committed write transaction
// that touched any record in collectionID.
func (inst *Instance) WatchCollection(collectionID uint16, callback func()) *watch.Handle {
	return inst.watchers.WatchCollection(collectionID, callback)
}

// WatchObject fires callback once per committed write transaction that
// touched objectID within collectionID.
func (inst *Instance) WatchObject(collectionID uint16, objectID int64, callback func()) *watch.Handle {
	return inst.watchers.WatchObject(collectionID, objectID, callback)
}

// WatchQuery fires callback once per committed write transaction where at
// least one changed id in collectionID satisfies q.
func (inst *Instance) WatchQuery(collectionID uint16, q *query.Query, callback func()) *watch.Handle {
	return inst.watchers.WatchQuery(collectionID, q, callback)
}

// Close waits for any in-flight watcher callbacks, closes the backing
// environment, and releases the advisory file lock.
func (inst *Instance) Close() error {
	_ = inst.watchers.Wait()
	inst.db.Close()
	return inst.lock.Unlock()
}

func translateOpenErr(err error) error {
	if mdbx.IsMapFull(err) {
		return newErr(DBFull, "open: %v", err)
	}
	return newErr(DBCorrupted, "open: %v", err)
}

func translateTxnErr(err error) error {
	switch {
	case err == nil:
		return nil
	case mdbx.IsMapFull(err):
		return newErr(DBFull, "%v", err)
	case mdbx.IsTxnFull(err):
		return newErr(WriteTxnFull, "%v", err)
	default:
		return newErr(DBCorrupted, "%v", err)
	}
}

func translateCollectionErr(err error) error {
	switch {
	case collection.IsInvalidObject(err):
		return newErr(InvalidObject, "%v", err)
	case collection.IsUniqueViolation(err):
		return newErr(UniqueViolation, "%v", err)
	case collection.IsInvalidJSON(err):
		return newErr(InvalidJSON, "%v", err)
	case collection.IsAutoIncrementOverflow(err):
		return newErr(AutoIncrementOverflow, "%v", err)
	case txn.IsNotWritable(err):
		return newErr(IllegalArg, "%v", err)
	default:
		return err
	}
}

// translateQueryErr maps the query package's sentinels — a build-time
// IllegalArg mistake or a Link filter's VersionError — onto the typed
// error kinds callers branch on.
func translateQueryErr(err error) error {
	switch {
	case err == nil:
		return nil
	case query.IsIllegalArg(err):
		return newErr(IllegalArg, "%v", err)
	case errors.Is(err, query.ErrVersion):
		return newErr(VersionError, "%v", err)
	default:
		return err
	}
}
