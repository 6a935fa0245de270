// Package watch implements watcher registration and post-commit dispatch.
// Registrations are kept in an ordered google/btree index keyed by
// (collection, handle) so registration, lookup, and Stop are all O(log n)
// in the number of watchers, and dispatch after a commit walks exactly
// the change set once.
package watch

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/btree"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/erigontech/objectdb/object"
	"github.com/erigontech/objectdb/query"
	"github.com/erigontech/objectdb/txn"
)

// Kind distinguishes what a registration watches.
type Kind uint8

const (
	KindCollection Kind = iota + 1
	KindObject
	KindQuery
)

// Handle is the token returned on registration; Stop detaches it before
// the next dispatch cycle.
type Handle struct {
	id           uint64
	collectionID uint16
	kind         Kind
	objectID     int64 // valid for KindObject
	q            *query.Query
	callback     func()
	registry     *Registry
}

// Stop detaches the handle. Effective before the next dispatch cycle;
// a dispatch already in flight for this handle still completes.
func (h *Handle) Stop() {
	h.registry.remove(h)
}

type entry struct {
	collectionID uint16
	id           uint64
	handle       *Handle
}

// Less implements btree.Item: ordered first by collection, then by
// registration id, giving the registry its O(log n) operations.
func (e *entry) Less(than btree.Item) bool {
	o := than.(*entry)
	if e.collectionID != o.collectionID {
		return e.collectionID < o.collectionID
	}
	return e.id < o.id
}

// Registry holds every live watcher for one instance and dispatches
// post-commit change sets to them through a supervised goroutine group
// that runs one callback at a time, so callback ordering within one
// watcher is preserved and a panicking callback never takes the process
// down.
type Registry struct {
	mu   sync.Mutex
	tree *btree.BTree
	next atomic.Uint64

	log *zap.Logger
	grp *errgroup.Group
	ctx context.Context

	// getRecord resolves a record by (collection, id) for query-watcher
	// re-evaluation; supplied by the instance layer.
	getRecord func(collectionID uint16, id int64) (*object.Record, bool, error)
}

// New builds a registry. ctx bounds the lifetime of the dispatch
// goroutine supervisor; getRecord is used to re-check query watchers.
func New(ctx context.Context, log *zap.Logger, getRecord func(collectionID uint16, id int64) (*object.Record, bool, error)) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(1)
	return &Registry{tree: btree.New(32), log: log, grp: grp, ctx: gctx, getRecord: getRecord}
}

func (r *Registry) register(collectionID uint16, kind Kind, objectID int64, q *query.Query, callback func()) *Handle {
	id := r.next.Add(1)
	h := &Handle{id: id, collectionID: collectionID, kind: kind, objectID: objectID, q: q, callback: callback, registry: r}
	r.mu.Lock()
	r.tree.ReplaceOrInsert(&entry{collectionID: collectionID, id: id, handle: h})
	r.mu.Unlock()
	return h
}

// WatchCollection fires callback once per commit that touches any id in
// collectionID.
func (r *Registry) WatchCollection(collectionID uint16, callback func()) *Handle {
	return r.register(collectionID, KindCollection, 0, nil, callback)
}

// WatchObject fires callback once per commit that touches objectID within
// collectionID.
func (r *Registry) WatchObject(collectionID uint16, objectID int64, callback func()) *Handle {
	return r.register(collectionID, KindObject, objectID, nil, callback)
}

// WatchQuery fires callback once per commit where at least one changed id
// in collectionID satisfies q's id-range and filter.
func (r *Registry) WatchQuery(collectionID uint16, q *query.Query, callback func()) *Handle {
	return r.register(collectionID, KindQuery, 0, q, callback)
}

func (r *Registry) remove(h *Handle) {
	r.mu.Lock()
	r.tree.Delete(&entry{collectionID: h.collectionID, id: h.id})
	r.mu.Unlock()
}

// watchersFor returns every handle registered against collectionID, in
// registration order, under the registry lock.
func (r *Registry) watchersFor(collectionID uint16) []*Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Handle
	pivot := &entry{collectionID: collectionID}
	r.tree.AscendGreaterOrEqual(pivot, func(i btree.Item) bool {
		e := i.(*entry)
		if e.collectionID != collectionID {
			return false
		}
		out = append(out, e.handle)
		return true
	})
	return out
}

// Dispatch is called by the instance after a successful commit with the
// transaction's change set. It walks the change set on the calling
// goroutine and hands each firing callback to fire; commits reach it one
// at a time because write transactions are serialized.
func (r *Registry) Dispatch(cs *txn.ChangeSet) {
	if cs == nil || cs.Empty() {
		return
	}
	for _, collectionID := range cs.Collections() {
		handles := r.watchersFor(collectionID)
		ids := cs.IDs(collectionID)
		for _, h := range handles {
			h := h
			switch h.kind {
			case KindCollection:
				r.fire(h)
			case KindObject:
				for _, id := range ids {
					if id == h.objectID {
						r.fire(h)
						break
					}
				}
			case KindQuery:
				if r.queryFires(h, collectionID, ids) {
					r.fire(h)
				}
			}
		}
	}
}

// queryFires re-checks the query's id-range and filter against each
// changed id's current record; ids with no current record are skipped.
// When evaluation reaches a Link sub-filter the watcher fires, since a
// change to a linked collection's record could flip the result without
// touching this collection's own change set — cheap to over-fire, wrong
// to under-fire.
func (r *Registry) queryFires(h *Handle, collectionID uint16, ids []int64) bool {
	for _, id := range ids {
		rec, ok, err := r.getRecord(collectionID, id)
		if err != nil || !ok {
			continue
		}
		match, err := h.q.MatchesForWatch(rec, id)
		if err != nil {
			// A Link sub-filter without a transaction context reports
			// VersionError; treat that as "cannot rule it out", so the
			// watcher still fires rather than silently missing a change.
			return true
		}
		if match {
			return true
		}
	}
	return false
}

// fire invokes the callback on the registry's supervised goroutine group
// so a panicking callback cannot corrupt dispatch for the next watcher in
// line. The group runs one callback at a time, so fire waits until the
// previous callback has returned.
func (r *Registry) fire(h *Handle) {
	r.grp.Go(func() error {
		defer func() {
			if rec := recover(); rec != nil {
				r.log.Error("watcher callback panicked", zap.Any("panic", rec))
			}
		}()
		h.callback()
		return nil
	})
}

// Wait blocks until every dispatched callback has returned; used by tests
// and by Close to avoid leaking a callback mid-flight.
func (r *Registry) Wait() error {
	return r.grp.Wait()
}
