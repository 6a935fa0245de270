package watch

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/objectdb/collection"
	"github.com/erigontech/objectdb/object"
	"github.com/erigontech/objectdb/query"
	"github.com/erigontech/objectdb/schema"
	"github.com/erigontech/objectdb/txn"
)

func noRecord(uint16, int64) (*object.Record, bool, error) {
	return nil, false, nil
}

// A collection watcher and an object watcher both fire once for a
// commit touching their target; an object watcher for an untouched id
// does not fire.
func TestCollectionAndObjectWatchersFireOnce(t *testing.T) {
	r := New(context.Background(), nil, noRecord)

	var mu sync.Mutex
	var collectionFired, objectFired, otherFired int

	r.WatchCollection(1, func() {
		mu.Lock()
		collectionFired++
		mu.Unlock()
	})
	r.WatchObject(1, 42, func() {
		mu.Lock()
		objectFired++
		mu.Unlock()
	})
	r.WatchObject(1, 99, func() {
		mu.Lock()
		otherFired++
		mu.Unlock()
	})

	cs := txn.NewChangeSet()
	cs.Add(1, 42)
	r.Dispatch(cs)
	require.NoError(t, r.Wait())

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, collectionFired)
	require.Equal(t, 1, objectFired)
	require.Equal(t, 0, otherFired)
}

func TestStopPreventsFutureDispatch(t *testing.T) {
	r := New(context.Background(), nil, noRecord)
	fired := 0
	h := r.WatchCollection(1, func() { fired++ })

	cs := txn.NewChangeSet()
	cs.Add(1, 1)
	r.Dispatch(cs)
	require.NoError(t, r.Wait())
	require.Equal(t, 1, fired)

	h.Stop()
	r.Dispatch(cs)
	require.NoError(t, r.Wait())
	require.Equal(t, 1, fired, "a stopped watcher must not fire again")
}

func TestEmptyChangeSetDoesNotDispatch(t *testing.T) {
	r := New(context.Background(), nil, noRecord)
	fired := false
	r.WatchCollection(1, func() { fired = true })
	r.Dispatch(txn.NewChangeSet())
	require.NoError(t, r.Wait())
	require.False(t, fired)
}

func TestQueryWatcherSkipsOutOfRangeID(t *testing.T) {
	nameProp := object.Property{Name: "name", Offset: 0, Type: object.String}
	def := schema.Collection{ID: 1, Name: "Thing", Properties: []object.Property{nameProp}}
	c := collection.New(def, 0)

	buf := func(s string) []byte {
		b := object.NewBuilder([]object.Property{nameProp}, nil)
		b.WriteString(nameProp, s)
		return b.Build()
	}

	getRecord := func(collectionID uint16, id int64) (*object.Record, bool, error) {
		switch id {
		case 10:
			return object.NewRecord(buf("in")), true, nil
		case 99:
			return object.NewRecord(buf("out")), true, nil
		default:
			return nil, false, nil
		}
	}
	r := New(context.Background(), nil, getRecord)

	qb := query.NewQueryBuilder(c, nil)
	qb.AddIDRange(0, 50, true)
	q, err := qb.Build()
	require.NoError(t, err)

	fired := 0
	r.WatchQuery(1, q, func() { fired++ })

	cs := txn.NewChangeSet()
	cs.Add(1, 99) // outside the watched id range
	r.Dispatch(cs)
	require.NoError(t, r.Wait())
	require.Equal(t, 0, fired)

	cs2 := txn.NewChangeSet()
	cs2.Add(1, 10) // inside the range
	r.Dispatch(cs2)
	require.NoError(t, r.Wait())
	require.Equal(t, 1, fired)
}
