package objectdb

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/objectdb/collection"
	"github.com/erigontech/objectdb/kv/mdbx"
	"github.com/erigontech/objectdb/object"
	"github.com/erigontech/objectdb/query"
	"github.com/erigontech/objectdb/schema"
)

func findLink(c *collection.Collection, id uint16) *collection.Link {
	for _, l := range c.Links() {
		if l.Def().ID == id {
			return l
		}
	}
	return nil
}

func testSchema() schema.Schema {
	nameProp := object.Property{Name: "name", Offset: 0, Type: object.String}
	ageProp := object.Property{Name: "age", Offset: 8, Type: object.Int}
	person := schema.Collection{
		ID:         1,
		Name:       "Person",
		Properties: []object.Property{nameProp, ageProp},
		Links: []schema.Link{
			{ID: 1, Name: "pets", SourceCollection: 1, TargetCollection: 2},
		},
	}
	pet := schema.Collection{
		ID:   2,
		Name: "Pet",
	}
	return schema.Schema{Collections: []schema.Collection{person, pet}}
}

func buildPersonRecord(name string, age int32) []byte {
	nameProp := object.Property{Name: "name", Offset: 0, Type: object.String}
	ageProp := object.Property{Name: "age", Offset: 8, Type: object.Int}
	b := object.NewBuilder([]object.Property{nameProp, ageProp}, nil)
	b.WriteString(nameProp, name)
	b.WriteInt(ageProp, age)
	return b.Build()
}

func emptyRecord() []byte {
	return object.NewBuilder(nil, nil).Build()
}

// S6: deleting one side of a link removes exactly that edge's pair of
// entries; deleting the owning record removes every remaining edge.
func TestScenarioS6LinkCascadeThroughInstance(t *testing.T) {
	inst, err := Open(t.TempDir(), DefaultConfig(), testSchema())
	require.NoError(t, err)
	t.Cleanup(func() { inst.Close() })

	person, ok := inst.CollectionByName("Person")
	require.True(t, ok)
	pet, ok := inst.CollectionByName("Pet")
	require.True(t, ok)

	linkDef, ok := person.Def().Link("pets")
	require.True(t, ok)
	petsLink := findLink(person, linkDef.ID)
	require.NotNil(t, petsLink)

	tx, err := inst.Begin(context.Background(), true)
	require.NoError(t, err)

	id1 := int64(1)
	_, err = person.Put(tx, &id1, buildPersonRecord("Alice", 30))
	require.NoError(t, err)
	id10, id11 := int64(10), int64(11)
	_, err = pet.Put(tx, &id10, emptyRecord())
	require.NoError(t, err)
	_, err = pet.Put(tx, &id11, emptyRecord())
	require.NoError(t, err)

	require.NoError(t, petsLink.Create(tx, 1, 10))
	require.NoError(t, petsLink.Create(tx, 1, 11))

	ok1, err := inst.Delete(tx, 2, 10)
	require.NoError(t, err)
	require.True(t, ok1)

	var remaining []int64
	require.NoError(t, petsLink.Iter(tx, 1, false, func(otherID int64) (bool, error) {
		remaining = append(remaining, otherID)
		return true, nil
	}))
	require.Equal(t, []int64{11}, remaining)

	ok2, err := inst.Delete(tx, 1, 1)
	require.NoError(t, err)
	require.True(t, ok2)

	var afterPersonDelete []int64
	require.NoError(t, petsLink.Iter(tx, 11, true, func(otherID int64) (bool, error) {
		afterPersonDelete = append(afterPersonDelete, otherID)
		return true, nil
	}))
	require.Empty(t, afterPersonDelete)

	require.NoError(t, inst.Commit(tx))
}

// S4: a query watcher on age >= 18 does not fire for a put at age 17, and
// fires exactly once for a subsequent put at age 18.
func TestScenarioS4QueryWatcherViaInstance(t *testing.T) {
	inst, err := Open(t.TempDir(), DefaultConfig(), testSchema())
	require.NoError(t, err)
	t.Cleanup(func() { inst.Close() })

	person, ok := inst.CollectionByName("Person")
	require.True(t, ok)
	ageProp, _ := person.Def().Property("age")

	qb := inst.NewQueryBuilder(person)
	qb.SetFilter(query.ScalarBetween(ageProp, 18, 200))
	q, err := inst.BuildQuery(qb)
	require.NoError(t, err)

	var mu sync.Mutex
	fired := 0
	inst.WatchQuery(1, q, func() {
		mu.Lock()
		fired++
		mu.Unlock()
	})

	tx1, err := inst.Begin(context.Background(), true)
	require.NoError(t, err)
	id := int64(1)
	_, err = person.Put(tx1, &id, buildPersonRecord("Minor", 17))
	require.NoError(t, err)
	require.NoError(t, inst.Commit(tx1))

	waitForDispatch()
	mu.Lock()
	require.Equal(t, 0, fired)
	mu.Unlock()

	tx2, err := inst.Begin(context.Background(), true)
	require.NoError(t, err)
	_, err = person.Put(tx2, &id, buildPersonRecord("Adult", 18))
	require.NoError(t, err)
	require.NoError(t, inst.Commit(tx2))

	waitForDispatch()
	mu.Lock()
	require.Equal(t, 1, fired)
	mu.Unlock()

	tx3, err := inst.Begin(context.Background(), false)
	require.NoError(t, err)
	defer tx3.Abort()
	results, err := inst.Find(tx3, q)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, id, results[0].ID)
}

func waitForDispatch() {
	time.Sleep(20 * time.Millisecond)
}

// Backing-store exhaustion must surface as the distinct DBFull/WriteTxnFull
// kinds, not the generic DBCorrupted every other mdbx failure maps to.
func TestTranslateErrDistinguishesResourceExhaustion(t *testing.T) {
	require.True(t, IsKind(translateOpenErr(mdbx.ErrMapFull), DBFull))
	require.True(t, IsKind(translateTxnErr(mdbx.ErrMapFull), DBFull))
	require.True(t, IsKind(translateTxnErr(mdbx.ErrTxnFull), WriteTxnFull))
	require.True(t, IsKind(translateTxnErr(errors.New("disk read error")), DBCorrupted))
}
