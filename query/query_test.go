package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/objectdb/collection"
	"github.com/erigontech/objectdb/indexkey"
	"github.com/erigontech/objectdb/kv/mdbx"
	"github.com/erigontech/objectdb/object"
	"github.com/erigontech/objectdb/schema"
	"github.com/erigontech/objectdb/txn"
)

func personSchema() (schema.Collection, object.Property, object.Property) {
	nameProp := object.Property{Name: "name", Offset: 0, Type: object.String}
	ageProp := object.Property{Name: "age", Offset: 8, Type: object.Int}
	def := schema.Collection{
		ID:         1,
		Name:       "Person",
		Properties: []object.Property{nameProp, ageProp},
		Indexes: []schema.Index{
			{
				ID:   1,
				Name: "name",
				Properties: []schema.IndexProperty{
					{Property: nameProp, Type: schema.Value, CaseSensitive: false},
				},
			},
		},
	}
	return def, nameProp, ageProp
}

func buildPerson(name string, age int32, nameProp, ageProp object.Property) []byte {
	b := object.NewBuilder([]object.Property{nameProp, ageProp}, nil)
	b.WriteString(nameProp, name)
	b.WriteInt(ageProp, age)
	return b.Build()
}

// S1: index range on name (case-insensitive) from "alice" to "alice"
// should return ids {1,3} regardless of the stored case.
func TestScenarioS1IndexRangeCaseInsensitive(t *testing.T) {
	db, err := mdbx.Open(t.TempDir(), 64<<20, true)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	def, nameProp, ageProp := personSchema()
	c := collection.New(def, 0)

	tx, err := txn.Begin(context.Background(), db, true)
	require.NoError(t, err)

	for id, p := range map[int64]struct {
		name string
		age  int32
	}{
		1: {"Alice", 30},
		2: {"bob", 25},
		3: {"ALICE", 40},
	} {
		id := id
		_, err := c.Put(tx, &id, buildPerson(p.name, p.age, nameProp, ageProp))
		require.NoError(t, err)
	}

	key := indexkey.EncodeString("alice", false)

	qb := NewQueryBuilder(c, nil)
	qb.AddIndexRange("name", key, key, true, false)
	q, err := qb.Build()
	require.NoError(t, err)

	results, err := q.Find(tx)
	require.NoError(t, err)
	var ids []int64
	for _, r := range results {
		ids = append(ids, r.ID)
	}
	require.ElementsMatch(t, []int64{1, 3}, ids)
	require.NoError(t, tx.Commit())
}

// S2: filter IntBetween(age, 0, 30) sorted by age desc over {1:30,2:25}
// (3 is excluded by age 40) should yield [1, 2].
func TestScenarioS2FilterAndSortDesc(t *testing.T) {
	db, err := mdbx.Open(t.TempDir(), 64<<20, true)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	def, nameProp, ageProp := personSchema()
	c := collection.New(def, 0)

	tx, err := txn.Begin(context.Background(), db, true)
	require.NoError(t, err)

	data := []struct {
		id   int64
		name string
		age  int32
	}{
		{1, "Alice", 30},
		{2, "bob", 25},
		{3, "ALICE", 40},
	}
	for _, d := range data {
		id := d.id
		_, err := c.Put(tx, &id, buildPerson(d.name, d.age, nameProp, ageProp))
		require.NoError(t, err)
	}

	qb := NewQueryBuilder(c, nil)
	qb.SetFilter(ScalarBetween(ageProp, 0, 30))
	qb.AddSort("age", true)
	q, err := qb.Build()
	require.NoError(t, err)

	results, err := q.Find(tx)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, int64(1), results[0].ID)
	require.Equal(t, int64(2), results[1].ID)
	require.NoError(t, tx.Commit())
}
