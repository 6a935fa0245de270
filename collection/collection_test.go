package collection

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/objectdb/kv/mdbx"
	"github.com/erigontech/objectdb/object"
	"github.com/erigontech/objectdb/schema"
	"github.com/erigontech/objectdb/txn"
)

func testSchema() (schema.Collection, object.Property, object.Property) {
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
				Unique: false,
			},
		},
	}
	return def, nameProp, ageProp
}

// uniqueSchema declares its "name" index Unique; replace controls whether
// a conflicting put evicts the previous owner instead of failing.
func uniqueSchema(replace bool) (schema.Collection, object.Property, object.Property) {
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
				Unique:  true,
				Replace: replace,
			},
		},
	}
	return def, nameProp, ageProp
}

func openTestDB(t *testing.T) *mdbx.DB {
	t.Helper()
	db, err := mdbx.Open(t.TempDir(), 64<<20, true)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func buildPerson(name string, age int32, nameProp, ageProp object.Property) []byte {
	b := object.NewBuilder([]object.Property{nameProp, ageProp}, nil)
	b.WriteString(nameProp, name)
	b.WriteInt(ageProp, age)
	return b.Build()
}

func TestPutNewAssignsAndStores(t *testing.T) {
	db := openTestDB(t)
	def, nameProp, ageProp := testSchema()
	c := New(def, 0)

	tx, err := txn.Begin(context.Background(), db, true)
	require.NoError(t, err)

	obj := buildPerson("Alice", 30, nameProp, ageProp)
	id, err := c.Put(tx, nil, obj)
	require.NoError(t, err)
	require.Equal(t, int64(1), id)

	got, ok, err := c.Get(tx, id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, obj, got)
	require.NoError(t, tx.Commit())
}

func TestPutExistingOverwritesAndCleansOldIndex(t *testing.T) {
	db := openTestDB(t)
	def, nameProp, ageProp := testSchema()
	c := New(def, 0)

	tx, err := txn.Begin(context.Background(), db, true)
	require.NoError(t, err)

	id := int64(1)
	_, err = c.Put(tx, &id, buildPerson("Alice", 30, nameProp, ageProp))
	require.NoError(t, err)
	_, err = c.Put(tx, &id, buildPerson("Eve", 5, nameProp, ageProp))
	require.NoError(t, err)

	got, ok, err := c.Get(tx, id)
	require.NoError(t, err)
	require.True(t, ok)
	r := object.NewRecord(got)
	name, _ := r.ReadString(nameProp)
	require.Equal(t, "Eve", name)

	ix := c.indexes[0]
	for _, oldName := range []string{"Alice", "ALICE"} {
		b := object.NewBuilder([]object.Property{nameProp, ageProp}, nil)
		b.WriteString(nameProp, oldName)
		b.WriteInt(ageProp, 0)
		rec := object.NewRecord(b.Build())
		for _, key := range ix.keysFor(rec) {
			v, err := tx.Get("secondary", key)
			require.NoError(t, err)
			require.Nil(t, v, "stale index entry for %q should be gone", oldName)
		}
	}
	require.NoError(t, tx.Commit())
}

func TestPutCreatesIndexEntry(t *testing.T) {
	db := openTestDB(t)
	def, nameProp, ageProp := testSchema()
	c := New(def, 0)

	tx, err := txn.Begin(context.Background(), db, true)
	require.NoError(t, err)

	id, err := c.Put(tx, nil, buildPerson("Alice", 30, nameProp, ageProp))
	require.NoError(t, err)

	got, _, err := c.Get(tx, id)
	require.NoError(t, err)
	rec := object.NewRecord(got)
	ix := c.indexes[0]
	for _, key := range ix.keysFor(rec) {
		v, err := tx.Get("secondary", key)
		require.NoError(t, err)
		require.Equal(t, PrimaryKey(def.ID, id), v)
	}
	require.NoError(t, tx.Commit())
}

func TestDeleteRemovesPrimaryAndIndex(t *testing.T) {
	db := openTestDB(t)
	def, nameProp, ageProp := testSchema()
	c := New(def, 0)

	tx, err := txn.Begin(context.Background(), db, true)
	require.NoError(t, err)

	id, err := c.Put(tx, nil, buildPerson("Alice", 30, nameProp, ageProp))
	require.NoError(t, err)

	ok, err := c.Delete(tx, id)
	require.NoError(t, err)
	require.True(t, ok)

	_, exists, err := c.Get(tx, id)
	require.NoError(t, err)
	require.False(t, exists)

	ok, err = c.Delete(tx, id)
	require.NoError(t, err)
	require.False(t, ok, "deleting again should report nothing removed")
	require.NoError(t, tx.Commit())
}

func TestUniqueIndexRejectsConflictWithoutReplace(t *testing.T) {
	db := openTestDB(t)
	def, nameProp, ageProp := uniqueSchema(false)
	c := New(def, 0)

	tx, err := txn.Begin(context.Background(), db, true)
	require.NoError(t, err)

	id1 := int64(1)
	_, err = c.Put(tx, &id1, buildPerson("Alice", 30, nameProp, ageProp))
	require.NoError(t, err)

	id2 := int64(2)
	_, err = c.Put(tx, &id2, buildPerson("Alice", 40, nameProp, ageProp))
	require.True(t, IsUniqueViolation(err))

	_, exists, err := c.Get(tx, id2)
	require.NoError(t, err)
	require.False(t, exists, "the rejected put must not have landed a record")
	require.NoError(t, tx.Commit())
}

func TestUniqueReplaceEvictsPreviousOwner(t *testing.T) {
	db := openTestDB(t)
	def, nameProp, ageProp := uniqueSchema(true)
	c := New(def, 0)

	tx, err := txn.Begin(context.Background(), db, true)
	require.NoError(t, err)

	id1 := int64(1)
	_, err = c.Put(tx, &id1, buildPerson("Alice", 30, nameProp, ageProp))
	require.NoError(t, err)

	id2 := int64(2)
	_, err = c.Put(tx, &id2, buildPerson("Alice", 40, nameProp, ageProp))
	require.NoError(t, err)

	_, exists, err := c.Get(tx, id1)
	require.NoError(t, err)
	require.False(t, exists, "the previous owner of the conflicting key should be gone")

	got, exists, err := c.Get(tx, id2)
	require.NoError(t, err)
	require.True(t, exists)
	r := object.NewRecord(got)
	name, _ := r.ReadString(nameProp)
	require.Equal(t, "Alice", name)

	ix := c.indexes[0]
	key := ix.keysFor(r)[0]
	v, err := tx.Get("secondary", key)
	require.NoError(t, err)
	require.Equal(t, PrimaryKey(def.ID, id2), v, "the index entry must now point at the new owner")
	require.NoError(t, tx.Commit())
}

func TestAutoIncrementOverflow(t *testing.T) {
	def, _, _ := testSchema()
	c := New(def, (1<<63)-1)
	_, err := c.AutoIncrement()
	require.True(t, IsAutoIncrementOverflow(err))
}

func TestClearRemovesEverything(t *testing.T) {
	db := openTestDB(t)
	def, nameProp, ageProp := testSchema()
	c := New(def, 0)

	tx, err := txn.Begin(context.Background(), db, true)
	require.NoError(t, err)
	for i, name := range []string{"Alice", "Bob", "Carol"} {
		id := int64(i + 1)
		_, err := c.Put(tx, &id, buildPerson(name, int32(20+i), nameProp, ageProp))
		require.NoError(t, err)
	}
	n, err := c.Clear(tx)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	for i := 1; i <= 3; i++ {
		_, exists, err := c.Get(tx, int64(i))
		require.NoError(t, err)
		require.False(t, exists)
	}
	require.NoError(t, tx.Commit())
}
