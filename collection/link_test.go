package collection

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/objectdb/kv/mdbx"
	"github.com/erigontech/objectdb/schema"
	"github.com/erigontech/objectdb/txn"
)

func TestLinkCreateDeleteAndCascade(t *testing.T) {
	db, err := mdbx.Open(t.TempDir(), 64<<20, true)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	linkDef := schema.Link{ID: 1, Name: "pets", SourceCollection: 1, TargetCollection: 2}
	l := NewLink(linkDef)

	tx, err := txn.Begin(context.Background(), db, true)
	require.NoError(t, err)

	require.NoError(t, l.Create(tx, 1, 10))
	require.NoError(t, l.Create(tx, 1, 11))

	var targets []int64
	require.NoError(t, l.Iter(tx, 1, false, func(id int64) (bool, error) {
		targets = append(targets, id)
		return true, nil
	}))
	require.ElementsMatch(t, []int64{10, 11}, targets)

	// Deleting pet 10: its backward entry is removed via DeleteAllForID on
	// the target side, leaving only 11 linked to person 1.
	require.NoError(t, l.DeleteAllForID(tx, 10, false))
	targets = nil
	require.NoError(t, l.Iter(tx, 1, false, func(id int64) (bool, error) {
		targets = append(targets, id)
		return true, nil
	}))
	require.Equal(t, []int64{11}, targets)

	// Deleting person 1 as source removes the remaining forward/backward pair.
	require.NoError(t, l.DeleteAllForID(tx, 1, true))
	targets = nil
	require.NoError(t, l.Iter(tx, 1, false, func(id int64) (bool, error) {
		targets = append(targets, id)
		return true, nil
	}))
	require.Empty(t, targets)

	var sourcesOfEleven []int64
	require.NoError(t, l.Iter(tx, 11, true, func(id int64) (bool, error) {
		sourcesOfEleven = append(sourcesOfEleven, id)
		return true, nil
	}))
	require.Empty(t, sourcesOfEleven, "backward entry for 11 must be gone too")

	require.NoError(t, tx.Commit())
}
