package query

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/objectdb/object"
)

var ageProp = object.Property{Name: "age", Offset: 0, Type: object.Double}

func recordWithDouble(v float64) *object.Record {
	b := object.NewBuilder([]object.Property{ageProp}, nil)
	b.WriteDouble(ageProp, v)
	return object.NewRecord(b.Build())
}

var longProp = object.Property{Name: "big", Offset: 0, Type: object.Long}

func recordWithLong(v int64) *object.Record {
	b := object.NewBuilder([]object.Property{longProp}, nil)
	b.WriteLong(longProp, v)
	return object.NewRecord(b.Build())
}

// base+1 is the classic float64 precision-loss value: widened to float64
// it rounds down to exactly base, indistinguishable from it. A Long
// ScalarBetween filter must still tell the two apart.
func TestScalarBetweenLongPrecisionPastFloat53Bits(t *testing.T) {
	const base = int64(1) << 53
	require.Equal(t, float64(base), float64(base+1), "test fixture assumption: base+1 must be float64-indistinguishable from base")

	f := ScalarBetween(longProp, float64(base), float64(base))

	ok, err := f.Evaluate(recordWithLong(base), 1, nil, nil)
	require.NoError(t, err)
	require.True(t, ok, "the exact bound value must match")

	ok, err = f.Evaluate(recordWithLong(base+1), 1, nil, nil)
	require.NoError(t, err)
	require.False(t, ok, "a distinct Long value must not be folded into the bound by float widening")
}

func TestScalarBetweenNaNSemantics(t *testing.T) {
	f := ScalarBetween(ageProp, math.NaN(), 10)
	ok, err := f.Evaluate(recordWithDouble(5), 1, nil, nil)
	require.NoError(t, err)
	require.True(t, ok, "[NaN, 10] should match values <= 10")

	ok, err = f.Evaluate(recordWithDouble(math.NaN()), 1, nil, nil)
	require.NoError(t, err)
	require.True(t, ok, "[NaN, 10] should also match NaN")

	f2 := ScalarBetween(ageProp, 0, math.NaN())
	ok, err = f2.Evaluate(recordWithDouble(5), 1, nil, nil)
	require.NoError(t, err)
	require.False(t, ok, "[0, NaN] should match nothing")

	f3 := ScalarBetween(ageProp, math.NaN(), math.NaN())
	ok, err = f3.Evaluate(recordWithDouble(math.NaN()), 1, nil, nil)
	require.NoError(t, err)
	require.True(t, ok, "[NaN, NaN] should match only NaN")
}

func TestStringBetweenAsymmetricBounds(t *testing.T) {
	nameProp := object.Property{Name: "name", Offset: 0, Type: object.String}
	mk := func(s string) *object.Record {
		b := object.NewBuilder([]object.Property{nameProp}, nil)
		b.WriteString(nameProp, s)
		return object.NewRecord(b.Build())
	}

	lo := "b"
	fLoOnly := StringBetween(nameProp, &lo, nil, true)
	ok, err := fLoOnly.Evaluate(mk("zzzz"), 1, nil, nil)
	require.NoError(t, err)
	require.False(t, ok, "a missing upper bound matches nothing")

	hi := "m"
	fHiOnly := StringBetween(nameProp, nil, &hi, true)
	ok, err = fHiOnly.Evaluate(mk("aaa"), 1, nil, nil)
	require.NoError(t, err)
	require.True(t, ok, "a missing lower bound means from the beginning")

	ok, err = fHiOnly.Evaluate(mk("zzz"), 1, nil, nil)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAndOrNotDoubleNegationAndTruthValues(t *testing.T) {
	tr := Static(true)
	fa := Static(false)

	notNot, _ := Not(Not(tr)).Evaluate(nil, 0, nil, nil)
	plain, _ := tr.Evaluate(nil, 0, nil, nil)
	require.Equal(t, plain, notNot)

	andVal, _ := And(tr, fa).Evaluate(nil, 0, nil, nil)
	require.False(t, andVal)

	orVal, _ := Or(tr, fa).Evaluate(nil, 0, nil, nil)
	require.True(t, orVal)
}

func TestStringStartsWithCaseInsensitive(t *testing.T) {
	nameProp := object.Property{Name: "name", Offset: 0, Type: object.String}
	b := object.NewBuilder([]object.Property{nameProp}, nil)
	b.WriteString(nameProp, "Alice")
	rec := object.NewRecord(b.Build())

	f := StringStartsWith(nameProp, "al", false)
	ok, err := f.Evaluate(rec, 1, nil, nil)
	require.NoError(t, err)
	require.True(t, ok)

	fCS := StringStartsWith(nameProp, "al", true)
	ok, err = fCS.Evaluate(rec, 1, nil, nil)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLinkFilterWithoutTxnIsVersionError(t *testing.T) {
	f := LinkFilter(nil, Static(true))
	_, err := f.eval(nil, evalCtx{})
	require.ErrorIs(t, err, ErrVersion)
}
