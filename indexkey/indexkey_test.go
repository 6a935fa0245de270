package indexkey

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeIntOrder(t *testing.T) {
	values := []int32{math.MinInt32, -100, -1, 0, 1, 100, math.MaxInt32}
	var prev []byte
	for _, v := range values {
		cur := EncodeInt(v)
		if prev != nil {
			require.True(t, bytes.Compare(prev, cur) < 0, "expected %d to sort before next value", v)
		}
		prev = cur
	}
}

func TestEncodeLongOrder(t *testing.T) {
	values := []int64{math.MinInt64, -1, 0, 1, math.MaxInt64}
	var prev []byte
	for _, v := range values {
		cur := EncodeLong(v)
		if prev != nil {
			require.True(t, bytes.Compare(prev, cur) < 0)
		}
		prev = cur
	}
}

func TestEncodeDoubleOrderWithNaNLast(t *testing.T) {
	values := []float64{math.Inf(-1), -1.5, math.Copysign(0, -1), 0.0, 1.5, math.Inf(1), math.NaN()}
	var prev []byte
	for _, v := range values {
		cur := EncodeDouble(v)
		if prev != nil {
			require.True(t, bytes.Compare(prev, cur) < 0, "value %v should sort after previous", v)
		}
		prev = cur
	}
}

func TestEncodeFloatNegativeZeroBeforePositiveZero(t *testing.T) {
	neg := EncodeFloat(float32(math.Copysign(0, -1)))
	pos := EncodeFloat(0)
	require.True(t, bytes.Compare(neg, pos) < 0)
}

func TestEncodeStringCaseInsensitiveFolds(t *testing.T) {
	a := EncodeString("Alice", false)
	b := EncodeString("ALICE", false)
	c := EncodeString("alice", false)
	require.Equal(t, a, b)
	require.Equal(t, a, c)
}

func TestEncodeStringCaseSensitiveDiffers(t *testing.T) {
	a := EncodeString("Alice", true)
	b := EncodeString("alice", true)
	require.NotEqual(t, a, b)
}

func TestEncodeStringSharedPrefixStillDiffersByHash(t *testing.T) {
	long := make([]byte, stringPrefixLen+10)
	for i := range long {
		long[i] = 'a'
	}
	s1 := string(long)
	s2 := s1[:len(s1)-1] + "b"
	k1 := EncodeString(s1, true)
	k2 := EncodeString(s2, true)
	require.NotEqual(t, k1, k2, "full strings differ, hash suffix must distinguish them despite identical prefixes")
}
