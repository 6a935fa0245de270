package ffi

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegisterAndLookupRoundTrip(t *testing.T) {
	code := Register("boom")
	msg, ok := Lookup(code)
	require.True(t, ok)
	require.Equal(t, "boom", msg)
}

func TestLookupMissingCodeIsNotFound(t *testing.T) {
	_, ok := Lookup(-1)
	require.False(t, ok)
}

func TestCodeNeverZero(t *testing.T) {
	for i := 0; i < 50; i++ {
		code := Register(fmt.Sprintf("err-%d", i))
		require.NotZero(t, code)
	}
}

func TestTableEvictsOldestPastCap(t *testing.T) {
	var codes []int64
	for i := 0; i < maxErrors+5; i++ {
		codes = append(codes, Register(fmt.Sprintf("err-%d", i)))
	}
	_, ok := Lookup(codes[0])
	require.False(t, ok, "the oldest entry should have been evicted")
	_, ok = Lookup(codes[len(codes)-1])
	require.True(t, ok, "the newest entry should still be present")
}
