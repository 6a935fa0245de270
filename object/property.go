package object

import "math"

// Property is a (name, offset, type) triple describing one field of a
// collection's record layout. Offset is the byte offset into the static
// area, assigned in declaration order by the schema builder.
type Property struct {
	Name   string
	Offset int
	Type   DataType
}

// Null sentinel encodings for the five static scalar types. Dynamic types
// use offset=0 in their descriptor to mean null instead.
const (
	nullByte  byte    = 0xFF
	nullInt   int32   = math.MinInt32
	nullLong  int64   = math.MinInt64
)

var nullFloatBits = uint32(0x7FC00001) // a quiet NaN distinct from any computed NaN

// a quiet NaN whose bits differ from math.NaN()'s
var nullDoubleBits = uint64(0x7FF8000000000002)
