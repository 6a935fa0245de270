// Package object implements the self-describing record format: a static
// area of fixed-width scalars and dynamic-value descriptors, followed by a
// dynamic heap holding string bytes and list payloads.
package object

// DataType is the closed set of property types a record may declare.
type DataType uint8

const (
	Byte DataType = iota + 1
	Int
	Float
	Long
	Double
	String
	ByteList
	IntList
	FloatList
	LongList
	DoubleList
	StringList
)

func (t DataType) String() string {
	switch t {
	case Byte:
		return "Byte"
	case Int:
		return "Int"
	case Float:
		return "Float"
	case Long:
		return "Long"
	case Double:
		return "Double"
	case String:
		return "String"
	case ByteList:
		return "ByteList"
	case IntList:
		return "IntList"
	case FloatList:
		return "FloatList"
	case LongList:
		return "LongList"
	case DoubleList:
		return "DoubleList"
	case StringList:
		return "StringList"
	default:
		return "Unknown"
	}
}

// IsStatic reports whether values of this type are stored entirely inline
// in the static area (the five fixed-width scalars).
func (t DataType) IsStatic() bool {
	switch t {
	case Byte, Int, Float, Long, Double:
		return true
	default:
		return false
	}
}

// IsDynamic is the complement of IsStatic: String and every list type.
func (t DataType) IsDynamic() bool { return !t.IsStatic() }

// IsScalar reports whether the type is one of the six non-list primitives
// (Byte/Int/Float/Long/Double/String are all scalar; only *List types are
// not).
func (t DataType) IsScalar() bool {
	switch t {
	case Byte, Int, Float, Long, Double, String:
		return true
	default:
		return false
	}
}

// IsList reports the complement of IsScalar.
func (t DataType) IsList() bool { return !t.IsScalar() }

// StaticSize returns the number of bytes this type occupies in the static
// area: the scalar's own width for static types, or 8 (an offset:u32 +
// length:u32 descriptor) for dynamic types.
func (t DataType) StaticSize() int {
	switch t {
	case Byte:
		return 1
	case Int, Float:
		return 4
	case Long, Double:
		return 8
	default:
		return 8 // dynamic descriptor: offset:u32, length:u32
	}
}

// ElementType returns the scalar type backing a list type's elements, and
// false for any non-list type.
func (t DataType) ElementType() (DataType, bool) {
	switch t {
	case ByteList:
		return Byte, true
	case IntList:
		return Int, true
	case FloatList:
		return Float, true
	case LongList:
		return Long, true
	case DoubleList:
		return Double, true
	case StringList:
		return String, true
	default:
		return 0, false
	}
}
