package object

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// headerSize is the width of the leading static_size field.
const headerSize = 2

// Record is a decoded view over an encoded object: a thin wrapper that
// knows how to read typed values at property offsets without copying the
// underlying bytes. Record does not own its buffer — callers must not
// retain a Record past the lifetime of the bytes it was built from (in
// practice, the owning read transaction).
type Record struct {
	buf        []byte
	staticSize int
}

// Verify checks structural soundness of an encoded record against the
// property list it is supposed to satisfy: the declared static_size must
// match the schema's static area width, and every dynamic descriptor must
// be null or point entirely inside the record.
func Verify(props []Property, buf []byte) bool {
	if len(buf) < headerSize {
		return false
	}
	staticSize := int(binary.LittleEndian.Uint16(buf))
	if headerSize+staticSize > len(buf) {
		return false
	}
	want := staticAreaSize(props)
	if staticSize != want {
		return false
	}
	for _, p := range props {
		if p.Type.IsStatic() {
			continue
		}
		off := headerSize + p.Offset
		if off+8 > headerSize+staticSize {
			return false
		}
		descOffset := binary.LittleEndian.Uint32(buf[off:])
		if descOffset == 0 {
			continue // null
		}
		length := binary.LittleEndian.Uint32(buf[off+4:])
		end := uint64(descOffset) + uint64(length)
		if descOffset < uint32(headerSize+staticSize) || end > uint64(len(buf)) {
			return false
		}
	}
	return true
}

// staticAreaSize computes the static area width a property list implies:
// the highest (offset + its static width) across all properties.
func staticAreaSize(props []Property) int {
	size := 0
	for _, p := range props {
		end := p.Offset + p.Type.StaticSize()
		if end > size {
			size = end
		}
	}
	return size
}

// NewRecord wraps buf for reading without re-verifying it; callers that
// read untrusted bytes should call Verify first.
func NewRecord(buf []byte) *Record {
	staticSize := 0
	if len(buf) >= headerSize {
		staticSize = int(binary.LittleEndian.Uint16(buf))
	}
	return &Record{buf: buf, staticSize: staticSize}
}

func (r *Record) staticByte(offset int) []byte {
	start := headerSize + offset
	return r.buf[start:]
}

// IsNull reports whether the property's value is null.
func (r *Record) IsNull(p Property) bool {
	switch p.Type {
	case Byte:
		return r.staticByte(p.Offset)[0] == nullByte
	case Int:
		return int32(binary.LittleEndian.Uint32(r.staticByte(p.Offset))) == nullInt
	case Long:
		return int64(binary.LittleEndian.Uint64(r.staticByte(p.Offset))) == nullLong
	case Float:
		return binary.LittleEndian.Uint32(r.staticByte(p.Offset)) == nullFloatBits
	case Double:
		return binary.LittleEndian.Uint64(r.staticByte(p.Offset)) == nullDoubleBits
	default:
		return binary.LittleEndian.Uint32(r.staticByte(p.Offset)) == 0
	}
}

func (r *Record) ReadByte(p Property) byte { return r.staticByte(p.Offset)[0] }

func (r *Record) ReadBool(p Property) bool { return r.ReadByte(p) == 1 }

func (r *Record) ReadInt(p Property) int32 {
	return int32(binary.LittleEndian.Uint32(r.staticByte(p.Offset)))
}

func (r *Record) ReadLong(p Property) int64 {
	return int64(binary.LittleEndian.Uint64(r.staticByte(p.Offset)))
}

func (r *Record) ReadFloat(p Property) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(r.staticByte(p.Offset)))
}

func (r *Record) ReadDouble(p Property) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(r.staticByte(p.Offset)))
}

func (r *Record) dynamicSlice(p Property) []byte {
	desc := r.staticByte(p.Offset)
	offset := binary.LittleEndian.Uint32(desc)
	if offset == 0 {
		return nil
	}
	length := binary.LittleEndian.Uint32(desc[4:])
	return r.buf[offset : offset+length]
}

func (r *Record) ReadString(p Property) (string, bool) {
	b := r.dynamicSlice(p)
	if b == nil {
		return "", false
	}
	return string(b), true
}

func (r *Record) ReadByteList(p Property) ([]byte, bool) {
	b := r.dynamicSlice(p)
	if b == nil {
		return nil, false
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, true
}

func (r *Record) ReadIntList(p Property) ([]int32, bool) {
	b := r.dynamicSlice(p)
	if b == nil {
		return nil, false
	}
	out := make([]int32, len(b)/4)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out, true
}

func (r *Record) ReadLongList(p Property) ([]int64, bool) {
	b := r.dynamicSlice(p)
	if b == nil {
		return nil, false
	}
	out := make([]int64, len(b)/8)
	for i := range out {
		out[i] = int64(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return out, true
}

func (r *Record) ReadFloatList(p Property) ([]float32, bool) {
	b := r.dynamicSlice(p)
	if b == nil {
		return nil, false
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out, true
}

func (r *Record) ReadDoubleList(p Property) ([]float64, bool) {
	b := r.dynamicSlice(p)
	if b == nil {
		return nil, false
	}
	out := make([]float64, len(b)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return out, true
}

// ReadStringList decodes a list of strings stored as a run of
// (length:u32, bytes) entries in the dynamic heap.
func (r *Record) ReadStringList(p Property) ([]string, bool) {
	b := r.dynamicSlice(p)
	if b == nil {
		return nil, false
	}
	var out []string
	for len(b) > 0 {
		if len(b) < 4 {
			break
		}
		n := binary.LittleEndian.Uint32(b)
		b = b[4:]
		if uint32(len(b)) < n {
			break
		}
		out = append(out, string(b[:n]))
		b = b[n:]
	}
	return out, true
}

// ErrTruncated describes a record shorter than its own static_size
// declares. No function in this package returns it.
var ErrTruncated = errors.New("object: truncated record")
