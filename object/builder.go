package object

import (
	"encoding/binary"
	"math"
)

// Builder assembles an encoded record by writing properties in declared
// offset order. It reuses a caller-supplied scratch buffer for the static
// area when the buffer has enough capacity; the dynamic heap and the
// record returned by Build are still allocated on every use.
type Builder struct {
	props      []Property
	staticSize int
	static     []byte
	dynamic    []byte
}

// NewBuilder starts a record for the given property list, reusing scratch
// as the backing array when it has enough capacity.
func NewBuilder(props []Property, scratch []byte) *Builder {
	staticSize := staticAreaSize(props)
	b := &Builder{props: props, staticSize: staticSize}
	need := headerSize + staticSize
	if cap(scratch) >= need {
		b.static = scratch[:need]
	} else {
		b.static = make([]byte, need)
	}
	for i := range b.static {
		b.static[i] = 0
	}
	binary.LittleEndian.PutUint16(b.static, uint16(staticSize))
	// Scalars default to their null sentinel until explicitly written;
	// dynamic descriptors default to offset=0 (already null via the zero fill).
	for _, p := range props {
		if p.Type.IsStatic() {
			b.writeNullScalar(p)
		}
	}
	b.dynamic = b.dynamic[:0]
	return b
}

func (b *Builder) staticAt(offset int) []byte {
	return b.static[headerSize+offset:]
}

func (b *Builder) writeNullScalar(p Property) {
	switch p.Type {
	case Byte:
		b.staticAt(p.Offset)[0] = nullByte
	case Int:
		binary.LittleEndian.PutUint32(b.staticAt(p.Offset), uint32(nullInt))
	case Long:
		binary.LittleEndian.PutUint64(b.staticAt(p.Offset), uint64(nullLong))
	case Float:
		binary.LittleEndian.PutUint32(b.staticAt(p.Offset), nullFloatBits)
	case Double:
		binary.LittleEndian.PutUint64(b.staticAt(p.Offset), nullDoubleBits)
	}
}

func (b *Builder) WriteByte(p Property, v byte) { b.staticAt(p.Offset)[0] = v }

func (b *Builder) WriteBool(p Property, v bool) {
	if v {
		b.WriteByte(p, 1)
	} else {
		b.WriteByte(p, 0)
	}
}

func (b *Builder) WriteInt(p Property, v int32) {
	binary.LittleEndian.PutUint32(b.staticAt(p.Offset), uint32(v))
}

func (b *Builder) WriteLong(p Property, v int64) {
	binary.LittleEndian.PutUint64(b.staticAt(p.Offset), uint64(v))
}

func (b *Builder) WriteFloat(p Property, v float32) {
	binary.LittleEndian.PutUint32(b.staticAt(p.Offset), math.Float32bits(v))
}

func (b *Builder) WriteDouble(p Property, v float64) {
	binary.LittleEndian.PutUint64(b.staticAt(p.Offset), math.Float64bits(v))
}

func (b *Builder) WriteNull(p Property) {
	if p.Type.IsStatic() {
		b.writeNullScalar(p)
		return
	}
	binary.LittleEndian.PutUint32(b.staticAt(p.Offset), 0)
	binary.LittleEndian.PutUint32(b.staticAt(p.Offset)[4:], 0)
}

// writeDynamic appends raw bytes to the heap and writes the descriptor.
// The descriptor's offset is absolute within the final record, which is
// headerSize+staticSize (the heap's start) plus the current heap length;
// this is finalized once in Build, so intermediate offsets here are
// heap-relative and rewritten by Build.
func (b *Builder) writeDynamic(p Property, payload []byte) {
	descOffset := len(b.dynamic) // heap-relative, fixed up in Build
	binary.LittleEndian.PutUint32(b.staticAt(p.Offset), uint32(descOffset+1))
	binary.LittleEndian.PutUint32(b.staticAt(p.Offset)[4:], uint32(len(payload)))
	b.dynamic = append(b.dynamic, payload...)
}

func (b *Builder) WriteString(p Property, v string) {
	b.writeDynamic(p, []byte(v))
}

func (b *Builder) WriteByteList(p Property, v []byte) {
	b.writeDynamic(p, v)
}

func (b *Builder) WriteIntList(p Property, v []int32) {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(x))
	}
	b.writeDynamic(p, buf)
}

func (b *Builder) WriteLongList(p Property, v []int64) {
	buf := make([]byte, 8*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], uint64(x))
	}
	b.writeDynamic(p, buf)
}

func (b *Builder) WriteFloatList(p Property, v []float32) {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
	}
	b.writeDynamic(p, buf)
}

func (b *Builder) WriteDoubleList(p Property, v []float64) {
	buf := make([]byte, 8*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(x))
	}
	b.writeDynamic(p, buf)
}

func (b *Builder) WriteStringList(p Property, v []string) {
	var buf []byte
	var tmp [4]byte
	for _, s := range v {
		binary.LittleEndian.PutUint32(tmp[:], uint32(len(s)))
		buf = append(buf, tmp[:]...)
		buf = append(buf, s...)
	}
	b.writeDynamic(p, buf)
}

// Build finalizes the record: descriptor offsets recorded heap-relative
// (plus one, to keep zero meaning null) during the Write* calls are
// rewritten to be absolute within the final buffer, and the static and
// dynamic areas are concatenated.
func (b *Builder) Build() []byte {
	base := uint32(len(b.static))
	for _, p := range b.props {
		if p.Type.IsStatic() {
			continue
		}
		desc := b.staticAt(p.Offset)
		relPlusOne := binary.LittleEndian.Uint32(desc)
		if relPlusOne == 0 {
			continue // null
		}
		binary.LittleEndian.PutUint32(desc, base+relPlusOne-1)
	}
	out := make([]byte, 0, len(b.static)+len(b.dynamic))
	out = append(out, b.static...)
	out = append(out, b.dynamic...)
	return out
}
