package indexkey

import "github.com/erigontech/objectdb/object"

// EncodeScalar dispatches to the right fixed encoding for one non-list
// DataType. The encoding does not depend on the index type: a Hash index
// entry gets the same ordered key as a Value entry, and no separate
// fixed-width hash is produced. List types yield nil.
func EncodeScalar(t object.DataType, r *object.Record, p object.Property, caseSensitive bool) []byte {
	switch t {
	case object.Byte:
		return EncodeByte(r.ReadByte(p))
	case object.Int:
		return EncodeInt(r.ReadInt(p))
	case object.Long:
		return EncodeLong(r.ReadLong(p))
	case object.Float:
		return EncodeFloat(r.ReadFloat(p))
	case object.Double:
		return EncodeDouble(r.ReadDouble(p))
	case object.String:
		s, _ := r.ReadString(p)
		return EncodeString(s, caseSensitive)
	default:
		return nil
	}
}

// EncodeListElements returns one key per element of a list property, each
// via the scalar rule for its element type — the HashElements index type.
func EncodeListElements(t object.DataType, r *object.Record, p object.Property, caseSensitive bool) [][]byte {
	elemType, ok := t.ElementType()
	if !ok {
		return nil
	}
	switch elemType {
	case object.Byte:
		v, _ := r.ReadByteList(p)
		out := make([][]byte, len(v))
		for i, x := range v {
			out[i] = EncodeByte(x)
		}
		return out
	case object.Int:
		v, _ := r.ReadIntList(p)
		out := make([][]byte, len(v))
		for i, x := range v {
			out[i] = EncodeInt(x)
		}
		return out
	case object.Long:
		v, _ := r.ReadLongList(p)
		out := make([][]byte, len(v))
		for i, x := range v {
			out[i] = EncodeLong(x)
		}
		return out
	case object.Float:
		v, _ := r.ReadFloatList(p)
		out := make([][]byte, len(v))
		for i, x := range v {
			out[i] = EncodeFloat(x)
		}
		return out
	case object.Double:
		v, _ := r.ReadDoubleList(p)
		out := make([][]byte, len(v))
		for i, x := range v {
			out[i] = EncodeDouble(x)
		}
		return out
	case object.String:
		v, _ := r.ReadStringList(p)
		out := make([][]byte, len(v))
		for i, s := range v {
			out[i] = EncodeString(s, caseSensitive)
		}
		return out
	default:
		return nil
	}
}
