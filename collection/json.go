package collection

import (
	"github.com/erigontech/objectdb/object"
)

// writeJSONValue assigns a decoded JSON value to property p on builder b,
// rejecting values that don't convert to p's DataType with InvalidJSON.
func writeJSONValue(b *object.Builder, p object.Property, raw any) error {
	switch p.Type {
	case object.Byte:
		f, ok := raw.(float64)
		if !ok {
			return errInvalidJSON
		}
		b.WriteByte(p, byte(f))
	case object.Int:
		f, ok := raw.(float64)
		if !ok {
			return errInvalidJSON
		}
		b.WriteInt(p, int32(f))
	case object.Long:
		f, ok := raw.(float64)
		if !ok {
			return errInvalidJSON
		}
		b.WriteLong(p, int64(f))
	case object.Float:
		f, ok := raw.(float64)
		if !ok {
			return errInvalidJSON
		}
		b.WriteFloat(p, float32(f))
	case object.Double:
		f, ok := raw.(float64)
		if !ok {
			return errInvalidJSON
		}
		b.WriteDouble(p, f)
	case object.String:
		s, ok := raw.(string)
		if !ok {
			return errInvalidJSON
		}
		b.WriteString(p, s)
	case object.ByteList:
		list, ok := raw.([]any)
		if !ok {
			return errInvalidJSON
		}
		out := make([]byte, len(list))
		for i, v := range list {
			f, ok := v.(float64)
			if !ok {
				return errInvalidJSON
			}
			out[i] = byte(f)
		}
		b.WriteByteList(p, out)
	case object.IntList:
		out, err := float64List[int32](raw, func(f float64) int32 { return int32(f) })
		if err != nil {
			return err
		}
		b.WriteIntList(p, out)
	case object.LongList:
		out, err := float64List[int64](raw, func(f float64) int64 { return int64(f) })
		if err != nil {
			return err
		}
		b.WriteLongList(p, out)
	case object.FloatList:
		out, err := float64List[float32](raw, func(f float64) float32 { return float32(f) })
		if err != nil {
			return err
		}
		b.WriteFloatList(p, out)
	case object.DoubleList:
		out, err := float64List[float64](raw, func(f float64) float64 { return f })
		if err != nil {
			return err
		}
		b.WriteDoubleList(p, out)
	case object.StringList:
		list, ok := raw.([]any)
		if !ok {
			return errInvalidJSON
		}
		out := make([]string, len(list))
		for i, v := range list {
			s, ok := v.(string)
			if !ok {
				return errInvalidJSON
			}
			out[i] = s
		}
		b.WriteStringList(p, out)
	}
	return nil
}

func float64List[T any](raw any, conv func(float64) T) ([]T, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, errInvalidJSON
	}
	out := make([]T, len(list))
	for i, v := range list {
		f, ok := v.(float64)
		if !ok {
			return nil, errInvalidJSON
		}
		out[i] = conv(f)
	}
	return out, nil
}

// readJSONValue converts a decoded property value to its JSON-ready form.
func readJSONValue(r *object.Record, p object.Property) any {
	switch p.Type {
	case object.Byte:
		return r.ReadByte(p)
	case object.Int:
		return r.ReadInt(p)
	case object.Long:
		return r.ReadLong(p)
	case object.Float:
		return r.ReadFloat(p)
	case object.Double:
		return r.ReadDouble(p)
	case object.String:
		s, _ := r.ReadString(p)
		return s
	case object.ByteList:
		v, _ := r.ReadByteList(p)
		return v
	case object.IntList:
		v, _ := r.ReadIntList(p)
		return v
	case object.LongList:
		v, _ := r.ReadLongList(p)
		return v
	case object.FloatList:
		v, _ := r.ReadFloatList(p)
		return v
	case object.DoubleList:
		v, _ := r.ReadDoubleList(p)
		return v
	case object.StringList:
		v, _ := r.ReadStringList(p)
		return v
	default:
		return nil
	}
}
