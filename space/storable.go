package space

import "time"

// Storable is implemented by types that know how to write themselves into a space.
type Storable interface {
	StoreTo(s *Space, key string)
}

// Loader is implemented, on a pointer receiver, by types that know how to read
// themselves back. LoadFrom reports false when nothing usable is stored at key.
type Loader interface {
	LoadFrom(s *Space, key string) bool
}

// Set stores v at key, overwriting whatever was there. Types implementing
// Storable write themselves; built-in scalars, strings, time.Time and []byte use
// the matching primitive accessor; everything else is stored with SetObject.
//
// int is narrowed to 32 bits on write: values outside the int32 range lose their
// high-order bits.
func Set[T any](s *Space, key string, v T) {
	switch x := any(v).(type) {
	case Storable:
		x.StoreTo(s, key)
	case bool:
		s.SetBool(key, x)
	case int:
		s.SetInt32(key, int32(x))
	case int32:
		s.SetInt32(key, x)
	case uint32:
		s.SetUInt32(key, x)
	case int64:
		s.SetInt64(key, x)
	case uint64:
		s.SetUInt64(key, x)
	case uint:
		s.SetUInt64(key, uint64(x))
	case float32:
		s.SetFloat(key, x)
	case float64:
		s.SetDouble(key, x)
	case string:
		s.SetString(key, x)
	case time.Time:
		s.SetDate(key, x)
	case []byte:
		s.SetData(key, x)
	default:
		s.SetObject(key, v)
	}
}

// Get reads the value of type T at key. It returns false when the key is
// missing, was written as a different type, or does not decode.
func Get[T any](s *Space, key string) (T, bool) {
	var out T
	if l, ok := any(&out).(Loader); ok {
		if !l.LoadFrom(s, key) {
			var zero T
			return zero, false
		}
		return out, true
	}

	var ok bool
	switch p := any(&out).(type) {
	case *bool:
		*p, ok = s.Bool(key)
	case *int:
		var v int32
		v, ok = s.Int32(key)
		*p = int(v)
	case *int32:
		*p, ok = s.Int32(key)
	case *uint32:
		*p, ok = s.UInt32(key)
	case *int64:
		*p, ok = s.Int64(key)
	case *uint64:
		*p, ok = s.UInt64(key)
	case *uint:
		var v uint64
		v, ok = s.UInt64(key)
		*p = uint(v)
	case *float32:
		*p, ok = s.Float(key)
	case *float64:
		*p, ok = s.Double(key)
	case *string:
		*p, ok = s.String(key)
	case *time.Time:
		*p, ok = s.Date(key)
	case *[]byte:
		*p, ok = s.Data(key)
	default:
		ok = s.Object(key, &out)
	}
	if !ok {
		var zero T
		return zero, false
	}
	return out, true
}
