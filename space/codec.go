package space

import (
	"reflect"
	"time"

	"github.com/agentuity/go-cachespace/cache"
	"github.com/cockroachdb/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// Class tokens for container values. Every slice shares ClassArray and every map
// shares ClassDictionary, whatever their element types.
const (
	ClassArray      = "array"
	ClassDictionary = "dictionary"
)

// ClassOf returns the class token a value is stored under by SetObject.
func ClassOf(v any) string {
	if v == nil {
		return ""
	}
	return classOfType(reflect.TypeOf(v))
}

func classOfType(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		return ClassArray
	case reflect.Map:
		return ClassDictionary
	}
	return t.String()
}

func encode(kind cache.Kind, class string, v any) (cache.Entry, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return cache.Entry{}, errors.Wrapf(err, "space: encode %s", kind)
	}
	return cache.Entry{Kind: kind, Class: class, Data: data}, nil
}

// decode fills out from entry. It fails when entry was written under another
// kind or class or when the payload does not decode into out.
func decode(entry cache.Entry, kind cache.Kind, class string, out any) error {
	if entry.Kind != kind {
		return errors.Newf("space: stored %s, requested %s", entry.Kind, kind)
	}
	if entry.Class != class {
		return errors.Newf("space: stored class %q, requested %q", entry.Class, class)
	}
	if err := msgpack.Unmarshal(entry.Data, out); err != nil {
		return errors.Wrapf(err, "space: decode %s", kind)
	}
	return nil
}

// dates are stored as UTC so the decoded value does not depend on the local zone.
func encodeDate(v time.Time) (cache.Entry, error) {
	return encode(cache.KindDate, "", v.UTC())
}
