package main

import (
	"encoding/base64"
	"encoding/json"
	"strconv"
	"time"

	"github.com/agentuity/go-cachespace/cache"
	"github.com/agentuity/go-cachespace/space"
	"github.com/cockroachdb/errors"
	"github.com/vmihailenco/msgpack/v5"
)

var errNotFound = errors.New("not found")

// storeValue parses raw as kind and writes it to key.
func storeValue(s *space.Space, key string, kind cache.Kind, raw string) error {
	switch kind {
	case cache.KindBool:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return errors.Wrapf(err, "parse %s", kind)
		}
		s.SetBool(key, v)
	case cache.KindInt32:
		v, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return errors.Wrapf(err, "parse %s", kind)
		}
		s.SetInt32(key, int32(v))
	case cache.KindUInt32:
		v, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return errors.Wrapf(err, "parse %s", kind)
		}
		s.SetUInt32(key, uint32(v))
	case cache.KindInt64:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "parse %s", kind)
		}
		s.SetInt64(key, v)
	case cache.KindUInt64:
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "parse %s", kind)
		}
		s.SetUInt64(key, v)
	case cache.KindFloat:
		v, err := strconv.ParseFloat(raw, 32)
		if err != nil {
			return errors.Wrapf(err, "parse %s", kind)
		}
		s.SetFloat(key, float32(v))
	case cache.KindDouble:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return errors.Wrapf(err, "parse %s", kind)
		}
		s.SetDouble(key, v)
	case cache.KindString:
		s.SetString(key, raw)
	case cache.KindDate:
		v, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return errors.Wrapf(err, "parse %s", kind)
		}
		s.SetDate(key, v)
	case cache.KindData:
		v, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return errors.Wrapf(err, "parse %s", kind)
		}
		s.SetData(key, v)
	case cache.KindObject:
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return errors.Wrapf(err, "parse %s", kind)
		}
		switch v.(type) {
		case map[string]any, []any:
			s.SetObject(key, v)
		default:
			return errors.Newf("parse %s: expected a JSON object or array", kind)
		}
	default:
		return errors.Newf("unsupported type %s", kind)
	}
	return nil
}

// loadValue reads key as kind and formats it the way storeValue parses it.
func loadValue(s *space.Space, key string, entry cache.Entry) (string, error) {
	var (
		out any
		ok  bool
	)
	switch entry.Kind {
	case cache.KindBool:
		out, ok = s.Bool(key)
	case cache.KindInt32:
		out, ok = s.Int32(key)
	case cache.KindUInt32:
		out, ok = s.UInt32(key)
	case cache.KindInt64:
		out, ok = s.Int64(key)
	case cache.KindUInt64:
		out, ok = s.UInt64(key)
	case cache.KindFloat:
		var v float32
		v, ok = s.Float(key)
		out = strconv.FormatFloat(float64(v), 'g', -1, 32)
	case cache.KindDouble:
		var v float64
		v, ok = s.Double(key)
		out = strconv.FormatFloat(v, 'g', -1, 64)
	case cache.KindString:
		out, ok = s.String(key)
	case cache.KindDate:
		var v time.Time
		v, ok = s.Date(key)
		out = v.Format(time.RFC3339Nano)
	case cache.KindData:
		var v []byte
		v, ok = s.Data(key)
		out = base64.StdEncoding.EncodeToString(v)
	case cache.KindObject:
		return formatObject(s, key, entry)
	default:
		return "", errors.Newf("unsupported type %s", entry.Kind)
	}
	if !ok {
		return "", errNotFound
	}
	return formatScalar(out), nil
}

func formatScalar(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint32:
		return strconv.FormatUint(uint64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	}
	return ""
}

// formatObject renders an object entry as JSON. Containers go through the
// space accessors; objects of other classes are decoded generically since the
// command line has no Go type for them.
func formatObject(s *space.Space, key string, entry cache.Entry) (string, error) {
	var v any
	switch entry.Class {
	case space.ClassDictionary:
		var m map[string]any
		if !s.Object(key, &m) {
			return "", errNotFound
		}
		v = m
	case space.ClassArray:
		var a []any
		if !s.Object(key, &a) {
			return "", errNotFound
		}
		v = a
	default:
		if err := msgpack.Unmarshal(entry.Data, &v); err != nil {
			return "", errors.Wrapf(err, "decode %s", entry.Class)
		}
	}
	buf, err := json.Marshal(v)
	if err != nil {
		return "", errors.Wrapf(err, "encode %s", entry.Class)
	}
	return string(buf), nil
}
