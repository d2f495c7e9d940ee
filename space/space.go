package space

import (
	"context"
	"time"

	"github.com/agentuity/go-cachespace/cache"
	"github.com/agentuity/go-cachespace/logger"
)

// Store is the key/value surface a Space is bound to. *engine.Engine satisfies it.
type Store interface {
	Get(ctx context.Context, space, key string) (bool, cache.Entry, error)
	Set(ctx context.Context, space, key string, entry cache.Entry) error
	Contains(ctx context.Context, space, key string) (bool, error)
	Remove(ctx context.Context, space, key string) error
	RemoveAll(ctx context.Context, space string) error
	Count(ctx context.Context, space string) (uint64, error)
	Keys(ctx context.Context, space string) ([]string, error)
}

// Space is a named partition of a Store. Its accessors never return errors:
// write failures are logged and read failures read as absent.
type Space struct {
	ctx    context.Context
	store  Store
	name   string
	logger logger.Logger
}

// New binds a space called name to store. ctx bounds every store call the
// space makes.
func New(ctx context.Context, store Store, name string, log logger.Logger) *Space {
	if log == nil {
		log = logger.NewDiscardLogger()
	}
	return &Space{
		ctx:    ctx,
		store:  store,
		name:   name,
		logger: log.With(map[string]interface{}{"space": name}),
	}
}

// Name returns the space name.
func (s *Space) Name() string { return s.name }

func (s *Space) write(key string, entry cache.Entry, err error) {
	if err == nil {
		err = s.store.Set(s.ctx, s.name, key, entry)
	}
	if err != nil {
		s.logger.Warn("set %s failed: %s", key, err)
	}
}

func (s *Space) read(key string, kind cache.Kind, class string, out any) bool {
	found, entry, err := s.store.Get(s.ctx, s.name, key)
	if err != nil {
		s.logger.Warn("get %s failed: %s", key, err)
		return false
	}
	if !found {
		return false
	}
	if err := decode(entry, kind, class, out); err != nil {
		s.logger.Debug("get %s: %s", key, err)
		return false
	}
	return true
}

// Count returns the number of keys stored in the space.
func (s *Space) Count() uint64 {
	n, err := s.store.Count(s.ctx, s.name)
	if err != nil {
		s.logger.Warn("count failed: %s", err)
		return 0
	}
	return n
}

// Keys returns the keys stored in the space in no particular order.
func (s *Space) Keys() []string {
	keys, err := s.store.Keys(s.ctx, s.name)
	if err != nil {
		s.logger.Warn("keys failed: %s", err)
		return []string{}
	}
	return keys
}

// Contains reports whether any value is stored at key, whatever its kind.
func (s *Space) Contains(key string) bool {
	ok, err := s.store.Contains(s.ctx, s.name, key)
	if err != nil {
		s.logger.Warn("contains %s failed: %s", key, err)
		return false
	}
	return ok
}

// Remove deletes key.
func (s *Space) Remove(key string) {
	if err := s.store.Remove(s.ctx, s.name, key); err != nil {
		s.logger.Warn("remove %s failed: %s", key, err)
	}
}

// RemoveKeys deletes each of keys.
func (s *Space) RemoveKeys(keys ...string) {
	for _, key := range keys {
		s.Remove(key)
	}
}

// RemoveAll deletes every key of the space.
func (s *Space) RemoveAll() {
	if err := s.store.RemoveAll(s.ctx, s.name); err != nil {
		s.logger.Warn("remove all failed: %s", err)
	}
}

func (s *Space) SetBool(key string, v bool) {
	e, err := encode(cache.KindBool, "", v)
	s.write(key, e, err)
}

func (s *Space) SetInt32(key string, v int32) {
	e, err := encode(cache.KindInt32, "", v)
	s.write(key, e, err)
}

func (s *Space) SetUInt32(key string, v uint32) {
	e, err := encode(cache.KindUInt32, "", v)
	s.write(key, e, err)
}

func (s *Space) SetInt64(key string, v int64) {
	e, err := encode(cache.KindInt64, "", v)
	s.write(key, e, err)
}

func (s *Space) SetUInt64(key string, v uint64) {
	e, err := encode(cache.KindUInt64, "", v)
	s.write(key, e, err)
}

func (s *Space) SetFloat(key string, v float32) {
	e, err := encode(cache.KindFloat, "", v)
	s.write(key, e, err)
}

func (s *Space) SetDouble(key string, v float64) {
	e, err := encode(cache.KindDouble, "", v)
	s.write(key, e, err)
}

func (s *Space) SetString(key string, v string) {
	e, err := encode(cache.KindString, "", v)
	s.write(key, e, err)
}

func (s *Space) SetDate(key string, v time.Time) {
	e, err := encodeDate(v)
	s.write(key, e, err)
}

// SetData stores a byte blob. A nil blob is stored as empty.
func (s *Space) SetData(key string, v []byte) {
	if v == nil {
		v = []byte{}
	}
	e, err := encode(cache.KindData, "", v)
	s.write(key, e, err)
}

// SetObject stores v under its class token, see ClassOf.
func (s *Space) SetObject(key string, v any) {
	e, err := encode(cache.KindObject, ClassOf(v), v)
	s.write(key, e, err)
}

func (s *Space) Bool(key string) (v bool, ok bool) {
	ok = s.read(key, cache.KindBool, "", &v)
	return
}

func (s *Space) Int32(key string) (v int32, ok bool) {
	ok = s.read(key, cache.KindInt32, "", &v)
	return
}

func (s *Space) UInt32(key string) (v uint32, ok bool) {
	ok = s.read(key, cache.KindUInt32, "", &v)
	return
}

func (s *Space) Int64(key string) (v int64, ok bool) {
	ok = s.read(key, cache.KindInt64, "", &v)
	return
}

func (s *Space) UInt64(key string) (v uint64, ok bool) {
	ok = s.read(key, cache.KindUInt64, "", &v)
	return
}

func (s *Space) Float(key string) (v float32, ok bool) {
	ok = s.read(key, cache.KindFloat, "", &v)
	return
}

func (s *Space) Double(key string) (v float64, ok bool) {
	ok = s.read(key, cache.KindDouble, "", &v)
	return
}

func (s *Space) String(key string) (v string, ok bool) {
	ok = s.read(key, cache.KindString, "", &v)
	return
}

func (s *Space) Date(key string) (time.Time, bool) {
	var v time.Time
	if !s.read(key, cache.KindDate, "", &v) {
		return time.Time{}, false
	}
	return v.UTC(), true
}

// Data returns the blob at key. A stored empty blob reads back as empty, not nil.
func (s *Space) Data(key string) ([]byte, bool) {
	var v []byte
	if !s.read(key, cache.KindData, "", &v) {
		return nil, false
	}
	if v == nil {
		v = []byte{}
	}
	return v, true
}

// Object decodes the value at key into out, which must be a pointer. The stored
// class must match the class of out's element type.
func (s *Space) Object(key string, out any) bool {
	return s.ObjectOfClass(key, ClassOf(out), out)
}

// ObjectOfClass decodes the value at key into out if it was stored under class.
func (s *Space) ObjectOfClass(key, class string, out any) bool {
	return s.read(key, cache.KindObject, class, out)
}

func (s *Space) BoolOr(key string, def bool) bool {
	if v, ok := s.Bool(key); ok {
		return v
	}
	return def
}

func (s *Space) Int32Or(key string, def int32) int32 {
	if v, ok := s.Int32(key); ok {
		return v
	}
	return def
}

func (s *Space) UInt32Or(key string, def uint32) uint32 {
	if v, ok := s.UInt32(key); ok {
		return v
	}
	return def
}

func (s *Space) Int64Or(key string, def int64) int64 {
	if v, ok := s.Int64(key); ok {
		return v
	}
	return def
}

func (s *Space) UInt64Or(key string, def uint64) uint64 {
	if v, ok := s.UInt64(key); ok {
		return v
	}
	return def
}

func (s *Space) FloatOr(key string, def float32) float32 {
	if v, ok := s.Float(key); ok {
		return v
	}
	return def
}

func (s *Space) DoubleOr(key string, def float64) float64 {
	if v, ok := s.Double(key); ok {
		return v
	}
	return def
}
