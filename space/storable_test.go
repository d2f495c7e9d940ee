package space

import (
	"math"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type point struct {
	X, Y int32
}

// StoreTo writes the point as "x,y" text.
func (p point) StoreTo(s *Space, key string) {
	s.SetString(key, strconv.Itoa(int(p.X))+","+strconv.Itoa(int(p.Y)))
}

func (p *point) LoadFrom(s *Space, key string) bool {
	text, ok := s.String(key)
	if !ok {
		return false
	}
	parts := strings.Split(text, ",")
	if len(parts) != 2 {
		return false
	}
	x, errX := strconv.Atoi(parts[0])
	y, errY := strconv.Atoi(parts[1])
	if errX != nil || errY != nil {
		return false
	}
	p.X, p.Y = int32(x), int32(y)
	return true
}

type settings struct {
	Theme    string         `msgpack:"theme"`
	Volume   float64        `msgpack:"volume"`
	Counters map[string]int `msgpack:"counters"`
}

func roundTrip[T any](t *testing.T, s *Space, key string, v T) {
	t.Helper()
	Set(s, key, v)
	got, ok := Get[T](s, key)
	assert.True(t, ok, key)
	assert.Equal(t, v, got, key)
}

func TestGenericRoundTrip(t *testing.T) {
	s := newTestSpace(t, "generic")

	roundTrip(t, s, "bool", true)
	roundTrip(t, s, "int", 12345)
	roundTrip(t, s, "int32", int32(42))
	roundTrip(t, s, "uint32", uint32(math.MaxUint32))
	roundTrip(t, s, "int64", int64(math.MinInt64))
	roundTrip(t, s, "uint64", uint64(math.MaxUint64))
	roundTrip(t, s, "uint", uint(1<<40))
	roundTrip(t, s, "float32", float32(0.25))
	roundTrip(t, s, "float64", math.Pi)
	roundTrip(t, s, "string", "hello")
	roundTrip(t, s, "empty-string", "")
	roundTrip(t, s, "bytes", []byte("raw"))
	roundTrip(t, s, "empty-bytes", []byte{})
	roundTrip(t, s, "slice", []string{"a", "b"})
	roundTrip(t, s, "map", map[string]int{"a": 1})
	roundTrip(t, s, "struct", settings{Theme: "dark", Volume: 0.5, Counters: map[string]int{"x": 2}})
	roundTrip(t, s, "pointer", &settings{Theme: "light"})
	roundTrip(t, s, "storable", point{X: 3, Y: -4})
}

func TestGenericDate(t *testing.T) {
	s := newTestSpace(t, "generic-date")
	now := time.Now()
	Set(s, "now", now)
	got, ok := Get[time.Time](s, "now")
	assert.True(t, ok)
	assert.True(t, now.Equal(got))
}

func TestGenericMissReturnsZero(t *testing.T) {
	s := newTestSpace(t, "generic-miss")

	v, ok := Get[int32](s, "missing")
	assert.False(t, ok)
	assert.Equal(t, int32(0), v)

	p, ok := Get[point](s, "missing")
	assert.False(t, ok)
	assert.Equal(t, point{}, p)

	Set(s, "text", "not,a,point")
	p, ok = Get[point](s, "text")
	assert.False(t, ok)
	assert.Equal(t, point{}, p)

	Set(s, "number", int32(1))
	_, ok = Get[string](s, "number")
	assert.False(t, ok)
	_, ok = Get[int64](s, "number")
	assert.False(t, ok)

	Set(s, "list", []int{1})
	_, ok = Get[map[string]int](s, "list")
	assert.False(t, ok)
	// Same class, undecodable elements.
	_, ok = Get[[]bool](s, "list")
	assert.False(t, ok)
}

func TestIntNarrowsTo32Bits(t *testing.T) {
	if strconv.IntSize < 64 {
		t.Skip("int is already 32 bits")
	}
	s := newTestSpace(t, "narrowing")

	var big int64 = 1<<32 + 7
	Set(s, "wide", int(big))
	got, ok := Get[int](s, "wide")
	assert.True(t, ok)
	assert.Equal(t, 7, got)

	// Stored through the int32 accessor.
	raw, ok := s.Int32("wide")
	assert.True(t, ok)
	assert.Equal(t, int32(7), raw)

	big = math.MaxInt32 + 1
	Set(s, "negative", int(big))
	got, ok = Get[int](s, "negative")
	assert.True(t, ok)
	assert.Equal(t, math.MinInt32, got)

	// int and int32 share storage.
	Set(s, "shared", int32(-5))
	got, ok = Get[int](s, "shared")
	assert.True(t, ok)
	assert.Equal(t, -5, got)
}

func TestStorableUsesItsOwnEncoding(t *testing.T) {
	s := newTestSpace(t, "storable")
	Set(s, "p", point{X: 1, Y: 2})

	text, ok := s.String("p")
	assert.True(t, ok)
	assert.Equal(t, "1,2", text)
}
