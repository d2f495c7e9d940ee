package cache

import (
	"context"
	"time"
)

// Kind identifies the primitive encoding of a stored Entry.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindInt32
	KindUInt32
	KindInt64
	KindUInt64
	KindFloat
	KindDouble
	KindString
	KindDate
	KindData
	KindObject
)

var kindNames = [...]string{
	KindInvalid: "invalid",
	KindBool:    "bool",
	KindInt32:   "int32",
	KindUInt32:  "uint32",
	KindInt64:   "int64",
	KindUInt64:  "uint64",
	KindFloat:   "float",
	KindDouble:  "double",
	KindString:  "string",
	KindDate:    "date",
	KindData:    "data",
	KindObject:  "object",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// ParseKind returns the Kind with the given name.
func ParseKind(name string) (Kind, bool) {
	for i, n := range kindNames {
		if n == name && Kind(i) != KindInvalid {
			return Kind(i), true
		}
	}
	return KindInvalid, false
}

// Entry is the unit every tier stores. Data holds the encoded value; Class is
// only set for KindObject entries.
type Entry struct {
	Kind  Kind   `msgpack:"k"`
	Class string `msgpack:"c,omitempty"`
	Data  []byte `msgpack:"v"`
}

// Tier is one storage level of the engine. Keys are scoped by space, so the
// same key may exist independently in two spaces.
type Tier interface {
	// Get returns the entry stored at space/key. A miss is (false, Entry{}, nil).
	Get(ctx context.Context, space, key string) (bool, Entry, error)
	// Set stores the entry with a TTL. If expires <= 0 the tier's configured
	// default is used; a zero default means the entry never expires.
	Set(ctx context.Context, space, key string, entry Entry, expires time.Duration) error
	// Contains reports whether a live entry exists at space/key.
	Contains(ctx context.Context, space, key string) (bool, error)
	// Expire removes space/key and reports whether it existed.
	Expire(ctx context.Context, space, key string) (bool, error)
	// ExpireAll removes every entry in space.
	ExpireAll(ctx context.Context, space string) error
	// Count returns the number of live entries in space.
	Count(ctx context.Context, space string) (uint64, error)
	// Keys returns the live keys in space in no particular order.
	Keys(ctx context.Context, space string) ([]string, error)
	// Close shuts down the tier. It is safe to call more than once.
	Close(ctx context.Context) error
}

type value struct {
	entry   Entry
	expires time.Time
}

func (v *value) expired(now time.Time) bool {
	return !v.expires.IsZero() && v.expires.Before(now)
}

func expiresAt(now time.Time, expires time.Duration) time.Time {
	if expires <= 0 {
		return time.Time{}
	}
	return now.Add(expires)
}

// DefaultQueryTimeout is the per-operation timeout for tiers that perform I/O
// (SQLite, Redis).
const DefaultQueryTimeout = 5 * time.Second

// DefaultExpiryCheck is how often background cleanup runs.
const DefaultExpiryCheck = time.Minute

// DefaultShards is the number of shards used by the in-memory tier.
const DefaultShards = 16

type config struct {
	defaultExpires time.Duration
	queryTimeout   time.Duration
	expiryCheck    time.Duration
	prefix         string
	shards         int
}

// Option configures a Tier implementation.
type Option func(*config)

func defaultConfig() config {
	return config{
		queryTimeout: DefaultQueryTimeout,
		expiryCheck:  DefaultExpiryCheck,
		shards:       DefaultShards,
	}
}

func applyOptions(opts []Option) config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.expiryCheck <= 0 {
		cfg.expiryCheck = DefaultExpiryCheck
	}
	if cfg.queryTimeout <= 0 {
		cfg.queryTimeout = DefaultQueryTimeout
	}
	if cfg.shards <= 0 {
		cfg.shards = DefaultShards
	}
	return cfg
}

// WithExpires sets the default TTL used when Set is called with expires <= 0.
// Defaults to zero, meaning entries never expire.
func WithExpires(d time.Duration) Option {
	return func(c *config) { c.defaultExpires = d }
}

// WithQueryTimeout sets the per-operation timeout for I/O-backed tiers.
func WithQueryTimeout(d time.Duration) Option {
	return func(c *config) { c.queryTimeout = d }
}

// WithExpiryCheck sets the interval for background expired entry cleanup.
// Applies to InMemory and SQLite.
func WithExpiryCheck(d time.Duration) Option {
	return func(c *config) { c.expiryCheck = d }
}

// WithPrefix sets the key prefix for the Redis tier.
func WithPrefix(p string) Option {
	return func(c *config) { c.prefix = p }
}

// WithShards sets the number of lock shards for the in-memory tier.
func WithShards(n int) Option {
	return func(c *config) { c.shards = n }
}
