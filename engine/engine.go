package engine

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agentuity/go-cachespace/cache"
	"github.com/agentuity/go-cachespace/eventing"
	"github.com/agentuity/go-cachespace/logger"
	"github.com/agentuity/go-cachespace/resilience"
	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// DiskFile is the name of the SQLite database created under the engine path.
const DiskFile = "cache.sqlite"

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("engine: closed")

// keyLocks is the number of stripes serializing writes against backfills.
const keyLocks = 64

type options struct {
	memoryExpires time.Duration
	diskExpires   time.Duration
	expiryCheck   time.Duration
	queryTimeout  time.Duration
	shards        int
	redis         *redis.Client
	redisPrefix   string
	breaker       *resilience.Config
	invalidation  bool
	logger        logger.Logger
}

// Option configures an Engine.
type Option func(*options)

// WithMemoryExpires bounds how long an entry stays in the memory tier. The disk
// tier still holds it, so an expired memory entry is refilled on the next read.
func WithMemoryExpires(d time.Duration) Option {
	return func(o *options) { o.memoryExpires = d }
}

// WithDiskExpires sets the TTL of entries in the disk (and Redis) tier.
// Zero means entries never expire.
func WithDiskExpires(d time.Duration) Option {
	return func(o *options) { o.diskExpires = d }
}

// WithExpiryCheck sets how often the tiers sweep expired entries.
func WithExpiryCheck(d time.Duration) Option {
	return func(o *options) { o.expiryCheck = d }
}

// WithQueryTimeout sets the per-operation timeout of the I/O tiers.
func WithQueryTimeout(d time.Duration) Option {
	return func(o *options) { o.queryTimeout = d }
}

// WithShards sets the number of lock shards of the memory tier.
func WithShards(n int) Option {
	return func(o *options) { o.shards = n }
}

// WithRedis adds a shared Redis tier behind the disk tier. The caller owns client.
func WithRedis(client *redis.Client, prefix string) Option {
	return func(o *options) {
		o.redis = client
		o.redisPrefix = prefix
	}
}

// WithRedisBreaker sets the circuit breaker guarding the Redis tier. By default
// five consecutive failures take Redis out of the chain for 30 seconds.
// Writes made while the circuit is open only reach the local tiers; Count and
// Keys merge the disk tier with Redis so those keys stay listed once Redis is
// back. Other engines do not see them until they are written again.
func WithRedisBreaker(config resilience.Config) Option {
	return func(o *options) { o.breaker = &config }
}

// WithInvalidation controls whether writes are broadcast over Redis pub/sub so
// other engines sharing the Redis tier drop their local copies. It is on by
// default and has no effect without WithRedis.
func WithInvalidation(enabled bool) Option {
	return func(o *options) { o.invalidation = enabled }
}

// WithLogger sets the logger used for engine diagnostics.
func WithLogger(log logger.Logger) Option {
	return func(o *options) { o.logger = log }
}

// Engine is the two-tier store every cache space is bound to.
type Engine struct {
	path    string
	memory  cache.Tier
	disk    cache.Tier
	chain   cache.Tier
	reads   singleflight.Group
	locks   [keyLocks]sync.Mutex
	breaker *resilience.Breaker
	bus     *eventing.Bus
	closed  atomic.Bool
	logger  logger.Logger
}

// DefaultPath is the base directory used when New is given an empty path.
func DefaultPath() string {
	dir, err := os.UserCacheDir()
	if err != nil || dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "cachespace")
}

// New creates the engine rooted at path, or DefaultPath when path is empty.
// The memory tier lives until ctx is cancelled or Close is called.
func New(ctx context.Context, path string, opts ...Option) (*Engine, error) {
	o := options{logger: logger.NewDiscardLogger(), invalidation: true}
	for _, opt := range opts {
		opt(&o)
	}
	if path == "" {
		path = DefaultPath()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "engine: resolve path %s", path)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, errors.Wrapf(err, "engine: create path %s", abs)
	}

	common := []cache.Option{
		cache.WithExpiryCheck(o.expiryCheck),
		cache.WithQueryTimeout(o.queryTimeout),
	}

	memory := cache.NewInMemory(ctx, append(common,
		cache.WithExpires(o.memoryExpires),
		cache.WithShards(o.shards))...)

	disk, err := cache.NewSQLite(ctx, filepath.Join(abs, DiskFile), append(common,
		cache.WithExpires(o.diskExpires))...)
	if err != nil {
		_ = memory.Close(ctx)
		return nil, errors.Wrap(err, "engine: open disk tier")
	}

	e := &Engine{
		path:   abs,
		memory: memory,
		disk:   disk,
		logger: o.logger.WithPrefix("[engine]"),
	}

	tiers := []cache.Tier{memory, disk}
	if o.redis != nil {
		bc := resilience.DefaultConfig()
		bc.CallTimeout = o.queryTimeout
		if o.breaker != nil {
			bc = *o.breaker
		}
		e.breaker = resilience.New(bc)
		remote := cache.NewRedis(o.redis, append(common,
			cache.WithExpires(o.diskExpires),
			cache.WithPrefix(o.redisPrefix))...)
		tiers = append(tiers, cache.NewGuarded(remote, e.breaker, disk))
		if o.invalidation {
			e.subscribe(ctx, o)
		}
	}
	e.chain = cache.NewComposite(tiers...)
	e.logger.Debug("opened engine at %s with %d tiers", abs, len(tiers))
	return e, nil
}

// InvalidationChannel returns the Redis channel used to broadcast writes for
// the given key prefix.
func InvalidationChannel(prefix string) string {
	if prefix == "" {
		prefix = "cachespace"
	}
	return prefix + ":invalidate"
}

func (e *Engine) subscribe(ctx context.Context, o options) {
	timeout := o.queryTimeout
	if timeout <= 0 {
		timeout = cache.DefaultQueryTimeout
	}
	bus := eventing.NewRedisBus(ctx, o.logger, o.redis, InvalidationChannel(o.redisPrefix))
	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := bus.Subscribe(sctx, e.invalidate); err != nil {
		e.logger.Warn("cross-process invalidation disabled: %s", err)
		_ = bus.Close()
		return
	}
	e.bus = bus
}

// invalidate drops the local copies of an entry another process changed.
func (e *Engine) invalidate(ctx context.Context, inv eventing.Invalidation) {
	if inv.All {
		defer e.lockAll()()
	} else {
		defer e.lock(inv.Space, inv.Key)()
	}
	for _, tier := range []cache.Tier{e.memory, e.disk} {
		var err error
		if inv.All {
			err = tier.ExpireAll(ctx, inv.Space)
		} else {
			_, err = tier.Expire(ctx, inv.Space, inv.Key)
		}
		if err != nil {
			e.logger.Warn("invalidate %s/%s failed: %s", inv.Space, inv.Key, err)
		}
	}
}

func (e *Engine) publish(ctx context.Context, inv eventing.Invalidation) {
	if e.bus == nil {
		return
	}
	err := e.breaker.Execute(ctx, func(ctx context.Context) error {
		return e.bus.Publish(ctx, inv)
	}, nil)
	if err != nil {
		e.logger.Debug("publish invalidation for %s/%s: %s", inv.Space, inv.Key, err)
	}
}

// Path returns the absolute base directory of the engine.
func (e *Engine) Path() string { return e.path }

// MemoryTier returns the in-process tier.
func (e *Engine) MemoryTier() cache.Tier { return e.memory }

// DiskTier returns the SQLite tier.
func (e *Engine) DiskTier() cache.Tier { return e.disk }

func (e *Engine) check() error {
	if e.closed.Load() {
		return ErrClosed
	}
	return nil
}

// lock takes the stripe of space/key and returns its unlock function. Writes
// hold it, and so does a miss across its lower-tier read and backfill.
func (e *Engine) lock(space, key string) func() {
	m := &e.locks[xxhash.Sum64String(space+"\x00"+key)%keyLocks]
	m.Lock()
	return m.Unlock
}

func (e *Engine) lockAll() func() {
	for i := range e.locks {
		e.locks[i].Lock()
	}
	return func() {
		for i := range e.locks {
			e.locks[i].Unlock()
		}
	}
}

type readResult struct {
	found bool
	entry cache.Entry
}

// Get reads space/key, memory tier first. Concurrent misses on the same key
// share one lower-tier read.
func (e *Engine) Get(ctx context.Context, space, key string) (bool, cache.Entry, error) {
	if err := e.check(); err != nil {
		return false, cache.Entry{}, err
	}
	if found, entry, err := e.memory.Get(ctx, space, key); err == nil && found {
		return true, entry, nil
	}
	v, err, _ := e.reads.Do(space+"\x00"+key, func() (any, error) {
		defer e.lock(space, key)()
		found, entry, err := e.chain.Get(ctx, space, key)
		return readResult{found, entry}, err
	})
	if err != nil {
		return false, cache.Entry{}, err
	}
	r := v.(readResult)
	return r.found, r.entry, nil
}

// Set writes entry to every tier.
func (e *Engine) Set(ctx context.Context, space, key string, entry cache.Entry) error {
	if err := e.check(); err != nil {
		return err
	}
	unlock := e.lock(space, key)
	err := e.chain.Set(ctx, space, key, entry, 0)
	unlock()
	if err != nil {
		e.logger.Warn("set %s/%s failed: %s", space, key, err)
		return err
	}
	e.publish(ctx, eventing.Invalidation{Space: space, Key: key})
	return nil
}

// Contains reports whether space/key is stored in any tier.
func (e *Engine) Contains(ctx context.Context, space, key string) (bool, error) {
	if err := e.check(); err != nil {
		return false, err
	}
	return e.chain.Contains(ctx, space, key)
}

// Remove deletes space/key from every tier.
func (e *Engine) Remove(ctx context.Context, space, key string) error {
	if err := e.check(); err != nil {
		return err
	}
	unlock := e.lock(space, key)
	_, err := e.chain.Expire(ctx, space, key)
	unlock()
	if err != nil {
		return err
	}
	e.publish(ctx, eventing.Invalidation{Space: space, Key: key})
	return nil
}

// RemoveAll deletes every entry of space from every tier.
func (e *Engine) RemoveAll(ctx context.Context, space string) error {
	if err := e.check(); err != nil {
		return err
	}
	unlock := e.lockAll()
	err := e.chain.ExpireAll(ctx, space)
	unlock()
	if err != nil {
		return err
	}
	e.publish(ctx, eventing.Invalidation{Space: space, All: true})
	return nil
}

// Count returns the number of entries in space.
func (e *Engine) Count(ctx context.Context, space string) (uint64, error) {
	if err := e.check(); err != nil {
		return 0, err
	}
	if e.breaker == nil {
		return e.chain.Count(ctx, space)
	}
	keys, err := e.Keys(ctx, space)
	if err != nil {
		return 0, err
	}
	return uint64(len(keys)), nil
}

// Keys returns the keys of space in no particular order. With Redis it is the
// union of the Redis and disk keys.
func (e *Engine) Keys(ctx context.Context, space string) ([]string, error) {
	if err := e.check(); err != nil {
		return nil, err
	}
	keys, err := e.chain.Keys(ctx, space)
	if err != nil || e.breaker == nil {
		return keys, err
	}
	local, err := e.disk.Keys(ctx, space)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		seen[k] = struct{}{}
	}
	for _, k := range local {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// Close releases all tiers. Later calls return ErrClosed.
func (e *Engine) Close(ctx context.Context) error {
	if !e.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	e.logger.Debug("closing engine at %s", e.path)
	var err error
	if e.bus != nil {
		err = e.bus.Close()
	}
	return errors.CombineErrors(err, e.chain.Close(ctx))
}
