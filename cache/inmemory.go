package cache

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

type shard struct {
	mutex  sync.Mutex
	spaces map[string]map[string]*value
}

type inMemoryCache struct {
	ctx       context.Context
	cancel    context.CancelFunc
	shards    []*shard
	waitGroup sync.WaitGroup
	once      sync.Once
	cfg       config
}

var _ Tier = (*inMemoryCache)(nil)

func (c *inMemoryCache) shardFor(space, key string) *shard {
	d := xxhash.New()
	d.WriteString(space)
	d.Write([]byte{0})
	d.WriteString(key)
	return c.shards[d.Sum64()%uint64(len(c.shards))]
}

// lookup returns the live value for space/key, dropping it if expired.
// Caller must hold s.mutex.
func (s *shard) lookup(space, key string, now time.Time) (*value, bool) {
	keys, ok := s.spaces[space]
	if !ok {
		return nil, false
	}
	val, ok := keys[key]
	if !ok {
		return nil, false
	}
	if val.expired(now) {
		s.remove(space, key)
		return nil, false
	}
	return val, true
}

func (s *shard) remove(space, key string) bool {
	keys, ok := s.spaces[space]
	if !ok {
		return false
	}
	if _, ok := keys[key]; !ok {
		return false
	}
	delete(keys, key)
	if len(keys) == 0 {
		delete(s.spaces, space)
	}
	return true
}

func (c *inMemoryCache) Get(_ context.Context, space, key string) (bool, Entry, error) {
	s := c.shardFor(space, key)
	s.mutex.Lock()
	defer s.mutex.Unlock()
	val, ok := s.lookup(space, key, time.Now())
	if !ok {
		return false, Entry{}, nil
	}
	return true, val.entry, nil
}

func (c *inMemoryCache) Set(_ context.Context, space, key string, entry Entry, expires time.Duration) error {
	if expires <= 0 {
		expires = c.cfg.defaultExpires
	}
	s := c.shardFor(space, key)
	s.mutex.Lock()
	keys, ok := s.spaces[space]
	if !ok {
		keys = make(map[string]*value)
		s.spaces[space] = keys
	}
	keys[key] = &value{entry: entry, expires: expiresAt(time.Now(), expires)}
	s.mutex.Unlock()
	return nil
}

func (c *inMemoryCache) Contains(_ context.Context, space, key string) (bool, error) {
	s := c.shardFor(space, key)
	s.mutex.Lock()
	_, ok := s.lookup(space, key, time.Now())
	s.mutex.Unlock()
	return ok, nil
}

func (c *inMemoryCache) Expire(_ context.Context, space, key string) (bool, error) {
	s := c.shardFor(space, key)
	s.mutex.Lock()
	ok := s.remove(space, key)
	s.mutex.Unlock()
	return ok, nil
}

func (c *inMemoryCache) ExpireAll(_ context.Context, space string) error {
	for _, s := range c.shards {
		s.mutex.Lock()
		delete(s.spaces, space)
		s.mutex.Unlock()
	}
	return nil
}

func (c *inMemoryCache) Count(ctx context.Context, space string) (uint64, error) {
	keys, err := c.Keys(ctx, space)
	return uint64(len(keys)), err
}

func (c *inMemoryCache) Keys(_ context.Context, space string) ([]string, error) {
	now := time.Now()
	result := make([]string, 0)
	for _, s := range c.shards {
		s.mutex.Lock()
		for key, val := range s.spaces[space] {
			if !val.expired(now) {
				result = append(result, key)
			}
		}
		s.mutex.Unlock()
	}
	return result, nil
}

func (c *inMemoryCache) Close(_ context.Context) error {
	c.once.Do(func() {
		c.cancel()
		c.waitGroup.Wait()
	})
	return nil
}

func (c *inMemoryCache) sweep(now time.Time) {
	for _, s := range c.shards {
		s.mutex.Lock()
		for space, keys := range s.spaces {
			for key, val := range keys {
				if val.expired(now) {
					delete(keys, key)
				}
			}
			if len(keys) == 0 {
				delete(s.spaces, space)
			}
		}
		s.mutex.Unlock()
	}
}

func (c *inMemoryCache) run() {
	defer c.waitGroup.Done()
	ticker := time.NewTicker(c.cfg.expiryCheck)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case now := <-ticker.C:
			c.sweep(now)
		}
	}
}

// NewInMemory returns the in-process memory tier. Entries are kept as-is with
// no serialization. The background sweeper stops when parent is cancelled or
// Close is called.
func NewInMemory(parent context.Context, opts ...Option) Tier {
	cfg := applyOptions(opts)
	ctx, cancel := context.WithCancel(parent)
	c := &inMemoryCache{
		ctx:    ctx,
		cancel: cancel,
		shards: make([]*shard, cfg.shards),
		cfg:    cfg,
	}
	for i := range c.shards {
		c.shards[i] = &shard{spaces: make(map[string]map[string]*value)}
	}
	c.waitGroup.Add(1)
	go c.run()
	return c
}
