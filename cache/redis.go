package cache

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

type redisCache struct {
	client *redis.Client
	cfg    config
}

var _ Tier = (*redisCache)(nil)

// NewRedis returns a tier backed by Redis. Each entry is a hash with fields
// "k" (kind), "c" (class) and "v" (value).
// The caller owns the redis.Client lifecycle; Close is a no-op on the client.
func NewRedis(client *redis.Client, opts ...Option) Tier {
	return &redisCache{
		client: client,
		cfg:    applyOptions(opts),
	}
}

func (c *redisCache) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, c.cfg.queryTimeout)
}

// spaceEscaper keeps ":" out of the space segment so "a" never matches "a:b".
var spaceEscaper = strings.NewReplacer("%", "%25", ":", "%3A")

func (c *redisCache) spacePrefix(space string) string {
	space = spaceEscaper.Replace(space)
	if c.cfg.prefix == "" {
		return space + ":"
	}
	return c.cfg.prefix + ":" + space + ":"
}

func (c *redisCache) redisKey(space, key string) string {
	return c.spacePrefix(space) + key
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func (c *redisCache) scan(ctx context.Context, space string, fn func(redisKey string) error) error {
	pattern := globEscaper.Replace(c.spacePrefix(space)) + "*"
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := fn(iter.Val()); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (c *redisCache) Get(ctx context.Context, space, key string) (bool, Entry, error) {
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	vals, err := c.client.HMGet(qctx, c.redisKey(space, key), "k", "c", "v").Result()
	if err != nil {
		return false, Entry{}, errors.Wrapf(err, "cache: redis get %s/%s", space, key)
	}
	if len(vals) != 3 || vals[0] == nil || vals[2] == nil {
		return false, Entry{}, nil
	}
	kind, ok := vals[0].(string)
	if !ok || len(kind) == 0 {
		return false, Entry{}, nil
	}
	entry := Entry{Kind: Kind(kind[0])}
	if class, ok := vals[1].(string); ok {
		entry.Class = class
	}
	data, _ := vals[2].(string)
	entry.Data = []byte(data)
	return true, entry, nil
}

func (c *redisCache) Set(ctx context.Context, space, key string, entry Entry, expires time.Duration) error {
	if expires <= 0 {
		expires = c.cfg.defaultExpires
	}
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	k := c.redisKey(space, key)
	pipe := c.client.TxPipeline()
	pipe.Del(qctx, k)
	pipe.HSet(qctx, k, "k", []byte{byte(entry.Kind)}, "c", entry.Class, "v", entry.Data)
	if expires > 0 {
		pipe.Expire(qctx, k, expires)
	}
	if _, err := pipe.Exec(qctx); err != nil {
		return errors.Wrapf(err, "cache: redis set %s/%s", space, key)
	}
	return nil
}

func (c *redisCache) Contains(ctx context.Context, space, key string) (bool, error) {
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	n, err := c.client.Exists(qctx, c.redisKey(space, key)).Result()
	if err != nil {
		return false, errors.Wrapf(err, "cache: redis contains %s/%s", space, key)
	}
	return n > 0, nil
}

func (c *redisCache) Expire(ctx context.Context, space, key string) (bool, error) {
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	n, err := c.client.Del(qctx, c.redisKey(space, key)).Result()
	if err != nil {
		return false, errors.Wrapf(err, "cache: redis expire %s/%s", space, key)
	}
	return n > 0, nil
}

func (c *redisCache) ExpireAll(ctx context.Context, space string) error {
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	err := c.scan(qctx, space, func(k string) error {
		return c.client.Del(qctx, k).Err()
	})
	if err != nil {
		return errors.Wrapf(err, "cache: redis expire all %s", space)
	}
	return nil
}

func (c *redisCache) Count(ctx context.Context, space string) (uint64, error) {
	keys, err := c.Keys(ctx, space)
	return uint64(len(keys)), err
}

func (c *redisCache) Keys(ctx context.Context, space string) ([]string, error) {
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	prefix := c.spacePrefix(space)
	seen := make(map[string]struct{})
	keys := make([]string, 0)
	err := c.scan(qctx, space, func(k string) error {
		key := strings.TrimPrefix(k, prefix)
		// SCAN may return a key more than once
		if _, dup := seen[key]; !dup {
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "cache: redis keys %s", space)
	}
	return keys, nil
}

// Close is a no-op; the caller owns the redis.Client lifecycle.
func (c *redisCache) Close(_ context.Context) error {
	return nil
}
