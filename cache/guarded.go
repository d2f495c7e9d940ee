package cache

import (
	"context"
	"time"

	"github.com/agentuity/go-cachespace/resilience"
	"github.com/cockroachdb/errors"
)

type guardedCache struct {
	tier     Tier
	breaker  *resilience.Breaker
	fallback Tier
}

var _ Tier = (*guardedCache)(nil)

// NewGuarded wraps a remote tier with a circuit breaker so an unreachable
// backend degrades to a miss instead of stalling every call. While the circuit
// is open Get and Contains miss, writes are skipped, and Count and Keys are
// answered by fallback. Errors from the backend itself are still returned and
// count toward opening the circuit. fallback may be nil.
func NewGuarded(tier Tier, breaker *resilience.Breaker, fallback Tier) Tier {
	return &guardedCache{tier: tier, breaker: breaker, fallback: fallback}
}

func isOpen(err error) bool {
	return errors.Is(err, resilience.ErrOpen)
}

func (c *guardedCache) do(ctx context.Context, fn func(ctx context.Context) error) error {
	err := c.breaker.Execute(ctx, fn, nil)
	if isOpen(err) {
		return nil
	}
	return err
}

func (c *guardedCache) Get(ctx context.Context, space, key string) (found bool, entry Entry, err error) {
	err = c.do(ctx, func(ctx context.Context) error {
		found, entry, err = c.tier.Get(ctx, space, key)
		return err
	})
	if err != nil {
		return false, Entry{}, err
	}
	return found, entry, nil
}

func (c *guardedCache) Set(ctx context.Context, space, key string, entry Entry, expires time.Duration) error {
	return c.do(ctx, func(ctx context.Context) error {
		return c.tier.Set(ctx, space, key, entry, expires)
	})
}

func (c *guardedCache) Contains(ctx context.Context, space, key string) (found bool, err error) {
	err = c.do(ctx, func(ctx context.Context) error {
		found, err = c.tier.Contains(ctx, space, key)
		return err
	})
	return found && err == nil, err
}

func (c *guardedCache) Expire(ctx context.Context, space, key string) (found bool, err error) {
	err = c.do(ctx, func(ctx context.Context) error {
		found, err = c.tier.Expire(ctx, space, key)
		return err
	})
	return found && err == nil, err
}

func (c *guardedCache) ExpireAll(ctx context.Context, space string) error {
	return c.do(ctx, func(ctx context.Context) error {
		return c.tier.ExpireAll(ctx, space)
	})
}

func (c *guardedCache) Count(ctx context.Context, space string) (n uint64, err error) {
	err = c.breaker.Execute(ctx, func(ctx context.Context) error {
		n, err = c.tier.Count(ctx, space)
		return err
	}, nil)
	if isOpen(err) && c.fallback != nil {
		return c.fallback.Count(ctx, space)
	}
	return n, err
}

func (c *guardedCache) Keys(ctx context.Context, space string) (keys []string, err error) {
	err = c.breaker.Execute(ctx, func(ctx context.Context) error {
		keys, err = c.tier.Keys(ctx, space)
		return err
	}, nil)
	if isOpen(err) && c.fallback != nil {
		return c.fallback.Keys(ctx, space)
	}
	return keys, err
}

func (c *guardedCache) Close(ctx context.Context) error {
	return c.tier.Close(ctx)
}
