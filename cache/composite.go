package cache

import (
	"context"
	"time"
)

type compositeCache struct {
	tiers []Tier
}

var _ Tier = (*compositeCache)(nil)

// NewComposite returns a Tier that chains multiple tiers together, fastest first.
// Get checks tiers in order and returns the first hit, copying it back into every
// tier above the one that answered. Set, Expire and ExpireAll apply to all tiers.
// Count and Keys are answered by the last tier, which is expected to be the most
// durable one.
// At least one tier must be provided; panics if empty.
func NewComposite(tiers ...Tier) Tier {
	if len(tiers) == 0 {
		panic("cache: NewComposite requires at least one tier")
	}
	return &compositeCache{tiers: tiers}
}

func (c *compositeCache) last() Tier {
	return c.tiers[len(c.tiers)-1]
}

func (c *compositeCache) Get(ctx context.Context, space, key string) (bool, Entry, error) {
	for i, tier := range c.tiers {
		found, entry, err := tier.Get(ctx, space, key)
		if err != nil {
			return false, Entry{}, err
		}
		if found {
			// Backfill failures only cost a slower next read.
			for _, upper := range c.tiers[:i] {
				_ = upper.Set(ctx, space, key, entry, 0)
			}
			return true, entry, nil
		}
	}
	return false, Entry{}, nil
}

func (c *compositeCache) Set(ctx context.Context, space, key string, entry Entry, expires time.Duration) error {
	var firstErr error
	for _, tier := range c.tiers {
		if err := tier.Set(ctx, space, key, entry, expires); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *compositeCache) Contains(ctx context.Context, space, key string) (bool, error) {
	for _, tier := range c.tiers {
		found, err := tier.Contains(ctx, space, key)
		if err != nil {
			return false, err
		}
		if found {
			return true, nil
		}
	}
	return false, nil
}

func (c *compositeCache) Expire(ctx context.Context, space, key string) (bool, error) {
	anyFound := false
	for _, tier := range c.tiers {
		found, err := tier.Expire(ctx, space, key)
		if err != nil {
			return anyFound, err
		}
		if found {
			anyFound = true
		}
	}
	return anyFound, nil
}

func (c *compositeCache) ExpireAll(ctx context.Context, space string) error {
	var firstErr error
	for _, tier := range c.tiers {
		if err := tier.ExpireAll(ctx, space); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *compositeCache) Count(ctx context.Context, space string) (uint64, error) {
	return c.last().Count(ctx, space)
}

func (c *compositeCache) Keys(ctx context.Context, space string) ([]string, error) {
	return c.last().Keys(ctx, space)
}

func (c *compositeCache) Close(ctx context.Context) error {
	var firstErr error
	for _, tier := range c.tiers {
		if err := tier.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
