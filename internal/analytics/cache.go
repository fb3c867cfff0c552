package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"golang.org/x/sync/singleflight"
)

const defaultCacheEntries = 1024

// queryCache memoizes aggregation results for a short TTL. A nil
// *queryCache is valid and caches nothing.
type queryCache struct {
	ttl     time.Duration
	entries *ristretto.Cache[string, any]
	sf      singleflight.Group
}

func newQueryCache(ttl time.Duration, maxEntries int64) (*queryCache, error) {
	if ttl <= 0 {
		return nil, nil
	}
	if maxEntries <= 0 {
		maxEntries = defaultCacheEntries
	}
	entries, err := ristretto.NewCache(&ristretto.Config[string, any]{
		NumCounters:        maxEntries * 10,
		MaxCost:            maxEntries,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create query cache: %w", err)
	}
	return &queryCache{ttl: ttl, entries: entries}, nil
}

func (c *queryCache) clear() {
	if c == nil {
		return
	}
	c.entries.Clear()
}

func (c *queryCache) close() {
	if c == nil {
		return
	}
	c.entries.Close()
}

func (c *queryCache) get(key string, fn func() (any, error)) (any, error) {
	if c == nil {
		return fn()
	}
	if value, ok := c.entries.Get(key); ok {
		return value, nil
	}

	value, err, _ := c.sf.Do(key, func() (any, error) {
		if value, ok := c.entries.Get(key); ok {
			return value, nil
		}
		v, err := fn()
		if err != nil {
			return nil, err
		}
		c.entries.SetWithTTL(key, v, 1, c.ttl)
		// Sets are buffered; make the value visible to the next reader.
		c.entries.Wait()
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// cached runs fn through the service cache under key. Concurrent callers
// share one load, which runs detached from the first caller's cancellation.
func cached[T any](ctx context.Context, s *Service, key string, fn func(context.Context) (T, error)) (T, error) {
	if s.cache == nil {
		return fn(ctx)
	}
	shared := context.WithoutCancel(ctx)
	v, err := s.cache.get(key, func() (any, error) {
		return fn(shared)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}
