package exchangerate

import (
	"context"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/apiwatch/dashboard/internal/pricing"
)

const (
	// DefaultTTL is how long a fetched rate is served without refreshing.
	DefaultTTL = time.Hour
	// FallbackSource marks rates that did not come from the provider.
	FallbackSource = "fallback"
)

// Cache serves the current rate, refreshing it from a Fetcher when stale.
// The zero value is not usable; construct with NewCache.
type Cache struct {
	fetcher      Fetcher
	ttl          time.Duration
	fallback     float64
	now          func() time.Time
	snapshotPath string

	mu        sync.RWMutex
	current   *Rate
	fetchedAt time.Time

	sf singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithTTL sets how long a fetched rate stays fresh.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithFallbackRate sets the rate served when nothing was ever fetched.
func WithFallbackRate(rate float64) Option {
	return func(c *Cache) { c.fallback = pricing.EffectiveRate(rate) }
}

// WithSnapshot persists every successful fetch to path.
func WithSnapshot(path string) Option {
	return func(c *Cache) { c.snapshotPath = path }
}

// NewCache returns an empty cache in front of fetcher.
func NewCache(fetcher Fetcher, opts ...Option) *Cache {
	c := &Cache{
		fetcher:  fetcher,
		ttl:      DefaultTTL,
		fallback: pricing.DefaultUSDToTHB,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns a fresh rate, refreshing when needed. On refresh failure it
// serves the last known rate even if expired, then the fallback rate.
func (c *Cache) Get(ctx context.Context) Rate {
	if rate, ok := c.fresh(); ok {
		return rate
	}
	if rate, err := c.Refresh(ctx); err == nil {
		return rate
	}
	return c.Current()
}

// Refresh fetches a new rate unconditionally. Concurrent calls share one
// upstream request, which is not cancelled with the first caller.
func (c *Cache) Refresh(ctx context.Context) (Rate, error) {
	shared := context.WithoutCancel(ctx)
	v, err, _ := c.sf.Do("rate", func() (any, error) {
		rate, err := c.fetcher.Fetch(shared)
		if err != nil {
			log.WithError(err).Warn("exchange rate refresh failed")
			return Rate{}, err
		}
		c.set(rate, c.now())
		if c.snapshotPath != "" {
			if errSave := SaveSnapshot(c.snapshotPath, rate); errSave != nil {
				log.WithError(errSave).Warn("failed to persist exchange rate snapshot")
			}
		}
		return rate, nil
	})
	if err != nil {
		return Rate{}, err
	}
	return v.(Rate), nil
}

// Current returns the last known rate without contacting the provider, or
// the fallback rate when none is known.
func (c *Cache) Current() Rate {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current != nil {
		return *c.current
	}
	now := c.now().UTC()
	return Rate{
		Rate:       c.fallback,
		LastUpdate: now.Format(http.TimeFormat),
		NextUpdate: now.Add(c.ttl).Format(http.TimeFormat),
		Source:     FallbackSource,
	}
}

// Restore seeds the cache with a previously known rate. The rate is treated
// as expired, so the next Get still tries the provider first.
func (c *Cache) Restore(rate Rate) {
	c.set(rate, time.Time{})
}

func (c *Cache) fresh() (Rate, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil || c.fetchedAt.IsZero() {
		return Rate{}, false
	}
	if c.now().Sub(c.fetchedAt) >= c.ttl {
		return Rate{}, false
	}
	return *c.current, true
}

func (c *Cache) set(rate Rate, fetchedAt time.Time) {
	c.mu.Lock()
	c.current = &rate
	c.fetchedAt = fetchedAt
	c.mu.Unlock()
}
