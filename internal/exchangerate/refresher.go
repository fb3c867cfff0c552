package exchangerate

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

const defaultRefreshTimeout = 15 * time.Second

// Refresher keeps a Cache warm by refreshing it on a fixed interval.
type Refresher struct {
	cache    *Cache
	interval time.Duration
	timeout  time.Duration

	started   atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// NewRefresher returns a refresher for cache. A non-positive interval
// returns nil; Start and Stop are no-ops on a nil Refresher.
func NewRefresher(cache *Cache, interval time.Duration) *Refresher {
	if cache == nil || interval <= 0 {
		return nil
	}
	return &Refresher{
		cache:    cache,
		interval: interval,
		timeout:  defaultRefreshTimeout,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the refresh loop. The first refresh runs immediately.
func (r *Refresher) Start() {
	if r == nil {
		return
	}
	r.startOnce.Do(func() {
		select {
		case <-r.stop:
			return
		default:
		}
		r.started.Store(true)
		go r.loop()
	})
}

// Stop ends the loop and waits for an in-flight refresh to finish.
func (r *Refresher) Stop() {
	if r == nil {
		return
	}
	alreadyStopped := true
	r.stopOnce.Do(func() {
		alreadyStopped = false
		close(r.stop)
	})
	if !r.started.Load() {
		if !alreadyStopped {
			close(r.done)
		}
		return
	}
	<-r.done
}

func (r *Refresher) loop() {
	defer close(r.done)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-timer.C:
			r.runOnce()
			timer.Reset(r.interval)
		}
	}
}

func (r *Refresher) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	rate, err := r.cache.Refresh(ctx)
	if err != nil {
		return
	}
	log.WithFields(log.Fields{
		"rate":   rate.Rate,
		"source": rate.Source,
	}).Debug("exchange rate refreshed")
}
