package cache

import (
	"context"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/paulbellamy/ratecounter"

	"github.com/coldbrew/edgecache/internal/log"
)

// DefaultSweepInterval is the cleaner's cadence when no interval is
// configured.
const DefaultSweepInterval = 60 * time.Second

// CleanerMetrics lets the cleaner report deletions without importing the
// metrics package directly.
type CleanerMetrics interface {
	AddSweepDeletions(n int)
}

// Cleaner periodically walks the cache root and deletes expired entries.
type Cleaner struct {
	store    *Store
	root     string
	interval time.Duration
	metrics  CleanerMetrics
}

// NewCleaner builds a Cleaner. A zero interval defaults to
// DefaultSweepInterval.
func NewCleaner(store *Store, root string, interval time.Duration, metrics CleanerMetrics) *Cleaner {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Cleaner{store: store, root: root, interval: interval, metrics: metrics}
}

// Run ticks every c.interval until ctx is done, sweeping the cache
// directory on each tick.
func (c *Cleaner) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

// sweep walks the cache directory once, deleting every regular file whose
// header reports it expired. I/O errors for a single file are logged and
// the walk continues.
func (c *Cleaner) sweep() {
	now := time.Now()
	rate := ratecounter.NewRateCounter(time.Second)
	deleted := 0

	err := filepath.WalkDir(c.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warnf("cache cleaner: walk error at %s: %v", path, err)
			return nil
		}
		if d.IsDir() {
			return nil
		}

		meta, err := c.store.ReadHeader(path)
		if err != nil {
			log.Warnf("cache cleaner: failed to read header for %s: %v", path, err)
			return nil
		}

		if meta.IsExpired(now) {
			if err := c.store.Delete(path); err != nil {
				log.Warnf("cache cleaner: failed to delete %s: %v", path, err)
				return nil
			}
			deleted++
			rate.Incr(1)
		}
		return nil
	})
	if err != nil {
		log.Warnf("cache cleaner: sweep of %s failed: %v", c.root, err)
	}

	if c.metrics != nil && deleted > 0 {
		c.metrics.AddSweepDeletions(deleted)
	}
	log.Debugf("cache cleaner: swept %s, deleted %d expired entries, %d/s", c.root, deleted, rate.Rate())
}
