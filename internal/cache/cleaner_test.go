package cache_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldbrew/edgecache/internal/cache"
)

func TestCleanerSweepDeletesExpiredEntries(t *testing.T) {
	dir := t.TempDir()
	store := cache.NewStore(dir)

	expiredPath := filepath.Join(dir, "expired")
	freshPath := filepath.Join(dir, "fresh")

	require.NoError(t, store.Write(cache.Entry{
		Metadata: cache.Metadata{ContentType: "text/css", CreatedAt: time.Now().Add(-time.Hour), TTL: time.Second, Length: 2},
		Path:     expiredPath,
		Body:     []byte("ok"),
	}))
	require.NoError(t, store.Write(cache.Entry{
		Metadata: cache.Metadata{ContentType: "text/css", CreatedAt: time.Now(), TTL: time.Hour, Length: 2},
		Path:     freshPath,
		Body:     []byte("ok"),
	}))

	cleaner := cache.NewCleaner(store, dir, 20*time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go cleaner.Run(ctx)
	defer cancel()

	require.Eventually(t, func() bool {
		_, err := os.Stat(expiredPath)
		return os.IsNotExist(err)
	}, time.Second, 10*time.Millisecond)

	_, err := os.Stat(freshPath)
	assert.NoError(t, err, "a fresh entry must survive a sweep")
}
