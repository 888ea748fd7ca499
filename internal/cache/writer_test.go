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
	"github.com/coldbrew/edgecache/internal/queue"
)

func TestWriterPublishesPendingEntry(t *testing.T) {
	dir := t.TempDir()
	store := cache.NewStore(dir)
	pending := queue.New[cache.PendingWrite](4)
	writer := cache.NewWriter(store, pending, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go writer.Run(ctx)
	defer cancel()

	path := filepath.Join(dir, "hit")
	require.NoError(t, pending.Push(ctx, cache.PendingWrite{
		Path:        path,
		ContentType: "image/gif",
		CreatedAt:   time.Unix(1, 0),
		TTL:         time.Minute,
		Body:        []byte("gif89a"),
	}))

	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, time.Second, 10*time.Millisecond)

	meta, err := store.ReadHeader(path)
	require.NoError(t, err)
	body, err := store.Read(path, meta)
	require.NoError(t, err)
	assert.Equal(t, "gif89a", string(body))
}

func TestWriterFirstWriterWinsSkipsExisting(t *testing.T) {
	dir := t.TempDir()
	store := cache.NewStore(dir)
	path := filepath.Join(dir, "exists")

	require.NoError(t, store.Write(cache.Entry{
		Metadata: cache.Metadata{ContentType: "text/css", CreatedAt: time.Unix(1, 0), TTL: time.Minute, Length: 3},
		Path:     path,
		Body:     []byte("old"),
	}))

	pending := queue.New[cache.PendingWrite](4)
	writer := cache.NewWriter(store, pending, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go writer.Run(ctx)
	defer cancel()

	require.NoError(t, pending.Push(ctx, cache.PendingWrite{
		Path:        path,
		ContentType: "text/css",
		CreatedAt:   time.Unix(2, 0),
		TTL:         time.Minute,
		Body:        []byte("newer"),
	}))

	time.Sleep(50 * time.Millisecond)

	meta, err := store.ReadHeader(path)
	require.NoError(t, err)
	body, err := store.Read(path, meta)
	require.NoError(t, err)
	assert.Equal(t, "old", string(body), "an existing entry must not be overwritten by a racing write")
}
