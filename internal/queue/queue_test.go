package queue_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldbrew/edgecache/internal/queue"
)

func TestPushPopFIFO(t *testing.T) {
	q := queue.New[int](4)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.NoError(t, q.Push(ctx, i))
	}

	for i := 0; i < 4; i++ {
		v, err := q.Pop(ctx)
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
}

func TestPushBlocksWhenFull(t *testing.T) {
	q := queue.New[int](1)
	ctx := context.Background()
	require.NoError(t, q.Push(ctx, 1))

	pushed := make(chan struct{})
	go func() {
		_ = q.Push(ctx, 2)
		close(pushed)
	}()

	select {
	case <-pushed:
		t.Fatal("push on a full queue returned before a pop freed space")
	case <-time.After(50 * time.Millisecond):
	}

	_, err := q.Pop(ctx)
	require.NoError(t, err)

	select {
	case <-pushed:
	case <-time.After(time.Second):
		t.Fatal("push did not unblock after pop freed space")
	}
}

func TestPopBlocksWhenEmptyThenCtxCancel(t *testing.T) {
	q := queue.New[int](1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Pop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConcurrentProducersConsumers(t *testing.T) {
	q := queue.New[int](8)
	ctx := context.Background()
	const n = 500

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			require.NoError(t, q.Push(ctx, i))
		}
	}()

	sum := 0
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			v, err := q.Pop(ctx)
			require.NoError(t, err)
			sum += v
		}
	}()

	wg.Wait()
	assert.Equal(t, n*(n-1)/2, sum)
}

func TestCloseReportsEndOfStream(t *testing.T) {
	q := queue.New[int](1)
	ctx := context.Background()
	require.NoError(t, q.Push(ctx, 7))
	q.Close()

	v, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	_, err = q.Pop(ctx)
	assert.ErrorIs(t, err, queue.ErrClosed)
}
