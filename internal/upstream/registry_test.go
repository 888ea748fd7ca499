package upstream_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldbrew/edgecache/internal/upstream"
)

func eps(n int) []upstream.Endpoint {
	out := make([]upstream.Endpoint, n)
	for i := range out {
		out[i] = upstream.Endpoint{Host: "svc", Port: uint16(9000 + i)}
	}
	return out
}

func TestNewRequiresEndpoints(t *testing.T) {
	_, err := upstream.New(upstream.WithEndpoints(nil))
	assert.Error(t, err)
}

func TestTakeThenPutApproximatesRoundRobin(t *testing.T) {
	endpoints := eps(3)
	reg, err := upstream.New(upstream.WithEndpoints(endpoints))
	require.NoError(t, err)

	ctx := context.Background()
	counts := map[uint16]int{}

	// N take-then-immediately-put cycles against k endpoints, sequentially,
	// should distribute deterministically round robin (no contention).
	const rounds = 30
	for i := 0; i < rounds; i++ {
		ep, err := reg.Take(ctx)
		require.NoError(t, err)
		counts[ep.Port]++
		require.NoError(t, reg.Put(ctx, ep))
	}

	for _, ep := range endpoints {
		assert.Equal(t, rounds/len(endpoints), counts[ep.Port])
	}
}

func TestConcurrentBorrowConservesTokenCount(t *testing.T) {
	endpoints := eps(4)
	reg, err := upstream.New(upstream.WithEndpoints(endpoints))
	require.NoError(t, err)

	ctx := context.Background()
	const workers = 50
	const cyclesEach = 20

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < cyclesEach; j++ {
				ep, err := reg.Take(ctx)
				assert.NoError(t, err)
				assert.NoError(t, reg.Put(ctx, ep))
			}
		}()
	}
	wg.Wait()

	// the ring must still hold exactly len(endpoints) tokens: drain it fully.
	seen := 0
	for i := 0; i < len(endpoints); i++ {
		_, err := reg.Take(ctx)
		require.NoError(t, err)
		seen++
	}
	assert.Equal(t, len(endpoints), seen)
}
