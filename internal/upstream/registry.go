// Package upstream implements a round-robin borrow/return registry: a
// bounded queue seeded with exactly one token per configured endpoint.
// Workers Take a token, use the endpoint, and Put it straight back,
// which rotates the head of the queue under contention without a
// central counter.
package upstream

import (
	"context"
	"fmt"

	"github.com/coldbrew/edgecache/internal/queue"
)

// Endpoint is an immutable (host, port) upstream address.
type Endpoint struct {
	Host string
	Port uint16
}

// Addr renders the endpoint as host:port, the form used for the rewritten
// Host header and the dial target.
func (e Endpoint) Addr() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

// Registry rotates a fixed set of upstream endpoints across concurrent
// callers via take-then-immediately-put.
type Registry struct {
	tokens *queue.Queue[Endpoint]
	n      int
}

// Option configures a Registry at construction.
type Option func(*registryOpts)

type registryOpts struct {
	endpoints []Endpoint
}

// WithEndpoints sets the upstream list. Required; New returns an error if
// it is empty.
func WithEndpoints(endpoints []Endpoint) Option {
	return func(o *registryOpts) { o.endpoints = endpoints }
}

// New builds a Registry seeded with exactly one token per endpoint.
func New(opts ...Option) (*Registry, error) {
	o := &registryOpts{}
	for _, opt := range opts {
		opt(o)
	}
	if len(o.endpoints) == 0 {
		return nil, fmt.Errorf("upstream: at least one endpoint is required")
	}

	tokens := queue.New[Endpoint](len(o.endpoints))
	ctx := context.Background()
	for _, ep := range o.endpoints {
		_ = tokens.Push(ctx, ep)
	}

	return &Registry{tokens: tokens, n: len(o.endpoints)}, nil
}

// Take removes and returns the next endpoint, blocking if none are
// currently available (every token borrowed).
func (r *Registry) Take(ctx context.Context) (Endpoint, error) {
	return r.tokens.Pop(ctx)
}

// Put returns a previously-taken endpoint to the ring.
func (r *Registry) Put(ctx context.Context, ep Endpoint) error {
	return r.tokens.Push(ctx, ep)
}

// Len reports how many endpoints are currently in the ring, i.e. not
// borrowed. Advisory only under concurrent access.
func (r *Registry) Len() int {
	return r.tokens.Len()
}
