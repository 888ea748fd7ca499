// Package metrics registers this proxy's Prometheus collectors and
// carries a per-connection request id through context.
package metrics

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the set of collectors this proxy exposes on /metrics.
type Registry struct {
	JobsInFlight     prometheus.Gauge
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
	CacheWrites      prometheus.Counter
	CacheWriteSkips  prometheus.Counter
	UpstreamRetries  prometheus.Counter
	SweepDeletions   prometheus.Counter
}

// New builds and registers a Registry against reg.
func New(reg prometheus.Registerer) *Registry {
	m := &Registry{
		JobsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "edgecache_jobs_inflight",
			Help: "Connection jobs currently being handled by the worker pool.",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "edgecache_cache_hits_total",
			Help: "GET requests served from a fresh cache entry.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "edgecache_cache_misses_total",
			Help: "GET requests that fell through to an upstream fetch.",
		}),
		CacheWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "edgecache_cache_writes_total",
			Help: "Cache entries published to disk.",
		}),
		CacheWriteSkips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "edgecache_cache_write_skips_total",
			Help: "Pending writes skipped because an entry already existed at the target path.",
		}),
		UpstreamRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "edgecache_upstream_retries_total",
			Help: "Upstream connect attempts beyond the first for a single request.",
		}),
		SweepDeletions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "edgecache_sweep_deletions_total",
			Help: "Expired cache entries removed by the cleaner.",
		}),
	}

	reg.MustRegister(
		m.JobsInFlight, m.CacheHits, m.CacheMisses,
		m.CacheWrites, m.CacheWriteSkips, m.UpstreamRetries, m.SweepDeletions,
	)
	return m
}

// IncCacheWrites implements cache.WriterMetrics.
func (m *Registry) IncCacheWrites() { m.CacheWrites.Inc() }

// IncCacheWriteSkips implements cache.WriterMetrics.
func (m *Registry) IncCacheWriteSkips() { m.CacheWriteSkips.Inc() }

// AddSweepDeletions implements cache.CleanerMetrics.
func (m *Registry) AddSweepDeletions(n int) { m.SweepDeletions.Add(float64(n)) }

// SetInFlight wires into workerpool.WithInFlightGauge.
func (m *Registry) SetInFlight(delta int) { m.JobsInFlight.Add(float64(delta)) }

// IncCacheHit implements handler.Metrics.
func (m *Registry) IncCacheHit() { m.CacheHits.Inc() }

// IncCacheMiss implements handler.Metrics.
func (m *Registry) IncCacheMiss() { m.CacheMisses.Inc() }

// AddUpstreamRetries implements handler.Metrics.
func (m *Registry) AddUpstreamRetries(n int) { m.UpstreamRetries.Add(float64(n)) }

type requestIDKey struct{}

// WithRequestID attaches a freshly generated request id to ctx.
func WithRequestID(ctx context.Context) (context.Context, string) {
	id := generateRequestID()
	return context.WithValue(ctx, requestIDKey{}, id), id
}

// RequestIDFromContext returns the id WithRequestID attached, or "" if none.
func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

func generateRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return ""
	}
	return hex.EncodeToString(b)
}
