// Package handler implements the connection lifecycle: parse, borrow an
// upstream, serve from cache or proxy with retry, enqueue a cache write
// when the response qualifies, and reply to the client. One Handle call
// owns exactly one accepted connection for its whole request/response
// exchange.
package handler

import (
	"bufio"
	"context"
	"errors"
	"net"
	"time"

	"github.com/coldbrew/edgecache/internal/cache"
	"github.com/coldbrew/edgecache/internal/httpwire"
	"github.com/coldbrew/edgecache/internal/log"
	"github.com/coldbrew/edgecache/internal/metrics"
	"github.com/coldbrew/edgecache/internal/upstream"
	pkgerrors "github.com/coldbrew/edgecache/pkg/errors"
)

// Metrics lets the handler report hits, misses, and retries against any
// collector implementation, not just *metrics.Registry.
type Metrics interface {
	IncCacheHit()
	IncCacheMiss()
	AddUpstreamRetries(n int)
}

// Dialer opens a connection to an upstream endpoint. *net.Dialer satisfies
// this; tests substitute a fake.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Config are the knobs that govern the proxy/cache loop.
type Config struct {
	ServerIdentifier string
	CacheTTL         time.Duration
	FailureRetries   int
	FailureDelay     time.Duration
	DialTimeout      time.Duration
}

// Handler wires together the upstream registry, the cache store, and the
// pending-write queue behind the single entry point Handle.
type Handler struct {
	cfg      Config
	registry *upstream.Registry
	store    *cache.Store
	pending  enqueuer
	dialer   Dialer
	metrics  Metrics
}

// enqueuer is the subset of *queue.Queue[cache.PendingWrite] the handler
// needs; narrowed to an interface so tests can swap in a recording stub.
type enqueuer interface {
	Push(ctx context.Context, pw cache.PendingWrite) error
}

// New builds a Handler. metrics may be nil (metrics become no-ops). A zero
// cfg.DialTimeout leaves upstream dials without a timeout of their own.
func New(cfg Config, registry *upstream.Registry, store *cache.Store, pending enqueuer, dialer Dialer, metrics Metrics) *Handler {
	return &Handler{cfg: cfg, registry: registry, store: store, pending: pending, dialer: dialer, metrics: metrics}
}

// Handle owns conn for the lifetime of one request/response exchange and
// always closes it before returning. Every call gets its own request id,
// attached to ctx and stamped on this connection's log lines, the way the
// teacher's RequestMetric scopes one id per handled request.
func (h *Handler) Handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	ctx, reqID := metrics.WithRequestID(ctx)
	logger := log.With("request_id", reqID)

	reader := bufio.NewReader(conn)
	req, err := httpwire.ParseRequest(reader)
	if err != nil {
		if !errors.Is(err, httpwire.ErrMalformed) && !errors.Is(err, httpwire.ErrChunkedUnsupported) {
			logger.Debugf("reading request failed, closing: %v", err)
			return
		}
		logger.Warnf("malformed request: %v", err)
		h.reply(conn, httpwire.NewResponse(400, "Bad Request", "text/plain", []byte(err.Error())))
		return
	}

	if req.Method == httpwire.GET {
		if resp, ok := h.serveFromCache(req); ok {
			logger.Debugf("served %s from cache", req.URL.Path)
			h.reply(conn, resp)
			return
		}
	}

	resp, perr := h.proxy(ctx, req)
	if perr != nil {
		logger.Errorf("proxying %s %s failed: %v", req.Method, req.URL.Path, perr)
		reason := "Internal Server Error"
		if perr.Code == 502 {
			reason = "Bad Gateway"
		}
		h.reply(conn, httpwire.NewResponse(perr.Code, reason, "text/plain", []byte(perr.Error())))
		return
	}

	h.maybeCache(req, resp)
	h.reply(conn, resp)
}

// serveFromCache answers a GET out of the on-disk cache when a fresh
// entry exists at the mapped path.
func (h *Handler) serveFromCache(req *httpwire.Request) (*httpwire.Response, bool) {
	path, err := h.store.PathFor(req.URL.RequestURI())
	if err != nil {
		return nil, false
	}

	meta, err := h.store.ReadHeader(path)
	if err != nil {
		h.incCacheMiss()
		return nil, false
	}
	if meta.IsExpired(time.Now()) {
		h.incCacheMiss()
		return nil, false
	}

	body, err := h.store.Read(path, meta)
	if err != nil {
		h.incCacheMiss()
		return nil, false
	}

	h.incCacheHit()
	resp := httpwire.NewResponse(200, "OK", meta.ContentType, body)
	resp.SetServerIdentifier(h.cfg.ServerIdentifier)
	return resp, true
}

// proxy borrows an upstream endpoint and puts it straight back to the
// registry, then forwards req to it, retrying up to cfg.FailureRetries
// times on dial/write/read failure and waiting cfg.FailureDelay between
// attempts. A chunked upstream response is not retried and yields 502.
func (h *Handler) proxy(ctx context.Context, req *httpwire.Request) (*httpwire.Response, *pkgerrors.Error) {
	ep, err := h.registry.Take(ctx)
	if err != nil {
		return nil, pkgerrors.New(500).WithCause(err)
	}
	_ = h.registry.Put(context.Background(), ep)

	attempts := h.cfg.FailureRetries + 1
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			h.incRetry()
			if h.cfg.FailureDelay > 0 {
				time.Sleep(h.cfg.FailureDelay)
			}
		}

		resp, err := h.roundTrip(ctx, ep.Addr(), req)
		if err == nil {
			resp.SetServerIdentifier(h.cfg.ServerIdentifier)
			return resp, nil
		}
		if errors.Is(err, httpwire.ErrChunkedUnsupported) {
			return nil, pkgerrors.New(502).WithCause(err)
		}
		lastErr = err
	}

	return nil, pkgerrors.New(500).WithCause(lastErr)
}

func (h *Handler) roundTrip(ctx context.Context, addr string, req *httpwire.Request) (*httpwire.Response, error) {
	dialCtx := ctx
	if h.cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, h.cfg.DialTimeout)
		defer cancel()
	}

	conn, err := h.dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	upstreamReq := *req
	upstreamReq.Header = req.Header.Clone()
	upstreamReq.PrepareForUpstream(addr)

	if err := upstreamReq.Serialize(conn); err != nil {
		return nil, err
	}
	return httpwire.ParseResponse(bufio.NewReader(conn))
}

// maybeCache enqueues a pending write when the response qualifies under
// cache.Cacheable. Like every other queue in this proxy, a full pending
// queue blocks the caller rather than dropping the write.
func (h *Handler) maybeCache(req *httpwire.Request, resp *httpwire.Response) {
	if h.pending == nil {
		return
	}
	contentType := resp.Header.Get("content-type")
	if !cache.Cacheable(string(req.Method), resp.Status, len(resp.Body), contentType) {
		return
	}
	path, err := h.store.PathFor(req.URL.RequestURI())
	if err != nil {
		return
	}

	_ = h.pending.Push(context.Background(), cache.PendingWrite{
		Path:        path,
		ContentType: contentType,
		CreatedAt:   time.Now(),
		TTL:         h.cfg.CacheTTL,
		Body:        resp.Body,
	})
}

func (h *Handler) reply(conn net.Conn, resp *httpwire.Response) {
	resp.SetServerIdentifier(h.cfg.ServerIdentifier)
	_ = resp.Serialize(conn)
}

func (h *Handler) incCacheHit() {
	if h.metrics != nil {
		h.metrics.IncCacheHit()
	}
}

func (h *Handler) incCacheMiss() {
	if h.metrics != nil {
		h.metrics.IncCacheMiss()
	}
}

func (h *Handler) incRetry() {
	if h.metrics != nil {
		h.metrics.AddUpstreamRetries(1)
	}
}
