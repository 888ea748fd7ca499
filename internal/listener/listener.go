// Package listener runs the accept loop: one net.Listener, one
// connection handed to the worker pool per Accept, with zero-downtime
// restarts via tableflip when an Upgrader is supplied.
package listener

import (
	"context"
	"net"
	"time"

	"github.com/cloudflare/tableflip"

	"github.com/coldbrew/edgecache/internal/log"
	"github.com/coldbrew/edgecache/internal/workerpool"
)

// ConnHandler processes one accepted connection to completion.
type ConnHandler func(ctx context.Context, conn net.Conn)

// Listener owns the accept loop for a single listening address.
type Listener struct {
	addr   string
	pool   *workerpool.Pool
	handle ConnHandler
	upg    *tableflip.Upgrader
}

// New builds a Listener. upg may be nil, in which case Listen falls back
// to a plain net.Listen (for any deployment that doesn't need graceful
// binary upgrades).
func New(addr string, pool *workerpool.Pool, handle ConnHandler, upg *tableflip.Upgrader) *Listener {
	return &Listener{addr: addr, pool: pool, handle: handle, upg: upg}
}

// Run binds addr and accepts connections until ctx is done. A failed
// Accept is logged and the loop continues rather than returning; a
// temporary error (e.g. EMFILE) backs off briefly before retrying, the
// same way net/http.Server.Serve does. Each accepted connection is
// dispatched to the worker pool; Run itself never blocks on a single
// request.
func (l *Listener) Run(ctx context.Context) error {
	ln, err := l.listen()
	if err != nil {
		return err
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	log.Infof("listener: accepting on %s", l.addr)
	var retryDelay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}

			if ne, ok := err.(net.Error); ok && ne.Temporary() {
				if retryDelay == 0 {
					retryDelay = 5 * time.Millisecond
				} else {
					retryDelay *= 2
				}
				if max := time.Second; retryDelay > max {
					retryDelay = max
				}
				log.Warnf("listener: accept failed (temporary, retrying in %s): %v", retryDelay, err)
				select {
				case <-time.After(retryDelay):
				case <-ctx.Done():
					return nil
				}
				continue
			}

			retryDelay = 0
			log.Errorf("listener: accept failed: %v", err)
			continue
		}
		retryDelay = 0

		job := func(jobCtx context.Context) {
			l.handle(jobCtx, conn)
		}
		if err := l.pool.Execute(ctx, job); err != nil {
			log.Warnf("listener: dropping connection, worker pool unavailable: %v", err)
			_ = conn.Close()
		}
	}
}

func (l *Listener) listen() (net.Listener, error) {
	if l.upg != nil {
		return l.upg.Fds.Listen("tcp", l.addr)
	}
	return net.Listen("tcp", l.addr)
}
