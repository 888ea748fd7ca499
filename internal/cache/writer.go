package cache

import (
	"context"
	"time"

	"github.com/coldbrew/edgecache/internal/log"
	"github.com/coldbrew/edgecache/internal/queue"
)

// PendingWrite is the in-memory value a connection handler hands to the
// cache writer: everything needed to publish one entry.
type PendingWrite struct {
	Path        string
	ContentType string
	CreatedAt   time.Time
	TTL         time.Duration
	Body        []byte
}

// WriterMetrics lets the writer report counts without importing the
// metrics package directly.
type WriterMetrics interface {
	IncCacheWrites()
	IncCacheWriteSkips()
}

// Writer is the single consumer of the pending-write queue:
// first-writer-wins (a file already at the target path is left alone) to
// avoid a concurrent-rewrite race, otherwise it publishes via Store.Write.
// Errors are logged and discarded — the writer never blocks a connection
// handler beyond the channel enqueue.
type Writer struct {
	store   *Store
	pending *queue.Queue[PendingWrite]
	metrics WriterMetrics
}

// NewWriter builds a Writer draining pending off the given queue.
func NewWriter(store *Store, pending *queue.Queue[PendingWrite], metrics WriterMetrics) *Writer {
	return &Writer{store: store, pending: pending, metrics: metrics}
}

// Run drains the pending-write queue until ctx is done. Intended to run in
// its own goroutine for the lifetime of the process.
func (w *Writer) Run(ctx context.Context) {
	for {
		pw, err := w.pending.Pop(ctx)
		if err != nil {
			return
		}
		w.publish(pw)
	}
}

func (w *Writer) publish(pw PendingWrite) {
	if w.store.Exists(pw.Path) {
		if w.metrics != nil {
			w.metrics.IncCacheWriteSkips()
		}
		return
	}

	entry := Entry{
		Metadata: Metadata{
			ContentType: pw.ContentType,
			CreatedAt:   pw.CreatedAt,
			TTL:         pw.TTL,
			Length:      int64(len(pw.Body)),
		},
		Path: pw.Path,
		Body: pw.Body,
	}

	if err := w.store.Write(entry); err != nil {
		log.Warnf("cache writer: failed to publish %s: %v", pw.Path, err)
		return
	}
	if w.metrics != nil {
		w.metrics.IncCacheWrites()
	}
}
