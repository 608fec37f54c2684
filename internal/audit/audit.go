// Package audit records device claim lifecycle events (claim, rotate,
// migrate, revoke, unclaim) to device_claim_audit for later inspection.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/devicefabric/fabric/internal/db"
)

// Entry is a single claim-lifecycle event to be written.
type Entry struct {
	DeviceMAC string
	Source    string // claim, rotate, migrate, revoke, factory_reset, local_ui, mqtt_revoke
	Detail    json.RawMessage
}

const (
	bufferSize    = 256
	flushInterval = 2 * time.Second
	flushBatch    = 32
)

// Writer is an async, buffered audit log writer. Entries are sent to an
// internal channel and flushed by a background goroutine, so claim-path
// handlers never block on an audit insert.
type Writer struct {
	q       *db.Queries
	logger  *slog.Logger
	entries chan Entry
	wg      sync.WaitGroup
}

// NewWriter creates an audit Writer. Call Start to begin processing entries.
func NewWriter(dbtx db.DBTX, logger *slog.Logger) *Writer {
	return &Writer{
		q:       db.New(dbtx),
		logger:  logger,
		entries: make(chan Entry, bufferSize),
	}
}

// Start launches the background goroutine that flushes audit entries to the
// database and returns immediately. The goroutine flushes what is buffered
// and exits when ctx is cancelled or Close is called.
func (w *Writer) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()
}

// Close waits for all pending entries to be flushed.
func (w *Writer) Close() {
	close(w.entries)
	w.wg.Wait()
}

// Log enqueues an audit entry for async writing. It never blocks the
// caller; if the buffer is full the entry is dropped and a warning logged.
func (w *Writer) Log(entry Entry) {
	select {
	case w.entries <- entry:
	default:
		w.logger.Warn("audit log buffer full, dropping entry",
			"mac", entry.DeviceMAC, "source", entry.Source)
	}
}

func (w *Writer) run(ctx context.Context) {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]Entry, 0, flushBatch)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		w.flush(batch)
		batch = batch[:0]
	}

	for {
		select {
		case entry, ok := <-w.entries:
			if !ok {
				flush()
				return
			}
			batch = append(batch, entry)
			if len(batch) >= flushBatch {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			for {
				select {
				case entry, ok := <-w.entries:
					if !ok {
						flush()
						return
					}
					batch = append(batch, entry)
				default:
					flush()
					return
				}
			}
		}
	}
}

func (w *Writer) flush(entries []Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, e := range entries {
		detail := e.Detail
		if detail == nil {
			detail = json.RawMessage("{}")
		}
		if err := w.q.InsertClaimAudit(ctx, db.InsertClaimAuditParams{
			ID:        uuid.New(),
			DeviceMAC: e.DeviceMAC,
			Source:    e.Source,
			Detail:    detail,
		}); err != nil {
			w.logger.Error("writing claim audit entry", "error", err,
				"mac", e.DeviceMAC, "source", e.Source)
		}
	}
}
