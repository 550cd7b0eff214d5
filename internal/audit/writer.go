// Package audit implements component I: an append-only, asynchronous,
// best-effort record of every mutating action and authentication
// outcome. A write never fails the request it describes (§4.I, §7
// propagation policy).
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lavente-care/iam-gateway/internal/storage"
)

// entry is a queued audit write awaiting a worker.
type entry struct {
	userID       *uuid.UUID
	action       string
	resourceType *string
	resourceID   *string
	details      map[string]interface{}
	ipAddress    *string
	userAgent    *string
}

// Writer is the narrow interface the rest of the platform depends on.
type Writer interface {
	Write(ctx context.Context, userID *uuid.UUID, action string, details map[string]interface{})
	WriteRequest(ctx context.Context, userID *uuid.UUID, action, resourceType, resourceID, ip, userAgent string, details map[string]interface{})
}

// inserter is the single persistence method AsyncWriter needs; narrowed
// from *storage.AuditRepo so tests can substitute an in-memory fake.
type inserter interface {
	Insert(ctx context.Context, e *storage.AuditEntry) error
}

// AsyncWriter buffers audit entries on a channel and drains them with a
// small worker pool, generalizing the teacher's synchronous DBLogger
// into the fire-and-forget contract the gateway requires.
type AsyncWriter struct {
	repo    inserter
	log     *slog.Logger
	queue   chan entry
	wg      sync.WaitGroup
	closeOnce sync.Once
}

// NewAsyncWriter starts workerCount goroutines draining a
// queueSize-buffered channel. Call Close during shutdown to drain
// in-flight entries.
func NewAsyncWriter(repo inserter, log *slog.Logger, workerCount, queueSize int) *AsyncWriter {
	w := &AsyncWriter{
		repo:  repo,
		log:   log,
		queue: make(chan entry, queueSize),
	}
	for i := 0; i < workerCount; i++ {
		w.wg.Add(1)
		go w.worker()
	}
	return w
}

func (w *AsyncWriter) worker() {
	defer w.wg.Done()
	for e := range w.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := w.repo.Insert(ctx, &storage.AuditEntry{
			UserID:       e.userID,
			Action:       e.action,
			ResourceType: e.resourceType,
			ResourceID:   e.resourceID,
			Details:      e.details,
			IPAddress:    e.ipAddress,
			UserAgent:    e.userAgent,
		})
		cancel()
		if err != nil {
			w.log.Warn("audit_write_failed", "action", e.action, "error", err)
		}
	}
}

// Write enqueues a minimal audit entry. It never blocks the caller on
// persistence: a full queue drops the entry and logs the drop rather
// than stalling the request it describes.
func (w *AsyncWriter) Write(ctx context.Context, userID *uuid.UUID, action string, details map[string]interface{}) {
	w.WriteRequest(ctx, userID, action, "", "", "", "", details)
}

// WriteRequest enqueues a fully-populated audit entry including
// request-derived fields (resource, IP, user agent) that the gateway
// middleware extracts from context.
func (w *AsyncWriter) WriteRequest(ctx context.Context, userID *uuid.UUID, action, resourceType, resourceID, ip, userAgent string, details map[string]interface{}) {
	e := entry{userID: userID, action: action, details: details}
	if resourceType != "" {
		e.resourceType = &resourceType
	}
	if resourceID != "" {
		e.resourceID = &resourceID
	}
	if ip != "" {
		e.ipAddress = &ip
	}
	if userAgent != "" {
		e.userAgent = &userAgent
	}

	select {
	case w.queue <- e:
	default:
		w.log.Warn("audit_queue_full_dropped", "action", action)
	}
}

// Close stops accepting new entries and waits for the workers to drain
// the queue. The wait has no deadline of its own; each insert is bounded
// only by the worker's 5-second per-entry timeout.
func (w *AsyncWriter) Close() {
	w.closeOnce.Do(func() {
		close(w.queue)
		w.wg.Wait()
	})
}
