// Package scheduler runs background work that must not block request handlers
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	businessflow "github.com/amirphl/humanflow/business_flow"
	"go.uber.org/zap"
)

// StatusWriter persists one contact status
type StatusWriter interface {
	UpdateContactStatus(ctx context.Context, uploadID uint, contactID, status string) error
}

// StatusDispatcher writes contact status changes off the request path with a
// fixed pool of workers. A full queue drops the update.
type StatusDispatcher struct {
	writer  StatusWriter
	queue   chan businessflow.StatusUpdate
	workers int
	timeout time.Duration
	metrics businessflow.DomainMetrics
	logger  *zap.Logger

	stopped atomic.Bool
	wg      sync.WaitGroup
}

var _ businessflow.StatusSink = (*StatusDispatcher)(nil)

// NewStatusDispatcher creates a dispatcher. Zero values fall back to 4 workers,
// a queue of 256 and a 5s timeout per write.
func NewStatusDispatcher(writer StatusWriter, workers, queueSize int, timeout time.Duration, metrics businessflow.DomainMetrics, logger *zap.Logger) *StatusDispatcher {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if metrics == nil {
		metrics = businessflow.NopMetrics{}
	}
	return &StatusDispatcher{
		writer:  writer,
		queue:   make(chan businessflow.StatusUpdate, queueSize),
		workers: workers,
		timeout: timeout,
		metrics: metrics,
		logger:  logger,
	}
}

// Enqueue implements businessflow.StatusSink. It never blocks.
func (d *StatusDispatcher) Enqueue(update businessflow.StatusUpdate) bool {
	if d.stopped.Load() {
		d.drop(update, "dispatcher stopped")
		return false
	}
	select {
	case d.queue <- update:
		return true
	default:
		d.drop(update, "queue full")
		return false
	}
}

func (d *StatusDispatcher) drop(update businessflow.StatusUpdate, reason string) {
	d.metrics.StatusUpdateFailed()
	d.logger.Warn("Contact status update dropped",
		zap.String("reason", reason),
		zap.Uint("upload_id", update.UploadID),
		zap.String("contact_id", update.ContactID))
}

// Start launches the workers. The returned function stops accepting updates,
// writes what is already queued and waits for the workers to exit.
func (d *StatusDispatcher) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.work(ctx)
		}()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			d.stopped.Store(true)
			cancel()
			d.wg.Wait()
		})
	}
}

// work consumes the queue until ctx is done. Writes never inherit the
// cancellation of ctx, only the per-write timeout, so an update taken from the
// queue during shutdown still lands.
func (d *StatusDispatcher) work(ctx context.Context) {
	writeCtx := context.WithoutCancel(ctx)
	for {
		select {
		case update := <-d.queue:
			d.write(writeCtx, update)
		case <-ctx.Done():
			d.drain()
			return
		}
	}
}

// drain writes the remaining updates with a fresh context
func (d *StatusDispatcher) drain() {
	for {
		select {
		case update := <-d.queue:
			d.write(context.Background(), update)
		default:
			return
		}
	}
}

func (d *StatusDispatcher) write(parent context.Context, update businessflow.StatusUpdate) {
	ctx, cancel := context.WithTimeout(parent, d.timeout)
	defer cancel()

	if err := d.writer.UpdateContactStatus(ctx, update.UploadID, update.ContactID, update.Status); err != nil {
		d.metrics.StatusUpdateFailed()
		d.logger.Warn("Contact status update failed",
			zap.Uint("upload_id", update.UploadID),
			zap.String("contact_id", update.ContactID),
			zap.String("user_email", update.UserEmail),
			zap.Error(err))
		return
	}
	d.logger.Debug("Contact status updated",
		zap.Uint("upload_id", update.UploadID),
		zap.String("contact_id", update.ContactID),
		zap.String("status", update.Status))
}
