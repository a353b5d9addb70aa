// Package worker runs background notification delivery.
package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/defect-dispatch/internal/config"
	"github.com/spec-kit/defect-dispatch/internal/notify"
	"github.com/spec-kit/defect-dispatch/internal/observability"
)

// NotificationWorker delivers queued notifications to every channel with a
// fixed pool of goroutines. Enqueue blocks for at most the configured enqueue
// timeout.
type NotificationWorker struct {
	channels    []notify.Channel
	queue       chan notify.Notification
	workers     int
	maxAttempts int
	backoff     time.Duration
	waitFull    time.Duration
	logger      *zap.Logger
	metrics     *observability.Metrics

	mu      sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
	cancel  context.CancelFunc
	started bool
}

// NewNotificationWorker sizes the pool from cfg.
func NewNotificationWorker(cfg config.NotificationConfig, channels []notify.Channel, logger *zap.Logger, metrics *observability.Metrics) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = 64
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	return &NotificationWorker{
		channels:    channels,
		queue:       make(chan notify.Notification, size),
		workers:     workers,
		maxAttempts: attempts,
		backoff:     cfg.RetryBackoff,
		waitFull:    cfg.EnqueueTimeout,
		logger:      logger,
		metrics:     metrics,
	}
}

// Start launches the pool. Cancelling ctx aborts in-flight retries.
func (w *NotificationWorker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started || w.closed {
		return
	}
	w.started = true
	ctx, w.cancel = context.WithCancel(ctx)
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go w.loop(ctx, i)
	}
	w.logger.Info("notification worker started",
		zap.Int("workers", w.workers),
		zap.Int("channels", len(w.channels)))
}

// Enqueue schedules n for delivery. When the queue is full it waits up to the
// enqueue timeout for a slot. It reports false when the worker has stopped or
// no slot freed up in time; the notification is then dropped and counted, so
// delivery is best effort rather than at-least-once.
func (w *NotificationWorker) Enqueue(n notify.Notification) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return false
	}
	select {
	case w.queue <- n:
		return true
	default:
	}
	if w.waitFull > 0 {
		timer := time.NewTimer(w.waitFull)
		defer timer.Stop()
		select {
		case w.queue <- n:
			return true
		case <-timer.C:
		}
	}
	w.metrics.RecordNotification("queue", "dropped")
	w.logger.Warn("notification queue full; dropping",
		zap.String("notification_id", n.ID),
		zap.String("report_id", n.ReportID),
		zap.Duration("waited", w.waitFull))
	return false
}

// Stop drains the queue and waits for the pool to finish.
func (w *NotificationWorker) Stop() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.queue)
	started := w.started
	w.mu.Unlock()

	if !started {
		return
	}
	w.wg.Wait()
	w.cancel()
}

func (w *NotificationWorker) loop(ctx context.Context, id int) {
	defer w.wg.Done()
	for n := range w.queue {
		for _, ch := range w.channels {
			w.deliver(ctx, ch, n)
		}
	}
	w.logger.Debug("notification worker exiting", zap.Int("worker", id))
}

func (w *NotificationWorker) deliver(ctx context.Context, ch notify.Channel, n notify.Notification) {
	log := w.logger.With(
		zap.String("channel", ch.Name()),
		zap.String("notification_id", n.ID),
		zap.String("report_id", n.ReportID))

	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		err := ch.Send(ctx, n)
		if err == nil {
			w.metrics.RecordNotification(ch.Name(), "delivered")
			return
		}
		log.Warn("notification delivery failed", zap.Int("attempt", attempt), zap.Error(err))
		if attempt == w.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			w.metrics.RecordNotification(ch.Name(), "failed")
			return
		case <-time.After(w.backoff * time.Duration(attempt)):
		}
	}
	w.metrics.RecordNotification(ch.Name(), "failed")
	log.Error("notification dropped after retries", zap.Int("attempts", w.maxAttempts))
}
