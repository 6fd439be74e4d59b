package events

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// WorkerPool is a fixed-size set of delivery workers. Acquire returns the
// first Idle worker it finds (nil if none), mirroring worker_pool.cpp's
// linear scan rather than a queue: workers are cheap and few, so a scan is
// simpler than bookkeeping a free-list.
type WorkerPool struct {
	workers []*deliveryWorker
	logger  *zap.SugaredLogger

	permanentFailureOnce sync.Once
	onPermanentFailure   func(statusCode int)
	onServerTime         func(time.Time)
}

// NewWorkerPool builds a pool of size workers, each posting to eventsURL
// with sdkKey and retrying once after retryDelay on a recoverable failure.
func NewWorkerPool(size int, httpClient *http.Client, eventsURL, sdkKey string, retryDelay time.Duration, onServerTime func(time.Time), onPermanentFailure func(statusCode int), logger *zap.SugaredLogger) *WorkerPool {
	if onServerTime == nil {
		onServerTime = func(time.Time) {}
	}
	if onPermanentFailure == nil {
		onPermanentFailure = func(int) {}
	}
	p := &WorkerPool{logger: logger, onServerTime: onServerTime, onPermanentFailure: onPermanentFailure}
	for i := 0; i < size; i++ {
		p.workers = append(p.workers, newDeliveryWorker(httpClient, eventsURL, sdkKey, retryDelay, logger))
	}
	return p
}

// Acquire returns an idle worker, or nil if every worker is busy or has
// permanently failed.
func (p *WorkerPool) Acquire() *deliveryWorker {
	for _, w := range p.workers {
		if w.idle() {
			return w
		}
	}
	return nil
}

// Dispatch hands body to worker for asynchronous delivery. The pool-level
// permanent-failure callback fires at most once for the pool's lifetime
// (grounded on worker_pool.cpp's permanent_failure_once closure), so the
// owner isn't paged once per worker for what is really one broken endpoint.
func (p *WorkerPool) Dispatch(ctx context.Context, worker *deliveryWorker, body []byte) {
	go worker.deliver(ctx, body, p.onServerTime, func(statusCode int) {
		p.permanentFailureOnce.Do(func() {
			p.onPermanentFailure(statusCode)
		})
	})
}
