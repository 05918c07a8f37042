package messaging

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/inventory-purchase/internal/core/domain"
	"github.com/rl1809/inventory-purchase/internal/observability"
	"github.com/rl1809/inventory-purchase/internal/port"
)

var (
	ErrQueueFull = errors.New("event queue full")
	ErrClosed    = errors.New("publisher closed")
)

const publishTimeout = 5 * time.Second

type job struct {
	ctx   context.Context
	event domain.PurchaseCompleted
}

// AsyncPublisher hands events to a fixed worker pool so the purchase path
// never waits on the broker. Close stops intake and drains what is queued.
type AsyncPublisher struct {
	next    port.EventPublisher
	logger  *zap.Logger
	metrics *observability.Metrics

	mu     sync.RWMutex
	closed bool
	queue  chan job
	wg     sync.WaitGroup
}

func NewAsyncPublisher(next port.EventPublisher, workers, queueSize int, logger *zap.Logger, metrics *observability.Metrics) *AsyncPublisher {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &AsyncPublisher{
		next:    next,
		logger:  logger,
		metrics: metrics,
		queue:   make(chan job, queueSize),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			p.workerLoop(id)
		}(i)
	}
	return p
}

// PublishPurchaseCompleted enqueues the event without blocking.
func (p *AsyncPublisher) PublishPurchaseCompleted(ctx context.Context, event domain.PurchaseCompleted) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	select {
	case p.queue <- job{ctx: context.WithoutCancel(ctx), event: event}:
		return nil
	default:
		p.metrics.EventPublished("dropped")
		return ErrQueueFull
	}
}

func (p *AsyncPublisher) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *AsyncPublisher) workerLoop(id int) {
	for j := range p.queue {
		ctx, cancel := context.WithTimeout(j.ctx, publishTimeout)
		err := p.next.PublishPurchaseCompleted(ctx, j.event)
		cancel()

		if err != nil {
			p.metrics.EventPublished("failed")
			p.logger.Error("publish purchase event",
				zap.Int("worker", id),
				zap.String("purchase_id", j.event.PurchaseID),
				zap.Error(err),
			)
			continue
		}
		p.metrics.EventPublished("ok")
		p.logger.Debug("purchase event published",
			zap.Int("worker", id),
			zap.String("purchase_id", j.event.PurchaseID),
		)
	}
}
