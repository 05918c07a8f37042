package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/rl1809/inventory-purchase/internal/core/domain"
	"github.com/rl1809/inventory-purchase/internal/observability"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	calls  int
	events []domain.PurchaseCompleted
	err    error
	block  chan struct{}
}

func (p *recordingPublisher) PublishPurchaseCompleted(ctx context.Context, event domain.PurchaseCompleted) error {
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func sampleEvent(id string) domain.PurchaseCompleted {
	return domain.PurchaseCompleted{
		EventID:      "evt-" + id,
		PurchaseID:   id,
		ProductID:    "widget",
		Quantity:     2,
		UnitPrice:    decimal.RequireFromString("25.00"),
		TotalPrice:   decimal.RequireFromString("50.00"),
		Remaining:    8,
		PurchaseDate: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestKafkaPublisher_WritesKeyedMessage(t *testing.T) {
	w := &fakeWriter{}
	pub := newKafkaPublisherWithWriter(w, "purchases")

	require.NoError(t, pub.PublishPurchaseCompleted(context.Background(), sampleEvent("p-1")))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "widget", string(msg.Key))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "p-1", decoded["purchase_id"])
	assert.Equal(t, "50", decoded["total_price"])
	assert.Equal(t, float64(8), decoded["remaining_available_quantity"])

	require.NoError(t, pub.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_InjectsTraceContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3},
		SpanID:     trace.SpanID{4, 5, 6},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	w := &fakeWriter{}
	require.NoError(t, newKafkaPublisherWithWriter(w, "purchases").PublishPurchaseCompleted(ctx, sampleEvent("p-2")))

	headers := map[string]string{}
	for _, h := range w.msgs[0].Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, eventTypePurchaseCompleted, headers["event_type"])
	assert.Contains(t, headers["traceparent"], sc.TraceID().String())
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	err := newKafkaPublisherWithWriter(w, "purchases").PublishPurchaseCompleted(context.Background(), sampleEvent("p-3"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "purchases")
}

func TestAsyncPublisher_DrainsOnClose(t *testing.T) {
	next := &recordingPublisher{}
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	pub := NewAsyncPublisher(next, 4, 100, zaptest.NewLogger(t), metrics)

	for i := 0; i < 50; i++ {
		require.NoError(t, pub.PublishPurchaseCompleted(context.Background(), sampleEvent("p")))
	}
	pub.Close()

	assert.Equal(t, 50, next.count())
	assert.ErrorIs(t, pub.PublishPurchaseCompleted(context.Background(), sampleEvent("late")), ErrClosed)

	n, err := testutil.GatherAndCount(reg, "inventory_events_published_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAsyncPublisher_QueueFull(t *testing.T) {
	next := &recordingPublisher{block: make(chan struct{})}
	pub := NewAsyncPublisher(next, 1, 1, zaptest.NewLogger(t), nil)

	// The worker takes the first job and blocks; the second fills the queue.
	require.NoError(t, pub.PublishPurchaseCompleted(context.Background(), sampleEvent("a")))
	require.Eventually(t, func() bool { return len(pub.queue) == 0 }, time.Second, time.Millisecond)
	require.NoError(t, pub.PublishPurchaseCompleted(context.Background(), sampleEvent("b")))

	err := pub.PublishPurchaseCompleted(context.Background(), sampleEvent("c"))
	assert.ErrorIs(t, err, ErrQueueFull)

	close(next.block)
	pub.Close()
	assert.Equal(t, 2, next.count())
}

func TestAsyncPublisher_FailuresDoNotStopWorkers(t *testing.T) {
	next := &recordingPublisher{err: errors.New("broker down")}
	pub := NewAsyncPublisher(next, 2, 10, zaptest.NewLogger(t), nil)

	for i := 0; i < 5; i++ {
		require.NoError(t, pub.PublishPurchaseCompleted(context.Background(), sampleEvent("x")))
	}
	pub.Close()

	assert.Equal(t, 5, next.calls)
	assert.Zero(t, next.count())
}

func TestAsyncPublisher_DetachesCallerCancellation(t *testing.T) {
	next := &recordingPublisher{}
	pub := NewAsyncPublisher(next, 1, 10, zaptest.NewLogger(t), nil)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, pub.PublishPurchaseCompleted(ctx, sampleEvent("p")))
	cancel()
	pub.Close()

	assert.Equal(t, 1, next.count())
}
