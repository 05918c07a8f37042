package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rl1809/inventory-purchase/internal/adapter/storage"
	"github.com/rl1809/inventory-purchase/internal/core/domain"
	"github.com/rl1809/inventory-purchase/internal/port"
)

// Mock CatalogClient
type mockCatalog struct {
	mu       sync.Mutex
	products map[string]decimal.Decimal
	err      error
	probeErr error
	calls    int
}

func newMockCatalog() *mockCatalog {
	return &mockCatalog{products: map[string]decimal.Decimal{
		"widget": decimal.RequireFromString("25.00"),
		"gadget": decimal.RequireFromString("9.99"),
	}}
}

func (m *mockCatalog) FetchProduct(ctx context.Context, productID string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if m.err != nil {
		return nil, m.err
	}
	price, ok := m.products[productID]
	if !ok {
		return nil, domain.NewError(domain.KindProductNotFound, nil, "product %s not found", productID)
	}
	return &domain.Product{ID: productID, Name: "Product " + productID, Price: price}, nil
}

func (m *mockCatalog) Probe(ctx context.Context) error {
	return m.probeErr
}

// faultyStore wraps the memory store and injects failures into transactions.
type faultyStore struct {
	*storage.MemoryStore
	beginCalls   atomic.Int32
	rollbacks    atomic.Int32
	decrementErr error
	createErr    error
	commitErr    error
	rollbackErr  error
	pingErr      error
}

func newFaultyStore() *faultyStore {
	return &faultyStore{MemoryStore: storage.NewMemoryStore()}
}

func (f *faultyStore) BeginTx(ctx context.Context) (port.Tx, error) {
	f.beginCalls.Add(1)
	tx, err := f.MemoryStore.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	return &faultyTx{Tx: tx, store: f}, nil
}

func (f *faultyStore) Ping(ctx context.Context) error {
	return f.pingErr
}

type faultyTx struct {
	port.Tx
	store *faultyStore
}

func (t *faultyTx) DecrementInventory(ctx context.Context, productID string, amount int) (*domain.Inventory, error) {
	if t.store.decrementErr != nil {
		return nil, t.store.decrementErr
	}
	return t.Tx.DecrementInventory(ctx, productID, amount)
}

func (t *faultyTx) CreatePurchase(ctx context.Context, productID string, quantity int, total decimal.Decimal) (*domain.Purchase, error) {
	if t.store.createErr != nil {
		return nil, t.store.createErr
	}
	return t.Tx.CreatePurchase(ctx, productID, quantity, total)
}

func (t *faultyTx) Commit() error {
	if t.store.commitErr != nil {
		return t.store.commitErr
	}
	return t.Tx.Commit()
}

func (t *faultyTx) Rollback() error {
	t.store.rollbacks.Add(1)
	err := t.Tx.Rollback()
	if t.store.rollbackErr != nil {
		return t.store.rollbackErr
	}
	return err
}

// Mock CacheRepository
type mockCacheRepo struct {
	mu             sync.Mutex
	idempotencySet map[string]bool
	released       []string
}

func newMockCacheRepo() *mockCacheRepo {
	return &mockCacheRepo{idempotencySet: make(map[string]bool)}
}

func (m *mockCacheRepo) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.idempotencySet[key] {
		return false, nil
	}
	m.idempotencySet[key] = true
	return true, nil
}

func (m *mockCacheRepo) ReleaseIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.idempotencySet, key)
	m.released = append(m.released, key)
	return nil
}

// Mock EventPublisher
type mockPublisher struct {
	mu     sync.Mutex
	events []domain.PurchaseCompleted
	err    error
}

func (m *mockPublisher) PublishPurchaseCompleted(ctx context.Context, event domain.PurchaseCompleted) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, event)
	return nil
}

func (m *mockPublisher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func seed(t *testing.T, db *faultyStore, productID string, quantity int) {
	t.Helper()
	_, err := db.UpsertInventory(context.Background(), productID, quantity)
	require.NoError(t, err)
}

func stockOf(t *testing.T, db *faultyStore, productID string) int {
	t.Helper()
	inv, err := db.GetInventory(context.Background(), productID)
	require.NoError(t, err)
	if inv == nil {
		return 0
	}
	return inv.Quantity
}

func TestProcessPurchase_Success(t *testing.T) {
	db := newFaultyStore()
	seed(t, db, "widget", 10)
	events := &mockPublisher{}
	svc := NewPurchaseService(newMockCatalog(), db,
		WithEventPublisher(events),
		WithLogger(zaptest.NewLogger(t)),
	)

	result, err := svc.ProcessPurchase(context.Background(), domain.PurchaseRequest{ProductID: "widget", Quantity: 3})
	require.NoError(t, err)

	assert.Equal(t, "75.00", result.TotalPrice.StringFixed(2))
	assert.Equal(t, "25.00", result.UnitPrice.StringFixed(2))
	assert.Equal(t, 7, result.RemainingAvailable)
	assert.Equal(t, 7, result.Inventory.Quantity)
	assert.Equal(t, "widget", result.Product.ID)
	assert.Equal(t, 3, result.Purchase.Quantity)
	assert.Equal(t, domain.PurchaseStatusCompleted, result.Purchase.Status)
	assert.NotEmpty(t, result.Purchase.ID)

	assert.Equal(t, 7, stockOf(t, db, "widget"))
	stored, err := db.GetPurchase(context.Background(), result.Purchase.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.TotalPrice.Equal(decimal.RequireFromString("75")))

	require.Len(t, events.events, 1)
	assert.Equal(t, result.Purchase.ID, events.events[0].PurchaseID)
	assert.Equal(t, 7, events.events[0].Remaining)
}

func TestProcessPurchase_ProductNotFoundOpensNoTransaction(t *testing.T) {
	db := newFaultyStore()
	svc := NewPurchaseService(newMockCatalog(), db)

	_, err := svc.ProcessPurchase(context.Background(), domain.PurchaseRequest{ProductID: "ghost", Quantity: 1})

	assert.ErrorIs(t, err, domain.ErrProductNotFound)
	assert.Equal(t, int32(0), db.beginCalls.Load())
}

func TestProcessPurchase_CatalogUnavailable(t *testing.T) {
	db := newFaultyStore()
	seed(t, db, "widget", 10)
	catalog := newMockCatalog()
	catalog.err = domain.NewError(domain.KindServiceUnavailable, errors.New("connection refused"), "catalog lookup")
	svc := NewPurchaseService(catalog, db)

	_, err := svc.ProcessPurchase(context.Background(), domain.PurchaseRequest{ProductID: "widget", Quantity: 1})

	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
	assert.Equal(t, int32(0), db.beginCalls.Load())
	assert.Equal(t, 10, stockOf(t, db, "widget"))
}

func TestProcessPurchase_UntypedCatalogError(t *testing.T) {
	catalog := newMockCatalog()
	catalog.err = errors.New("boom")
	svc := NewPurchaseService(catalog, newFaultyStore())

	_, err := svc.ProcessPurchase(context.Background(), domain.PurchaseRequest{ProductID: "widget", Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrUnexpected)
}

func TestProcessPurchase_Validation(t *testing.T) {
	catalog := newMockCatalog()
	svc := NewPurchaseService(catalog, newFaultyStore())

	for _, req := range []domain.PurchaseRequest{
		{ProductID: "widget", Quantity: 0},
		{ProductID: "widget", Quantity: -2},
		{ProductID: "  ", Quantity: 1},
	} {
		_, err := svc.ProcessPurchase(context.Background(), req)
		assert.ErrorIs(t, err, domain.ErrValidation, "%+v", req)
	}
	assert.Equal(t, 0, catalog.calls)
}

func TestProcessPurchase_InsufficientStock(t *testing.T) {
	db := newFaultyStore()
	seed(t, db, "widget", 2)
	svc := NewPurchaseService(newMockCatalog(), db)

	_, err := svc.ProcessPurchase(context.Background(), domain.PurchaseRequest{ProductID: "widget", Quantity: 5})

	var de *domain.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, domain.KindInsufficientStock, de.Kind)
	assert.Equal(t, 5, de.Requested)
	assert.Equal(t, 2, de.Available)
	assert.Equal(t, 2, stockOf(t, db, "widget"))
	assert.Equal(t, int32(1), db.rollbacks.Load())

	history, _ := db.ListPurchasesByProduct(context.Background(), "widget", 10)
	assert.Empty(t, history)
}

func TestProcessPurchase_NoInventoryRow(t *testing.T) {
	svc := NewPurchaseService(newMockCatalog(), newFaultyStore())

	_, err := svc.ProcessPurchase(context.Background(), domain.PurchaseRequest{ProductID: "widget", Quantity: 1})

	var de *domain.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, domain.KindInsufficientStock, de.Kind)
	assert.Equal(t, 0, de.Available)
}

func TestProcessPurchase_LostRaceAtDecrement(t *testing.T) {
	db := newFaultyStore()
	seed(t, db, "widget", 10)
	// The advisory read sees 10 but a competing commit leaves only 1.
	db.decrementErr = domain.InsufficientStock("widget", 5, 1)
	svc := NewPurchaseService(newMockCatalog(), db)

	_, err := svc.ProcessPurchase(context.Background(), domain.PurchaseRequest{ProductID: "widget", Quantity: 5})

	var de *domain.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, domain.KindInsufficientStock, de.Kind)
	assert.Equal(t, 1, de.Available)
	assert.Equal(t, int32(1), db.rollbacks.Load())
}

func TestProcessPurchase_RecordWriteFailureRollsBack(t *testing.T) {
	db := newFaultyStore()
	seed(t, db, "widget", 10)
	db.createErr = errors.New("disk full")
	svc := NewPurchaseService(newMockCatalog(), db)

	_, err := svc.ProcessPurchase(context.Background(), domain.PurchaseRequest{ProductID: "widget", Quantity: 4})

	assert.ErrorIs(t, err, domain.ErrStorageFailure)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 10, stockOf(t, db, "widget"), "decrement must be rolled back")
	assert.Equal(t, int32(1), db.rollbacks.Load())
}

func TestProcessPurchase_RollbackFailureDoesNotMaskCause(t *testing.T) {
	db := newFaultyStore()
	seed(t, db, "widget", 10)
	db.createErr = errors.New("disk full")
	db.rollbackErr = errors.New("connection reset")
	svc := NewPurchaseService(newMockCatalog(), db)

	_, err := svc.ProcessPurchase(context.Background(), domain.PurchaseRequest{ProductID: "widget", Quantity: 1})

	assert.ErrorIs(t, err, domain.ErrStorageFailure)
	assert.Contains(t, err.Error(), "disk full")
	assert.NotContains(t, err.Error(), "connection reset")
}

func TestProcessPurchase_CommitFailure(t *testing.T) {
	db := newFaultyStore()
	seed(t, db, "widget", 10)
	db.commitErr = errors.New("serialization failure")
	events := &mockPublisher{}
	svc := NewPurchaseService(newMockCatalog(), db, WithEventPublisher(events))

	_, err := svc.ProcessPurchase(context.Background(), domain.PurchaseRequest{ProductID: "widget", Quantity: 2})

	assert.ErrorIs(t, err, domain.ErrStorageFailure)
	assert.Equal(t, 10, stockOf(t, db, "widget"))
	assert.Empty(t, events.events)
}

func TestProcessPurchase_CanceledContext(t *testing.T) {
	db := newFaultyStore()
	seed(t, db, "widget", 10)
	svc := NewPurchaseService(newMockCatalog(), db)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.ProcessPurchase(ctx, domain.PurchaseRequest{ProductID: "widget", Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 10, stockOf(t, db, "widget"))
}

func TestProcessPurchase_PublishFailureIsNotFatal(t *testing.T) {
	db := newFaultyStore()
	seed(t, db, "widget", 10)
	svc := NewPurchaseService(newMockCatalog(), db, WithEventPublisher(&mockPublisher{err: errors.New("broker down")}))

	result, err := svc.ProcessPurchase(context.Background(), domain.PurchaseRequest{ProductID: "widget", Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, 9, result.RemainingAvailable)
}

func TestProcessPurchase_DuplicateRequest(t *testing.T) {
	db := newFaultyStore()
	seed(t, db, "widget", 10)
	cache := newMockCacheRepo()
	svc := NewPurchaseService(newMockCatalog(), db, WithIdempotency(cache))

	// First request
	_, err := svc.ProcessPurchase(context.Background(), domain.PurchaseRequest{ProductID: "widget", Quantity: 1, RequestID: "req-1"})
	require.NoError(t, err)

	// Duplicate request with same requestID
	_, err = svc.ProcessPurchase(context.Background(), domain.PurchaseRequest{ProductID: "widget", Quantity: 1, RequestID: "req-1"})
	assert.ErrorIs(t, err, domain.ErrDuplicateRequest)

	// Stock should only be decremented once
	assert.Equal(t, 9, stockOf(t, db, "widget"))
	assert.Empty(t, cache.released)
}

func TestProcessPurchase_FailedRequestReleasesKey(t *testing.T) {
	db := newFaultyStore()
	seed(t, db, "widget", 1)
	cache := newMockCacheRepo()
	svc := NewPurchaseService(newMockCatalog(), db, WithIdempotency(cache))

	_, err := svc.ProcessPurchase(context.Background(), domain.PurchaseRequest{ProductID: "widget", Quantity: 3, RequestID: "req-2"})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, []string{"req-2"}, cache.released)

	seed(t, db, "widget", 5)
	_, err = svc.ProcessPurchase(context.Background(), domain.PurchaseRequest{ProductID: "widget", Quantity: 3, RequestID: "req-2"})
	assert.NoError(t, err)
}

func TestProcessPurchase_ConcurrentBuyersCannotOversell(t *testing.T) {
	db := newFaultyStore()
	seed(t, db, "widget", 10)
	svc := NewPurchaseService(newMockCatalog(), db)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.ProcessPurchase(context.Background(), domain.PurchaseRequest{ProductID: "widget", Quantity: 6})
		}(i)
	}
	wg.Wait()

	var succeeded, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domain.ErrInsufficientStock):
			rejected++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, 4, stockOf(t, db, "widget"))
}

func TestProcessPurchase_Concurrent(t *testing.T) {
	initialStock := 20
	totalRequests := 50

	db := newFaultyStore()
	seed(t, db, "gadget", initialStock)
	svc := NewPurchaseService(newMockCatalog(), db, WithIdempotency(newMockCacheRepo()))

	var successCount atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			_, err := svc.ProcessPurchase(context.Background(), domain.PurchaseRequest{
				ProductID: "gadget",
				Quantity:  1,
				RequestID: fmt.Sprintf("req-%d", id),
			})
			if err == nil {
				successCount.Add(1)
			} else if !errors.Is(err, domain.ErrInsufficientStock) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}

	wg.Wait()

	assert.Equal(t, int32(initialStock), successCount.Load())
	assert.Equal(t, 0, stockOf(t, db, "gadget"))

	history, err := db.ListPurchasesByProduct(context.Background(), "gadget", 100)
	require.NoError(t, err)
	assert.Len(t, history, initialStock)
	for _, p := range history {
		assert.True(t, p.TotalPrice.Equal(decimal.RequireFromString("9.99")))
	}
}
