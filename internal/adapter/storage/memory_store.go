package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rl1809/inventory-purchase/internal/core/domain"
	"github.com/rl1809/inventory-purchase/internal/port"
)

// MemoryStore keeps inventory and purchase history in process. A single-slot
// semaphore serializes every operation, and a transaction holds the slot from
// BeginTx until Commit or Rollback, so no reader sees uncommitted writes.
type MemoryStore struct {
	sem       chan struct{}
	inventory map[string]domain.Inventory
	purchases map[string]domain.Purchase
	byProduct map[string][]string
	now       func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sem:       make(chan struct{}, 1),
		inventory: make(map[string]domain.Inventory),
		purchases: make(map[string]domain.Purchase),
		byProduct: make(map[string][]string),
		now:       utcNow,
	}
}

func (m *MemoryStore) acquire(ctx context.Context) error {
	select {
	case m.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *MemoryStore) release() {
	<-m.sem
}

func (m *MemoryStore) GetInventory(ctx context.Context, productID string) (*domain.Inventory, error) {
	if err := m.acquire(ctx); err != nil {
		return nil, err
	}
	defer m.release()
	return m.getInventory(productID), nil
}

func (m *MemoryStore) UpsertInventory(ctx context.Context, productID string, quantity int) (*domain.Inventory, error) {
	if err := m.acquire(ctx); err != nil {
		return nil, err
	}
	defer m.release()
	return m.upsertInventory(productID, quantity, nil)
}

func (m *MemoryStore) EnsureInventory(ctx context.Context, productID string) (*domain.Inventory, error) {
	if err := m.acquire(ctx); err != nil {
		return nil, err
	}
	defer m.release()
	return m.ensureInventory(productID, nil), nil
}

func (m *MemoryStore) DecrementInventory(ctx context.Context, productID string, amount int) (*domain.Inventory, error) {
	if err := m.acquire(ctx); err != nil {
		return nil, err
	}
	defer m.release()
	return m.decrementInventory(productID, amount, nil)
}

func (m *MemoryStore) CreatePurchase(ctx context.Context, productID string, quantity int, totalPrice decimal.Decimal) (*domain.Purchase, error) {
	if err := m.acquire(ctx); err != nil {
		return nil, err
	}
	defer m.release()
	return m.createPurchase(productID, quantity, totalPrice, nil)
}

func (m *MemoryStore) GetPurchase(ctx context.Context, id string) (*domain.Purchase, error) {
	if err := m.acquire(ctx); err != nil {
		return nil, err
	}
	defer m.release()
	return m.getPurchase(id), nil
}

func (m *MemoryStore) ListPurchasesByProduct(ctx context.Context, productID string, limit int) ([]domain.Purchase, error) {
	if err := m.acquire(ctx); err != nil {
		return nil, err
	}
	defer m.release()
	return m.listPurchases(productID, limit), nil
}

func (m *MemoryStore) BeginTx(ctx context.Context) (port.Tx, error) {
	if err := m.acquire(ctx); err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &memoryTx{store: m}, nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *MemoryStore) Close() error {
	return nil
}

// journal collects undo steps for an open transaction; nil means autocommit.
type journal []func()

func (j *journal) record(undo func()) {
	if j != nil {
		*j = append(*j, undo)
	}
}

func (m *MemoryStore) getInventory(productID string) *domain.Inventory {
	inv, ok := m.inventory[productID]
	if !ok {
		return nil
	}
	return &inv
}

func (m *MemoryStore) restoreInventory(productID string) func() {
	prev, existed := m.inventory[productID]
	return func() {
		if existed {
			m.inventory[productID] = prev
		} else {
			delete(m.inventory, productID)
		}
	}
}

func (m *MemoryStore) upsertInventory(productID string, quantity int, j *journal) (*domain.Inventory, error) {
	if quantity < 0 {
		return nil, fmt.Errorf("upsert inventory: quantity %d violates non-negative constraint", quantity)
	}

	now := m.now()
	inv, ok := m.inventory[productID]
	if ok && quantity < inv.ReservedQuantity {
		return nil, fmt.Errorf("upsert inventory: quantity %d below reserved %d", quantity, inv.ReservedQuantity)
	}
	j.record(m.restoreInventory(productID))

	if !ok {
		inv = domain.Inventory{ProductID: productID, CreatedAt: now}
	}
	inv.Quantity = quantity
	inv.UpdatedAt = now
	m.inventory[productID] = inv
	return &inv, nil
}

func (m *MemoryStore) ensureInventory(productID string, j *journal) *domain.Inventory {
	if inv, ok := m.inventory[productID]; ok {
		return &inv
	}

	j.record(m.restoreInventory(productID))
	now := m.now()
	inv := domain.Inventory{ProductID: productID, CreatedAt: now, UpdatedAt: now}
	m.inventory[productID] = inv
	return &inv
}

func (m *MemoryStore) decrementInventory(productID string, amount int, j *journal) (*domain.Inventory, error) {
	inv, ok := m.inventory[productID]
	if !ok {
		return nil, domain.NewError(domain.KindInventoryNotFound, nil, "product %s has no inventory record", productID)
	}
	if inv.Available() < amount {
		return nil, domain.InsufficientStock(productID, amount, inv.Available())
	}

	j.record(m.restoreInventory(productID))
	inv.Quantity -= amount
	inv.UpdatedAt = m.now()
	m.inventory[productID] = inv
	return &inv, nil
}

func (m *MemoryStore) createPurchase(productID string, quantity int, totalPrice decimal.Decimal, j *journal) (*domain.Purchase, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("insert purchase: quantity %d violates positive constraint", quantity)
	}

	p := domain.Purchase{
		ID:           uuid.NewString(),
		ProductID:    productID,
		Quantity:     quantity,
		TotalPrice:   totalPrice,
		PurchaseDate: m.now(),
		Status:       domain.PurchaseStatusCompleted,
	}
	m.purchases[p.ID] = p
	m.byProduct[productID] = append(m.byProduct[productID], p.ID)

	j.record(func() {
		delete(m.purchases, p.ID)
		ids := m.byProduct[productID]
		m.byProduct[productID] = ids[:len(ids)-1]
	})
	return &p, nil
}

func (m *MemoryStore) getPurchase(id string) *domain.Purchase {
	p, ok := m.purchases[id]
	if !ok {
		return nil
	}
	return &p
}

func (m *MemoryStore) listPurchases(productID string, limit int) []domain.Purchase {
	ids := m.byProduct[productID]
	out := make([]domain.Purchase, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		out = append(out, m.purchases[ids[i]])
	}

	// Newest append wins ties between equal timestamps.
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].PurchaseDate.After(out[b].PurchaseDate)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

type memoryTx struct {
	store *MemoryStore
	undo  journal
	done  bool
}

func (t *memoryTx) active(ctx context.Context) error {
	if t.done {
		return sql.ErrTxDone
	}
	return ctx.Err()
}

func (t *memoryTx) GetInventory(ctx context.Context, productID string) (*domain.Inventory, error) {
	if err := t.active(ctx); err != nil {
		return nil, err
	}
	return t.store.getInventory(productID), nil
}

func (t *memoryTx) UpsertInventory(ctx context.Context, productID string, quantity int) (*domain.Inventory, error) {
	if err := t.active(ctx); err != nil {
		return nil, err
	}
	return t.store.upsertInventory(productID, quantity, &t.undo)
}

func (t *memoryTx) EnsureInventory(ctx context.Context, productID string) (*domain.Inventory, error) {
	if err := t.active(ctx); err != nil {
		return nil, err
	}
	return t.store.ensureInventory(productID, &t.undo), nil
}

func (t *memoryTx) DecrementInventory(ctx context.Context, productID string, amount int) (*domain.Inventory, error) {
	if err := t.active(ctx); err != nil {
		return nil, err
	}
	return t.store.decrementInventory(productID, amount, &t.undo)
}

func (t *memoryTx) CreatePurchase(ctx context.Context, productID string, quantity int, totalPrice decimal.Decimal) (*domain.Purchase, error) {
	if err := t.active(ctx); err != nil {
		return nil, err
	}
	return t.store.createPurchase(productID, quantity, totalPrice, &t.undo)
}

func (t *memoryTx) GetPurchase(ctx context.Context, id string) (*domain.Purchase, error) {
	if err := t.active(ctx); err != nil {
		return nil, err
	}
	return t.store.getPurchase(id), nil
}

func (t *memoryTx) ListPurchasesByProduct(ctx context.Context, productID string, limit int) ([]domain.Purchase, error) {
	if err := t.active(ctx); err != nil {
		return nil, err
	}
	return t.store.listPurchases(productID, limit), nil
}

func (t *memoryTx) Commit() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	t.undo = nil
	t.store.release()
	return nil
}

func (t *memoryTx) Rollback() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
	t.store.release()
	return nil
}
