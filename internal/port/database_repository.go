package port

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/rl1809/inventory-purchase/internal/core/domain"
)

type InventoryRepository interface {
	// GetInventory returns nil, nil when the product has no inventory row
	GetInventory(ctx context.Context, productID string) (*domain.Inventory, error)

	// UpsertInventory sets an absolute quantity, creating the row if absent
	UpsertInventory(ctx context.Context, productID string, quantity int) (*domain.Inventory, error)

	// EnsureInventory creates a zero-quantity row if absent and returns the current row
	EnsureInventory(ctx context.Context, productID string) (*domain.Inventory, error)

	// DecrementInventory atomically subtracts amount only if available stock covers it.
	// Fails with domain.ErrInventoryNotFound or domain.ErrInsufficientStock otherwise.
	DecrementInventory(ctx context.Context, productID string, amount int) (*domain.Inventory, error)
}

type PurchaseRepository interface {
	// CreatePurchase appends one immutable completed purchase record
	CreatePurchase(ctx context.Context, productID string, quantity int, totalPrice decimal.Decimal) (*domain.Purchase, error)

	// GetPurchase returns nil, nil when no record has the id
	GetPurchase(ctx context.Context, id string) (*domain.Purchase, error)

	// ListPurchasesByProduct returns the most recent purchases first
	ListPurchasesByProduct(ctx context.Context, productID string, limit int) ([]domain.Purchase, error)
}

// Tx scopes inventory and purchase writes to one local transaction.
type Tx interface {
	InventoryRepository
	PurchaseRepository
	Commit() error
	Rollback() error
}

type DatabaseRepository interface {
	InventoryRepository
	PurchaseRepository

	// BeginTx opens a transaction over both tables
	BeginTx(ctx context.Context) (Tx, error)

	Ping(ctx context.Context) error
	Close() error
}
