package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/rl1809/inventory-purchase/internal/core/domain"
)

const (
	selectInventory = `
		SELECT product_id, quantity, reserved_quantity, created_at, updated_at
		FROM inventory WHERE product_id = ?`

	decrementInventory = `
		UPDATE inventory
		SET quantity = quantity - ?, updated_at = ?
		WHERE product_id = ? AND quantity - reserved_quantity >= ?`

	insertPurchase = `
		INSERT INTO purchase_history (id, product_id, quantity, total_price, purchase_date, status)
		VALUES (?, ?, ?, ?, ?, ?)`

	selectPurchase = `
		SELECT id, product_id, quantity, total_price, purchase_date, status
		FROM purchase_history WHERE id = ?`

	selectPurchasesByProduct = `
		SELECT id, product_id, quantity, total_price, purchase_date, status
		FROM purchase_history WHERE product_id = ?
		ORDER BY purchase_date DESC, id DESC
		LIMIT ?`
)

type inventoryRow struct {
	ProductID        string    `db:"product_id"`
	Quantity         int       `db:"quantity"`
	ReservedQuantity int       `db:"reserved_quantity"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

func (r inventoryRow) toDomain() *domain.Inventory {
	return &domain.Inventory{
		ProductID:        r.ProductID,
		Quantity:         r.Quantity,
		ReservedQuantity: r.ReservedQuantity,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

type purchaseRow struct {
	ID           string          `db:"id"`
	ProductID    string          `db:"product_id"`
	Quantity     int             `db:"quantity"`
	TotalPrice   decimal.Decimal `db:"total_price"`
	PurchaseDate time.Time       `db:"purchase_date"`
	Status       string          `db:"status"`
}

func (r purchaseRow) toDomain() domain.Purchase {
	return domain.Purchase{
		ID:           r.ID,
		ProductID:    r.ProductID,
		Quantity:     r.Quantity,
		TotalPrice:   r.TotalPrice,
		PurchaseDate: r.PurchaseDate,
		Status:       domain.PurchaseStatus(r.Status),
	}
}

// sqlLedger runs the inventory and purchase queries against either the pool
// or an open transaction; both satisfy sqlx.ExtContext.
type sqlLedger struct {
	q   sqlx.ExtContext
	now func() time.Time
}

func (l *sqlLedger) GetInventory(ctx context.Context, productID string) (*domain.Inventory, error) {
	var row inventoryRow
	err := sqlx.GetContext(ctx, l.q, &row, l.q.Rebind(selectInventory), productID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query inventory: %w", err)
	}
	return row.toDomain(), nil
}

func (l *sqlLedger) UpsertInventory(ctx context.Context, productID string, quantity int) (*domain.Inventory, error) {
	now := l.now()
	_, err := l.q.ExecContext(ctx, l.q.Rebind(upsertInventoryQuery(l.q.DriverName())),
		productID, quantity, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert inventory: %w", err)
	}
	return l.mustGetInventory(ctx, productID)
}

func (l *sqlLedger) EnsureInventory(ctx context.Context, productID string) (*domain.Inventory, error) {
	now := l.now()
	_, err := l.q.ExecContext(ctx, l.q.Rebind(ensureInventoryQuery(l.q.DriverName())),
		productID, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("ensure inventory: %w", err)
	}
	return l.mustGetInventory(ctx, productID)
}

func (l *sqlLedger) DecrementInventory(ctx context.Context, productID string, amount int) (*domain.Inventory, error) {
	result, err := l.q.ExecContext(ctx, l.q.Rebind(decrementInventory),
		amount, l.now(), productID, amount,
	)
	if err != nil {
		return nil, fmt.Errorf("decrement inventory: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("decrement inventory rows affected: %w", err)
	}
	if rows == 0 {
		// The predicate failed; re-read to tell an unknown product from a short one.
		inv, err := l.GetInventory(ctx, productID)
		if err != nil {
			return nil, err
		}
		if inv == nil {
			return nil, domain.NewError(domain.KindInventoryNotFound, nil, "product %s has no inventory record", productID)
		}
		if inv.Available() < amount {
			return nil, domain.InsufficientStock(productID, amount, inv.Available())
		}
		return nil, fmt.Errorf("decrement inventory for %s: no rows updated", productID)
	}

	return l.mustGetInventory(ctx, productID)
}

func (l *sqlLedger) CreatePurchase(ctx context.Context, productID string, quantity int, totalPrice decimal.Decimal) (*domain.Purchase, error) {
	purchase := domain.Purchase{
		ID:           uuid.NewString(),
		ProductID:    productID,
		Quantity:     quantity,
		TotalPrice:   totalPrice,
		PurchaseDate: l.now(),
		Status:       domain.PurchaseStatusCompleted,
	}

	_, err := l.q.ExecContext(ctx, l.q.Rebind(insertPurchase),
		purchase.ID, purchase.ProductID, purchase.Quantity, purchase.TotalPrice,
		purchase.PurchaseDate, string(purchase.Status),
	)
	if err != nil {
		return nil, fmt.Errorf("insert purchase: %w", err)
	}

	return &purchase, nil
}

func (l *sqlLedger) GetPurchase(ctx context.Context, id string) (*domain.Purchase, error) {
	var row purchaseRow
	err := sqlx.GetContext(ctx, l.q, &row, l.q.Rebind(selectPurchase), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query purchase: %w", err)
	}
	p := row.toDomain()
	return &p, nil
}

func (l *sqlLedger) ListPurchasesByProduct(ctx context.Context, productID string, limit int) ([]domain.Purchase, error) {
	var rows []purchaseRow
	if err := sqlx.SelectContext(ctx, l.q, &rows, l.q.Rebind(selectPurchasesByProduct), productID, limit); err != nil {
		return nil, fmt.Errorf("query purchases: %w", err)
	}

	purchases := make([]domain.Purchase, 0, len(rows))
	for _, r := range rows {
		purchases = append(purchases, r.toDomain())
	}
	return purchases, nil
}

func (l *sqlLedger) mustGetInventory(ctx context.Context, productID string) (*domain.Inventory, error) {
	inv, err := l.GetInventory(ctx, productID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, fmt.Errorf("inventory for %s vanished after write", productID)
	}
	return inv, nil
}

func upsertInventoryQuery(driver string) string {
	if driver == driverMySQL {
		return `
			INSERT INTO inventory (product_id, quantity, reserved_quantity, created_at, updated_at)
			VALUES (?, ?, 0, ?, ?)
			ON DUPLICATE KEY UPDATE quantity = VALUES(quantity), updated_at = VALUES(updated_at)`
	}
	return `
		INSERT INTO inventory (product_id, quantity, reserved_quantity, created_at, updated_at)
		VALUES (?, ?, 0, ?, ?)
		ON CONFLICT (product_id) DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = EXCLUDED.updated_at`
}

func ensureInventoryQuery(driver string) string {
	if driver == driverMySQL {
		return `
			INSERT INTO inventory (product_id, quantity, reserved_quantity, created_at, updated_at)
			VALUES (?, 0, 0, ?, ?)
			ON DUPLICATE KEY UPDATE product_id = product_id`
	}
	return `
		INSERT INTO inventory (product_id, quantity, reserved_quantity, created_at, updated_at)
		VALUES (?, 0, 0, ?, ?)
		ON CONFLICT (product_id) DO NOTHING`
}
