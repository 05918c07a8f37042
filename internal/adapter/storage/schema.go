package storage

import (
	"context"
	"fmt"
)

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS inventory (
		product_id VARCHAR(64) NOT NULL PRIMARY KEY,
		quantity INT NOT NULL DEFAULT 0,
		reserved_quantity INT NOT NULL DEFAULT 0,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		CONSTRAINT chk_inventory_quantity CHECK (quantity >= 0),
		CONSTRAINT chk_inventory_reserved CHECK (reserved_quantity >= 0 AND reserved_quantity <= quantity)
	)`,
	`CREATE TABLE IF NOT EXISTS purchase_history (
		id CHAR(36) NOT NULL PRIMARY KEY,
		product_id VARCHAR(64) NOT NULL,
		quantity INT NOT NULL,
		total_price DECIMAL(18,4) NOT NULL,
		purchase_date DATETIME(6) NOT NULL,
		status VARCHAR(32) NOT NULL,
		INDEX idx_purchase_product_date (product_id, purchase_date),
		CONSTRAINT chk_purchase_quantity CHECK (quantity > 0)
	)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS inventory (
		product_id VARCHAR(64) PRIMARY KEY,
		quantity INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
		reserved_quantity INTEGER NOT NULL DEFAULT 0 CHECK (reserved_quantity >= 0),
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		CHECK (reserved_quantity <= quantity)
	)`,
	`CREATE TABLE IF NOT EXISTS purchase_history (
		id VARCHAR(36) PRIMARY KEY,
		product_id VARCHAR(64) NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		total_price NUMERIC(18,4) NOT NULL,
		purchase_date TIMESTAMPTZ NOT NULL,
		status VARCHAR(32) NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_purchase_product_date ON purchase_history (product_id, purchase_date)`,
}

// Migrate creates the inventory and purchase_history tables if they are missing.
// MySQL statements run one at a time since the driver rejects multi-statement
// strings unless the DSN opts in.
func (s *SQLStore) Migrate(ctx context.Context) error {
	stmts := postgresSchema
	if s.db.DriverName() == driverMySQL {
		stmts = mysqlSchema
	}

	for i, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
