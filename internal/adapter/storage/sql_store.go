package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/rl1809/inventory-purchase/internal/port"
)

const (
	driverMySQL    = "mysql"
	driverPostgres = "pgx"
)

type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// SQLStore is the relational ledger for inventory and purchase history.
// It speaks MySQL through go-sql-driver and PostgreSQL through pgx.
type SQLStore struct {
	sqlLedger
	db *sqlx.DB
}

func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{
		sqlLedger: sqlLedger{q: db, now: utcNow},
		db:        db,
	}
}

// OpenSQLStore connects to "mysql" or "postgres" and verifies the connection.
func OpenSQLStore(ctx context.Context, driver, dsn string, pool PoolOptions) (*SQLStore, error) {
	driverName, dsn, err := normalizeDSN(driver, dsn)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	return NewSQLStore(db), nil
}

func (s *SQLStore) BeginTx(ctx context.Context) (port.Tx, error) {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &sqlTx{
		sqlLedger: sqlLedger{q: tx, now: s.now},
		tx:        tx,
	}, nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) DB() *sqlx.DB {
	return s.db
}

type sqlTx struct {
	sqlLedger
	tx *sqlx.Tx
}

func (t *sqlTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqlTx) Rollback() error {
	return t.tx.Rollback()
}

// normalizeDSN maps the configured driver to its database/sql name. MySQL
// DSNs are forced to parse times in UTC so DATETIME columns scan into time.Time.
func normalizeDSN(driver, dsn string) (string, string, error) {
	switch driver {
	case "mysql":
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return "", "", fmt.Errorf("parse mysql dsn: %w", err)
		}
		cfg.ParseTime = true
		cfg.Loc = time.UTC
		return driverMySQL, cfg.FormatDSN(), nil
	case "postgres", "pgx":
		return driverPostgres, dsn, nil
	default:
		return "", "", fmt.Errorf("unsupported storage driver %q", driver)
	}
}

func utcNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
