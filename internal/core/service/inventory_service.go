package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/inventory-purchase/internal/core/domain"
	"github.com/rl1809/inventory-purchase/internal/port"
)

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 100
)

// InventoryDetails pairs a stock row with the catalog's view of the product.
// Product is nil when the catalog could not be reached.
type InventoryDetails struct {
	Inventory domain.Inventory
	Product   *domain.Product
}

type HealthStatus string

const (
	HealthOK       HealthStatus = "ok"
	HealthDegraded HealthStatus = "degraded"
	HealthError    HealthStatus = "error"
)

type HealthReport struct {
	Status    HealthStatus
	Database  string
	Catalog   string
	Error     string
	CheckedAt time.Time
}

// InventoryService serves stock reads, administrative stock updates and
// purchase history.
type InventoryService struct {
	catalog port.CatalogClient
	db      port.DatabaseRepository
	options
}

func NewInventoryService(catalog port.CatalogClient, db port.DatabaseRepository, opts ...Option) *InventoryService {
	return &InventoryService{
		catalog: catalog,
		db:      db,
		options: buildOptions(opts),
	}
}

// GetInventory returns the stock row, creating an empty one on first read.
// Product info is best effort.
func (s *InventoryService) GetInventory(ctx context.Context, productID string) (*InventoryDetails, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, domain.NewError(domain.KindValidation, nil, "product id is required")
	}

	inv, err := s.db.EnsureInventory(ctx, productID)
	if err != nil {
		return nil, storageError(ctx, err, "load inventory")
	}

	details := &InventoryDetails{Inventory: *inv}
	product, err := s.catalog.FetchProduct(ctx, productID)
	if err != nil {
		s.logger.Warn("product info unavailable", zap.String("product_id", productID), zap.Error(err))
	} else {
		details.Product = product
	}
	return details, nil
}

// SetQuantity overwrites the stock level of a product the catalog knows about.
func (s *InventoryService) SetQuantity(ctx context.Context, productID string, quantity int) (*InventoryDetails, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, domain.NewError(domain.KindValidation, nil, "product id is required")
	}
	if quantity < 0 {
		return nil, domain.NewError(domain.KindValidation, nil, "quantity must be a non-negative integer, got %d", quantity)
	}

	product, err := s.catalog.FetchProduct(ctx, productID)
	if err != nil {
		return nil, asDomainError(err, domain.KindUnexpected, "catalog lookup for %s", productID)
	}

	inv, err := s.db.UpsertInventory(ctx, productID, quantity)
	if err != nil {
		return nil, storageError(ctx, err, "update inventory")
	}

	s.logger.Info("inventory updated", zap.String("product_id", productID), zap.Int("quantity", quantity))
	return &InventoryDetails{Inventory: *inv, Product: product}, nil
}

func (s *InventoryService) GetPurchase(ctx context.Context, id string) (*domain.Purchase, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.NewError(domain.KindValidation, nil, "purchase id is required")
	}

	p, err := s.db.GetPurchase(ctx, id)
	if err != nil {
		return nil, storageError(ctx, err, "load purchase")
	}
	if p == nil {
		return nil, domain.NewError(domain.KindPurchaseNotFound, nil, "purchase %s not found", id)
	}
	return p, nil
}

// PurchaseHistory lists a product's purchases newest first. A limit outside
// 1..100 falls back to the default or the cap.
func (s *InventoryService) PurchaseHistory(ctx context.Context, productID string, limit int) ([]domain.Purchase, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, domain.NewError(domain.KindValidation, nil, "product id is required")
	}

	switch {
	case limit <= 0:
		limit = defaultHistoryLimit
	case limit > maxHistoryLimit:
		limit = maxHistoryLimit
	}

	purchases, err := s.db.ListPurchasesByProduct(ctx, productID, limit)
	if err != nil {
		return nil, storageError(ctx, err, "list purchases")
	}
	return purchases, nil
}

// Health pings the database and probes the catalog. A catalog outage only
// degrades the service; a database outage fails it.
func (s *InventoryService) Health(ctx context.Context) HealthReport {
	report := HealthReport{Status: HealthOK, CheckedAt: time.Now().UTC()}

	if err := s.db.Ping(ctx); err != nil {
		report.Status = HealthError
		report.Database = "disconnected"
		report.Error = err.Error()
		return report
	}
	report.Database = "connected"

	prober, ok := s.catalog.(port.CatalogProber)
	if !ok {
		report.Catalog = "unknown"
		return report
	}
	if err := prober.Probe(ctx); err != nil {
		report.Catalog = "disconnected"
		report.Status = HealthDegraded
		if !errors.Is(err, domain.ErrServiceUnavailable) {
			report.Catalog = "error"
		}
		return report
	}
	report.Catalog = "connected"
	return report
}
