package port

import (
	"context"

	"github.com/rl1809/inventory-purchase/internal/core/domain"
)

type CatalogClient interface {
	// FetchProduct resolves a product and its authoritative price, retrying transient failures
	FetchProduct(ctx context.Context, productID string) (*domain.Product, error)
}

type EventPublisher interface {
	PublishPurchaseCompleted(ctx context.Context, event domain.PurchaseCompleted) error
}

// CatalogProber is implemented by catalog clients that can report reachability
// without retrying.
type CatalogProber interface {
	Probe(ctx context.Context) error
}
