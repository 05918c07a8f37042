package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PurchaseStatus string

const (
	PurchaseStatusCompleted PurchaseStatus = "completed"
)

type Purchase struct {
	ID           string
	ProductID    string
	Quantity     int
	TotalPrice   decimal.Decimal
	PurchaseDate time.Time
	Status       PurchaseStatus
}

type PurchaseRequest struct {
	ProductID string
	Quantity  int
	// RequestID is an optional client idempotency key.
	RequestID string
}

// PurchaseResult is what a committed purchase returns to the caller.
type PurchaseResult struct {
	Purchase           Purchase
	Inventory          Inventory // snapshot taken after the decrement
	Product            Product
	UnitPrice          decimal.Decimal
	TotalPrice         decimal.Decimal
	RemainingAvailable int
}

// PurchaseCompleted is published after a purchase commits.
type PurchaseCompleted struct {
	EventID      string          `json:"event_id"`
	PurchaseID   string          `json:"purchase_id"`
	ProductID    string          `json:"product_id"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	TotalPrice   decimal.Decimal `json:"total_price"`
	Remaining    int             `json:"remaining_available_quantity"`
	PurchaseDate time.Time       `json:"purchase_date"`
}
