package domain

import "github.com/shopspring/decimal"

// Product is the catalog's view of an item. The catalog service owns it; this
// service only reads it.
type Product struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	Attributes  map[string]any
}
