package domain

import "time"

type Inventory struct {
	ProductID        string
	Quantity         int
	ReservedQuantity int // held but not sellable
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Available is the sellable amount. It is derived on every call and never stored.
func (i Inventory) Available() int {
	return i.Quantity - i.ReservedQuantity
}
