// Package pb defines the inventory.v1.PurchaseService gRPC contract. Messages
// travel as JSON through the codec registered in codec.go.
package pb

type PurchaseRequest struct {
	ProductId string `json:"product_id,omitempty"`
	Quantity  int32  `json:"quantity,omitempty"`
	RequestId string `json:"request_id,omitempty"`
}

func (x *PurchaseRequest) GetProductId() string {
	if x != nil {
		return x.ProductId
	}
	return ""
}

func (x *PurchaseRequest) GetQuantity() int32 {
	if x != nil {
		return x.Quantity
	}
	return 0
}

func (x *PurchaseRequest) GetRequestId() string {
	if x != nil {
		return x.RequestId
	}
	return ""
}

type Purchase struct {
	Id           string `json:"id,omitempty"`
	ProductId    string `json:"product_id,omitempty"`
	Quantity     int32  `json:"quantity,omitempty"`
	TotalPrice   string `json:"total_price,omitempty"`
	PurchaseDate string `json:"purchase_date,omitempty"` // RFC 3339
	Status       string `json:"status,omitempty"`
}

func (x *Purchase) GetId() string {
	if x != nil {
		return x.Id
	}
	return ""
}

type Product struct {
	Id          string `json:"id,omitempty"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Price       string `json:"price,omitempty"`
}

type Inventory struct {
	ProductId         string `json:"product_id,omitempty"`
	Quantity          int32  `json:"quantity"`
	ReservedQuantity  int32  `json:"reserved_quantity"`
	AvailableQuantity int32  `json:"available_quantity"`
	UpdatedAt         string `json:"updated_at,omitempty"`
}

func (x *Inventory) GetAvailableQuantity() int32 {
	if x != nil {
		return x.AvailableQuantity
	}
	return 0
}

type PurchaseResponse struct {
	Purchase           *Purchase  `json:"purchase,omitempty"`
	Product            *Product   `json:"product,omitempty"`
	Inventory          *Inventory `json:"inventory,omitempty"`
	UnitPrice          string     `json:"unit_price,omitempty"`
	TotalPrice         string     `json:"total_price,omitempty"`
	RemainingAvailable int32      `json:"remaining_available"`
}

func (x *PurchaseResponse) GetPurchase() *Purchase {
	if x != nil {
		return x.Purchase
	}
	return nil
}

func (x *PurchaseResponse) GetTotalPrice() string {
	if x != nil {
		return x.TotalPrice
	}
	return ""
}

func (x *PurchaseResponse) GetRemainingAvailable() int32 {
	if x != nil {
		return x.RemainingAvailable
	}
	return 0
}

type GetPurchaseRequest struct {
	Id string `json:"id,omitempty"`
}

func (x *GetPurchaseRequest) GetId() string {
	if x != nil {
		return x.Id
	}
	return ""
}

type GetInventoryRequest struct {
	ProductId string `json:"product_id,omitempty"`
}

func (x *GetInventoryRequest) GetProductId() string {
	if x != nil {
		return x.ProductId
	}
	return ""
}

type InventoryResponse struct {
	Inventory *Inventory `json:"inventory,omitempty"`
	Product   *Product   `json:"product,omitempty"`
}

func (x *InventoryResponse) GetInventory() *Inventory {
	if x != nil {
		return x.Inventory
	}
	return nil
}
