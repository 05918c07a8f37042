package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rl1809/inventory-purchase/internal/core/domain"
)

// Response bodies follow the JSON:API document layout.

type resource struct {
	Type       string `json:"type"`
	ID         string `json:"id"`
	Attributes any    `json:"attributes"`
}

type document struct {
	Data     any            `json:"data"`
	Included []resource     `json:"included,omitempty"`
	Meta     map[string]any `json:"meta,omitempty"`
}

type apiError struct {
	Status string         `json:"status"`
	Title  string         `json:"title"`
	Detail string         `json:"detail"`
	Meta   map[string]any `json:"meta,omitempty"`
}

type errorDocument struct {
	Errors []apiError `json:"errors"`
}

type purchaseAttributes struct {
	ProductID    string    `json:"product_id"`
	Quantity     int       `json:"quantity"`
	TotalPrice   string    `json:"total_price"`
	PurchaseDate time.Time `json:"purchase_date"`
	Status       string    `json:"status"`
}

type inventoryAttributes struct {
	ProductID         string    `json:"product_id"`
	Quantity          int       `json:"quantity"`
	ReservedQuantity  int       `json:"reserved_quantity"`
	AvailableQuantity int       `json:"available_quantity"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func purchaseResource(p domain.Purchase) resource {
	return resource{
		Type: "purchases",
		ID:   p.ID,
		Attributes: purchaseAttributes{
			ProductID:    p.ProductID,
			Quantity:     p.Quantity,
			TotalPrice:   p.TotalPrice.StringFixed(2),
			PurchaseDate: p.PurchaseDate,
			Status:       string(p.Status),
		},
	}
}

func inventoryResource(inv domain.Inventory) resource {
	return resource{
		Type: "inventory",
		ID:   inv.ProductID,
		Attributes: inventoryAttributes{
			ProductID:         inv.ProductID,
			Quantity:          inv.Quantity,
			ReservedQuantity:  inv.ReservedQuantity,
			AvailableQuantity: inv.Available(),
			CreatedAt:         inv.CreatedAt,
			UpdatedAt:         inv.UpdatedAt,
		},
	}
}

func productResource(p domain.Product) resource {
	attrs := p.Attributes
	if attrs == nil {
		attrs = map[string]any{
			"name":        p.Name,
			"description": p.Description,
			"price":       p.Price.String(),
		}
	}
	return resource{Type: "products", ID: p.ID, Attributes: attrs}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/vnd.api+json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	m := mappingFor(err)
	e := apiError{
		Status: strconv.Itoa(m.httpStatus),
		Title:  m.title,
		Detail: errorDetail(err, m),
	}

	var de *domain.Error
	if errors.As(err, &de) && de.Kind == domain.KindInsufficientStock {
		e.Meta = map[string]any{"requested": de.Requested, "available": de.Available}
	}
	writeJSON(w, m.httpStatus, errorDocument{Errors: []apiError{e}})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	writeJSON(w, status, errorDocument{Errors: []apiError{{
		Status: strconv.Itoa(status),
		Title:  title,
		Detail: detail,
	}}})
}
