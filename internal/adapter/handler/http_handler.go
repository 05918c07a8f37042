package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/rl1809/inventory-purchase/internal/core/domain"
	"github.com/rl1809/inventory-purchase/internal/core/service"
)

const maxRequestBody = 1 << 20

type PurchaseProcessor interface {
	ProcessPurchase(ctx context.Context, req domain.PurchaseRequest) (*domain.PurchaseResult, error)
}

type InventoryManager interface {
	GetInventory(ctx context.Context, productID string) (*service.InventoryDetails, error)
	SetQuantity(ctx context.Context, productID string, quantity int) (*service.InventoryDetails, error)
	GetPurchase(ctx context.Context, id string) (*domain.Purchase, error)
	PurchaseHistory(ctx context.Context, productID string, limit int) ([]domain.Purchase, error)
	Health(ctx context.Context) service.HealthReport
}

type HTTPConfig struct {
	ServiceName string
	Version     string
	// APIKey guards /api routes. Empty disables the check.
	APIKey string
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

type HTTPHandler struct {
	purchases PurchaseProcessor
	inventory InventoryManager
	logger    *zap.Logger
	cfg       HTTPConfig
}

type PurchaseHTTPRequest struct {
	ProductID string `json:"product_id"`
	Quantity  *int   `json:"quantity"`
	RequestID string `json:"request_id"`
}

type UpdateInventoryHTTPRequest struct {
	Quantity *int `json:"quantity"`
}

func NewHTTPHandler(purchases PurchaseProcessor, inventory InventoryManager, logger *zap.Logger, cfg HTTPConfig) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{purchases: purchases, inventory: inventory, logger: logger, cfg: cfg}
}

// Routes builds the router. /health, / and /metrics are public.
func (h *HTTPHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(traceRequests)
	r.Use(logRequests(h.logger))
	r.Use(middleware.Recoverer)

	r.Get("/", h.ServiceInfo)
	r.Get("/health", h.HealthCheck)
	if h.cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.cfg.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(requireAPIKey(h.cfg.APIKey))
		r.Use(middleware.RequestSize(maxRequestBody))

		r.Post("/purchase", h.Purchase)
		r.Get("/purchase/{id}", h.GetPurchase)
		r.Get("/inventory/{productId}", h.GetInventory)
		r.Put("/inventory/{productId}", h.UpdateInventory)
		r.Get("/inventory/{productId}/purchases", h.PurchaseHistory)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, http.StatusNotFound, "Not Found", fmt.Sprintf("Route %s %s not found.", r.Method, r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, http.StatusMethodNotAllowed, "Method Not Allowed", fmt.Sprintf("Method %s is not allowed on %s.", r.Method, r.URL.Path))
	})
	return r
}

func (h *HTTPHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	var req PurchaseHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Validation Error", "invalid request body")
		return
	}
	if req.ProductID == "" || req.Quantity == nil {
		writeProblem(w, http.StatusBadRequest, "Validation Error", "product_id and quantity are required")
		return
	}

	requestID := req.RequestID
	if requestID == "" {
		requestID = r.Header.Get("Idempotency-Key")
	}

	result, err := h.purchases.ProcessPurchase(r.Context(), domain.PurchaseRequest{
		ProductID: req.ProductID,
		Quantity:  *req.Quantity,
		RequestID: requestID,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, document{
		Data: purchaseResource(result.Purchase),
		Included: []resource{
			productResource(result.Product),
			inventoryResource(result.Inventory),
		},
		Meta: map[string]any{
			"unit_price":          result.UnitPrice.StringFixed(2),
			"total_price":         result.TotalPrice.StringFixed(2),
			"remaining_inventory": result.RemainingAvailable,
		},
	})
}

func (h *HTTPHandler) GetPurchase(w http.ResponseWriter, r *http.Request) {
	p, err := h.inventory.GetPurchase(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, document{Data: purchaseResource(*p)})
}

func (h *HTTPHandler) GetInventory(w http.ResponseWriter, r *http.Request) {
	details, err := h.inventory.GetInventory(r.Context(), chi.URLParam(r, "productId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inventoryDocument(details))
}

func (h *HTTPHandler) UpdateInventory(w http.ResponseWriter, r *http.Request) {
	var req UpdateInventoryHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Quantity == nil {
		writeProblem(w, http.StatusBadRequest, "Validation Error", "quantity must be a non-negative integer")
		return
	}

	details, err := h.inventory.SetQuantity(r.Context(), chi.URLParam(r, "productId"), *req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inventoryDocument(details))
}

func (h *HTTPHandler) PurchaseHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Validation Error", "limit must be an integer")
			return
		}
		limit = n
	}

	purchases, err := h.inventory.PurchaseHistory(r.Context(), chi.URLParam(r, "productId"), limit)
	if err != nil {
		writeError(w, err)
		return
	}

	data := make([]resource, 0, len(purchases))
	for _, p := range purchases {
		data = append(data, purchaseResource(p))
	}
	writeJSON(w, http.StatusOK, document{Data: data, Meta: map[string]any{"count": len(data)}})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := h.inventory.Health(r.Context())

	body := map[string]any{
		"status":           report.Status,
		"timestamp":        report.CheckedAt.Format(time.RFC3339),
		"service":          h.cfg.ServiceName,
		"version":          h.cfg.Version,
		"database":         report.Database,
		"products_service": report.Catalog,
	}
	status := http.StatusOK
	if report.Status == service.HealthError {
		status = http.StatusServiceUnavailable
		body["error"] = report.Error
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (h *HTTPHandler) ServiceInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": h.cfg.ServiceName,
		"version": h.cfg.Version,
		"endpoints": []string{
			"GET /health",
			"GET /metrics",
			"POST /api/purchase",
			"GET /api/purchase/{id}",
			"GET /api/inventory/{productId}",
			"PUT /api/inventory/{productId}",
			"GET /api/inventory/{productId}/purchases",
		},
	})
}

func inventoryDocument(details *service.InventoryDetails) document {
	doc := document{Data: inventoryResource(details.Inventory)}
	if details.Product != nil {
		doc.Included = []resource{productResource(*details.Product)}
	}
	return doc
}
