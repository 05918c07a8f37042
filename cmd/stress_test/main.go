package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rl1809/inventory-purchase/internal/adapter/catalog"
	"github.com/rl1809/inventory-purchase/internal/adapter/storage"
	"github.com/rl1809/inventory-purchase/internal/core/domain"
	"github.com/rl1809/inventory-purchase/internal/core/service"
	"github.com/rl1809/inventory-purchase/internal/port"
)

const (
	productID     = "stress-test-item"
	initialStock  = 20
	totalRequests = 50
	unitPrice     = "19.99"
)

// Fires concurrent single-unit purchases at one product and checks that
// exactly initialStock succeed. DB_DRIVER/DB_DSN select a SQL ledger;
// otherwise the in-memory ledger is used.
func main() {
	ctx := context.Background()

	db, err := openStore(ctx)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer db.Close()

	if _, err := db.UpsertInventory(ctx, productID, initialStock); err != nil {
		log.Fatalf("failed to set stock: %v", err)
	}

	// Local catalog so the run exercises the real HTTP client.
	products := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"data":{"type":"products","id":%q,"attributes":{"name":"Stress Item","price":%q}}}`, productID, unitPrice)
	}))
	defer products.Close()

	client := catalog.NewClient(catalog.Config{BaseURL: products.URL, MaxAttempts: 1})
	purchaseService := service.NewPurchaseService(client, db)

	// Counters
	var successCount atomic.Int32
	var rejectedCount atomic.Int32
	var errorCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			_, err := purchaseService.ProcessPurchase(ctx, domain.PurchaseRequest{
				ProductID: productID,
				Quantity:  1,
				RequestID: fmt.Sprintf("stress-%d-%d", start.UnixNano(), n),
			})
			switch {
			case err == nil:
				successCount.Add(1)
			case domain.KindOf(err) == domain.KindInsufficientStock:
				rejectedCount.Add(1)
			default:
				errorCount.Add(1)
				log.Printf("request %d: %v", n, err)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	rejected := rejectedCount.Load()
	errored := errorCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Rejected:         %d\n", rejected)
	fmt.Printf("Errored:          %d\n", errored)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	failed := false
	if success == initialStock && rejected == totalRequests-initialStock {
		fmt.Printf("PASS: Exactly %d purchases succeeded, %d rejected\n", initialStock, totalRequests-initialStock)
	} else {
		fmt.Printf("FAIL: Expected %d success/%d rejected, got %d/%d\n",
			initialStock, totalRequests-initialStock, success, rejected)
		failed = true
	}

	inv, err := db.GetInventory(ctx, productID)
	if err != nil || inv == nil {
		log.Fatalf("failed to read final stock: %v", err)
	}
	fmt.Printf("Final Stock:      %d\n", inv.Quantity)

	history, err := db.ListPurchasesByProduct(ctx, productID, 100)
	if err != nil {
		log.Fatalf("failed to read purchases: %v", err)
	}

	if inv.Quantity == 0 && len(history) >= int(success) {
		fmt.Println("PASS: Stock depleted to 0, one record per sale")
	} else {
		fmt.Printf("FAIL: Expected stock 0 and %d records, got %d and %d\n", success, inv.Quantity, len(history))
		failed = true
	}

	if failed {
		os.Exit(1)
	}
}

func openStore(ctx context.Context) (port.DatabaseRepository, error) {
	driver := os.Getenv("DB_DRIVER")
	if driver == "" || driver == "memory" {
		return storage.NewMemoryStore(), nil
	}

	store, err := storage.OpenSQLStore(ctx, driver, os.Getenv("DB_DSN"), storage.PoolOptions{MaxOpenConns: 50, MaxIdleConns: 25})
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}
