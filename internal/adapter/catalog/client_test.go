package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/inventory-purchase/internal/core/domain"
)

const widgetBody = `{"data":{"type":"products","id":"p-1","attributes":{"name":"Widget","description":"A widget","price":25.00,"color":"red"}}}`

func newTestClient(url string) *Client {
	return NewClient(Config{
		BaseURL:     url,
		APIKey:      "secret",
		Timeout:     200 * time.Millisecond,
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	})
}

func TestFetchProduct_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/products/p-1", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		w.Write([]byte(widgetBody))
	}))
	defer srv.Close()

	product, err := newTestClient(srv.URL).FetchProduct(context.Background(), "p-1")
	require.NoError(t, err)

	assert.Equal(t, "p-1", product.ID)
	assert.Equal(t, "Widget", product.Name)
	assert.Equal(t, "A widget", product.Description)
	assert.True(t, product.Price.Equal(decimal.RequireFromString("25")))
	assert.Equal(t, "red", product.Attributes["color"])
}

func TestFetchProduct_StringPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"type":"products","id":"p-1","attributes":{"price":"19.99"}}}`))
	}))
	defer srv.Close()

	product, err := newTestClient(srv.URL).FetchProduct(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, "19.99", product.Price.StringFixed(2))
}

func TestFetchProduct_RetriesTransient(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(widgetBody))
	}))
	defer srv.Close()

	product, err := newTestClient(srv.URL).FetchProduct(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, "p-1", product.ID)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchProduct_ExhaustedRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).FetchProduct(context.Background(), "p-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
	assert.Contains(t, err.Error(), "status 500")
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchProduct_AttemptTimeoutIsTransient(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
			return
		}
		w.Write([]byte(widgetBody))
	}))
	defer srv.Close()

	product, err := newTestClient(srv.URL).FetchProduct(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, "p-1", product.ID)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchProduct_TerminalErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"not found", http.StatusNotFound, `{"errors":[]}`, domain.ErrProductNotFound},
		{"client error", http.StatusUnauthorized, ``, domain.ErrUnexpected},
		{"malformed json", http.StatusOK, `{"data":`, domain.ErrInvalidUpstreamResponse},
		{"missing data", http.StatusOK, `{}`, domain.ErrInvalidUpstreamResponse},
		{"missing id", http.StatusOK, `{"data":{"attributes":{"price":1}}}`, domain.ErrInvalidUpstreamResponse},
		{"missing price", http.StatusOK, `{"data":{"id":"p-1","attributes":{}}}`, domain.ErrInvalidUpstreamResponse},
		{"zero price", http.StatusOK, `{"data":{"id":"p-1","attributes":{"price":0}}}`, domain.ErrInvalidUpstreamResponse},
		{"bad price", http.StatusOK, `{"data":{"id":"p-1","attributes":{"price":"abc"}}}`, domain.ErrInvalidUpstreamResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newTestClient(srv.URL).FetchProduct(context.Background(), "p-1")
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, int32(1), calls.Load(), "terminal errors must not be retried")
		})
	}
}

func TestFetchProduct_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestClient(url).FetchProduct(context.Background(), "p-1")
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
}

func TestFetchProduct_CallerCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(Config{
		BaseURL:     srv.URL,
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    2 * time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	_, err := client.FetchProduct(ctx, "p-1")

	assert.Less(t, time.Since(start), 900*time.Millisecond, "cancellation must interrupt the backoff wait")
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestProbe(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer healthy.Close()
	assert.NoError(t, newTestClient(healthy.URL).Probe(context.Background()))

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer failing.Close()
	assert.ErrorIs(t, newTestClient(failing.URL).Probe(context.Background()), domain.ErrServiceUnavailable)
}
