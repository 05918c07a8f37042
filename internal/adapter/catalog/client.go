// Package catalog talks to the remote product catalog that owns product
// identity and price.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rl1809/inventory-purchase/internal/core/domain"
	"github.com/rl1809/inventory-purchase/internal/observability"
)

const maxBodyBytes = 1 << 20

type Config struct {
	BaseURL     string
	APIKey      string
	Timeout     time.Duration // per attempt
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 10 * time.Second
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	return c
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// Client resolves products over HTTP with bounded retries. It is safe for
// concurrent use.
type Client struct {
	cfg     Config
	http    *http.Client
	logger  *zap.Logger
	metrics *observability.Metrics
	tracer  trace.Tracer
}

func NewClient(cfg Config, opts ...Option) *Client {
	c := &Client{
		cfg:    cfg.withDefaults(),
		http:   &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()},
		logger: zap.NewNop(),
		tracer: otel.Tracer("inventory-purchase/catalog"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type productDocument struct {
	Data *struct {
		Type       string                     `json:"type"`
		ID         string                     `json:"id"`
		Attributes map[string]json.RawMessage `json:"attributes"`
	} `json:"data"`
}

func (c *Client) FetchProduct(ctx context.Context, productID string) (*domain.Product, error) {
	ctx, span := c.tracer.Start(ctx, "CatalogClient.FetchProduct",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("product.id", productID)),
	)
	defer span.End()

	attempt := 0
	op := func() (*domain.Product, error) {
		attempt++
		product, err := c.fetchOnce(ctx, productID)
		c.metrics.CatalogAttempt(attemptResult(err))
		return product, err
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("catalog fetch failed, retrying",
			zap.String("product_id", productID),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
		span.AddEvent("retry", trace.WithAttributes(attribute.Int("attempt", attempt)))
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(c.newBackOff(), uint64(c.cfg.MaxAttempts-1)),
		ctx,
	)
	product, err := backoff.RetryNotifyWithData(op, policy, notify)
	if err == nil {
		span.SetAttributes(attribute.Int("catalog.attempts", attempt))
		return product, nil
	}

	err = c.classify(ctx, productID, attempt, err)
	span.RecordError(err)
	span.SetStatus(codes.Error, string(domain.KindOf(err)))
	return nil, err
}

func (c *Client) classify(ctx context.Context, productID string, attempts int, err error) error {
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return domain.NewError(domain.KindServiceUnavailable, ctxErr, "catalog lookup for %s", productID)
	}
	c.logger.Error("catalog unavailable",
		zap.String("product_id", productID),
		zap.Int("attempts", attempts),
		zap.Error(err),
	)
	return domain.NewError(domain.KindServiceUnavailable, err, "catalog lookup for %s failed after %d attempts", productID, attempts)
}

func (c *Client) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.BaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0.2
	b.MaxInterval = c.cfg.MaxDelay
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// fetchOnce performs a single attempt. Errors wrapped in backoff.Permanent
// end the retry loop; anything else is retried.
func (c *Client) fetchOnce(ctx context.Context, productID string) (*domain.Product, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	endpoint := c.cfg.BaseURL + "/api/products/" + url.PathEscape(productID)
	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, backoff.Permanent(domain.NewError(domain.KindUnexpected, err, "build catalog request"))
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", c.cfg.APIKey)
	}
	otel.GetTextMapPropagator().Inject(attemptCtx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, fmt.Errorf("catalog request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, fmt.Errorf("read catalog response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, backoff.Permanent(domain.NewError(domain.KindProductNotFound, nil, "product %s not found", productID))
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("catalog returned status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, backoff.Permanent(domain.NewError(domain.KindUnexpected, nil, "catalog returned status %d for product %s", resp.StatusCode, productID))
	}

	product, err := decodeProduct(body)
	if err != nil {
		return nil, backoff.Permanent(domain.NewError(domain.KindInvalidUpstreamResponse, err, "product %s", productID))
	}
	return product, nil
}

func decodeProduct(body []byte) (*domain.Product, error) {
	var doc productDocument
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	if doc.Data == nil {
		return nil, errors.New("missing data")
	}
	if doc.Data.ID == "" {
		return nil, errors.New("missing id")
	}

	rawPrice, ok := doc.Data.Attributes["price"]
	if !ok {
		return nil, errors.New("missing price")
	}
	price, err := parsePrice(rawPrice)
	if err != nil {
		return nil, err
	}
	if !price.IsPositive() {
		return nil, fmt.Errorf("non-positive price %s", price)
	}

	attrs := make(map[string]any, len(doc.Data.Attributes))
	for k, v := range doc.Data.Attributes {
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return nil, fmt.Errorf("attribute %s: %w", k, err)
		}
		attrs[k] = val
	}

	product := &domain.Product{
		ID:         doc.Data.ID,
		Price:      price,
		Attributes: attrs,
	}
	product.Name, _ = attrs["name"].(string)
	product.Description, _ = attrs["description"].(string)
	return product, nil
}

// parsePrice accepts a JSON number or a numeric string.
func parsePrice(raw json.RawMessage) (decimal.Decimal, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		s = string(raw)
	}
	price, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid price %s", raw)
	}
	return price, nil
}

// Probe makes one unretried request to the catalog health endpoint.
func (c *Client) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return domain.NewError(domain.KindServiceUnavailable, err, "catalog probe")
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))

	if resp.StatusCode >= 500 {
		return domain.NewError(domain.KindServiceUnavailable, nil, "catalog probe returned status %d", resp.StatusCode)
	}
	return nil
}

func attemptResult(err error) string {
	if err == nil {
		return "success"
	}
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		if errors.Is(perm.Err, context.Canceled) || errors.Is(perm.Err, context.DeadlineExceeded) {
			return "canceled"
		}
		return string(domain.KindOf(perm.Err))
	}
	return "transient"
}
