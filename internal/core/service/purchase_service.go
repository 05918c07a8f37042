package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rl1809/inventory-purchase/internal/core/domain"
	"github.com/rl1809/inventory-purchase/internal/observability"
	"github.com/rl1809/inventory-purchase/internal/port"
)

type Option func(*options)

type options struct {
	cache   port.CacheRepository
	events  port.EventPublisher
	logger  *zap.Logger
	metrics *observability.Metrics
}

// WithIdempotency enables request id deduplication.
func WithIdempotency(cache port.CacheRepository) Option {
	return func(o *options) { o.cache = cache }
}

// WithEventPublisher announces committed purchases.
func WithEventPublisher(events port.EventPublisher) Option {
	return func(o *options) { o.events = events }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func buildOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// PurchaseService coordinates a purchase across the remote catalog and the
// local inventory store. It holds no per-request state.
type PurchaseService struct {
	catalog port.CatalogClient
	db      port.DatabaseRepository
	options
	tracer trace.Tracer
}

func NewPurchaseService(catalog port.CatalogClient, db port.DatabaseRepository, opts ...Option) *PurchaseService {
	return &PurchaseService{
		catalog: catalog,
		db:      db,
		options: buildOptions(opts),
		tracer:  otel.Tracer("inventory-purchase/service"),
	}
}

// ProcessPurchase resolves the product price, then decrements stock and
// records the purchase in one local transaction. Every failure is a
// *domain.Error; on failure nothing is persisted.
func (s *PurchaseService) ProcessPurchase(ctx context.Context, req domain.PurchaseRequest) (*domain.PurchaseResult, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "PurchaseService.ProcessPurchase", trace.WithAttributes(
		attribute.String("product.id", req.ProductID),
		attribute.Int("purchase.quantity", req.Quantity),
	))
	defer span.End()

	run := &purchaseRun{
		state:  domain.StatePending,
		logger: s.logger.With(zap.String("product_id", req.ProductID), zap.Int("quantity", req.Quantity)),
		span:   span,
	}

	result, err := s.process(ctx, req, run)

	outcome := string(domain.StateCommitted)
	if err != nil {
		outcome = string(domain.KindOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		logFailure(run.logger, err)
	} else {
		run.logger.Info("purchase committed",
			zap.String("purchase_id", result.Purchase.ID),
			zap.String("total_price", result.TotalPrice.StringFixed(2)),
			zap.Int("remaining", result.RemainingAvailable),
		)
	}
	s.metrics.ObservePurchase(outcome, time.Since(start))

	return result, err
}

func (s *PurchaseService) process(ctx context.Context, req domain.PurchaseRequest, run *purchaseRun) (result *domain.PurchaseResult, err error) {
	defer func() {
		if err != nil {
			run.advance(domain.StateAborted)
		}
	}()

	productID := strings.TrimSpace(req.ProductID)
	if productID == "" {
		return nil, domain.NewError(domain.KindValidation, nil, "product id is required")
	}
	if req.Quantity < 1 {
		return nil, domain.NewError(domain.KindValidation, nil, "quantity must be at least 1, got %d", req.Quantity)
	}

	if req.RequestID != "" && s.cache != nil {
		ok, cacheErr := s.cache.SetIdempotency(ctx, req.RequestID)
		if cacheErr != nil {
			return nil, domain.NewError(domain.KindStorageFailure, cacheErr, "idempotency check")
		}
		if !ok {
			return nil, domain.NewError(domain.KindDuplicateRequest, nil, "request %s already processed", req.RequestID)
		}
		defer func() {
			if err == nil {
				return
			}
			// Let the caller retry the same request id.
			if relErr := s.cache.ReleaseIdempotency(context.WithoutCancel(ctx), req.RequestID); relErr != nil {
				run.logger.Warn("release idempotency key failed", zap.String("request_id", req.RequestID), zap.Error(relErr))
			}
		}()
	}

	product, err := s.catalog.FetchProduct(ctx, productID)
	if err != nil {
		return nil, asDomainError(err, domain.KindUnexpected, "catalog lookup for %s", productID)
	}
	run.advance(domain.StateCatalogResolved)

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, storageError(ctx, err, "begin transaction")
	}
	run.advance(domain.StateTransactionOpen)

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			run.logger.Error("rollback failed", zap.Error(rbErr), zap.NamedError("cause", err))
		}
	}()

	// Advisory read; the conditional decrement below is authoritative.
	inv, err := tx.GetInventory(ctx, productID)
	if err != nil {
		return nil, storageError(ctx, err, "read inventory")
	}
	available := 0
	if inv != nil {
		available = inv.Available()
	}
	if available < req.Quantity {
		return nil, domain.InsufficientStock(productID, req.Quantity, available)
	}
	run.advance(domain.StateStockVerified)

	updated, err := tx.DecrementInventory(ctx, productID, req.Quantity)
	if err != nil {
		if errors.Is(err, domain.ErrInventoryNotFound) {
			return nil, domain.InsufficientStock(productID, req.Quantity, 0)
		}
		return nil, storageError(ctx, err, "decrement inventory")
	}
	run.advance(domain.StateStockDecremented)

	total := product.Price.Mul(decimal.NewFromInt(int64(req.Quantity)))

	purchase, err := tx.CreatePurchase(ctx, productID, req.Quantity, total)
	if err != nil {
		return nil, storageError(ctx, err, "write purchase record")
	}
	run.advance(domain.StateRecordWritten)

	if err := tx.Commit(); err != nil {
		return nil, storageError(ctx, err, "commit")
	}
	committed = true
	run.advance(domain.StateCommitted)

	result = &domain.PurchaseResult{
		Purchase:           *purchase,
		Inventory:          *updated,
		Product:            *product,
		UnitPrice:          product.Price,
		TotalPrice:         total,
		RemainingAvailable: updated.Available(),
	}
	s.publish(ctx, run.logger, result)
	return result, nil
}

// publish hands the event off; a failure never undoes the committed purchase.
func (s *PurchaseService) publish(ctx context.Context, logger *zap.Logger, result *domain.PurchaseResult) {
	if s.events == nil {
		return
	}

	event := domain.PurchaseCompleted{
		EventID:      uuid.NewString(),
		PurchaseID:   result.Purchase.ID,
		ProductID:    result.Purchase.ProductID,
		Quantity:     result.Purchase.Quantity,
		UnitPrice:    result.UnitPrice,
		TotalPrice:   result.TotalPrice,
		Remaining:    result.RemainingAvailable,
		PurchaseDate: result.Purchase.PurchaseDate,
	}
	if err := s.events.PublishPurchaseCompleted(context.WithoutCancel(ctx), event); err != nil {
		logger.Warn("publish purchase event failed", zap.String("purchase_id", event.PurchaseID), zap.Error(err))
	}
}

type purchaseRun struct {
	state  domain.PurchaseState
	logger *zap.Logger
	span   trace.Span
}

func (r *purchaseRun) advance(to domain.PurchaseState) {
	if r.state == to {
		return
	}
	if !r.state.CanTransition(to) {
		r.logger.DPanic("illegal purchase state transition",
			zap.String("from", string(r.state)), zap.String("to", string(to)))
		return
	}
	r.logger.Debug("purchase state", zap.String("from", string(r.state)), zap.String("to", string(to)))
	r.span.AddEvent(string(to))
	r.state = to
}

func logFailure(logger *zap.Logger, err error) {
	switch domain.KindOf(err) {
	case domain.KindValidation, domain.KindProductNotFound, domain.KindInsufficientStock, domain.KindDuplicateRequest:
		logger.Info("purchase rejected", zap.Error(err))
	default:
		logger.Error("purchase failed", zap.Error(err))
	}
}

// asDomainError passes *domain.Error values through and wraps anything else
// in the given kind.
func asDomainError(err error, kind domain.ErrorKind, format string, args ...any) error {
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	return domain.NewError(kind, err, format, args...)
}

func storageError(ctx context.Context, err error, op string) error {
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return domain.NewError(domain.KindServiceUnavailable, err, "%s", op)
	}
	return asDomainError(err, domain.KindStorageFailure, "%s", op)
}
