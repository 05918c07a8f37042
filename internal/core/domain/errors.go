package domain

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindProductNotFound         ErrorKind = "product_not_found"
	KindInventoryNotFound       ErrorKind = "inventory_not_found"
	KindPurchaseNotFound        ErrorKind = "purchase_not_found"
	KindInsufficientStock       ErrorKind = "insufficient_stock"
	KindServiceUnavailable      ErrorKind = "service_unavailable"
	KindInvalidUpstreamResponse ErrorKind = "invalid_upstream_response"
	KindStorageFailure          ErrorKind = "storage_failure"
	KindValidation              ErrorKind = "validation"
	KindDuplicateRequest        ErrorKind = "duplicate_request"
	KindUnexpected              ErrorKind = "unexpected"
)

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrProductNotFound         = &Error{Kind: KindProductNotFound}
	ErrInventoryNotFound       = &Error{Kind: KindInventoryNotFound}
	ErrPurchaseNotFound        = &Error{Kind: KindPurchaseNotFound}
	ErrInsufficientStock       = &Error{Kind: KindInsufficientStock}
	ErrServiceUnavailable      = &Error{Kind: KindServiceUnavailable}
	ErrInvalidUpstreamResponse = &Error{Kind: KindInvalidUpstreamResponse}
	ErrStorageFailure          = &Error{Kind: KindStorageFailure}
	ErrValidation              = &Error{Kind: KindValidation}
	ErrDuplicateRequest        = &Error{Kind: KindDuplicateRequest}
	ErrUnexpected              = &Error{Kind: KindUnexpected}
)

// Error is the structured failure returned across the service boundary.
// Requested and Available are only set for KindInsufficientStock.
type Error struct {
	Kind      ErrorKind
	Detail    string
	Requested int
	Available int
	Err       error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func NewError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...), Err: err}
}

func InsufficientStock(productID string, requested, available int) *Error {
	return &Error{
		Kind:      KindInsufficientStock,
		Detail:    fmt.Sprintf("requested quantity %d exceeds available inventory %d for product %s", requested, available, productID),
		Requested: requested,
		Available: available,
	}
}

// KindOf reports the kind of err, or KindUnexpected when err carries no *Error.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnexpected
}
