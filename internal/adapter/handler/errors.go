package handler

import (
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rl1809/inventory-purchase/internal/core/domain"
)

type errorMapping struct {
	httpStatus int
	grpcCode   codes.Code
	title      string
	// internal hides the error text from callers.
	internal bool
}

var errorMappings = map[domain.ErrorKind]errorMapping{
	domain.KindValidation:              {http.StatusBadRequest, codes.InvalidArgument, "Validation Error", false},
	domain.KindProductNotFound:         {http.StatusNotFound, codes.NotFound, "Product Not Found", false},
	domain.KindInventoryNotFound:       {http.StatusNotFound, codes.NotFound, "Inventory Not Found", false},
	domain.KindPurchaseNotFound:        {http.StatusNotFound, codes.NotFound, "Purchase Not Found", false},
	domain.KindInsufficientStock:       {http.StatusConflict, codes.FailedPrecondition, "Insufficient Inventory", false},
	domain.KindDuplicateRequest:        {http.StatusConflict, codes.AlreadyExists, "Duplicate Request", false},
	domain.KindServiceUnavailable:      {http.StatusServiceUnavailable, codes.Unavailable, "Service Unavailable", false},
	domain.KindInvalidUpstreamResponse: {http.StatusBadGateway, codes.Internal, "External Service Error", false},
	domain.KindStorageFailure:          {http.StatusInternalServerError, codes.Internal, "Internal Server Error", true},
	domain.KindUnexpected:              {http.StatusInternalServerError, codes.Unknown, "Internal Server Error", true},
}

func mappingFor(err error) errorMapping {
	if m, ok := errorMappings[domain.KindOf(err)]; ok {
		return m
	}
	return errorMappings[domain.KindUnexpected]
}

func errorDetail(err error, m errorMapping) string {
	if m.internal {
		return "An unexpected error occurred. Please try again later."
	}
	var de *domain.Error
	if errors.As(err, &de) && de.Detail != "" {
		return de.Detail
	}
	return err.Error()
}

func toGRPCError(err error) error {
	m := mappingFor(err)
	return status.Error(m.grpcCode, errorDetail(err, m))
}
