package rest

import (
	"context"
	"errors"
	"net/http"

	"checkout/internal/orders"
)

// statusFor maps an order service error onto an HTTP status and a short title.
func statusFor(err error) (int, string) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable, "Request cancelled"
	}

	var oe *orders.Error
	if !errors.As(err, &oe) {
		return http.StatusInternalServerError, "An unexpected error occurred"
	}

	switch oe.Kind {
	case orders.KindValidation:
		return http.StatusBadRequest, "Validation error"
	case orders.KindNotFound:
		if oe.Resource == orders.ResourceProduct {
			return http.StatusBadRequest, "Product not found"
		}
		return http.StatusNotFound, "Order not found"
	case orders.KindBusinessRule:
		switch oe.Reason {
		case orders.ReasonInsufficientStock:
			return http.StatusUnprocessableEntity, "Insufficient stock"
		case orders.ReasonInsufficientBalance:
			return http.StatusUnprocessableEntity, "Insufficient balance"
		case orders.ReasonInvalidTransition:
			return http.StatusUnprocessableEntity, "Invalid order status"
		default:
			return http.StatusUnprocessableEntity, "Business rule violation"
		}
	case orders.KindServiceUnavailable:
		return http.StatusServiceUnavailable, "Balance service error"
	default:
		return http.StatusInternalServerError, "An unexpected error occurred"
	}
}

// detailFor hides internal causes of unexpected failures from clients.
func detailFor(status int, err error) string {
	if status == http.StatusInternalServerError {
		return "internal error"
	}
	var oe *orders.Error
	if errors.As(err, &oe) && oe.Message != "" {
		return oe.Message
	}
	return err.Error()
}
