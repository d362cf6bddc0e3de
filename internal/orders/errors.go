package orders

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Kind classifies an order failure for callers at the boundary.
type Kind int

const (
	KindUnexpected Kind = iota
	KindValidation
	KindNotFound
	KindBusinessRule
	KindServiceUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not found"
	case KindBusinessRule:
		return "business rule"
	case KindServiceUnavailable:
		return "service unavailable"
	default:
		return "unexpected"
	}
}

// Reason narrows a Kind to a specific rule.
type Reason string

const (
	ReasonInsufficientStock   Reason = "InsufficientStock"
	ReasonInsufficientBalance Reason = "InsufficientBalance"
	ReasonInvalidTransition   Reason = "InvalidTransition"
	ReasonInvalidOperation    Reason = "InvalidOperation"
	ReasonCircuitOpen         Reason = "CircuitOpen"
	ReasonConcurrentUpdate    Reason = "ConcurrentUpdate"
)

// Resource names what a NotFound error refers to.
type Resource string

const (
	ResourceProduct Resource = "product"
	ResourceOrder   Resource = "order"
)

// Error is the structured failure returned by the order service.
type Error struct {
	Kind    Kind
	Reason  Reason
	Message string

	Resource  Resource
	ProductID string
	OrderID   string

	Requested int
	Available int

	RequiredAmount  decimal.Decimal
	AvailableAmount decimal.Decimal

	From Status
	To   Status

	Operation string
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Reason != "" {
		b.WriteString(" (")
		b.WriteString(string(e.Reason))
		b.WriteString(")")
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind, and by reason when the target names one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

var (
	ErrValidation          = &Error{Kind: KindValidation}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrBusinessRule        = &Error{Kind: KindBusinessRule}
	ErrServiceUnavailable  = &Error{Kind: KindServiceUnavailable}
	ErrUnexpected          = &Error{Kind: KindUnexpected}
	ErrInsufficientStock   = &Error{Kind: KindBusinessRule, Reason: ReasonInsufficientStock}
	ErrInsufficientBalance = &Error{Kind: KindBusinessRule, Reason: ReasonInsufficientBalance}
	ErrInvalidTransition   = &Error{Kind: KindBusinessRule, Reason: ReasonInvalidTransition}
	ErrInvalidOperation    = &Error{Kind: KindBusinessRule, Reason: ReasonInvalidOperation}
	ErrCircuitOpen         = &Error{Kind: KindServiceUnavailable, Reason: ReasonCircuitOpen}
)

// ErrConcurrentUpdate is returned by stores when a record changed since it was read.
var ErrConcurrentUpdate = errors.New("order was modified concurrently")

// KindOf returns the taxonomy kind of err; anything outside it is unexpected.
func KindOf(err error) Kind {
	var oe *Error
	if errors.As(err, &oe) {
		return oe.Kind
	}
	return KindUnexpected
}

func validationError(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func productNotFound(productID string) *Error {
	return &Error{
		Kind:      KindNotFound,
		Resource:  ResourceProduct,
		ProductID: productID,
		Message:   fmt.Sprintf("product %s was not found", productID),
	}
}

func orderNotFound(orderID string) *Error {
	return &Error{
		Kind:     KindNotFound,
		Resource: ResourceOrder,
		OrderID:  orderID,
		Message:  fmt.Sprintf("order %s was not found", orderID),
	}
}

func insufficientStock(productID string, requested, available int) *Error {
	return &Error{
		Kind:      KindBusinessRule,
		Reason:    ReasonInsufficientStock,
		ProductID: productID,
		Requested: requested,
		Available: available,
		Message:   fmt.Sprintf("product %s: requested %d, available %d", productID, requested, available),
	}
}

func insufficientBalance(required, available decimal.Decimal) *Error {
	return &Error{
		Kind:            KindBusinessRule,
		Reason:          ReasonInsufficientBalance,
		RequiredAmount:  required,
		AvailableAmount: available,
		Message:         fmt.Sprintf("required %s, available %s", required, available),
	}
}

func invalidTransition(orderID string, from, to Status) *Error {
	return &Error{
		Kind:    KindBusinessRule,
		Reason:  ReasonInvalidTransition,
		OrderID: orderID,
		From:    from,
		To:      to,
		Message: fmt.Sprintf("order %s cannot move from %s to %s", orderID, from, to),
	}
}

func invalidOperation(orderID, message string) *Error {
	return &Error{
		Kind:    KindBusinessRule,
		Reason:  ReasonInvalidOperation,
		OrderID: orderID,
		Message: message,
	}
}

func serviceUnavailable(operation, details string, err error) *Error {
	return &Error{
		Kind:      KindServiceUnavailable,
		Operation: operation,
		Message:   fmt.Sprintf("balance service operation %q failed: %s", operation, details),
		Err:       err,
	}
}

func unexpected(operation string, err error) *Error {
	return &Error{
		Kind:      KindUnexpected,
		Operation: operation,
		Message:   operation,
		Err:       err,
	}
}
