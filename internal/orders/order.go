package orders

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// LineItem is a snapshot of a catalog product taken when the order was created.
type LineItem struct {
	ProductID   string
	ProductName string
	UnitPrice   decimal.Decimal
	Quantity    int
	LineTotal   decimal.Decimal
}

// NewLineItem computes the line total from the snapshot price.
func NewLineItem(productID, productName string, unitPrice decimal.Decimal, quantity int) LineItem {
	return LineItem{
		ProductID:   productID,
		ProductName: productName,
		UnitPrice:   unitPrice,
		Quantity:    quantity,
		LineTotal:   unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
	}
}

// SumLineTotals returns the exact sum of the line totals.
func SumLineTotals(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal)
	}
	return total
}

// Order is a customer order paid through the balance provider.
type Order struct {
	ID               string
	CustomerEmail    string
	CustomerName     string
	TotalAmount      decimal.Decimal
	Status           Status
	PaymentReference string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Items            []LineItem

	// Version is the optimistic concurrency token maintained by the store.
	Version int64
}

// NewOrder validates the inputs and only then asks newID for an identifier.
func NewOrder(customerEmail, customerName string, total decimal.Decimal, items []LineItem, now time.Time, newID func() string) (*Order, error) {
	if strings.TrimSpace(customerEmail) == "" {
		return nil, validationError("customer email cannot be empty")
	}
	if strings.TrimSpace(customerName) == "" {
		return nil, validationError("customer name cannot be empty")
	}
	if !total.IsPositive() {
		return nil, validationError("total amount must be greater than zero")
	}
	if len(items) == 0 {
		return nil, validationError("order must contain at least one item")
	}

	now = now.UTC()
	return &Order{
		ID:            newID(),
		CustomerEmail: customerEmail,
		CustomerName:  customerName,
		TotalAmount:   total,
		Status:        StatusCreated,
		CreatedAt:     now,
		UpdatedAt:     now,
		Items:         append([]LineItem(nil), items...),
	}, nil
}

// Reserve records the provider's reservation reference.
func (o *Order) Reserve(paymentReference string, now time.Time) error {
	if !o.Status.CanTransitionTo(StatusPaymentReserved) {
		return invalidTransition(o.ID, o.Status, StatusPaymentReserved)
	}
	if strings.TrimSpace(paymentReference) == "" {
		return validationError("payment reference cannot be empty")
	}
	o.Status = StatusPaymentReserved
	o.PaymentReference = paymentReference
	o.UpdatedAt = now.UTC()
	return nil
}

// Complete marks a reserved order as captured.
func (o *Order) Complete(now time.Time) error {
	return o.moveTo(StatusCompleted, now)
}

// Fail marks the order as failed.
func (o *Order) Fail(now time.Time) error {
	return o.moveTo(StatusFailed, now)
}

// Cancel marks the order as cancelled.
func (o *Order) Cancel(now time.Time) error {
	return o.moveTo(StatusCancelled, now)
}

func (o *Order) moveTo(target Status, now time.Time) error {
	if !o.Status.CanTransitionTo(target) {
		return invalidTransition(o.ID, o.Status, target)
	}
	o.Status = target
	o.UpdatedAt = now.UTC()
	return nil
}

// Clone returns a deep copy so stores never share line-item slices with callers.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	cp := *o
	cp.Items = append([]LineItem(nil), o.Items...)
	return &cp
}
