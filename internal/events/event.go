package events

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// TypeOrderStatus is the event type emitted on every persisted status change.
const TypeOrderStatus = "order.status"

// OrderEvent describes an order after a persisted state change.
type OrderEvent struct {
	Type             string          `json:"type"`
	OrderID          string          `json:"order_id"`
	Status           string          `json:"status"`
	PaymentReference string          `json:"payment_reference,omitempty"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	OccurredAt       time.Time       `json:"occurred_at"`
}

// Publisher abstracts delivering order events.
type Publisher interface {
	Publish(ctx context.Context, ev OrderEvent) error
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, OrderEvent) error {
	return nil
}

// MultiPublisher publishes to several publishers in order.
type MultiPublisher struct {
	publishers []Publisher
}

// NewMultiPublisher constructs a Publisher that forwards to each publisher in sequence.
func NewMultiPublisher(publishers ...Publisher) *MultiPublisher {
	return &MultiPublisher{publishers: publishers}
}

// Publish forwards the event to each publisher, collecting errors so all publishers get a chance to run.
func (m *MultiPublisher) Publish(ctx context.Context, ev OrderEvent) error {
	var errs []error
	for _, p := range m.publishers {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
