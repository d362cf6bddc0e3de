package orders

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"checkout/internal/balance"
	"checkout/internal/events"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Gateway is the resilient view of the balance provider used by the saga.
type Gateway interface {
	ListProducts(ctx context.Context) (balance.ProductsResponse, error)
	GetBalance(ctx context.Context) (balance.BalanceResponse, error)
	Reserve(ctx context.Context, orderID string, amount decimal.Decimal) (balance.ReserveResponse, error)
	Capture(ctx context.Context, paymentReference string) (balance.CaptureResponse, error)
}

// Publisher announces persisted order state changes.
type Publisher interface {
	Publish(ctx context.Context, ev events.OrderEvent) error
}

// ItemRequest is one requested product line.
type ItemRequest struct {
	ProductID string
	Quantity  int
}

// CreateOrderRequest is the input to CreateOrder.
type CreateOrderRequest struct {
	CustomerEmail string
	CustomerName  string
	Items         []ItemRequest
}

// Saga step names recorded in the step log.
const (
	StepReserve = "reserve"
	StepCapture = "capture"
	StepCancel  = "cancel"
)

const (
	stepStarted   = "started"
	stepSucceeded = "succeeded"
	stepFailed    = "failed"
)

// Option customizes an OrderService.
type Option func(*OrderService)

// WithStepLog records saga steps in log.
func WithStepLog(steps StepLog) Option {
	return func(s *OrderService) {
		if steps != nil {
			s.steps = steps
		}
	}
}

// WithPublisher announces state changes through p.
func WithPublisher(p Publisher) Option {
	return func(s *OrderService) {
		s.publisher = p
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *OrderService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator replaces the UUID order id generator.
func WithIDGenerator(newID func() string) Option {
	return func(s *OrderService) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// WithLogger replaces log.Printf.
func WithLogger(logf func(format string, args ...any)) Option {
	return func(s *OrderService) {
		if logf != nil {
			s.logf = logf
		}
	}
}

// OrderService coordinates the order record and the balance provider.
type OrderService struct {
	store     OrderStore
	gateway   Gateway
	steps     StepLog
	publisher Publisher
	now       func() time.Time
	newID     func() string
	logf      func(format string, args ...any)
}

// NewOrderService constructs an OrderService.
func NewOrderService(store OrderStore, gateway Gateway, opts ...Option) *OrderService {
	s := &OrderService{
		store:   store,
		gateway: gateway,
		steps:   noopStepLog{},
		now:     time.Now,
		newID:   uuid.NewString,
		logf:    log.Printf,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListProducts returns the provider's current catalog.
func (s *OrderService) ListProducts(ctx context.Context) ([]balance.Product, error) {
	resp, err := s.gateway.ListProducts(ctx)
	if err != nil {
		return nil, gatewayFailure(balance.OpListProducts, err)
	}
	if !resp.Success {
		return nil, serviceUnavailable(balance.OpListProducts, "provider reported failure", nil)
	}
	return resp.Data, nil
}

// GetOrder loads an order by id.
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	order, err := s.store.GetByID(ctx, orderID)
	if err != nil {
		return nil, unexpected("load order", err)
	}
	if order == nil {
		return nil, orderNotFound(orderID)
	}
	return order, nil
}

// CreateOrder prices the request against the provider's catalog, checks the
// balance, persists the order and reserves the funds.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	if len(req.Items) == 0 {
		return nil, validationError("order must contain at least one item")
	}

	items, err := s.priceItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}
	total := SumLineTotals(items)

	if err := s.checkBalance(ctx, total); err != nil {
		return nil, err
	}

	order, err := NewOrder(req.CustomerEmail, req.CustomerName, total, items, s.now(), s.newID)
	if err != nil {
		return nil, err
	}
	order, err = s.store.Add(ctx, order)
	if err != nil {
		return nil, unexpected("persist order", err)
	}
	s.publish(ctx, order)

	return s.reserve(ctx, order)
}

func (s *OrderService) priceItems(ctx context.Context, requested []ItemRequest) ([]LineItem, error) {
	catalog, err := s.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]balance.Product, len(catalog))
	for _, p := range catalog {
		byID[p.ID] = p
	}

	reserved := make(map[string]int, len(requested))
	items := make([]LineItem, 0, len(requested))
	for _, item := range requested {
		product, ok := byID[item.ProductID]
		if !ok {
			return nil, productNotFound(item.ProductID)
		}
		if item.Quantity <= 0 {
			return nil, validationError("quantity must be greater than 0 for product %s", item.ProductID)
		}
		wanted := reserved[item.ProductID] + item.Quantity
		if wanted > product.Stock {
			return nil, insufficientStock(item.ProductID, wanted, product.Stock)
		}
		reserved[item.ProductID] = wanted
		items = append(items, NewLineItem(product.ID, product.Name, product.Price, item.Quantity))
	}
	return items, nil
}

func (s *OrderService) checkBalance(ctx context.Context, total decimal.Decimal) error {
	resp, err := s.gateway.GetBalance(ctx)
	if err != nil {
		return gatewayFailure(balance.OpGetBalance, err)
	}
	if !resp.Success {
		return serviceUnavailable(balance.OpGetBalance, describe(resp.Message, "failed to retrieve balance information"), nil)
	}
	if resp.Data.AvailableBalance.LessThan(total) {
		return insufficientBalance(total, resp.Data.AvailableBalance)
	}
	return nil
}

func (s *OrderService) reserve(ctx context.Context, order *Order) (*Order, error) {
	s.recordStep(ctx, order.ID, StepReserve, stepStarted, "")

	resp, err := s.gateway.Reserve(ctx, order.ID, order.TotalAmount)
	var failure *Error
	switch {
	case err != nil:
		failure = gatewayFailure(balance.OpReserve, err)
	case !resp.Success:
		failure = serviceUnavailable(balance.OpReserve, describe(resp.Message, "reservation rejected"), nil)
	case resp.Data.PreOrder.OrderID == "":
		failure = serviceUnavailable(balance.OpReserve, "provider returned no reservation reference", nil)
	}

	// The provider has been called; record the outcome even if the caller
	// has gone away.
	ctx, cancel := detach(ctx)
	defer cancel()

	if failure != nil {
		s.recordStep(ctx, order.ID, StepReserve, stepFailed, failure.Error())
		if err := order.Fail(s.now()); err != nil {
			return nil, err
		}
		if _, err := s.store.Update(ctx, order); err != nil {
			s.logf("order %s: persist failed status: %v", order.ID, err)
			failure.Err = errors.Join(failure.Err, fmt.Errorf("persist failed order: %w", err))
			return nil, failure
		}
		s.publish(ctx, order)
		s.logf("order %s: reservation failed: %v", order.ID, failure)
		return nil, failure
	}

	if err := order.Reserve(resp.Data.PreOrder.OrderID, s.now()); err != nil {
		return nil, err
	}
	updated, err := s.store.Update(ctx, order)
	if err != nil {
		s.logf("order %s: funds reserved as %s but order update failed: %v", order.ID, order.PaymentReference, err)
		return nil, s.persistFailure(err)
	}
	s.recordStep(ctx, order.ID, StepReserve, stepSucceeded, updated.PaymentReference)
	s.publish(ctx, updated)
	s.logf("order %s: created with total %s, payment reserved as %s", updated.ID, updated.TotalAmount, updated.PaymentReference)
	return updated, nil
}

// CompleteOrder captures the reserved funds. A failed capture leaves the
// order reserved so the call can be retried.
func (s *OrderService) CompleteOrder(ctx context.Context, orderID string) (*Order, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentReference == "" {
		return nil, invalidOperation(order.ID, fmt.Sprintf("order %s has no payment reference", order.ID))
	}
	if !order.Status.CanTransitionTo(StatusCompleted) {
		return nil, invalidTransition(order.ID, order.Status, StatusCompleted)
	}

	s.recordStep(ctx, order.ID, StepCapture, stepStarted, "")
	resp, err := s.gateway.Capture(ctx, order.PaymentReference)
	var failure *Error
	switch {
	case err != nil:
		failure = gatewayFailure("complete", err)
	case !resp.Success:
		failure = serviceUnavailable("complete", describe(resp.Message, "capture rejected"), nil)
	}

	ctx, cancel := detach(ctx)
	defer cancel()

	if failure != nil {
		s.recordStep(ctx, order.ID, StepCapture, stepFailed, failure.Error())
		s.logf("order %s: capture failed, left %s: %v", order.ID, order.Status, failure)
		return nil, failure
	}

	if err := order.Complete(s.now()); err != nil {
		return nil, err
	}
	updated, err := s.store.Update(ctx, order)
	if err != nil {
		s.logf("order %s: captured but order update failed: %v", order.ID, err)
		return nil, s.persistFailure(err)
	}
	s.recordStep(ctx, order.ID, StepCapture, stepSucceeded, "")
	s.publish(ctx, updated)
	s.logf("order %s: completed", updated.ID)
	return updated, nil
}

// CancelOrder cancels an order that holds no reservation. The provider has
// no release call, so reserved orders cannot be cancelled here.
func (s *OrderService) CancelOrder(ctx context.Context, orderID string) (*Order, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanTransitionTo(StatusCancelled) {
		return nil, invalidTransition(order.ID, order.Status, StatusCancelled)
	}
	if order.PaymentReference != "" {
		return nil, invalidOperation(order.ID, fmt.Sprintf("order %s holds reservation %s which cannot be released", order.ID, order.PaymentReference))
	}

	if err := order.Cancel(s.now()); err != nil {
		return nil, err
	}
	updated, err := s.store.Update(ctx, order)
	if err != nil {
		return nil, s.persistFailure(err)
	}
	s.recordStep(ctx, order.ID, StepCancel, stepSucceeded, "")
	s.publish(ctx, updated)
	s.logf("order %s: cancelled", updated.ID)
	return updated, nil
}

// persistTimeout bounds the writes that follow a provider call.
const persistTimeout = 5 * time.Second

// detach keeps ctx values but drops its cancellation, so state produced by a
// completed provider call is still persisted after a client disconnect.
func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
}

func (s *OrderService) persistFailure(err error) *Error {
	if errors.Is(err, ErrConcurrentUpdate) {
		return &Error{
			Kind:    KindBusinessRule,
			Reason:  ReasonConcurrentUpdate,
			Message: "order was modified by another request",
			Err:     err,
		}
	}
	return unexpected("persist order", err)
}

func (s *OrderService) recordStep(ctx context.Context, orderID, step, status, detail string) {
	if err := s.steps.AddStep(ctx, orderID, step, status, detail); err != nil {
		s.logf("order %s: record step %s/%s: %v", orderID, step, status, err)
	}
}

func (s *OrderService) publish(ctx context.Context, order *Order) {
	if s.publisher == nil {
		return
	}
	ev := events.OrderEvent{
		Type:             events.TypeOrderStatus,
		OrderID:          order.ID,
		Status:           string(order.Status),
		PaymentReference: order.PaymentReference,
		TotalAmount:      order.TotalAmount,
		OccurredAt:       order.UpdatedAt,
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logf("order %s: publish %s: %v", order.ID, order.Status, err)
	}
}

func gatewayFailure(operation string, err error) *Error {
	if errors.Is(err, balance.ErrCircuitOpen) {
		failure := serviceUnavailable(operation, "circuit open", err)
		failure.Reason = ReasonCircuitOpen
		return failure
	}
	return serviceUnavailable(operation, "request failed", err)
}

func describe(message, fallback string) string {
	if message == "" {
		return fallback
	}
	return message
}
