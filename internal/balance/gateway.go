package balance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// ErrAttemptTimeout marks a single attempt that ran out of its time budget.
var ErrAttemptTimeout = errors.New("attempt timed out")

// ErrEmptyResponse marks a 2xx response without a body.
var ErrEmptyResponse = errors.New("empty response body")

// Error is a transport-level gateway failure: exhausted retries, an open
// circuit, a non-retryable status or an undecodable body.
type Error struct {
	Operation string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("balance %s: %v", e.Operation, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StatusCode returns the provider's HTTP status when the failure carried one.
func (e *Error) StatusCode() int {
	var se *StatusError
	if errors.As(e.Err, &se) {
		return se.StatusCode
	}
	return 0
}

// Family groups operations that share one circuit breaker.
type Family string

const (
	FamilyCatalog Family = "catalog"
	FamilyBalance Family = "balance"
)

// Operation names used in errors and events.
const (
	OpListProducts = "list_products"
	OpGetBalance   = "get_balance"
	OpReserve      = "reserve"
	OpCapture      = "capture"
)

type endpoint struct {
	name   string
	family Family
	method string
	path   string
}

var (
	listProductsEndpoint = endpoint{OpListProducts, FamilyCatalog, http.MethodGet, "/api/products"}
	getBalanceEndpoint   = endpoint{OpGetBalance, FamilyBalance, http.MethodGet, "/api/balance"}
	reserveEndpoint      = endpoint{OpReserve, FamilyBalance, http.MethodPost, "/api/balance/preorder"}
	captureEndpoint      = endpoint{OpCapture, FamilyBalance, http.MethodPost, "/api/balance/complete"}
)

// EventKind identifies a resilience event.
type EventKind string

const (
	EventRetry           EventKind = "retry"
	EventBreakerOpen     EventKind = "breaker_open"
	EventBreakerHalfOpen EventKind = "breaker_half_open"
	EventBreakerReset    EventKind = "breaker_reset"
)

// Event describes a retry or a breaker state change.
type Event struct {
	Kind      EventKind
	Operation string
	Family    Family
	Attempt   int
	Delay     time.Duration
	Err       error
}

// Observer receives resilience events. It may be called while a breaker
// lock is held, so it must not call back into the gateway.
type Observer func(Event)

// Sender performs one exchange with the provider.
type Sender interface {
	Send(ctx context.Context, method, path string, body any) ([]byte, error)
}

// GatewayConfig configures a Gateway.
type GatewayConfig struct {
	AttemptTimeout time.Duration
	Retry          RetryPolicy
	Breaker        CircuitBreakerConfig
	Limiter        *RateLimiter
	Observer       Observer
}

// Gateway wraps the provider's four operations with a per-attempt timeout,
// retries and one circuit breaker per endpoint family.
type Gateway struct {
	sender         Sender
	attemptTimeout time.Duration
	retry          RetryPolicy
	breakers       map[Family]*CircuitBreaker
	limiter        *RateLimiter
	observer       Observer
}

// NewGateway constructs a Gateway. Breakers are created once here and shared
// by every caller of the returned value.
func NewGateway(sender Sender, cfg GatewayConfig) *Gateway {
	g := &Gateway{
		sender:         sender,
		attemptTimeout: cfg.AttemptTimeout,
		retry:          cfg.Retry,
		limiter:        cfg.Limiter,
		observer:       cfg.Observer,
		breakers:       make(map[Family]*CircuitBreaker),
	}
	if g.retry.ShouldRetry == nil {
		g.retry.ShouldRetry = IsTransient
	}
	for _, family := range []Family{FamilyCatalog, FamilyBalance} {
		breakerCfg := cfg.Breaker
		if breakerCfg.IsFailure == nil {
			breakerCfg.IsFailure = IsTransient
		}
		breakerCfg.OnStateChange = g.breakerObserver(family)
		g.breakers[family] = NewCircuitBreaker(breakerCfg)
	}
	return g
}

// Breaker returns the breaker shared by a family (for testing/inspection).
func (g *Gateway) Breaker(family Family) *CircuitBreaker {
	return g.breakers[family]
}

// ListProducts fetches the current catalog snapshot.
func (g *Gateway) ListProducts(ctx context.Context) (ProductsResponse, error) {
	var out ProductsResponse
	err := g.call(ctx, listProductsEndpoint, nil, &out)
	return out, err
}

// GetBalance fetches an advisory balance snapshot.
func (g *Gateway) GetBalance(ctx context.Context) (BalanceResponse, error) {
	var out BalanceResponse
	err := g.call(ctx, getBalanceEndpoint, nil, &out)
	return out, err
}

// Reserve asks the provider to hold amount for orderID.
func (g *Gateway) Reserve(ctx context.Context, orderID string, amount decimal.Decimal) (ReserveResponse, error) {
	body := struct {
		OrderID string      `json:"orderId"`
		Amount  json.Number `json:"amount"`
	}{
		OrderID: orderID,
		Amount:  json.Number(amount.String()),
	}
	var out ReserveResponse
	err := g.call(ctx, reserveEndpoint, body, &out)
	return out, err
}

// Capture finalizes the reservation identified by paymentReference.
func (g *Gateway) Capture(ctx context.Context, paymentReference string) (CaptureResponse, error) {
	body := struct {
		OrderID string `json:"orderId"`
	}{OrderID: paymentReference}
	var out CaptureResponse
	err := g.call(ctx, captureEndpoint, body, &out)
	return out, err
}

func (g *Gateway) call(ctx context.Context, ep endpoint, body any, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	breaker := g.breakers[ep.family]

	var payload []byte
	attempt := func() error {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		return breaker.Execute(func() error {
			data, err := g.send(ctx, ep, body)
			if err != nil {
				return err
			}
			payload = data
			return nil
		})
	}

	policy := g.retry
	policy.OnRetry = func(n int, delay time.Duration, err error) {
		if g.retry.OnRetry != nil {
			g.retry.OnRetry(n, delay, err)
		}
		g.emit(Event{Kind: EventRetry, Operation: ep.name, Family: ep.family, Attempt: n, Delay: delay, Err: err})
	}

	if err := policy.Do(ctx, attempt); err != nil {
		return &Error{Operation: ep.name, Err: err}
	}
	if len(payload) == 0 {
		return &Error{Operation: ep.name, Err: ErrEmptyResponse}
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return &Error{Operation: ep.name, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (g *Gateway) send(ctx context.Context, ep endpoint, body any) ([]byte, error) {
	attemptCtx := ctx
	if g.attemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, g.attemptTimeout)
		defer cancel()
	}

	data, err := g.sender.Send(attemptCtx, ep.method, ep.path, body)
	if err == nil {
		return data, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w after %s: %v", ErrAttemptTimeout, g.attemptTimeout, err)
	}
	return nil, err
}

func (g *Gateway) breakerObserver(family Family) func(from, to CircuitState, err error) {
	return func(from, to CircuitState, err error) {
		ev := Event{Family: family, Err: err}
		switch to {
		case CircuitOpen:
			ev.Kind = EventBreakerOpen
		case CircuitHalfOpen:
			ev.Kind = EventBreakerHalfOpen
		default:
			ev.Kind = EventBreakerReset
		}
		g.emit(ev)
	}
}

func (g *Gateway) emit(ev Event) {
	if g.observer != nil {
		g.observer(ev)
	}
}

// IsTransient reports whether err is worth retrying: network failures,
// attempt timeouts, 5xx and 429 responses.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, ErrCircuitOpen) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= http.StatusInternalServerError || se.StatusCode == http.StatusTooManyRequests
	}
	if errors.Is(err, ErrAttemptTimeout) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF)
}
