package orders

import (
	"context"
	"errors"
	"sync"
)

// OrderStore persists orders. Implementations must make each read and write
// atomic for a single order.
type OrderStore interface {
	// GetByID returns (nil, nil) when no order has the id.
	GetByID(ctx context.Context, id string) (*Order, error)
	Add(ctx context.Context, order *Order) (*Order, error)
	// Update fails with ErrConcurrentUpdate if order.Version is stale.
	Update(ctx context.Context, order *Order) (*Order, error)
}

// StepLog records saga steps for auditing.
type StepLog interface {
	AddStep(ctx context.Context, orderID, step, status, detail string) error
}

// NewInMemoryOrderStore constructs an in-memory order store.
func NewInMemoryOrderStore() *InMemoryOrderStore {
	return &InMemoryOrderStore{
		orders: make(map[string]*Order),
	}
}

// InMemoryOrderStore keeps orders in a map. Data is lost on restart.
type InMemoryOrderStore struct {
	mu     sync.Mutex
	orders map[string]*Order
}

var errDuplicateOrder = errors.New("order already exists")

func (s *InMemoryOrderStore) GetByID(ctx context.Context, id string) (*Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders[id].Clone(), nil
}

func (s *InMemoryOrderStore) Add(ctx context.Context, order *Order) (*Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[order.ID]; ok {
		return nil, errDuplicateOrder
	}
	stored := order.Clone()
	stored.Version = 1
	s.orders[order.ID] = stored
	return stored.Clone(), nil
}

func (s *InMemoryOrderStore) Update(ctx context.Context, order *Order) (*Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.orders[order.ID]
	if !ok || current.Version != order.Version {
		return nil, ErrConcurrentUpdate
	}
	stored := order.Clone()
	stored.Version = current.Version + 1
	s.orders[order.ID] = stored
	return stored.Clone(), nil
}

// Len reports how many orders are stored (for testing/inspection).
func (s *InMemoryOrderStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

type noopStepLog struct{}

func (noopStepLog) AddStep(context.Context, string, string, string, string) error {
	return nil
}
