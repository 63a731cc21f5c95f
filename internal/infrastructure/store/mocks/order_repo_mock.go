package mocks

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/example/storefront-backend/internal/apperror"
	"github.com/example/storefront-backend/internal/domain/order"
)

// MockOrderRepo is an in-memory implementation of order.Repository for
// testing.
type MockOrderRepo struct {
	mu       sync.RWMutex
	orders   map[string]*order.Order
	messages map[string][]order.Message
	seq      int64

	// For tracking calls and injecting failures in tests
	CreateCalls     int
	SaveStatusCalls int
	CreateErr       error
	SaveStatusErr   error
}

func NewMockOrderRepo() *MockOrderRepo {
	return &MockOrderRepo{
		orders:   make(map[string]*order.Order),
		messages: make(map[string][]order.Message),
	}
}

func (m *MockOrderRepo) Create(ctx context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CreateCalls++
	if m.CreateErr != nil {
		return m.CreateErr
	}

	m.seq++
	o.Number = m.seq
	clone := *o
	m.orders[o.ID] = &clone
	return nil
}

func (m *MockOrderRepo) FindByID(ctx context.Context, id string) (*order.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	clone := *o
	return &clone, nil
}

func (m *MockOrderRepo) List(ctx context.Context, filter order.ListFilter) ([]order.Order, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []order.Order
	for _, o := range m.orders {
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if filter.UserID != "" && o.UserID != filter.UserID {
			continue
		}
		matched = append(matched, *o)
	}
	sortNewestFirst(matched)

	total := len(matched)
	if filter.Skip >= len(matched) {
		return nil, total, nil
	}
	matched = matched[filter.Skip:]
	if filter.Take < len(matched) {
		matched = matched[:filter.Take]
	}
	return matched, total, nil
}

func (m *MockOrderRepo) ListForUser(ctx context.Context, userID string, take int) ([]order.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []order.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			matched = append(matched, *o)
		}
	}
	sortNewestFirst(matched)
	if take < len(matched) {
		matched = matched[:take]
	}
	return matched, nil
}

func (m *MockOrderRepo) FindActiveForUser(ctx context.Context, userID string) (*order.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []order.Order
	for _, o := range m.orders {
		if o.UserID != userID {
			continue
		}
		switch o.Status {
		case order.StatusPending, order.StatusPreparing, order.StatusConfirmed:
			matched = append(matched, *o)
		}
	}
	if len(matched) == 0 {
		return nil, nil
	}
	sortNewestFirst(matched)
	return &matched[0], nil
}

func (m *MockOrderRepo) AccessContext(ctx context.Context, id string) (*order.AccessContext, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	return &order.AccessContext{
		OrderID:       o.ID,
		UserID:        o.UserID,
		CustomerEmail: o.CustomerEmail,
	}, nil
}

func (m *MockOrderRepo) SaveStatus(ctx context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SaveStatusCalls++
	if m.SaveStatusErr != nil {
		return m.SaveStatusErr
	}

	stored, ok := m.orders[o.ID]
	if !ok {
		return apperror.NotFound("order %s not found", o.ID)
	}
	stored.Status = o.Status
	stored.ConfirmedAt = o.ConfirmedAt
	stored.CancelledAt = o.CancelledAt
	stored.CancellationReason = o.CancellationReason
	stored.UpdatedAt = o.UpdatedAt
	return nil
}

func (m *MockOrderRepo) ListMessages(ctx context.Context, orderID string, take int) ([]order.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	messages := append([]order.Message(nil), m.messages[orderID]...)
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
	if take < len(messages) {
		messages = messages[:take]
	}
	return messages, nil
}

func (m *MockOrderRepo) AppendMessage(ctx context.Context, msg *order.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.messages[msg.OrderID] = append(m.messages[msg.OrderID], *msg)
	return nil
}

// Seed stores an order directly, bypassing the service layer.
func (m *MockOrderRepo) Seed(o *order.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if o.Number == 0 {
		m.seq++
		o.Number = m.seq
	}
	clone := *o
	m.orders[o.ID] = &clone
}

func sortNewestFirst(orders []order.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return strings.Compare(orders[i].ID, orders[j].ID) < 0
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}

// MockPublisher records published events.
type MockPublisher struct {
	mu     sync.Mutex
	Events []PublishedEvent

	PublishErr error
}

type PublishedEvent struct {
	Key   string
	Event any
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, key string, event any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.PublishErr != nil {
		return m.PublishErr
	}
	m.Events = append(m.Events, PublishedEvent{Key: key, Event: event})
	return nil
}
