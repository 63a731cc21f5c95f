package mocks

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/example/storefront-backend/internal/domain/user"
)

// MockUserRepo is an in-memory implementation of user.Repository for
// testing.
type MockUserRepo struct {
	mu        sync.RWMutex
	users     map[string]*user.User
	addresses map[string][]user.Address // keyed by user id

	InTxCalls int
}

func NewMockUserRepo() *MockUserRepo {
	return &MockUserRepo{
		users:     make(map[string]*user.User),
		addresses: make(map[string][]user.Address),
	}
}

func (m *MockUserRepo) InTx(ctx context.Context, fn func(user.Repository) error) error {
	m.mu.Lock()
	m.InTxCalls++
	m.mu.Unlock()
	return fn(m)
}

func (m *MockUserRepo) FindByID(ctx context.Context, id string) (*user.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	return m.withAddresses(u), nil
}

func (m *MockUserRepo) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return m.withAddresses(u), nil
		}
	}
	return nil, nil
}

func (m *MockUserRepo) List(ctx context.Context, filter user.ListFilter) ([]user.User, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []user.User
	for _, u := range m.users {
		if filter.ActiveOnly && !u.IsActive {
			continue
		}
		if filter.Search != "" && !userMatches(u, filter.Search) {
			continue
		}
		matched = append(matched, *m.withAddresses(u))
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

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

func (m *MockUserRepo) Insert(ctx context.Context, u *user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *u
	m.users[u.ID] = &clone
	return nil
}

func (m *MockUserRepo) Save(ctx context.Context, u *user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *u
	clone.Addresses = nil
	m.users[u.ID] = &clone
	return nil
}

func (m *MockUserRepo) FindPrimaryAddress(ctx context.Context, userID string) (*user.Address, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, a := range m.addresses[userID] {
		if a.IsPrimary {
			clone := a
			return &clone, nil
		}
	}
	return nil, nil
}

func (m *MockUserRepo) InsertAddress(ctx context.Context, a *user.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.addresses[a.UserID] = append(m.addresses[a.UserID], *a)
	return nil
}

func (m *MockUserRepo) SaveAddress(ctx context.Context, a *user.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.addresses[a.UserID]
	for i := range list {
		if list[i].ID == a.ID {
			list[i] = *a
			return nil
		}
	}
	return nil
}

// Seed stores a user directly.
func (m *MockUserRepo) Seed(u *user.User) {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *u
	m.users[u.ID] = &clone
}

func (m *MockUserRepo) withAddresses(u *user.User) *user.User {
	clone := *u
	clone.Addresses = append([]user.Address(nil), m.addresses[u.ID]...)
	return &clone
}

func userMatches(u *user.User, search string) bool {
	search = strings.ToLower(search)
	for _, field := range []string{u.Email, u.FirstName, u.LastName, u.DisplayName, u.Phone} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}
