package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/storefront-backend/internal/domain/coupon"
)

// MockCouponRepo is an in-memory implementation of coupon.Repository for
// testing. Code uniqueness is enforced the way the real store does it: at
// insert time.
type MockCouponRepo struct {
	mu        sync.RWMutex
	share     map[string]*coupon.ShareCoupon // keyed by code
	discounts map[string]*coupon.DiscountCode

	// ForceCodeTaken makes the next n InsertShare calls fail with
	// ErrCodeTaken, simulating collisions.
	ForceCodeTaken int

	InsertShareCalls int
	InTxCalls        int
}

func NewMockCouponRepo() *MockCouponRepo {
	return &MockCouponRepo{
		share:     make(map[string]*coupon.ShareCoupon),
		discounts: make(map[string]*coupon.DiscountCode),
	}
}

func (m *MockCouponRepo) InTx(ctx context.Context, fn func(coupon.Repository) error) error {
	m.mu.Lock()
	m.InTxCalls++
	m.mu.Unlock()
	return fn(m)
}

func (m *MockCouponRepo) ListShareForUserMonth(ctx context.Context, userID string, month time.Month, year int) ([]coupon.ShareCoupon, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []coupon.ShareCoupon
	for _, c := range m.share {
		if c.UserID == userID && c.Month == int(month) && c.Year == year {
			out = append(out, *c)
		}
	}
	sortShareByCreation(out)
	return out, nil
}

func (m *MockCouponRepo) ListShareForUser(ctx context.Context, userID string) ([]coupon.ShareCoupon, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []coupon.ShareCoupon
	for _, c := range m.share {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	sortShareByCreation(out)
	return out, nil
}

func (m *MockCouponRepo) ListShareGlobal(ctx context.Context, status coupon.ShareStatus) ([]coupon.ShareCoupon, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []coupon.ShareCoupon
	for _, c := range m.share {
		if status == "" || c.Status == status {
			out = append(out, *c)
		}
	}
	sortShareByCreation(out)
	return out, nil
}

func (m *MockCouponRepo) FindShareByUserAndCode(ctx context.Context, userID, code string) (*coupon.ShareCoupon, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.share[code]
	if !ok || c.UserID != userID {
		return nil, nil
	}
	clone := *c
	return &clone, nil
}

func (m *MockCouponRepo) ShareCodeExists(ctx context.Context, code string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.share[code]
	return ok, nil
}

func (m *MockCouponRepo) InsertShare(ctx context.Context, c *coupon.ShareCoupon) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.InsertShareCalls++
	if m.ForceCodeTaken > 0 {
		m.ForceCodeTaken--
		return coupon.ErrCodeTaken
	}
	if _, ok := m.share[c.Code]; ok {
		return coupon.ErrCodeTaken
	}

	clone := *c
	m.share[c.Code] = &clone
	return nil
}

func (m *MockCouponRepo) SaveShare(ctx context.Context, c *coupon.ShareCoupon) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.share[c.Code]
	if !ok {
		return nil
	}
	stored.Status = c.Status
	stored.ActivatedAt = c.ActivatedAt
	return nil
}

func (m *MockCouponRepo) InsertDiscount(ctx context.Context, d *coupon.DiscountCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.discounts[d.Code]; ok {
		return coupon.ErrCodeTaken
	}
	clone := *d
	m.discounts[d.Code] = &clone
	return nil
}

func (m *MockCouponRepo) ListDiscounts(ctx context.Context, activeOnly bool, now time.Time) ([]coupon.DiscountCode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []coupon.DiscountCode
	for _, d := range m.discounts {
		if activeOnly {
			if d.ExpiresAt != nil && !d.ExpiresAt.After(now) {
				continue
			}
			if d.Redemptions > 0 {
				continue
			}
		}
		out = append(out, *d)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// SeedShare stores a share coupon directly.
func (m *MockCouponRepo) SeedShare(c *coupon.ShareCoupon) {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *c
	m.share[c.Code] = &clone
}

// SeedDiscount stores a discount code directly.
func (m *MockCouponRepo) SeedDiscount(d *coupon.DiscountCode) {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *d
	m.discounts[d.Code] = &clone
}

func sortShareByCreation(coupons []coupon.ShareCoupon) {
	sort.SliceStable(coupons, func(i, j int) bool {
		return coupons[i].CreatedAt.Before(coupons[j].CreatedAt)
	})
}
