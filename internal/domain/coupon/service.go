package coupon

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/example/storefront-backend/internal/apperror"
)

// maxCodeAttempts bounds the generate-check-insert loop for one coupon.
// The loop tolerates the race between concurrent issuers; it does not
// prevent it — the store's unique constraint does.
const maxCodeAttempts = 10

// Service issues share coupons and discount codes.
type Service struct {
	repo Repository
	log  *logrus.Entry
}

func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		log:  logrus.WithField("component", "coupons"),
	}
}

// EnsureMonthlyShareCoupons guarantees exactly MonthlyQuota share coupons
// exist for the user in the calendar month of ref, creating only the
// shortfall. Idempotent; the existence check and the inserts share one
// transaction so a retry never leaves extra coupons behind.
func (s *Service) EnsureMonthlyShareCoupons(ctx context.Context, userID string, ref time.Time) ([]ShareCoupon, error) {
	year, month := ref.Year(), ref.Month()

	var coupons []ShareCoupon
	err := s.repo.InTx(ctx, func(r Repository) error {
		existing, err := r.ListShareForUserMonth(ctx, userID, month, year)
		if err != nil {
			return err
		}

		for len(existing) < MonthlyQuota {
			c, err := s.issueShare(ctx, r, userID, month, year)
			if err != nil {
				return err
			}
			existing = append(existing, *c)
		}

		coupons = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return coupons, nil
}

// issueShare creates one share coupon, retrying candidate codes that
// collide with the store's global unique constraint.
func (s *Service) issueShare(ctx context.Context, r Repository, userID string, month time.Month, year int) (*ShareCoupon, error) {
	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code := shareCode(year, month)

		taken, err := r.ShareCodeExists(ctx, code)
		if err != nil {
			return nil, err
		}
		if taken {
			continue
		}

		c := &ShareCoupon{
			ID:        uuid.New().String(),
			Code:      code,
			UserID:    userID,
			Month:     int(month),
			Year:      year,
			Status:    ShareIssued,
			CreatedAt: time.Now(),
		}
		if err := r.InsertShare(ctx, c); err != nil {
			if errors.Is(err, ErrCodeTaken) {
				// A concurrent issuer won the insert race; try a new code.
				s.log.WithField("attempt", attempt).Debug("share coupon code collision, retrying")
				continue
			}
			return nil, err
		}
		return c, nil
	}
	return nil, apperror.Fatal("exhausted %d attempts generating a unique share coupon code", maxCodeAttempts)
}

// ListShareCoupons returns the user's share coupons, newest first.
func (s *Service) ListShareCoupons(ctx context.Context, userID string) ([]ShareCoupon, error) {
	return s.repo.ListShareForUser(ctx, userID)
}

// ListShareCouponsGlobal lists share coupons across all users, optionally
// filtered by status. Admin-only; gated by the caller.
func (s *Service) ListShareCouponsGlobal(ctx context.Context, status ShareStatus) ([]ShareCoupon, error) {
	return s.repo.ListShareGlobal(ctx, status)
}

// ActivateShareCoupon transitions an ISSUED coupon to ACTIVATED. Coupons
// already activated or redeemed are returned unchanged.
func (s *Service) ActivateShareCoupon(ctx context.Context, userID, code string) (*ShareCoupon, error) {
	c, err := s.repo.FindShareByUserAndCode(ctx, userID, code)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperror.NotFound("share coupon %s not found", code)
	}

	if c.Status != ShareIssued {
		return c, nil
	}

	now := time.Now()
	c.Status = ShareActivated
	c.ActivatedAt = &now
	if err := s.repo.SaveShare(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// GrantDiscount creates a single-use compensation discount code owned by
// the user. Admin-only; gated by the caller.
func (s *Service) GrantDiscount(ctx context.Context, userID string, value decimal.Decimal, label string, expiresAt *time.Time) (*DiscountCode, error) {
	if !value.IsPositive() {
		return nil, apperror.BadRequest("discount value must be positive")
	}

	d := &DiscountCode{
		ID:             uuid.New().String(),
		Code:           discountCode(),
		Type:           DiscountTypeCompensation,
		Scope:          DiscountScopeOrder,
		Value:          &value,
		MaxRedemptions: 1,
		ExpiresAt:      expiresAt,
		UserID:         userID,
		CreatedAt:      time.Now(),
	}
	if label != "" {
		d.Metadata = map[string]any{"label": label}
	}

	if err := s.repo.InsertDiscount(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// ListDiscountCodes lists discount codes. With activeOnly, only codes
// that have not expired and have never been redeemed are returned.
func (s *Service) ListDiscountCodes(ctx context.Context, activeOnly bool) ([]DiscountCode, error) {
	return s.repo.ListDiscounts(ctx, activeOnly, time.Now())
}
