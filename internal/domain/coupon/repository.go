package coupon

import (
	"context"
	"errors"
	"time"
)

// ErrCodeTaken reports an insert rejected by the store's global
// unique-code constraint. The issuer retries on it; everything else
// propagates.
var ErrCodeTaken = errors.New("coupon code already taken")

// Repository is the persistence contract for share coupons and discount
// codes. Lookups return (nil, nil) when nothing matches.
//
// InsertShare must leave the surrounding transaction usable after
// returning ErrCodeTaken: the issuer retries further statements on the
// same transaction.
type Repository interface {
	ListShareForUserMonth(ctx context.Context, userID string, month time.Month, year int) ([]ShareCoupon, error)
	ListShareForUser(ctx context.Context, userID string) ([]ShareCoupon, error)
	ListShareGlobal(ctx context.Context, status ShareStatus) ([]ShareCoupon, error)
	FindShareByUserAndCode(ctx context.Context, userID, code string) (*ShareCoupon, error)
	ShareCodeExists(ctx context.Context, code string) (bool, error)
	InsertShare(ctx context.Context, c *ShareCoupon) error
	SaveShare(ctx context.Context, c *ShareCoupon) error

	InsertDiscount(ctx context.Context, d *DiscountCode) error
	ListDiscounts(ctx context.Context, activeOnly bool, now time.Time) ([]DiscountCode, error)

	// InTx runs fn against a repository bound to one transaction; fn
	// returning an error rolls everything back.
	InTx(ctx context.Context, fn func(Repository) error) error
}
