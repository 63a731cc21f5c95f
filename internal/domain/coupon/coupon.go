package coupon

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func normalizeStatus(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// MonthlyQuota is the number of share coupons guaranteed to exist per
// user per calendar month.
const MonthlyQuota = 3

type ShareStatus string

const (
	ShareIssued    ShareStatus = "ISSUED"
	ShareActivated ShareStatus = "ACTIVATED"
	ShareRedeemed  ShareStatus = "REDEEMED"
)

// ParseShareStatus returns the status matching raw (case-insensitive).
func ParseShareStatus(raw string) (ShareStatus, bool) {
	switch ShareStatus(normalizeStatus(raw)) {
	case ShareIssued:
		return ShareIssued, true
	case ShareActivated:
		return ShareActivated, true
	case ShareRedeemed:
		return ShareRedeemed, true
	}
	return "", false
}

// ShareCoupon is a referral incentive issued to a user for one calendar
// month. Codes are globally unique, enforced by the store.
type ShareCoupon struct {
	ID     string      `json:"id"`
	Code   string      `json:"code"`
	UserID string      `json:"user_id"`
	Month  int         `json:"month"`
	Year   int         `json:"year"`
	Status ShareStatus `json:"status"`

	ActivatedAt *time.Time `json:"activated_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

const (
	DiscountTypeCompensation = "COMPENSATION"
	DiscountScopeOrder       = "ORDER"
)

// DiscountCode is a standalone redeemable reduction, independent of the
// referral program. Value and Percentage are mutually exclusive.
type DiscountCode struct {
	ID   string `json:"id"`
	Code string `json:"code"`

	Type  string `json:"type"`
	Scope string `json:"scope"`

	Value      *decimal.Decimal `json:"value,omitempty"`
	Percentage *decimal.Decimal `json:"percentage,omitempty"`

	MaxRedemptions int        `json:"max_redemptions"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`

	// UserID is the owning user, when the code was granted to one.
	UserID string `json:"user_id,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`

	// Redemptions counts redemption records created elsewhere.
	Redemptions int `json:"redemptions"`

	CreatedAt time.Time `json:"created_at"`
}
