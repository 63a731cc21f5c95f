package order

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func normalizeStatus(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusPreparing Status = "PREPARING"
	StatusFulfilled Status = "FULFILLED"
	StatusCancelled Status = "CANCELLED"
)

// stageRank orders the advancing stages so that transitions never regress
// an order that already moved past the requested stage. CANCELLED sits
// outside the ranking: it is guarded explicitly.
var stageRank = map[Status]int{
	StatusPending:   0,
	StatusPreparing: 1,
	StatusConfirmed: 2,
	StatusFulfilled: 3,
}

// ParseStatus returns the status matching raw (case-insensitive), or false.
func ParseStatus(raw string) (Status, bool) {
	switch Status(normalizeStatus(raw)) {
	case StatusPending:
		return StatusPending, true
	case StatusConfirmed:
		return StatusConfirmed, true
	case StatusPreparing:
		return StatusPreparing, true
	case StatusFulfilled:
		return StatusFulfilled, true
	case StatusCancelled:
		return StatusCancelled, true
	}
	return "", false
}

// Order is one placed purchase. Monetary fields are fixed-point decimals;
// the line items are snapshotted at placement time and immutable after.
type Order struct {
	ID     string `json:"id"`
	Number int64  `json:"number"`
	Status Status `json:"status"`

	TotalGross    decimal.Decimal `json:"total_gross"`
	TotalNet      decimal.Decimal `json:"total_net"`
	DiscountTotal decimal.Decimal `json:"discount_total"`

	// UserID links a registered customer; empty for guest checkouts, in
	// which case ownership is established by CustomerEmail.
	UserID        string `json:"user_id,omitempty"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone,omitempty"`

	Note string `json:"note,omitempty"`

	// Metadata is the untyped placement-time document. Legacy orders have
	// their line items only here; see ItemsView.
	Metadata map[string]any `json:"metadata,omitempty"`

	Items []ItemSnapshot `json:"items"`

	PlacedAt           time.Time  `json:"placed_at"`
	ConfirmedAt        *time.Time `json:"confirmed_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ItemSnapshot is an immutable line item captured at order placement.
// Catalog edits after placement never alter it.
type ItemSnapshot struct {
	ID      string `json:"id,omitempty"`
	OrderID string `json:"order_id,omitempty"`

	Label     string          `json:"label"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`

	// OriginalUnitPrice and DiscountValue are set only when a promotional
	// price applied at placement time.
	OriginalUnitPrice *decimal.Decimal `json:"original_unit_price,omitempty"`
	DiscountValue     *decimal.Decimal `json:"discount_value,omitempty"`

	LineTotal decimal.Decimal `json:"line_total"`
	Side      string          `json:"side,omitempty"`
	Type      string          `json:"type,omitempty"`
}

// AccessContext is the lightweight projection used for access checks so
// the caller never loads a full order just to compare owner identity.
type AccessContext struct {
	OrderID       string
	UserID        string
	CustomerEmail string
}

// ItemsView returns the canonical line items: structured snapshot rows win
// whenever present, otherwise a best-effort reconstruction from the
// placement-time metadata document.
func (o *Order) ItemsView() []ItemSnapshot {
	if len(o.Items) > 0 {
		return o.Items
	}
	return itemsFromMetadata(o.Metadata)
}

// AuthorType tags who wrote a thread message.
type AuthorType string

const (
	AuthorAdmin AuthorType = "ADMIN"
	AuthorUser  AuthorType = "USER"
)

// Message is one append-only note on an order thread. Messages are never
// updated or deleted.
type Message struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`

	AuthorType AuthorType `json:"author_type"`
	// AuthorID is empty for admin posts made without a user record.
	AuthorID string `json:"author_id,omitempty"`

	Payload map[string]any `json:"payload"`

	CreatedAt time.Time  `json:"created_at"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
}
