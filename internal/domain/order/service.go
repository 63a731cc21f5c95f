package order

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/example/storefront-backend/internal/apperror"
)

const (
	defaultListTake = 25
	maxListTake     = 100
	maxMessageTake  = 200
)

// activeStatuses are the states in which an order still needs attention
// from the kitchen or the customer.
var activeStatuses = []Status{StatusPending, StatusPreparing, StatusConfirmed}

// Policy holds the configurable business rules of the ledger.
type Policy struct {
	// AllowCancelFulfilled permits cancelling an order that was already
	// fulfilled, for post-hoc corrections and refunds.
	AllowCancelFulfilled bool
}

// Service is the order ledger: creation, the status state machine and the
// message thread. It performs no access checks; callers gate every entry
// point through the authorizer first.
type Service struct {
	repo      Repository
	publisher Publisher
	policy    Policy
	log       *logrus.Entry
}

func NewService(repo Repository, publisher Publisher, policy Policy) *Service {
	return &Service{
		repo:      repo,
		publisher: publisher,
		policy:    policy,
		log:       logrus.WithField("component", "orders"),
	}
}

// CartItem is one caller-supplied cart line.
type CartItem struct {
	Label             string           `json:"label"`
	Quantity          int              `json:"quantity"`
	UnitPrice         decimal.Decimal  `json:"unit_price"`
	OriginalUnitPrice *decimal.Decimal `json:"original_unit_price,omitempty"`
	DiscountValue     *decimal.Decimal `json:"discount_value,omitempty"`
	LineTotal         decimal.Decimal  `json:"line_total"`
	Side              string           `json:"side,omitempty"`
	Type              string           `json:"type,omitempty"`
}

// CreateInput carries everything captured at placement time.
type CreateInput struct {
	UserID string

	CustomerName  string
	CustomerEmail string
	CustomerPhone string

	DeliveryAddress string
	DeliveryNotes   string
	PaymentMethod   string

	Items         []CartItem
	TotalGross    decimal.Decimal
	TotalNet      *decimal.Decimal
	DiscountTotal decimal.Decimal

	Note  string
	Extra map[string]any
}

// Create persists the order header plus one immutable snapshot per cart
// line in a single transaction, and publishes OrderPlaced.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Order, error) {
	if len(in.Items) == 0 {
		return nil, apperror.BadRequest("order must have at least one item")
	}
	if err := validateTotals(in); err != nil {
		return nil, err
	}

	totalNet := in.TotalGross
	if in.TotalNet != nil {
		totalNet = *in.TotalNet
	}

	now := time.Now()
	o := &Order{
		ID:            uuid.New().String(),
		Status:        StatusPending,
		TotalGross:    in.TotalGross,
		TotalNet:      totalNet,
		DiscountTotal: in.DiscountTotal,
		UserID:        in.UserID,
		CustomerName:  in.CustomerName,
		CustomerEmail: in.CustomerEmail,
		CustomerPhone: in.CustomerPhone,
		Note:          in.Note,
		Metadata:      buildMetadata(in),
		PlacedAt:      now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	for _, item := range in.Items {
		o.Items = append(o.Items, ItemSnapshot{
			ID:                uuid.New().String(),
			OrderID:           o.ID,
			Label:             item.Label,
			Quantity:          item.Quantity,
			UnitPrice:         item.UnitPrice,
			OriginalUnitPrice: item.OriginalUnitPrice,
			DiscountValue:     item.DiscountValue,
			LineTotal:         item.LineTotal,
			Side:              item.Side,
			Type:              item.Type,
		})
	}

	if err := s.repo.Create(ctx, o); err != nil {
		return nil, err
	}

	s.publish(ctx, EventOrderPlaced, o)
	return o, nil
}

func validateTotals(in CreateInput) error {
	if in.TotalGross.IsNegative() || in.DiscountTotal.IsNegative() {
		return apperror.BadRequest("order totals must not be negative")
	}
	if in.TotalNet != nil && in.TotalNet.IsNegative() {
		return apperror.BadRequest("order totals must not be negative")
	}
	if in.DiscountTotal.GreaterThan(in.TotalGross) {
		return apperror.BadRequest("discount total cannot exceed gross total")
	}
	for _, item := range in.Items {
		if item.UnitPrice.IsNegative() || item.LineTotal.IsNegative() {
			return apperror.BadRequest("item prices must not be negative")
		}
	}
	return nil
}

// buildMetadata captures the placement-time document stored alongside the
// structured snapshot rows. Legacy readers derive line items from it.
func buildMetadata(in CreateInput) map[string]any {
	items := make([]any, 0, len(in.Items))
	for _, item := range in.Items {
		line := map[string]any{
			"label":     item.Label,
			"quantity":  item.Quantity,
			"unitPrice": item.UnitPrice.String(),
			"lineTotal": item.LineTotal.String(),
			"side":      item.Side,
			"type":      item.Type,
		}
		if item.OriginalUnitPrice != nil {
			line["originalUnitPrice"] = item.OriginalUnitPrice.String()
		}
		if item.DiscountValue != nil {
			line["discountValue"] = item.DiscountValue.String()
		}
		items = append(items, line)
	}

	metadata := map[string]any{
		"customer": map[string]any{
			"name":  in.CustomerName,
			"email": in.CustomerEmail,
			"phone": in.CustomerPhone,
		},
		"delivery": map[string]any{
			"addressLine": in.DeliveryAddress,
			"notes":       in.DeliveryNotes,
		},
		"paymentMethod": in.PaymentMethod,
		"items":         items,
	}
	if in.Note != "" {
		metadata["notes"] = in.Note
	}
	if in.Extra != nil {
		metadata["extra"] = in.Extra
	}
	return metadata
}

// FindAll pages the order listing, newest first.
func (s *Service) FindAll(ctx context.Context, filter ListFilter) (*Page, error) {
	if filter.Skip < 0 {
		filter.Skip = 0
	}
	filter.Take = clampTake(filter.Take, defaultListTake, maxListTake)

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &Page{Items: items, Total: total, Skip: filter.Skip, Take: filter.Take}, nil
}

// FindOne loads a single order by id.
func (s *Service) FindOne(ctx context.Context, id string) (*Order, error) {
	return s.getOrder(ctx, id)
}

// FindForUser lists a user's orders, most recent first.
func (s *Service) FindForUser(ctx context.Context, userID string, take int) ([]Order, error) {
	take = clampTake(take, defaultListTake, maxListTake)
	return s.repo.ListForUser(ctx, userID, take)
}

// ActiveOrder pairs the user's most recent in-flight order with its thread.
type ActiveOrder struct {
	Order    *Order    `json:"order"`
	Messages []Message `json:"messages"`
}

// FindActiveForUser returns the single most recent order still in an
// active state, together with its message thread. Returns (nil, nil) when
// the user has no active order.
func (s *Service) FindActiveForUser(ctx context.Context, userID string, takeMessages int) (*ActiveOrder, error) {
	o, err := s.repo.FindActiveForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, nil
	}

	takeMessages = clampTake(takeMessages, defaultListTake, maxMessageTake)
	messages, err := s.repo.ListMessages(ctx, o.ID, takeMessages)
	if err != nil {
		return nil, err
	}
	return &ActiveOrder{Order: o, Messages: messages}, nil
}

// GetAccessContext loads only what an access check needs: the registered
// owner id and the captured customer email.
func (s *Service) GetAccessContext(ctx context.Context, id string) (*AccessContext, error) {
	access, err := s.repo.AccessContext(ctx, id)
	if err != nil {
		return nil, err
	}
	if access == nil {
		return nil, apperror.NotFound("order %s not found", id)
	}
	return access, nil
}

// Confirm moves the order to CONFIRMED. Idempotent when already
// confirmed; rejected when the order is cancelled.
func (s *Service) Confirm(ctx context.Context, id string) (*Order, error) {
	o, err := s.getOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	if o.Status == StatusCancelled {
		return nil, apperror.BadRequest("cannot confirm a cancelled order")
	}
	if o.Status == StatusConfirmed {
		return o, nil
	}

	now := time.Now()
	o.Status = StatusConfirmed
	o.ConfirmedAt = &now
	o.CancelledAt = nil
	o.CancellationReason = ""
	o.UpdatedAt = now

	if err := s.repo.SaveStatus(ctx, o); err != nil {
		return nil, err
	}
	s.publish(ctx, EventOrderConfirmed, o)
	return o, nil
}

// Prepare moves a pending order to PREPARING. Orders already at or past
// the preparing stage are left untouched so duplicate retries are safe.
func (s *Service) Prepare(ctx context.Context, id string) (*Order, error) {
	o, err := s.getOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	if o.Status == StatusCancelled {
		return nil, apperror.BadRequest("cannot prepare a cancelled order")
	}
	if stageRank[o.Status] >= stageRank[StatusPreparing] {
		return o, nil
	}

	now := time.Now()
	o.Status = StatusPreparing
	o.CancelledAt = nil
	o.CancellationReason = ""
	o.UpdatedAt = now

	if err := s.repo.SaveStatus(ctx, o); err != nil {
		return nil, err
	}
	s.publish(ctx, EventOrderPreparing, o)
	return o, nil
}

// Fulfill moves the order to FULFILLED. Idempotent when already fulfilled;
// rejected when the order is cancelled.
func (s *Service) Fulfill(ctx context.Context, id string) (*Order, error) {
	o, err := s.getOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	if o.Status == StatusCancelled {
		return nil, apperror.BadRequest("cannot fulfill a cancelled order")
	}
	if o.Status == StatusFulfilled {
		return o, nil
	}

	now := time.Now()
	o.Status = StatusFulfilled
	o.CancelledAt = nil
	o.CancellationReason = ""
	o.UpdatedAt = now

	if err := s.repo.SaveStatus(ctx, o); err != nil {
		return nil, err
	}
	s.publish(ctx, EventOrderFulfilled, o)
	return o, nil
}

// Cancel moves the order to CANCELLED, stamping the caller-supplied
// reason. Cancelling an already-cancelled order returns it unchanged.
func (s *Service) Cancel(ctx context.Context, id, reason string) (*Order, error) {
	o, err := s.getOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	if o.Status == StatusCancelled {
		return o, nil
	}
	if o.Status == StatusFulfilled && !s.policy.AllowCancelFulfilled {
		return nil, apperror.BadRequest("cannot cancel a fulfilled order")
	}

	now := time.Now()
	o.Status = StatusCancelled
	o.CancelledAt = &now
	o.CancellationReason = reason
	o.UpdatedAt = now

	if err := s.repo.SaveStatus(ctx, o); err != nil {
		return nil, err
	}
	s.publish(ctx, EventOrderCancelled, o)
	return o, nil
}

// ListMessages returns the order's thread, oldest first.
func (s *Service) ListMessages(ctx context.Context, orderID string, take int) ([]Message, error) {
	if _, err := s.getOrder(ctx, orderID); err != nil {
		return nil, err
	}
	take = clampTake(take, defaultListTake, maxMessageTake)
	return s.repo.ListMessages(ctx, orderID, take)
}

// AddMessage appends one note to the order's thread. The payload merges a
// fixed text tag with the message and any caller-supplied context.
func (s *Service) AddMessage(ctx context.Context, orderID string, authorType AuthorType, text, authorID string, msgContext map[string]any) (*Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperror.BadRequest("message text cannot be empty")
	}

	if _, err := s.getOrder(ctx, orderID); err != nil {
		return nil, err
	}

	payload := map[string]any{
		"type":    "text",
		"message": text,
	}
	if msgContext != nil {
		payload["context"] = msgContext
	}

	m := &Message{
		ID:         uuid.New().String(),
		OrderID:    orderID,
		AuthorType: authorType,
		AuthorID:   authorID,
		Payload:    payload,
		CreatedAt:  time.Now(),
	}

	if err := s.repo.AppendMessage(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) getOrder(ctx context.Context, id string) (*Order, error) {
	o, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, apperror.NotFound("order %s not found", id)
	}
	return o, nil
}

// publish emits a lifecycle event. Delivery is best-effort: a broker
// failure never rolls back the committed state change.
func (s *Service) publish(ctx context.Context, eventType string, o *Order) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, o.ID, newEvent(eventType, o)); err != nil {
		s.log.WithError(err).WithField("order_id", o.ID).Warnf("failed to publish %s", eventType)
	}
}

func clampTake(take, def, max int) int {
	if take == 0 {
		return def
	}
	if take < 1 {
		return 1
	}
	if take > max {
		return max
	}
	return take
}
