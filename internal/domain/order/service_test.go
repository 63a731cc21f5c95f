package order_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront-backend/internal/apperror"
	"github.com/example/storefront-backend/internal/domain/order"
	"github.com/example/storefront-backend/internal/infrastructure/store/mocks"
)

func newTestOrderService() (*order.Service, *mocks.MockOrderRepo, *mocks.MockPublisher) {
	repo := mocks.NewMockOrderRepo()
	publisher := mocks.NewMockPublisher()
	service := order.NewService(repo, publisher, order.Policy{AllowCancelFulfilled: true})
	return service, repo, publisher
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seedOrder(repo *mocks.MockOrderRepo, status order.Status) *order.Order {
	now := time.Now()
	o := &order.Order{
		ID:            uuid.New().String(),
		Status:        status,
		TotalGross:    dec("20.00"),
		TotalNet:      dec("18.00"),
		DiscountTotal: dec("2.00"),
		CustomerName:  "Dana",
		CustomerEmail: "dana@example.com",
		PlacedAt:      now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	repo.Seed(o)
	return o
}

// ============================================
// Create Tests
// ============================================

func TestService_Create_Success(t *testing.T) {
	service, repo, publisher := newTestOrderService()
	ctx := context.Background()

	net := dec("18.00")
	o, err := service.Create(ctx, order.CreateInput{
		CustomerName:  "Dana",
		CustomerEmail: "dana@example.com",
		Items: []order.CartItem{
			{Label: "Combo A", Quantity: 2, UnitPrice: dec("10.00"), LineTotal: dec("20.00")},
		},
		TotalGross:    dec("20.00"),
		TotalNet:      &net,
		DiscountTotal: dec("2.00"),
	})

	require.NoError(t, err)
	assert.NotEmpty(t, o.ID)
	assert.Equal(t, order.StatusPending, o.Status)
	assert.True(t, o.TotalNet.Equal(dec("18.00")))
	assert.Len(t, o.Items, 1)
	assert.Equal(t, "Combo A", o.Items[0].Label)
	assert.Equal(t, 1, repo.CreateCalls)

	require.Len(t, publisher.Events, 1)
	ev := publisher.Events[0].Event.(order.Event)
	assert.Equal(t, order.EventOrderPlaced, ev.Type)
	assert.Equal(t, "18", ev.TotalNet)
}

func TestService_Create_NetDefaultsToGross(t *testing.T) {
	service, _, _ := newTestOrderService()

	o, err := service.Create(context.Background(), order.CreateInput{
		Items:      []order.CartItem{{Label: "Combo A", Quantity: 1, UnitPrice: dec("10.00"), LineTotal: dec("10.00")}},
		TotalGross: dec("10.00"),
	})

	require.NoError(t, err)
	assert.True(t, o.TotalNet.Equal(dec("10.00")))
}

func TestService_Create_EmptyItems(t *testing.T) {
	service, repo, publisher := newTestOrderService()

	o, err := service.Create(context.Background(), order.CreateInput{
		TotalGross: dec("10.00"),
	})

	assert.True(t, apperror.IsBadRequest(err))
	assert.Nil(t, o)
	assert.Zero(t, repo.CreateCalls)
	assert.Empty(t, publisher.Events)
}

func TestService_Create_NegativeTotals(t *testing.T) {
	service, _, _ := newTestOrderService()

	_, err := service.Create(context.Background(), order.CreateInput{
		Items:      []order.CartItem{{Label: "Combo A", Quantity: 1, UnitPrice: dec("10.00"), LineTotal: dec("10.00")}},
		TotalGross: dec("-1.00"),
	})

	assert.True(t, apperror.IsBadRequest(err))
}

func TestService_Create_DiscountExceedsGross(t *testing.T) {
	service, _, _ := newTestOrderService()

	_, err := service.Create(context.Background(), order.CreateInput{
		Items:         []order.CartItem{{Label: "Combo A", Quantity: 1, UnitPrice: dec("10.00"), LineTotal: dec("10.00")}},
		TotalGross:    dec("10.00"),
		DiscountTotal: dec("11.00"),
	})

	assert.True(t, apperror.IsBadRequest(err))
}

func TestService_Create_PublisherFailureDoesNotFailCreate(t *testing.T) {
	service, repo, publisher := newTestOrderService()
	publisher.PublishErr = assert.AnError

	o, err := service.Create(context.Background(), order.CreateInput{
		Items:      []order.CartItem{{Label: "Combo A", Quantity: 1, UnitPrice: dec("10.00"), LineTotal: dec("10.00")}},
		TotalGross: dec("10.00"),
	})

	require.NoError(t, err)
	assert.NotNil(t, o)
	assert.Equal(t, 1, repo.CreateCalls)
}

// ============================================
// State Transition Tests
// ============================================

func TestService_Confirm_FromPending(t *testing.T) {
	service, repo, publisher := newTestOrderService()
	o := seedOrder(repo, order.StatusPending)

	got, err := service.Confirm(context.Background(), o.ID)

	require.NoError(t, err)
	assert.Equal(t, order.StatusConfirmed, got.Status)
	assert.NotNil(t, got.ConfirmedAt)
	assert.Equal(t, 1, repo.SaveStatusCalls)
	require.Len(t, publisher.Events, 1)
	assert.Equal(t, order.EventOrderConfirmed, publisher.Events[0].Event.(order.Event).Type)
}

func TestService_Confirm_AlreadyConfirmed_NoOp(t *testing.T) {
	service, repo, publisher := newTestOrderService()
	o := seedOrder(repo, order.StatusConfirmed)

	got, err := service.Confirm(context.Background(), o.ID)

	require.NoError(t, err)
	assert.Equal(t, order.StatusConfirmed, got.Status)
	assert.Zero(t, repo.SaveStatusCalls)
	assert.Empty(t, publisher.Events)
}

func TestService_Confirm_Cancelled_Rejected(t *testing.T) {
	service, repo, _ := newTestOrderService()
	o := seedOrder(repo, order.StatusCancelled)

	_, err := service.Confirm(context.Background(), o.ID)

	assert.True(t, apperror.IsBadRequest(err))
	assert.Zero(t, repo.SaveStatusCalls)
}

func TestService_Confirm_FromFulfilled_Regresses(t *testing.T) {
	service, repo, _ := newTestOrderService()
	o := seedOrder(repo, order.StatusFulfilled)

	got, err := service.Confirm(context.Background(), o.ID)

	require.NoError(t, err)
	assert.Equal(t, order.StatusConfirmed, got.Status)
}

func TestService_Confirm_NotFound(t *testing.T) {
	service, _, _ := newTestOrderService()

	_, err := service.Confirm(context.Background(), "missing")

	assert.True(t, apperror.IsNotFound(err))
}

func TestSaveStatus_OrderDeletedConcurrently(t *testing.T) {
	repo := mocks.NewMockOrderRepo()

	// A transition raced against a delete must surface NotFound rather
	// than report a write that touched no row.
	err := repo.SaveStatus(context.Background(), &order.Order{ID: uuid.New().String()})

	assert.True(t, apperror.IsNotFound(err))
}

func TestService_Prepare_FromPending(t *testing.T) {
	service, repo, _ := newTestOrderService()
	o := seedOrder(repo, order.StatusPending)

	got, err := service.Prepare(context.Background(), o.ID)

	require.NoError(t, err)
	assert.Equal(t, order.StatusPreparing, got.Status)
}

func TestService_Prepare_FromConfirmed_NoOp(t *testing.T) {
	service, repo, publisher := newTestOrderService()
	o := seedOrder(repo, order.StatusConfirmed)

	got, err := service.Prepare(context.Background(), o.ID)

	require.NoError(t, err)
	assert.Equal(t, order.StatusConfirmed, got.Status)
	assert.Zero(t, repo.SaveStatusCalls)
	assert.Empty(t, publisher.Events)
}

func TestService_Fulfill_FromConfirmed(t *testing.T) {
	service, repo, _ := newTestOrderService()
	o := seedOrder(repo, order.StatusConfirmed)

	got, err := service.Fulfill(context.Background(), o.ID)

	require.NoError(t, err)
	assert.Equal(t, order.StatusFulfilled, got.Status)
}

func TestService_Fulfill_AlreadyFulfilled_NoOp(t *testing.T) {
	service, repo, _ := newTestOrderService()
	o := seedOrder(repo, order.StatusFulfilled)

	got, err := service.Fulfill(context.Background(), o.ID)

	require.NoError(t, err)
	assert.Equal(t, order.StatusFulfilled, got.Status)
	assert.Zero(t, repo.SaveStatusCalls)
}

func TestService_Cancel_StampsReason(t *testing.T) {
	service, repo, publisher := newTestOrderService()
	o := seedOrder(repo, order.StatusPending)

	got, err := service.Cancel(context.Background(), o.ID, "customer changed their mind")

	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, got.Status)
	assert.NotNil(t, got.CancelledAt)
	assert.Equal(t, "customer changed their mind", got.CancellationReason)
	require.Len(t, publisher.Events, 1)
	ev := publisher.Events[0].Event.(order.Event)
	assert.Equal(t, order.EventOrderCancelled, ev.Type)
	assert.Equal(t, "customer changed their mind", ev.Reason)
}

func TestService_Cancel_AlreadyCancelled_Unchanged(t *testing.T) {
	service, repo, publisher := newTestOrderService()
	o := seedOrder(repo, order.StatusCancelled)
	o.CancellationReason = "original reason"
	repo.Seed(o)

	got, err := service.Cancel(context.Background(), o.ID, "a different reason")

	require.NoError(t, err)
	assert.Equal(t, "original reason", got.CancellationReason)
	assert.Zero(t, repo.SaveStatusCalls)
	assert.Empty(t, publisher.Events)
}

func TestService_Cancel_Fulfilled_PolicyDenied(t *testing.T) {
	repo := mocks.NewMockOrderRepo()
	service := order.NewService(repo, mocks.NewMockPublisher(), order.Policy{AllowCancelFulfilled: false})
	o := seedOrder(repo, order.StatusFulfilled)

	_, err := service.Cancel(context.Background(), o.ID, "too late")

	assert.True(t, apperror.IsBadRequest(err))
}

func TestService_Cancel_Fulfilled_PolicyAllowed(t *testing.T) {
	service, repo, _ := newTestOrderService()
	o := seedOrder(repo, order.StatusFulfilled)

	got, err := service.Cancel(context.Background(), o.ID, "refund")

	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, got.Status)
}

func TestService_ConfirmAfterCancel_ClearsCancellation(t *testing.T) {
	service, repo, _ := newTestOrderService()
	o := seedOrder(repo, order.StatusPending)

	_, err := service.Cancel(context.Background(), o.ID, "oops")
	require.NoError(t, err)

	// A cancelled order cannot be confirmed; recovery goes through prepare
	// which clears the cancellation stamp.
	_, err = service.Confirm(context.Background(), o.ID)
	assert.True(t, apperror.IsBadRequest(err))
}

// ============================================
// Listing Tests
// ============================================

func TestService_FindAll_ClampsTake(t *testing.T) {
	service, repo, _ := newTestOrderService()
	for i := 0; i < 3; i++ {
		seedOrder(repo, order.StatusPending)
	}

	tests := []struct {
		name string
		take int
		want int
	}{
		{"zero uses default", 0, 25},
		{"negative clamps to one", -5, 1},
		{"huge clamps to max", 10000, 100},
		{"in range kept", 50, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := service.FindAll(context.Background(), order.ListFilter{Take: tt.take})
			require.NoError(t, err)
			assert.Equal(t, tt.want, page.Take)
		})
	}
}

func TestService_FindAll_FiltersByStatus(t *testing.T) {
	service, repo, _ := newTestOrderService()
	seedOrder(repo, order.StatusPending)
	seedOrder(repo, order.StatusCancelled)

	page, err := service.FindAll(context.Background(), order.ListFilter{Status: order.StatusCancelled})

	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, order.StatusCancelled, page.Items[0].Status)
}

func TestService_FindActiveForUser_NoneInFlight(t *testing.T) {
	service, repo, _ := newTestOrderService()
	o := seedOrder(repo, order.StatusFulfilled)
	o.UserID = "user-1"
	repo.Seed(o)

	active, err := service.FindActiveForUser(context.Background(), "user-1", 0)

	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestService_FindActiveForUser_ReturnsNewestWithThread(t *testing.T) {
	service, repo, _ := newTestOrderService()

	older := seedOrder(repo, order.StatusPending)
	older.UserID = "user-1"
	older.CreatedAt = time.Now().Add(-time.Hour)
	repo.Seed(older)

	newer := seedOrder(repo, order.StatusPreparing)
	newer.UserID = "user-1"
	repo.Seed(newer)

	_, err := service.AddMessage(context.Background(), newer.ID, order.AuthorAdmin, "on its way", "", nil)
	require.NoError(t, err)

	active, err := service.FindActiveForUser(context.Background(), "user-1", 0)

	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, newer.ID, active.Order.ID)
	assert.Len(t, active.Messages, 1)
}

// ============================================
// Message Thread Tests
// ============================================

func TestService_AddMessage_BuildsPayload(t *testing.T) {
	service, repo, _ := newTestOrderService()
	o := seedOrder(repo, order.StatusPending)

	m, err := service.AddMessage(context.Background(), o.ID, order.AuthorUser, "  where is my food  ", "user-1", map[string]any{"screen": "tracking"})

	require.NoError(t, err)
	assert.Equal(t, order.AuthorUser, m.AuthorType)
	assert.Equal(t, "text", m.Payload["type"])
	assert.Equal(t, "where is my food", m.Payload["message"])
	assert.Equal(t, map[string]any{"screen": "tracking"}, m.Payload["context"])
}

func TestService_AddMessage_EmptyText(t *testing.T) {
	service, repo, _ := newTestOrderService()
	o := seedOrder(repo, order.StatusPending)

	_, err := service.AddMessage(context.Background(), o.ID, order.AuthorUser, "   ", "user-1", nil)

	assert.True(t, apperror.IsBadRequest(err))
}

func TestService_AddMessage_OrderNotFound(t *testing.T) {
	service, _, _ := newTestOrderService()

	_, err := service.AddMessage(context.Background(), "missing", order.AuthorUser, "hello", "user-1", nil)

	assert.True(t, apperror.IsNotFound(err))
}

func TestService_ListMessages_OldestFirst(t *testing.T) {
	service, repo, _ := newTestOrderService()
	o := seedOrder(repo, order.StatusPending)

	first, err := service.AddMessage(context.Background(), o.ID, order.AuthorUser, "first", "user-1", nil)
	require.NoError(t, err)
	second, err := service.AddMessage(context.Background(), o.ID, order.AuthorAdmin, "second", "", nil)
	require.NoError(t, err)

	messages, err := service.ListMessages(context.Background(), o.ID, 0)

	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, first.ID, messages[0].ID)
	assert.Equal(t, second.ID, messages[1].ID)
}
