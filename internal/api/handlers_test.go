package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront-backend/internal/api"
	"github.com/example/storefront-backend/internal/auth"
	"github.com/example/storefront-backend/internal/domain/coupon"
	"github.com/example/storefront-backend/internal/domain/order"
	"github.com/example/storefront-backend/internal/domain/user"
	"github.com/example/storefront-backend/internal/infrastructure/store/mocks"
)

const testSecret = "test-secret-key-that-is-long-enough"

type testEnv struct {
	router    http.Handler
	verifier  *auth.Verifier
	orderRepo *mocks.MockOrderRepo
	userRepo  *mocks.MockUserRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	orderRepo := mocks.NewMockOrderRepo()
	userRepo := mocks.NewMockUserRepo()
	couponRepo := mocks.NewMockCouponRepo()

	orderSvc := order.NewService(orderRepo, mocks.NewMockPublisher(), order.Policy{AllowCancelFulfilled: true})
	userSvc := user.NewService(userRepo)
	couponSvc := coupon.NewService(couponRepo)

	verifier := auth.NewVerifier(testSecret)
	authorizer := auth.NewAuthorizer([]string{"admin@x.com"})

	handlers := api.NewHandlers(orderSvc, userSvc, couponSvc, authorizer)
	router := api.NewRouter(handlers, verifier, authorizer, []string{"svc-key"})

	return &testEnv{
		router:    router,
		verifier:  verifier,
		orderRepo: orderRepo,
		userRepo:  userRepo,
	}
}

func (e *testEnv) token(t *testing.T, userID, email string) string {
	t.Helper()
	token, err := e.verifier.Sign(userID, email, time.Hour)
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) seedGuestOrder(email string) *order.Order {
	now := time.Now()
	o := &order.Order{
		ID:            uuid.New().String(),
		Status:        order.StatusPending,
		TotalGross:    decimal.RequireFromString("10.00"),
		TotalNet:      decimal.RequireFromString("10.00"),
		CustomerEmail: email,
		PlacedAt:      now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	e.orderRepo.Seed(o)
	return o
}

func (e *testEnv) seedUser(email string) *user.User {
	now := time.Now()
	u := &user.User{
		ID:        uuid.New().String(),
		Email:     email,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	e.userRepo.Seed(u)
	return u
}

func orderBody() map[string]any {
	return map[string]any{
		"customer": map[string]any{
			"name":  "Dana",
			"email": "dana@x.com",
		},
		"items": []map[string]any{
			{"label": "Combo A", "quantity": 2, "unit_price": "10.00", "line_total": "20.00"},
		},
		"total_gross":    "20.00",
		"total_net":      "18.00",
		"discount_total": "2.00",
	}
}

// ============================================
// Order Endpoint Tests
// ============================================

func TestAPI_CreateOrder_Guest(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/orders", "", orderBody())

	require.Equal(t, http.StatusCreated, rec.Code)
	var got order.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, order.StatusPending, got.Status)
	assert.Empty(t, got.UserID)
}

func TestAPI_CreateOrder_AuthenticatedBindsCustomerRecord(t *testing.T) {
	env := newTestEnv(t)
	u := env.seedUser("dana@x.com")
	token := env.token(t, "ext-1", "dana@x.com")

	rec := env.do(t, http.MethodPost, "/orders", token, orderBody())

	require.Equal(t, http.StatusCreated, rec.Code)
	var got order.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, u.ID, got.UserID)
}

func TestAPI_CreateOrder_AuthenticatedWithoutRecordStaysGuest(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "ext-1", "dana@x.com")

	rec := env.do(t, http.MethodPost, "/orders", token, orderBody())

	require.Equal(t, http.StatusCreated, rec.Code)
	var got order.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Empty(t, got.UserID)
}

func TestAPI_CreateOrder_InvalidBody(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_ListOrders_RequiresCredential(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/orders", "", nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPI_ListOrders_CustomerForbidden(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "user-1", "dana@x.com")

	rec := env.do(t, http.MethodGet, "/orders", token, nil)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAPI_ListOrders_Admin(t *testing.T) {
	env := newTestEnv(t)
	env.seedGuestOrder("dana@x.com")
	token := env.token(t, "admin-1", "admin@x.com")

	rec := env.do(t, http.MethodGet, "/orders", token, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var page order.Page
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Total)
}

func TestAPI_ListOrders_APIKeyIsNotAdmin(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("X-API-Key", "svc-key")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	// The key passes the credential gate but carries no identity.
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAPI_GetOrder_GuestOrderByEmail(t *testing.T) {
	env := newTestEnv(t)
	o := env.seedGuestOrder("a@x.com")

	rec := env.do(t, http.MethodGet, "/orders/"+o.ID, env.token(t, "u1", "a@x.com"), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/orders/"+o.ID, env.token(t, "u2", "b@x.com"), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAPI_GetOrder_RegisteredOwnerWins(t *testing.T) {
	env := newTestEnv(t)
	owner := env.seedUser("owner@x.com")
	o := env.seedGuestOrder("guest@x.com")
	o.UserID = owner.ID
	env.orderRepo.Seed(o)

	rec := env.do(t, http.MethodGet, "/orders/"+o.ID, env.token(t, owner.ID, "owner@x.com"), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// The captured guest email no longer grants access.
	rec = env.do(t, http.MethodGet, "/orders/"+o.ID, env.token(t, "u2", "guest@x.com"), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAPI_TransitionOrder_AdminOnly(t *testing.T) {
	env := newTestEnv(t)
	o := env.seedGuestOrder("a@x.com")

	rec := env.do(t, http.MethodPost, "/orders/"+o.ID+"/confirm", env.token(t, "u1", "a@x.com"), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, "/orders/"+o.ID+"/confirm", env.token(t, "admin-1", "admin@x.com"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got order.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, order.StatusConfirmed, got.Status)
}

func TestAPI_CancelOrder_WithReason(t *testing.T) {
	env := newTestEnv(t)
	o := env.seedGuestOrder("a@x.com")
	token := env.token(t, "admin-1", "admin@x.com")

	rec := env.do(t, http.MethodPost, "/orders/"+o.ID+"/cancel", token, map[string]string{"reason": "out of stock"})

	require.Equal(t, http.StatusOK, rec.Code)
	var got order.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, order.StatusCancelled, got.Status)
	assert.Equal(t, "out of stock", got.CancellationReason)
}

func TestAPI_Messages_GatedByOrderAccess(t *testing.T) {
	env := newTestEnv(t)
	o := env.seedGuestOrder("a@x.com")

	rec := env.do(t, http.MethodPost, "/orders/"+o.ID+"/messages", env.token(t, "u1", "a@x.com"),
		map[string]any{"message": "any update?"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var m order.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, order.AuthorUser, m.AuthorType)

	rec = env.do(t, http.MethodGet, "/orders/"+o.ID+"/messages", env.token(t, "u2", "b@x.com"), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/orders/"+o.ID+"/messages", env.token(t, "admin-1", "admin@x.com"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAPI_AdminMessage_TaggedAdmin(t *testing.T) {
	env := newTestEnv(t)
	o := env.seedGuestOrder("a@x.com")

	rec := env.do(t, http.MethodPost, "/orders/"+o.ID+"/messages", env.token(t, "admin-1", "admin@x.com"),
		map[string]any{"message": "on its way"})

	require.Equal(t, http.StatusCreated, rec.Code)
	var m order.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, order.AuthorAdmin, m.AuthorType)
}

func TestAPI_UserOrders_SelfOrAdmin(t *testing.T) {
	env := newTestEnv(t)
	u := env.seedUser("dana@x.com")
	o := env.seedGuestOrder("dana@x.com")
	o.UserID = u.ID
	env.orderRepo.Seed(o)

	rec := env.do(t, http.MethodGet, "/orders/user/"+u.ID, env.token(t, u.ID, "dana@x.com"), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/orders/user/"+u.ID, env.token(t, "u2", "other@x.com"), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

// ============================================
// User and Coupon Endpoint Tests
// ============================================

func TestAPI_UpsertUser_EmailFromToken(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "ext-1", "dana@x.com")

	rec := env.do(t, http.MethodPost, "/users", token, map[string]string{"first_name": "Dana"})

	require.Equal(t, http.StatusCreated, rec.Code)
	var u user.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &u))
	assert.Equal(t, "dana@x.com", u.Email)
	assert.Equal(t, "ext-1", u.ExternalAuthID)
}

func TestAPI_ShareCoupons_SelfOnly(t *testing.T) {
	env := newTestEnv(t)
	u := env.seedUser("dana@x.com")

	rec := env.do(t, http.MethodPost, "/users/"+u.ID+"/share-coupons", env.token(t, u.ID, "dana@x.com"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var coupons []coupon.ShareCoupon
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &coupons))
	assert.Len(t, coupons, coupon.MonthlyQuota)

	rec = env.do(t, http.MethodPost, "/users/"+u.ID+"/share-coupons", env.token(t, "u2", "other@x.com"), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAPI_GrantDiscount_AdminOnly(t *testing.T) {
	env := newTestEnv(t)
	u := env.seedUser("dana@x.com")

	body := map[string]any{"value": "5.00", "label": "late delivery"}

	rec := env.do(t, http.MethodPost, "/users/"+u.ID+"/discounts", env.token(t, u.ID, "dana@x.com"), body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, "/users/"+u.ID+"/discounts", env.token(t, "admin-1", "admin@x.com"), body)
	require.Equal(t, http.StatusCreated, rec.Code)
	var d coupon.DiscountCode
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.Equal(t, u.ID, d.UserID)
}

func TestAPI_UnknownRoute(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "u1", "dana@x.com")

	rec := env.do(t, http.MethodGet, "/orders/some-id/unknown/extra", token, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
