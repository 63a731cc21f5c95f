package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/example/storefront-backend/internal/api/middleware"
	"github.com/example/storefront-backend/internal/apperror"
	"github.com/example/storefront-backend/internal/auth"
	"github.com/example/storefront-backend/internal/domain/coupon"
	"github.com/example/storefront-backend/internal/domain/order"
	"github.com/example/storefront-backend/internal/domain/user"
)

// Handlers wires the HTTP surface to the domain services. Every handler
// resolves the caller's principal first and gates through the authorizer
// before touching a service.
type Handlers struct {
	orders     *order.Service
	users      *user.Service
	coupons    *coupon.Service
	authorizer *auth.Authorizer
	log        *logrus.Entry
}

func NewHandlers(orders *order.Service, users *user.Service, coupons *coupon.Service, authorizer *auth.Authorizer) *Handlers {
	return &Handlers{
		orders:     orders,
		users:      users,
		coupons:    coupons,
		authorizer: authorizer,
		log:        logrus.WithField("component", "api"),
	}
}

type createOrderRequest struct {
	Customer struct {
		Name  string `json:"name"`
		Email string `json:"email"`
		Phone string `json:"phone"`
	} `json:"customer"`
	Delivery struct {
		AddressLine string `json:"address_line"`
		Notes       string `json:"notes"`
	} `json:"delivery"`
	PaymentMethod string           `json:"payment_method"`
	Items         []order.CartItem `json:"items"`
	TotalGross    decimal.Decimal  `json:"total_gross"`
	TotalNet      *decimal.Decimal `json:"total_net,omitempty"`
	DiscountTotal decimal.Decimal  `json:"discount_total"`
	Note          string           `json:"note,omitempty"`
	Extra         map[string]any   `json:"extra,omitempty"`
}

// CreateOrder places a new order. Open to guests; when the caller is
// authenticated the order is registered to their customer record, never
// to a caller-chosen user id.
func (h *Handlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}

	p := middleware.PrincipalFromContext(r.Context())
	in := order.CreateInput{
		CustomerName:    req.Customer.Name,
		CustomerEmail:   req.Customer.Email,
		CustomerPhone:   req.Customer.Phone,
		DeliveryAddress: req.Delivery.AddressLine,
		DeliveryNotes:   req.Delivery.Notes,
		PaymentMethod:   req.PaymentMethod,
		Items:           req.Items,
		TotalGross:      req.TotalGross,
		TotalNet:        req.TotalNet,
		DiscountTotal:   req.DiscountTotal,
		Note:            req.Note,
		Extra:           req.Extra,
	}
	if p.Authenticated() {
		if in.CustomerEmail == "" {
			in.CustomerEmail = p.Email
		}
		u, err := h.users.FindByEmail(r.Context(), p.Email)
		if err != nil {
			respondAppError(w, err)
			return
		}
		if u != nil {
			in.UserID = u.ID
		}
	}

	o, err := h.orders.Create(r.Context(), in)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, o)
}

// ListOrders pages the full order ledger. Admin only.
func (h *Handlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if err := h.authorizer.EnsureAdmin(p); err != nil {
		respondAppError(w, err)
		return
	}

	filter := order.ListFilter{
		UserID: r.URL.Query().Get("user_id"),
		Skip:   queryInt(r, "skip"),
		Take:   queryInt(r, "take"),
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, ok := order.ParseStatus(raw)
		if !ok {
			respondBadRequest(w, "unknown order status")
			return
		}
		filter.Status = status
	}

	page, err := h.orders.FindAll(r.Context(), filter)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

// GetOrder returns one order. Admins see everything; everyone else must
// pass the order ownership rule.
func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request, orderID string) {
	p := middleware.PrincipalFromContext(r.Context())
	if err := h.ensureOrderAccess(r, p, orderID); err != nil {
		respondAppError(w, err)
		return
	}

	o, err := h.orders.FindOne(r.Context(), orderID)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// UserOrders lists a user's orders, most recent first. Admin or the user
// themselves.
func (h *Handlers) UserOrders(w http.ResponseWriter, r *http.Request, userID string) {
	p := middleware.PrincipalFromContext(r.Context())
	if err := h.ensureUserAccess(r, p, userID); err != nil {
		respondAppError(w, err)
		return
	}

	orders, err := h.orders.FindForUser(r.Context(), userID, queryInt(r, "take"))
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

// ActiveOrder returns the user's most recent in-flight order with its
// message thread, or null when nothing is in flight.
func (h *Handlers) ActiveOrder(w http.ResponseWriter, r *http.Request, userID string) {
	p := middleware.PrincipalFromContext(r.Context())
	if err := h.ensureUserAccess(r, p, userID); err != nil {
		respondAppError(w, err)
		return
	}

	active, err := h.orders.FindActiveForUser(r.Context(), userID, queryInt(r, "take_messages"))
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, active)
}

// TransitionOrder applies one status transition. Admin only.
func (h *Handlers) TransitionOrder(w http.ResponseWriter, r *http.Request, orderID, action string) {
	p := middleware.PrincipalFromContext(r.Context())
	if err := h.authorizer.EnsureAdmin(p); err != nil {
		respondAppError(w, err)
		return
	}

	var (
		o   *order.Order
		err error
	)
	switch action {
	case "confirm":
		o, err = h.orders.Confirm(r.Context(), orderID)
	case "prepare":
		o, err = h.orders.Prepare(r.Context(), orderID)
	case "fulfill":
		o, err = h.orders.Fulfill(r.Context(), orderID)
	case "cancel":
		var req struct {
			Reason string `json:"reason"`
		}
		// An empty body cancels without a reason.
		_ = json.NewDecoder(r.Body).Decode(&req)
		o, err = h.orders.Cancel(r.Context(), orderID, req.Reason)
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// ListMessages returns the order's message thread, oldest first. Gated by
// the order ownership rule.
func (h *Handlers) ListMessages(w http.ResponseWriter, r *http.Request, orderID string) {
	p := middleware.PrincipalFromContext(r.Context())
	if err := h.ensureOrderAccess(r, p, orderID); err != nil {
		respondAppError(w, err)
		return
	}

	messages, err := h.orders.ListMessages(r.Context(), orderID, queryInt(r, "take"))
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, messages)
}

// AddMessage appends one note to the order's thread. Gated by the order
// ownership rule; the author tag reflects the caller's resolved role.
func (h *Handlers) AddMessage(w http.ResponseWriter, r *http.Request, orderID string) {
	p := middleware.PrincipalFromContext(r.Context())
	if err := h.ensureOrderAccess(r, p, orderID); err != nil {
		respondAppError(w, err)
		return
	}

	var req struct {
		Message string         `json:"message"`
		Context map[string]any `json:"context,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}

	authorType := order.AuthorUser
	if h.authorizer.IsAdmin(p) {
		authorType = order.AuthorAdmin
	}

	m, err := h.orders.AddMessage(r.Context(), orderID, authorType, req.Message, p.UserID, req.Context)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, m)
}

// ensureOrderAccess applies the order ownership rule: a registered owner
// is matched through their user record's email, a guest order through the
// customer email captured at placement.
func (h *Handlers) ensureOrderAccess(r *http.Request, p auth.Principal, orderID string) error {
	access, err := h.orders.GetAccessContext(r.Context(), orderID)
	if err != nil {
		return err
	}
	if h.authorizer.IsAdmin(p) {
		return nil
	}

	ownerEmail := ""
	if access.UserID != "" {
		owner, err := h.users.FindOne(r.Context(), access.UserID)
		if err != nil {
			if apperror.IsNotFound(err) {
				// Dangling owner reference; never resolvable by a customer.
				return apperror.Forbidden("you cannot access this order")
			}
			return err
		}
		ownerEmail = owner.Email
	}

	return h.authorizer.EnsureOrderAccess(p, auth.OrderAccessContext{
		OrderID:       access.OrderID,
		OwnerUserID:   access.UserID,
		CustomerEmail: access.CustomerEmail,
	}, ownerEmail)
}

// ensureUserAccess admits admins and the user the record belongs to.
func (h *Handlers) ensureUserAccess(r *http.Request, p auth.Principal, userID string) error {
	if h.authorizer.IsAdmin(p) {
		return nil
	}
	if err := h.authorizer.EnsureAuthenticated(p); err != nil {
		return err
	}
	return h.users.EnsureBelongsToEmail(r.Context(), userID, p.Email)
}

func queryInt(r *http.Request, name string) int {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}
