package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/storefront-backend/internal/api/middleware"
	"github.com/example/storefront-backend/internal/domain/coupon"
	"github.com/example/storefront-backend/internal/domain/user"
)

type upsertUserRequest struct {
	Phone           string     `json:"phone,omitempty"`
	FirstName       string     `json:"first_name,omitempty"`
	LastName        string     `json:"last_name,omitempty"`
	DisplayName     string     `json:"display_name,omitempty"`
	TermsAcceptedAt *time.Time `json:"terms_accepted_at,omitempty"`
}

// UpsertUser creates or refreshes the caller's own customer record. The
// record key is always the verified email from the token, never a
// caller-chosen one.
func (h *Handlers) UpsertUser(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if err := h.authorizer.EnsureAuthenticated(p); err != nil {
		respondAppError(w, err)
		return
	}

	var req upsertUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}

	u, err := h.users.Upsert(r.Context(), user.UpsertInput{
		Email:           p.Email,
		ExternalAuthID:  p.UserID,
		Phone:           req.Phone,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		DisplayName:     req.DisplayName,
		TermsAcceptedAt: req.TermsAcceptedAt,
	})
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, u)
}

// ListUsers pages the customer listing. Admin only.
func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if err := h.authorizer.EnsureAdmin(p); err != nil {
		respondAppError(w, err)
		return
	}

	filter := user.ListFilter{
		Search:     r.URL.Query().Get("search"),
		ActiveOnly: r.URL.Query().Get("active_only") == "true",
		Skip:       queryInt(r, "skip"),
		Take:       queryInt(r, "take"),
	}

	page, err := h.users.FindAll(r.Context(), filter)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

// GetUser returns one customer record. Admin or the user themselves.
func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request, userID string) {
	p := middleware.PrincipalFromContext(r.Context())
	if err := h.ensureUserAccess(r, p, userID); err != nil {
		respondAppError(w, err)
		return
	}

	u, err := h.users.FindOne(r.Context(), userID)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, u)
}

type updateProfileRequest struct {
	Phone       string `json:"phone,omitempty"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Address     *struct {
		Label      string `json:"label,omitempty"`
		Line1      string `json:"line1"`
		Line2      string `json:"line2,omitempty"`
		City       string `json:"city,omitempty"`
		Province   string `json:"province,omitempty"`
		PostalCode string `json:"postal_code,omitempty"`
		Notes      string `json:"notes,omitempty"`
	} `json:"address,omitempty"`
}

// UpdateProfile applies profile fields and the primary address. Admin or
// the user themselves.
func (h *Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request, userID string) {
	p := middleware.PrincipalFromContext(r.Context())
	if err := h.ensureUserAccess(r, p, userID); err != nil {
		respondAppError(w, err)
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}

	in := user.ProfileInput{
		Phone:       req.Phone,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		DisplayName: req.DisplayName,
	}
	if req.Address != nil {
		in.Address = &user.AddressInput{
			Label:      req.Address.Label,
			Line1:      req.Address.Line1,
			Line2:      req.Address.Line2,
			City:       req.Address.City,
			Province:   req.Address.Province,
			PostalCode: req.Address.PostalCode,
			Notes:      req.Address.Notes,
		}
	}

	u, err := h.users.UpdateProfile(r.Context(), userID, in)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, u)
}

// DeactivateUser soft-deletes a customer record. Admin only.
func (h *Handlers) DeactivateUser(w http.ResponseWriter, r *http.Request, userID string) {
	p := middleware.PrincipalFromContext(r.Context())
	if err := h.authorizer.EnsureAdmin(p); err != nil {
		respondAppError(w, err)
		return
	}

	u, err := h.users.Deactivate(r.Context(), userID)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, u)
}

// IssueShareCoupons tops the user's share coupons for the current month up
// to the quota and returns the full set. Admin or the user themselves.
func (h *Handlers) IssueShareCoupons(w http.ResponseWriter, r *http.Request, userID string) {
	p := middleware.PrincipalFromContext(r.Context())
	if err := h.ensureUserAccess(r, p, userID); err != nil {
		respondAppError(w, err)
		return
	}

	coupons, err := h.coupons.EnsureMonthlyShareCoupons(r.Context(), userID, time.Now())
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, coupons)
}

// ListShareCoupons returns the user's share coupons, newest first. Admin
// or the user themselves.
func (h *Handlers) ListShareCoupons(w http.ResponseWriter, r *http.Request, userID string) {
	p := middleware.PrincipalFromContext(r.Context())
	if err := h.ensureUserAccess(r, p, userID); err != nil {
		respondAppError(w, err)
		return
	}

	coupons, err := h.coupons.ListShareCoupons(r.Context(), userID)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, coupons)
}

// ActivateShareCoupon marks one of the user's coupons as shared. Admin or
// the user themselves.
func (h *Handlers) ActivateShareCoupon(w http.ResponseWriter, r *http.Request, userID, code string) {
	p := middleware.PrincipalFromContext(r.Context())
	if err := h.ensureUserAccess(r, p, userID); err != nil {
		respondAppError(w, err)
		return
	}

	c, err := h.coupons.ActivateShareCoupon(r.Context(), userID, code)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// ListShareCouponsGlobal lists share coupons across all users, optionally
// filtered by status. Admin only.
func (h *Handlers) ListShareCouponsGlobal(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if err := h.authorizer.EnsureAdmin(p); err != nil {
		respondAppError(w, err)
		return
	}

	var status coupon.ShareStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, ok := coupon.ParseShareStatus(raw)
		if !ok {
			respondBadRequest(w, "unknown share coupon status")
			return
		}
		status = parsed
	}

	coupons, err := h.coupons.ListShareCouponsGlobal(r.Context(), status)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, coupons)
}

type grantDiscountRequest struct {
	Value     decimal.Decimal `json:"value"`
	Label     string          `json:"label,omitempty"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
}

// GrantDiscount issues a single-use compensation discount code to the
// user. Admin only.
func (h *Handlers) GrantDiscount(w http.ResponseWriter, r *http.Request, userID string) {
	p := middleware.PrincipalFromContext(r.Context())
	if err := h.authorizer.EnsureAdmin(p); err != nil {
		respondAppError(w, err)
		return
	}

	var req grantDiscountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}

	d, err := h.coupons.GrantDiscount(r.Context(), userID, req.Value, req.Label, req.ExpiresAt)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, d)
}

// ListDiscountCodes lists discount codes, optionally only those still
// redeemable. Admin only.
func (h *Handlers) ListDiscountCodes(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if err := h.authorizer.EnsureAdmin(p); err != nil {
		respondAppError(w, err)
		return
	}

	codes, err := h.coupons.ListDiscountCodes(r.Context(), r.URL.Query().Get("active") == "true")
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, codes)
}
