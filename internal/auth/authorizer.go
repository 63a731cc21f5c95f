package auth

import (
	"strings"

	"github.com/example/storefront-backend/internal/apperror"
)

// OrderAccessContext is the minimal projection of an order needed to
// decide access: the registered owner if one exists, otherwise the
// customer email captured at placement time.
type OrderAccessContext struct {
	OrderID       string
	OwnerUserID   string
	CustomerEmail string
}

// Authorizer decides whether a principal may perform an operation. It is a
// pure decision component: failures are its only observable effect, and it
// never reveals whether a resource exists.
type Authorizer struct {
	adminEmails map[string]struct{}
}

// NewAuthorizer builds an authorizer from the configured admin allow-list.
// Emails are matched case-insensitively.
func NewAuthorizer(adminEmails []string) *Authorizer {
	set := make(map[string]struct{}, len(adminEmails))
	for _, email := range adminEmails {
		email = strings.ToLower(strings.TrimSpace(email))
		if email != "" {
			set[email] = struct{}{}
		}
	}
	return &Authorizer{adminEmails: set}
}

// IsAdmin reports whether the principal's verified email is on the admin
// allow-list.
func (a *Authorizer) IsAdmin(p Principal) bool {
	if !p.Authenticated() || p.Email == "" {
		return false
	}
	_, ok := a.adminEmails[strings.ToLower(p.Email)]
	return ok
}

// Resolve upgrades a customer principal to admin when the allow-list says
// so. Middleware calls this once per request so downstream checks can
// switch on the role tag alone.
func (a *Authorizer) Resolve(p Principal) Principal {
	if p.Role == RoleCustomer && a.IsAdmin(p) {
		p.Role = RoleAdmin
	}
	return p
}

// EnsureAuthenticated fails unless the principal carries a verified identity.
func (a *Authorizer) EnsureAuthenticated(p Principal) error {
	if !p.Authenticated() {
		return apperror.Forbidden("authentication required")
	}
	return nil
}

// EnsureAdmin fails unless the principal is an authenticated admin.
func (a *Authorizer) EnsureAdmin(p Principal) error {
	if err := a.EnsureAuthenticated(p); err != nil {
		return err
	}
	if !a.IsAdmin(p) {
		return apperror.Forbidden("admin access required")
	}
	return nil
}

// EnsureOwnership fails unless the principal owns the resource identified
// by ownerEmail. Admins bypass ownership checks everywhere.
func (a *Authorizer) EnsureOwnership(p Principal, ownerEmail string) error {
	if a.IsAdmin(p) {
		return nil
	}
	if err := a.EnsureAuthenticated(p); err != nil {
		return err
	}
	if !p.EmailMatches(ownerEmail) {
		return apperror.Forbidden("you cannot operate on this resource")
	}
	return nil
}

// EnsureOrderAccess applies the order ownership rule: the registered owner
// wins when the order has one, otherwise the captured customer email must
// match. Admins bypass both paths.
func (a *Authorizer) EnsureOrderAccess(p Principal, access OrderAccessContext, ownerEmail string) error {
	if a.IsAdmin(p) {
		return nil
	}
	if err := a.EnsureAuthenticated(p); err != nil {
		return err
	}
	if access.OwnerUserID != "" {
		if !p.EmailMatches(ownerEmail) {
			return apperror.Forbidden("you cannot access this order")
		}
		return nil
	}
	if access.CustomerEmail == "" || !p.EmailMatches(access.CustomerEmail) {
		return apperror.Forbidden("you cannot access this order")
	}
	return nil
}
