package auth

import "strings"

// Role tags the resolved identity of one request.
type Role string

const (
	RoleAnonymous Role = "anonymous"
	RoleCustomer  Role = "customer"
	RoleAdmin     Role = "admin"
)

// Principal is the resolved caller identity for a single request. It is
// never persisted; every request reconstructs it from its credentials.
type Principal struct {
	Role   Role
	UserID string
	Email  string
}

// Anonymous is the principal for requests that carried no usable credentials.
var Anonymous = Principal{Role: RoleAnonymous}

// Authenticated reports whether the principal carries a verified identity.
func (p Principal) Authenticated() bool {
	return p.Role == RoleCustomer || p.Role == RoleAdmin
}

// EmailMatches compares the principal's email case-insensitively.
func (p Principal) EmailMatches(email string) bool {
	return p.Email != "" && strings.EqualFold(p.Email, email)
}
