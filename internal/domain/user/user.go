package user

import "time"

// User is a registered customer. Identity verification happens at the
// external provider; this record only anchors ownership and profile data.
type User struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	ExternalAuthID string `json:"external_auth_id,omitempty"`

	Phone       string `json:"phone,omitempty"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	DisplayName string `json:"display_name,omitempty"`

	IsActive        bool       `json:"is_active"`
	TermsAcceptedAt *time.Time `json:"terms_accepted_at,omitempty"`

	Addresses []Address `json:"addresses,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Address is a delivery address. Each user has at most one primary
// address, which profile updates upsert in place.
type Address struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`

	Label      string `json:"label"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Province   string `json:"province,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Notes      string `json:"notes,omitempty"`
	IsPrimary  bool   `json:"is_primary"`
}
