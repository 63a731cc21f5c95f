package user

import "context"

// ListFilter narrows and pages the admin user listing.
type ListFilter struct {
	Search     string
	ActiveOnly bool
	Skip       int
	Take       int
}

// Page is one page of the admin user listing.
type Page struct {
	Items []User `json:"items"`
	Total int    `json:"total"`
	Skip  int    `json:"skip"`
	Take  int    `json:"take"`
}

// Repository is the persistence contract for customer records. Lookups
// return (nil, nil) for a missing user.
type Repository interface {
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, filter ListFilter) ([]User, int, error)
	Insert(ctx context.Context, u *User) error
	Save(ctx context.Context, u *User) error

	FindPrimaryAddress(ctx context.Context, userID string) (*Address, error)
	InsertAddress(ctx context.Context, a *Address) error
	SaveAddress(ctx context.Context, a *Address) error

	// InTx runs fn against a repository bound to one transaction.
	InTx(ctx context.Context, fn func(Repository) error) error
}
