package order

import "context"

// ListFilter narrows and pages the admin order listing.
type ListFilter struct {
	Status Status
	UserID string
	Skip   int
	Take   int
}

// Page is one page of the admin order listing.
type Page struct {
	Items []Order `json:"items"`
	Total int     `json:"total"`
	Skip  int     `json:"skip"`
	Take  int     `json:"take"`
}

// Repository is the persistence contract for orders, their snapshots and
// their message threads. Lookups return (nil, nil) for a missing order;
// the service layer turns that into a NotFound error.
//
// Create and AppendMessage are expected to be atomic: an order header and
// its item snapshots are written in a single transaction.
//
// SaveStatus reports NotFound when the order row no longer exists, so a
// transition raced against a deletion cannot succeed silently.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	FindByID(ctx context.Context, id string) (*Order, error)
	List(ctx context.Context, filter ListFilter) ([]Order, int, error)
	ListForUser(ctx context.Context, userID string, take int) ([]Order, error)
	FindActiveForUser(ctx context.Context, userID string) (*Order, error)
	AccessContext(ctx context.Context, id string) (*AccessContext, error)
	SaveStatus(ctx context.Context, o *Order) error

	ListMessages(ctx context.Context, orderID string, take int) ([]Message, error)
	AppendMessage(ctx context.Context, m *Message) error
}

// Publisher emits order lifecycle events to the message broker.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}
