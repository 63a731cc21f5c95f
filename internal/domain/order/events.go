package order

import "time"

const (
	EventOrderPlaced    = "OrderPlaced"
	EventOrderConfirmed = "OrderConfirmed"
	EventOrderPreparing = "OrderPreparing"
	EventOrderFulfilled = "OrderFulfilled"
	EventOrderCancelled = "OrderCancelled"
)

// EventItem is the line-item shape carried on published events.
type EventItem struct {
	Label     string `json:"label"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	LineTotal string `json:"line_total"`
}

// Event is the envelope published to the message broker whenever an order
// changes state. Consumers (the notifier) switch on Type.
type Event struct {
	Type          string      `json:"type"`
	OrderID       string      `json:"order_id"`
	Number        int64       `json:"number"`
	Status        Status      `json:"status"`
	CustomerName  string      `json:"customer_name,omitempty"`
	CustomerEmail string      `json:"customer_email,omitempty"`
	TotalNet      string      `json:"total_net"`
	Items         []EventItem `json:"items,omitempty"`
	Reason        string      `json:"reason,omitempty"`
	OccurredAt    time.Time   `json:"occurred_at"`
}

func newEvent(eventType string, o *Order) Event {
	ev := Event{
		Type:          eventType,
		OrderID:       o.ID,
		Number:        o.Number,
		Status:        o.Status,
		CustomerName:  o.CustomerName,
		CustomerEmail: o.CustomerEmail,
		TotalNet:      o.TotalNet.String(),
		Reason:        o.CancellationReason,
		OccurredAt:    time.Now(),
	}
	for _, item := range o.ItemsView() {
		ev.Items = append(ev.Items, EventItem{
			Label:     item.Label,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.String(),
			LineTotal: item.LineTotal.String(),
		})
	}
	return ev
}
