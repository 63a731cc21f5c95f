package notification

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"

	"github.com/example/storefront-backend/internal/domain/order"
	"github.com/example/storefront-backend/internal/email"
)

// Handler turns order lifecycle events into customer mail.
type Handler struct {
	emailService *email.Service
	log          *logrus.Entry
}

func NewHandler(emailSvc *email.Service) *Handler {
	return &Handler{
		emailService: emailSvc,
		log:          logrus.WithField("component", "notifier"),
	}
}

// HandleEvent processes one event from the broker.
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var event order.Event
	if err := json.Unmarshal(value, &event); err != nil {
		h.log.WithError(err).Warn("skipping malformed event")
		return nil
	}

	switch event.Type {
	case order.EventOrderPlaced:
		return h.handlePlaced(event)
	case order.EventOrderCancelled:
		return h.handleCancelled(event)
	}
	return nil
}

func (h *Handler) handlePlaced(event order.Event) error {
	if event.CustomerEmail == "" {
		h.log.WithField("order_id", event.OrderID).Warn("order has no customer email, skipping confirmation")
		return nil
	}

	lines := make([]email.OrderLine, len(event.Items))
	for i, item := range event.Items {
		lines[i] = email.OrderLine{
			Label:     item.Label,
			Quantity:  item.Quantity,
			LineTotal: item.LineTotal,
		}
	}

	if err := h.emailService.SendOrderConfirmation(event.CustomerEmail, event.Number, event.TotalNet, lines); err != nil {
		h.log.WithError(err).WithField("order_id", event.OrderID).Error("failed to send confirmation mail")
		return err
	}

	h.log.WithFields(logrus.Fields{
		"order_id": event.OrderID,
		"to":       event.CustomerEmail,
	}).Info("order confirmation mail sent")
	return nil
}

func (h *Handler) handleCancelled(event order.Event) error {
	if event.CustomerEmail == "" {
		return nil
	}

	if err := h.emailService.SendOrderCancelled(event.CustomerEmail, event.Number, event.Reason); err != nil {
		h.log.WithError(err).WithField("order_id", event.OrderID).Error("failed to send cancellation mail")
		return err
	}
	return nil
}
