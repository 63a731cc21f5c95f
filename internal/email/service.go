package email

import (
	"fmt"
	"net/smtp"
)

// Service sends transactional mail via SMTP.
type Service struct {
	host string
	port string
	from string
}

func NewService(host, port, from string) *Service {
	return &Service{
		host: host,
		port: port,
		from: from,
	}
}

// OrderLine is one line of an order as rendered in mail.
type OrderLine struct {
	Label     string
	Quantity  int
	LineTotal string
}

// SendOrderConfirmation sends the order-received confirmation.
func (s *Service) SendOrderConfirmation(to string, number int64, total string, lines []OrderLine) error {
	subject := fmt.Sprintf("Order #%d received — thank you!", number)
	body := BuildOrderConfirmationBody(number, total, lines)
	return s.send(to, subject, body)
}

// SendOrderCancelled notifies the customer their order was cancelled.
func (s *Service) SendOrderCancelled(to string, number int64, reason string) error {
	subject := fmt.Sprintf("Order #%d cancelled", number)
	body := BuildOrderCancelledBody(number, reason)
	return s.send(to, subject, body)
}

func (s *Service) send(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		s.from, to, subject, body)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	return smtp.SendMail(addr, nil, s.from, []string{to}, []byte(msg))
}
