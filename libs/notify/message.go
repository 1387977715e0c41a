// Package notify carries the e-mails the core services ask for. Producers
// build a Message through Dispatcher; a Transport either delivers it right
// away or hands it to notification-service over Kafka.
package notify

import (
	"errors"
	"fmt"
	"time"
)

type Kind string

const (
	KindAppointmentStatus   Kind = "appointment.status"
	KindQuoteLink           Kind = "quote.link"
	KindPaymentRequest      Kind = "payment.request"
	KindPaymentConfirmation Kind = "payment.confirmation"
	KindInvoice             Kind = "invoice"
)

type Recipient struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type StatusUpdate struct {
	AppointmentID string `json:"appointment_id"`
	Date          string `json:"date"`
	StartTime     string `json:"start_time"`
	EventType     string `json:"event_type"`
	Status        string `json:"status"`
}

type QuoteLink struct {
	QuoteNumber string    `json:"quote_number"`
	Total       int64     `json:"total"`
	Currency    string    `json:"currency"`
	Link        string    `json:"link"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type PaymentRequest struct {
	QuoteNumber string `json:"quote_number"`
	Label       string `json:"label"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Link        string `json:"link"`
}

type PaymentConfirmation struct {
	QuoteNumber   string `json:"quote_number"`
	Label         string `json:"label"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	InvoiceNumber string `json:"invoice_number"`
	TotalPaid     int64  `json:"total_paid"`
	Remaining     int64  `json:"remaining"`
}

type InvoiceNotice struct {
	QuoteNumber   string `json:"quote_number"`
	InvoiceNumber string `json:"invoice_number"`
	Amount        int64  `json:"amount"`
	VATAmount     int64  `json:"vat_amount"`
	TotalAmount   int64  `json:"total_amount"`
	Currency      string `json:"currency"`
}

// Message is the unit handed to a Transport. Exactly one payload field,
// matching Kind, is set.
type Message struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	To        Recipient `json:"to"`
	CreatedAt time.Time `json:"created_at"`

	StatusUpdate        *StatusUpdate        `json:"status_update,omitempty"`
	QuoteLink           *QuoteLink           `json:"quote_link,omitempty"`
	PaymentRequest      *PaymentRequest      `json:"payment_request,omitempty"`
	PaymentConfirmation *PaymentConfirmation `json:"payment_confirmation,omitempty"`
	Invoice             *InvoiceNotice       `json:"invoice,omitempty"`
}

var ErrInvalidMessage = errors.New("invalid notification message")

func (m Message) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidMessage)
	}
	if m.To.Email == "" {
		return fmt.Errorf("%w: missing recipient", ErrInvalidMessage)
	}
	var ok bool
	switch m.Kind {
	case KindAppointmentStatus:
		ok = m.StatusUpdate != nil
	case KindQuoteLink:
		ok = m.QuoteLink != nil
	case KindPaymentRequest:
		ok = m.PaymentRequest != nil
	case KindPaymentConfirmation:
		ok = m.PaymentConfirmation != nil
	case KindInvoice:
		ok = m.Invoice != nil
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidMessage, m.Kind)
	}
	if !ok {
		return fmt.Errorf("%w: %s without payload", ErrInvalidMessage, m.Kind)
	}
	return nil
}
