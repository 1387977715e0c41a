package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Transport moves a validated Message towards its recipient.
type Transport interface {
	Deliver(ctx context.Context, msg Message) error
}

// Dispatcher is the notification sender the core services call. Every call
// is fire-and-report: the error is for logging, never for rolling back.
type Dispatcher struct {
	transport Transport
	now       func() time.Time
}

func NewDispatcher(t Transport) *Dispatcher {
	return &Dispatcher{transport: t, now: time.Now}
}

func (d *Dispatcher) SendStatusUpdate(ctx context.Context, to Recipient, u StatusUpdate) error {
	return d.send(ctx, Message{Kind: KindAppointmentStatus, To: to, StatusUpdate: &u})
}

func (d *Dispatcher) SendQuoteLink(ctx context.Context, to Recipient, q QuoteLink) error {
	return d.send(ctx, Message{Kind: KindQuoteLink, To: to, QuoteLink: &q})
}

func (d *Dispatcher) SendPaymentRequest(ctx context.Context, to Recipient, p PaymentRequest) error {
	return d.send(ctx, Message{Kind: KindPaymentRequest, To: to, PaymentRequest: &p})
}

func (d *Dispatcher) SendPaymentConfirmationEmail(ctx context.Context, to Recipient, p PaymentConfirmation) error {
	return d.send(ctx, Message{Kind: KindPaymentConfirmation, To: to, PaymentConfirmation: &p})
}

func (d *Dispatcher) SendInvoiceEmail(ctx context.Context, to Recipient, inv InvoiceNotice) error {
	return d.send(ctx, Message{Kind: KindInvoice, To: to, Invoice: &inv})
}

func (d *Dispatcher) send(ctx context.Context, msg Message) error {
	msg.ID = uuid.NewString()
	msg.CreatedAt = d.now().UTC()
	if err := msg.Validate(); err != nil {
		return err
	}
	return d.transport.Deliver(ctx, msg)
}
