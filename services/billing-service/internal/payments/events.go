package payments

import "time"

// Event is a payment-provider event after signature verification. It is
// one of CheckoutCompleted, PaymentFailed or Unhandled.
type Event interface {
	eventID() string
}

// CheckoutCompleted settles either one installment (QuotePaymentID) or, on
// the single-payment path, the whole quote (QuoteID only). Paid is false
// for asynchronous methods that have not cleared yet.
type CheckoutCompleted struct {
	ID              string
	Type            string
	SessionID       string
	QuotePaymentID  string
	QuoteID         string
	PaymentIntentID string
	AmountTotal     int64
	Currency        string
	Paid            bool
	OccurredAt      time.Time
	Raw             []byte
}

// PaymentFailed is informational; it never changes local state.
type PaymentFailed struct {
	ID             string
	Type           string
	QuotePaymentID string
	QuoteID        string
	Reason         string
	OccurredAt     time.Time
	Raw            []byte
}

// Unhandled is any other verified event type.
type Unhandled struct {
	ID   string
	Type string
	Raw  []byte
}

func (e CheckoutCompleted) eventID() string { return e.ID }
func (e PaymentFailed) eventID() string     { return e.ID }
func (e Unhandled) eventID() string         { return e.ID }

// Outcome tells the webhook what HandleEvent did.
type Outcome string

const (
	OutcomeSettled     Outcome = "settled"
	OutcomeAlreadyPaid Outcome = "already_paid"
	OutcomeDuplicate   Outcome = "duplicate"
	OutcomeIgnored     Outcome = "ignored"
	OutcomeLogged      Outcome = "logged"
)
