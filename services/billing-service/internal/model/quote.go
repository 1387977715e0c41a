package model

import "time"

const (
	QuoteDraft    = "draft"
	QuoteSent     = "sent"
	QuoteAccepted = "accepted"
	QuoteRejected = "rejected"
	QuoteExpired  = "expired"
	QuotePaid     = "paid"
)

const (
	PaymentPending = "pending"
	PaymentSent    = "sent"
	PaymentPaid    = "paid"
)

// Quote amounts are in cents of Currency. Status is the stored status;
// read sites derive "expired" from ExpiresAt.
type Quote struct {
	ID              string     `json:"id"`
	QuoteNumber     string     `json:"quote_number"`
	ClientName      string     `json:"client_name"`
	ClientEmail     string     `json:"client_email"`
	Status          string     `json:"status"`
	AmountTotal     int64      `json:"amount_total"`
	DepositAmount   int64      `json:"deposit_amount"`
	Currency        string     `json:"currency"`
	ValidityDays    int        `json:"validity_days"`
	ValidationToken string     `json:"validation_token,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`
	PaidAmount      *int64     `json:"paid_amount,omitempty"`
	PaymentIntentID string     `json:"payment_intent_id,omitempty"`
}

// QuotePayment is one installment of a quote's payment schedule.
type QuotePayment struct {
	ID              string     `json:"id"`
	QuoteID         string     `json:"quote_id"`
	Position        int        `json:"position"`
	Label           string     `json:"label"`
	Amount          int64      `json:"amount"`
	Status          string     `json:"status"`
	ValidationToken string     `json:"validation_token,omitempty"`
	PaymentIntentID string     `json:"payment_intent_id,omitempty"`
	SentAt          *time.Time `json:"sent_at,omitempty"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`
}

const (
	SummaryNone    = "none"
	SummaryUnpaid  = "unpaid"
	SummaryPartial = "partial"
	SummaryPaid    = "paid"
)

type QuotePaymentSummary struct {
	TotalPayments   int    `json:"total_payments"`
	PaidPayments    int    `json:"paid_payments"`
	Total           int64  `json:"total"`
	TotalPaid       int64  `json:"total_paid"`
	RemainingAmount int64  `json:"remaining_amount"`
	PaymentStatus   string `json:"payment_status"`
}

// Invoice is issued once per settled payment. QuotePaymentID is empty for
// the single-payment path.
type Invoice struct {
	ID              string     `json:"id"`
	InvoiceNumber   string     `json:"invoice_number"`
	QuoteID         string     `json:"quote_id"`
	QuotePaymentID  string     `json:"quote_payment_id,omitempty"`
	Amount          int64      `json:"amount"`
	VATAmount       int64      `json:"vat_amount"`
	TotalAmount     int64      `json:"total_amount"`
	Currency        string     `json:"currency"`
	PaymentMethod   string     `json:"payment_method"`
	PaymentIntentID string     `json:"payment_intent_id,omitempty"`
	IssuedAt        time.Time  `json:"issued_at"`
	SentAt          *time.Time `json:"sent_at,omitempty"`
}

// ProviderEvent is the dedupe record of a webhook delivery.
type ProviderEvent struct {
	Provider        string
	ProviderEventID string
	EventType       string
	Payload         []byte
}
