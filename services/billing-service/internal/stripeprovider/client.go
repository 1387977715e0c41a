// Package stripeprovider is the Stripe side of payments: hosted checkout
// sessions, webhook verification and session listing for reconciliation.
package stripeprovider

import (
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
)

const (
	metaQuoteID        = "quote_id"
	metaQuotePaymentID = "quote_payment_id"
)

type Config struct {
	SecretKey     string
	WebhookSecret string
	// Tolerance bounds the age of a signed webhook. Zero means Stripe's
	// default of five minutes.
	Tolerance time.Duration
	// Backend overrides the API backend, mostly for tests.
	Backend stripe.Backend
}

// Client holds its own key and backend; it never touches the package-level
// stripe.Key.
type Client struct {
	sessions      checkoutsession.Client
	webhookSecret string
	tolerance     time.Duration
}

func New(cfg Config) *Client {
	b := cfg.Backend
	if b == nil {
		b = stripe.GetBackend(stripe.APIBackend)
	}
	tol := cfg.Tolerance
	if tol <= 0 {
		tol = 5 * time.Minute
	}
	return &Client{
		sessions:      checkoutsession.Client{B: b, Key: strings.TrimSpace(cfg.SecretKey)},
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		tolerance:     tol,
	}
}
