package stripeprovider

import (
	"context"
	"errors"

	"github.com/stripe/stripe-go/v79"

	"github.com/decorstudio/platform/services/billing-service/internal/payments"
)

var ErrNotConfigured = errors.New("stripe: secret key not configured")

// CreateCheckoutSession opens a one-off payment page. The quote and
// installment ids travel as metadata on both the session and the payment
// intent, which is how the webhook finds its way back.
func (c *Client) CreateCheckoutSession(ctx context.Context, req payments.CheckoutRequest) (string, error) {
	if c.sessions.Key == "" {
		return "", ErrNotConfigured
	}
	meta := map[string]string{metaQuoteID: req.QuoteID}
	if req.QuotePaymentID != "" {
		meta[metaQuotePaymentID] = req.QuotePaymentID
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(req.Currency),
					UnitAmount: stripe.Int64(req.Amount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: meta,
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: meta,
		},
	}
	if req.QuotePaymentID != "" {
		params.ClientReferenceID = stripe.String(req.QuotePaymentID)
	} else {
		params.ClientReferenceID = stripe.String(req.QuoteID)
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	if req.IdempotencyKey != "" {
		params.IdempotencyKey = stripe.String(req.IdempotencyKey)
	}
	params.Context = ctx

	sess, err := c.sessions.New(params)
	if err != nil {
		return "", err
	}
	if sess.URL == "" {
		return "", errors.New("stripe: checkout session without url")
	}
	return sess.URL, nil
}
