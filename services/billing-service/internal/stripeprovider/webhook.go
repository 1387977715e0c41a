package stripeprovider

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/decorstudio/platform/libs/apperr"
	"github.com/decorstudio/platform/services/billing-service/internal/payments"
)

// ParseWebhook verifies the Stripe-Signature header and maps the event onto
// payments.Event. Any verification or shape failure is a MalformedEvent.
func (c *Client) ParseWebhook(payload []byte, sigHeader string) (payments.Event, error) {
	const op = "stripe.webhook"
	if c.webhookSecret == "" {
		return nil, apperr.MalformedEvent(op, "webhook secret not configured")
	}
	evt, err := webhook.ConstructEventWithOptions(payload, sigHeader, c.webhookSecret, webhook.ConstructEventOptions{
		Tolerance:                c.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, apperr.MalformedEvent(op, "signature verification failed: %v", err)
	}
	if evt.ID == "" || evt.Data == nil {
		return nil, apperr.MalformedEvent(op, "event without id or data")
	}
	occurredAt := time.Unix(evt.Created, 0).UTC()

	switch evt.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(evt.Data.Raw, &sess); err != nil {
			return nil, apperr.MalformedEvent(op, "checkout session payload: %v", err)
		}
		out := completedFromSession(&sess)
		out.ID, out.Type, out.OccurredAt, out.Raw = evt.ID, string(evt.Type), occurredAt, payload
		return out, nil

	case "checkout.session.async_payment_failed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(evt.Data.Raw, &sess); err != nil {
			return nil, apperr.MalformedEvent(op, "checkout session payload: %v", err)
		}
		return payments.PaymentFailed{
			ID:             evt.ID,
			Type:           string(evt.Type),
			QuoteID:        meta(sess.Metadata, metaQuoteID),
			QuotePaymentID: meta(sess.Metadata, metaQuotePaymentID),
			Reason:         "asynchronous payment failed",
			OccurredAt:     occurredAt,
			Raw:            payload,
		}, nil

	case "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(evt.Data.Raw, &pi); err != nil {
			return nil, apperr.MalformedEvent(op, "payment intent payload: %v", err)
		}
		reason := string(pi.Status)
		if pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
			reason = pi.LastPaymentError.Msg
		}
		return payments.PaymentFailed{
			ID:             evt.ID,
			Type:           string(evt.Type),
			QuoteID:        meta(pi.Metadata, metaQuoteID),
			QuotePaymentID: meta(pi.Metadata, metaQuotePaymentID),
			Reason:         reason,
			OccurredAt:     occurredAt,
			Raw:            payload,
		}, nil
	}
	return payments.Unhandled{ID: evt.ID, Type: string(evt.Type), Raw: payload}, nil
}

func completedFromSession(sess *stripe.CheckoutSession) payments.CheckoutCompleted {
	out := payments.CheckoutCompleted{
		SessionID:      sess.ID,
		QuoteID:        meta(sess.Metadata, metaQuoteID),
		QuotePaymentID: meta(sess.Metadata, metaQuotePaymentID),
		AmountTotal:    sess.AmountTotal,
		Currency:       string(sess.Currency),
		Paid:           sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
	}
	if sess.PaymentIntent != nil {
		out.PaymentIntentID = sess.PaymentIntent.ID
	}
	return out
}

func meta(m map[string]string, key string) string {
	return strings.TrimSpace(m[key])
}
