package stripeprovider

import (
	"context"
	"encoding/json"
	"slices"
	"time"

	"github.com/stripe/stripe-go/v79"

	"github.com/decorstudio/platform/services/billing-service/internal/payments"
)

// CompletedSince lists every paid checkout session created after since, as
// settlement events ordered oldest first. Stripe pages newest first, so the
// whole window is walked pageSize sessions at a time before sorting. Event
// ids are derived from the session id, so feeding the same session twice is
// a duplicate.
func (c *Client) CompletedSince(ctx context.Context, since time.Time, pageSize int) ([]payments.CheckoutCompleted, error) {
	if c.sessions.Key == "" {
		return nil, ErrNotConfigured
	}
	params := &stripe.CheckoutSessionListParams{
		CreatedRange: &stripe.RangeQueryParams{GreaterThanOrEqual: since.Unix()},
		Status:       stripe.String(string(stripe.CheckoutSessionStatusComplete)),
	}
	params.Context = ctx
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 100
	}
	params.Limit = stripe.Int64(int64(pageSize))

	var out []payments.CheckoutCompleted
	it := c.sessions.List(params)
	for it.Next() {
		sess := it.CheckoutSession()
		if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
			continue
		}
		evt := completedFromSession(sess)
		if evt.QuoteID == "" && evt.QuotePaymentID == "" {
			continue
		}
		evt.ID = "reconcile:" + sess.ID
		evt.Type = "checkout.session.reconciled"
		evt.OccurredAt = time.Unix(sess.Created, 0).UTC()
		evt.Raw, _ = json.Marshal(map[string]string{"session_id": sess.ID})
		out = append(out, evt)
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	slices.SortStableFunc(out, func(a, b payments.CheckoutCompleted) int {
		return a.OccurredAt.Compare(b.OccurredAt)
	})
	return out, nil
}
