package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/decorstudio/platform/services/billing-service/internal/model"
)

const paymentColumns = `id::text, quote_id::text, position, label, amount, status,
	COALESCE(validation_token::text, ''), COALESCE(payment_intent_id, ''), sent_at, paid_at`

func scanPayment(row pgx.Row) (model.QuotePayment, error) {
	var p model.QuotePayment
	err := row.Scan(
		&p.ID,
		&p.QuoteID,
		&p.Position,
		&p.Label,
		&p.Amount,
		&p.Status,
		&p.ValidationToken,
		&p.PaymentIntentID,
		&p.SentAt,
		&p.PaidAt,
	)
	return p, err
}

func collectPayments(rows pgx.Rows) ([]model.QuotePayment, error) {
	defer rows.Close()
	var out []model.QuotePayment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (q *Queries) InsertQuotePayment(ctx context.Context, p model.QuotePayment) (model.QuotePayment, error) {
	return scanPayment(q.db.QueryRow(ctx, `
		INSERT INTO quote_payments (quote_id, position, label, amount, status)
		VALUES ($1, $2, $3, $4, 'pending')
		RETURNING `+paymentColumns, p.QuoteID, p.Position, p.Label, p.Amount))
}

func (q *Queries) ListQuotePayments(ctx context.Context, quoteID string) ([]model.QuotePayment, error) {
	rows, err := q.db.Query(ctx, `SELECT `+paymentColumns+` FROM quote_payments WHERE quote_id = $1 ORDER BY position`, quoteID)
	if err != nil {
		return nil, err
	}
	return collectPayments(rows)
}

func (q *Queries) ListQuotePaymentsForUpdate(ctx context.Context, quoteID string) ([]model.QuotePayment, error) {
	rows, err := q.db.Query(ctx, `SELECT `+paymentColumns+` FROM quote_payments WHERE quote_id = $1 ORDER BY position FOR UPDATE`, quoteID)
	if err != nil {
		return nil, err
	}
	return collectPayments(rows)
}

func (q *Queries) GetQuotePayment(ctx context.Context, id string) (model.QuotePayment, error) {
	return scanPayment(q.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM quote_payments WHERE id = $1`, id))
}

func (q *Queries) GetQuotePaymentForUpdate(ctx context.Context, id string) (model.QuotePayment, error) {
	return scanPayment(q.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM quote_payments WHERE id = $1 FOR UPDATE`, id))
}

func (q *Queries) GetQuotePaymentByToken(ctx context.Context, token string) (model.QuotePayment, error) {
	return scanPayment(q.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM quote_payments WHERE validation_token = $1`, token))
}

func (q *Queries) UpdateQuotePaymentAmount(ctx context.Context, id string, amount int64) error {
	_, err := q.db.Exec(ctx, `
		UPDATE quote_payments
		SET amount = $2,
			updated_at = now()
		WHERE id = $1 AND status <> 'paid'
	`, id, amount)
	return err
}

// MarkQuotePaymentSent rotates the installment's token.
func (q *Queries) MarkQuotePaymentSent(ctx context.Context, id, token string, sentAt time.Time) (model.QuotePayment, error) {
	return scanPayment(q.db.QueryRow(ctx, `
		UPDATE quote_payments
		SET status = 'sent',
			validation_token = $2,
			sent_at = $3,
			updated_at = now()
		WHERE id = $1
		RETURNING `+paymentColumns, id, token, sentAt))
}

func (q *Queries) MarkQuotePaymentPaid(ctx context.Context, id, paymentIntentID string, paidAt time.Time) (model.QuotePayment, error) {
	return scanPayment(q.db.QueryRow(ctx, `
		UPDATE quote_payments
		SET status = 'paid',
			payment_intent_id = $2,
			paid_at = $3,
			updated_at = now()
		WHERE id = $1
		RETURNING `+paymentColumns, id, nullIfEmpty(paymentIntentID), paidAt))
}
