package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/decorstudio/platform/services/billing-service/internal/model"
)

const quoteColumns = `id::text, quote_number, client_name, client_email, status, amount_total, deposit_amount,
	currency, validity_days, COALESCE(validation_token::text, ''), created_at, expires_at, paid_at, paid_amount,
	COALESCE(payment_intent_id, '')`

func scanQuote(row pgx.Row) (model.Quote, error) {
	var q model.Quote
	err := row.Scan(
		&q.ID,
		&q.QuoteNumber,
		&q.ClientName,
		&q.ClientEmail,
		&q.Status,
		&q.AmountTotal,
		&q.DepositAmount,
		&q.Currency,
		&q.ValidityDays,
		&q.ValidationToken,
		&q.CreatedAt,
		&q.ExpiresAt,
		&q.PaidAt,
		&q.PaidAmount,
		&q.PaymentIntentID,
	)
	return q, err
}

// InsertQuote numbers the quote Q-<year>-<seq> and stores it as a draft.
func (q *Queries) InsertQuote(ctx context.Context, in model.Quote, year int) (model.Quote, error) {
	return scanQuote(q.db.QueryRow(ctx, `
		INSERT INTO quotes (quote_number, client_name, client_email, status, amount_total, deposit_amount, currency, validity_days)
		VALUES ($1 || lpad(nextval('quote_number_seq')::text, 4, '0'), $2, $3, 'draft', $4, $5, $6, $7)
		RETURNING `+quoteColumns,
		fmt.Sprintf("Q-%d-", year), in.ClientName, in.ClientEmail, in.AmountTotal, in.DepositAmount, in.Currency, in.ValidityDays))
}

func (q *Queries) GetQuote(ctx context.Context, id string) (model.Quote, error) {
	return scanQuote(q.db.QueryRow(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE id = $1`, id))
}

func (q *Queries) GetQuoteForUpdate(ctx context.Context, id string) (model.Quote, error) {
	return scanQuote(q.db.QueryRow(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE id = $1 FOR UPDATE`, id))
}

func (q *Queries) GetQuoteByToken(ctx context.Context, token string) (model.Quote, error) {
	return scanQuote(q.db.QueryRow(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE validation_token = $1`, token))
}

func (q *Queries) ListQuotes(ctx context.Context, status string, limit int) ([]model.Quote, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := q.db.Query(ctx, `
		SELECT `+quoteColumns+`
		FROM quotes
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Quote
	for rows.Next() {
		quote, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, quote)
	}
	return out, rows.Err()
}

func (q *Queries) UpdateQuoteAmounts(ctx context.Context, id string, total, deposit int64) (model.Quote, error) {
	return scanQuote(q.db.QueryRow(ctx, `
		UPDATE quotes
		SET amount_total = $2,
			deposit_amount = $3,
			updated_at = now()
		WHERE id = $1
		RETURNING `+quoteColumns, id, total, deposit))
}

// MarkQuoteSent stores a fresh token, which invalidates the previous link.
func (q *Queries) MarkQuoteSent(ctx context.Context, id, token string, expiresAt time.Time) (model.Quote, error) {
	return scanQuote(q.db.QueryRow(ctx, `
		UPDATE quotes
		SET status = 'sent',
			validation_token = $2,
			expires_at = $3,
			updated_at = now()
		WHERE id = $1
		RETURNING `+quoteColumns, id, token, expiresAt))
}

func (q *Queries) SetQuoteStatus(ctx context.Context, id, status string) (model.Quote, error) {
	return scanQuote(q.db.QueryRow(ctx, `
		UPDATE quotes
		SET status = $2,
			updated_at = now()
		WHERE id = $1
		RETURNING `+quoteColumns, id, status))
}

func (q *Queries) MarkQuotePaid(ctx context.Context, id string, amount int64, paymentIntentID string, paidAt time.Time) (model.Quote, error) {
	return scanQuote(q.db.QueryRow(ctx, `
		UPDATE quotes
		SET status = 'paid',
			paid_amount = $2,
			payment_intent_id = $3,
			paid_at = $4,
			updated_at = now()
		WHERE id = $1
		RETURNING `+quoteColumns, id, amount, nullIfEmpty(paymentIntentID), paidAt))
}
