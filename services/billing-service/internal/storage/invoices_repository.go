package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/decorstudio/platform/services/billing-service/internal/model"
)

const invoiceColumns = `id::text, invoice_number, quote_id::text, COALESCE(quote_payment_id::text, ''), amount, vat_amount,
	total_amount, currency, payment_method, COALESCE(payment_intent_id, ''), issued_at, sent_at`

func scanInvoice(row pgx.Row) (model.Invoice, error) {
	var inv model.Invoice
	err := row.Scan(
		&inv.ID,
		&inv.InvoiceNumber,
		&inv.QuoteID,
		&inv.QuotePaymentID,
		&inv.Amount,
		&inv.VATAmount,
		&inv.TotalAmount,
		&inv.Currency,
		&inv.PaymentMethod,
		&inv.PaymentIntentID,
		&inv.IssuedAt,
		&inv.SentAt,
	)
	return inv, err
}

func (q *Queries) NextInvoiceSeq(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, `SELECT nextval('invoice_number_seq')`).Scan(&n)
	return n, err
}

func (q *Queries) InsertInvoice(ctx context.Context, inv model.Invoice) (model.Invoice, error) {
	return scanInvoice(q.db.QueryRow(ctx, `
		INSERT INTO invoices
			(invoice_number, quote_id, quote_payment_id, amount, vat_amount, total_amount, currency, payment_method, payment_intent_id, issued_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+invoiceColumns,
		inv.InvoiceNumber, inv.QuoteID, nullIfEmpty(inv.QuotePaymentID), inv.Amount, inv.VATAmount, inv.TotalAmount,
		inv.Currency, inv.PaymentMethod, nullIfEmpty(inv.PaymentIntentID), inv.IssuedAt))
}

func (q *Queries) ListInvoices(ctx context.Context, quoteID string) ([]model.Invoice, error) {
	rows, err := q.db.Query(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE quote_id = $1 ORDER BY issued_at, invoice_number`, quoteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// MarkInvoiceSent is the only change an issued invoice ever sees.
func (q *Queries) MarkInvoiceSent(ctx context.Context, id string, sentAt time.Time) error {
	_, err := q.db.Exec(ctx, `UPDATE invoices SET sent_at = $2 WHERE id = $1 AND sent_at IS NULL`, id, sentAt)
	return err
}
