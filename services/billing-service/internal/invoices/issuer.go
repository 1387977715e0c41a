// Package invoices numbers and issues invoices for settled payments.
package invoices

import (
	"context"
	"fmt"
	"time"

	"github.com/decorstudio/platform/libs/apperr"
	"github.com/decorstudio/platform/libs/money"
	"github.com/decorstudio/platform/services/billing-service/internal/model"
)

type Store interface {
	NextInvoiceSeq(ctx context.Context) (int64, error)
	InsertInvoice(ctx context.Context, inv model.Invoice) (model.Invoice, error)
}

type Issuer struct {
	vatRateBps int
}

// NewIssuer takes the VAT rate in basis points (2000 = 20%).
func NewIssuer(vatRateBps int) *Issuer {
	return &Issuer{vatRateBps: vatRateBps}
}

type Request struct {
	QuoteID         string
	QuotePaymentID  string
	Gross           int64
	Currency        string
	PaymentMethod   string
	PaymentIntentID string
	IssuedAt        time.Time
}

// Number formats INV-<year>-<seq>, the sequence zero-padded to five digits.
func Number(year int, seq int64) string {
	return fmt.Sprintf("INV-%d-%05d", year, seq)
}

// Issue creates the invoice inside the caller's transaction. The amount is
// tax-inclusive; the VAT part is split out of it.
func (i *Issuer) Issue(ctx context.Context, s Store, req Request) (model.Invoice, error) {
	const op = "invoices.issue"
	if req.Gross <= 0 {
		return model.Invoice{}, apperr.Validation(op, "invoice amount must be positive")
	}
	seq, err := s.NextInvoiceSeq(ctx)
	if err != nil {
		return model.Invoice{}, apperr.Storage(op, err)
	}
	net, vat := money.SplitVAT(req.Gross, i.vatRateBps)
	method := req.PaymentMethod
	if method == "" {
		method = "card"
	}
	inv, err := s.InsertInvoice(ctx, model.Invoice{
		InvoiceNumber:   Number(req.IssuedAt.Year(), seq),
		QuoteID:         req.QuoteID,
		QuotePaymentID:  req.QuotePaymentID,
		Amount:          net,
		VATAmount:       vat,
		TotalAmount:     req.Gross,
		Currency:        req.Currency,
		PaymentMethod:   method,
		PaymentIntentID: req.PaymentIntentID,
		IssuedAt:        req.IssuedAt.UTC(),
	})
	if err != nil {
		return model.Invoice{}, apperr.Storage(op, err)
	}
	return inv, nil
}
