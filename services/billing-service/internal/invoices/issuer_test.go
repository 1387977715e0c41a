package invoices

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/decorstudio/platform/libs/apperr"
	"github.com/decorstudio/platform/services/billing-service/internal/model"
)

type memInvoices struct {
	seq      int64
	inserted []model.Invoice
	err      error
}

func (m *memInvoices) NextInvoiceSeq(context.Context) (int64, error) {
	m.seq++
	return m.seq, nil
}

func (m *memInvoices) InsertInvoice(_ context.Context, inv model.Invoice) (model.Invoice, error) {
	if m.err != nil {
		return model.Invoice{}, m.err
	}
	inv.ID = "inv-1"
	m.inserted = append(m.inserted, inv)
	return inv, nil
}

func TestIssueSplitsVATAndNumbers(t *testing.T) {
	store := &memInvoices{seq: 41}
	issuedAt := time.Date(2026, 4, 2, 15, 0, 0, 0, time.FixedZone("CEST", 2*3600))

	inv, err := NewIssuer(2000).Issue(context.Background(), store, Request{
		QuoteID:        "q1",
		QuotePaymentID: "p1",
		Gross:          120000,
		Currency:       "eur",
		IssuedAt:       issuedAt,
	})
	require.NoError(t, err)
	require.Equal(t, "INV-2026-00042", inv.InvoiceNumber)
	require.Equal(t, int64(100000), inv.Amount)
	require.Equal(t, int64(20000), inv.VATAmount)
	require.Equal(t, int64(120000), inv.TotalAmount)
	require.Equal(t, "card", inv.PaymentMethod)
	require.Equal(t, time.UTC, inv.IssuedAt.Location())
}

func TestIssueRejectsEmptyAmountAndWrapsStoreErrors(t *testing.T) {
	store := &memInvoices{}
	_, err := NewIssuer(2000).Issue(context.Background(), store, Request{QuoteID: "q1", IssuedAt: time.Now()})
	require.ErrorIs(t, err, apperr.ErrValidation)

	store.err = errors.New("duplicate key")
	_, err = NewIssuer(2000).Issue(context.Background(), store, Request{QuoteID: "q1", Gross: 100, IssuedAt: time.Now()})
	require.ErrorIs(t, err, apperr.ErrStorage)
}
