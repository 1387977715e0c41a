package payments

import (
	"context"
	"time"

	"github.com/decorstudio/platform/libs/apperr"
	"github.com/decorstudio/platform/services/billing-service/internal/model"
)

// PublicQuote is what the client sees behind a quote link. Installment
// tokens stay out of it; each installment has its own link.
type PublicQuote struct {
	QuoteNumber   string                    `json:"quote_number"`
	ClientName    string                    `json:"client_name"`
	Status        string                    `json:"status"`
	AmountTotal   int64                     `json:"amount_total"`
	DepositAmount int64                     `json:"deposit_amount"`
	Currency      string                    `json:"currency"`
	ExpiresAt     *time.Time                `json:"expires_at,omitempty"`
	Payments      []PublicPayment           `json:"payments"`
	Summary       model.QuotePaymentSummary `json:"summary"`
}

type PublicPayment struct {
	Label  string     `json:"label"`
	Amount int64      `json:"amount"`
	Status string     `json:"status"`
	PaidAt *time.Time `json:"paid_at,omitempty"`
}

// PublicInstallment is what the client sees behind a payment link.
type PublicInstallment struct {
	QuoteNumber string                    `json:"quote_number"`
	ClientName  string                    `json:"client_name"`
	Label       string                    `json:"label"`
	Amount      int64                     `json:"amount"`
	Currency    string                    `json:"currency"`
	Status      string                    `json:"status"`
	PaidAt      *time.Time                `json:"paid_at,omitempty"`
	Summary     model.QuotePaymentSummary `json:"summary"`
}

// QuoteByToken resolves a quote link. Drafts, rejected and expired quotes
// answer not found.
func (s *Service) QuoteByToken(ctx context.Context, token string) (PublicQuote, error) {
	const op = "quotes.by_token"
	q, err := s.quoteByToken(ctx, op, token)
	if err != nil {
		return PublicQuote{}, err
	}
	schedule, err := s.store.ListQuotePayments(ctx, q.ID)
	if err != nil {
		return PublicQuote{}, apperr.Storage(op, err)
	}
	return s.publicQuote(q, schedule), nil
}

func (s *Service) AcceptByToken(ctx context.Context, token string) (PublicQuote, error) {
	return s.respond(ctx, "quotes.accept", token, model.QuoteAccepted)
}

func (s *Service) RejectByToken(ctx context.Context, token string) (PublicQuote, error) {
	return s.respond(ctx, "quotes.reject", token, model.QuoteRejected)
}

func (s *Service) respond(ctx context.Context, op, token, status string) (PublicQuote, error) {
	found, err := s.quoteByToken(ctx, op, token)
	if err != nil {
		return PublicQuote{}, err
	}
	var (
		updated  model.Quote
		schedule []model.QuotePayment
	)
	err = s.store.Tx(ctx, func(q Queries) error {
		quote, err := q.GetQuoteForUpdate(ctx, found.ID)
		if err != nil {
			return lookupErr(op, "quote", err)
		}
		if quote.ValidationToken != token {
			return apperr.NotFound(op, "quote")
		}
		if eff := DeriveEffectiveStatus(quote, s.now()); eff != model.QuoteSent {
			return apperr.Conflict(op, "quote %s is already %s", quote.QuoteNumber, eff)
		}
		if updated, err = q.SetQuoteStatus(ctx, quote.ID, status); err != nil {
			return err
		}
		schedule, err = q.ListQuotePayments(ctx, quote.ID)
		return err
	})
	if err != nil {
		return PublicQuote{}, apperr.Storage(op, err)
	}
	s.logger.InfoContext(ctx, "quote answered by client", "quote_id", updated.ID, "status", status)
	return s.publicQuote(updated, schedule), nil
}

// PaymentByToken resolves an installment link. The link only works once
// sent and while its quote is still viewable.
func (s *Service) PaymentByToken(ctx context.Context, token string) (PublicInstallment, error) {
	const op = "payments.by_token"
	q, p, err := s.installmentByToken(ctx, op, token)
	if err != nil {
		return PublicInstallment{}, err
	}
	schedule, err := s.store.ListQuotePayments(ctx, q.ID)
	if err != nil {
		return PublicInstallment{}, apperr.Storage(op, err)
	}
	return PublicInstallment{
		QuoteNumber: q.QuoteNumber,
		ClientName:  q.ClientName,
		Label:       p.Label,
		Amount:      p.Amount,
		Currency:    q.Currency,
		Status:      p.Status,
		PaidAt:      p.PaidAt,
		Summary:     Summarize(q, schedule),
	}, nil
}

// CheckoutByPaymentToken opens a checkout for the installment behind a
// payment link. The provider redirects back to the same link.
func (s *Service) CheckoutByPaymentToken(ctx context.Context, token string) (string, error) {
	const op = "payments.checkout_by_token"
	q, p, err := s.installmentByToken(ctx, op, token)
	if err != nil {
		return "", err
	}
	back := s.link("payments", token)
	return s.installmentCheckout(ctx, q, p, back+"?checkout=success", back+"?checkout=cancel")
}

// CheckoutByQuoteToken is the single-payment checkout behind a quote link.
func (s *Service) CheckoutByQuoteToken(ctx context.Context, token string) (string, error) {
	const op = "quotes.checkout_by_token"
	q, err := s.quoteByToken(ctx, op, token)
	if err != nil {
		return "", err
	}
	if q.Status == model.QuotePaid {
		return "", apperr.Conflict(op, "quote %s is already paid", q.QuoteNumber)
	}
	back := s.link("quotes", token)
	return s.quoteCheckout(ctx, q, back+"?checkout=success", back+"?checkout=cancel")
}

func (s *Service) quoteByToken(ctx context.Context, op, token string) (model.Quote, error) {
	if !validID(token) {
		return model.Quote{}, apperr.NotFound(op, "quote")
	}
	q, err := s.store.GetQuoteByToken(ctx, token)
	if err != nil {
		return model.Quote{}, lookupErr(op, "quote", err)
	}
	if !quoteViewable(DeriveEffectiveStatus(q, s.now())) {
		return model.Quote{}, apperr.NotFound(op, "quote")
	}
	return q, nil
}

func (s *Service) installmentByToken(ctx context.Context, op, token string) (model.Quote, model.QuotePayment, error) {
	if !validID(token) {
		return model.Quote{}, model.QuotePayment{}, apperr.NotFound(op, "payment")
	}
	p, err := s.store.GetQuotePaymentByToken(ctx, token)
	if err != nil {
		return model.Quote{}, model.QuotePayment{}, lookupErr(op, "payment", err)
	}
	if p.Status == model.PaymentPending {
		return model.Quote{}, model.QuotePayment{}, apperr.NotFound(op, "payment")
	}
	q, err := s.store.GetQuote(ctx, p.QuoteID)
	if err != nil {
		return model.Quote{}, model.QuotePayment{}, lookupErr(op, "quote", err)
	}
	if !quoteViewable(DeriveEffectiveStatus(q, s.now())) {
		return model.Quote{}, model.QuotePayment{}, apperr.NotFound(op, "payment")
	}
	return q, p, nil
}

func (s *Service) publicQuote(q model.Quote, schedule []model.QuotePayment) PublicQuote {
	out := PublicQuote{
		QuoteNumber:   q.QuoteNumber,
		ClientName:    q.ClientName,
		Status:        DeriveEffectiveStatus(q, s.now()),
		AmountTotal:   q.AmountTotal,
		DepositAmount: q.DepositAmount,
		Currency:      q.Currency,
		ExpiresAt:     q.ExpiresAt,
		Payments:      make([]PublicPayment, 0, len(schedule)),
		Summary:       Summarize(q, schedule),
	}
	for _, p := range schedule {
		out.Payments = append(out.Payments, PublicPayment{Label: p.Label, Amount: p.Amount, Status: p.Status, PaidAt: p.PaidAt})
	}
	return out
}
