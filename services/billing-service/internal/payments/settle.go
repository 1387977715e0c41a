package payments

import (
	"context"

	"github.com/decorstudio/platform/libs/apperr"
	"github.com/decorstudio/platform/libs/db"
	"github.com/decorstudio/platform/libs/notify"
	"github.com/decorstudio/platform/services/billing-service/internal/invoices"
	"github.com/decorstudio/platform/services/billing-service/internal/model"
)

const providerName = "stripe"

type settlement struct {
	outcome Outcome
	quote   model.Quote
	payment model.QuotePayment
	invoice model.Invoice
	summary model.QuotePaymentSummary
}

// HandleEvent applies a verified provider event. Settlement is idempotent:
// a replayed event id reports OutcomeDuplicate, and a second event for an
// installment that is already paid reports OutcomeAlreadyPaid. Neither
// issues another invoice.
func (s *Service) HandleEvent(ctx context.Context, evt Event) (Outcome, error) {
	ctx, span := tracer.Start(ctx, "payments.HandleEvent")
	defer span.End()

	switch e := evt.(type) {
	case CheckoutCompleted:
		return s.settle(ctx, e)
	case PaymentFailed:
		return s.recordFailure(ctx, e)
	case Unhandled:
		s.logger.DebugContext(ctx, "ignoring provider event", "event_id", e.ID, "type", e.Type)
		return OutcomeIgnored, nil
	default:
		return "", apperr.MalformedEvent("payments.handle_event", "unsupported event %T", evt)
	}
}

func (s *Service) settle(ctx context.Context, e CheckoutCompleted) (Outcome, error) {
	const op = "payments.settle"
	if e.ID == "" {
		return "", apperr.MalformedEvent(op, "event without id")
	}
	if !e.Paid {
		s.logger.InfoContext(ctx, "checkout completed but not paid yet", "event_id", e.ID, "session_id", e.SessionID)
		return OutcomeIgnored, nil
	}

	var (
		res settlement
		err error
	)
	switch {
	case e.QuotePaymentID != "":
		if !validID(e.QuotePaymentID) {
			return "", apperr.MalformedEvent(op, "event %s: bad quote_payment_id %q", e.ID, e.QuotePaymentID)
		}
		res, err = s.settleInstallment(ctx, e)
	case e.QuoteID != "":
		if !validID(e.QuoteID) {
			return "", apperr.MalformedEvent(op, "event %s: bad quote_id %q", e.ID, e.QuoteID)
		}
		res, err = s.settleQuote(ctx, e)
	default:
		s.logger.ErrorContext(ctx, "paid checkout without quote metadata", "event_id", e.ID, "session_id", e.SessionID)
		return "", apperr.MalformedEvent(op, "event %s carries neither quote_payment_id nor quote_id", e.ID)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "settlement failed for a paid checkout", "event_id", e.ID, "session_id", e.SessionID,
			"quote_id", e.QuoteID, "quote_payment_id", e.QuotePaymentID, "err", err)
		return "", err
	}

	switch res.outcome {
	case OutcomeSettled:
		s.metrics.InvoiceIssued()
		s.logger.InfoContext(ctx, "payment settled", "event_id", e.ID, "quote_id", res.quote.ID,
			"quote_payment_id", res.payment.ID, "invoice_number", res.invoice.InvoiceNumber, "summary", res.summary.PaymentStatus)
		s.sendReceipts(ctx, res)
	case OutcomeDuplicate:
		s.logger.InfoContext(ctx, "duplicate provider event", "event_id", e.ID)
	case OutcomeAlreadyPaid:
		s.logger.InfoContext(ctx, "payment already settled", "event_id", e.ID, "quote_id", res.quote.ID, "quote_payment_id", e.QuotePaymentID)
	}
	return res.outcome, nil
}

func (s *Service) settleInstallment(ctx context.Context, e CheckoutCompleted) (settlement, error) {
	const op = "payments.settle"
	p, err := s.store.GetQuotePayment(ctx, e.QuotePaymentID)
	if db.IsNotFound(err) {
		return settlement{}, apperr.MalformedEvent(op, "event %s references unknown quote payment %s", e.ID, e.QuotePaymentID)
	}
	if err != nil {
		return settlement{}, apperr.Storage(op, err)
	}

	var res settlement
	err = s.store.Tx(ctx, func(q Queries) error {
		quote, err := q.GetQuoteForUpdate(ctx, p.QuoteID)
		if err != nil {
			return err
		}
		res.quote = quote
		fresh, err := q.InsertProviderEvent(ctx, providerEvent(e))
		if err != nil {
			return err
		}
		if !fresh {
			res.outcome = OutcomeDuplicate
			return nil
		}
		current, err := q.GetQuotePaymentForUpdate(ctx, p.ID)
		if err != nil {
			return err
		}
		if current.Status == model.PaymentPaid {
			res.outcome = OutcomeAlreadyPaid
			return nil
		}
		if e.AmountTotal > 0 && e.AmountTotal != current.Amount {
			s.logger.ErrorContext(ctx, "paid amount differs from installment", "event_id", e.ID,
				"quote_payment_id", current.ID, "paid", e.AmountTotal, "expected", current.Amount)
		}

		now := s.now()
		if res.payment, err = q.MarkQuotePaymentPaid(ctx, current.ID, e.PaymentIntentID, now); err != nil {
			return err
		}
		schedule, err := q.ListQuotePayments(ctx, quote.ID)
		if err != nil {
			return err
		}
		res.summary = Summarize(quote, schedule)
		if res.summary.PaymentStatus == model.SummaryPaid && quote.Status != model.QuotePaid {
			if res.quote, err = q.MarkQuotePaid(ctx, quote.ID, res.summary.TotalPaid, e.PaymentIntentID, now); err != nil {
				return err
			}
		}
		res.invoice, err = s.issuer.Issue(ctx, q, invoices.Request{
			QuoteID:         quote.ID,
			QuotePaymentID:  res.payment.ID,
			Gross:           res.payment.Amount,
			Currency:        quote.Currency,
			PaymentIntentID: e.PaymentIntentID,
			IssuedAt:        now,
		})
		if err != nil {
			return err
		}
		res.outcome = OutcomeSettled
		return nil
	})
	if err != nil {
		return settlement{}, apperr.Storage(op, err)
	}
	return res, nil
}

// settleQuote is the single-payment path: the quote is paid in one go and
// invoiced for the amount the provider collected. A schedule created while
// the checkout was open is closed so its installments cannot be charged or
// invoiced again.
func (s *Service) settleQuote(ctx context.Context, e CheckoutCompleted) (settlement, error) {
	const op = "payments.settle_quote"
	var res settlement
	err := s.store.Tx(ctx, func(q Queries) error {
		quote, err := q.GetQuoteForUpdate(ctx, e.QuoteID)
		if db.IsNotFound(err) {
			return apperr.MalformedEvent(op, "event %s references unknown quote %s", e.ID, e.QuoteID)
		}
		if err != nil {
			return err
		}
		res.quote = quote
		fresh, err := q.InsertProviderEvent(ctx, providerEvent(e))
		if err != nil {
			return err
		}
		if !fresh {
			res.outcome = OutcomeDuplicate
			return nil
		}
		if quote.Status == model.QuotePaid {
			res.outcome = OutcomeAlreadyPaid
			return nil
		}
		amount := quote.AmountTotal
		if e.AmountTotal > 0 && e.AmountTotal != amount {
			s.logger.ErrorContext(ctx, "paid amount differs from quote total", "event_id", e.ID,
				"quote_id", quote.ID, "paid", e.AmountTotal, "expected", amount)
			amount = e.AmountTotal
		}

		now := s.now()
		schedule, err := q.ListQuotePaymentsForUpdate(ctx, quote.ID)
		if err != nil {
			return err
		}
		var closed int
		for i, p := range schedule {
			if p.Status == model.PaymentPaid {
				continue
			}
			if schedule[i], err = q.MarkQuotePaymentPaid(ctx, p.ID, e.PaymentIntentID, now); err != nil {
				return err
			}
			closed++
		}
		if len(schedule) > 0 {
			s.logger.ErrorContext(ctx, "quote checkout settled over a payment schedule", "event_id", e.ID,
				"quote_id", quote.ID, "installments", len(schedule), "closed", closed)
		}
		if res.quote, err = q.MarkQuotePaid(ctx, quote.ID, amount, e.PaymentIntentID, now); err != nil {
			return err
		}
		res.summary = Summarize(res.quote, schedule)
		res.invoice, err = s.issuer.Issue(ctx, q, invoices.Request{
			QuoteID:         quote.ID,
			Gross:           amount,
			Currency:        quote.Currency,
			PaymentIntentID: e.PaymentIntentID,
			IssuedAt:        now,
		})
		if err != nil {
			return err
		}
		res.outcome = OutcomeSettled
		return nil
	})
	if err != nil {
		return settlement{}, apperr.Storage(op, err)
	}
	return res, nil
}

// recordFailure keeps a trace of failed payments. Nothing else changes;
// the client can retry with the same link.
func (s *Service) recordFailure(ctx context.Context, e PaymentFailed) (Outcome, error) {
	const op = "payments.record_failure"
	if e.ID == "" {
		return "", apperr.MalformedEvent(op, "event without id")
	}
	fresh, err := s.store.InsertProviderEvent(ctx, model.ProviderEvent{
		Provider:        providerName,
		ProviderEventID: e.ID,
		EventType:       e.Type,
		Payload:         e.Raw,
	})
	if err != nil {
		return "", apperr.Storage(op, err)
	}
	if !fresh {
		return OutcomeDuplicate, nil
	}
	s.logger.WarnContext(ctx, "payment failed", "event_id", e.ID, "quote_id", e.QuoteID,
		"quote_payment_id", e.QuotePaymentID, "reason", e.Reason)
	return OutcomeLogged, nil
}

// sendReceipts mails the confirmation and the invoice. The invoice is only
// stamped as sent once its e-mail was handed off.
func (s *Service) sendReceipts(ctx context.Context, res settlement) {
	to := recipient(res.quote)
	label := res.payment.Label
	if label == "" {
		label = res.quote.QuoteNumber
	}
	s.notifyFailure(ctx, "payment_confirmation", res.invoice.ID, s.notifierCall(func(n Notifier) error {
		return n.SendPaymentConfirmationEmail(ctx, to, notify.PaymentConfirmation{
			QuoteNumber:   res.quote.QuoteNumber,
			Label:         label,
			Amount:        res.invoice.TotalAmount,
			Currency:      res.invoice.Currency,
			InvoiceNumber: res.invoice.InvoiceNumber,
			TotalPaid:     res.summary.TotalPaid,
			Remaining:     res.summary.RemainingAmount,
		})
	}))

	err := s.notifierCall(func(n Notifier) error {
		return n.SendInvoiceEmail(ctx, to, notify.InvoiceNotice{
			QuoteNumber:   res.quote.QuoteNumber,
			InvoiceNumber: res.invoice.InvoiceNumber,
			Amount:        res.invoice.Amount,
			VATAmount:     res.invoice.VATAmount,
			TotalAmount:   res.invoice.TotalAmount,
			Currency:      res.invoice.Currency,
		})
	})
	if err != nil || s.notifier == nil {
		s.notifyFailure(ctx, "invoice", res.invoice.ID, err)
		return
	}
	if err := s.store.MarkInvoiceSent(ctx, res.invoice.ID, s.now()); err != nil {
		s.logger.WarnContext(ctx, "mark invoice sent", "invoice_id", res.invoice.ID, "err", err)
	}
}

func providerEvent(e CheckoutCompleted) model.ProviderEvent {
	return model.ProviderEvent{
		Provider:        providerName,
		ProviderEventID: e.ID,
		EventType:       e.Type,
		Payload:         e.Raw,
	}
}
