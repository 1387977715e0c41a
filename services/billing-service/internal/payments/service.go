// Package payments drives quotes and their payment schedules: sending,
// client acceptance, checkout sessions and settlement of provider events.
package payments

import (
	"context"
	"log/slog"
	"net/mail"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/decorstudio/platform/libs/apperr"
	"github.com/decorstudio/platform/libs/db"
	"github.com/decorstudio/platform/libs/metrics"
	"github.com/decorstudio/platform/libs/money"
	"github.com/decorstudio/platform/libs/notify"
	"github.com/decorstudio/platform/services/billing-service/internal/invoices"
	"github.com/decorstudio/platform/services/billing-service/internal/model"
)

var tracer = otel.Tracer("billing-service/payments")

type Queries interface {
	invoices.Store

	InsertQuote(ctx context.Context, q model.Quote, year int) (model.Quote, error)
	GetQuote(ctx context.Context, id string) (model.Quote, error)
	GetQuoteForUpdate(ctx context.Context, id string) (model.Quote, error)
	GetQuoteByToken(ctx context.Context, token string) (model.Quote, error)
	ListQuotes(ctx context.Context, status string, limit int) ([]model.Quote, error)
	UpdateQuoteAmounts(ctx context.Context, id string, total, deposit int64) (model.Quote, error)
	MarkQuoteSent(ctx context.Context, id, token string, expiresAt time.Time) (model.Quote, error)
	SetQuoteStatus(ctx context.Context, id, status string) (model.Quote, error)
	MarkQuotePaid(ctx context.Context, id string, amount int64, paymentIntentID string, paidAt time.Time) (model.Quote, error)

	InsertQuotePayment(ctx context.Context, p model.QuotePayment) (model.QuotePayment, error)
	ListQuotePayments(ctx context.Context, quoteID string) ([]model.QuotePayment, error)
	ListQuotePaymentsForUpdate(ctx context.Context, quoteID string) ([]model.QuotePayment, error)
	GetQuotePayment(ctx context.Context, id string) (model.QuotePayment, error)
	GetQuotePaymentForUpdate(ctx context.Context, id string) (model.QuotePayment, error)
	GetQuotePaymentByToken(ctx context.Context, token string) (model.QuotePayment, error)
	UpdateQuotePaymentAmount(ctx context.Context, id string, amount int64) error
	MarkQuotePaymentSent(ctx context.Context, id, token string, sentAt time.Time) (model.QuotePayment, error)
	MarkQuotePaymentPaid(ctx context.Context, id, paymentIntentID string, paidAt time.Time) (model.QuotePayment, error)

	InsertProviderEvent(ctx context.Context, evt model.ProviderEvent) (bool, error)
	ListInvoices(ctx context.Context, quoteID string) ([]model.Invoice, error)
	MarkInvoiceSent(ctx context.Context, id string, sentAt time.Time) error
}

type Store interface {
	Queries
	Tx(ctx context.Context, fn func(Queries) error) error
}

type CheckoutRequest struct {
	IdempotencyKey string
	QuoteID        string
	QuotePaymentID string
	Description    string
	CustomerEmail  string
	Amount         int64
	Currency       string
	SuccessURL     string
	CancelURL      string
}

// CheckoutProvider opens a hosted checkout page and returns its URL.
type CheckoutProvider interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (string, error)
}

type Notifier interface {
	SendQuoteLink(ctx context.Context, to notify.Recipient, q notify.QuoteLink) error
	SendPaymentRequest(ctx context.Context, to notify.Recipient, p notify.PaymentRequest) error
	SendPaymentConfirmationEmail(ctx context.Context, to notify.Recipient, p notify.PaymentConfirmation) error
	SendInvoiceEmail(ctx context.Context, to notify.Recipient, inv notify.InvoiceNotice) error
}

type Config struct {
	Schedule      SchedulePolicy
	ValidityDays  int
	Currency      string
	PublicBaseURL string
}

type Service struct {
	store    Store
	provider CheckoutProvider
	issuer   *invoices.Issuer
	notifier Notifier
	cfg      Config
	logger   *slog.Logger
	metrics  *metrics.BillingMetrics
	now      func() time.Time
	newToken func() string
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithMetrics(m *metrics.BillingMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(store Store, provider CheckoutProvider, issuer *invoices.Issuer, notifier Notifier, cfg Config, opts ...Option) (*Service, error) {
	if err := cfg.Schedule.Validate(); err != nil {
		return nil, err
	}
	if cfg.ValidityDays <= 0 {
		cfg.ValidityDays = 30
	}
	if cfg.Currency == "" {
		cfg.Currency = "eur"
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	s := &Service{
		store:    store,
		provider: provider,
		issuer:   issuer,
		notifier: notifier,
		cfg:      cfg,
		logger:   slog.Default(),
		now:      time.Now,
		newToken: uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

type QuoteInput struct {
	ClientName   string `json:"client_name"`
	ClientEmail  string `json:"client_email"`
	AmountTotal  int64  `json:"amount_total"`
	ValidityDays int    `json:"validity_days"`
	Currency     string `json:"currency"`
}

// QuoteDetails is the back-office view of a quote.
type QuoteDetails struct {
	model.Quote
	EffectiveStatus string                    `json:"effective_status"`
	Payments        []model.QuotePayment      `json:"payments"`
	Summary         model.QuotePaymentSummary `json:"summary"`
	Invoices        []model.Invoice           `json:"invoices"`
}

func (s *Service) CreateQuote(ctx context.Context, in QuoteInput) (model.Quote, error) {
	const op = "quotes.create"
	in.ClientName = strings.TrimSpace(in.ClientName)
	in.ClientEmail = strings.TrimSpace(in.ClientEmail)
	in.Currency = strings.ToLower(strings.TrimSpace(in.Currency))
	if in.ClientName == "" {
		return model.Quote{}, apperr.Validation(op, "client_name is required")
	}
	if addr, err := mail.ParseAddress(in.ClientEmail); err != nil || addr.Address != in.ClientEmail {
		return model.Quote{}, apperr.Validation(op, "client_email is not a valid address")
	}
	if in.AmountTotal <= 0 {
		return model.Quote{}, apperr.Validation(op, "amount_total must be a positive number of cents")
	}
	if in.ValidityDays == 0 {
		in.ValidityDays = s.cfg.ValidityDays
	}
	if in.ValidityDays < 1 || in.ValidityDays > 365 {
		return model.Quote{}, apperr.Validation(op, "validity_days must be between 1 and 365")
	}
	if in.Currency == "" {
		in.Currency = s.cfg.Currency
	}

	q, err := s.store.InsertQuote(ctx, model.Quote{
		ClientName:    in.ClientName,
		ClientEmail:   in.ClientEmail,
		AmountTotal:   in.AmountTotal,
		DepositAmount: money.PercentOf(in.AmountTotal, s.cfg.Schedule.DepositPercent),
		Currency:      in.Currency,
		ValidityDays:  in.ValidityDays,
	}, s.now().Year())
	if err != nil {
		return model.Quote{}, apperr.Storage(op, err)
	}
	s.logger.InfoContext(ctx, "quote created", "quote_id", q.ID, "quote_number", q.QuoteNumber, "amount_total", q.AmountTotal)
	return q, nil
}

func (s *Service) GetQuote(ctx context.Context, id string) (QuoteDetails, error) {
	const op = "quotes.get"
	if !validID(id) {
		return QuoteDetails{}, apperr.NotFound(op, "quote")
	}
	q, err := s.store.GetQuote(ctx, id)
	if err != nil {
		return QuoteDetails{}, lookupErr(op, "quote", err)
	}
	schedule, err := s.store.ListQuotePayments(ctx, id)
	if err != nil {
		return QuoteDetails{}, apperr.Storage(op, err)
	}
	invs, err := s.store.ListInvoices(ctx, id)
	if err != nil {
		return QuoteDetails{}, apperr.Storage(op, err)
	}
	return QuoteDetails{
		Quote:           q,
		EffectiveStatus: DeriveEffectiveStatus(q, s.now()),
		Payments:        nonNil(schedule),
		Summary:         Summarize(q, schedule),
		Invoices:        nonNil(invs),
	}, nil
}

type QuoteListItem struct {
	model.Quote
	EffectiveStatus string `json:"effective_status"`
}

// ListQuotes filters on the effective status, so "expired" finds sent
// quotes past their expiry and "sent" leaves them out.
func (s *Service) ListQuotes(ctx context.Context, status string, limit int) ([]QuoteListItem, error) {
	const op = "quotes.list"
	stored := status
	switch status {
	case "", model.QuoteDraft, model.QuoteSent, model.QuoteAccepted, model.QuoteRejected, model.QuotePaid:
	case model.QuoteExpired:
		stored = model.QuoteSent
	default:
		return nil, apperr.Validation(op, "unknown status %q", status)
	}
	quotes, err := s.store.ListQuotes(ctx, stored, limit)
	if err != nil {
		return nil, apperr.Storage(op, err)
	}
	now := s.now()
	out := []QuoteListItem{}
	for _, q := range quotes {
		eff := DeriveEffectiveStatus(q, now)
		if status != "" && eff != status {
			continue
		}
		out = append(out, QuoteListItem{Quote: q, EffectiveStatus: eff})
	}
	return out, nil
}

// UpdateTotal changes the quote total and, when a schedule exists,
// redistributes the unpaid installments in the same transaction.
func (s *Service) UpdateTotal(ctx context.Context, id string, total int64) (QuoteDetails, error) {
	const op = "quotes.update_total"
	if !validID(id) {
		return QuoteDetails{}, apperr.NotFound(op, "quote")
	}
	if total <= 0 {
		return QuoteDetails{}, apperr.Validation(op, "amount_total must be a positive number of cents")
	}
	err := s.store.Tx(ctx, func(q Queries) error {
		quote, err := q.GetQuoteForUpdate(ctx, id)
		if err != nil {
			return lookupErr(op, "quote", err)
		}
		if quote.Status == model.QuotePaid {
			return apperr.Conflict(op, "quote %s is already paid", quote.QuoteNumber)
		}
		quote, err = q.UpdateQuoteAmounts(ctx, id, total, money.PercentOf(total, s.cfg.Schedule.DepositPercent))
		if err != nil {
			return err
		}
		_, err = s.recalculate(ctx, q, quote)
		return err
	})
	if err != nil {
		return QuoteDetails{}, apperr.Storage(op, err)
	}
	s.logger.InfoContext(ctx, "quote total updated", "quote_id", id, "amount_total", total)
	return s.GetQuote(ctx, id)
}

// SendQuote issues a fresh validation link and (re)starts the validity
// window. Only drafts and sent quotes can be sent; rejected and accepted
// quotes are never revived.
func (s *Service) SendQuote(ctx context.Context, id string) (model.Quote, error) {
	const op = "quotes.send"
	ctx, span := tracer.Start(ctx, "payments.SendQuote")
	defer span.End()

	if !validID(id) {
		return model.Quote{}, apperr.NotFound(op, "quote")
	}
	var sent model.Quote
	err := s.store.Tx(ctx, func(q Queries) error {
		quote, err := q.GetQuoteForUpdate(ctx, id)
		if err != nil {
			return lookupErr(op, "quote", err)
		}
		if quote.Status != model.QuoteDraft && quote.Status != model.QuoteSent {
			return apperr.Conflict(op, "quote %s is %s and cannot be sent", quote.QuoteNumber, DeriveEffectiveStatus(quote, s.now()))
		}
		now := s.now()
		sent, err = q.MarkQuoteSent(ctx, id, s.newToken(), now.AddDate(0, 0, quote.ValidityDays))
		return err
	})
	if err != nil {
		return model.Quote{}, apperr.Storage(op, err)
	}

	s.notifyFailure(ctx, "quote_link", sent.ID, s.notifierCall(func(n Notifier) error {
		return n.SendQuoteLink(ctx, recipient(sent), notify.QuoteLink{
			QuoteNumber: sent.QuoteNumber,
			Total:       sent.AmountTotal,
			Currency:    sent.Currency,
			Link:        s.link("quotes", sent.ValidationToken),
			ExpiresAt:   derefTime(sent.ExpiresAt),
		})
	}))
	s.logger.InfoContext(ctx, "quote sent", "quote_id", sent.ID, "quote_number", sent.QuoteNumber)
	return sent, nil
}

// CreateDefaultSchedule stores the deposit and balance installments for a
// quote that has no schedule yet.
func (s *Service) CreateDefaultSchedule(ctx context.Context, quoteID string) ([]model.QuotePayment, error) {
	const op = "payments.create_schedule"
	if !validID(quoteID) {
		return nil, apperr.NotFound(op, "quote")
	}
	var created []model.QuotePayment
	err := s.store.Tx(ctx, func(q Queries) error {
		quote, err := q.GetQuoteForUpdate(ctx, quoteID)
		if err != nil {
			return lookupErr(op, "quote", err)
		}
		if quote.Status == model.QuotePaid {
			return apperr.Conflict(op, "quote %s is already paid", quote.QuoteNumber)
		}
		existing, err := q.ListQuotePaymentsForUpdate(ctx, quoteID)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return apperr.Conflict(op, "quote %s already has a payment schedule", quote.QuoteNumber)
		}
		plan, err := SplitDefault(quote.AmountTotal, s.cfg.Schedule)
		if err != nil {
			return apperr.Validation(op, "%v", err)
		}
		for i, inst := range plan {
			p, err := q.InsertQuotePayment(ctx, model.QuotePayment{
				QuoteID:  quoteID,
				Position: i + 1,
				Label:    inst.Label,
				Amount:   inst.Amount,
			})
			if err != nil {
				return err
			}
			created = append(created, p)
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Storage(op, err)
	}
	s.logger.InfoContext(ctx, "payment schedule created", "quote_id", quoteID, "installments", len(created))
	return created, nil
}

// RecalculateAmounts re-spreads the quote total over the unpaid
// installments, keeping their count and labels.
func (s *Service) RecalculateAmounts(ctx context.Context, quoteID string) ([]model.QuotePayment, error) {
	const op = "payments.recalculate"
	if !validID(quoteID) {
		return nil, apperr.NotFound(op, "quote")
	}
	var schedule []model.QuotePayment
	err := s.store.Tx(ctx, func(q Queries) error {
		quote, err := q.GetQuoteForUpdate(ctx, quoteID)
		if err != nil {
			return lookupErr(op, "quote", err)
		}
		schedule, err = s.recalculate(ctx, q, quote)
		return err
	})
	if err != nil {
		return nil, apperr.Storage(op, err)
	}
	return schedule, nil
}

func (s *Service) recalculate(ctx context.Context, q Queries, quote model.Quote) ([]model.QuotePayment, error) {
	const op = "payments.recalculate"
	schedule, err := q.ListQuotePaymentsForUpdate(ctx, quote.ID)
	if err != nil {
		return nil, err
	}
	if len(schedule) == 0 {
		return []model.QuotePayment{}, nil
	}
	amounts, err := Redistribute(schedule, quote.AmountTotal)
	if err != nil {
		s.logger.ErrorContext(ctx, "payment schedule inconsistent", "quote_id", quote.ID, "amount_total", quote.AmountTotal, "err", err)
		return nil, &apperr.Error{Kind: apperr.ErrConflict, Op: op, Msg: err.Error(), Err: ErrScheduleInconsistent}
	}
	for i, p := range schedule {
		amount, ok := amounts[p.ID]
		if !ok || amount == p.Amount {
			continue
		}
		if err := q.UpdateQuotePaymentAmount(ctx, p.ID, amount); err != nil {
			return nil, err
		}
		schedule[i].Amount = amount
	}
	return schedule, nil
}

// MarkAsSent issues a new payment link for an installment. Every call
// rotates the token and sends another e-mail.
func (s *Service) MarkAsSent(ctx context.Context, paymentID string) (model.QuotePayment, error) {
	const op = "payments.mark_sent"
	ctx, span := tracer.Start(ctx, "payments.MarkAsSent")
	defer span.End()

	if !validID(paymentID) {
		return model.QuotePayment{}, apperr.NotFound(op, "quote payment")
	}
	p, err := s.store.GetQuotePayment(ctx, paymentID)
	if err != nil {
		return model.QuotePayment{}, lookupErr(op, "quote payment", err)
	}

	var (
		quote model.Quote
		sent  model.QuotePayment
	)
	err = s.store.Tx(ctx, func(q Queries) error {
		quote, err = q.GetQuoteForUpdate(ctx, p.QuoteID)
		if err != nil {
			return lookupErr(op, "quote", err)
		}
		current, err := q.GetQuotePaymentForUpdate(ctx, paymentID)
		if err != nil {
			return lookupErr(op, "quote payment", err)
		}
		if current.Status == model.PaymentPaid {
			return apperr.Conflict(op, "%s is already paid", current.Label)
		}
		if eff := DeriveEffectiveStatus(quote, s.now()); eff != model.QuoteSent && eff != model.QuoteAccepted {
			return apperr.Conflict(op, "quote %s is %s", quote.QuoteNumber, eff)
		}
		sent, err = q.MarkQuotePaymentSent(ctx, paymentID, s.newToken(), s.now())
		return err
	})
	if err != nil {
		return model.QuotePayment{}, apperr.Storage(op, err)
	}

	s.notifyFailure(ctx, "payment_request", sent.ID, s.notifierCall(func(n Notifier) error {
		return n.SendPaymentRequest(ctx, recipient(quote), notify.PaymentRequest{
			QuoteNumber: quote.QuoteNumber,
			Label:       sent.Label,
			Amount:      sent.Amount,
			Currency:    quote.Currency,
			Link:        s.link("payments", sent.ValidationToken),
		})
	}))
	s.logger.InfoContext(ctx, "payment link sent", "quote_id", quote.ID, "quote_payment_id", sent.ID)
	return sent, nil
}

// CreateCheckoutSession opens a provider checkout for one installment. No
// local state changes; settlement arrives through the webhook.
func (s *Service) CreateCheckoutSession(ctx context.Context, paymentID, successURL, cancelURL string) (string, error) {
	const op = "payments.checkout"
	if !validID(paymentID) {
		return "", apperr.NotFound(op, "quote payment")
	}
	if err := checkRedirect(op, successURL, cancelURL); err != nil {
		return "", err
	}
	p, err := s.store.GetQuotePayment(ctx, paymentID)
	if err != nil {
		return "", lookupErr(op, "quote payment", err)
	}
	quote, err := s.store.GetQuote(ctx, p.QuoteID)
	if err != nil {
		return "", lookupErr(op, "quote", err)
	}
	return s.installmentCheckout(ctx, quote, p, successURL, cancelURL)
}

func (s *Service) installmentCheckout(ctx context.Context, quote model.Quote, p model.QuotePayment, successURL, cancelURL string) (string, error) {
	const op = "payments.checkout"
	if p.Status == model.PaymentPaid {
		return "", apperr.Conflict(op, "%s is already paid", p.Label)
	}
	checkoutURL, err := s.provider.CreateCheckoutSession(ctx, CheckoutRequest{
		IdempotencyKey: "installment-" + p.ID + "-" + p.ValidationToken + "-" + strconv.FormatInt(p.Amount, 10),
		QuoteID:        quote.ID,
		QuotePaymentID: p.ID,
		Description:    quote.QuoteNumber + " - " + p.Label,
		CustomerEmail:  quote.ClientEmail,
		Amount:         p.Amount,
		Currency:       quote.Currency,
		SuccessURL:     successURL,
		CancelURL:      cancelURL,
	})
	s.metrics.ObserveCheckout("installment", outcome(err))
	if err != nil {
		return "", apperr.Provider(op, err)
	}
	return checkoutURL, nil
}

// CreateQuoteCheckoutSession is the single-payment path: one checkout for
// the whole quote, allowed only while the quote has no schedule.
func (s *Service) CreateQuoteCheckoutSession(ctx context.Context, quoteID, successURL, cancelURL string) (string, error) {
	const op = "payments.quote_checkout"
	if !validID(quoteID) {
		return "", apperr.NotFound(op, "quote")
	}
	if err := checkRedirect(op, successURL, cancelURL); err != nil {
		return "", err
	}
	quote, err := s.store.GetQuote(ctx, quoteID)
	if err != nil {
		return "", lookupErr(op, "quote", err)
	}
	return s.quoteCheckout(ctx, quote, successURL, cancelURL)
}

func (s *Service) quoteCheckout(ctx context.Context, quote model.Quote, successURL, cancelURL string) (string, error) {
	const op = "payments.quote_checkout"
	if eff := DeriveEffectiveStatus(quote, s.now()); eff != model.QuoteSent && eff != model.QuoteAccepted {
		return "", apperr.Conflict(op, "quote %s is %s", quote.QuoteNumber, eff)
	}
	schedule, err := s.store.ListQuotePayments(ctx, quote.ID)
	if err != nil {
		return "", apperr.Storage(op, err)
	}
	if len(schedule) > 0 {
		return "", apperr.Conflict(op, "quote %s is paid through its installments", quote.QuoteNumber)
	}
	checkoutURL, err := s.provider.CreateCheckoutSession(ctx, CheckoutRequest{
		IdempotencyKey: "quote-" + quote.ID + "-" + quote.ValidationToken + "-" + strconv.FormatInt(quote.AmountTotal, 10),
		QuoteID:        quote.ID,
		Description:    quote.QuoteNumber,
		CustomerEmail:  quote.ClientEmail,
		Amount:         quote.AmountTotal,
		Currency:       quote.Currency,
		SuccessURL:     successURL,
		CancelURL:      cancelURL,
	})
	s.metrics.ObserveCheckout("quote", outcome(err))
	if err != nil {
		return "", apperr.Provider(op, err)
	}
	return checkoutURL, nil
}

func (s *Service) Summary(ctx context.Context, quoteID string) (model.QuotePaymentSummary, error) {
	const op = "payments.summary"
	if !validID(quoteID) {
		return model.QuotePaymentSummary{}, apperr.NotFound(op, "quote")
	}
	quote, err := s.store.GetQuote(ctx, quoteID)
	if err != nil {
		return model.QuotePaymentSummary{}, lookupErr(op, "quote", err)
	}
	schedule, err := s.store.ListQuotePayments(ctx, quoteID)
	if err != nil {
		return model.QuotePaymentSummary{}, apperr.Storage(op, err)
	}
	return Summarize(quote, schedule), nil
}

func (s *Service) link(kind, token string) string {
	return s.cfg.PublicBaseURL + "/" + kind + "/" + token
}

func (s *Service) notifierCall(fn func(Notifier) error) error {
	if s.notifier == nil {
		return nil
	}
	return fn(s.notifier)
}

// notifyFailure logs a failed e-mail request. Notifications never undo the
// state change that triggered them.
func (s *Service) notifyFailure(ctx context.Context, kind, id string, err error) {
	if err == nil {
		return
	}
	s.metrics.NotificationFailed(kind)
	s.logger.WarnContext(ctx, "notification failed", "kind", kind, "id", id, "err", err)
}

func recipient(q model.Quote) notify.Recipient {
	return notify.Recipient{Email: q.ClientEmail, Name: q.ClientName}
}

func lookupErr(op, what string, err error) error {
	if db.IsNotFound(err) {
		return apperr.NotFound(op, what)
	}
	return apperr.Storage(op, err)
}

func checkRedirect(op string, urls ...string) error {
	for _, raw := range urls {
		u, err := url.Parse(raw)
		if err != nil || !u.IsAbs() || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
			return apperr.Validation(op, "redirect URL %q must be an absolute http(s) URL", raw)
		}
	}
	return nil
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
