package payments

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/decorstudio/platform/libs/notify"
	"github.com/decorstudio/platform/services/billing-service/internal/model"
)

// memStore mimics the Postgres store: Tx runs one transaction at a time and
// rolls every change back when fn fails.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	quotes   map[string]model.Quote
	payments map[string]model.QuotePayment
	invoices []model.Invoice
	events   map[string]bool
	quoteSeq int
	invSeq   int64

	failInvoice bool
}

func newMemStore() *memStore {
	return &memStore{
		quotes:   map[string]model.Quote{},
		payments: map[string]model.QuotePayment{},
		events:   map[string]bool{},
	}
}

type memSnapshot struct {
	quotes   map[string]model.Quote
	payments map[string]model.QuotePayment
	invoices []model.Invoice
	events   map[string]bool
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := memSnapshot{
		quotes:   make(map[string]model.Quote, len(s.quotes)),
		payments: make(map[string]model.QuotePayment, len(s.payments)),
		invoices: append([]model.Invoice(nil), s.invoices...),
		events:   make(map[string]bool, len(s.events)),
	}
	for k, v := range s.quotes {
		snap.quotes[k] = v
	}
	for k, v := range s.payments {
		snap.payments[k] = v
	}
	for k, v := range s.events {
		snap.events[k] = v
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes, s.payments, s.invoices, s.events = snap.quotes, snap.payments, snap.invoices, snap.events
}

func (s *memStore) Tx(ctx context.Context, fn func(Queries) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	snap := s.snapshot()
	if err := fn(s); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *memStore) InsertQuote(_ context.Context, q model.Quote, year int) (model.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quoteSeq++
	q.ID = uuid.NewString()
	q.QuoteNumber = fmt.Sprintf("Q-%d-%04d", year, s.quoteSeq)
	q.Status = model.QuoteDraft
	q.ValidationToken = uuid.NewString()
	q.CreatedAt = time.Now()
	s.quotes[q.ID] = q
	return q, nil
}

func (s *memStore) quote(id string) (model.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quotes[id]
	if !ok {
		return model.Quote{}, pgx.ErrNoRows
	}
	return q, nil
}

func (s *memStore) GetQuote(_ context.Context, id string) (model.Quote, error) { return s.quote(id) }

func (s *memStore) GetQuoteForUpdate(_ context.Context, id string) (model.Quote, error) {
	return s.quote(id)
}

func (s *memStore) GetQuoteByToken(_ context.Context, token string) (model.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range s.quotes {
		if q.ValidationToken == token {
			return q, nil
		}
	}
	return model.Quote{}, pgx.ErrNoRows
}

func (s *memStore) ListQuotes(_ context.Context, status string, _ int) ([]model.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Quote
	for _, q := range s.quotes {
		if status == "" || q.Status == status {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuoteNumber < out[j].QuoteNumber })
	return out, nil
}

func (s *memStore) updateQuote(id string, fn func(*model.Quote)) (model.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quotes[id]
	if !ok {
		return model.Quote{}, pgx.ErrNoRows
	}
	fn(&q)
	s.quotes[id] = q
	return q, nil
}

func (s *memStore) UpdateQuoteAmounts(_ context.Context, id string, total, deposit int64) (model.Quote, error) {
	return s.updateQuote(id, func(q *model.Quote) { q.AmountTotal, q.DepositAmount = total, deposit })
}

func (s *memStore) MarkQuoteSent(_ context.Context, id, token string, expiresAt time.Time) (model.Quote, error) {
	return s.updateQuote(id, func(q *model.Quote) {
		q.Status, q.ValidationToken, q.ExpiresAt = model.QuoteSent, token, &expiresAt
	})
}

func (s *memStore) SetQuoteStatus(_ context.Context, id, status string) (model.Quote, error) {
	return s.updateQuote(id, func(q *model.Quote) { q.Status = status })
}

func (s *memStore) MarkQuotePaid(_ context.Context, id string, amount int64, intent string, paidAt time.Time) (model.Quote, error) {
	return s.updateQuote(id, func(q *model.Quote) {
		q.Status, q.PaidAmount, q.PaymentIntentID, q.PaidAt = model.QuotePaid, &amount, intent, &paidAt
	})
}

func (s *memStore) InsertQuotePayment(_ context.Context, p model.QuotePayment) (model.QuotePayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = uuid.NewString()
	p.Status = model.PaymentPending
	p.ValidationToken = uuid.NewString()
	s.payments[p.ID] = p
	return p, nil
}

func (s *memStore) ListQuotePayments(_ context.Context, quoteID string) ([]model.QuotePayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.QuotePayment
	for _, p := range s.payments {
		if p.QuoteID == quoteID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (s *memStore) ListQuotePaymentsForUpdate(ctx context.Context, quoteID string) ([]model.QuotePayment, error) {
	return s.ListQuotePayments(ctx, quoteID)
}

func (s *memStore) payment(id string) (model.QuotePayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return model.QuotePayment{}, pgx.ErrNoRows
	}
	return p, nil
}

func (s *memStore) GetQuotePayment(_ context.Context, id string) (model.QuotePayment, error) {
	return s.payment(id)
}

func (s *memStore) GetQuotePaymentForUpdate(_ context.Context, id string) (model.QuotePayment, error) {
	return s.payment(id)
}

func (s *memStore) GetQuotePaymentByToken(_ context.Context, token string) (model.QuotePayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.payments {
		if p.ValidationToken == token {
			return p, nil
		}
	}
	return model.QuotePayment{}, pgx.ErrNoRows
}

func (s *memStore) updatePayment(id string, fn func(*model.QuotePayment)) (model.QuotePayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return model.QuotePayment{}, pgx.ErrNoRows
	}
	fn(&p)
	s.payments[id] = p
	return p, nil
}

func (s *memStore) UpdateQuotePaymentAmount(_ context.Context, id string, amount int64) error {
	_, err := s.updatePayment(id, func(p *model.QuotePayment) {
		if p.Status != model.PaymentPaid {
			p.Amount = amount
		}
	})
	return err
}

func (s *memStore) MarkQuotePaymentSent(_ context.Context, id, token string, sentAt time.Time) (model.QuotePayment, error) {
	return s.updatePayment(id, func(p *model.QuotePayment) {
		p.Status, p.ValidationToken, p.SentAt = model.PaymentSent, token, &sentAt
	})
}

func (s *memStore) MarkQuotePaymentPaid(_ context.Context, id, intent string, paidAt time.Time) (model.QuotePayment, error) {
	return s.updatePayment(id, func(p *model.QuotePayment) {
		p.Status, p.PaymentIntentID, p.PaidAt = model.PaymentPaid, intent, &paidAt
	})
}

func (s *memStore) InsertProviderEvent(_ context.Context, evt model.ProviderEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := evt.Provider + "/" + evt.ProviderEventID
	if s.events[key] {
		return false, nil
	}
	s.events[key] = true
	return true, nil
}

func (s *memStore) NextInvoiceSeq(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invSeq++
	return s.invSeq, nil
}

var errInvoiceInsert = errors.New("insert invoice: connection reset")

func (s *memStore) InsertInvoice(_ context.Context, inv model.Invoice) (model.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failInvoice {
		return model.Invoice{}, errInvoiceInsert
	}
	inv.ID = uuid.NewString()
	s.invoices = append(s.invoices, inv)
	return inv, nil
}

func (s *memStore) ListInvoices(_ context.Context, quoteID string) ([]model.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Invoice
	for _, inv := range s.invoices {
		if inv.QuoteID == quoteID {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (s *memStore) MarkInvoiceSent(_ context.Context, id string, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.invoices {
		if s.invoices[i].ID == id && s.invoices[i].SentAt == nil {
			s.invoices[i].SentAt = &sentAt
		}
	}
	return nil
}

func (s *memStore) invoiceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.invoices)
}

type fakeProvider struct {
	mu   sync.Mutex
	reqs []CheckoutRequest
	err  error
}

func (p *fakeProvider) CreateCheckoutSession(_ context.Context, req CheckoutRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.reqs = append(p.reqs, req)
	return "https://checkout.example.test/" + req.IdempotencyKey, nil
}

type sentMail struct {
	kind notify.Kind
	to   string
	link string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (n *recordingNotifier) record(kind notify.Kind, to notify.Recipient, link string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentMail{kind: kind, to: to.Email, link: link})
	return nil
}

func (n *recordingNotifier) SendQuoteLink(_ context.Context, to notify.Recipient, q notify.QuoteLink) error {
	return n.record(notify.KindQuoteLink, to, q.Link)
}

func (n *recordingNotifier) SendPaymentRequest(_ context.Context, to notify.Recipient, p notify.PaymentRequest) error {
	return n.record(notify.KindPaymentRequest, to, p.Link)
}

func (n *recordingNotifier) SendPaymentConfirmationEmail(_ context.Context, to notify.Recipient, _ notify.PaymentConfirmation) error {
	return n.record(notify.KindPaymentConfirmation, to, "")
}

func (n *recordingNotifier) SendInvoiceEmail(_ context.Context, to notify.Recipient, _ notify.InvoiceNotice) error {
	return n.record(notify.KindInvoice, to, "")
}

func (n *recordingNotifier) kinds() []notify.Kind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notify.Kind, 0, len(n.sent))
	for _, m := range n.sent {
		out = append(out, m.kind)
	}
	return out
}

func (n *recordingNotifier) last() sentMail {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sent[len(n.sent)-1]
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
