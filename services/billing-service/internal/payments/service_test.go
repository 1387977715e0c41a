package payments

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/decorstudio/platform/libs/apperr"
	"github.com/decorstudio/platform/libs/notify"
	"github.com/decorstudio/platform/services/billing-service/internal/invoices"
	"github.com/decorstudio/platform/services/billing-service/internal/model"
)

const baseURL = "https://atelier.example.test"

type harness struct {
	svc      *Service
	store    *memStore
	provider *fakeProvider
	notifier *recordingNotifier
	clock    *testClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:    newMemStore(),
		provider: &fakeProvider{},
		notifier: &recordingNotifier{},
		clock:    &testClock{now: time.Date(2026, 3, 6, 10, 0, 0, 0, time.UTC)},
	}
	svc, err := NewService(h.store, h.provider, invoices.NewIssuer(2000), h.notifier, Config{
		Schedule:      defaultPolicy,
		PublicBaseURL: baseURL + "/",
	}, WithClock(h.clock.Now), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	h.svc = svc
	return h
}

func (h *harness) quote(t *testing.T, total int64) model.Quote {
	t.Helper()
	q, err := h.svc.CreateQuote(context.Background(), QuoteInput{
		ClientName:  "Camille Martin",
		ClientEmail: "camille@example.com",
		AmountTotal: total,
	})
	require.NoError(t, err)
	return q
}

// scheduled returns a sent quote with its default schedule.
func (h *harness) scheduled(t *testing.T, total int64) (model.Quote, []model.QuotePayment) {
	t.Helper()
	ctx := context.Background()
	q := h.quote(t, total)
	schedule, err := h.svc.CreateDefaultSchedule(ctx, q.ID)
	require.NoError(t, err)
	q, err = h.svc.SendQuote(ctx, q.ID)
	require.NoError(t, err)
	return q, schedule
}

func paidEvent(id string, p model.QuotePayment) CheckoutCompleted {
	return CheckoutCompleted{
		ID:              id,
		Type:            "checkout.session.completed",
		SessionID:       "cs_test_" + id,
		QuotePaymentID:  p.ID,
		QuoteID:         p.QuoteID,
		PaymentIntentID: "pi_" + id,
		AmountTotal:     p.Amount,
		Currency:        "eur",
		Paid:            true,
		Raw:             []byte(`{"id":"` + id + `"}`),
	}
}

func amounts(ps []model.QuotePayment) []int64 {
	out := make([]int64, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.Amount)
	}
	return out
}

func TestCreateQuote(t *testing.T) {
	h := newHarness(t)
	q := h.quote(t, 100000)
	require.Equal(t, "Q-2026-0001", q.QuoteNumber)
	require.Equal(t, model.QuoteDraft, q.Status)
	require.Equal(t, int64(30000), q.DepositAmount)
	require.Equal(t, 30, q.ValidityDays)
	require.Equal(t, "eur", q.Currency)

	cases := []QuoteInput{
		{ClientEmail: "a@example.com", AmountTotal: 100},
		{ClientName: "A", ClientEmail: "not-an-email", AmountTotal: 100},
		{ClientName: "A", ClientEmail: "a@example.com"},
		{ClientName: "A", ClientEmail: "a@example.com", AmountTotal: 100, ValidityDays: 400},
	}
	for _, in := range cases {
		_, err := h.svc.CreateQuote(context.Background(), in)
		require.ErrorIs(t, err, apperr.ErrValidation, "%+v", in)
	}
}

func TestCreateDefaultScheduleSumsToTotal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	q := h.quote(t, 100000)

	schedule, err := h.svc.CreateDefaultSchedule(ctx, q.ID)
	require.NoError(t, err)
	require.Equal(t, []int64{30000, 35000, 35000}, amounts(schedule))
	require.Equal(t, []string{"Deposit (30%)", "Balance 1/2", "Balance 2/2"},
		[]string{schedule[0].Label, schedule[1].Label, schedule[2].Label})

	sum, err := h.svc.Summary(ctx, q.ID)
	require.NoError(t, err)
	require.Equal(t, model.QuotePaymentSummary{
		TotalPayments: 3, Total: 100000, RemainingAmount: 100000, PaymentStatus: model.SummaryUnpaid,
	}, sum)

	_, err = h.svc.CreateDefaultSchedule(ctx, q.ID)
	require.ErrorIs(t, err, apperr.ErrConflict)

	_, err = h.svc.CreateDefaultSchedule(ctx, "not-a-uuid")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSendAndAcceptQuote(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	q := h.quote(t, 50000)

	sent, err := h.svc.SendQuote(ctx, q.ID)
	require.NoError(t, err)
	require.Equal(t, model.QuoteSent, sent.Status)
	require.NotEqual(t, q.ValidationToken, sent.ValidationToken)
	require.Equal(t, h.clock.Now().AddDate(0, 0, 30), *sent.ExpiresAt)
	mail := h.notifier.last()
	require.Equal(t, notify.KindQuoteLink, mail.kind)
	require.Equal(t, baseURL+"/quotes/"+sent.ValidationToken, mail.link)

	view, err := h.svc.QuoteByToken(ctx, sent.ValidationToken)
	require.NoError(t, err)
	require.Equal(t, model.QuoteSent, view.Status)
	require.Equal(t, model.SummaryNone, view.Summary.PaymentStatus)

	_, err = h.svc.QuoteByToken(ctx, q.ValidationToken)
	require.ErrorIs(t, err, apperr.ErrNotFound, "the old link stops working after a re-send")

	view, err = h.svc.AcceptByToken(ctx, sent.ValidationToken)
	require.NoError(t, err)
	require.Equal(t, model.QuoteAccepted, view.Status)

	_, err = h.svc.AcceptByToken(ctx, sent.ValidationToken)
	require.ErrorIs(t, err, apperr.ErrConflict)
	_, err = h.svc.RejectByToken(ctx, sent.ValidationToken)
	require.ErrorIs(t, err, apperr.ErrConflict)
	_, err = h.svc.SendQuote(ctx, q.ID)
	require.ErrorIs(t, err, apperr.ErrConflict)
}

func TestDraftAndRejectedQuotesAreHidden(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	q := h.quote(t, 50000)

	_, err := h.svc.QuoteByToken(ctx, q.ValidationToken)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	sent, err := h.svc.SendQuote(ctx, q.ID)
	require.NoError(t, err)
	_, err = h.svc.RejectByToken(ctx, sent.ValidationToken)
	require.NoError(t, err)

	_, err = h.svc.QuoteByToken(ctx, sent.ValidationToken)
	require.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = h.svc.SendQuote(ctx, q.ID)
	require.ErrorIs(t, err, apperr.ErrConflict)

	_, err = h.svc.QuoteByToken(ctx, "garbage")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestExpiredQuote(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	q, schedule := h.scheduled(t, 50000)
	_, err := h.svc.MarkAsSent(ctx, schedule[0].ID)
	require.NoError(t, err)
	p, err := h.store.GetQuotePayment(ctx, schedule[0].ID)
	require.NoError(t, err)

	h.clock.Advance(30 * 24 * time.Hour)

	_, err = h.svc.QuoteByToken(ctx, q.ValidationToken)
	require.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = h.svc.AcceptByToken(ctx, q.ValidationToken)
	require.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = h.svc.PaymentByToken(ctx, p.ValidationToken)
	require.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = h.svc.MarkAsSent(ctx, schedule[1].ID)
	require.ErrorIs(t, err, apperr.ErrConflict)

	expired, err := h.svc.ListQuotes(ctx, model.QuoteExpired, 0)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	require.Equal(t, model.QuoteExpired, expired[0].EffectiveStatus)
	stillSent, err := h.svc.ListQuotes(ctx, model.QuoteSent, 0)
	require.NoError(t, err)
	require.Empty(t, stillSent)

	resent, err := h.svc.SendQuote(ctx, q.ID)
	require.NoError(t, err)
	_, err = h.svc.QuoteByToken(ctx, resent.ValidationToken)
	require.NoError(t, err)
}

func TestMarkAsSent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	q := h.quote(t, 100000)
	schedule, err := h.svc.CreateDefaultSchedule(ctx, q.ID)
	require.NoError(t, err)

	_, err = h.svc.MarkAsSent(ctx, schedule[0].ID)
	require.ErrorIs(t, err, apperr.ErrConflict, "draft quotes cannot take payments")

	_, err = h.svc.SendQuote(ctx, q.ID)
	require.NoError(t, err)
	first, err := h.svc.MarkAsSent(ctx, schedule[0].ID)
	require.NoError(t, err)
	require.Equal(t, model.PaymentSent, first.Status)
	require.Equal(t, baseURL+"/payments/"+first.ValidationToken, h.notifier.last().link)

	again, err := h.svc.MarkAsSent(ctx, schedule[0].ID)
	require.NoError(t, err)
	require.NotEqual(t, first.ValidationToken, again.ValidationToken)

	view, err := h.svc.PaymentByToken(ctx, again.ValidationToken)
	require.NoError(t, err)
	require.Equal(t, "Deposit (30%)", view.Label)
	require.Equal(t, int64(30000), view.Amount)

	_, err = h.svc.PaymentByToken(ctx, first.ValidationToken)
	require.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = h.svc.PaymentByToken(ctx, schedule[1].ValidationToken)
	require.ErrorIs(t, err, apperr.ErrNotFound, "pending installments have no public link")

	_, err = h.svc.HandleEvent(ctx, paidEvent("evt_1", again))
	require.NoError(t, err)
	_, err = h.svc.MarkAsSent(ctx, schedule[0].ID)
	require.ErrorIs(t, err, apperr.ErrConflict)
}

func TestDuplicateWebhookSettlesOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	q, schedule := h.scheduled(t, 100000)
	evt := paidEvent("evt_deposit", schedule[0])

	out, err := h.svc.HandleEvent(ctx, evt)
	require.NoError(t, err)
	require.Equal(t, OutcomeSettled, out)

	out, err = h.svc.HandleEvent(ctx, evt)
	require.NoError(t, err)
	require.Equal(t, OutcomeDuplicate, out)

	// A second event id for the same checkout, as the reconciler replays it.
	out, err = h.svc.HandleEvent(ctx, paidEvent("evt_deposit_replay", schedule[0]))
	require.NoError(t, err)
	require.Equal(t, OutcomeAlreadyPaid, out)

	details, err := h.svc.GetQuote(ctx, q.ID)
	require.NoError(t, err)
	require.Len(t, details.Invoices, 1)
	inv := details.Invoices[0]
	require.Equal(t, "INV-2026-00001", inv.InvoiceNumber)
	require.Equal(t, int64(25000), inv.Amount)
	require.Equal(t, int64(5000), inv.VATAmount)
	require.Equal(t, int64(30000), inv.TotalAmount)
	require.NotNil(t, inv.SentAt)
	require.Equal(t, model.PaymentPaid, details.Payments[0].Status)
	require.Equal(t, model.SummaryPartial, details.Summary.PaymentStatus)
	require.Equal(t, int64(70000), details.Summary.RemainingAmount)
	require.Equal(t, model.QuoteSent, details.Quote.Status)

	require.Equal(t, []notify.Kind{notify.KindQuoteLink, notify.KindPaymentConfirmation, notify.KindInvoice}, h.notifier.kinds())
}

func TestConcurrentDeliveriesSettleOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, schedule := h.scheduled(t, 100000)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes = map[Outcome]int{}
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := h.svc.HandleEvent(ctx, paidEvent("evt_same", schedule[1]))
			if err != nil {
				t.Errorf("HandleEvent: %v", err)
				return
			}
			mu.Lock()
			outcomes[out]++
			mu.Unlock()
		}()
	}
	wg.Wait()
	require.Equal(t, map[Outcome]int{OutcomeSettled: 1, OutcomeDuplicate: 7}, outcomes)
	require.Equal(t, 1, h.store.invoiceCount())
}

func TestLastInstallmentMarksQuotePaid(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	q, schedule := h.scheduled(t, 100000)

	for i, p := range schedule {
		out, err := h.svc.HandleEvent(ctx, paidEvent("evt_"+p.Label, p))
		require.NoError(t, err)
		require.Equal(t, OutcomeSettled, out, "installment %d", i)
	}

	details, err := h.svc.GetQuote(ctx, q.ID)
	require.NoError(t, err)
	require.Equal(t, model.QuotePaid, details.Quote.Status)
	require.Equal(t, int64(100000), *details.Quote.PaidAmount)
	require.Equal(t, model.SummaryPaid, details.Summary.PaymentStatus)
	require.Zero(t, details.Summary.RemainingAmount)
	require.Len(t, details.Invoices, 3)

	_, err = h.svc.UpdateTotal(ctx, q.ID, 200000)
	require.ErrorIs(t, err, apperr.ErrConflict)
}

func TestSettlementRollsBackOnStoreFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, schedule := h.scheduled(t, 100000)
	evt := paidEvent("evt_retry", schedule[0])

	h.store.failInvoice = true
	_, err := h.svc.HandleEvent(ctx, evt)
	require.ErrorIs(t, err, apperr.ErrStorage)
	p, err := h.store.GetQuotePayment(ctx, schedule[0].ID)
	require.NoError(t, err)
	require.Equal(t, model.PaymentPending, p.Status)

	// The provider retries the same event once the store is back.
	h.store.failInvoice = false
	out, err := h.svc.HandleEvent(ctx, evt)
	require.NoError(t, err)
	require.Equal(t, OutcomeSettled, out)
	require.Equal(t, 1, h.store.invoiceCount())
}

func TestNotificationFailureKeepsSettlement(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	q, schedule := h.scheduled(t, 100000)

	h.notifier.err = errors.New("smtp: 421 try again later")
	out, err := h.svc.HandleEvent(ctx, paidEvent("evt_quiet", schedule[0]))
	require.NoError(t, err)
	require.Equal(t, OutcomeSettled, out)

	details, err := h.svc.GetQuote(ctx, q.ID)
	require.NoError(t, err)
	require.Len(t, details.Invoices, 1)
	require.Nil(t, details.Invoices[0].SentAt)
}

func TestHandleEventRejectsMalformed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, schedule := h.scheduled(t, 100000)

	cases := map[string]CheckoutCompleted{
		"no metadata":     {ID: "evt_a", Paid: true},
		"bad payment id":  {ID: "evt_b", Paid: true, QuotePaymentID: "123"},
		"unknown payment": {ID: "evt_c", Paid: true, QuotePaymentID: "6f1c1d4e-3c55-4b0a-9d55-8a8a4c0f2d10"},
		"unknown quote":   {ID: "evt_d", Paid: true, QuoteID: "6f1c1d4e-3c55-4b0a-9d55-8a8a4c0f2d10"},
		"no event id":     {Paid: true, QuotePaymentID: schedule[0].ID},
	}
	for name, evt := range cases {
		_, err := h.svc.HandleEvent(ctx, evt)
		require.ErrorIs(t, err, apperr.ErrMalformedEvent, name)
	}
	require.Zero(t, h.store.invoiceCount())

	out, err := h.svc.HandleEvent(ctx, CheckoutCompleted{ID: "evt_async", QuotePaymentID: schedule[0].ID})
	require.NoError(t, err)
	require.Equal(t, OutcomeIgnored, out)

	out, err = h.svc.HandleEvent(ctx, Unhandled{ID: "evt_x", Type: "customer.created"})
	require.NoError(t, err)
	require.Equal(t, OutcomeIgnored, out)

	failed := PaymentFailed{ID: "evt_f", Type: "payment_intent.payment_failed", QuotePaymentID: schedule[0].ID, Reason: "card_declined"}
	out, err = h.svc.HandleEvent(ctx, failed)
	require.NoError(t, err)
	require.Equal(t, OutcomeLogged, out)
	out, err = h.svc.HandleEvent(ctx, failed)
	require.NoError(t, err)
	require.Equal(t, OutcomeDuplicate, out)
}

func TestSingleQuotePayment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	q := h.quote(t, 48000)
	q, err := h.svc.SendQuote(ctx, q.ID)
	require.NoError(t, err)

	url, err := h.svc.CheckoutByQuoteToken(ctx, q.ValidationToken)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "https://checkout.example.test/"))
	req := h.provider.reqs[0]
	require.Equal(t, q.ID, req.QuoteID)
	require.Empty(t, req.QuotePaymentID)
	require.Equal(t, int64(48000), req.Amount)
	require.Equal(t, baseURL+"/quotes/"+q.ValidationToken+"?checkout=success", req.SuccessURL)

	evt := CheckoutCompleted{ID: "evt_q", Type: "checkout.session.completed", QuoteID: q.ID, AmountTotal: 48000, Paid: true}
	out, err := h.svc.HandleEvent(ctx, evt)
	require.NoError(t, err)
	require.Equal(t, OutcomeSettled, out)
	out, err = h.svc.HandleEvent(ctx, CheckoutCompleted{ID: "evt_q2", QuoteID: q.ID, Paid: true})
	require.NoError(t, err)
	require.Equal(t, OutcomeAlreadyPaid, out)

	sum, err := h.svc.Summary(ctx, q.ID)
	require.NoError(t, err)
	require.Equal(t, model.SummaryPaid, sum.PaymentStatus)
	require.Equal(t, int64(48000), sum.TotalPaid)
	require.Equal(t, 1, h.store.invoiceCount())

	_, err = h.svc.CheckoutByQuoteToken(ctx, q.ValidationToken)
	require.ErrorIs(t, err, apperr.ErrConflict)
}

func TestQuoteCheckoutClosesLateSchedule(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	q := h.quote(t, 100000)
	q, err := h.svc.SendQuote(ctx, q.ID)
	require.NoError(t, err)
	_, err = h.svc.CheckoutByQuoteToken(ctx, q.ValidationToken)
	require.NoError(t, err)

	schedule, err := h.svc.CreateDefaultSchedule(ctx, q.ID)
	require.NoError(t, err)
	require.Len(t, schedule, 3)

	out, err := h.svc.HandleEvent(ctx, CheckoutCompleted{ID: "evt_full", QuoteID: q.ID, PaymentIntentID: "pi_full", AmountTotal: 100000, Paid: true})
	require.NoError(t, err)
	require.Equal(t, OutcomeSettled, out)
	require.Equal(t, 1, h.store.invoiceCount())

	details, err := h.svc.GetQuote(ctx, q.ID)
	require.NoError(t, err)
	require.Equal(t, model.QuotePaid, details.Quote.Status)
	require.Equal(t, model.SummaryPaid, details.Summary.PaymentStatus)
	for _, p := range details.Payments {
		require.Equal(t, model.PaymentPaid, p.Status)
	}

	out, err = h.svc.HandleEvent(ctx, paidEvent("evt_dep", schedule[0]))
	require.NoError(t, err)
	require.Equal(t, OutcomeAlreadyPaid, out)
	require.Equal(t, 1, h.store.invoiceCount())
	_, err = h.svc.CreateCheckoutSession(ctx, schedule[1].ID, baseURL+"/ok", baseURL+"/ko")
	require.ErrorIs(t, err, apperr.ErrConflict)
}

func TestCheckoutSessions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	q, schedule := h.scheduled(t, 100000)

	_, err := h.svc.CreateQuoteCheckoutSession(ctx, q.ID, baseURL+"/ok", baseURL+"/ko")
	require.ErrorIs(t, err, apperr.ErrConflict, "scheduled quotes are paid per installment")

	_, err = h.svc.CreateCheckoutSession(ctx, schedule[0].ID, "/relative", baseURL+"/ko")
	require.ErrorIs(t, err, apperr.ErrValidation)

	url, err := h.svc.CreateCheckoutSession(ctx, schedule[0].ID, baseURL+"/ok", baseURL+"/ko")
	require.NoError(t, err)
	require.NotEmpty(t, url)
	req := h.provider.reqs[0]
	require.Equal(t, schedule[0].ID, req.QuotePaymentID)
	require.Equal(t, q.ID, req.QuoteID)
	require.Equal(t, int64(30000), req.Amount)
	require.Equal(t, "camille@example.com", req.CustomerEmail)

	h.provider.err = errors.New("stripe: api_connection_error")
	_, err = h.svc.CreateCheckoutSession(ctx, schedule[1].ID, baseURL+"/ok", baseURL+"/ko")
	require.ErrorIs(t, err, apperr.ErrProvider)
	require.Equal(t, 502, apperr.HTTPStatus(err))
	p, err := h.store.GetQuotePayment(ctx, schedule[1].ID)
	require.NoError(t, err)
	require.Equal(t, model.PaymentPending, p.Status)

	h.provider.err = nil
	_, err = h.svc.HandleEvent(ctx, paidEvent("evt_dep", schedule[0]))
	require.NoError(t, err)
	_, err = h.svc.CreateCheckoutSession(ctx, schedule[0].ID, baseURL+"/ok", baseURL+"/ko")
	require.ErrorIs(t, err, apperr.ErrConflict)
}

func TestUpdateTotalRedistributesUnpaid(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	q, schedule := h.scheduled(t, 100000)
	_, err := h.svc.HandleEvent(ctx, paidEvent("evt_dep", schedule[0]))
	require.NoError(t, err)

	details, err := h.svc.UpdateTotal(ctx, q.ID, 120000)
	require.NoError(t, err)
	require.Equal(t, []int64{30000, 45000, 45000}, amounts(details.Payments))
	require.Equal(t, int64(120000), details.Summary.Total)
	require.Equal(t, int64(36000), details.Quote.DepositAmount)

	details, err = h.svc.UpdateTotal(ctx, q.ID, 100001)
	require.NoError(t, err)
	require.Equal(t, []int64{30000, 35000, 35001}, amounts(details.Payments))

	_, err = h.svc.UpdateTotal(ctx, q.ID, 20000)
	require.ErrorIs(t, err, apperr.ErrConflict)
	require.ErrorIs(t, err, ErrScheduleInconsistent)
	got, err := h.svc.Summary(ctx, q.ID)
	require.NoError(t, err)
	require.Equal(t, int64(100001), got.Total, "a rejected update leaves the schedule alone")

	_, err = h.svc.UpdateTotal(ctx, q.ID, 30000)
	require.ErrorIs(t, err, ErrScheduleInconsistent)
	details, err = h.svc.GetQuote(ctx, q.ID)
	require.NoError(t, err)
	require.Equal(t, []int64{30000, 35000, 35001}, amounts(details.Payments))
	require.Equal(t, model.SummaryPartial, details.Summary.PaymentStatus)

	_, err = h.svc.UpdateTotal(ctx, q.ID, 0)
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestRecalculateAmountsWithoutSchedule(t *testing.T) {
	h := newHarness(t)
	q := h.quote(t, 1000)
	got, err := h.svc.RecalculateAmounts(context.Background(), q.ID)
	require.NoError(t, err)
	require.Empty(t, got)
}
