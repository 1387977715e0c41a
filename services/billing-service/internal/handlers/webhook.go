package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/decorstudio/platform/libs/apperr"
	"github.com/decorstudio/platform/libs/httpx"
	"github.com/decorstudio/platform/libs/metrics"
	"github.com/decorstudio/platform/services/billing-service/internal/payments"
)

type EventParser interface {
	ParseWebhook(payload []byte, sigHeader string) (payments.Event, error)
}

type Settler interface {
	HandleEvent(ctx context.Context, evt payments.Event) (payments.Outcome, error)
}

// WebhookHandler receives Stripe events. There is no JWT here; the
// signature is the authentication.
type WebhookHandler struct {
	parser  EventParser
	settler Settler
	logger  *slog.Logger
	metrics *metrics.BillingMetrics
}

func NewWebhookHandler(parser EventParser, settler Settler, logger *slog.Logger, m *metrics.BillingMetrics) *WebhookHandler {
	return &WebhookHandler{parser: parser, settler: settler, logger: logger, metrics: m}
}

func (h *WebhookHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/webhooks/stripe", h.Stripe)
}

// Stripe answers 400 for anything that fails verification or cannot be
// mapped to a quote, 200 once the event is applied or known, and 500 only
// when the store failed, so that Stripe retries.
func (h *WebhookHandler) Stripe(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sig := r.Header.Get("Stripe-Signature")
	if strings.TrimSpace(sig) == "" {
		h.reject(w, r, "unknown", apperr.MalformedEvent("stripe.webhook", "missing Stripe-Signature header"))
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		h.reject(w, r, "unknown", apperr.MalformedEvent("stripe.webhook", "read body: %v", err))
		return
	}

	evt, err := h.parser.ParseWebhook(body, sig)
	if err != nil {
		h.reject(w, r, "unknown", err)
		return
	}
	evtType := eventType(evt)

	out, err := h.settler.HandleEvent(r.Context(), evt)
	if err != nil {
		h.metrics.ObserveWebhook(evtType, "error", time.Since(start))
		if errors.Is(err, apperr.ErrMalformedEvent) {
			h.reject(w, r, evtType, err)
			return
		}
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	h.metrics.ObserveWebhook(evtType, string(out), time.Since(start))
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": string(out)})
}

func (h *WebhookHandler) reject(w http.ResponseWriter, r *http.Request, evtType string, err error) {
	h.logger.WarnContext(r.Context(), "stripe webhook rejected",
		"request_id", httpx.RequestIDFromContext(r.Context()), "event_type", evtType, "err", err)
	h.metrics.ObserveWebhook(evtType, "rejected", 0)
	status := http.StatusBadRequest
	if !errors.Is(err, apperr.ErrMalformedEvent) {
		status = apperr.HTTPStatus(err)
	}
	httpx.WriteJSON(w, status, map[string]string{"error": apperr.PublicMessage(err)})
}

func eventType(evt payments.Event) string {
	switch e := evt.(type) {
	case payments.CheckoutCompleted:
		return e.Type
	case payments.PaymentFailed:
		return e.Type
	case payments.Unhandled:
		return e.Type
	}
	return "unknown"
}
