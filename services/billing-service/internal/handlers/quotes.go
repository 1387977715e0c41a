package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/decorstudio/platform/libs/apperr"
	"github.com/decorstudio/platform/libs/httpx"
	"github.com/decorstudio/platform/services/billing-service/internal/model"
	"github.com/decorstudio/platform/services/billing-service/internal/payments"
)

type Quotes interface {
	CreateQuote(ctx context.Context, in payments.QuoteInput) (model.Quote, error)
	GetQuote(ctx context.Context, id string) (payments.QuoteDetails, error)
	ListQuotes(ctx context.Context, status string, limit int) ([]payments.QuoteListItem, error)
	UpdateTotal(ctx context.Context, id string, total int64) (payments.QuoteDetails, error)
	SendQuote(ctx context.Context, id string) (model.Quote, error)
	CreateDefaultSchedule(ctx context.Context, quoteID string) ([]model.QuotePayment, error)
	RecalculateAmounts(ctx context.Context, quoteID string) ([]model.QuotePayment, error)
	Summary(ctx context.Context, quoteID string) (model.QuotePaymentSummary, error)
	MarkAsSent(ctx context.Context, paymentID string) (model.QuotePayment, error)
	CreateCheckoutSession(ctx context.Context, paymentID, successURL, cancelURL string) (string, error)
	CreateQuoteCheckoutSession(ctx context.Context, quoteID, successURL, cancelURL string) (string, error)

	QuoteByToken(ctx context.Context, token string) (payments.PublicQuote, error)
	AcceptByToken(ctx context.Context, token string) (payments.PublicQuote, error)
	RejectByToken(ctx context.Context, token string) (payments.PublicQuote, error)
	CheckoutByQuoteToken(ctx context.Context, token string) (string, error)
	PaymentByToken(ctx context.Context, token string) (payments.PublicInstallment, error)
	CheckoutByPaymentToken(ctx context.Context, token string) (string, error)
}

type QuoteHandler struct {
	quotes Quotes
	logger *slog.Logger
}

func NewQuoteHandler(q Quotes, logger *slog.Logger) *QuoteHandler {
	return &QuoteHandler{quotes: q, logger: logger}
}

// Register mounts the back-office routes behind admin and the token routes
// behind public, which rate limits them.
func (h *QuoteHandler) Register(mux *http.ServeMux, public, admin func(http.Handler) http.Handler) {
	mux.Handle("POST /api/v1/admin/quotes", admin(http.HandlerFunc(h.Create)))
	mux.Handle("GET /api/v1/admin/quotes", admin(http.HandlerFunc(h.List)))
	mux.Handle("GET /api/v1/admin/quotes/{id}", admin(http.HandlerFunc(h.Get)))
	mux.Handle("PATCH /api/v1/admin/quotes/{id}/total", admin(http.HandlerFunc(h.UpdateTotal)))
	mux.Handle("POST /api/v1/admin/quotes/{id}/send", admin(http.HandlerFunc(h.Send)))
	mux.Handle("POST /api/v1/admin/quotes/{id}/schedule", admin(http.HandlerFunc(h.CreateSchedule)))
	mux.Handle("POST /api/v1/admin/quotes/{id}/schedule/recalculate", admin(http.HandlerFunc(h.Recalculate)))
	mux.Handle("GET /api/v1/admin/quotes/{id}/summary", admin(http.HandlerFunc(h.Summary)))
	mux.Handle("POST /api/v1/admin/quotes/{id}/checkout", admin(http.HandlerFunc(h.QuoteCheckout)))
	mux.Handle("POST /api/v1/admin/quote-payments/{id}/send", admin(http.HandlerFunc(h.SendPayment)))
	mux.Handle("POST /api/v1/admin/quote-payments/{id}/checkout", admin(http.HandlerFunc(h.PaymentCheckout)))

	mux.Handle("GET /api/v1/public/quotes/{token}", public(http.HandlerFunc(h.PublicQuote)))
	mux.Handle("POST /api/v1/public/quotes/{token}/accept", public(http.HandlerFunc(h.Accept)))
	mux.Handle("POST /api/v1/public/quotes/{token}/reject", public(http.HandlerFunc(h.Reject)))
	mux.Handle("POST /api/v1/public/quotes/{token}/checkout", public(http.HandlerFunc(h.PublicQuoteCheckout)))
	mux.Handle("GET /api/v1/public/payments/{token}", public(http.HandlerFunc(h.PublicPayment)))
	mux.Handle("POST /api/v1/public/payments/{token}/checkout", public(http.HandlerFunc(h.PublicPaymentCheckout)))
}

type totalRequest struct {
	AmountTotal int64 `json:"amount_total"`
}

type checkoutRequest struct {
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
}

type checkoutResponse struct {
	URL string `json:"url"`
}

func (h *QuoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in payments.QuoteInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	h.respond(w, r, http.StatusCreated)(h.quotes.CreateQuote(r.Context(), in))
}

func (h *QuoteHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			httpx.WriteError(w, r, h.logger, apperr.Validation("quotes.list", "limit must be a positive integer"))
			return
		}
		limit = n
	}
	items, err := h.quotes.ListQuotes(r.Context(), r.URL.Query().Get("status"), limit)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"quotes": items})
}

func (h *QuoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK)(h.quotes.GetQuote(r.Context(), r.PathValue("id")))
}

func (h *QuoteHandler) UpdateTotal(w http.ResponseWriter, r *http.Request) {
	var in totalRequest
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	h.respond(w, r, http.StatusOK)(h.quotes.UpdateTotal(r.Context(), r.PathValue("id"), in.AmountTotal))
}

func (h *QuoteHandler) Send(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK)(h.quotes.SendQuote(r.Context(), r.PathValue("id")))
}

func (h *QuoteHandler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusCreated)(h.quotes.CreateDefaultSchedule(r.Context(), r.PathValue("id")))
}

func (h *QuoteHandler) Recalculate(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK)(h.quotes.RecalculateAmounts(r.Context(), r.PathValue("id")))
}

func (h *QuoteHandler) Summary(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK)(h.quotes.Summary(r.Context(), r.PathValue("id")))
}

func (h *QuoteHandler) SendPayment(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK)(h.quotes.MarkAsSent(r.Context(), r.PathValue("id")))
}

func (h *QuoteHandler) PaymentCheckout(w http.ResponseWriter, r *http.Request) {
	var in checkoutRequest
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	h.checkout(w, r)(h.quotes.CreateCheckoutSession(r.Context(), r.PathValue("id"), in.SuccessURL, in.CancelURL))
}

func (h *QuoteHandler) QuoteCheckout(w http.ResponseWriter, r *http.Request) {
	var in checkoutRequest
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	h.checkout(w, r)(h.quotes.CreateQuoteCheckoutSession(r.Context(), r.PathValue("id"), in.SuccessURL, in.CancelURL))
}

func (h *QuoteHandler) PublicQuote(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK)(h.quotes.QuoteByToken(r.Context(), r.PathValue("token")))
}

func (h *QuoteHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK)(h.quotes.AcceptByToken(r.Context(), r.PathValue("token")))
}

func (h *QuoteHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK)(h.quotes.RejectByToken(r.Context(), r.PathValue("token")))
}

func (h *QuoteHandler) PublicQuoteCheckout(w http.ResponseWriter, r *http.Request) {
	h.checkout(w, r)(h.quotes.CheckoutByQuoteToken(r.Context(), r.PathValue("token")))
}

func (h *QuoteHandler) PublicPayment(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK)(h.quotes.PaymentByToken(r.Context(), r.PathValue("token")))
}

func (h *QuoteHandler) PublicPaymentCheckout(w http.ResponseWriter, r *http.Request) {
	h.checkout(w, r)(h.quotes.CheckoutByPaymentToken(r.Context(), r.PathValue("token")))
}

// respond returns a sink for a (value, error) pair so handlers can pass a
// service call straight through.
func (h *QuoteHandler) respond(w http.ResponseWriter, r *http.Request, status int) func(any, error) {
	return func(v any, err error) {
		if err != nil {
			httpx.WriteError(w, r, h.logger, err)
			return
		}
		httpx.WriteJSON(w, status, v)
	}
}

func (h *QuoteHandler) checkout(w http.ResponseWriter, r *http.Request) func(string, error) {
	return func(url string, err error) {
		if err != nil {
			httpx.WriteError(w, r, h.logger, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, checkoutResponse{URL: url})
	}
}
