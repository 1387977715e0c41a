package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/decorstudio/platform/libs/apperr"
	"github.com/decorstudio/platform/libs/httpx"
	"github.com/decorstudio/platform/services/booking-service/internal/booking"
	"github.com/decorstudio/platform/services/booking-service/internal/model"
)

type Availability interface {
	SlotsForDate(ctx context.Context, date string) ([]model.Slot, error)
	DatesWithOpenSlots(ctx context.Context, months int) ([]string, error)
}

type Bookings interface {
	CreateAppointment(ctx context.Context, in booking.CreateInput) (model.Appointment, error)
	UpdateStatus(ctx context.Context, id, status string) (model.Appointment, error)
	Get(ctx context.Context, id string) (model.Appointment, error)
	List(ctx context.Context, f model.AppointmentFilter) ([]model.Appointment, error)
	ListBusinessHours(ctx context.Context) ([]model.BusinessHours, error)
	UpsertBusinessHours(ctx context.Context, h model.BusinessHours) (model.BusinessHours, error)
	ListBlockedSlots(ctx context.Context, from, to string) ([]model.BlockedSlot, error)
	CreateBlockedSlot(ctx context.Context, b model.BlockedSlot) (model.BlockedSlot, error)
	CloseDay(ctx context.Context, date, reason string) (model.BlockedSlot, error)
	DeleteBlockedSlot(ctx context.Context, id string) error
}

type BookingHandler struct {
	availability Availability
	bookings     Bookings
	logger       *slog.Logger
}

func NewBookingHandler(a Availability, b Bookings, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{availability: a, bookings: b, logger: logger}
}

// Register mounts the routes. publicWrite wraps the anonymous booking POST
// (rate limiting) and admin wraps everything under /api/v1/admin.
func (h *BookingHandler) Register(mux *http.ServeMux, publicWrite, admin func(http.Handler) http.Handler) {
	mux.HandleFunc("GET /api/v1/availability/dates", h.Dates)
	mux.HandleFunc("GET /api/v1/availability/slots", h.Slots)
	mux.Handle("POST /api/v1/appointments", publicWrite(http.HandlerFunc(h.Create)))

	mux.Handle("GET /api/v1/admin/appointments", admin(http.HandlerFunc(h.List)))
	mux.Handle("GET /api/v1/admin/appointments/{id}", admin(http.HandlerFunc(h.Get)))
	mux.Handle("PATCH /api/v1/admin/appointments/{id}/status", admin(http.HandlerFunc(h.UpdateStatus)))
	mux.Handle("GET /api/v1/admin/business-hours", admin(http.HandlerFunc(h.ListHours)))
	mux.Handle("PUT /api/v1/admin/business-hours/{weekday}", admin(http.HandlerFunc(h.PutHours)))
	mux.Handle("GET /api/v1/admin/blocked-slots", admin(http.HandlerFunc(h.ListBlocks)))
	mux.Handle("POST /api/v1/admin/blocked-slots", admin(http.HandlerFunc(h.CreateBlock)))
	mux.Handle("DELETE /api/v1/admin/blocked-slots/{id}", admin(http.HandlerFunc(h.DeleteBlock)))
	mux.Handle("POST /api/v1/admin/closed-days", admin(http.HandlerFunc(h.CloseDay)))
}

type datesResponse struct {
	Dates []string `json:"dates"`
}

type slotsResponse struct {
	Date  string       `json:"date"`
	Slots []model.Slot `json:"slots"`
}

// Dates and Slots fail closed: anything but a validation error renders an
// empty result so a client never sees availability computed from partial data.
func (h *BookingHandler) Dates(w http.ResponseWriter, r *http.Request) {
	months := 0
	if raw := r.URL.Query().Get("months"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			httpx.WriteError(w, r, h.logger, apperr.Validation("availability.dates", "months must be a non-negative integer"))
			return
		}
		months = n
	}
	dates, err := h.availability.DatesWithOpenSlots(r.Context(), months)
	if err != nil {
		if errors.Is(err, apperr.ErrValidation) {
			httpx.WriteError(w, r, h.logger, err)
			return
		}
		h.logger.ErrorContext(r.Context(), "availability dates failed, rendering none", "request_id", httpx.RequestIDFromContext(r.Context()), "err", err)
		dates = []string{}
	}
	httpx.WriteJSON(w, http.StatusOK, datesResponse{Dates: dates})
}

func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		httpx.WriteError(w, r, h.logger, apperr.Validation("availability.slots", "date is required"))
		return
	}
	slots, err := h.availability.SlotsForDate(r.Context(), date)
	if err != nil {
		if errors.Is(err, apperr.ErrValidation) {
			httpx.WriteError(w, r, h.logger, err)
			return
		}
		h.logger.ErrorContext(r.Context(), "availability slots failed, rendering none", "request_id", httpx.RequestIDFromContext(r.Context()), "date", date, "err", err)
		slots = []model.Slot{}
	}
	httpx.WriteJSON(w, http.StatusOK, slotsResponse{Date: date, Slots: slots})
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in booking.CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	appt, err := h.bookings.CreateAppointment(r.Context(), in)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, appt)
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := model.AppointmentFilter{
		From:   q.Get("from"),
		To:     q.Get("to"),
		Status: q.Get("status"),
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			httpx.WriteError(w, r, h.logger, apperr.Validation("booking.list", "limit must be a positive integer"))
			return
		}
		f.Limit = n
	}
	appts, err := h.bookings.List(r.Context(), f)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"appointments": appts})
}

func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	appt, err := h.bookings.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, appt)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *BookingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	appt, err := h.bookings.UpdateStatus(r.Context(), r.PathValue("id"), req.Status)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, appt)
}
