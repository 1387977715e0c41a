package handlers

import (
	"net/http"
	"strconv"

	"github.com/decorstudio/platform/libs/apperr"
	"github.com/decorstudio/platform/libs/httpx"
	"github.com/decorstudio/platform/services/booking-service/internal/model"
)

func (h *BookingHandler) ListHours(w http.ResponseWriter, r *http.Request) {
	hours, err := h.bookings.ListBusinessHours(r.Context())
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"business_hours": hours})
}

type hoursRequest struct {
	IsOpen    bool   `json:"is_open"`
	OpenTime  string `json:"open_time"`
	CloseTime string `json:"close_time"`
}

func (h *BookingHandler) PutHours(w http.ResponseWriter, r *http.Request) {
	weekday, err := strconv.Atoi(r.PathValue("weekday"))
	if err != nil {
		httpx.WriteError(w, r, h.logger, apperr.Validation("schedule.upsert_hours", "weekday must be an integer"))
		return
	}
	var req hoursRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	saved, err := h.bookings.UpsertBusinessHours(r.Context(), model.BusinessHours{
		Weekday:   weekday,
		IsOpen:    req.IsOpen,
		OpenTime:  req.OpenTime,
		CloseTime: req.CloseTime,
	})
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, saved)
}

func (h *BookingHandler) ListBlocks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	blocks, err := h.bookings.ListBlockedSlots(r.Context(), q.Get("from"), q.Get("to"))
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"blocked_slots": blocks})
}

type blockRequest struct {
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Reason    string `json:"reason"`
}

func (h *BookingHandler) CreateBlock(w http.ResponseWriter, r *http.Request) {
	var req blockRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	b, err := h.bookings.CreateBlockedSlot(r.Context(), model.BlockedSlot{
		Date:      req.Date,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Reason:    req.Reason,
	})
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, b)
}

type closeDayRequest struct {
	Date   string `json:"date"`
	Reason string `json:"reason"`
}

func (h *BookingHandler) CloseDay(w http.ResponseWriter, r *http.Request) {
	var req closeDayRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	b, err := h.bookings.CloseDay(r.Context(), req.Date, req.Reason)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, b)
}

func (h *BookingHandler) DeleteBlock(w http.ResponseWriter, r *http.Request) {
	if err := h.bookings.DeleteBlockedSlot(r.Context(), r.PathValue("id")); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
