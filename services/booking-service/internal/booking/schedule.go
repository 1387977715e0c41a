package booking

import (
	"context"
	"strings"

	"github.com/decorstudio/platform/libs/apperr"
	"github.com/decorstudio/platform/libs/db"
	"github.com/decorstudio/platform/services/booking-service/internal/availability"
	"github.com/decorstudio/platform/services/booking-service/internal/model"
)

func (s *Service) ListBusinessHours(ctx context.Context) ([]model.BusinessHours, error) {
	hours, err := s.store.ListBusinessHours(ctx)
	if err != nil {
		return nil, apperr.Storage("schedule.list_hours", err)
	}
	if hours == nil {
		hours = []model.BusinessHours{}
	}
	return hours, nil
}

// UpsertBusinessHours replaces one weekday's hours. Every cached day may be
// affected, so the whole cache is dropped.
func (s *Service) UpsertBusinessHours(ctx context.Context, h model.BusinessHours) (model.BusinessHours, error) {
	const op = "schedule.upsert_hours"
	if h.Weekday < 0 || h.Weekday > 6 {
		return model.BusinessHours{}, apperr.Validation(op, "weekday must be between 0 and 6")
	}
	if h.IsOpen {
		open, err := availability.ParseStart(h.OpenTime)
		if err != nil {
			return model.BusinessHours{}, err
		}
		closeAt, err := availability.ParseClock(h.CloseTime)
		if err != nil {
			return model.BusinessHours{}, err
		}
		if open >= closeAt {
			return model.BusinessHours{}, apperr.Validation(op, "open_time must be before close_time")
		}
		h.OpenTime, h.CloseTime = open.String(), closeAt.String()
	} else {
		h.OpenTime, h.CloseTime = "00:00", "00:00"
	}

	if err := s.store.UpsertBusinessHours(ctx, h); err != nil {
		return model.BusinessHours{}, apperr.Storage(op, err)
	}
	s.engine.Invalidate(ctx)
	s.logger.InfoContext(ctx, "business hours updated", "weekday", h.Weekday, "is_open", h.IsOpen)
	return h, nil
}

func (s *Service) ListBlockedSlots(ctx context.Context, from, to string) ([]model.BlockedSlot, error) {
	const op = "schedule.list_blocks"
	loc := s.engine.Policy().Location
	fromDay, err := availability.ParseDate(from, loc)
	if err != nil {
		return nil, err
	}
	toDay, err := availability.ParseDate(to, loc)
	if err != nil {
		return nil, err
	}
	if toDay.Before(fromDay) {
		return nil, apperr.Validation(op, "to must not be before from")
	}
	blocks, err := s.store.BlockedSlotsBetween(ctx, from, to)
	if err != nil {
		return nil, apperr.Storage(op, err)
	}
	if blocks == nil {
		blocks = []model.BlockedSlot{}
	}
	return blocks, nil
}

func (s *Service) CreateBlockedSlot(ctx context.Context, b model.BlockedSlot) (model.BlockedSlot, error) {
	const op = "schedule.create_block"
	b.Date = strings.TrimSpace(b.Date)
	b.Reason = strings.TrimSpace(b.Reason)
	if _, err := availability.ParseDate(b.Date, s.engine.Policy().Location); err != nil {
		return model.BlockedSlot{}, err
	}
	start, err := availability.ParseStart(b.StartTime)
	if err != nil {
		return model.BlockedSlot{}, err
	}
	end, err := availability.ParseClock(b.EndTime)
	if err != nil {
		return model.BlockedSlot{}, err
	}
	if start >= end {
		return model.BlockedSlot{}, apperr.Validation(op, "start_time must be before end_time")
	}
	b.StartTime, b.EndTime = start.String(), end.String()

	created, err := s.store.InsertBlockedSlot(ctx, b)
	if db.IsUniqueViolation(err) {
		return model.BlockedSlot{}, apperr.Conflict(op, "%s %s-%s is already blocked", b.Date, b.StartTime, b.EndTime)
	}
	if err != nil {
		return model.BlockedSlot{}, apperr.Storage(op, err)
	}
	s.engine.Invalidate(ctx, created.Date)
	s.logger.InfoContext(ctx, "slot blocked", "block_id", created.ID, "date", created.Date, "start_time", created.StartTime, "end_time", created.EndTime)
	return created, nil
}

// CloseDay blocks the whole of date.
func (s *Service) CloseDay(ctx context.Context, date, reason string) (model.BlockedSlot, error) {
	return s.CreateBlockedSlot(ctx, model.BlockedSlot{
		Date:      date,
		StartTime: "00:00",
		EndTime:   availability.EndOfDay.String(),
		Reason:    reason,
	})
}

func (s *Service) DeleteBlockedSlot(ctx context.Context, id string) error {
	const op = "schedule.delete_block"
	if !validID(id) {
		return apperr.NotFound(op, "blocked slot")
	}
	removed, err := s.store.DeleteBlockedSlot(ctx, id)
	if db.IsNotFound(err) {
		return apperr.NotFound(op, "blocked slot")
	}
	if err != nil {
		return apperr.Storage(op, err)
	}
	s.engine.Invalidate(ctx, removed.Date)
	s.logger.InfoContext(ctx, "slot unblocked", "block_id", removed.ID, "date", removed.Date)
	return nil
}
