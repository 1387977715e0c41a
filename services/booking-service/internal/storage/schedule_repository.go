package storage

import (
	"context"

	"github.com/decorstudio/platform/libs/db"
	"github.com/decorstudio/platform/services/booking-service/internal/model"
)

// BusinessHoursFor returns the weekday's hours. A weekday never configured
// is closed.
func (q *Queries) BusinessHoursFor(ctx context.Context, weekday int) (model.BusinessHours, error) {
	h := model.BusinessHours{Weekday: weekday}
	err := q.db.QueryRow(ctx, `
		SELECT is_open, open_time, close_time
		FROM business_hours
		WHERE weekday = $1
	`, weekday).Scan(&h.IsOpen, &h.OpenTime, &h.CloseTime)
	if db.IsNotFound(err) {
		return model.BusinessHours{Weekday: weekday}, nil
	}
	if err != nil {
		return model.BusinessHours{}, err
	}
	return h, nil
}

func (q *Queries) ListBusinessHours(ctx context.Context) ([]model.BusinessHours, error) {
	rows, err := q.db.Query(ctx, `
		SELECT weekday, is_open, open_time, close_time
		FROM business_hours
		ORDER BY weekday
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.BusinessHours
	for rows.Next() {
		var h model.BusinessHours
		if err := rows.Scan(&h.Weekday, &h.IsOpen, &h.OpenTime, &h.CloseTime); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (q *Queries) UpsertBusinessHours(ctx context.Context, h model.BusinessHours) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO business_hours (weekday, is_open, open_time, close_time)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (weekday)
		DO UPDATE SET is_open = EXCLUDED.is_open,
		              open_time = EXCLUDED.open_time,
		              close_time = EXCLUDED.close_time,
		              updated_at = now()
	`, h.Weekday, h.IsOpen, h.OpenTime, h.CloseTime)
	return err
}

func (q *Queries) BlockedSlotsBetween(ctx context.Context, from, to string) ([]model.BlockedSlot, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id::text, date::text, start_time, end_time, COALESCE(reason, '')
		FROM blocked_slots
		WHERE date BETWEEN $1::date AND $2::date
		ORDER BY date, start_time
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.BlockedSlot
	for rows.Next() {
		var b model.BlockedSlot
		if err := rows.Scan(&b.ID, &b.Date, &b.StartTime, &b.EndTime, &b.Reason); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (q *Queries) InsertBlockedSlot(ctx context.Context, b model.BlockedSlot) (model.BlockedSlot, error) {
	err := q.db.QueryRow(ctx, `
		INSERT INTO blocked_slots (date, start_time, end_time, reason)
		VALUES ($1::date, $2, $3, NULLIF($4, ''))
		RETURNING id::text
	`, b.Date, b.StartTime, b.EndTime, b.Reason).Scan(&b.ID)
	if err != nil {
		return model.BlockedSlot{}, err
	}
	return b, nil
}

// DeleteBlockedSlot returns the removed row so callers know which date changed.
func (q *Queries) DeleteBlockedSlot(ctx context.Context, id string) (model.BlockedSlot, error) {
	var b model.BlockedSlot
	err := q.db.QueryRow(ctx, `
		DELETE FROM blocked_slots
		WHERE id = $1
		RETURNING id::text, date::text, start_time, end_time, COALESCE(reason, '')
	`, id).Scan(&b.ID, &b.Date, &b.StartTime, &b.EndTime, &b.Reason)
	return b, err
}
