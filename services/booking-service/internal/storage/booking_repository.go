package storage

import (
	"context"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/decorstudio/platform/libs/db"
	"github.com/decorstudio/platform/services/booking-service/internal/model"
)

// Queries runs the booking SQL against a pool or a transaction.
type Queries struct {
	db db.DBTX
}

func New(conn db.DBTX) *Queries {
	return &Queries{db: conn}
}

// Store adds transactions on top of pool-bound Queries.
type Store struct {
	*Queries
	pool db.Beginner
}

func NewStore(pool db.Beginner) *Store {
	return &Store{Queries: New(pool), pool: pool}
}

// Serializable runs fn in a SERIALIZABLE transaction, so the availability
// re-check and the insert see one snapshot and conflicting writers abort.
func (s *Store) Serializable(ctx context.Context, fn func(*Queries) error) error {
	return db.InTx(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) error {
		return fn(New(tx))
	})
}

const appointmentColumns = `id::text, client_name, client_email, client_phone, date::text, start_time, end_time,
	event_type, COALESCE(message, ''), status, created_at`

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var a model.Appointment
	err := row.Scan(
		&a.ID,
		&a.ClientName,
		&a.ClientEmail,
		&a.ClientPhone,
		&a.Date,
		&a.StartTime,
		&a.EndTime,
		&a.EventType,
		&a.Message,
		&a.Status,
		&a.CreatedAt,
	)
	return a, err
}

func collectAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	defer rows.Close()
	var appts []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return appts, nil
}

func (q *Queries) InsertAppointment(ctx context.Context, a model.Appointment) (model.Appointment, error) {
	err := q.db.QueryRow(ctx, `
		INSERT INTO appointments
			(client_name, client_email, client_phone, date, start_time, end_time, event_type, message, status)
		VALUES ($1, $2, $3, $4::date, $5, $6, $7, NULLIF($8, ''), $9)
		RETURNING id::text, created_at
	`, a.ClientName, a.ClientEmail, a.ClientPhone, a.Date, a.StartTime, a.EndTime, a.EventType, a.Message, a.Status,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return model.Appointment{}, err
	}
	return a, nil
}

func (q *Queries) GetAppointment(ctx context.Context, id string) (model.Appointment, error) {
	return scanAppointment(q.db.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id))
}

func (q *Queries) GetAppointmentForUpdate(ctx context.Context, id string) (model.Appointment, error) {
	return scanAppointment(q.db.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1 FOR UPDATE`, id))
}

func (q *Queries) SetAppointmentStatus(ctx context.Context, id, status string) (model.Appointment, error) {
	return scanAppointment(q.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
			updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns, id, status))
}

// ActiveAppointmentsBetween returns pending and confirmed appointments with
// from <= date <= to.
func (q *Queries) ActiveAppointmentsBetween(ctx context.Context, from, to string) ([]model.Appointment, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE date BETWEEN $1::date AND $2::date
			AND status IN ('pending', 'confirmed')
		ORDER BY date, start_time
	`, from, to)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (q *Queries) ListAppointments(ctx context.Context, f model.AppointmentFilter) ([]model.Appointment, error) {
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var (
		where []string
		args  []any
	)
	if f.From != "" {
		args = append(args, f.From)
		where = append(where, "date >= $"+strconv.Itoa(len(args))+"::date")
	}
	if f.To != "" {
		args = append(args, f.To)
		where = append(where, "date <= $"+strconv.Itoa(len(args))+"::date")
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, "status = $"+strconv.Itoa(len(args)))
	}
	sql := `SELECT ` + appointmentColumns + ` FROM appointments`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, limit)
	sql += ` ORDER BY date DESC, start_time DESC LIMIT $` + strconv.Itoa(len(args))

	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}
