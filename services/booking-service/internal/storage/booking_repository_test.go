package storage

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/decorstudio/platform/libs/db"
	"github.com/decorstudio/platform/services/booking-service/internal/model"
)

var apptCols = []string{"id", "client_name", "client_email", "client_phone", "date", "start_time", "end_time", "event_type", "message", "status", "created_at"}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func TestActiveAppointmentsBetween(t *testing.T) {
	mock := newMock(t)
	created := time.Date(2026, 3, 6, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM appointments").
		WithArgs("2026-03-16", "2026-03-16").
		WillReturnRows(pgxmock.NewRows(apptCols).
			AddRow("a1", "Claire", "claire@example.com", "0600000000", "2026-03-16", "10:00", "11:00", "wedding", "", "confirmed", created))

	appts, err := New(mock).ActiveAppointmentsBetween(context.Background(), "2026-03-16", "2026-03-16")
	if err != nil {
		t.Fatalf("ActiveAppointmentsBetween: %v", err)
	}
	if len(appts) != 1 || appts[0].StartTime != "10:00" || appts[0].Status != model.StatusConfirmed {
		t.Fatalf("unexpected appointments %+v", appts)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestBusinessHoursForUnconfiguredDayIsClosed(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery("FROM business_hours").WithArgs(0).WillReturnError(pgx.ErrNoRows)

	h, err := New(mock).BusinessHoursFor(context.Background(), 0)
	if err != nil {
		t.Fatalf("BusinessHoursFor: %v", err)
	}
	if h.IsOpen || h.Weekday != 0 {
		t.Fatalf("expected closed Sunday, got %+v", h)
	}
}

func TestSerializableInsertSurfacesUniqueViolation(t *testing.T) {
	mock := newMock(t)
	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs("Claire", "claire@example.com", "0600000000", "2026-03-16", "10:00", "11:00", "wedding", "", model.StatusPending).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "appointments_active_slot_idx"})
	mock.ExpectRollback()

	store := NewStore(mock)
	err := store.Serializable(context.Background(), func(q *Queries) error {
		_, err := q.InsertAppointment(context.Background(), model.Appointment{
			ClientName: "Claire", ClientEmail: "claire@example.com", ClientPhone: "0600000000",
			Date: "2026-03-16", StartTime: "10:00", EndTime: "11:00", EventType: "wedding", Status: model.StatusPending,
		})
		return err
	})
	if !db.IsUniqueViolation(err) {
		t.Fatalf("expected unique violation, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListAppointmentsFilters(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`WHERE date >= \$1::date AND status = \$2 ORDER BY date DESC, start_time DESC LIMIT \$3`).
		WithArgs("2026-03-01", "pending", 100).
		WillReturnRows(pgxmock.NewRows(apptCols))

	appts, err := New(mock).ListAppointments(context.Background(), model.AppointmentFilter{From: "2026-03-01", Status: "pending"})
	if err != nil {
		t.Fatalf("ListAppointments: %v", err)
	}
	if len(appts) != 0 {
		t.Fatalf("expected no rows, got %d", len(appts))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeleteBlockedSlotReturnsRow(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery("DELETE FROM blocked_slots").
		WithArgs("b1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "date", "start_time", "end_time", "reason"}).
			AddRow("b1", "2026-03-16", "13:00", "14:00", "lunch"))

	b, err := New(mock).DeleteBlockedSlot(context.Background(), "b1")
	if err != nil {
		t.Fatalf("DeleteBlockedSlot: %v", err)
	}
	if b.Date != "2026-03-16" || b.Reason != "lunch" {
		t.Fatalf("unexpected row %+v", b)
	}
}
