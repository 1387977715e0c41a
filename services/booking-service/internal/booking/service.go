// Package booking is the write side of the booking service: appointment
// creation and status changes, plus the schedule configuration the
// availability engine reads.
package booking

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/decorstudio/platform/libs/apperr"
	"github.com/decorstudio/platform/libs/db"
	"github.com/decorstudio/platform/libs/metrics"
	"github.com/decorstudio/platform/libs/notify"
	"github.com/decorstudio/platform/services/booking-service/internal/availability"
	"github.com/decorstudio/platform/services/booking-service/internal/model"
)

var tracer = otel.Tracer("booking-service/booking")

// Tx is what the write path may do inside its serializable transaction.
type Tx interface {
	availability.Reader
	InsertAppointment(ctx context.Context, a model.Appointment) (model.Appointment, error)
	GetAppointmentForUpdate(ctx context.Context, id string) (model.Appointment, error)
	SetAppointmentStatus(ctx context.Context, id, status string) (model.Appointment, error)
}

type Store interface {
	availability.Reader
	GetAppointment(ctx context.Context, id string) (model.Appointment, error)
	ListAppointments(ctx context.Context, f model.AppointmentFilter) ([]model.Appointment, error)
	UpsertBusinessHours(ctx context.Context, h model.BusinessHours) error
	InsertBlockedSlot(ctx context.Context, b model.BlockedSlot) (model.BlockedSlot, error)
	DeleteBlockedSlot(ctx context.Context, id string) (model.BlockedSlot, error)
	Serializable(ctx context.Context, fn func(Tx) error) error
}

type Notifier interface {
	SendStatusUpdate(ctx context.Context, to notify.Recipient, u notify.StatusUpdate) error
}

type Service struct {
	store    Store
	engine   *availability.Engine
	notifier Notifier
	logger   *slog.Logger
	metrics  *metrics.BookingMetrics
}

func NewService(store Store, engine *availability.Engine, notifier Notifier, logger *slog.Logger, m *metrics.BookingMetrics) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, engine: engine, notifier: notifier, logger: logger, metrics: m}
}

type CreateInput struct {
	ClientName  string `json:"client_name"`
	ClientEmail string `json:"client_email"`
	ClientPhone string `json:"client_phone"`
	Date        string `json:"date"`
	StartTime   string `json:"start_time"`
	EventType   string `json:"event_type"`
	Message     string `json:"message"`
}

const (
	maxNameLen    = 200
	maxMessageLen = 2000
)

func (in *CreateInput) normalize() error {
	const op = "booking.create"
	in.ClientName = strings.TrimSpace(in.ClientName)
	in.ClientEmail = strings.TrimSpace(in.ClientEmail)
	in.ClientPhone = strings.TrimSpace(in.ClientPhone)
	in.Date = strings.TrimSpace(in.Date)
	in.StartTime = strings.TrimSpace(in.StartTime)
	in.EventType = strings.TrimSpace(in.EventType)
	in.Message = strings.TrimSpace(in.Message)

	switch {
	case in.ClientName == "":
		return apperr.Validation(op, "client_name is required")
	case len(in.ClientName) > maxNameLen:
		return apperr.Validation(op, "client_name is too long")
	case in.ClientPhone == "":
		return apperr.Validation(op, "client_phone is required")
	case in.EventType == "":
		return apperr.Validation(op, "event_type is required")
	case len(in.Message) > maxMessageLen:
		return apperr.Validation(op, "message is too long")
	}
	addr, err := mail.ParseAddress(in.ClientEmail)
	if err != nil || addr.Address != in.ClientEmail {
		return apperr.Validation(op, "client_email is not a valid address")
	}
	return nil
}

// CreateAppointment re-checks the requested slot inside a serializable
// transaction and inserts the appointment as pending. A concurrent booking
// of the same slot loses with ErrSlotUnavailable, either at the re-check,
// on the active-slot unique index or as a serialization failure.
func (s *Service) CreateAppointment(ctx context.Context, in CreateInput) (appt model.Appointment, err error) {
	ctx, span := tracer.Start(ctx, "booking.CreateAppointment")
	defer func() {
		s.metrics.ObserveBooking(outcomeOf(err))
		if err != nil && apperr.Kind(err) == apperr.ErrStorage {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := in.normalize(); err != nil {
		return model.Appointment{}, err
	}
	span.SetAttributes(attribute.String("booking.date", in.Date), attribute.String("booking.start", in.StartTime))

	err = s.store.Serializable(ctx, func(tx Tx) error {
		end, err := s.engine.CheckSlot(ctx, tx, in.Date, in.StartTime)
		if err != nil {
			return err
		}
		appt, err = tx.InsertAppointment(ctx, model.Appointment{
			ClientName:  in.ClientName,
			ClientEmail: in.ClientEmail,
			ClientPhone: in.ClientPhone,
			Date:        in.Date,
			StartTime:   normalizeStart(in.StartTime),
			EndTime:     end,
			EventType:   in.EventType,
			Message:     in.Message,
			Status:      model.StatusPending,
		})
		return err
	})
	if err != nil {
		return model.Appointment{}, translateWriteError("booking.create", in.Date, in.StartTime, err)
	}

	s.engine.Invalidate(ctx, appt.Date)
	s.notifyStatus(ctx, appt)
	s.logger.InfoContext(ctx, "appointment created", "appointment_id", appt.ID, "date", appt.Date, "start_time", appt.StartTime)
	return appt, nil
}

// UpdateStatus moves an appointment between pending, confirmed and
// cancelled. Reviving a cancelled appointment has to win its slot back.
func (s *Service) UpdateStatus(ctx context.Context, id, status string) (model.Appointment, error) {
	const op = "booking.update_status"
	ctx, span := tracer.Start(ctx, "booking.UpdateStatus")
	defer span.End()

	status = strings.TrimSpace(status)
	if !model.ValidStatus(status) {
		return model.Appointment{}, apperr.Validation(op, "unknown status %q", status)
	}
	if !validID(id) {
		return model.Appointment{}, apperr.NotFound(op, "appointment")
	}

	var (
		updated     model.Appointment
		changed     bool
		date, start string
	)
	err := s.store.Serializable(ctx, func(tx Tx) error {
		current, err := tx.GetAppointmentForUpdate(ctx, id)
		if err != nil {
			if db.IsNotFound(err) {
				return apperr.NotFound(op, "appointment")
			}
			return err
		}
		date, start = current.Date, current.StartTime
		if current.Status == status {
			updated = current
			return nil
		}
		if !current.Active() {
			if _, err := s.engine.CheckSlot(ctx, tx, current.Date, current.StartTime); err != nil {
				return err
			}
		}
		updated, err = tx.SetAppointmentStatus(ctx, id, status)
		changed = err == nil
		return err
	})
	if err != nil {
		return model.Appointment{}, translateWriteError(op, date, start, err)
	}
	if !changed {
		return updated, nil
	}

	s.engine.Invalidate(ctx, updated.Date)
	s.notifyStatus(ctx, updated)
	s.logger.InfoContext(ctx, "appointment status changed", "appointment_id", updated.ID, "status", updated.Status)
	return updated, nil
}

func (s *Service) Get(ctx context.Context, id string) (model.Appointment, error) {
	const op = "booking.get"
	if !validID(id) {
		return model.Appointment{}, apperr.NotFound(op, "appointment")
	}
	a, err := s.store.GetAppointment(ctx, id)
	if db.IsNotFound(err) {
		return model.Appointment{}, apperr.NotFound(op, "appointment")
	}
	if err != nil {
		return model.Appointment{}, apperr.Storage(op, err)
	}
	return a, nil
}

func (s *Service) List(ctx context.Context, f model.AppointmentFilter) ([]model.Appointment, error) {
	const op = "booking.list"
	loc := s.engine.Policy().Location
	for _, d := range []string{f.From, f.To} {
		if d == "" {
			continue
		}
		if _, err := availability.ParseDate(d, loc); err != nil {
			return nil, err
		}
	}
	if f.Status != "" && !model.ValidStatus(f.Status) {
		return nil, apperr.Validation(op, "unknown status %q", f.Status)
	}
	appts, err := s.store.ListAppointments(ctx, f)
	if err != nil {
		return nil, apperr.Storage(op, err)
	}
	if appts == nil {
		appts = []model.Appointment{}
	}
	return appts, nil
}

func (s *Service) notifyStatus(ctx context.Context, a model.Appointment) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.SendStatusUpdate(ctx,
		notify.Recipient{Email: a.ClientEmail, Name: a.ClientName},
		notify.StatusUpdate{
			AppointmentID: a.ID,
			Date:          a.Date,
			StartTime:     a.StartTime,
			EventType:     a.EventType,
			Status:        a.Status,
		})
	if err != nil {
		s.logger.WarnContext(ctx, "status notification failed", "appointment_id", a.ID, "status", a.Status, "err", err)
	}
}

// translateWriteError maps the storage backstops to ErrSlotUnavailable and
// leaves typed errors alone.
func translateWriteError(op, date, start string, err error) error {
	if db.IsUniqueViolation(err) || db.IsSerializationFailure(err) {
		return apperr.SlotUnavailable(op, date, start)
	}
	return apperr.Storage(op, err)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "created"
	case errors.Is(err, apperr.ErrSlotUnavailable):
		return "slot_unavailable"
	case errors.Is(err, apperr.ErrValidation):
		return "invalid"
	default:
		return "error"
	}
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func normalizeStart(s string) string {
	c, err := availability.ParseStart(s)
	if err != nil {
		return s
	}
	return c.String()
}
