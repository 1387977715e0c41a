package availability

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/decorstudio/platform/libs/apperr"
	"github.com/decorstudio/platform/libs/metrics"
	"github.com/decorstudio/platform/services/booking-service/internal/model"
)

var tracer = otel.Tracer("booking-service/availability")

// Reader is the schedule data the engine needs. Storage queries bound to the
// pool and to a transaction both satisfy it.
type Reader interface {
	BusinessHoursFor(ctx context.Context, weekday int) (model.BusinessHours, error)
	ListBusinessHours(ctx context.Context) ([]model.BusinessHours, error)
	BlockedSlotsBetween(ctx context.Context, from, to string) ([]model.BlockedSlot, error)
	ActiveAppointmentsBetween(ctx context.Context, from, to string) ([]model.Appointment, error)
}

// Cache stores computed day grids for a bounded time.
type Cache interface {
	Get(ctx context.Context, date string) ([]model.Slot, bool, error)
	Set(ctx context.Context, date string, slots []model.Slot) error
	// Invalidate drops the given dates, or every entry when none are given.
	Invalidate(ctx context.Context, dates ...string) error
}

type Engine struct {
	reader  Reader
	policy  Policy
	cache   Cache
	now     func() time.Time
	logger  *slog.Logger
	metrics *metrics.BookingMetrics
}

type Option func(*Engine)

func WithCache(c Cache) Option { return func(e *Engine) { e.cache = c } }

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

func WithMetrics(m *metrics.BookingMetrics) Option { return func(e *Engine) { e.metrics = m } }

func NewEngine(r Reader, p Policy, opts ...Option) (*Engine, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{reader: r, policy: p, now: time.Now, logger: slog.Default()}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

func (e *Engine) Policy() Policy { return e.policy }

func (e *Engine) Now() time.Time { return e.now() }

// SlotsForDate returns the day's grid. Past dates yield an empty list and
// dates past the horizon a grid with nothing available.
func (e *Engine) SlotsForDate(ctx context.Context, date string) (slots []model.Slot, err error) {
	ctx, span := tracer.Start(ctx, "availability.SlotsForDate")
	span.SetAttributes(attribute.String("booking.date", date))
	started := time.Now()
	defer func() {
		e.finish(span, "date", started, err)
	}()

	day, err := ParseDate(date, e.policy.Location)
	if err != nil {
		return nil, err
	}
	now := e.now()
	if day.Before(DateOf(now, e.policy.Location)) {
		return []model.Slot{}, nil
	}

	if e.cache != nil {
		cached, ok, cerr := e.cache.Get(ctx, date)
		if cerr != nil {
			e.logger.WarnContext(ctx, "availability cache read failed", "date", date, "err", cerr)
		}
		e.metrics.ObserveCache(ok)
		if ok {
			return cached, nil
		}
	}

	slots, err = e.computeDay(ctx, e.reader, day, now)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		if cerr := e.cache.Set(ctx, date, slots); cerr != nil {
			e.logger.WarnContext(ctx, "availability cache write failed", "date", date, "err", cerr)
		}
	}
	return slots, nil
}

// DatesWithOpenSlots lists, in order, every day from today up to the horizon
// that has at least one available slot. months narrows the horizon; zero or
// anything beyond the configured maximum means the maximum. All schedule
// rows are read once for the whole range against a single "now".
func (e *Engine) DatesWithOpenSlots(ctx context.Context, months int) (dates []string, err error) {
	ctx, span := tracer.Start(ctx, "availability.DatesWithOpenSlots")
	started := time.Now()
	defer func() {
		e.finish(span, "dates", started, err)
	}()

	loc := e.policy.Location
	now := e.now()
	today := DateOf(now, loc)
	if months <= 0 || months > e.policy.MaxMonthsAhead {
		months = e.policy.MaxMonthsAhead
	}
	last := today.AddDate(0, months, 0)
	from, to := today.Format(DateLayout), last.Format(DateLayout)

	hours, err := e.reader.ListBusinessHours(ctx)
	if err != nil {
		return nil, apperr.Storage("availability.hours", err)
	}
	blocks, err := e.reader.BlockedSlotsBetween(ctx, from, to)
	if err != nil {
		return nil, apperr.Storage("availability.blocks", err)
	}
	appts, err := e.reader.ActiveAppointmentsBetween(ctx, from, to)
	if err != nil {
		return nil, apperr.Storage("availability.appointments", err)
	}

	byWeekday := make(map[int]model.BusinessHours, len(hours))
	for _, h := range hours {
		byWeekday[h.Weekday] = h
	}
	blocksByDate := make(map[string][]model.BlockedSlot)
	for _, b := range blocks {
		blocksByDate[b.Date] = append(blocksByDate[b.Date], b)
	}
	apptsByDate := make(map[string][]model.Appointment)
	for _, a := range appts {
		apptsByDate[a.Date] = append(apptsByDate[a.Date], a)
	}

	dates = []string{}
	for d := today; !d.After(last); d = d.AddDate(0, 0, 1) {
		h, ok := byWeekday[int(d.Weekday())]
		if !ok || !h.IsOpen {
			continue
		}
		key := d.Format(DateLayout)
		slots, err := BuildDay(DayInput{Day: d, Hours: h, Blocks: blocksByDate[key], Appointments: apptsByDate[key]}, e.policy, now)
		if err != nil {
			return nil, err
		}
		if anyAvailable(slots) {
			dates = append(dates, key)
		}
	}
	span.SetAttributes(attribute.Int("booking.open_dates", len(dates)))
	return dates, nil
}

// CheckSlot re-runs the day's rules for one requested start against r,
// normally a transaction, and returns the slot's end time. It never consults
// the cache.
func (e *Engine) CheckSlot(ctx context.Context, r Reader, date, start string) (string, error) {
	ctx, span := tracer.Start(ctx, "availability.CheckSlot")
	defer span.End()
	span.SetAttributes(attribute.String("booking.date", date), attribute.String("booking.start", start))

	day, err := ParseDate(date, e.policy.Location)
	if err != nil {
		return "", err
	}
	startClock, err := ParseStart(start)
	if err != nil {
		return "", err
	}
	now := e.now()
	if day.Before(DateOf(now, e.policy.Location)) {
		return "", apperr.SlotUnavailable("availability.check", date, start)
	}

	slots, err := e.computeDay(ctx, r, day, now)
	if err != nil {
		return "", err
	}
	want := startClock.String()
	for _, s := range slots {
		if s.Time == want && s.Available {
			return (startClock + e.policy.slotMinutes()).String(), nil
		}
	}
	return "", apperr.SlotUnavailable("availability.check", date, start)
}

// Invalidate forwards to the cache, if any.
func (e *Engine) Invalidate(ctx context.Context, dates ...string) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Invalidate(ctx, dates...); err != nil {
		e.logger.WarnContext(ctx, "availability cache invalidation failed", "dates", dates, "err", err)
	}
}

func (e *Engine) computeDay(ctx context.Context, r Reader, day, now time.Time) ([]model.Slot, error) {
	date := day.Format(DateLayout)
	hours, err := r.BusinessHoursFor(ctx, int(day.Weekday()))
	if err != nil {
		return nil, apperr.Storage("availability.hours", err)
	}
	if !hours.IsOpen {
		return []model.Slot{}, nil
	}
	blocks, err := r.BlockedSlotsBetween(ctx, date, date)
	if err != nil {
		return nil, apperr.Storage("availability.blocks", err)
	}
	appts, err := r.ActiveAppointmentsBetween(ctx, date, date)
	if err != nil {
		return nil, apperr.Storage("availability.appointments", err)
	}
	return BuildDay(DayInput{Day: day, Hours: hours, Blocks: blocks, Appointments: appts}, e.policy, now)
}

func (e *Engine) finish(span trace.Span, kind string, started time.Time, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, apperr.ErrValidation):
		outcome = "invalid"
	default:
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	e.metrics.ObserveSlotQuery(kind, outcome, time.Since(started))
	span.End()
}

func anyAvailable(slots []model.Slot) bool {
	for _, s := range slots {
		if s.Available {
			return true
		}
	}
	return false
}
