package availability

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/decorstudio/platform/libs/apperr"
	"github.com/decorstudio/platform/libs/metrics"
	"github.com/decorstudio/platform/services/booking-service/internal/model"
)

type memReader struct {
	mu     sync.Mutex
	hours  map[int]model.BusinessHours
	blocks []model.BlockedSlot
	appts  []model.Appointment
	failOn string
	reads  map[string]int
}

func newMemReader() *memReader {
	return &memReader{hours: map[int]model.BusinessHours{1: mondayHours()}, reads: map[string]int{}}
}

var errStoreDown = errors.New("store unreachable")

func (m *memReader) hit(op string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads[op]++
	if m.failOn == op {
		return errStoreDown
	}
	return nil
}

func (m *memReader) BusinessHoursFor(_ context.Context, weekday int) (model.BusinessHours, error) {
	if err := m.hit("hours"); err != nil {
		return model.BusinessHours{}, err
	}
	h, ok := m.hours[weekday]
	if !ok {
		return model.BusinessHours{Weekday: weekday}, nil
	}
	return h, nil
}

func (m *memReader) ListBusinessHours(_ context.Context) ([]model.BusinessHours, error) {
	if err := m.hit("hours"); err != nil {
		return nil, err
	}
	var out []model.BusinessHours
	for _, h := range m.hours {
		out = append(out, h)
	}
	return out, nil
}

func (m *memReader) BlockedSlotsBetween(_ context.Context, from, to string) ([]model.BlockedSlot, error) {
	if err := m.hit("blocks"); err != nil {
		return nil, err
	}
	var out []model.BlockedSlot
	for _, b := range m.blocks {
		if b.Date >= from && b.Date <= to {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memReader) ActiveAppointmentsBetween(_ context.Context, from, to string) ([]model.Appointment, error) {
	if err := m.hit("appointments"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Appointment
	for _, a := range m.appts {
		if a.Date >= from && a.Date <= to && a.Active() {
			out = append(out, a)
		}
	}
	return out, nil
}

func newTestEngine(t *testing.T, r Reader, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	e, err := NewEngine(r, testPolicy(), opts...)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func TestSlotsForDateIsDeterministic(t *testing.T) {
	r := newMemReader()
	r.blocks = []model.BlockedSlot{{ID: "b1", Date: testMonday, StartTime: "13:00", EndTime: "14:00"}}
	r.appts = []model.Appointment{{ID: "a1", Date: testMonday, StartTime: "10:00", EndTime: "11:00", Status: model.StatusConfirmed}}
	e := newTestEngine(t, r)

	first, err := e.SlotsForDate(context.Background(), testMonday)
	if err != nil {
		t.Fatalf("SlotsForDate: %v", err)
	}
	second, err := e.SlotsForDate(context.Background(), testMonday)
	if err != nil {
		t.Fatalf("SlotsForDate: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("grids differ:\n%v\n%v", first, second)
	}
	if len(availableTimes(first)) != 7 {
		t.Fatalf("expected 7 available slots, got %v", availableTimes(first))
	}
}

func TestSlotsForDateScenarioCCancellationFreesSlot(t *testing.T) {
	r := newMemReader()
	r.appts = []model.Appointment{{ID: "a1", Date: testMonday, StartTime: "10:00", EndTime: "11:00", Status: model.StatusConfirmed}}
	e := newTestEngine(t, r)

	slots, err := e.SlotsForDate(context.Background(), testMonday)
	if err != nil {
		t.Fatalf("SlotsForDate: %v", err)
	}
	if slotAvailable(slots, "10:00") {
		t.Fatal("10:00 should be taken by the confirmed appointment")
	}

	r.mu.Lock()
	r.appts[0].Status = model.StatusCancelled
	r.mu.Unlock()

	slots, err = e.SlotsForDate(context.Background(), testMonday)
	if err != nil {
		t.Fatalf("SlotsForDate: %v", err)
	}
	if !slotAvailable(slots, "10:00") {
		t.Fatal("cancelling the appointment should free 10:00")
	}
}

func TestSlotsForDateFailsClosed(t *testing.T) {
	r := newMemReader()
	r.failOn = "appointments"
	e := newTestEngine(t, r)

	slots, err := e.SlotsForDate(context.Background(), testMonday)
	if !errors.Is(err, apperr.ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if len(availableTimes(slots)) != 0 {
		t.Fatalf("store failure must not yield available slots, got %v", slots)
	}
}

func TestSlotsForDatePastAndInvalid(t *testing.T) {
	e := newTestEngine(t, newMemReader())

	slots, err := e.SlotsForDate(context.Background(), "2026-03-02")
	if err != nil || len(slots) != 0 || slots == nil {
		t.Fatalf("past date should give an empty list, got %v %v", slots, err)
	}
	if _, err := e.SlotsForDate(context.Background(), "16/03/2026"); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDatesWithOpenSlots(t *testing.T) {
	r := newMemReader()
	r.blocks = []model.BlockedSlot{{ID: "closed", Date: "2026-03-16", StartTime: "00:00", EndTime: "24:00"}}
	e := newTestEngine(t, r)

	dates, err := e.DatesWithOpenSlots(context.Background(), 1)
	if err != nil {
		t.Fatalf("DatesWithOpenSlots: %v", err)
	}
	// Mondays from 2026-03-06 through 2026-04-06, minus the closed 16th.
	want := []string{"2026-03-09", "2026-03-23", "2026-03-30", "2026-04-06"}
	if !reflect.DeepEqual(dates, want) {
		t.Fatalf("expected %v, got %v", want, dates)
	}
	if r.reads["hours"] != 1 || r.reads["blocks"] != 1 || r.reads["appointments"] != 1 {
		t.Fatalf("expected one read per relation, got %v", r.reads)
	}

	all, err := e.DatesWithOpenSlots(context.Background(), 0)
	if err != nil {
		t.Fatalf("DatesWithOpenSlots: %v", err)
	}
	if all[len(all)-1] != "2026-06-01" {
		t.Fatalf("expected last open Monday before the horizon, got %s", all[len(all)-1])
	}
}

func TestDatesWithOpenSlotsStoreFailure(t *testing.T) {
	r := newMemReader()
	r.failOn = "blocks"
	e := newTestEngine(t, r)
	dates, err := e.DatesWithOpenSlots(context.Background(), 0)
	if !errors.Is(err, apperr.ErrStorage) || len(dates) != 0 {
		t.Fatalf("expected storage error and no dates, got %v %v", dates, err)
	}
}

func TestCheckSlot(t *testing.T) {
	r := newMemReader()
	r.appts = []model.Appointment{{ID: "a1", Date: testMonday, StartTime: "10:00", EndTime: "11:00", Status: model.StatusPending}}
	e := newTestEngine(t, r)
	ctx := context.Background()

	end, err := e.CheckSlot(ctx, r, testMonday, "11:00")
	if err != nil || end != "12:00" {
		t.Fatalf("expected 11:00 bookable until 12:00, got %q %v", end, err)
	}
	if _, err := e.CheckSlot(ctx, r, testMonday, "10:00"); !errors.Is(err, apperr.ErrSlotUnavailable) {
		t.Fatalf("expected slot unavailable, got %v", err)
	}
	if _, err := e.CheckSlot(ctx, r, testMonday, "10:30"); !errors.Is(err, apperr.ErrSlotUnavailable) {
		t.Fatalf("off-grid start must be unavailable, got %v", err)
	}
	if _, err := e.CheckSlot(ctx, r, "2026-03-02", "10:00"); !errors.Is(err, apperr.ErrSlotUnavailable) {
		t.Fatalf("past date must be unavailable, got %v", err)
	}
	if _, err := e.CheckSlot(ctx, r, testMonday, "25:00"); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestEngineCacheIsInvalidated(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	reg := prometheus.NewRegistry()
	r := newMemReader()
	e := newTestEngine(t, r, WithCache(NewRedisCache(rdb, time.Minute, "test")), WithMetrics(metrics.NewBookingMetrics(reg)))
	ctx := context.Background()

	if _, err := e.SlotsForDate(ctx, testMonday); err != nil {
		t.Fatalf("SlotsForDate: %v", err)
	}
	if _, err := e.SlotsForDate(ctx, testMonday); err != nil {
		t.Fatalf("SlotsForDate: %v", err)
	}
	if r.reads["appointments"] != 1 {
		t.Fatalf("second read should come from cache, got %d store reads", r.reads["appointments"])
	}

	r.mu.Lock()
	r.appts = append(r.appts, model.Appointment{ID: "a9", Date: testMonday, StartTime: "09:00", EndTime: "10:00", Status: model.StatusPending})
	r.mu.Unlock()
	e.Invalidate(ctx, testMonday)

	slots, err := e.SlotsForDate(ctx, testMonday)
	if err != nil {
		t.Fatalf("SlotsForDate: %v", err)
	}
	if slotAvailable(slots, "09:00") {
		t.Fatal("invalidated cache must not serve the stale grid")
	}
	if !mr.Exists("test:slots:" + testMonday) {
		t.Fatal("expected grid to be cached again")
	}
	mr.FastForward(2 * time.Minute)
	if mr.Exists("test:slots:" + testMonday) {
		t.Fatal("expected cache entry to expire")
	}
}

func TestRedisCacheInvalidateAll(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	c := NewRedisCache(rdb, time.Minute, "test")
	ctx := context.Background()

	for _, d := range []string{"2026-03-16", "2026-03-23"} {
		if err := c.Set(ctx, d, []model.Slot{{Time: "09:00", Available: true}}); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}
	_ = mr.Set("unrelated", "keep")

	if err := c.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "2026-03-16"); ok {
		t.Fatal("expected entry to be gone")
	}
	if !mr.Exists("unrelated") {
		t.Fatal("invalidate must only touch slot keys")
	}
}

func slotAvailable(slots []model.Slot, at string) bool {
	for _, s := range slots {
		if s.Time == at {
			return s.Available
		}
	}
	return false
}
