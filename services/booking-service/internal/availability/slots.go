package availability

import (
	"fmt"
	"time"

	"github.com/decorstudio/platform/libs/apperr"
	"github.com/decorstudio/platform/services/booking-service/internal/model"
)

// Interval is a half-open [Start, End) range of wall-clock minutes on one day.
type Interval struct {
	Start Clock
	End   Clock
}

// Overlaps uses half-open semantics: [a,b) overlaps [c,d) iff a < d && c < b.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start < o.End && o.Start < i.End
}

func overlapsAny(slot Interval, busy []Interval) bool {
	for _, b := range busy {
		if slot.Overlaps(b) {
			return true
		}
	}
	return false
}

// Policy holds the booking rules applied on top of the stored schedule.
type Policy struct {
	SlotLength     time.Duration
	MinNotice      time.Duration
	MaxMonthsAhead int
	Location       *time.Location
}

func (p Policy) slotMinutes() Clock {
	return Clock(p.SlotLength / time.Minute)
}

func (p Policy) Validate() error {
	if p.SlotLength < time.Minute || p.SlotLength%time.Minute != 0 {
		return fmt.Errorf("slot length must be a positive whole number of minutes, got %s", p.SlotLength)
	}
	if p.MinNotice < 0 {
		return fmt.Errorf("minimum notice must not be negative, got %s", p.MinNotice)
	}
	if p.MaxMonthsAhead < 1 {
		return fmt.Errorf("booking horizon must be at least one month, got %d", p.MaxMonthsAhead)
	}
	if p.Location == nil {
		return fmt.Errorf("business time zone is required")
	}
	return nil
}

// Horizon is the last bookable calendar day as seen from now.
func (p Policy) Horizon(now time.Time) time.Time {
	return DateOf(now, p.Location).AddDate(0, p.MaxMonthsAhead, 0)
}

// DayInput is everything stored about one calendar day.
type DayInput struct {
	Day          time.Time // midnight in the policy location
	Hours        model.BusinessHours
	Blocks       []model.BlockedSlot
	Appointments []model.Appointment
}

// BuildDay lays the slot grid over the day's opening hours and marks every
// slot that collides with a block, an active appointment, the minimum notice
// or the booking horizon. It reads nothing but its arguments.
func BuildDay(in DayInput, p Policy, now time.Time) ([]model.Slot, error) {
	if !in.Hours.IsOpen {
		return []model.Slot{}, nil
	}
	open, err := ParseClock(in.Hours.OpenTime)
	if err != nil {
		return nil, corrupt("business hours", in.Hours.Weekday, err)
	}
	closing, err := ParseClock(in.Hours.CloseTime)
	if err != nil {
		return nil, corrupt("business hours", in.Hours.Weekday, err)
	}
	if closing <= open {
		return []model.Slot{}, nil
	}

	step := p.slotMinutes()
	busy := make([]Interval, 0, len(in.Blocks)+len(in.Appointments))
	for _, b := range in.Blocks {
		iv, err := blockInterval(b)
		if err != nil {
			return nil, err
		}
		busy = append(busy, iv)
	}
	for _, a := range in.Appointments {
		if !a.Active() {
			continue
		}
		iv, err := appointmentInterval(a, step)
		if err != nil {
			return nil, err
		}
		busy = append(busy, iv)
	}

	earliest := now.Add(p.MinNotice)
	beyondHorizon := in.Day.After(p.Horizon(now))

	slots := make([]model.Slot, 0, int((closing-open)/step))
	for t := open; t+step <= closing; t += step {
		slot := Interval{Start: t, End: t + step}
		available := !beyondHorizon &&
			!overlapsAny(slot, busy) &&
			!t.On(in.Day, p.Location).Before(earliest)
		slots = append(slots, model.Slot{Time: t.String(), Available: available})
	}
	return slots, nil
}

func blockInterval(b model.BlockedSlot) (Interval, error) {
	start, err := ParseClock(b.StartTime)
	if err != nil {
		return Interval{}, corrupt("blocked slot", b.ID, err)
	}
	end, err := ParseClock(b.EndTime)
	if err != nil {
		return Interval{}, corrupt("blocked slot", b.ID, err)
	}
	return Interval{Start: start, End: end}, nil
}

func appointmentInterval(a model.Appointment, fallback Clock) (Interval, error) {
	start, err := ParseClock(a.StartTime)
	if err != nil {
		return Interval{}, corrupt("appointment", a.ID, err)
	}
	end, err := ParseClock(a.EndTime)
	if err != nil || end <= start {
		end = start + fallback
	}
	return Interval{Start: start, End: end}, nil
}

// corrupt reports unreadable stored data as a storage failure so readers
// fail closed instead of returning a validation error to the visitor.
func corrupt(what string, id any, err error) error {
	return apperr.Storage("availability.decode", fmt.Errorf("%s %v: %s", what, id, err.Error()))
}
