package availability

import (
	"fmt"
	"time"

	"github.com/decorstudio/platform/libs/apperr"
)

const DateLayout = "2006-01-02"

// Clock is a time of day in minutes since midnight. 24:00 is only valid as
// the end of a range.
type Clock int

const EndOfDay Clock = 24 * 60

// ParseClock accepts HH:MM, and HH:MM:00 as Postgres renders TIME values.
func ParseClock(s string) (Clock, error) {
	bad := apperr.Validation("parse time", "invalid time %q, want HH:MM", s)
	if len(s) == 8 {
		if s[5] != ':' || s[6:] != "00" {
			return 0, bad
		}
		s = s[:5]
	}
	if len(s) != 5 || s[2] != ':' {
		return 0, bad
	}
	h, ok1 := twoDigits(s[0:2])
	m, ok2 := twoDigits(s[3:5])
	if !ok1 || !ok2 || m > 59 {
		return 0, bad
	}
	c := Clock(h*60 + m)
	if c > EndOfDay {
		return 0, bad
	}
	return c, nil
}

func twoDigits(s string) (int, bool) {
	if s[0] < '0' || s[0] > '9' || s[1] < '0' || s[1] > '9' {
		return 0, false
	}
	return int(s[0]-'0')*10 + int(s[1]-'0'), true
}

// ParseStart is ParseClock without the 24:00 end bound.
func ParseStart(s string) (Clock, error) {
	c, err := ParseClock(s)
	if err != nil {
		return 0, err
	}
	if c == EndOfDay {
		return 0, apperr.Validation("parse time", "24:00 is not a valid start time")
	}
	return c, nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// On returns the instant of c on day in loc. Wall-clock arithmetic goes
// through time.Date so DST transitions resolve the way loc defines them.
func (c Clock) On(day time.Time, loc *time.Location) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, int(c)/60, int(c)%60, 0, 0, loc)
}

// ParseDate parses YYYY-MM-DD as midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, apperr.Validation("parse date", "invalid date %q, want YYYY-MM-DD", s)
	}
	return d, nil
}

// DateOf truncates t to its calendar day in loc.
func DateOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
