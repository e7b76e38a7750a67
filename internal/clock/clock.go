// Package clock holds the calendar helpers shared by the resolver and the
// status lifecycle: the facility time zone, Monday-start weeks and month spans.
package clock

import (
	"errors"
	"fmt"
	"time"
)

// DefaultTimezone is used when the configuration does not name a zone.
const DefaultTimezone = "Asia/Bangkok"

// DateLayout is the wire and storage format of calendar dates.
const DateLayout = "2006-01-02"

// ErrInvalidMonth is returned for a month outside 1..12.
var ErrInvalidMonth = errors.New("invalid month")

// Clock supplies the current instant in the facility time zone.
type Clock interface {
	Now() time.Time
	Location() *time.Location
}

// Zoned is the production clock.
type Zoned struct {
	loc *time.Location
}

// NewZoned returns a clock anchored to loc. A nil loc means UTC.
func NewZoned(loc *time.Location) *Zoned {
	if loc == nil {
		loc = time.UTC
	}
	return &Zoned{loc: loc}
}

func (z *Zoned) Now() time.Time { return time.Now().In(z.loc) }

func (z *Zoned) Location() *time.Location { return z.loc }

// Fixed always reports the same instant. Used by tests and by callers that
// need to resolve "as of" a given moment.
type Fixed struct {
	At time.Time
}

func (f Fixed) Now() time.Time { return f.At }

func (f Fixed) Location() *time.Location { return f.At.Location() }

// LoadLocation resolves a named zone, falling back to DefaultTimezone when
// name is empty.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

// DateOf truncates t to midnight in its own location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Today returns the current calendar date of c.
func Today(c Clock) time.Time {
	return DateOf(c.Now())
}

// WeekdayIndex maps t to 0=Monday .. 6=Sunday.
func WeekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// MondayOf returns the Monday of the week containing t.
func MondayOf(t time.Time) time.Time {
	d := DateOf(t)
	return d.AddDate(0, 0, -WeekdayIndex(d))
}

// AddDays moves a calendar date by n days. AddDate keeps wall-clock midnight
// across DST shifts, unlike Add(24h).
func AddDays(date time.Time, n int) time.Time {
	return date.AddDate(0, 0, n)
}

// MonthBounds returns the first and last day of the month. The last day is
// day 1 of the following month minus one day.
func MonthBounds(year int, month time.Month, loc *time.Location) (first, last time.Time, err error) {
	if month < time.January || month > time.December {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %d", ErrInvalidMonth, int(month))
	}
	if loc == nil {
		loc = time.UTC
	}
	first = time.Date(year, month, 1, 0, 0, 0, 0, loc)
	nextYear, nextMonth := year, month+1
	if month == time.December {
		nextYear, nextMonth = year+1, time.January
	}
	last = time.Date(nextYear, nextMonth, 1, 0, 0, 0, 0, loc).AddDate(0, 0, -1)
	return first, last, nil
}

// MonthDays lists every date of the month in order.
func MonthDays(year int, month time.Month, loc *time.Location) ([]time.Time, error) {
	first, last, err := MonthBounds(year, month, loc)
	if err != nil {
		return nil, err
	}
	days := make([]time.Time, 0, last.Day())
	for d := first; !d.After(last); d = AddDays(d, 1) {
		days = append(days, d)
	}
	return days, nil
}

// ParseDate parses a YYYY-MM-DD date in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", s, err)
	}
	return t, nil
}

// FormatDate renders a calendar date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// MinuteOfDay returns minutes since local midnight.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// HHMM formats t's wall clock as zero-padded HH:MM.
func HHMM(t time.Time) string {
	return t.Format("15:04")
}
