// Package timerange parses the "HH:MM-HH:MM" opening range format used by the
// site configuration and the persisted hour records.
package timerange

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedRange marks data that does not follow "HH:MM-HH:MM".
var ErrMalformedRange = errors.New("malformed time range")

// Range is a same-day opening interval in minutes since midnight.
type Range struct {
	Start int
	End   int
}

// Parse reads a single "HH:MM-HH:MM" range. Both operands must be zero-padded
// 24-hour clock values.
func Parse(s string) (Range, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return Range{}, fmt.Errorf("%w: %q", ErrMalformedRange, s)
	}
	start, err := ParseClock(parts[0])
	if err != nil {
		return Range{}, fmt.Errorf("%w: %q: start: %v", ErrMalformedRange, s, err)
	}
	end, err := ParseClock(parts[1])
	if err != nil {
		return Range{}, fmt.Errorf("%w: %q: end: %v", ErrMalformedRange, s, err)
	}
	return Range{Start: start, End: end}, nil
}

// ParseClock converts "HH:MM" to minutes since midnight.
func ParseClock(s string) (int, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("invalid clock %q, expected HH:MM", s)
	}
	hour, err := strconv.Atoi(s[:2])
	if err != nil || hour < 0 || hour > 23 || !isDigits(s[:2]) {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(s[3:])
	if err != nil || minute < 0 || minute > 59 || !isDigits(s[3:]) {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour*60 + minute, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Contains reports whether minute lies in [Start, End], both ends inclusive.
func (r Range) Contains(minute int) bool {
	return r.Start <= minute && minute <= r.End
}

// StartClock renders the start as HH:MM.
func (r Range) StartClock() string { return FormatClock(r.Start) }

// EndClock renders the end as HH:MM.
func (r Range) EndClock() string { return FormatClock(r.End) }

func (r Range) String() string {
	return r.StartClock() + "-" + r.EndClock()
}

// FormatClock renders minutes since midnight as HH:MM.
func FormatClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// ParseAll parses every range in order, failing on the first malformed one.
func ParseAll(ranges []string) ([]Range, error) {
	out := make([]Range, 0, len(ranges))
	for _, s := range ranges {
		r, err := Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Validate is the write-time check: well-formed, and start not after end.
// Ranges crossing midnight are rejected.
func Validate(ranges []string) error {
	parsed, err := ParseAll(ranges)
	if err != nil {
		return err
	}
	for i, r := range parsed {
		if r.Start > r.End {
			return fmt.Errorf("%w: %q: start is after end", ErrMalformedRange, ranges[i])
		}
	}
	return nil
}
