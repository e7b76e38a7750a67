// Package schedule resolves the effective opening hours of a date by laying
// date exceptions over the recurring weekly schedule.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"qrportal/internal/clock"
	"qrportal/internal/model"
	"qrportal/internal/timerange"

	"github.com/rs/zerolog"
)

// Horizon bounds the forward scan of NextOpen, today included.
const Horizon = 14

// HoursRepository is the read side of the hours storage.
// Both lookups return model.ErrNotFound when no record exists.
type HoursRepository interface {
	GetException(ctx context.Context, date time.Time) (*model.HourException, error)
	GetStandardHours(ctx context.Context, dayOfWeek int) (*model.StandardHours, error)
}

// Resolver answers schedule questions. It keeps no state between calls.
type Resolver struct {
	repo   HoursRepository
	clock  clock.Clock
	logger zerolog.Logger
}

// NewResolver creates a resolver reading from repo with "now" taken from c.
func NewResolver(repo HoursRepository, c clock.Clock, logger zerolog.Logger) *Resolver {
	return &Resolver{
		repo:   repo,
		clock:  c,
		logger: logger.With().Str("component", "schedule").Logger(),
	}
}

// ResolveDay returns the effective schedule for date. An exception replaces
// the standard hours entirely; a weekday without standard hours is closed.
func (r *Resolver) ResolveDay(ctx context.Context, date time.Time) (model.DaySchedule, error) {
	date = clock.DateOf(date)

	exc, err := r.repo.GetException(ctx, date)
	switch {
	case err == nil:
		ranges := exc.TimeRanges
		if exc.Closed {
			ranges = nil
		}
		return model.DaySchedule{
			Date:        date,
			Closed:      exc.Closed,
			TimeRanges:  nonNil(ranges),
			Note:        exc.Note,
			IsException: true,
		}, nil
	case !errors.Is(err, model.ErrNotFound):
		return model.DaySchedule{}, fmt.Errorf("get exception for %s: %w", clock.FormatDate(date), err)
	}

	weekday := clock.WeekdayIndex(date)
	std, err := r.repo.GetStandardHours(ctx, weekday)
	switch {
	case err == nil:
		return model.DaySchedule{
			Date:       date,
			Closed:     len(std.TimeRanges) == 0,
			TimeRanges: nonNil(std.TimeRanges),
		}, nil
	case !errors.Is(err, model.ErrNotFound):
		return model.DaySchedule{}, fmt.Errorf("get standard hours for weekday %d: %w", weekday, err)
	}

	return model.DaySchedule{
		Date:       date,
		Closed:     true,
		TimeRanges: []string{},
	}, nil
}

// ResolveWeek returns Monday..Sunday of the week containing anchor.
func (r *Resolver) ResolveWeek(ctx context.Context, anchor time.Time) ([]model.DaySchedule, error) {
	return r.resolveSpan(ctx, clock.MondayOf(anchor), 7)
}

// ResolveMonth returns every day of the month in order.
func (r *Resolver) ResolveMonth(ctx context.Context, year int, month time.Month) ([]model.DaySchedule, error) {
	first, last, err := clock.MonthBounds(year, month, r.clock.Location())
	if err != nil {
		return nil, err
	}
	return r.resolveSpan(ctx, first, last.Day())
}

func (r *Resolver) resolveSpan(ctx context.Context, start time.Time, days int) ([]model.DaySchedule, error) {
	out := make([]model.DaySchedule, 0, days)
	for i := 0; i < days; i++ {
		day, err := r.ResolveDay(ctx, clock.AddDays(start, i))
		if err != nil {
			return nil, err
		}
		out = append(out, day)
	}
	return out, nil
}

// IsOpenNow reports whether the current instant falls inside one of today's
// ranges.
func (r *Resolver) IsOpenNow(ctx context.Context) (bool, error) {
	return r.IsOpenAt(ctx, r.clock.Now())
}

// IsOpenAt evaluates the open state at instant. Range bounds are inclusive.
func (r *Resolver) IsOpenAt(ctx context.Context, instant time.Time) (bool, error) {
	day, err := r.ResolveDay(ctx, instant)
	if err != nil {
		return false, err
	}
	if day.Closed {
		return false, nil
	}

	ranges, err := timerange.ParseAll(day.TimeRanges)
	if err != nil {
		return false, fmt.Errorf("ranges for %s: %w", clock.FormatDate(day.Date), err)
	}
	now := clock.MinuteOfDay(instant)
	for _, rg := range ranges {
		if rg.Contains(now) {
			return true, nil
		}
	}
	return false, nil
}

// NextOpen finds the next opening from the current instant.
func (r *Resolver) NextOpen(ctx context.Context) (*model.NextOpen, error) {
	return r.NextOpenAfter(ctx, r.clock.Now())
}

// NextOpenAfter scans up to Horizon days starting with the day of instant.
// On that first day only ranges starting strictly later than instant count;
// on later days the earliest range wins. Returns nil when nothing opens
// within the horizon.
func (r *Resolver) NextOpenAfter(ctx context.Context, instant time.Time) (*model.NextOpen, error) {
	today := clock.DateOf(instant)
	now := clock.MinuteOfDay(instant)

	for i := 0; i < Horizon; i++ {
		day, err := r.ResolveDay(ctx, clock.AddDays(today, i))
		if err != nil {
			return nil, err
		}
		if day.Closed || len(day.TimeRanges) == 0 {
			continue
		}

		ranges, err := timerange.ParseAll(day.TimeRanges)
		if err != nil {
			return nil, fmt.Errorf("ranges for %s: %w", clock.FormatDate(day.Date), err)
		}

		best := -1
		for j, rg := range ranges {
			if i == 0 && rg.Start <= now {
				continue
			}
			if best < 0 || rg.Start < ranges[best].Start {
				best = j
			}
		}
		if best < 0 {
			continue
		}

		return &model.NextOpen{
			Date:      day.Date,
			Time:      ranges[best].StartClock(),
			TimeRange: day.TimeRanges[best],
		}, nil
	}

	r.logger.Debug().Time("from", instant).Int("horizon_days", Horizon).Msg("no opening within horizon")
	return nil, nil
}

// Today bundles the views the landing page needs from a single "now".
type Today struct {
	Schedule model.DaySchedule `json:"schedule"`
	OpenNow  bool              `json:"open_now"`
	NextOpen *model.NextOpen   `json:"next_open,omitempty"`
}

// ResolveToday answers today's schedule, open state, and next opening using one
// clock reading so all three agree on the date.
func (r *Resolver) ResolveToday(ctx context.Context) (*Today, error) {
	now := r.clock.Now()

	day, err := r.ResolveDay(ctx, now)
	if err != nil {
		return nil, err
	}
	open, err := r.IsOpenAt(ctx, now)
	if err != nil {
		return nil, err
	}
	next, err := r.NextOpenAfter(ctx, now)
	if err != nil {
		return nil, err
	}
	return &Today{Schedule: day, OpenNow: open, NextOpen: next}, nil
}

func nonNil(ranges []string) []string {
	if ranges == nil {
		return []string{}
	}
	return ranges
}
