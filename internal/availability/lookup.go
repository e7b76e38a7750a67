// Package availability reads the informational time slots published per date.
// Slots never change the open/closed answer of the schedule resolver.
package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"qrportal/internal/clock"
	"qrportal/internal/model"
)

// Repository returns model.ErrNotFound when a date has no slots.
type Repository interface {
	GetAvailability(ctx context.Context, date time.Time) (*model.Availability, error)
}

// Lookup is a thin read-only view over Repository.
type Lookup struct {
	repo Repository
}

func NewLookup(repo Repository) *Lookup {
	return &Lookup{repo: repo}
}

// Get returns the slots for date, or nil when none were published.
func (l *Lookup) Get(ctx context.Context, date time.Time) (*model.Availability, error) {
	a, err := l.repo.GetAvailability(ctx, clock.DateOf(date))
	if errors.Is(err, model.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get availability for %s: %w", clock.FormatDate(date), err)
	}
	return a, nil
}
