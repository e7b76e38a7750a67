// Package status owns the append-only status log: the newest record is the
// current status, and an expired record is superseded lazily on read.
package status

import (
	"context"
	"errors"
	"fmt"
	"time"

	"qrportal/internal/clock"
	"qrportal/internal/events"
	"qrportal/internal/metrics"
	"qrportal/internal/model"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// Repository stores status records. Records are only ever inserted.
type Repository interface {
	// LatestStatus returns the newest record or model.ErrNotFound.
	LatestStatus(ctx context.Context) (*model.Status, error)

	// InsertStatus appends s and fills in its ID.
	InsertStatus(ctx context.Context, s *model.Status) error

	// InsertStatusIfLatest appends s only while the newest record still has
	// expectedID (0 means the log is empty). It returns the record that is
	// current afterwards: s when inserted, otherwise the newer head.
	InsertStatusIfLatest(ctx context.Context, expectedID int64, s *model.Status) (*model.Status, error)

	// ListStatuses returns up to limit records, newest first.
	ListStatuses(ctx context.Context, limit int) ([]model.Status, error)
}

// Update carries the fields of a manual status change.
type Update struct {
	Kind        model.StatusKind
	DateFrom    *time.Time
	DateTo      *time.Time
	Description *string
	NextReturn  *time.Time
}

// Manager is the only writer of status records.
type Manager struct {
	repo   Repository
	clock  clock.Clock
	events events.Publisher
	logger zerolog.Logger
}

// NewManager wires a manager. A nil publisher discards events.
func NewManager(repo Repository, c clock.Clock, pub events.Publisher, logger zerolog.Logger) *Manager {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Manager{
		repo:   repo,
		clock:  c,
		events: pub,
		logger: logger.With().Str("component", "status").Logger(),
	}
}

// Current returns the current status. An empty log gets a default "present"
// record; a record whose date_to lies before today is superseded by a fresh
// "present" record while the expired one stays in history.
func (m *Manager) Current(ctx context.Context) (*model.Status, error) {
	now := m.clock.Now()

	current, err := m.repo.LatestStatus(ctx)
	if errors.Is(err, model.ErrNotFound) {
		current, err = m.supersede(ctx, 0, now, "initial")
	}
	if err != nil {
		return nil, fmt.Errorf("get current status: %w", err)
	}

	// A lost race can hand back a newer head that is itself expired, so the
	// check repeats until the head is current.
	for current.ExpiredOn(clock.DateOf(now)) {
		m.logger.Info().
			Int64("status_id", current.ID).
			Str("type", string(current.Kind)).
			Time("date_to", *current.DateTo).
			Msg("status expired, reverting to present")
		current, err = m.supersede(ctx, current.ID, now, "expired")
		if err != nil {
			return nil, fmt.Errorf("supersede expired status: %w", err)
		}
	}
	return current, nil
}

// supersede appends a default record unless another caller already moved the
// head past expectedID, in which case that caller's record is returned. Both
// the first default and a lazy revert publish status.expired.
func (m *Manager) supersede(ctx context.Context, expectedID int64, now time.Time, reason string) (*model.Status, error) {
	fresh := model.NewPresentStatus(now)
	head, err := m.repo.InsertStatusIfLatest(ctx, expectedID, fresh)
	if err != nil {
		return nil, err
	}
	if head.ID == fresh.ID {
		metrics.IncStatusRecord(string(head.Kind), reason)
		m.publish(events.TypeStatusExpired, head)
	}
	return head, nil
}

// Set appends a new record that becomes current. Date ordering is not checked.
func (m *Manager) Set(ctx context.Context, u Update) (*model.Status, error) {
	if !u.Kind.Valid() {
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidStatusKind, u.Kind)
	}

	now := m.clock.Now()
	s := &model.Status{
		Kind:        u.Kind,
		DateFrom:    dateOnly(u.DateFrom),
		DateTo:      dateOnly(u.DateTo),
		Description: u.Description,
		NextReturn:  dateOnly(u.NextReturn),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := m.repo.InsertStatus(ctx, s); err != nil {
		return nil, fmt.Errorf("insert status: %w", err)
	}

	metrics.IncStatusRecord(string(s.Kind), "manual")
	m.publish(events.TypeStatusChanged, s)
	m.logger.Info().Int64("status_id", s.ID).Str("type", string(s.Kind)).Msg("status updated")
	return s, nil
}

// IsAvailable reports whether the current status is "present".
func (m *Manager) IsAvailable(ctx context.Context) (bool, error) {
	s, err := m.Current(ctx)
	if err != nil {
		return false, err
	}
	return s.Kind == model.StatusPresent, nil
}

// History returns the newest limit records.
func (m *Manager) History(ctx context.Context, limit int) ([]model.Status, error) {
	if limit <= 0 {
		limit = 50
	}
	return m.repo.ListStatuses(ctx, limit)
}

func (m *Manager) publish(eventType string, s *model.Status) {
	payload, err := json.Marshal(s)
	if err != nil {
		m.logger.Error().Err(err).Msg("marshal status event")
		return
	}
	m.events.Publish(events.Event{Type: eventType, Payload: payload, CreatedAt: s.CreatedAt})
}

func dateOnly(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := clock.DateOf(*t)
	return &d
}
