package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"qrportal/internal/model"
)

// GetAvailability returns the informational slots of a date.
func (db *DB) GetAvailability(ctx context.Context, date time.Time) (*model.Availability, error) {
	var a model.Availability
	var day, raw string
	err := db.QueryRowContext(ctx, `
		SELECT id, availability_date, time_slots, created_at, updated_at
		FROM availability
		WHERE availability_date = ?`, formatDate(date),
	).Scan(&a.ID, &day, &raw, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if a.Date, err = db.parseDate(day); err != nil {
		return nil, err
	}
	if a.TimeSlots, err = decodeList(raw); err != nil {
		return nil, err
	}
	return &a, nil
}

// UpsertAvailability replaces the slots of a date.
func (db *DB) UpsertAvailability(ctx context.Context, date time.Time, slots []string) error {
	encoded, err := encodeList(slots)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = db.ExecContext(ctx, `
		INSERT INTO availability (availability_date, time_slots, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(availability_date) DO UPDATE SET
			time_slots = excluded.time_slots,
			updated_at = excluded.updated_at`,
		formatDate(date), encoded, now, now,
	)
	return err
}
