package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"qrportal/internal/model"
)

// GetStandardHours returns the weekly hours of dayOfWeek (0=Monday).
func (db *DB) GetStandardHours(ctx context.Context, dayOfWeek int) (*model.StandardHours, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, day_of_week, time_ranges, updated_at
		FROM standard_hours
		WHERE day_of_week = ?`, dayOfWeek)

	s, err := scanStandardHours(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	return s, err
}

// ListStandardHours returns every configured weekday ordered Monday first.
func (db *DB) ListStandardHours(ctx context.Context) ([]model.StandardHours, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, day_of_week, time_ranges, updated_at
		FROM standard_hours
		ORDER BY day_of_week`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.StandardHours
	for rows.Next() {
		s, err := scanStandardHours(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// UpsertStandardHours replaces the ranges of a weekday in place.
func (db *DB) UpsertStandardHours(ctx context.Context, dayOfWeek int, ranges []string) error {
	return upsertStandardHours(ctx, db.DB, dayOfWeek, ranges)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertStandardHours(ctx context.Context, ex execer, dayOfWeek int, ranges []string) error {
	if dayOfWeek < 0 || dayOfWeek > 6 {
		return fmt.Errorf("day_of_week %d out of range 0-6", dayOfWeek)
	}
	encoded, err := encodeList(ranges)
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx, `
		INSERT INTO standard_hours (day_of_week, time_ranges, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(day_of_week) DO UPDATE SET
			time_ranges = excluded.time_ranges,
			updated_at = excluded.updated_at`,
		dayOfWeek, encoded, time.Now().UTC(),
	)
	return err
}

func scanStandardHours(row scanner) (*model.StandardHours, error) {
	var s model.StandardHours
	var raw string
	if err := row.Scan(&s.ID, &s.DayOfWeek, &raw, &s.UpdatedAt); err != nil {
		return nil, err
	}
	ranges, err := decodeList(raw)
	if err != nil {
		return nil, err
	}
	s.TimeRanges = ranges
	return &s, nil
}

// GetException returns the exception of a specific date.
func (db *DB) GetException(ctx context.Context, date time.Time) (*model.HourException, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, exception_date, closed, time_ranges, note, created_at, updated_at
		FROM hour_exceptions
		WHERE exception_date = ?`, formatDate(date))

	e, err := db.scanException(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	return e, err
}

// UpsertException creates or replaces the exception of e.Date.
func (db *DB) UpsertException(ctx context.Context, e *model.HourException) error {
	if e == nil {
		return fmt.Errorf("exception is nil")
	}
	encoded, err := encodeList(e.TimeRanges)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = db.ExecContext(ctx, `
		INSERT INTO hour_exceptions (exception_date, closed, time_ranges, note, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(exception_date) DO UPDATE SET
			closed = excluded.closed,
			time_ranges = excluded.time_ranges,
			note = excluded.note,
			updated_at = excluded.updated_at`,
		formatDate(e.Date), e.Closed, encoded, nullString(e.Note), now, now,
	)
	return err
}

// SetDayOff marks date as closed unless an exception already exists for it.
// Returns true when a row was created.
func (db *DB) SetDayOff(ctx context.Context, date time.Time, note string) (bool, error) {
	var notePtr *string
	if note != "" {
		notePtr = &note
	}
	now := time.Now().UTC()
	res, err := db.ExecContext(ctx, `
		INSERT INTO hour_exceptions (exception_date, closed, time_ranges, note, created_at, updated_at)
		VALUES (?, 1, '[]', ?, ?, ?)
		ON CONFLICT(exception_date) DO NOTHING`,
		formatDate(date), nullString(notePtr), now, now,
	)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// DeleteException removes the exception of a date. Missing rows are not an error.
func (db *DB) DeleteException(ctx context.Context, date time.Time) error {
	_, err := db.ExecContext(ctx,
		"DELETE FROM hour_exceptions WHERE exception_date = ?",
		formatDate(date),
	)
	return err
}

// ListExceptions returns all exceptions within [from, to], ordered by date.
func (db *DB) ListExceptions(ctx context.Context, from, to time.Time) ([]model.HourException, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, exception_date, closed, time_ranges, note, created_at, updated_at
		FROM hour_exceptions
		WHERE exception_date >= ? AND exception_date <= ?
		ORDER BY exception_date`,
		formatDate(from), formatDate(to),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.HourException
	for rows.Next() {
		e, err := db.scanException(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (db *DB) scanException(row scanner) (*model.HourException, error) {
	var e model.HourException
	var date, raw string
	var note sql.NullString
	if err := row.Scan(&e.ID, &date, &e.Closed, &raw, &note, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	d, err := db.parseDate(date)
	if err != nil {
		return nil, err
	}
	ranges, err := decodeList(raw)
	if err != nil {
		return nil, err
	}
	e.Date = d
	e.TimeRanges = ranges
	e.Note = stringPtr(note)
	return &e, nil
}
