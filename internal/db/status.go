package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"qrportal/internal/model"
)

const statusColumns = `id, type, date_from, date_to, description, next_return, created_at, updated_at`

// LatestStatus returns the most recently created status record.
func (db *DB) LatestStatus(ctx context.Context) (*model.Status, error) {
	return db.latestStatus(ctx, db.DB)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (db *DB) latestStatus(ctx context.Context, q querier) (*model.Status, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+statusColumns+`
		FROM status
		ORDER BY created_at DESC, id DESC
		LIMIT 1`)
	s, err := db.scanStatus(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	return s, err
}

// InsertStatus appends a record and sets s.ID.
func (db *DB) InsertStatus(ctx context.Context, s *model.Status) error {
	return insertStatus(ctx, db.DB, s)
}

func insertStatus(ctx context.Context, ex execer, s *model.Status) error {
	if s == nil {
		return fmt.Errorf("status is nil")
	}
	res, err := ex.ExecContext(ctx, `
		INSERT INTO status (type, date_from, date_to, description, next_return, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(s.Kind), nullDate(s.DateFrom), nullDate(s.DateTo), nullString(s.Description),
		nullDate(s.NextReturn), s.CreatedAt.UTC(), s.UpdatedAt.UTC(),
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = id
	return nil
}

// InsertStatusIfLatest appends s only while the newest record has expectedID
// (0 for an empty log). The check and the insert share one immediate
// transaction, so racing callers observe a single winner.
func (db *DB) InsertStatusIfLatest(ctx context.Context, expectedID int64, s *model.Status) (*model.Status, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	head, err := db.latestStatus(ctx, tx)
	switch {
	case errors.Is(err, model.ErrNotFound):
		head = nil
	case err != nil:
		return nil, err
	}

	var headID int64
	if head != nil {
		headID = head.ID
	}
	if headID != expectedID {
		db.logger.Debug().Int64("expected_id", expectedID).Int64("head_id", headID).Msg("status head moved, skipping insert")
		return head, nil
	}

	if err := insertStatus(ctx, tx, s); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s, nil
}

// ListStatuses returns up to limit records, newest first.
func (db *DB) ListStatuses(ctx context.Context, limit int) ([]model.Status, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+statusColumns+`
		FROM status
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Status
	for rows.Next() {
		s, err := db.scanStatus(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (db *DB) scanStatus(row scanner) (*model.Status, error) {
	var s model.Status
	var kind string
	var dateFrom, dateTo, description, nextReturn sql.NullString
	if err := row.Scan(&s.ID, &kind, &dateFrom, &dateTo, &description, &nextReturn, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}

	var err error
	s.Kind = model.StatusKind(kind)
	if s.DateFrom, err = db.datePtr(dateFrom); err != nil {
		return nil, err
	}
	if s.DateTo, err = db.datePtr(dateTo); err != nil {
		return nil, err
	}
	if s.NextReturn, err = db.datePtr(nextReturn); err != nil {
		return nil, err
	}
	s.Description = stringPtr(description)
	return &s, nil
}
