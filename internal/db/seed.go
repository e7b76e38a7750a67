package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"qrportal/internal/config"
	"qrportal/internal/model"
)

// SeedFromSite writes the weekly hours and the site blob once. It is skipped
// when the "initialized" marker exists, so later admin edits survive restarts.
// Returns true when seeding ran.
func (db *DB) SeedFromSite(ctx context.Context, cfg *config.SiteConfig) (bool, error) {
	if cfg == nil {
		return false, fmt.Errorf("site config is nil")
	}

	_, err := db.GetSetting(ctx, model.SettingInitialized)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return false, fmt.Errorf("check initialized: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Re-check under the write lock in case another process seeded meanwhile.
	var count int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM settings WHERE key = ?", model.SettingInitialized,
	).Scan(&count); err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	for day := range config.WeekdayKeys {
		if err := upsertStandardHours(ctx, tx, day, cfg.WeeklyRanges(day)); err != nil {
			return false, fmt.Errorf("seed weekday %d: %w", day, err)
		}
	}

	if err := putSetting(ctx, tx, model.SettingInitialized, map[string]string{
		"date": time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		return false, err
	}
	if err := putSetting(ctx, tx, model.SettingSiteConfig, cfg.Raw()); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit seed: %w", err)
	}

	db.logger.Info().Str("site", cfg.String()).Msg("seeded standard hours from site config")
	return true, nil
}

// ApplyHolidays creates closed exceptions for configured holidays. Dates that
// already carry an exception are left untouched. Returns the number created.
func (db *DB) ApplyHolidays(ctx context.Context, cfg *config.SiteConfig) (int, error) {
	if cfg == nil {
		return 0, fmt.Errorf("site config is nil")
	}

	created := 0
	for _, h := range cfg.Hours.Holidays {
		dt, err := db.parseDate(h.Date)
		if err != nil {
			return created, fmt.Errorf("parse holiday %s: %w", h.Date, err)
		}
		ok, err := db.SetDayOff(ctx, dt, h.Note)
		if err != nil {
			return created, fmt.Errorf("set day off %s: %w", h.Date, err)
		}
		if ok {
			created++
		}
	}
	return created, nil
}
