package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"qrportal/internal/model"

	json "github.com/goccy/go-json"
)

// GetSetting returns a settings row by key.
func (db *DB) GetSetting(ctx context.Context, key string) (*model.Setting, error) {
	var s model.Setting
	var raw string
	err := db.QueryRowContext(ctx, `
		SELECT key, value, updated_at
		FROM settings
		WHERE key = ?`, key,
	).Scan(&s.Key, &raw, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.Value = []byte(raw)
	return &s, nil
}

// PutSetting stores value as the JSON document of key.
func (db *DB) PutSetting(ctx context.Context, key string, value any) error {
	return putSetting(ctx, db.DB, key, value)
}

func putSetting(ctx context.Context, ex execer, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode setting %s: %w", key, err)
	}
	_, err = ex.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		key, string(data), time.Now().UTC())
	return err
}

// SiteIdentity decodes the stored site_config blob. Returns an empty map when
// the portal has not been seeded.
func (db *DB) SiteIdentity(ctx context.Context) (map[string]any, error) {
	s, err := db.GetSetting(ctx, model.SettingSiteConfig)
	if errors.Is(err, model.ErrNotFound) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(s.Value, &doc); err != nil {
		return nil, fmt.Errorf("decode site config: %w", err)
	}
	site, _ := doc["site"].(map[string]any)
	if site == nil {
		site = map[string]any{}
	}
	return site, nil
}
