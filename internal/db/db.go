package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"qrportal/internal/clock"

	json "github.com/goccy/go-json"
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// DB wraps sql.DB for the portal. Calendar dates are read back in loc.
type DB struct {
	*sql.DB
	path   string
	loc    *time.Location
	logger zerolog.Logger
}

// NewDB opens database at path and runs migrations.
func NewDB(path string, loc *time.Location, logger zerolog.Logger) (*DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	if loc == nil {
		loc = time.UTC
	}

	// WAL for concurrent readers; immediate transactions so conditional
	// inserts take the write lock before reading the head row.
	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_txlock=immediate&_foreign_keys=on"
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := createTables(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	instance := &DB{
		DB:     sqlDB,
		path:   path,
		loc:    loc,
		logger: logger.With().Str("component", "db").Logger(),
	}
	instance.logger.Info().Str("path", path).Msg("database initialized")
	return instance, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		// Weekly hours, one row per weekday (0=Monday)
		`CREATE TABLE IF NOT EXISTS standard_hours (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            day_of_week INTEGER UNIQUE NOT NULL CHECK (day_of_week BETWEEN 0 AND 6),
            time_ranges TEXT NOT NULL DEFAULT '[]',
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,

		// Date exceptions
		`CREATE TABLE IF NOT EXISTS hour_exceptions (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            exception_date TEXT UNIQUE NOT NULL,
            closed BOOLEAN NOT NULL DEFAULT 0,
            time_ranges TEXT NOT NULL DEFAULT '[]',
            note TEXT,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,

		// Indicative availability slots
		`CREATE TABLE IF NOT EXISTS availability (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            availability_date TEXT UNIQUE NOT NULL,
            time_slots TEXT NOT NULL DEFAULT '[]',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,

		// Append-only status log
		`CREATE TABLE IF NOT EXISTS status (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            type TEXT NOT NULL DEFAULT 'ANWESEND',
            date_from TEXT,
            date_to TEXT,
            description TEXT,
            next_return TEXT,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,

		// Key/value settings
		`CREATE TABLE IF NOT EXISTS settings (
            key TEXT PRIMARY KEY,
            value TEXT NOT NULL DEFAULT '{}',
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,

		// Indexes
		`CREATE INDEX IF NOT EXISTS idx_status_created ON status(created_at, id)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

// Location is the zone calendar dates are interpreted in.
func (db *DB) Location() *time.Location {
	return db.loc
}

// Path is the database file path.
func (db *DB) Path() string {
	return db.path
}

func (db *DB) Close() error {
	return db.DB.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func encodeList(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("encode list: %w", err)
	}
	return string(data), nil
}

func decodeList(raw string) ([]string, error) {
	list := []string{}
	if raw == "" {
		return list, nil
	}
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmt.Errorf("decode list %q: %w", raw, err)
	}
	return list, nil
}

func formatDate(t time.Time) string {
	return clock.FormatDate(t)
}

func (db *DB) parseDate(s string) (time.Time, error) {
	return clock.ParseDate(s, db.loc)
}

func nullDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatDate(*t), Valid: true}
}

func (db *DB) datePtr(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := db.parseDate(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
