package model

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidStatusKind = errors.New("invalid status kind")
)

// StatusKind is the high-level operating state of the facility.
type StatusKind string

// Persisted values are kept as the original deployment stored them.
const (
	StatusPresent       StatusKind = "ANWESEND"
	StatusVacation      StatusKind = "URLAUB"
	StatusTrainingLeave StatusKind = "BILDUNGSURLAUB"
	StatusConference    StatusKind = "KONGRESS"
	StatusOther         StatusKind = "SONSTIGES"
)

// StatusKinds lists every valid kind in display order.
var StatusKinds = []StatusKind{
	StatusPresent,
	StatusVacation,
	StatusTrainingLeave,
	StatusConference,
	StatusOther,
}

// ParseStatusKind validates a wire value.
func ParseStatusKind(s string) (StatusKind, error) {
	for _, k := range StatusKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatusKind, s)
}

// Valid reports whether k is one of StatusKinds.
func (k StatusKind) Valid() bool {
	_, err := ParseStatusKind(string(k))
	return err == nil
}

// Status is one entry of the append-only status log. The newest entry is the
// current status.
type Status struct {
	ID          int64      `json:"id"`
	Kind        StatusKind `json:"type"`
	DateFrom    *time.Time `json:"date_from,omitempty"`
	DateTo      *time.Time `json:"date_to,omitempty"`
	Description *string    `json:"description,omitempty"`
	NextReturn  *time.Time `json:"next_return,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewPresentStatus is the default record with no validity window.
func NewPresentStatus(now time.Time) *Status {
	return &Status{
		Kind:      StatusPresent,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ExpiredOn reports whether DateTo lies strictly before today. Both are
// calendar dates in the facility zone.
func (s *Status) ExpiredOn(today time.Time) bool {
	if s.DateTo == nil {
		return false
	}
	y1, m1, d1 := s.DateTo.Date()
	y2, m2, d2 := today.Date()
	if y1 != y2 {
		return y1 < y2
	}
	if m1 != m2 {
		return m1 < m2
	}
	return d1 < d2
}

// Setting is a key/value record holding a JSON document.
type Setting struct {
	Key       string    `json:"key"`
	Value     []byte    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	SettingInitialized = "initialized"
	SettingSiteConfig  = "site_config"
)
