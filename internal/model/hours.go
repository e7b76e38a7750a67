package model

import "time"

// StandardHours is the recurring schedule for one weekday.
type StandardHours struct {
	ID         int64     `json:"id"`
	DayOfWeek  int       `json:"day_of_week"` // 0-6 (Monday-Sunday)
	TimeRanges []string  `json:"time_ranges"` // "09:00-12:00"; empty = closed
	UpdatedAt  time.Time `json:"updated_at"`
}

// HourException replaces the standard hours of a single date.
type HourException struct {
	ID         int64     `json:"id"`
	Date       time.Time `json:"date"`
	Closed     bool      `json:"closed"`
	TimeRanges []string  `json:"time_ranges"` // ignored when Closed
	Note       *string   `json:"note,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Availability lists informational slots for a date. It never affects the
// open/closed answer.
type Availability struct {
	ID        int64     `json:"id"`
	Date      time.Time `json:"date"`
	TimeSlots []string  `json:"time_slots"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DaySchedule is the resolved view of one date.
type DaySchedule struct {
	Date        time.Time `json:"date"`
	Closed      bool      `json:"closed"`
	TimeRanges  []string  `json:"time_ranges"`
	Note        *string   `json:"note,omitempty"`
	IsException bool      `json:"is_exception"`
}

// NextOpen is the next opening instant within the scan horizon.
type NextOpen struct {
	Date      time.Time `json:"date"`
	Time      string    `json:"time"`       // "09:00"
	TimeRange string    `json:"time_range"` // "09:00-12:00"
}
