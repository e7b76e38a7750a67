package config

import (
	"fmt"
	"os"
	"time"

	"qrportal/internal/timerange"

	"gopkg.in/yaml.v3"
)

// WeekdayKeys are the config keys of the weekly hours, Monday first. The index
// is the stored day_of_week.
var WeekdayKeys = []string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"}

// HolidayConfig is a configured closing day.
type HolidayConfig struct {
	Date string `yaml:"date"` // "2026-01-01"
	Note string `yaml:"note"`
}

// HoursConfig holds the weekly ranges and holidays.
type HoursConfig struct {
	Weekly   map[string][]string `yaml:"weekly"`
	Holidays []HolidayConfig     `yaml:"holidays"`
}

// SiteConfig is the root of site.yaml. Site is an opaque identity blob
// (name, address, contact) that is stored as-is.
type SiteConfig struct {
	Site  map[string]any `yaml:"site"`
	Hours HoursConfig    `yaml:"hours"`

	raw map[string]any
}

// LoadSite loads and validates the site configuration.
func LoadSite(path string) (*SiteConfig, error) {
	if path == "" {
		path = "configs/site.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read site config: %w", err)
	}
	return ParseSite(data)
}

// ParseSite decodes and validates site.yaml contents.
func ParseSite(data []byte) (*SiteConfig, error) {
	var cfg SiteConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse site config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg.raw); err != nil {
		return nil, fmt.Errorf("parse site config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate site config: %w", err)
	}
	return &cfg, nil
}

// Validate checks weekday keys, range formats and holiday dates.
func (c *SiteConfig) Validate() error {
	known := make(map[string]bool, len(WeekdayKeys))
	for _, k := range WeekdayKeys {
		known[k] = true
	}

	for day, ranges := range c.Hours.Weekly {
		if !known[day] {
			return fmt.Errorf("hours.weekly.%s: unknown weekday, expected one of mon..sun", day)
		}
		if err := timerange.Validate(ranges); err != nil {
			return fmt.Errorf("hours.weekly.%s: %w", day, err)
		}
	}

	seen := make(map[string]bool)
	for i, h := range c.Hours.Holidays {
		if h.Date == "" {
			return fmt.Errorf("hours.holidays[%d]: date is required", i)
		}
		if _, err := time.Parse("2006-01-02", h.Date); err != nil {
			return fmt.Errorf("hours.holidays[%d]: invalid date format '%s', expected YYYY-MM-DD", i, h.Date)
		}
		if seen[h.Date] {
			return fmt.Errorf("hours.holidays[%d]: duplicate date %s", i, h.Date)
		}
		seen[h.Date] = true
	}

	return nil
}

// WeeklyRanges returns the ranges of weekday 0=Monday..6=Sunday. A missing key
// yields an empty list (closed).
func (c *SiteConfig) WeeklyRanges(dayOfWeek int) []string {
	if dayOfWeek < 0 || dayOfWeek >= len(WeekdayKeys) {
		return []string{}
	}
	ranges := c.Hours.Weekly[WeekdayKeys[dayOfWeek]]
	if ranges == nil {
		return []string{}
	}
	return ranges
}

// Raw returns the whole decoded document, used as the stored site_config blob.
func (c *SiteConfig) Raw() map[string]any {
	return c.raw
}

// String returns a summary of the configuration.
func (c *SiteConfig) String() string {
	open := 0
	for i := range WeekdayKeys {
		if len(c.WeeklyRanges(i)) > 0 {
			open++
		}
	}
	return fmt.Sprintf("SiteConfig: %d open weekdays, %d holidays", open, len(c.Hours.Holidays))
}
