// Package export renders the resolved month schedule and the status history
// as an XLSX workbook for the admin.
package export

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"qrportal/internal/clock"
	"qrportal/internal/model"
)

// Sheet names of the month report.
const (
	ScheduleSheet = "Schedule"
	StatusSheet   = "Status"
)

// MonthResolver resolves every date of a month.
type MonthResolver interface {
	ResolveMonth(ctx context.Context, year int, month time.Month) ([]model.DaySchedule, error)
}

// StatusHistory lists status records newest first.
type StatusHistory interface {
	History(ctx context.Context, limit int) ([]model.Status, error)
}

// Reporter builds month workbooks.
type Reporter struct {
	schedule     MonthResolver
	status       StatusHistory
	historyLimit int
}

// NewReporter creates a reporter including up to historyLimit status records.
func NewReporter(schedule MonthResolver, status StatusHistory, historyLimit int) *Reporter {
	if historyLimit <= 0 {
		historyLimit = 200
	}
	return &Reporter{schedule: schedule, status: status, historyLimit: historyLimit}
}

// Filename is the suggested download name, e.g. "schedule_2025-03.xlsx".
func Filename(year int, month time.Month) string {
	return fmt.Sprintf("schedule_%04d-%02d.xlsx", year, int(month))
}

// WriteMonth writes the workbook for year/month to out. An invalid month
// yields clock.ErrInvalidMonth before anything is written.
func (r *Reporter) WriteMonth(ctx context.Context, out io.Writer, year int, month time.Month) error {
	days, err := r.schedule.ResolveMonth(ctx, year, month)
	if err != nil {
		return fmt.Errorf("resolve month: %w", err)
	}
	history, err := r.status.History(ctx, r.historyLimit)
	if err != nil {
		return fmt.Errorf("load status history: %w", err)
	}

	w := newSheetWriter()
	defer func() { _ = w.close() }()

	if err := w.addSheet(ScheduleSheet); err != nil {
		return err
	}
	if err := w.writeHeader([]string{"Date", "Weekday", "Closed", "Hours", "Exception", "Note"}); err != nil {
		return err
	}
	for _, d := range days {
		if err := w.writeRow([]any{
			clock.FormatDate(d.Date),
			d.Date.Weekday().String(),
			yesNo(d.Closed),
			strings.Join(d.TimeRanges, ", "),
			yesNo(d.IsException),
			deref(d.Note),
		}); err != nil {
			return err
		}
	}

	if err := w.addSheet(StatusSheet); err != nil {
		return err
	}
	if err := w.writeHeader([]string{"ID", "Type", "From", "To", "Description", "Next return", "Created"}); err != nil {
		return err
	}
	for _, s := range history {
		if err := w.writeRow([]any{
			s.ID,
			string(s.Kind),
			formatDatePtr(s.DateFrom),
			formatDatePtr(s.DateTo),
			deref(s.Description),
			formatDatePtr(s.NextReturn),
			s.CreatedAt.UTC().Format(time.RFC3339),
		}); err != nil {
			return err
		}
	}

	return w.save(out)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatDatePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return clock.FormatDate(*t)
}
