package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"qrportal/internal/clock"
	"qrportal/internal/config"
	"qrportal/internal/export"
	"qrportal/internal/metrics"
	"qrportal/internal/model"
	"qrportal/internal/status"
	"qrportal/internal/timerange"
)

func errBadParam(name string) error {
	return fmt.Errorf("invalid %s parameter", name)
}

// SetStatusRequest is the body of PUT /api/admin/status.
type SetStatusRequest struct {
	Type        string  `json:"type"`
	DateFrom    string  `json:"date_from,omitempty"`
	DateTo      string  `json:"date_to,omitempty"`
	Description *string `json:"description,omitempty"`
	NextReturn  string  `json:"next_return,omitempty"`
}

// HoursRequest is the body of PUT /api/admin/hours/{weekday}.
type HoursRequest struct {
	TimeRanges []string `json:"time_ranges"`
}

// ExceptionRequest is the body of PUT /api/admin/exceptions/{date}.
type ExceptionRequest struct {
	Closed     bool     `json:"closed"`
	TimeRanges []string `json:"time_ranges"`
	Note       *string  `json:"note,omitempty"`
}

// SlotsRequest is the body of PUT /api/admin/availability/{date}.
type SlotsRequest struct {
	TimeSlots []string `json:"time_slots"`
}

func (s *HTTPServer) optionalDate(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	d, err := clock.ParseDate(v, s.deps.Clock.Location())
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// handleSetStatus appends a status record. Date ordering is not validated.
// PUT /api/admin/status
func (s *HTTPServer) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("admin_status")

	var req SetStatusRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	kind, err := model.ParseStatusKind(req.Type)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	u := status.Update{Kind: kind, Description: req.Description}
	for _, f := range []struct {
		name  string
		value string
		dst   **time.Time
	}{
		{"date_from", req.DateFrom, &u.DateFrom},
		{"date_to", req.DateTo, &u.DateTo},
		{"next_return", req.NextReturn, &u.NextReturn},
	} {
		d, err := s.optionalDate(f.value)
		if err != nil {
			writeError(w, http.StatusBadRequest, f.name+": "+err.Error())
			return
		}
		*f.dst = d
	}

	rec, err := s.deps.Status.Set(r.Context(), u)
	if err != nil {
		s.fail(w, r, "admin_status", err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// handleStatusHistory lists status records newest first.
// GET /api/admin/status/history?limit=50
func (s *HTTPServer) handleStatusHistory(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("admin_status_history")

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, errBadParam("limit").Error())
			return
		}
		limit = n
	}

	records, err := s.deps.Status.History(r.Context(), limit)
	if err != nil {
		s.fail(w, r, "admin_status_history", err)
		return
	}
	if records == nil {
		records = []model.Status{}
	}
	writeJSON(w, http.StatusOK, records)
}

// handleListHours lists the stored weekly hours.
// GET /api/admin/hours
func (s *HTTPServer) handleListHours(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("admin_hours")

	hours, err := s.deps.Admin.ListStandardHours(r.Context())
	if err != nil {
		s.fail(w, r, "admin_hours", err)
		return
	}
	if hours == nil {
		hours = []model.StandardHours{}
	}
	writeJSON(w, http.StatusOK, hours)
}

// parseWeekday accepts "mon".."sun" or 0..6.
func parseWeekday(v string) (int, error) {
	v = strings.ToLower(v)
	for i, k := range config.WeekdayKeys {
		if k == v {
			return i, nil
		}
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 || n > 6 {
		return 0, fmt.Errorf("invalid weekday %q, expected mon..sun or 0..6", v)
	}
	return n, nil
}

// handlePutHours replaces the ranges of a weekday.
// PUT /api/admin/hours/{weekday}
func (s *HTTPServer) handlePutHours(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("admin_hours_put")

	day, err := parseWeekday(r.PathValue("weekday"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req HoursRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := timerange.Validate(req.TimeRanges); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.TimeRanges == nil {
		req.TimeRanges = []string{}
	}

	if err := s.deps.Admin.UpsertStandardHours(r.Context(), day, req.TimeRanges); err != nil {
		s.fail(w, r, "admin_hours_put", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"day_of_week": day,
		"time_ranges": req.TimeRanges,
	})
}

// handleListExceptions lists exceptions within [from, to]. Both default to
// the current month.
// GET /api/admin/exceptions?from=YYYY-MM-DD&to=YYYY-MM-DD
func (s *HTTPServer) handleListExceptions(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("admin_exceptions")

	now := s.deps.Clock.Now()
	from, to, err := clock.MonthBounds(now.Year(), now.Month(), s.deps.Clock.Location())
	if err != nil {
		s.fail(w, r, "admin_exceptions", err)
		return
	}
	q := r.URL.Query()
	if v := q.Get("from"); v != "" {
		if from, err = clock.ParseDate(v, s.deps.Clock.Location()); err != nil {
			writeError(w, http.StatusBadRequest, "from: "+err.Error())
			return
		}
	}
	if v := q.Get("to"); v != "" {
		if to, err = clock.ParseDate(v, s.deps.Clock.Location()); err != nil {
			writeError(w, http.StatusBadRequest, "to: "+err.Error())
			return
		}
	}
	if from.After(to) {
		writeError(w, http.StatusBadRequest, "from must be before or equal to to")
		return
	}

	list, err := s.deps.Admin.ListExceptions(r.Context(), from, to)
	if err != nil {
		s.fail(w, r, "admin_exceptions", err)
		return
	}
	if list == nil {
		list = []model.HourException{}
	}
	writeJSON(w, http.StatusOK, list)
}

// handlePutException creates or replaces the exception of a date.
// PUT /api/admin/exceptions/{date}
func (s *HTTPServer) handlePutException(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("admin_exception_put")

	date, err := clock.ParseDate(r.PathValue("date"), s.deps.Clock.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req ExceptionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Closed {
		req.TimeRanges = []string{}
	} else if err := timerange.Validate(req.TimeRanges); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	exc := &model.HourException{
		Date:       date,
		Closed:     req.Closed,
		TimeRanges: req.TimeRanges,
		Note:       req.Note,
	}
	if err := s.deps.Admin.UpsertException(r.Context(), exc); err != nil {
		s.fail(w, r, "admin_exception_put", err)
		return
	}

	stored, err := s.deps.Admin.GetException(r.Context(), date)
	if err != nil {
		s.fail(w, r, "admin_exception_put", err)
		return
	}
	writeJSON(w, http.StatusOK, stored)
}

// handleDeleteException removes the exception of a date.
// DELETE /api/admin/exceptions/{date}
func (s *HTTPServer) handleDeleteException(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("admin_exception_delete")

	date, err := clock.ParseDate(r.PathValue("date"), s.deps.Clock.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.deps.Admin.DeleteException(r.Context(), date); err != nil {
		s.fail(w, r, "admin_exception_delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePutAvailability replaces the informational slots of a date.
// PUT /api/admin/availability/{date}
func (s *HTTPServer) handlePutAvailability(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("admin_availability_put")

	date, err := clock.ParseDate(r.PathValue("date"), s.deps.Clock.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req SlotsRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := timerange.Validate(req.TimeSlots); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.TimeSlots == nil {
		req.TimeSlots = []string{}
	}

	if err := s.deps.Admin.UpsertAvailability(r.Context(), date, req.TimeSlots); err != nil {
		s.fail(w, r, "admin_availability_put", err)
		return
	}
	writeJSON(w, http.StatusOK, AvailabilityResponse{
		Date:      clock.FormatDate(date),
		TimeSlots: req.TimeSlots,
		Published: true,
	})
}

// handleExport downloads the month workbook.
// GET /api/admin/export?year=2025&month=3
func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("admin_export")

	year, month, err := s.monthParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var buf bytes.Buffer
	if err := s.deps.Exporter.WriteMonth(r.Context(), &buf, year, month); err != nil {
		s.fail(w, r, "admin_export", err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(year, month)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
