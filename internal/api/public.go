package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"qrportal/internal/clock"
	"qrportal/internal/i18n"
	"qrportal/internal/metrics"
	"qrportal/internal/model"
)

// DayResponse is a resolved date on the wire.
type DayResponse struct {
	Date        string   `json:"date"`
	Weekday     int      `json:"weekday"` // 0=Monday
	Closed      bool     `json:"closed"`
	TimeRanges  []string `json:"time_ranges"`
	Note        *string  `json:"note,omitempty"`
	IsException bool     `json:"is_exception"`
}

// NextOpenResponse is the next opening instant on the wire.
type NextOpenResponse struct {
	Date      string `json:"date"`
	Time      string `json:"time"`
	TimeRange string `json:"time_range"`
}

// StatusResponse is the current status with its localized label.
type StatusResponse struct {
	Status    *model.Status `json:"status"`
	Label     string        `json:"label"`
	Available bool          `json:"available"`
	Language  string        `json:"language"`
}

// TodayResponse bundles the landing page data.
type TodayResponse struct {
	Today    DayResponse       `json:"today"`
	OpenNow  bool              `json:"open_now"`
	NextOpen *NextOpenResponse `json:"next_open"`
	Status   StatusResponse    `json:"status"`
}

// PeriodResponse lists resolved dates.
type PeriodResponse struct {
	Start string        `json:"start"`
	End   string        `json:"end"`
	Days  []DayResponse `json:"days"`
}

// AvailabilityResponse lists informational slots of a date.
type AvailabilityResponse struct {
	Date      string   `json:"date"`
	TimeSlots []string `json:"time_slots"`
	Published bool     `json:"published"`
}

func toDay(d model.DaySchedule) DayResponse {
	return DayResponse{
		Date:        clock.FormatDate(d.Date),
		Weekday:     clock.WeekdayIndex(d.Date),
		Closed:      d.Closed,
		TimeRanges:  d.TimeRanges,
		Note:        d.Note,
		IsException: d.IsException,
	}
}

func toDays(days []model.DaySchedule) PeriodResponse {
	out := PeriodResponse{Days: make([]DayResponse, 0, len(days))}
	for _, d := range days {
		out.Days = append(out.Days, toDay(d))
	}
	if len(out.Days) > 0 {
		out.Start = out.Days[0].Date
		out.End = out.Days[len(out.Days)-1].Date
	}
	return out
}

func toNextOpen(n *model.NextOpen) *NextOpenResponse {
	if n == nil {
		return nil
	}
	return &NextOpenResponse{Date: clock.FormatDate(n.Date), Time: n.Time, TimeRange: n.TimeRange}
}

func (s *HTTPServer) language(r *http.Request) string {
	return i18n.Negotiate(r.URL.Query().Get("lang"), r.Header.Get("Accept-Language"))
}

// dateParam parses an optional YYYY-MM-DD query value, defaulting to today.
func (s *HTTPServer) dateParam(r *http.Request, name string) (time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return clock.Today(s.deps.Clock), nil
	}
	return clock.ParseDate(v, s.deps.Clock.Location())
}

// handleHealth is the liveness probe.
// GET /healthz
func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": ServiceName,
	})
}

// handleReady runs every readiness check.
// GET /readyz
func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	results := make(map[string]string, len(s.deps.Checks))
	code := http.StatusOK
	for name, check := range s.deps.Checks {
		if err := check(ctx); err != nil {
			results[name] = err.Error()
			code = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}
	writeJSON(w, code, map[string]any{"ready": code == http.StatusOK, "checks": results})
}

// handleToday returns today's hours, open state, next opening and status.
// GET /api/today?lang=th
func (s *HTTPServer) handleToday(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("today")

	today, err := s.deps.Schedule.ResolveToday(r.Context())
	if err != nil {
		s.fail(w, r, "today", err)
		return
	}
	metrics.SetOpenNow(today.OpenNow)

	st, err := s.currentStatus(r.Context(), s.language(r))
	if err != nil {
		s.fail(w, r, "today", err)
		return
	}

	writeJSON(w, http.StatusOK, TodayResponse{
		Today:    toDay(today.Schedule),
		OpenNow:  today.OpenNow,
		NextOpen: toNextOpen(today.NextOpen),
		Status:   st,
	})
}

// handleWeek returns the Monday-start week containing date.
// GET /api/week?date=YYYY-MM-DD
func (s *HTTPServer) handleWeek(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("week")

	anchor, err := s.dateParam(r, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	days, err := s.deps.Schedule.ResolveWeek(r.Context(), anchor)
	if err != nil {
		s.fail(w, r, "week", err)
		return
	}
	writeJSON(w, http.StatusOK, toDays(days))
}

// handleMonth returns every date of a month.
// GET /api/month?year=2025&month=3
func (s *HTTPServer) handleMonth(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("month")

	year, month, err := s.monthParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	days, err := s.deps.Schedule.ResolveMonth(r.Context(), year, month)
	if err != nil {
		s.fail(w, r, "month", err)
		return
	}
	writeJSON(w, http.StatusOK, toDays(days))
}

// monthParams reads year and month, each defaulting to the current one.
// Range checking of month is left to the resolver.
func (s *HTTPServer) monthParams(r *http.Request) (int, time.Month, error) {
	now := s.deps.Clock.Now()
	year, month := now.Year(), now.Month()

	q := r.URL.Query()
	if v := q.Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, errBadParam("year")
		}
		year = y
	}
	if v := q.Get("month"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, errBadParam("month")
		}
		month = time.Month(m)
	}
	return year, month, nil
}

// handleStatus returns the current status, superseding it when expired.
// GET /api/status?lang=de
func (s *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("status")

	st, err := s.currentStatus(r.Context(), s.language(r))
	if err != nil {
		s.fail(w, r, "status", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *HTTPServer) currentStatus(ctx context.Context, lang string) (StatusResponse, error) {
	cur, err := s.deps.Status.Current(ctx)
	if err != nil {
		return StatusResponse{}, err
	}
	return StatusResponse{
		Status:    cur,
		Label:     s.deps.Catalog.T(lang, "status."+string(cur.Kind), nil),
		Available: cur.Kind == model.StatusPresent,
		Language:  lang,
	}, nil
}

// handleAvailability returns the informational slots of a date.
// GET /api/availability?date=YYYY-MM-DD
func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("availability")

	date, err := s.dateParam(r, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	a, err := s.deps.Availability.Get(r.Context(), date)
	if err != nil {
		s.fail(w, r, "availability", err)
		return
	}

	resp := AvailabilityResponse{Date: clock.FormatDate(date), TimeSlots: []string{}}
	if a != nil {
		resp.TimeSlots = a.TimeSlots
		resp.Published = true
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSite returns the stored site identity (name, address, contact).
// GET /api/site
func (s *HTTPServer) handleSite(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("site")

	site, err := s.deps.Site.SiteIdentity(r.Context())
	if err != nil {
		s.fail(w, r, "site", err)
		return
	}
	writeJSON(w, http.StatusOK, site)
}

// handleTranslations returns the catalog table of one language.
// GET /api/translations/{lang}
func (s *HTTPServer) handleTranslations(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("translations")

	lang := r.PathValue("lang")
	if !i18n.Supported(lang) {
		writeError(w, http.StatusNotFound, "unsupported language")
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Catalog.Table(lang))
}
