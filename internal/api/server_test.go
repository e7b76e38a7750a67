package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"qrportal/internal/availability"
	"qrportal/internal/clock"
	"qrportal/internal/db"
	"qrportal/internal/export"
	"qrportal/internal/i18n"
	"qrportal/internal/schedule"
	"qrportal/internal/status"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAdminToken = "secret"

var bangkok = time.FixedZone("ICT", 7*3600)

// Monday 2025-03-03 10:00 local.
var testNow = time.Date(2025, 3, 3, 10, 0, 0, 0, bangkok)

type testServer struct {
	*HTTPServer
	db *db.DB
}

func setupTestServer(t *testing.T, opts Options, checks map[string]ReadinessCheck) *testServer {
	t.Helper()

	store, err := db.NewDB(filepath.Join(t.TempDir(), "portal.db"), bangkok, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	require.NoError(t, store.UpsertStandardHours(ctx, 0, []string{"09:00-12:00", "14:00-18:00"}))
	require.NoError(t, store.UpsertStandardHours(ctx, 1, []string{"09:00-12:00"}))

	c := clock.Fixed{At: testNow}
	resolver := schedule.NewResolver(store, c, zerolog.Nop())
	manager := status.NewManager(store, c, nil, zerolog.Nop())

	srv := NewHTTPServer(opts, Deps{
		Clock:        c,
		Schedule:     resolver,
		Status:       manager,
		Availability: availability.NewLookup(store),
		Admin:        store,
		Exporter:     export.NewReporter(resolver, manager, 0),
		Site:         store,
		Catalog: i18n.New(map[string]map[string]string{
			"th": {"status.ANWESEND": "อยู่ที่คลินิก"},
			"de": {"status.ANWESEND": "Anwesend", "status.URLAUB": "Urlaub"},
		}),
		Checks: checks,
	}, zerolog.Nop())
	return &testServer{HTTPServer: srv, db: store}
}

func defaultOpts() Options {
	return Options{AdminToken: testAdminToken}
}

func (s *testServer) do(t *testing.T, method, path string, body any, admin bool) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if admin {
		req.Header.Set(HeaderAdminToken, testAdminToken)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	srv := setupTestServer(t, defaultOpts(), nil)

	rec := srv.do(t, http.MethodGet, "/healthz", nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","service":"qr-info-portal"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))
}

func TestReady(t *testing.T) {
	srv := setupTestServer(t, defaultOpts(), map[string]ReadinessCheck{
		"db":    func(ctx context.Context) error { return nil },
		"redis": func(ctx context.Context) error { return errors.New("connection refused") },
	})

	rec := srv.do(t, http.MethodGet, "/readyz", nil, false)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, false, body["ready"])
}

func TestToday(t *testing.T) {
	srv := setupTestServer(t, defaultOpts(), nil)

	rec := srv.do(t, http.MethodGet, "/api/today?lang=de", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[TodayResponse](t, rec)
	assert.Equal(t, "2025-03-03", body.Today.Date)
	assert.Equal(t, 0, body.Today.Weekday)
	assert.True(t, body.OpenNow)
	require.NotNil(t, body.NextOpen)
	assert.Equal(t, "2025-03-03", body.NextOpen.Date)
	assert.Equal(t, "14:00", body.NextOpen.Time)
	assert.Equal(t, "Anwesend", body.Status.Label)
	assert.True(t, body.Status.Available)
}

func TestWeekAndMonth(t *testing.T) {
	srv := setupTestServer(t, defaultOpts(), nil)

	tests := []struct {
		name     string
		path     string
		wantCode int
		wantDays int
		start    string
	}{
		{name: "current week", path: "/api/week", wantCode: http.StatusOK, wantDays: 7, start: "2025-03-03"},
		{name: "week of sunday", path: "/api/week?date=2025-03-16", wantCode: http.StatusOK, wantDays: 7, start: "2025-03-10"},
		{name: "bad date", path: "/api/week?date=16.03.2025", wantCode: http.StatusBadRequest},
		{name: "current month", path: "/api/month", wantCode: http.StatusOK, wantDays: 31, start: "2025-03-01"},
		{name: "leap february", path: "/api/month?year=2024&month=2", wantCode: http.StatusOK, wantDays: 29, start: "2024-02-01"},
		{name: "month 13", path: "/api/month?year=2025&month=13", wantCode: http.StatusBadRequest},
		{name: "month not a number", path: "/api/month?month=march", wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := srv.do(t, http.MethodGet, tt.path, nil, false)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantCode != http.StatusOK {
				return
			}
			body := decode[PeriodResponse](t, rec)
			assert.Len(t, body.Days, tt.wantDays)
			assert.Equal(t, tt.start, body.Start)
		})
	}
}

func TestAdminAuth(t *testing.T) {
	srv := setupTestServer(t, defaultOpts(), nil)

	rec := srv.do(t, http.MethodGet, "/api/admin/hours", nil, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/admin/hours", nil, true)
	assert.Equal(t, http.StatusOK, rec.Code)
	hours := decode[[]map[string]any](t, rec)
	assert.Len(t, hours, 2)

	disabled := setupTestServer(t, Options{}, nil)
	rec = disabled.do(t, http.MethodGet, "/api/admin/hours", nil, true)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminHours(t *testing.T) {
	srv := setupTestServer(t, defaultOpts(), nil)

	tests := []struct {
		name     string
		weekday  string
		body     any
		wantCode int
	}{
		{name: "malformed range", weekday: "mon", body: HoursRequest{TimeRanges: []string{"9-12"}}, wantCode: http.StatusBadRequest},
		{name: "start after end", weekday: "mon", body: HoursRequest{TimeRanges: []string{"12:00-09:00"}}, wantCode: http.StatusBadRequest},
		{name: "unknown weekday", weekday: "funday", body: HoursRequest{}, wantCode: http.StatusBadRequest},
		{name: "unknown field", weekday: "mon", body: map[string]any{"ranges": []string{}}, wantCode: http.StatusBadRequest},
		{name: "by key", weekday: "sat", body: HoursRequest{TimeRanges: []string{"10:00-12:00"}}, wantCode: http.StatusOK},
		{name: "by index", weekday: "6", body: HoursRequest{}, wantCode: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := srv.do(t, http.MethodPut, "/api/admin/hours/"+tt.weekday, tt.body, true)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
		})
	}

	rec := srv.do(t, http.MethodGet, "/api/week?date=2025-03-08", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	week := decode[PeriodResponse](t, rec)
	assert.Equal(t, []string{"10:00-12:00"}, week.Days[5].TimeRanges)
	assert.True(t, week.Days[6].Closed)
}

func TestAdminExceptions(t *testing.T) {
	srv := setupTestServer(t, defaultOpts(), nil)

	rec := srv.do(t, http.MethodPut, "/api/admin/exceptions/2025-03-03", ExceptionRequest{Closed: true}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = srv.do(t, http.MethodGet, "/api/today", nil, false)
	today := decode[TodayResponse](t, rec)
	assert.True(t, today.Today.Closed)
	assert.True(t, today.Today.IsException)
	assert.False(t, today.OpenNow)
	require.NotNil(t, today.NextOpen)
	assert.Equal(t, "2025-03-04", today.NextOpen.Date)

	rec = srv.do(t, http.MethodPut, "/api/admin/exceptions/2025-03-05", ExceptionRequest{TimeRanges: []string{"25:00-26:00"}}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/admin/exceptions?from=2025-03-01&to=2025-03-31", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 1)

	rec = srv.do(t, http.MethodGet, "/api/admin/exceptions?from=2025-03-31&to=2025-03-01", nil, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodDelete, "/api/admin/exceptions/2025-03-03", nil, true)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/today", nil, false)
	today = decode[TodayResponse](t, rec)
	assert.False(t, today.Today.Closed)
	assert.True(t, today.OpenNow)
}

func TestAdminStatus(t *testing.T) {
	srv := setupTestServer(t, defaultOpts(), nil)

	rec := srv.do(t, http.MethodPut, "/api/admin/status", SetStatusRequest{Type: "HOLIDAY"}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodPut, "/api/admin/status", SetStatusRequest{Type: "URLAUB", DateTo: "03/10/2025"}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodPut, "/api/admin/status", SetStatusRequest{
		Type:       "URLAUB",
		DateFrom:   "2025-03-01",
		DateTo:     "2025-03-10",
		NextReturn: "2025-03-11",
	}, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Accept-Language", "de-DE,de;q=0.9")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[StatusResponse](t, rec)
	assert.Equal(t, "URLAUB", string(st.Status.Kind))
	assert.Equal(t, "Urlaub", st.Label)
	assert.Equal(t, "de", st.Language)
	assert.False(t, st.Available)

	rec = srv.do(t, http.MethodGet, "/api/admin/status/history?limit=10", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 1)
}

func TestAvailability(t *testing.T) {
	srv := setupTestServer(t, defaultOpts(), nil)

	rec := srv.do(t, http.MethodGet, "/api/availability?date=2025-03-04", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[AvailabilityResponse](t, rec)
	assert.False(t, got.Published)
	assert.Empty(t, got.TimeSlots)

	rec = srv.do(t, http.MethodPut, "/api/admin/availability/2025-03-04", SlotsRequest{TimeSlots: []string{"09:00-09:30"}}, true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/availability?date=2025-03-04", nil, false)
	got = decode[AvailabilityResponse](t, rec)
	assert.True(t, got.Published)
	assert.Equal(t, []string{"09:00-09:30"}, got.TimeSlots)
}

func TestExport(t *testing.T) {
	srv := setupTestServer(t, defaultOpts(), nil)

	rec := srv.do(t, http.MethodGet, "/api/admin/export?year=2025&month=3", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "schedule_2025-03.xlsx")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "PK"))

	rec = srv.do(t, http.MethodGet, "/api/admin/export?month=0", nil, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSiteAndTranslations(t *testing.T) {
	srv := setupTestServer(t, defaultOpts(), nil)

	rec := srv.do(t, http.MethodGet, "/api/site", nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{}`, rec.Body.String())

	rec = srv.do(t, http.MethodGet, "/api/translations/de", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Urlaub", decode[map[string]string](t, rec)["status.URLAUB"])

	rec = srv.do(t, http.MethodGet, "/api/translations/fr", nil, false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimit(t *testing.T) {
	srv := setupTestServer(t, Options{RateLimitRPS: 1, RateLimitBurst: 2}, nil)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, srv.do(t, http.MethodGet, "/healthz", nil, false).Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimiter_BlockExpires(t *testing.T) {
	l := NewRateLimiter(1, 1, time.Second)
	now := time.Now()

	assert.True(t, l.allow("10.0.0.1", now))
	assert.False(t, l.allow("10.0.0.1", now))
	assert.True(t, l.allow("10.0.0.2", now))

	// Still blocked even though a token has refilled.
	assert.False(t, l.allow("10.0.0.1", now.Add(500*time.Millisecond)))
	assert.True(t, l.allow("10.0.0.1", now.Add(2*time.Second)))
}
