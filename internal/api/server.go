// Package api exposes the resolved schedule, the current status and the admin
// write surface over JSON/HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"qrportal/internal/clock"
	"qrportal/internal/i18n"
	"qrportal/internal/metrics"
	"qrportal/internal/model"
	"qrportal/internal/schedule"
	"qrportal/internal/status"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// ServiceName is reported by /healthz.
const ServiceName = "qr-info-portal"

// ScheduleService resolves opening hours.
type ScheduleService interface {
	ResolveDay(ctx context.Context, date time.Time) (model.DaySchedule, error)
	ResolveWeek(ctx context.Context, anchor time.Time) ([]model.DaySchedule, error)
	ResolveMonth(ctx context.Context, year int, month time.Month) ([]model.DaySchedule, error)
	ResolveToday(ctx context.Context) (*schedule.Today, error)
}

// StatusService reads and writes the status log.
type StatusService interface {
	Current(ctx context.Context) (*model.Status, error)
	Set(ctx context.Context, u status.Update) (*model.Status, error)
	History(ctx context.Context, limit int) ([]model.Status, error)
}

// AvailabilityService looks up informational slots; nil means none recorded.
type AvailabilityService interface {
	Get(ctx context.Context, date time.Time) (*model.Availability, error)
}

// AdminStore is the write side used by the admin endpoints.
type AdminStore interface {
	ListStandardHours(ctx context.Context) ([]model.StandardHours, error)
	UpsertStandardHours(ctx context.Context, dayOfWeek int, ranges []string) error
	GetException(ctx context.Context, date time.Time) (*model.HourException, error)
	ListExceptions(ctx context.Context, from, to time.Time) ([]model.HourException, error)
	UpsertException(ctx context.Context, e *model.HourException) error
	DeleteException(ctx context.Context, date time.Time) error
	UpsertAvailability(ctx context.Context, date time.Time, slots []string) error
}

// MonthExporter writes a month workbook.
type MonthExporter interface {
	WriteMonth(ctx context.Context, out io.Writer, year int, month time.Month) error
}

// SiteInfo returns the stored site identity blob.
type SiteInfo interface {
	SiteIdentity(ctx context.Context) (map[string]any, error)
}

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// Options configures the server.
type Options struct {
	Port           int
	AdminToken     string
	RateLimitRPS   float64
	RateLimitBurst int
}

// Deps are the collaborators of the server.
type Deps struct {
	Clock        clock.Clock
	Schedule     ScheduleService
	Status       StatusService
	Availability AvailabilityService
	Admin        AdminStore
	Exporter     MonthExporter
	Site         SiteInfo
	Catalog      *i18n.Catalog
	Checks       map[string]ReadinessCheck
}

// HTTPServer serves the portal API.
type HTTPServer struct {
	opts   Options
	deps   Deps
	server *http.Server
	logger zerolog.Logger
}

// NewHTTPServer wires routes and middleware.
func NewHTTPServer(opts Options, deps Deps, logger zerolog.Logger) *HTTPServer {
	if deps.Catalog == nil {
		deps.Catalog = i18n.New(nil)
	}

	s := &HTTPServer{
		opts:   opts,
		deps:   deps,
		logger: logger.With().Str("component", "api").Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/today", s.handleToday)
	mux.HandleFunc("GET /api/week", s.handleWeek)
	mux.HandleFunc("GET /api/month", s.handleMonth)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/availability", s.handleAvailability)
	mux.HandleFunc("GET /api/site", s.handleSite)
	mux.HandleFunc("GET /api/translations/{lang}", s.handleTranslations)

	mux.Handle("PUT /api/admin/status", s.requireAdmin(http.HandlerFunc(s.handleSetStatus)))
	mux.Handle("GET /api/admin/status/history", s.requireAdmin(http.HandlerFunc(s.handleStatusHistory)))
	mux.Handle("GET /api/admin/hours", s.requireAdmin(http.HandlerFunc(s.handleListHours)))
	mux.Handle("PUT /api/admin/hours/{weekday}", s.requireAdmin(http.HandlerFunc(s.handlePutHours)))
	mux.Handle("GET /api/admin/exceptions", s.requireAdmin(http.HandlerFunc(s.handleListExceptions)))
	mux.Handle("PUT /api/admin/exceptions/{date}", s.requireAdmin(http.HandlerFunc(s.handlePutException)))
	mux.Handle("DELETE /api/admin/exceptions/{date}", s.requireAdmin(http.HandlerFunc(s.handleDeleteException)))
	mux.Handle("PUT /api/admin/availability/{date}", s.requireAdmin(http.HandlerFunc(s.handlePutAvailability)))
	mux.Handle("GET /api/admin/export", s.requireAdmin(http.HandlerFunc(s.handleExport)))

	limiter := NewRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst, time.Minute)

	var handler http.Handler = mux
	handler = limiter.Limit(handler)
	handler = s.logRequests(handler)
	handler = requestID(handler)

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler exposes the root handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// Start listens until Shutdown is called.
func (s *HTTPServer) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("http server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// fail maps service errors to a status code. Malformed stored hours are a
// server-side data problem and map to 500.
func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, endpoint string, err error) {
	switch {
	case errors.Is(err, clock.ErrInvalidMonth), errors.Is(err, model.ErrInvalidStatusKind):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		metrics.IncHTTPError(endpoint)
		zerolog.Ctx(r.Context()).Error().Err(err).Str("endpoint", endpoint).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}
