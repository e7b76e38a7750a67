package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	statusRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qrportal",
			Name:      "status_records_total",
			Help:      "Count of status records appended by kind and reason.",
		},
		[]string{"type", "reason"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qrportal",
			Name:      "http_requests_total",
			Help:      "Count of API requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	httpErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qrportal",
			Name:      "http_errors_total",
			Help:      "Count of API responses with status >= 500 by endpoint.",
		},
		[]string{"endpoint"},
	)

	openNow = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "qrportal",
			Name:      "open_now",
			Help:      "1 when the last open-state evaluation reported open.",
		},
	)

	configReloads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qrportal",
			Name:      "site_config_reloads_total",
			Help:      "Count of site config reloads by result.",
		},
		[]string{"result"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(statusRecords, httpRequests, httpErrors, openNow, configReloads)
	})
}

func IncStatusRecord(kind, reason string) {
	statusRecords.WithLabelValues(kind, reason).Inc()
}

func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func IncHTTPError(endpoint string) {
	httpErrors.WithLabelValues(endpoint).Inc()
}

func SetOpenNow(open bool) {
	if open {
		openNow.Set(1)
		return
	}
	openNow.Set(0)
}

func IncConfigReload(result string) {
	configReloads.WithLabelValues(result).Inc()
}
