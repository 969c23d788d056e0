// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_api_requests_total",
			Help: "Total number of API requests by method, route template and status code",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "review_api_request_duration_seconds",
			Help:    "API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	APIRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "review_api_requests_in_flight",
			Help: "Number of API requests currently being served",
		},
	)

	// AuthEvents counts sign-up and token outcomes: signup, token_issued,
	// token_rejected, token_refreshed.
	AuthEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_auth_events_total",
			Help: "Total number of authentication events by type",
		},
		[]string{"event"},
	)

	MailDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_mail_deliveries_total",
			Help: "Total number of confirmation mails by transport and outcome",
		},
		[]string{"transport", "outcome"},
	)

	// ContentWrites counts successful writes by resource and action.
	ContentWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_content_writes_total",
			Help: "Total number of successful content writes",
		},
		[]string{"resource", "action"},
	)

	ImportedRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_import_rows_total",
			Help: "Total number of CSV rows processed by the importer",
		},
		[]string{"file", "outcome"},
	)
)

// RecordAPIRequest records one served request.
func RecordAPIRequest(method, route string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// TrackInFlight adjusts the in-flight gauge.
func TrackInFlight(inc bool) {
	if inc {
		APIRequestsInFlight.Inc()
	} else {
		APIRequestsInFlight.Dec()
	}
}

func RecordAuthEvent(event string) {
	AuthEvents.WithLabelValues(event).Inc()
}

func RecordMailDelivery(transport string, err error) {
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	MailDeliveries.WithLabelValues(transport, outcome).Inc()
}

func RecordContentWrite(resource, action string) {
	ContentWrites.WithLabelValues(resource, action).Inc()
}

func RecordImportRow(file string, err error) {
	outcome := "imported"
	if err != nil {
		outcome = "failed"
	}
	ImportedRows.WithLabelValues(file, outcome).Inc()
}
