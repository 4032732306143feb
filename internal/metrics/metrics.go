package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hsse_http_requests_total",
			Help: "Total number of HTTP requests by method, route and status code",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hsse_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestsInProgress = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hsse_http_requests_in_progress",
			Help: "Current number of HTTP requests being processed",
		},
	)

	// EscalationNotifications исходы отправки уведомлений об эскалации по каналу.
	EscalationNotifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hsse_escalation_notifications_total",
			Help: "Escalation notification dispatch attempts by notification type and outcome",
		},
		[]string{"type", "outcome"},
	)

	registerOnce sync.Once
)

// Исходы отправки уведомления.
const (
	OutcomePushed       = "pushed"
	OutcomeOffline      = "offline"
	OutcomePushFailed   = "push_failed"
	OutcomeQueued       = "queued"
	OutcomeQueueFailed  = "queue_failed"
	OutcomeMarkedSent   = "marked_sent"
	OutcomeRecordFailed = "record_failed"
)

// Register регистрирует метрики в глобальном реестре один раз за процесс.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(HTTPRequestsTotal)
		prometheus.MustRegister(HTTPRequestDuration)
		prometheus.MustRegister(HTTPRequestsInProgress)
		prometheus.MustRegister(EscalationNotifications)
	})
}

// Handler отдаёт метрики в формате Prometheus.
func Handler() http.Handler {
	return promhttp.Handler()
}
