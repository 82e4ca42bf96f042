// Package metrics exposes Prometheus instrumentation for the API and the
// compliance engines.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apperrors "github.com/playguard/playguard/internal/errors"
	"github.com/playguard/playguard/internal/session"
)

var (
	apiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests labeled by route, method and status",
		},
		[]string{"route", "method", "status"},
	)
	requestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	sessionTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_transitions_total",
			Help: "Total number of session status transitions",
		},
		[]string{"from", "to"},
	)
	limitChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "limit_checks_total",
			Help: "Total number of limit checks labeled by outcome",
		},
		[]string{"result"},
	)
	riskAssessmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_assessments_total",
			Help: "Total number of completed risk assessments labeled by tier",
		},
		[]string{"level"},
	)
	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Total number of notifications labeled by type and delivery status",
		},
		[]string{"type", "status"},
	)
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors split by type and severity",
		},
		[]string{"type", "severity"},
	)
	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_sessions",
			Help: "Current number of active gaming sessions",
		},
	)
)

func init() {
	session.RegisterTransitionRecorder(RecordSessionTransition)
	apperrors.RegisterErrorRecorder(RecordError)
}

// RecordRequest increments request counters and records duration.
func RecordRequest(route, method, status string, duration time.Duration) {
	if route == "" {
		route = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	if status == "" {
		status = "unknown"
	}

	apiRequestsTotal.WithLabelValues(route, method, status).Inc()
	requestDurationSeconds.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordSessionTransition tracks session status transitions.
func RecordSessionTransition(from, to string) {
	if from == "" {
		from = "unknown"
	}
	if to == "" {
		to = "unknown"
	}

	sessionTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordLimitCheck tracks allow/deny outcomes of limit checks.
func RecordLimitCheck(allowed bool) {
	result := "allowed"
	if !allowed {
		result = "denied"
	}

	limitChecksTotal.WithLabelValues(result).Inc()
}

// RecordRiskAssessment tracks completed assessments by tier.
func RecordRiskAssessment(level string) {
	if level == "" {
		level = "unknown"
	}

	riskAssessmentsTotal.WithLabelValues(level).Inc()
}

// RecordNotification tracks notification delivery outcomes.
func RecordNotification(notificationType, status string) {
	if notificationType == "" {
		notificationType = "unknown"
	}
	if status == "" {
		status = "unknown"
	}

	notificationsTotal.WithLabelValues(notificationType, status).Inc()
}

// RecordError increments error counters with metadata.
func RecordError(errType, severity string) {
	if errType == "" {
		errType = "unknown"
	}
	if severity == "" {
		severity = "unknown"
	}

	errorsTotal.WithLabelValues(errType, severity).Inc()
}

// SetActiveSessions updates the gauge for currently active sessions.
func SetActiveSessions(count int) {
	activeSessions.Set(float64(count))
}

// SessionCounter reports how many sessions are currently active.
type SessionCounter interface {
	CountActive(ctx context.Context) (int, error)
}

// SessionCollector periodically gathers the active session count and
// emits the gauge metric.
type SessionCollector struct {
	counter SessionCounter
}

// NewSessionCollector builds a collector bound to the provided counter.
func NewSessionCollector(counter SessionCounter) *SessionCollector {
	return &SessionCollector{counter: counter}
}

// Run polls the counter every 10 seconds until ctx is cancelled.
func (c *SessionCollector) Run(ctx context.Context) {
	if c == nil || c.counter == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		if count, err := c.counter.CountActive(ctx); err == nil {
			SetActiveSessions(count)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(10 * time.Second):
		}
	}
}
