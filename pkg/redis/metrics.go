package redis

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	goredis "github.com/redis/go-redis/v9"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "redis_requests_total",
		Help: "Redis requests by method",
	}, []string{"method"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "redis_errors_total",
		Help: "Redis errors by method",
	}, []string{"method"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "redis_request_duration_seconds",
		Help:    "Redis request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
)

// MetricsClient decorates Client with per-method counters and latency
// histograms.
type MetricsClient struct {
	next *Client
}

func NewMetricsClient(next *Client) *MetricsClient {
	return &MetricsClient{next: next}
}

func observe(method string, err error, started time.Time) {
	requestDuration.WithLabelValues(method).Observe(time.Since(started).Seconds())
	requestsTotal.WithLabelValues(method).Inc()
	if err != nil {
		errorsTotal.WithLabelValues(method).Inc()
	}
}

func (m *MetricsClient) Get(ctx context.Context, key string) (string, error) {
	started := time.Now()
	result, err := m.next.Get(ctx, key)
	observe("get", err, started)
	return result, err
}

func (m *MetricsClient) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	started := time.Now()
	err := m.next.Set(ctx, key, value, ttl)
	observe("set", err, started)
	return err
}

func (m *MetricsClient) Delete(ctx context.Context, key string) error {
	started := time.Now()
	err := m.next.Delete(ctx, key)
	observe("delete", err, started)
	return err
}

func (m *MetricsClient) TxPipeline() goredis.Pipeliner {
	return m.next.TxPipeline()
}

func (m *MetricsClient) Close() error {
	return m.next.Close()
}
