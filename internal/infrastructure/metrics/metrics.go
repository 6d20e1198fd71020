// Package metrics exposes Prometheus collectors for numbering, quota and HTTP traffic.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"easyentrepreneur/internal/core/numerator"
	"easyentrepreneur/internal/core/tenant"
)

const namespace = "easyentrepreneur"

type Metrics struct {
	AllocationAttempts  *prometheus.HistogramVec
	NumberCollisions    *prometheus.CounterVec
	AllocationExhausted *prometheus.CounterVec
	QuotaChecks         *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec
	OutboxRelayed       *prometheus.CounterVec
}

// New registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		AllocationAttempts: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "number_allocation_attempts",
			Help:      "Reservation attempts needed per number allocation",
			Buckets:   []float64{1, 2, 3, 5, 8, 10},
		}, []string{"kind"}),
		NumberCollisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "number_collisions_total",
			Help:      "Candidate numbers rejected by the uniqueness constraint",
		}, []string{"kind"}),
		AllocationExhausted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "number_allocation_exhausted_total",
			Help:      "Allocations that ran out of attempts",
		}, []string{"kind"}),
		QuotaChecks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_checks_total",
			Help:      "Monthly quota decisions by tier and result",
		}, []string{"tier", "result"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Latency of HTTP endpoints in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		OutboxRelayed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_messages_total",
			Help:      "Outbox messages handed to the broker by result",
		}, []string{"event_type", "result"}),
	}
}

// AllocationFinished implements numerator.Observer.
func (m *Metrics) AllocationFinished(kind numerator.Kind, attempts int, err error) {
	k := string(kind)
	if attempts > 0 {
		m.AllocationAttempts.WithLabelValues(k).Observe(float64(attempts))
	}

	collisions := attempts - 1
	if errors.Is(err, numerator.ErrAllocationExhausted) {
		collisions = attempts
		m.AllocationExhausted.WithLabelValues(k).Inc()
	}
	if collisions > 0 {
		m.NumberCollisions.WithLabelValues(k).Add(float64(collisions))
	}
}

// QuotaChecked implements quota.Observer.
func (m *Metrics) QuotaChecked(tier tenant.Tier, allowed bool) {
	result := "denied"
	if allowed {
		result = "allowed"
	}
	m.QuotaChecks.WithLabelValues(string(tier), result).Inc()
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(method, route, status string, d time.Duration) {
	m.RequestDuration.WithLabelValues(method, route, status).Observe(d.Seconds())
}

// ObserveRelay records one outbox delivery.
func (m *Metrics) ObserveRelay(eventType string, err error) {
	result := "published"
	if err != nil {
		result = "failed"
	}
	m.OutboxRelayed.WithLabelValues(eventType, result).Inc()
}

// PoolStatsFunc returns connection counts (total, acquired, idle).
type PoolStatsFunc func() (total, acquired, idle int32)

// RegisterPool exposes database pool gauges read at scrape time.
func RegisterPool(reg prometheus.Registerer, stats PoolStatsFunc) {
	f := promauto.With(reg)
	gauge := func(name, help string, pick func(total, acquired, idle int32) int32) {
		f.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db_pool",
			Name:      name,
			Help:      help,
		}, func() float64 {
			return float64(pick(stats()))
		})
	}
	gauge("total_conns", "Open connections", func(t, _, _ int32) int32 { return t })
	gauge("acquired_conns", "Connections in use", func(_, a, _ int32) int32 { return a })
	gauge("idle_conns", "Idle connections", func(_, _, i int32) int32 { return i })
}
