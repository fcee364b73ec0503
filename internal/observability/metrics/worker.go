package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	retryTotal    *prometheus.CounterVec
	retryDuration *prometheus.HistogramVec
	retryInFlight prometheus.Gauge
	queueLag      *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	retryTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cpq",
			Subsystem: "worker",
			Name:      "persist_retry_total",
			Help:      "Total record persist retries by status.",
		},
		[]string{"service", "status"},
	)
	retryDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cpq",
			Subsystem: "worker",
			Name:      "persist_retry_duration_seconds",
			Help:      "Persist retry duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	retryInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cpq",
			Subsystem: "worker",
			Name:      "persist_retry_in_flight",
			Help:      "Number of in-flight persist retries.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cpq",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between the failed persist and the retry attempt.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)

	registry.MustRegister(retryTotal, retryDuration, retryInFlight, queueLag)

	return &WorkerMetrics{
		registry:      registry,
		retryTotal:    retryTotal,
		retryDuration: retryDuration,
		retryInFlight: retryInFlight,
		queueLag:      queueLag,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartRetry() {
	m.retryInFlight.Inc()
}

func (m *WorkerMetrics) FinishRetry(service string, duration time.Duration, err error) {
	m.retryInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.retryTotal.WithLabelValues(service, status).Inc()
	m.retryDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}
