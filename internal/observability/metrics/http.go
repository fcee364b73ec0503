package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/electroquote/cpq-backend/internal/core/domain"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	analysesTotal     *prometheus.CounterVec
	analysisDuration  *prometheus.HistogramVec
	confidenceOverall *prometheus.HistogramVec
	finalSpecs        *prometheus.HistogramVec
	removedSpecs      *prometheus.CounterVec
	llmRetriesTotal   *prometheus.CounterVec
	llmTokensTotal    *prometheus.CounterVec
	persistWarnings   *prometheus.CounterVec
	confirmTotal      *prometheus.CounterVec
	feedbackTotal     *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cpq",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cpq",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cpq",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	analysesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cpq",
			Subsystem: "analysis",
			Name:      "runs_total",
			Help:      "Total analysis pipeline runs by status.",
		},
		[]string{"service", "status", "document_type"},
	)
	analysisDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cpq",
			Subsystem: "analysis",
			Name:      "duration_seconds",
			Help:      "Pipeline run duration in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 60, 120},
		},
		[]string{"service", "document_type"},
	)
	confidenceOverall := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cpq",
			Subsystem: "analysis",
			Name:      "confidence_overall",
			Help:      "Distribution of overall confidence on completed runs.",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.85, 0.9, 0.95, 1},
		},
		[]string{"service"},
	)
	finalSpecs := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cpq",
			Subsystem: "analysis",
			Name:      "final_specs",
			Help:      "Distribution of surviving specification entries per run.",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 32, 64},
		},
		[]string{"service"},
	)
	removedSpecs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cpq",
			Subsystem: "analysis",
			Name:      "removed_specs_total",
			Help:      "Specification entries removed by the validator, by reason.",
		},
		[]string{"service", "reason"},
	)
	llmRetriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cpq",
			Subsystem: "llm",
			Name:      "retries_total",
			Help:      "JSON repair retries against the extraction provider.",
		},
		[]string{"service"},
	)
	llmTokensTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cpq",
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Token usage by direction.",
		},
		[]string{"service", "direction", "model"},
	)
	persistWarnings := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cpq",
			Subsystem: "analysis",
			Name:      "persist_warnings_total",
			Help:      "Runs whose record could not be stored synchronously.",
		},
		[]string{"service"},
	)
	confirmTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cpq",
			Subsystem: "analysis",
			Name:      "confirms_total",
			Help:      "Record confirmations by outcome.",
		},
		[]string{"service", "outcome"},
	)
	feedbackTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cpq",
			Subsystem: "learning",
			Name:      "feedback_total",
			Help:      "Accepted learning feedback events.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		analysesTotal,
		analysisDuration,
		confidenceOverall,
		finalSpecs,
		removedSpecs,
		llmRetriesTotal,
		llmTokensTotal,
		persistWarnings,
		confirmTotal,
		feedbackTotal,
	)

	return &HTTPServerMetrics{
		registry:          registry,
		requestTotal:      requestTotal,
		requestDuration:   requestDuration,
		requestInFlight:   requestInFlight,
		analysesTotal:     analysesTotal,
		analysisDuration:  analysisDuration,
		confidenceOverall: confidenceOverall,
		finalSpecs:        finalSpecs,
		removedSpecs:      removedSpecs,
		llmRetriesTotal:   llmRetriesTotal,
		llmTokensTotal:    llmTokensTotal,
		persistWarnings:   persistWarnings,
		confirmTotal:      confirmTotal,
		feedbackTotal:     feedbackTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/ai-analysis/analysis/"):
		if strings.HasSuffix(path, "/confirm") {
			return "/ai-analysis/analysis/{id}/confirm"
		}
		return "/ai-analysis/analysis/{id}"
	default:
		return path
	}
}

// RecordAnalysis observes one completed or failed pipeline run.
func (m *HTTPServerMetrics) RecordAnalysis(service string, record *domain.AnalysisRecord, persistWarning bool) {
	if record == nil {
		return
	}
	docType := string(record.DocumentType)
	if docType == "" {
		docType = "unknown"
	}
	m.analysesTotal.WithLabelValues(service, string(record.Status), docType).Inc()
	m.analysisDuration.WithLabelValues(service, docType).Observe(record.AnalysisDurationS)

	if record.Status == domain.AnalysisCompleted {
		if record.ConfidenceScores != nil {
			m.confidenceOverall.WithLabelValues(service).Observe(record.ConfidenceScores.Overall)
		}
		m.finalSpecs.WithLabelValues(service).Observe(float64(record.FinalSpecsCount))
		if record.NoiseRemovedCount > 0 {
			m.removedSpecs.WithLabelValues(service, domain.RemovalNoisePattern).Add(float64(record.NoiseRemovedCount))
		}
		if record.InvalidRemovedCount > 0 {
			m.removedSpecs.WithLabelValues(service, domain.RemovalNoTechnicalContent).Add(float64(record.InvalidRemovedCount))
		}
	}
	if record.LLMRetries > 0 {
		m.llmRetriesTotal.WithLabelValues(service).Add(float64(record.LLMRetries))
	}
	if persistWarning {
		m.persistWarnings.WithLabelValues(service).Inc()
	}
}

func (m *HTTPServerMetrics) RecordTokenUsage(service, model string, promptTokens, completionTokens int) {
	if model == "" {
		model = "unknown"
	}
	if promptTokens > 0 {
		m.llmTokensTotal.WithLabelValues(service, "in", model).Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.llmTokensTotal.WithLabelValues(service, "out", model).Add(float64(completionTokens))
	}
}

func (m *HTTPServerMetrics) RecordConfirm(service, outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.confirmTotal.WithLabelValues(service, outcome).Inc()
}

func (m *HTTPServerMetrics) RecordFeedback(service string) {
	m.feedbackTotal.WithLabelValues(service).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
