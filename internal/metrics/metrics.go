package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pdfqa"

// Metrics owns a private registry with the service's collectors. All
// methods are safe on a nil receiver so callers may run without metrics.
type Metrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	ingestTotal     *prometheus.CounterVec
	ingestDuration  *prometheus.HistogramVec
	ingestInFlight  prometheus.Gauge
	queueLag        prometheus.Histogram
	supersededTotal prometheus.Counter
	documentChunks  prometheus.Histogram
	answerTotal     *prometheus.CounterVec
	answerContext   prometheus.Histogram
	llmCallsTotal   *prometheus.CounterVec
	llmCallDuration *prometheus.HistogramVec
}

func New(service string) *Metrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	m := &Metrics{
		registry: registry,
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "Total HTTP requests processed.", ConstLabels: constLabels,
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help: "HTTP request latency.", ConstLabels: constLabels,
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		ingestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ingest", Name: "documents_total",
			Help: "Extraction tasks by outcome.", ConstLabels: constLabels,
		}, []string{"outcome"}),
		ingestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "ingest", Name: "duration_seconds",
			Help: "Extraction plus chunking time by outcome.", ConstLabels: constLabels,
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"outcome"}),
		ingestInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "ingest", Name: "in_flight",
			Help: "Extraction tasks currently running.", ConstLabels: constLabels,
		}),
		queueLag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "ingest", Name: "queue_lag_seconds",
			Help: "Delay between upload and extraction start.", ConstLabels: constLabels,
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30},
		}),
		supersededTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ingest", Name: "superseded_total",
			Help: "Extraction results discarded because a newer upload replaced the document.",
			ConstLabels: constLabels,
		}),
		documentChunks: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "ingest", Name: "document_chunks",
			Help: "Chunks per ready document.", ConstLabels: constLabels,
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		answerTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "answer", Name: "requests_total",
			Help: "Question requests by outcome and selection strategy.", ConstLabels: constLabels,
		}, []string{"outcome", "strategy"}),
		answerContext: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "answer", Name: "context_chars",
			Help: "Characters of document context sent with each question.", ConstLabels: constLabels,
			Buckets: []float64{0, 250, 500, 1000, 2000, 4000, 8000, 16000},
		}),
		llmCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "llm", Name: "calls_total",
			Help: "Answer generation calls by provider and outcome.", ConstLabels: constLabels,
		}, []string{"provider", "outcome"}),
		llmCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "llm", Name: "call_duration_seconds",
			Help: "Answer generation latency including retries.", ConstLabels: constLabels,
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"provider"}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestTotal, m.requestDuration,
		m.ingestTotal, m.ingestDuration, m.ingestInFlight, m.queueLag,
		m.supersededTotal, m.documentChunks,
		m.answerTotal, m.answerContext,
		m.llmCallsTotal, m.llmCallDuration,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.requestTotal.WithLabelValues(method, route, statusClass(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) StartIngest(queueLag time.Duration) {
	if m == nil {
		return
	}
	m.ingestInFlight.Inc()
	if queueLag >= 0 {
		m.queueLag.Observe(queueLag.Seconds())
	}
}

// FinishIngest records one extraction task. outcome is ready, failed or
// superseded.
func (m *Metrics) FinishIngest(outcome string, chunks int, d time.Duration) {
	if m == nil {
		return
	}
	m.ingestInFlight.Dec()
	m.ingestTotal.WithLabelValues(outcome).Inc()
	m.ingestDuration.WithLabelValues(outcome).Observe(d.Seconds())
	switch outcome {
	case "superseded":
		m.supersededTotal.Inc()
	case "ready":
		m.documentChunks.Observe(float64(chunks))
	}
}

// ObserveSuperseded counts an upload replaced before extraction started.
func (m *Metrics) ObserveSuperseded() {
	if m == nil {
		return
	}
	m.supersededTotal.Inc()
}

// ObserveAnswer records one question request.
func (m *Metrics) ObserveAnswer(outcome, strategy string, contextChars int) {
	if m == nil {
		return
	}
	if strategy == "" {
		strategy = "none"
	}
	m.answerTotal.WithLabelValues(outcome, strategy).Inc()
	if outcome == "ok" {
		m.answerContext.Observe(float64(contextChars))
	}
}

// ObserveLLMCall satisfies llm.CallObserver.
func (m *Metrics) ObserveLLMCall(provider, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.llmCallsTotal.WithLabelValues(provider, outcome).Inc()
	m.llmCallDuration.WithLabelValues(provider).Observe(d.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
