package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the enchanter gateway.
type Metrics struct {
	RequestTotal       *prometheus.CounterVec
	RequestDurationMs  *prometheus.HistogramVec
	TokensTotal        *prometheus.CounterVec
	CacheLookupTotal   *prometheus.CounterVec
	ResearchStageTotal *prometheus.CounterVec
	BatchTaskTotal     *prometheus.CounterVec
	UpstreamRetryTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		RequestTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "enchanter_request_total",
			Help: "Total number of enhancement requests processed.",
		}, []string{"model", "style", "status", "cache"}),

		RequestDurationMs: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "enchanter_request_duration_ms",
			Help:    "Total request duration in milliseconds (including upstream latency).",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		}, []string{"model"}),

		TokensTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "enchanter_tokens_total",
			Help: "Total tokens processed.",
		}, []string{"model", "direction"}),

		CacheLookupTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "enchanter_cache_lookup_total",
			Help: "Cache lookups by scope and outcome.",
		}, []string{"scope", "outcome"}),

		ResearchStageTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "enchanter_research_stage_total",
			Help: "Research pipeline stage outcomes.",
		}, []string{"stage", "outcome"}),

		BatchTaskTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "enchanter_batch_task_total",
			Help: "Batch task terminal states.",
		}, []string{"mode", "outcome"}),

		UpstreamRetryTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "enchanter_upstream_retry_total",
			Help: "Upstream attempts that were retried, by failure kind.",
		}, []string{"kind"}),
	}
}

// RecordRequest records metrics for a completed enhancement request.
func (m *Metrics) RecordRequest(labels RequestLabels) {
	cache := "miss"
	if labels.CacheHit {
		cache = "hit"
	}
	m.RequestTotal.WithLabelValues(labels.Model, labels.Style, labels.Status, cache).Inc()
	m.RequestDurationMs.WithLabelValues(labels.Model).Observe(labels.DurationMs)

	if labels.PromptTokens > 0 {
		m.TokensTotal.WithLabelValues(labels.Model, "prompt").Add(float64(labels.PromptTokens))
	}
	if labels.CompletionTokens > 0 {
		m.TokensTotal.WithLabelValues(labels.Model, "completion").Add(float64(labels.CompletionTokens))
	}
}

// RecordCacheLookup records a cache lookup outcome for a scope ("response"
// or "research").
func (m *Metrics) RecordCacheLookup(scope string, hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.CacheLookupTotal.WithLabelValues(scope, outcome).Inc()
}

// RecordResearchStage records one research stage outcome.
func (m *Metrics) RecordResearchStage(stage, outcome string) {
	m.ResearchStageTotal.WithLabelValues(stage, outcome).Inc()
}

// RecordBatchTask records one batch task reaching a terminal state.
func (m *Metrics) RecordBatchTask(mode, outcome string) {
	m.BatchTaskTotal.WithLabelValues(mode, outcome).Inc()
}

// RequestLabels holds the label values for recording a request.
type RequestLabels struct {
	Model            string
	Style            string
	Status           string
	CacheHit         bool
	DurationMs       float64
	PromptTokens     int
	CompletionTokens int
}
