// Package metrics exposes Prometheus metrics for modeling runs and LLM calls.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/c360studio/semmodel/llm"
	"github.com/c360studio/semmodel/workflow"
)

const namespace = "semmodel"

// Metrics holds the collectors. Register it once per registry.
type Metrics struct {
	registry *prometheus.Registry

	runsStarted   prometheus.Counter
	runsFinished  *prometheus.CounterVec
	runsActive    prometheus.Gauge
	runDuration   *prometheus.HistogramVec
	runIterations prometheus.Histogram
	stages        *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec

	llmCalls    *prometheus.CounterVec
	llmDuration *prometheus.HistogramVec
	llmTokens   *prometheus.CounterVec
	llmRetries  *prometheus.CounterVec
}

var (
	_ workflow.Observer = (*Metrics)(nil)
	_ llm.CallRecorder  = (*Metrics)(nil)
)

// New creates metrics registered on a fresh registry that also carries the
// Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg)
}

// NewWithRegistry creates metrics on the given registry.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		runsStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Modeling runs started.",
		}),
		runsFinished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_finished_total",
			Help:      "Modeling runs finished, by termination and caveat.",
		}, []string{"termination", "caveat"}),
		runsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_active",
			Help:      "Modeling runs in progress.",
		}),
		runDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of finished runs.",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1200},
		}, []string{"termination"}),
		runIterations: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_iterations",
			Help:      "Validation rounds per accepted or abandoned run.",
			Buckets:   []float64{1, 2, 3, 4, 5, 8, 10},
		}),
		stages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_results_total",
			Help:      "Stage results by stage and outcome.",
		}, []string{"stage", "outcome"}),
		stageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Stage duration, including agent calls.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}, []string{"stage"}),
		llmCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_calls_total",
			Help:      "LLM calls by role, endpoint and result.",
		}, []string{"role", "endpoint", "result"}),
		llmDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_call_duration_seconds",
			Help:      "LLM call latency including retries and fallbacks.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}, []string{"endpoint"}),
		llmTokens: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_total",
			Help:      "Tokens used by LLM calls.",
		}, []string{"endpoint", "kind"}),
		llmRetries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_retries_total",
			Help:      "Retries and endpoint fallbacks taken by LLM calls.",
		}, []string{"kind"}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Observe implements workflow.Observer.
func (m *Metrics) Observe(_ context.Context, e workflow.Event) {
	switch e.Kind {
	case workflow.EventRunStarted:
		m.runsStarted.Inc()
		m.runsActive.Inc()
	case workflow.EventStage:
		if e.Record == nil {
			return
		}
		stage := string(e.Record.Stage)
		m.stages.WithLabelValues(stage, string(e.Record.Outcome)).Inc()
		m.stageDuration.WithLabelValues(stage).Observe(e.Record.Duration.Seconds())
	case workflow.EventRunFinished:
		m.runsActive.Dec()
		termination, caveat := "aborted", ""
		if res := e.Result; res != nil {
			termination, caveat = string(res.Termination), string(res.Caveat)
			m.runIterations.Observe(float64(res.Iterations))
			m.runDuration.WithLabelValues(termination).Observe(res.CompletedAt.Sub(res.StartedAt).Seconds())
		}
		m.runsFinished.WithLabelValues(termination, caveat).Inc()
	}
}

// Record implements llm.CallRecorder.
func (m *Metrics) Record(_ context.Context, rec *llm.CallRecord) error {
	result := "success"
	if !rec.Succeeded() {
		result = "error"
	}
	endpoint := rec.Endpoint
	if endpoint == "" {
		endpoint = "none"
	}
	m.llmCalls.WithLabelValues(rec.Role, endpoint, result).Inc()
	m.llmDuration.WithLabelValues(endpoint).Observe(float64(rec.DurationMs) / 1000)
	if rec.PromptTokens > 0 {
		m.llmTokens.WithLabelValues(endpoint, "prompt").Add(float64(rec.PromptTokens))
	}
	if rec.CompletionTokens > 0 {
		m.llmTokens.WithLabelValues(endpoint, "completion").Add(float64(rec.CompletionTokens))
	}
	if rec.Retries > 0 {
		m.llmRetries.WithLabelValues("retry").Add(float64(rec.Retries))
	}
	if n := len(rec.FallbacksUsed); n > 0 {
		m.llmRetries.WithLabelValues("fallback").Add(float64(n))
	}
	return nil
}
