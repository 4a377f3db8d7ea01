// Package metrics exposes Prometheus counters for the agent loop.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Request outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeRetry    = "retryable"
	OutcomeOverflow = "context_overflow"
	OutcomeFatal    = "fatal"
)

// Tool outcomes.
const (
	ToolOK        = "ok"
	ToolUnknown   = "unknown"
	ToolMalformed = "malformed"
)

// Metrics groups the collectors of one agent on its own registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	llmRequests  *prometheus.CounterVec
	llmDuration  prometheus.Histogram
	toolCalls    *prometheus.CounterVec
	toolDuration *prometheus.HistogramVec
	trimmed      prometheus.Counter
	tokens       prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		llmRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "robopilot_llm_requests_total",
				Help: "LLM requests by outcome.",
			},
			[]string{"outcome"},
		),
		llmDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "robopilot_llm_request_duration_seconds",
				Help:    "LLM request latency in seconds.",
				Buckets: prometheus.DefBuckets,
			},
		),
		toolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "robopilot_tool_calls_total",
				Help: "Tool calls by tool and outcome.",
			},
			[]string{"tool", "outcome"},
		),
		toolDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "robopilot_tool_duration_seconds",
				Help: "Duration of tool executions",
			},
			[]string{"tool"},
		),
		trimmed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "robopilot_transcript_trimmed_messages_total",
			Help: "Messages removed from the transcript to fit the context window.",
		}),
		tokens: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "robopilot_context_tokens",
			Help: "Total tokens reported by the last LLM response.",
		}),
	}
	m.registry.MustRegister(m.llmRequests, m.llmDuration, m.toolCalls, m.toolDuration, m.trimmed, m.tokens)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.llmRequests.WithLabelValues(outcome).Inc()
	m.llmDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveTool(tool, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(tool, outcome).Inc()
	if outcome == ToolOK {
		m.toolDuration.WithLabelValues(tool).Observe(elapsed.Seconds())
	}
}

func (m *Metrics) ObserveTrim(removed int) {
	if m == nil || removed <= 0 {
		return
	}
	m.trimmed.Add(float64(removed))
}

func (m *Metrics) SetTokens(total int) {
	if m == nil {
		return
	}
	m.tokens.Set(float64(total))
}
