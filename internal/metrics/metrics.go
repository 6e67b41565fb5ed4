package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ppiankov/ttpmap/internal/model"
)

// Metrics holds the counters for one ttpmap process. Each instance owns its
// registry so batch runs can dump it as a node_exporter textfile.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Sessions        *prometheus.CounterVec
	Attempts        prometheus.Counter
	Claims          *prometheus.CounterVec
	GeneratorCalls  *prometheus.CounterVec
	TokensUsed      *prometheus.CounterVec
	SessionDuration prometheus.Histogram
}

// New creates and registers all metrics on a private registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Sessions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ttpmap_sessions_total",
			Help: "Mapping sessions by outcome",
		}, []string{"outcome"}),
		Attempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "ttpmap_generator_attempts_total",
			Help: "Draft generator invocations across all sessions",
		}),
		Claims: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ttpmap_claims_verified_total",
			Help: "Final-draft claims by framework and verification status",
		}, []string{"framework", "status"}),
		GeneratorCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ttpmap_generator_calls_total",
			Help: "Generator backend calls by provider and result",
		}, []string{"provider", "result"}),
		TokensUsed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ttpmap_llm_tokens_total",
			Help: "Tokens reported by the generator backend",
		}, []string{"provider"}),
		SessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ttpmap_session_duration_seconds",
			Help:    "Wall time of mapping sessions",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
	}
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveGeneratorCall records one backend call. result is ok, cached, error or malformed.
func (m *Metrics) ObserveGeneratorCall(provider, result string, tokens int) {
	if m == nil {
		return
	}
	m.GeneratorCalls.WithLabelValues(provider, result).Inc()
	if tokens > 0 {
		m.TokensUsed.WithLabelValues(provider).Add(float64(tokens))
	}
}

// ObserveReport records a finished session
func (m *Metrics) ObserveReport(report *model.Report) {
	if m == nil || report == nil {
		return
	}
	m.Sessions.WithLabelValues(string(report.Outcome)).Inc()
	m.Attempts.Add(float64(report.Attempts))
	for _, r := range report.Results {
		m.Claims.WithLabelValues(string(r.Claim.Framework), string(r.Status)).Inc()
	}
	if !report.FinishedAt.IsZero() && !report.StartedAt.IsZero() {
		m.SessionDuration.Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())
	}
}

// ObserveFailure records a session that ended in a generation or configuration error
func (m *Metrics) ObserveFailure() {
	if m == nil {
		return
	}
	m.Sessions.WithLabelValues("failed").Inc()
}

// WriteTextfile writes all metrics in the text exposition format
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
