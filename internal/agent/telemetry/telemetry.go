package telemetry

import (
	"sync"
	"time"

	"github.com/mohammad-safakhou/techbrief/config"
	"github.com/prometheus/client_golang/prometheus"
)

// Telemetry records pipeline metrics into prometheus collectors and keeps a
// small in-process cost summary. A nil *Telemetry is a valid no-op.
type Telemetry struct {
	config config.TelemetryConfig

	runs          *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	agentResults  *prometheus.CounterVec
	providerCalls *prometheus.CounterVec
	stubFallbacks *prometheus.CounterVec
	tokens        *prometheus.CounterVec

	mu      sync.RWMutex
	summary CostSummary
}

// CostSummary provides a summary of runs and spend since process start
type CostSummary struct {
	Runs           int64              `json:"runs"`
	FailedRuns     int64              `json:"failed_runs"`
	TotalCost      float64            `json:"total_cost_usd"`
	TotalTokens    int64              `json:"total_tokens"`
	ProviderTokens map[string]int64   `json:"provider_tokens"`
	ProviderCosts  map[string]float64 `json:"provider_costs"`
}

// NewTelemetry builds collectors and registers them on reg. When reg is nil
// the prometheus default registerer is used.
func NewTelemetry(cfg config.TelemetryConfig, reg prometheus.Registerer) *Telemetry {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	ns := cfg.Namespace
	if ns == "" {
		ns = "techbrief"
	}
	t := &Telemetry{
		config: cfg,
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "comparison_runs_total",
			Help: "Comparison runs by outcome.",
		}, []string{"outcome"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns, Name: "stage_duration_seconds",
			Help:    "Wall time per pipeline stage.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60},
		}, []string{"stage"}),
		agentResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "agent_results_total",
			Help: "Agent fragments by agent and status.",
		}, []string{"agent", "status"}),
		providerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "provider_calls_total",
			Help: "LLM provider calls by provider and outcome.",
		}, []string{"provider", "outcome"}),
		stubFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "stub_fallbacks_total",
			Help: "Deterministic stub substitutions by purpose.",
		}, []string{"purpose"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "provider_tokens_total",
			Help: "Tokens consumed by provider and direction.",
		}, []string{"provider", "direction"}),
		summary: CostSummary{
			ProviderTokens: make(map[string]int64),
			ProviderCosts:  make(map[string]float64),
		},
	}
	if cfg.Enabled {
		reg.MustRegister(t.runs, t.stageDuration, t.agentResults, t.providerCalls, t.stubFallbacks, t.tokens)
	}
	return t
}

// RecordRun records a finished comparison run
func (t *Telemetry) RecordRun(success bool, cost float64, tokens int64) {
	if t == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failed"
	}
	t.runs.WithLabelValues(outcome).Inc()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.summary.Runs++
	if !success {
		t.summary.FailedRuns++
	}
	t.summary.TotalCost += cost
	t.summary.TotalTokens += tokens
}

// RecordStage observes the duration of one pipeline phase
func (t *Telemetry) RecordStage(stage string, d time.Duration) {
	if t == nil {
		return
	}
	t.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordAgent counts an agent outcome (ok, degraded, empty)
func (t *Telemetry) RecordAgent(agent, status string) {
	if t == nil {
		return
	}
	t.agentResults.WithLabelValues(agent, status).Inc()
}

// RecordProviderCall counts a provider call and its token usage
func (t *Telemetry) RecordProviderCall(provider string, success bool, inputTokens, outputTokens int64, cost float64) {
	if t == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "error"
	}
	t.providerCalls.WithLabelValues(provider, outcome).Inc()
	if inputTokens > 0 {
		t.tokens.WithLabelValues(provider, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		t.tokens.WithLabelValues(provider, "output").Add(float64(outputTokens))
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.summary.ProviderTokens[provider] += inputTokens + outputTokens
	t.summary.ProviderCosts[provider] += cost
}

// RecordStub counts a stub substitution for the given purpose
func (t *Telemetry) RecordStub(purpose string) {
	if t == nil {
		return
	}
	t.stubFallbacks.WithLabelValues(purpose).Inc()
}

// Summary returns a copy of the cost summary
func (t *Telemetry) Summary() CostSummary {
	if t == nil {
		return CostSummary{}
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := t.summary
	out.ProviderTokens = make(map[string]int64, len(t.summary.ProviderTokens))
	for k, v := range t.summary.ProviderTokens {
		out.ProviderTokens[k] = v
	}
	out.ProviderCosts = make(map[string]float64, len(t.summary.ProviderCosts))
	for k, v := range t.summary.ProviderCosts {
		out.ProviderCosts[k] = v
	}
	return out
}

// CalculateCost calculates the cost for a given number of tokens
func CalculateCost(inputTokens, outputTokens int64, costPer1KInput, costPer1KOutput float64) float64 {
	inputCost := float64(inputTokens) / 1000.0 * costPer1KInput
	outputCost := float64(outputTokens) / 1000.0 * costPer1KOutput
	return inputCost + outputCost
}
