package budget

import (
	"fmt"
	"sync"
	"time"
)

// Usage is a point-in-time view of what a run has consumed.
type Usage struct {
	Cost    float64          `json:"cost_usd"`
	Tokens  int64            `json:"tokens"`
	Elapsed time.Duration    `json:"elapsed"`
	Stages  map[string]int64 `json:"stage_tokens,omitempty"`
	// Exceeded describes the first limit the run crossed, if any.
	Exceeded string `json:"budget_exceeded,omitempty"`
}

// Monitor tracks actual usage against configured limits during a run.
// It is safe for concurrent use by the fan-out stage. Once a limit is
// crossed the breach sticks for the rest of the run.
type Monitor struct {
	config     Config
	costUsed   float64
	tokensUsed int64
	stages     map[string]int64
	breach     error
	startTime  time.Time
	mu         sync.Mutex
}

// NewMonitor clones the provided config and starts tracking usage.
func NewMonitor(cfg Config) *Monitor {
	return &Monitor{
		config:    cfg.Clone(),
		stages:    make(map[string]int64),
		startTime: time.Now(),
	}
}

// Record attributes usage to a pipeline stage and checks cost and token limits.
func (m *Monitor) Record(stage string, cost float64, tokens int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.costUsed += cost
	m.tokensUsed += tokens
	if stage != "" {
		m.stages[stage] += tokens
	}

	var err error
	switch {
	case m.config.MaxCost != nil && m.costUsed > *m.config.MaxCost:
		err = ErrExceeded{
			Kind:  "cost",
			Usage: fmt.Sprintf("$%.4f", m.costUsed),
			Limit: fmt.Sprintf("$%.4f", *m.config.MaxCost),
		}
	case m.config.MaxTokens != nil && m.tokensUsed > *m.config.MaxTokens:
		err = ErrExceeded{
			Kind:  "tokens",
			Usage: fmt.Sprintf("%d tokens", m.tokensUsed),
			Limit: fmt.Sprintf("%d tokens", *m.config.MaxTokens),
		}
	}
	if err != nil && m.breach == nil {
		m.breach = err
	}
	return err
}

// checkTime verifies elapsed time against the configured limit. Callers hold mu.
func (m *Monitor) checkTime() error {
	if m.config.MaxTimeSeconds == nil || *m.config.MaxTimeSeconds <= 0 {
		return nil
	}
	elapsed := time.Since(m.startTime)
	limit := time.Duration(*m.config.MaxTimeSeconds) * time.Second
	if elapsed <= limit {
		return nil
	}
	err := ErrExceeded{
		Kind:  "time",
		Usage: elapsed.String(),
		Limit: limit.String(),
	}
	if m.breach == nil {
		m.breach = err
	}
	return err
}

// Exceeded returns the first breach of the run, checking the time limit
// first, or nil while the run is within budget.
func (m *Monitor) Exceeded() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.breach == nil {
		_ = m.checkTime()
	}
	return m.breach
}

// Snapshot returns a copy of the usage including per-stage token counts.
func (m *Monitor) Snapshot() Usage {
	m.mu.Lock()
	defer m.mu.Unlock()
	stages := make(map[string]int64, len(m.stages))
	for k, v := range m.stages {
		stages[k] = v
	}
	u := Usage{Cost: m.costUsed, Tokens: m.tokensUsed, Elapsed: time.Since(m.startTime), Stages: stages}
	if m.breach != nil {
		u.Exceeded = m.breach.Error()
	}
	return u
}
