package session_models

import (
	"time"

	core "github.com/mohammad-safakhou/techbrief/internal/agent/core"
)

// SharedComparison is a finished comparison published under a short id.
type SharedComparison struct {
	ID           string            `json:"id"`
	Query        string            `json:"query"`
	OptionA      string            `json:"option_a"`
	OptionB      string            `json:"option_b"`
	Winner       string            `json:"winner"`
	Brief        string            `json:"brief"`
	SliderData   core.SliderData   `json:"slider_data"`
	ValueMetrics core.ValueMetrics `json:"value_metrics"`
	ViewCount    int               `json:"view_count"`
	CreatedAt    time.Time         `json:"created_at"`
}

// FromResult builds a share entry from a pipeline result.
func FromResult(r core.ComparisonResult) SharedComparison {
	s := SharedComparison{
		Query:        r.Query,
		Winner:       r.Verdict.Winner,
		Brief:        r.Brief,
		SliderData:   r.SliderData,
		ValueMetrics: r.ValueMetrics,
		CreatedAt:    r.CreatedAt,
	}
	if r.Context != nil {
		s.OptionA, s.OptionB = r.Context.OptionA, r.Context.OptionB
	}
	return s
}

// Stats summarises the share store.
type Stats struct {
	TotalComparisons int `json:"total_comparisons"`
	TotalViews       int `json:"total_views"`
}
