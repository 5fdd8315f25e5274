package core

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/mohammad-safakhou/techbrief/internal/budget"
)

// Category is a coarse technology classification used to pick templates.
type Category string

const (
	CategoryDatabase       Category = "database"
	CategoryLanguage       Category = "language"
	CategoryWebFramework   Category = "web_framework"
	CategoryFrontend       Category = "frontend"
	CategoryInfrastructure Category = "infrastructure"
	CategoryHosting        Category = "hosting"
	CategoryAuth           Category = "auth"
	CategoryPayment        Category = "payment"
	CategoryStorage        Category = "storage"
	CategoryMessaging      Category = "messaging"
	CategoryOther          Category = "other"
)

// Status describes how a fragment was produced.
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
	StatusEmpty    Status = "empty"
)

// Result carries either a parsed fragment or the reason it could not be produced.
type Result[T any] struct {
	Status Status `json:"status"`
	Value  T      `json:"value"`
	Reason string `json:"reason,omitempty"`
	// Stub is set when the value came from the deterministic offline stub.
	Stub bool `json:"stub,omitempty"`
}

// OK wraps a successfully parsed value.
func OK[T any](v T) Result[T] {
	return Result[T]{Status: StatusOK, Value: v}
}

// Degraded records a failure reason with a zero value.
func Degraded[T any](reason string) Result[T] {
	return Result[T]{Status: StatusDegraded, Reason: reason}
}

// Usable reports whether Value holds parsed data.
func (r Result[T]) Usable() bool { return r.Status == StatusOK }

// State returns the status, treating the zero value as empty.
func (r Result[T]) State() Status {
	if r.Status == "" {
		return StatusEmpty
	}
	return r.Status
}

// Number is a lenient numeric value decoded from model output. It accepts
// JSON numbers and numeric strings such as "$1,140" or "40k"; anything else
// decodes to an invalid Number rather than an error.
type Number struct {
	Value float64
	Valid bool
	// Quoted is set when the value was parsed out of a JSON string.
	Quoted bool
}

// Num returns a valid Number.
func Num(v float64) Number { return Number{Value: v, Valid: true} }

// Exact reports whether the model sent a real JSON number. Quoted values are
// shown in prose but never decide a verdict or a savings figure.
func (n Number) Exact() bool { return n.Valid && !n.Quoted }

func (n *Number) UnmarshalJSON(b []byte) error {
	*n = Number{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		if v, ok := parseLooseNumber(s); ok {
			*n = Number{Value: v, Valid: true, Quoted: true}
		}
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		*n = Num(f)
	}
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

// String renders the value for prose, or "N/A" when unknown.
func (n Number) String() string {
	if !n.Valid {
		return "N/A"
	}
	return strconv.FormatFloat(n.Value, 'f', -1, 64)
}

func parseLooseNumber(s string) (float64, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("$", "", ",", "", "_", "", " ", "", "/yr", "", "/year", "", "ms", "", "~", "").Replace(s)
	if s == "" {
		return 0, false
	}
	mult := 1.0
	switch {
	case strings.HasSuffix(s, "k"):
		mult, s = 1e3, strings.TrimSuffix(s, "k")
	case strings.HasSuffix(s, "m"):
		mult, s = 1e6, strings.TrimSuffix(s, "m")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v * mult, true
}

// Pair holds one value per compared option.
type Pair[T any] struct {
	A T `json:"a"`
	B T `json:"b"`
}

// CostFragment is the cost specialist's output.
type CostFragment struct {
	Year1TCO       Pair[Number] `json:"year1_tco"`
	BreakevenUsers Number       `json:"breakeven_users"`
	Slider         SliderData   `json:"slider_data"`
	Traps          []string     `json:"traps"`
}

// SliderData is a three point series of user levels against cost per option.
type SliderData struct {
	UserLevels []Number `json:"users_levels"`
	CostsA     []Number `json:"costs_a"`
	CostsB     []Number `json:"costs_b"`
}

// Empty reports whether no series was produced.
func (s SliderData) Empty() bool {
	return len(s.UserLevels) == 0 && len(s.CostsA) == 0 && len(s.CostsB) == 0
}

// PerformanceFragment is the performance specialist's output.
type PerformanceFragment struct {
	Benchmarks Benchmarks `json:"benchmarks"`
	WarStories []string   `json:"war_stories"`
}

// Benchmarks holds comparative metrics per option.
type Benchmarks struct {
	LatencyMS   Pair[Number] `json:"latency_ms"`
	Scalability Pair[string] `json:"scalability"`
}

// Present reports whether any benchmark value is known.
func (b Benchmarks) Present() bool {
	return b.LatencyMS.A.Valid || b.LatencyMS.B.Valid || b.Scalability.A != "" || b.Scalability.B != ""
}

// RiskFragment is the risk specialist's output.
type RiskFragment struct {
	GotchasA  []string        `json:"gotchas_a"`
	GotchasB  []string        `json:"gotchas_b"`
	Migration MigrationEffort `json:"migration_effort"`
	DXNotes   []string        `json:"dx_notes"`
}

// MigrationEffort estimates switching cost in both directions.
type MigrationEffort struct {
	AToB string `json:"a_to_b"`
	BToA string `json:"b_to_a"`
}

// Present reports whether either direction is documented.
func (m MigrationEffort) Present() bool { return m.AToB != "" || m.BToA != "" }

// Extraction is the context agent's structured reading of a query.
type Extraction struct {
	OptionA     string   `json:"option_a"`
	OptionB     string   `json:"option_b"`
	Constraints []string `json:"constraints"`
	UseCase     *string  `json:"use_case"`
	TeamSize    *string  `json:"team_size"`
	Timeline    *string  `json:"timeline"`
	Budget      *string  `json:"budget"`
	Category    Category `json:"tech_category"`
	Status      Status   `json:"status"`
	Reason      string   `json:"reason,omitempty"`
}

// ComparisonContext is threaded through one pipeline run. Each field group
// has exactly one writer and is written at most once.
type ComparisonContext struct {
	Query        string                      `json:"query"`
	OptionA      string                      `json:"option_a"`
	OptionB      string                      `json:"option_b"`
	Constraints  []string                    `json:"constraints"`
	UseCase      *string                     `json:"use_case"`
	TeamSize     *string                     `json:"team_size"`
	Timeline     *string                     `json:"timeline"`
	Budget       *string                     `json:"budget"`
	TechCategory Category                    `json:"tech_category"`
	Cost         Result[CostFragment]        `json:"cost_breakdown"`
	Performance  Result[PerformanceFragment] `json:"performance"`
	Risk         Result[RiskFragment]        `json:"risks"`
	FinalBrief   string                      `json:"final_brief"`

	written fieldGroup
}

// NewComparisonContext starts a context for a query.
func NewComparisonContext(query string) *ComparisonContext {
	return &ComparisonContext{Query: query, TechCategory: CategoryOther}
}

// OptionName returns the display name for side "a" or "b".
func (c *ComparisonContext) OptionName(side string) string {
	if side == "a" {
		return c.OptionA
	}
	return c.OptionB
}

// Verdict is the deterministic outcome of the winner rule table.
type Verdict struct {
	Winner string `json:"winner"`
	Loser  string `json:"loser"`
	Side   string `json:"side"` // a or b
	Rule   string `json:"rule"`
}

// ConfidenceScore is the evidence-weighted confidence in a verdict.
type ConfidenceScore struct {
	Score       int      `json:"score"`
	Level       string   `json:"level"`
	Explanation string   `json:"explanation"`
	Factors     []string `json:"factors"`
}

// ResourceEstimate is the static count of sources a manual comparison would need.
type ResourceEstimate struct {
	RedditThreads      int `json:"reddit_threads"`
	YoutubeVideos      int `json:"youtube_videos"`
	DocumentationPages int `json:"documentation_pages"`
	StackoverflowPosts int `json:"stackoverflow_posts"`
}

// ValueMetrics is the deterministic value-delivered block.
type ValueMetrics struct {
	TimeSavedHours        int              `json:"time_saved_hours"`
	MoneySaved            int              `json:"money_saved"`
	ResourcesConsulted    ResourceEstimate `json:"resources_consulted"`
	Confidence            ConfidenceScore  `json:"confidence"`
	CompletionTimeSeconds float64          `json:"completion_time_seconds"`
}

// ComparisonResult is returned by RunComparison.
type ComparisonResult struct {
	ID           string             `json:"id"`
	Query        string             `json:"query"`
	Brief        string             `json:"brief"`
	SliderData   SliderData         `json:"slider_data"`
	ValueMetrics ValueMetrics       `json:"value_metrics"`
	Verdict      Verdict            `json:"verdict"`
	Context      *ComparisonContext `json:"context"`
	Degraded     []string           `json:"degraded,omitempty"`
	Usage        budget.Usage       `json:"usage"`
	CreatedAt    time.Time          `json:"created_at"`
}

// Phase names the pipeline state machine positions.
type Phase string

const (
	PhaseExtract    Phase = "extract"
	PhaseFanout     Phase = "fanout"
	PhaseJoin       Phase = "join"
	PhaseSynthesize Phase = "synthesize"
	PhaseDone       Phase = "done"
	PhaseFailed     Phase = "failed"
)

// ProcessingStatus represents the current status of an in-flight run
type ProcessingStatus struct {
	RunID       string    `json:"run_id"`
	Query       string    `json:"query"`
	Phase       Phase     `json:"phase"`
	Progress    float64   `json:"progress"` // 0.0 to 1.0
	Message     string    `json:"message,omitempty"`
	Error       string    `json:"error,omitempty"`
	LastUpdated time.Time `json:"last_updated"`
	CreatedAt   time.Time `json:"created_at"`
}
