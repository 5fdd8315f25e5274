package core

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	baseHoursSaved = 4
	maxHoursSaved  = 12
)

var (
	productionKeywords    = []string{"production", "scale", "enterprise", "large", "high-traffic", "high traffic"}
	performanceCritical   = []string{"high-performance", "low-latency", "fast", "performance"}
	defaultResourceCounts = ResourceEstimate{RedditThreads: 12, YoutubeVideos: 3, DocumentationPages: 15, StackoverflowPosts: 8}
)

// ComputeValueMetrics derives the value-delivered block from the context.
// elapsed is the measured wall time of the run.
func ComputeValueMetrics(c ComparisonContext, elapsed time.Duration) ValueMetrics {
	return ValueMetrics{
		TimeSavedHours:        TimeSavedHours(c),
		MoneySaved:            MoneySaved(c),
		ResourcesConsulted:    defaultResourceCounts,
		Confidence:            Confidence(c),
		CompletionTimeSeconds: math.Round(elapsed.Seconds()*100) / 100,
	}
}

// TimeSavedHours estimates manual research time, in [4, 12].
func TimeSavedHours(c ComparisonContext) int {
	hours := baseHoursSaved
	if len(c.Constraints) > 2 {
		hours += 2
	}
	query := strings.ToLower(c.Query)
	constraints := strings.ToLower(strings.Join(c.Constraints, " "))
	useCase := strings.ToLower(stringOrEmpty(c.UseCase))
	if containsAny(useCase, productionKeywords) || containsAny(query, productionKeywords) || containsAny(constraints, productionKeywords) {
		hours += 4
	}
	if containsAny(query, performanceCritical) || containsAny(constraints, performanceCritical) {
		hours += 2
	}
	if hours > maxHoursSaved {
		hours = maxHoursSaved
	}
	return hours
}

// MoneySaved is |a-b| of the year-one TCO when both are JSON numbers, else 0.
func MoneySaved(c ComparisonContext) int {
	if !c.Cost.Usable() {
		return 0
	}
	tco := c.Cost.Value.Year1TCO
	if !tco.A.Exact() || !tco.B.Exact() {
		return 0
	}
	return int(math.Abs(tco.A.Value - tco.B.Value))
}

// Confidence scores evidence quality. Every factor only grows with more
// evidence, so the score is monotonic in the data available.
func Confidence(c ComparisonContext) ConfidenceScore {
	score := 0
	var factors []string
	add := func(points int, factor string) {
		score += points
		factors = append(factors, factor)
	}

	if c.Cost.Usable() {
		tco := c.Cost.Value.Year1TCO
		if tco.A.Exact() && tco.B.Exact() && tco.A.Value > 0 && tco.B.Value > 0 {
			gap := math.Abs(tco.A.Value-tco.B.Value) / math.Max(tco.A.Value, tco.B.Value) * 100
			switch {
			case gap > 50:
				add(30, "Large cost difference (>50%)")
			case gap > 25:
				add(20, "Moderate cost difference (25-50%)")
			default:
				add(10, "Small cost difference (<25%)")
			}
		}
	}

	perf := c.Performance
	switch {
	case perf.Usable() && perf.Value.Benchmarks.Present():
		add(20, "Performance benchmarks available")
	case perf.Usable() && len(perf.Value.WarStories) > 0:
		add(10, "Real-world performance examples")
	default:
		add(5, "Limited performance data")
	}

	risk := c.Risk
	if risk.Usable() && risk.Value.Migration.Present() {
		add(20, "Migration paths documented")
	} else {
		add(5, "Migration paths unclear")
	}

	if len(c.Constraints) >= 2 {
		add(15, "Clear user requirements")
	} else {
		add(5, "General requirements")
	}

	if risk.Usable() && (len(risk.Value.GotchasA) > 0 || len(risk.Value.GotchasB) > 0) {
		add(15, "Real-world gotchas identified")
	} else {
		add(10, "Industry knowledge applied")
	}

	level, explanation := confidenceLevel(score)
	return ConfidenceScore{Score: score, Level: level, Explanation: explanation, Factors: factors}
}

func confidenceLevel(score int) (string, string) {
	switch {
	case score >= 85:
		return "Very High", "Strong evidence across all factors"
	case score >= 70:
		return "High", "Solid data with minor gaps"
	case score >= 50:
		return "Moderate", "Good data but some uncertainty"
	default:
		return "Low", "Limited data or very close call"
	}
}

// ValueAddendum renders the deterministic block appended to every brief.
func ValueAddendum(v Verdict, m ValueMetrics) string {
	var b strings.Builder
	b.WriteString("\n\n---\n\n## Value delivered\n\n")
	fmt.Fprintf(&b, "**Recommendation: %s** (rule: %s)\n\n", v.Winner, v.Rule)
	fmt.Fprintf(&b, "- Time saved: ~%d hours of research\n", m.TimeSavedHours)
	if m.MoneySaved > 0 {
		fmt.Fprintf(&b, "- Money saved: $%d in year one\n", m.MoneySaved)
	} else {
		b.WriteString("- Money saved: N/A (cost data incomplete)\n")
	}
	fmt.Fprintf(&b, "- Confidence: %d/100 (%s). %s\n", m.Confidence.Score, m.Confidence.Level, m.Confidence.Explanation)
	r := m.ResourcesConsulted
	fmt.Fprintf(&b, "- Replaces %d Reddit threads, %d YouTube videos, %d documentation pages and %d Stack Overflow posts\n",
		r.RedditThreads, r.YoutubeVideos, r.DocumentationPages, r.StackoverflowPosts)
	if m.CompletionTimeSeconds > 0 {
		fmt.Fprintf(&b, "- Completed in %.1fs\n", m.CompletionTimeSeconds)
	}
	return b.String()
}
