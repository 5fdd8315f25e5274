package core

import "strings"

// Rule names reported in Verdict.Rule.
const (
	RuleCost        = "cost"
	RulePerformance = "performance"
	RuleSimplicity  = "simplicity"
	RuleDefault     = "fewest_gotchas"
)

var (
	costKeywords        = []string{"cost", "cheap", "budget", "low-cost", "affordable", "bootstrapped", "free", "price", "pricing", "save money"}
	performanceKeywords = []string{"performance", "faster", "fastest", "latency", "scale", "scalable", "high-traffic", "throughput", "real-time", "speed"}
	simplicityKeywords  = []string{"mvp", "simple", "easy", "quick", "prototype", "beginner", "solo", "fast to ship", "ship fast"}
)

// winnerRule applies when its keywords appear in the query or constraints
// and decide finds the data it needs.
type winnerRule struct {
	name     string
	keywords []string
	decide   func(c ComparisonContext) (side string, ok bool)
}

// winnerRules is evaluated in order; the first applicable rule wins.
var winnerRules = []winnerRule{
	{name: RuleCost, keywords: costKeywords, decide: byLowerTCO},
	{name: RulePerformance, keywords: performanceKeywords, decide: byLowerLatency},
	{name: RuleSimplicity, keywords: simplicityKeywords, decide: byFewerGotchas},
}

// DecideWinner picks exactly one option. Ties go to option_b.
func DecideWinner(c ComparisonContext) Verdict {
	haystack := strings.ToLower(c.Query + " " + strings.Join(c.Constraints, " "))
	for _, r := range winnerRules {
		if !containsAny(haystack, r.keywords) {
			continue
		}
		if side, ok := r.decide(c); ok {
			return verdict(c, side, r.name)
		}
	}
	return verdict(c, fewerGotchas(c), RuleDefault)
}

func verdict(c ComparisonContext, side, rule string) Verdict {
	other := "a"
	if side == "a" {
		other = "b"
	}
	return Verdict{Winner: c.OptionName(side), Loser: c.OptionName(other), Side: side, Rule: rule}
}

func byLowerTCO(c ComparisonContext) (string, bool) {
	if !c.Cost.Usable() {
		return "", false
	}
	tco := c.Cost.Value.Year1TCO
	if !tco.A.Exact() || !tco.B.Exact() {
		return "", false
	}
	return lowerSide(tco.A.Value, tco.B.Value), true
}

func byLowerLatency(c ComparisonContext) (string, bool) {
	if !c.Performance.Usable() {
		return "", false
	}
	lat := c.Performance.Value.Benchmarks.LatencyMS
	if !lat.A.Exact() || !lat.B.Exact() {
		return "", false
	}
	return lowerSide(lat.A.Value, lat.B.Value), true
}

func byFewerGotchas(c ComparisonContext) (string, bool) {
	if !c.Risk.Usable() {
		return "", false
	}
	return fewerGotchas(c), true
}

func fewerGotchas(c ComparisonContext) string {
	var a, b int
	if c.Risk.Usable() {
		a, b = len(c.Risk.Value.GotchasA), len(c.Risk.Value.GotchasB)
	}
	return lowerSide(float64(a), float64(b))
}

// lowerSide returns "a" only when a is strictly lower.
func lowerSide(a, b float64) string {
	if a < b {
		return "a"
	}
	return "b"
}

func containsAny(haystack string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}
