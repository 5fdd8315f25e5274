package core

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	optionsLinePattern = regexp.MustCompile(`(?im)^\s*Options to compare:\s*(.+?)\s+(?:vs\.?|versus)\s+(.+?)\s*$`)
	versusPattern      = regexp.MustCompile(`(?i)\b([A-Za-z0-9][\w.+#-]*)\s+(?:vs\.?|versus)\s+([A-Za-z0-9][\w.+#-]*)`)
)

// splitVersus finds "X vs Y" in free text.
func splitVersus(s string) (string, string, bool) {
	m := versusPattern.FindStringSubmatch(s)
	if len(m) < 3 {
		return "", "", false
	}
	a := strings.Trim(m[1], ".,;:")
	b := strings.Trim(m[2], ".,;:")
	if a == "" || b == "" || strings.EqualFold(a, b) {
		return "", "", false
	}
	return a, b, true
}

// stubOptions recovers option names from a prompt, preferring the explicit
// "Options to compare:" line.
func stubOptions(prompt string) (string, string) {
	if m := optionsLinePattern.FindStringSubmatch(prompt); len(m) == 3 {
		return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	}
	if a, b, ok := splitVersus(prompt); ok {
		return a, b
	}
	return "Option A", "Option B"
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// stubText returns the deterministic offline reply for a purpose. The
// narrative never goes through the stub; it renders its own template brief.
func stubText(purpose, user string) string {
	a, b := stubOptions(user)
	switch purpose {
	case PurposeContext:
		return mustJSON(map[string]any{
			"option_a":    a,
			"option_b":    b,
			"constraints": []string{},
			"use_case":    nil,
			"team_size":   nil,
			"timeline":    nil,
			"budget":      nil,
		})
	case PurposeCost:
		return mustJSON(map[string]any{
			"year1_tco":       map[string]float64{"a": 1200, "b": 720},
			"breakeven_users": 25000,
			"slider_data": map[string][]float64{
				"users_levels": {1000, 10000, 50000},
				"costs_a":      {25, 150, 900},
				"costs_b":      {25, 110, 1100},
			},
			"traps": []string{fmt.Sprintf("%s usage-based pricing grows faster than expected past the free tier", a)},
		})
	case PurposePerformance:
		return mustJSON(map[string]any{
			"benchmarks": map[string]any{
				"latency_ms":  map[string]float64{"a": 120, "b": 140},
				"scalability": map[string]string{"a": "strong to 100K users", "b": "strong to 50K users"},
			},
			"war_stories": []string{fmt.Sprintf("A small team moved a read-heavy workload from %s to %s and kept p95 latency flat", b, a)},
		})
	case PurposeRisk:
		return mustJSON(map[string]any{
			"gotchas_a": []string{fmt.Sprintf("%s pricing tiers change with little notice", a), "Vendor-specific APIs raise lock-in"},
			"gotchas_b": []string{fmt.Sprintf("%s ecosystem is smaller", b), "Fewer managed integrations"},
			"migration_effort": map[string]string{
				"a_to_b": "1-2 weeks for a small codebase",
				"b_to_a": "1-2 weeks for a small codebase",
			},
			"dx_notes": []string{fmt.Sprintf("%s has the larger community", a), fmt.Sprintf("%s has simpler local development", b)},
		})
	default:
		return "{}"
	}
}
