package core

import "testing"

func joined(query string, constraints []string, cost Result[CostFragment], perf Result[PerformanceFragment], risk Result[RiskFragment]) ComparisonContext {
	c := NewComparisonContext(query)
	_ = c.applyExtraction(Extraction{OptionA: "Firebase", OptionB: "Supabase", Constraints: constraints, Category: CategoryDatabase})
	_ = c.applyCost(cost)
	_ = c.applyPerformance(perf)
	_ = c.applyRisk(risk)
	return c.snapshot()
}

func firebaseSupabase() ComparisonContext {
	return joined(
		"Firebase vs Supabase for a low-cost bootstrapped MVP with React",
		[]string{"low-cost", "bootstrapped", "MVP"},
		OK(CostFragment{Year1TCO: Pair[Number]{A: Num(1140), B: Num(300)}, BreakevenUsers: Num(40000)}),
		Degraded[PerformanceFragment]("timeout"),
		OK(RiskFragment{GotchasA: []string{"security rules", "read costs"}, GotchasB: []string{"smaller ecosystem"}}),
	)
}

func TestDecideWinnerCostRule(t *testing.T) {
	v := DecideWinner(firebaseSupabase())
	if v.Side != "b" || v.Winner != "Supabase" || v.Loser != "Firebase" || v.Rule != RuleCost {
		t.Fatalf("unexpected verdict %+v", v)
	}
}

func TestDecideWinnerPerformanceRule(t *testing.T) {
	c := joined("Which is fast enough for real-time chat?", nil,
		Degraded[CostFragment]("bad json"),
		OK(PerformanceFragment{Benchmarks: Benchmarks{LatencyMS: Pair[Number]{A: Num(80), B: Num(120)}}}),
		OK(RiskFragment{GotchasA: []string{"x", "y"}}),
	)
	v := DecideWinner(c)
	if v.Side != "a" || v.Rule != RulePerformance {
		t.Fatalf("expected option_a by performance, got %+v", v)
	}
}

func TestDecideWinnerFallsThroughWhenDataMissing(t *testing.T) {
	// cost keywords present but no usable cost data: simplicity decides
	c := joined("cheap and simple backend for an MVP", nil,
		Degraded[CostFragment]("timeout"),
		Degraded[PerformanceFragment]("timeout"),
		OK(RiskFragment{GotchasA: []string{"one"}, GotchasB: []string{"one", "two"}}),
	)
	v := DecideWinner(c)
	if v.Side != "a" || v.Rule != RuleSimplicity {
		t.Fatalf("expected option_a by simplicity, got %+v", v)
	}
}

func TestDecideWinnerTieGoesToOptionB(t *testing.T) {
	c := joined("Firebase or Supabase?", nil,
		Degraded[CostFragment]("timeout"),
		Degraded[PerformanceFragment]("timeout"),
		OK(RiskFragment{GotchasA: []string{"one"}, GotchasB: []string{"two"}}),
	)
	v := DecideWinner(c)
	if v.Side != "b" || v.Rule != RuleDefault {
		t.Fatalf("expected option_b by default rule, got %+v", v)
	}

	equalCost := joined("cheapest option?", nil,
		OK(CostFragment{Year1TCO: Pair[Number]{A: Num(500), B: Num(500)}}),
		Degraded[PerformanceFragment]("timeout"),
		Degraded[RiskFragment]("timeout"),
	)
	if v := DecideWinner(equalCost); v.Side != "b" || v.Rule != RuleCost {
		t.Fatalf("equal TCO should go to option_b, got %+v", v)
	}
}

func TestDecideWinnerAlwaysPicksOne(t *testing.T) {
	c := joined("", nil, Result[CostFragment]{}, Result[PerformanceFragment]{}, Result[RiskFragment]{})
	v := DecideWinner(c)
	if v.Winner == "" || v.Winner == v.Loser || (v.Side != "a" && v.Side != "b") {
		t.Fatalf("verdict must name exactly one winner, got %+v", v)
	}
}

func TestDecideWinnerShipFastIsSimplicity(t *testing.T) {
	perf := OK(PerformanceFragment{Benchmarks: Benchmarks{LatencyMS: Pair[Number]{A: Num(80), B: Num(120)}}})
	risk := OK(RiskFragment{GotchasA: []string{"x", "y"}, GotchasB: []string{"z"}})
	cases := []struct {
		query string
		side  string
		rule  string
	}{
		{"Ship fast MVP: Firebase or Supabase?", "b", RuleSimplicity},
		{"Which one is fast to ship for a solo dev?", "b", RuleSimplicity},
		{"Which has the fastest reads?", "a", RulePerformance},
		{"Which is faster under load?", "a", RulePerformance},
	}
	for _, tc := range cases {
		v := DecideWinner(joined(tc.query, nil, Degraded[CostFragment]("n/a"), perf, risk))
		if v.Side != tc.side || v.Rule != tc.rule {
			t.Fatalf("%q: expected %s by %s, got %+v", tc.query, tc.side, tc.rule, v)
		}
	}
}
