package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func extractedContext() ComparisonContext {
	c := NewComparisonContext("Firebase vs Supabase for a low-cost bootstrapped MVP with React")
	_ = c.applyExtraction(Extraction{OptionA: "Firebase", OptionB: "Supabase", Constraints: []string{"low cost", "bootstrapped"}, Category: CategoryDatabase})
	return c.snapshot()
}

func TestCostAgentParsesLenientNumbers(t *testing.T) {
	fp := &fakeProvider{name: "deepseek", available: true, reply: `{
		"year1_tco": {"a": "$1,140", "b": 300},
		"breakeven_users": "40k",
		"slider_data": {"users_levels": [1000, 10000, 50000], "costs_a": [25, 150, 900], "costs_b": [25, 50]},
		"traps": ["Firestore read overages"]
	}`}
	f := NewCostAgent(singleRoute(fp), nil).Analyze(context.Background(), extractedContext())
	out, ok := f.(costOutcome)
	if !ok || out.State() != StatusOK {
		t.Fatalf("expected ok cost fragment, got %#v", f)
	}
	v := out.Value
	if v.Year1TCO.A.Value != 1140 || v.Year1TCO.B.Value != 300 || v.BreakevenUsers.Value != 40000 {
		t.Fatalf("unexpected numbers %+v", v)
	}
	if len(v.Slider.UserLevels) != 2 || len(v.Slider.CostsA) != 2 {
		t.Fatalf("slider should be trimmed to the shortest series, got %+v", v.Slider)
	}
	if got := fp.lastCall(); got.Temperature != 0.2 || !strings.Contains(got.User, "Options to compare: Firebase vs Supabase") {
		t.Fatalf("unexpected prompt %+v", got)
	}
}

func TestSpecialistsDegradeOnMalformedOutput(t *testing.T) {
	fp := &fakeProvider{name: "groq", available: true, reply: "I'm sorry, I can't do that."}
	g := singleRoute(fp)
	for _, s := range []Specialist{NewCostAgent(g, nil), NewPerformanceAgent(g, nil), NewRiskAgent(g, nil)} {
		f := s.Analyze(context.Background(), extractedContext())
		if f.State() != StatusDegraded || f.Why() == "" {
			t.Fatalf("%s: expected degraded fragment, got %#v", s.Name(), f)
		}
		if !errors.Is(FragmentErr(f), ErrSpecialistDegraded) {
			t.Fatalf("%s: expected ErrSpecialistDegraded", s.Name())
		}
		if f.Agent() != s.Name() {
			t.Fatalf("fragment agent %q does not match specialist %q", f.Agent(), s.Name())
		}
	}
}

func TestSpecialistsDegradeOnUnknownKeys(t *testing.T) {
	fp := &fakeProvider{name: "groq", available: true, reply: `{"error": "rate limit"}`}
	f := NewRiskAgent(singleRoute(fp), nil).Analyze(context.Background(), extractedContext())
	if f.State() != StatusDegraded {
		t.Fatalf("expected degraded risk fragment, got %#v", f)
	}
}

func TestSpecialistDegradesOnTimeout(t *testing.T) {
	slow := &blockingProvider{fakeProvider: &fakeProvider{name: "groq", available: true}}
	g := NewGateway(map[string]Provider{"groq": slow}, map[string]string{PurposePerformance: "groq"}, nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	f := NewPerformanceAgent(g, nil).Analyze(ctx, extractedContext())
	if f.State() != StatusDegraded || !strings.Contains(f.Why(), "deadline") {
		t.Fatalf("expected timeout degradation, got %#v", f)
	}
}

func TestPerformanceAgentAcceptsNumericScalability(t *testing.T) {
	fp := &fakeProvider{name: "groq", available: true, reply: `{
		"benchmarks": {"latency_ms": {"a": 80, "b": "120ms"}, "scalability": {"a": 100000, "b": "strong to 50K"}},
		"war_stories": ["one", "two", "three"]
	}`}
	f := NewPerformanceAgent(singleRoute(fp), nil).Analyze(context.Background(), extractedContext())
	out := f.(performanceOutcome)
	if out.State() != StatusOK {
		t.Fatalf("expected ok, got %+v", out)
	}
	b := out.Value.Benchmarks
	if b.LatencyMS.A.Value != 80 || b.LatencyMS.B.Value != 120 {
		t.Fatalf("unexpected latency %+v", b.LatencyMS)
	}
	if b.Scalability.A != "100000" || b.Scalability.B != "strong to 50K" {
		t.Fatalf("unexpected scalability %+v", b.Scalability)
	}
	if len(out.Value.WarStories) != 2 {
		t.Fatalf("war stories should be capped at two, got %d", len(out.Value.WarStories))
	}
}

func TestRiskAgentOfflineStubIsMarked(t *testing.T) {
	f := NewRiskAgent(offlineGateway(), nil).Analyze(context.Background(), extractedContext())
	out := f.(riskOutcome)
	if out.State() != StatusOK || !out.Stub || out.Reason != "no credentials" {
		t.Fatalf("expected stubbed ok risk fragment, got %+v", out.Result)
	}
	if len(out.Value.GotchasA) == 0 || !out.Value.Migration.Present() {
		t.Fatalf("stub should carry gotchas and migration, got %+v", out.Value)
	}
}

func TestFragmentsWriteOnce(t *testing.T) {
	c := NewComparisonContext("q")
	f := costOutcome{OK(CostFragment{})}
	if err := f.apply(c); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := f.apply(c); err == nil {
		t.Fatalf("second write to the same field group should be rejected")
	}
	if err := (riskOutcome{OK(RiskFragment{})}).apply(c); err != nil {
		t.Fatalf("independent group should accept its first write: %v", err)
	}
}
