package budget

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestFromLimitsZeroIsUnlimited(t *testing.T) {
	cfg := FromLimits(0, 0, 0)
	if cfg.MaxCost != nil || cfg.MaxTokens != nil || cfg.MaxTimeSeconds != nil {
		t.Fatalf("expected no limits, got %+v", cfg)
	}
	cfg = FromLimits(0, 500, 0)
	if cfg.MaxTokens == nil || *cfg.MaxTokens != 500 {
		t.Fatalf("expected token limit, got %+v", cfg)
	}
}

func TestCloneIsolated(t *testing.T) {
	base := FromLimits(5, 0, 0)
	clone := base.Clone()
	*clone.MaxCost = 9
	if *base.MaxCost != 5 {
		t.Fatalf("clone should not share pointers")
	}
}

func TestMonitorTokenBreachSticks(t *testing.T) {
	mon := NewMonitor(FromLimits(5, 1000, 0))
	if err := mon.Record("context", 2.5, 400); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mon.Exceeded(); err != nil {
		t.Fatalf("run is still within budget: %v", err)
	}
	err := mon.Record("cost", 1.0, 700)
	var exceeded ErrExceeded
	if !errors.As(err, &exceeded) || exceeded.Kind != "tokens" {
		t.Fatalf("expected token budget breach, got %v", err)
	}
	if !errors.As(mon.Exceeded(), &exceeded) || exceeded.Kind != "tokens" {
		t.Fatalf("breach should be remembered, got %v", mon.Exceeded())
	}
	snap := mon.Snapshot()
	if snap.Cost != 3.5 || snap.Tokens != 1100 {
		t.Fatalf("unexpected usage cost=%v tokens=%d", snap.Cost, snap.Tokens)
	}
	if !strings.Contains(snap.Exceeded, "tokens") {
		t.Fatalf("snapshot should describe the breach, got %q", snap.Exceeded)
	}
}

func TestMonitorTimeBreach(t *testing.T) {
	mon := NewMonitor(FromLimits(0, 0, 1))
	if err := mon.Exceeded(); err != nil {
		t.Fatalf("fresh monitor within time: %v", err)
	}
	mon.startTime = time.Now().Add(-2 * time.Second)
	var exceeded ErrExceeded
	if !errors.As(mon.Exceeded(), &exceeded) || exceeded.Kind != "time" {
		t.Fatalf("expected time breach, got %v", mon.Exceeded())
	}
}

func TestMonitorUnlimited(t *testing.T) {
	mon := NewMonitor(Config{})
	if err := mon.Record("", 1e6, 1e9); err != nil {
		t.Fatalf("unlimited monitor should not fail: %v", err)
	}
	if mon.Exceeded() != nil || mon.Snapshot().Exceeded != "" {
		t.Fatalf("unlimited monitor should never report a breach")
	}
}

func TestMonitorRecordStages(t *testing.T) {
	mon := NewMonitor(Config{})
	_ = mon.Record("cost", 0.01, 120)
	_ = mon.Record("risk", 0.02, 80)
	_ = mon.Record("cost", 0, 30)
	snap := mon.Snapshot()
	if snap.Stages["cost"] != 150 || snap.Stages["risk"] != 80 {
		t.Fatalf("unexpected stage tokens: %+v", snap.Stages)
	}
	if snap.Tokens != 230 {
		t.Fatalf("expected 230 tokens, got %d", snap.Tokens)
	}
}
