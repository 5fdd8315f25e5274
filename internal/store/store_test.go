package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	core "github.com/mohammad-safakhou/techbrief/internal/agent/core"
)

func TestNormalizeFillsDefaults(t *testing.T) {
	d := Decision{Metrics: json.RawMessage(`[1,2]`)}.Normalize()
	if d.ID == "" || d.Timestamp == 0 {
		t.Fatalf("id and timestamp should be generated: %+v", d)
	}
	if d.Left != "Option A" || d.Right != "Option B" || d.Confidence != "medium" {
		t.Fatalf("unexpected defaults %+v", d)
	}
	if string(d.Metrics) != "{}" || d.Evidence == nil {
		t.Fatalf("metrics must be an object and evidence a list: %+v", d)
	}
}

func TestFromResult(t *testing.T) {
	c := core.NewComparisonContext("Firebase vs Supabase")
	c.OptionA, c.OptionB, c.TechCategory = "Firebase", "Supabase", core.CategoryDatabase
	c.Cost = core.OK(core.CostFragment{Traps: []string{"read costs"}})
	res := core.ComparisonResult{
		ID:           "run-1",
		Query:        "Firebase vs Supabase",
		Brief:        "Pick Supabase",
		Verdict:      core.Verdict{Winner: "Supabase", Loser: "Firebase", Side: "b", Rule: core.RuleCost},
		ValueMetrics: core.ValueMetrics{MoneySaved: 840, Confidence: core.ConfidenceScore{Level: "High"}},
		Context:      c,
		CreatedAt:    time.Unix(1700000000, 0),
	}
	d := FromResult(res)
	if d.ID != "run-1" || d.Left != "Firebase" || d.Right != "Supabase" || d.Winner != "Supabase" {
		t.Fatalf("unexpected projection %+v", d)
	}
	if d.Confidence != "High" || d.Timestamp != 1700000000 || d.Category != "database" {
		t.Fatalf("unexpected projection %+v", d)
	}
	var m map[string]any
	if err := json.Unmarshal(d.Metrics, &m); err != nil || m["money_saved"].(float64) != 840 {
		t.Fatalf("metrics should carry value metrics: %s", d.Metrics)
	}
	if len(d.Evidence) != 1 || d.Evidence[0] != "read costs" {
		t.Fatalf("evidence should carry cost traps: %v", d.Evidence)
	}
}

func TestRecorderSaves(t *testing.T) {
	ms := NewMemoryStore()
	rec := Recorder{Store: ms}
	if err := rec.Record(context.Background(), core.ComparisonResult{ID: "run-9", Brief: "x", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if _, err := ms.Get(context.Background(), "run-9"); err != nil {
		t.Fatalf("recorded decision missing: %v", err)
	}
}

// exerciseStore runs the shared DecisionStore contract against a backend.
func exerciseStore(t *testing.T, s DecisionStore) {
	t.Helper()
	ctx := context.Background()

	older, err := s.Save(ctx, Decision{ID: "old", Left: "Go", Right: "Rust", Timestamp: 100})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := s.Save(ctx, Decision{ID: "new", Left: "Vue", Right: "React", Timestamp: 200}); err != nil {
		t.Fatalf("save: %v", err)
	}
	generated, err := s.Save(ctx, Decision{Left: "Postgres"})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if generated.ID == "" || generated.Right != "Option B" {
		t.Fatalf("save should normalize: %+v", generated)
	}

	items, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 3 || items[0].ID != generated.ID || items[1].ID != "new" || items[2].ID != "old" {
		t.Fatalf("list should be newest first, got %+v", items)
	}

	got, err := s.Get(ctx, "old")
	if err != nil || got.Left != older.Left {
		t.Fatalf("get: %+v %v", got, err)
	}

	older.Winner = "Go"
	if _, err := s.Save(ctx, older); err != nil {
		t.Fatalf("resave: %v", err)
	}
	if got, _ := s.Get(ctx, "old"); got.Winner != "Go" {
		t.Fatalf("save with an existing id should replace, got %+v", got)
	}
	if items, _ := s.List(ctx); len(items) != 3 {
		t.Fatalf("replace should not duplicate, got %d items", len(items))
	}

	if err := s.Delete(ctx, "old"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, "old"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	if _, err := s.Get(ctx, "old"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	exerciseStore(t, fs)

	reopened, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	items, err := reopened.List(context.Background())
	if err != nil || len(items) != 2 {
		t.Fatalf("decisions should survive reopen, got %d (%v)", len(items), err)
	}
}

func TestFileStoreToleratesCorruption(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "decisions.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	fs, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	items, err := fs.List(context.Background())
	if err != nil || len(items) != 0 {
		t.Fatalf("corrupted file should read as empty, got %v %v", items, err)
	}
	if _, err := fs.Save(context.Background(), Decision{ID: "x"}); err != nil {
		t.Fatalf("save over corrupted file: %v", err)
	}
}

func TestIndexedStoreSearch(t *testing.T) {
	ctx := context.Background()
	base := NewMemoryStore()
	if _, err := base.Save(ctx, Decision{ID: "pre", Query: "Kafka vs RabbitMQ for event streaming", Left: "Kafka", Right: "RabbitMQ", Timestamp: 1}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	s, err := NewIndexedStore(ctx, base, nil)
	if err != nil {
		t.Fatalf("NewIndexedStore: %v", err)
	}
	if _, err := s.Save(ctx, Decision{ID: "fb", Query: "Firebase vs Supabase for an MVP", Left: "Firebase", Right: "Supabase", Brief: "Pick Supabase", Timestamp: 2}); err != nil {
		t.Fatalf("save: %v", err)
	}

	hits, err := s.Search(ctx, "supabase", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "fb" {
		t.Fatalf("expected the firebase decision, got %+v", hits)
	}
	if hits, _ := s.Search(ctx, "rabbitmq", 5); len(hits) != 1 || hits[0].ID != "pre" {
		t.Fatalf("existing decisions should be indexed on open, got %+v", hits)
	}

	if err := s.Delete(ctx, "fb"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if hits, _ := s.Search(ctx, "supabase", 5); len(hits) != 0 {
		t.Fatalf("deleted decision still searchable: %+v", hits)
	}
	if hits, _ := s.Search(ctx, "   ", 5); len(hits) != 0 {
		t.Fatalf("blank query should match nothing")
	}
}
