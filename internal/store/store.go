package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	core "github.com/mohammad-safakhou/techbrief/internal/agent/core"
)

// ErrNotFound is returned by every backend when a decision id is unknown.
var ErrNotFound = errors.New("decision not found")

// Decision is the persisted projection of a comparison. The JSON shape is
// shared by the file, redis and HTTP layers.
type Decision struct {
	ID         string          `json:"id"`
	Query      string          `json:"query,omitempty"`
	Left       string          `json:"left"`
	Right      string          `json:"right"`
	Winner     string          `json:"winner,omitempty"`
	Rule       string          `json:"rule,omitempty"`
	Category   string          `json:"category,omitempty"`
	Brief      string          `json:"brief,omitempty"`
	Confidence string          `json:"confidence"`
	Metrics    json.RawMessage `json:"metrics"`
	Evidence   []string        `json:"evidence"`
	Timestamp  int64           `json:"timestamp"`
}

// DecisionStore is implemented by the postgres, redis, file and memory backends.
type DecisionStore interface {
	Save(ctx context.Context, d Decision) (Decision, error)
	List(ctx context.Context) ([]Decision, error)
	Get(ctx context.Context, id string) (Decision, error)
	Delete(ctx context.Context, id string) error
}

// Normalize fills the fields every stored decision must carry.
func (d Decision) Normalize() Decision {
	d.ID = strings.TrimSpace(d.ID)
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Timestamp <= 0 {
		d.Timestamp = time.Now().Unix()
	}
	if strings.TrimSpace(d.Left) == "" {
		d.Left = "Option A"
	}
	if strings.TrimSpace(d.Right) == "" {
		d.Right = "Option B"
	}
	if len(d.Metrics) == 0 || !json.Valid(d.Metrics) || d.Metrics[0] != '{' {
		d.Metrics = json.RawMessage(`{}`)
	}
	if d.Evidence == nil {
		d.Evidence = []string{}
	}
	if d.Confidence == "" {
		d.Confidence = "medium"
	}
	return d
}

// FromResult projects a finished comparison onto a Decision.
func FromResult(r core.ComparisonResult) Decision {
	d := Decision{
		ID:         r.ID,
		Query:      r.Query,
		Winner:     r.Verdict.Winner,
		Rule:       r.Verdict.Rule,
		Brief:      r.Brief,
		Confidence: r.ValueMetrics.Confidence.Level,
		Timestamp:  r.CreatedAt.Unix(),
	}
	if r.CreatedAt.IsZero() {
		d.Timestamp = 0
	}
	if c := r.Context; c != nil {
		d.Left, d.Right = c.OptionA, c.OptionB
		d.Category = string(c.TechCategory)
		if c.Cost.Usable() {
			d.Evidence = append(d.Evidence, c.Cost.Value.Traps...)
		}
		if c.Performance.Usable() {
			d.Evidence = append(d.Evidence, c.Performance.Value.WarStories...)
		}
	}
	if m, err := json.Marshal(r.ValueMetrics); err == nil {
		d.Metrics = m
	}
	return d.Normalize()
}

// Recorder adapts a DecisionStore to the pipeline's recorder hook.
type Recorder struct {
	Store DecisionStore
}

func (r Recorder) Record(ctx context.Context, res core.ComparisonResult) error {
	_, err := r.Store.Save(ctx, FromResult(res))
	return err
}
