package core

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

const performanceTask = `Compare performance of both options using real public benchmarks.
Focus on metrics relevant to the constraints above.

Provide:
- Key performance differences (latency, scalability, cold starts)
- 1-2 short real-world war stories

Output ONLY valid JSON:
{
  "benchmarks": {"latency_ms": {"a": 100, "b": 200}, "scalability": {"a": "excellent beyond 100K", "b": "strong to 50K"}},
  "war_stories": ["One team saw 300ms faster loads after switching to A", "B caused cold start issues in serverless"]
}`

// PerformanceAgent estimates latency, scalability and anecdotes.
type PerformanceAgent struct{ specialist }

func NewPerformanceAgent(g *Gateway, logger *zap.Logger) *PerformanceAgent {
	return &PerformanceAgent{newSpecialist(PurposePerformance, 0.3, g, logger)}
}

func (a *PerformanceAgent) Analyze(ctx context.Context, in ComparisonContext) Fragment {
	obj, resp, err := a.ask(ctx, in, performanceTask)
	if err != nil {
		return performanceOutcome{Degraded[PerformanceFragment](a.degrade(err))}
	}
	frag, err := parsePerformance(obj)
	if err != nil {
		return performanceOutcome{Degraded[PerformanceFragment](a.degrade(err))}
	}
	return performanceOutcome{withStub(OK(frag), resp)}
}

func parsePerformance(obj map[string]json.RawMessage) (PerformanceFragment, error) {
	var frag PerformanceFragment
	var bench map[string]json.RawMessage
	var stories stringList
	d := fieldDecoder{obj: obj}
	d.field("benchmarks", &bench)
	d.field("war_stories", &stories)
	if d.found == 0 {
		return PerformanceFragment{}, errNoKnownKeys
	}
	if bench != nil {
		var scal Pair[json.RawMessage]
		bd := fieldDecoder{obj: bench}
		bd.field("latency_ms", &frag.Benchmarks.LatencyMS)
		bd.field("scalability", &scal)
		frag.Benchmarks.Scalability = Pair[string]{A: looseText(scal.A), B: looseText(scal.B)}
	}
	frag.WarStories = []string(stories)
	if len(frag.WarStories) > 2 {
		frag.WarStories = frag.WarStories[:2]
	}
	return frag, nil
}

// looseText renders a JSON scalar as text; objects and arrays are dropped.
func looseText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64, bool:
		return fmt.Sprint(t)
	default:
		return ""
	}
}
