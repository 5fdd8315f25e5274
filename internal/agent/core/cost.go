package core

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
)

const costTask = `You are a ruthless cost analyst using current public pricing.

Provide:
- Year 1 total cost of ownership per option at typical usage (5K-10K monthly active users), in USD
- Breakeven point: user count where the more expensive option becomes relatively cheaper
- Slider data: exact monthly costs at 1K, 10K and 50K users
- Key cost traps

Respond with ONLY valid JSON in this format:
{
  "year1_tco": {"a": 300, "b": 1140},
  "breakeven_users": 40000,
  "slider_data": {
    "users_levels": [1000, 10000, 50000],
    "costs_a": [25, 50, 100],
    "costs_b": [95, 200, 500]
  },
  "traps": ["read overages on viral spikes", "paid add-ons for advanced features"]
}`

// CostAgent estimates year-one TCO, breakeven and a slider series.
type CostAgent struct{ specialist }

func NewCostAgent(g *Gateway, logger *zap.Logger) *CostAgent {
	return &CostAgent{newSpecialist(PurposeCost, 0.2, g, logger)}
}

func (a *CostAgent) Analyze(ctx context.Context, in ComparisonContext) Fragment {
	obj, resp, err := a.ask(ctx, in, costTask)
	if err != nil {
		return costOutcome{Degraded[CostFragment](a.degrade(err))}
	}
	frag, err := parseCost(obj)
	if err != nil {
		return costOutcome{Degraded[CostFragment](a.degrade(err))}
	}
	return costOutcome{withStub(OK(frag), resp)}
}

func parseCost(obj map[string]json.RawMessage) (CostFragment, error) {
	var frag CostFragment
	var traps stringList
	d := fieldDecoder{obj: obj}
	d.field("year1_tco", &frag.Year1TCO)
	d.field("breakeven_users", &frag.BreakevenUsers)
	d.field("slider_data", &frag.Slider)
	d.field("traps", &traps)
	if d.found == 0 {
		return CostFragment{}, errNoKnownKeys
	}
	frag.Traps = []string(traps)
	frag.Slider = frag.Slider.normalized()
	return frag, nil
}

// normalized trims the three series to a common length.
func (s SliderData) normalized() SliderData {
	n := len(s.UserLevels)
	if len(s.CostsA) < n {
		n = len(s.CostsA)
	}
	if len(s.CostsB) < n {
		n = len(s.CostsB)
	}
	if n == 0 {
		return SliderData{}
	}
	return SliderData{UserLevels: s.UserLevels[:n], CostsA: s.CostsA[:n], CostsB: s.CostsB[:n]}
}
