package core

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
)

const riskTask = `Analyze risks, developer experience, vendor lock-in and migration paths for both options.

Output ONLY valid JSON:
{
  "gotchas_a": ["Cryptic security rules", "Unexpected read costs"],
  "gotchas_b": ["Younger ecosystem", "Limited edge functions"],
  "migration_effort": {
    "a_to_b": "3-5 days, ~$2K contractor",
    "b_to_a": "1-2 weeks, higher due to data model"
  },
  "dx_notes": ["A has better mobile SDKs", "B has simpler SQL queries"]
}`

// RiskAgent lists gotchas, migration effort and DX notes.
type RiskAgent struct{ specialist }

func NewRiskAgent(g *Gateway, logger *zap.Logger) *RiskAgent {
	return &RiskAgent{newSpecialist(PurposeRisk, 0.4, g, logger)}
}

func (a *RiskAgent) Analyze(ctx context.Context, in ComparisonContext) Fragment {
	obj, resp, err := a.ask(ctx, in, riskTask)
	if err != nil {
		return riskOutcome{Degraded[RiskFragment](a.degrade(err))}
	}
	frag, err := parseRisk(obj)
	if err != nil {
		return riskOutcome{Degraded[RiskFragment](a.degrade(err))}
	}
	return riskOutcome{withStub(OK(frag), resp)}
}

func parseRisk(obj map[string]json.RawMessage) (RiskFragment, error) {
	var frag RiskFragment
	var gotchasA, gotchasB, notes stringList
	var migration map[string]json.RawMessage
	d := fieldDecoder{obj: obj}
	d.field("gotchas_a", &gotchasA)
	d.field("gotchas_b", &gotchasB)
	d.field("migration_effort", &migration)
	d.field("dx_notes", &notes)
	if d.found == 0 {
		return RiskFragment{}, errNoKnownKeys
	}
	frag.GotchasA = []string(gotchasA)
	frag.GotchasB = []string(gotchasB)
	frag.DXNotes = []string(notes)
	if migration != nil {
		frag.Migration = MigrationEffort{AToB: looseText(migration["a_to_b"]), BToA: looseText(migration["b_to_a"])}
	}
	return frag, nil
}
