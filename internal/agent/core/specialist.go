package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Specialist is one of the independent fan-out analysers. Analyze reads only
// the extracted context and returns its own fragment; it never fails.
type Specialist interface {
	Name() string
	Analyze(ctx context.Context, in ComparisonContext) Fragment
}

// Fragment is a specialist's result, assigned to its owning field group by
// the orchestrator after the join.
type Fragment interface {
	Agent() string
	State() Status
	Why() string
	apply(c *ComparisonContext) error
}

const specialistSystemPrompt = "You are a senior engineer advising a startup. Respond with ONLY one valid JSON object matching the requested shape. No prose, no Markdown."

var errNoKnownKeys = errors.New("response has none of the expected keys")

type specialist struct {
	name        string
	temperature float64
	gateway     *Gateway
	logger      *zap.Logger
}

func newSpecialist(name string, temperature float64, g *Gateway, logger *zap.Logger) specialist {
	if logger == nil {
		logger = zap.NewNop()
	}
	return specialist{name: name, temperature: temperature, gateway: g, logger: logger}
}

func (s specialist) Name() string { return s.name }

// ask sends the templated prompt and decodes the top-level object.
func (s specialist) ask(ctx context.Context, in ComparisonContext, task string) (map[string]json.RawMessage, Response, error) {
	resp := s.gateway.Invoke(ctx, Request{
		Purpose:     s.name,
		System:      specialistSystemPrompt,
		User:        situation(in) + "\n" + task,
		MaxTokens:   specialistMaxTokens,
		Temperature: s.temperature,
	})
	if err := ctx.Err(); err != nil {
		return nil, resp, err
	}
	if resp.Skipped {
		return nil, resp, errors.New(resp.Reason)
	}
	obj, err := decodeObject(resp.Text)
	if err != nil {
		return nil, resp, err
	}
	return obj, resp, nil
}

func (s specialist) degrade(err error) string {
	reason := err.Error()
	s.logger.Warn("fragment degraded", zap.String("reason", reason))
	return reason
}

// situation renders the shared prompt header every specialist receives.
func situation(in ComparisonContext) string {
	constraints := strings.Join(in.Constraints, ", ")
	if constraints == "" {
		constraints = "general MVP"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Options to compare: %s vs %s\n", in.OptionA, in.OptionB)
	fmt.Fprintf(&b, "Original question: %s\n", in.Query)
	fmt.Fprintf(&b, "Constraints: %s\n", constraints)
	fmt.Fprintf(&b, "Use case: %s\n", orDefault(stringOrEmpty(in.UseCase), "standard startup app"))
	fmt.Fprintf(&b, "Team size: %s\n", orDefault(stringOrEmpty(in.TeamSize), "small"))
	fmt.Fprintf(&b, "Timeline: %s\n", orDefault(stringOrEmpty(in.Timeline), "unspecified"))
	fmt.Fprintf(&b, "Budget: %s\n", orDefault(stringOrEmpty(in.Budget), "cost-sensitive"))
	return b.String()
}

func withStub[T any](r Result[T], resp Response) Result[T] {
	if resp.Stub {
		r.Stub = true
		r.Reason = resp.Reason
	}
	return r
}

type costOutcome struct{ Result[CostFragment] }

func (costOutcome) Agent() string                      { return PurposeCost }
func (o costOutcome) Why() string                      { return o.Reason }
func (o costOutcome) apply(c *ComparisonContext) error { return c.applyCost(o.Result) }

type performanceOutcome struct {
	Result[PerformanceFragment]
}

func (performanceOutcome) Agent() string                      { return PurposePerformance }
func (o performanceOutcome) Why() string                      { return o.Reason }
func (o performanceOutcome) apply(c *ComparisonContext) error { return c.applyPerformance(o.Result) }

type riskOutcome struct{ Result[RiskFragment] }

func (riskOutcome) Agent() string                      { return PurposeRisk }
func (o riskOutcome) Why() string                      { return o.Reason }
func (o riskOutcome) apply(c *ComparisonContext) error { return c.applyRisk(o.Result) }

// degradedFragment builds the marker for a specialist that did not return,
// for example one cut off by the fan-out timeout.
func degradedFragment(agent, reason string) Fragment {
	switch agent {
	case PurposeCost:
		return costOutcome{Degraded[CostFragment](reason)}
	case PurposePerformance:
		return performanceOutcome{Degraded[PerformanceFragment](reason)}
	default:
		return riskOutcome{Degraded[RiskFragment](reason)}
	}
}

// FragmentErr reports a degraded fragment as a typed error, or nil.
func FragmentErr(f Fragment) error {
	if f.State() != StatusDegraded {
		return nil
	}
	return degraded(ErrSpecialistDegraded, f.Agent(), f.Why())
}
