package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

const narrativeMaxTokens = 1024

const narrativeSystemPrompt = `You are a $500/hour technical co-founder who has built, scaled and failed with dozens of stacks.
You always pick ONE clear winner. Never hedge, never say "it depends" or "both are great".
Speak directly to "you" and make it personal to the founder's constraints, use case, team and budget.
Tone: confident, direct, slightly edgy, deeply caring.`

// Synthesis is the narrative stage's output.
type Synthesis struct {
	Brief    string       `json:"brief"`
	Prose    string       `json:"prose"`
	Verdict  Verdict      `json:"verdict"`
	Metrics  ValueMetrics `json:"value_metrics"`
	Provider string       `json:"provider"`
	// Templated is set when no provider had credentials and the prose was
	// rendered locally.
	Templated bool `json:"templated"`
}

// NarrativeAgent writes the final brief from the joined context.
type NarrativeAgent struct {
	gateway *Gateway
	logger  *zap.Logger
}

func NewNarrativeAgent(g *Gateway, logger *zap.Logger) *NarrativeAgent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NarrativeAgent{gateway: g, logger: logger}
}

// Synthesize picks the winner, asks the primary then the fallback provider
// for prose and appends the value addendum. It returns ErrSynthesisFailed
// only when both providers fail with real errors.
func (a *NarrativeAgent) Synthesize(ctx context.Context, c ComparisonContext, started time.Time) (Synthesis, error) {
	v := DecideWinner(c)
	prompt, err := narrativePrompt(c, v)
	if err != nil {
		return Synthesis{}, fmt.Errorf("%w: build prompt: %v", ErrSynthesisFailed, err)
	}

	out := Synthesis{Verdict: v}
	resp, primaryErr := a.gateway.Call(ctx, Request{
		Purpose:     PurposeNarrative,
		System:      narrativeSystemPrompt,
		User:        prompt,
		MaxTokens:   narrativeMaxTokens,
		Temperature: 0.4,
	})
	if primaryErr != nil {
		a.logger.Warn("primary narrative provider failed, trying fallback", zap.String("provider", resp.Provider), zap.Error(primaryErr))
		var fallbackErr error
		resp, fallbackErr = a.gateway.Call(ctx, Request{
			Purpose:     PurposeNarrativeFallback,
			System:      narrativeSystemPrompt,
			User:        prompt,
			MaxTokens:   narrativeMaxTokens,
			Temperature: 0.6,
		})
		if fallbackErr != nil {
			if err := ctx.Err(); err != nil {
				return Synthesis{}, err
			}
			if !unavailable(primaryErr) && !unavailable(fallbackErr) {
				return Synthesis{}, fmt.Errorf("%w: primary: %v; fallback: %v", ErrSynthesisFailed, primaryErr, fallbackErr)
			}
			a.logger.Info("no narrative provider available, rendering template brief", zap.NamedError("primary", primaryErr))
			out.Templated = true
			resp = Response{Text: templateBrief(c, v), Provider: "template"}
		}
	}

	out.Prose = strings.TrimSpace(resp.Text)
	out.Provider = resp.Provider
	out.Metrics = ComputeValueMetrics(c, time.Since(started))
	out.Brief = out.Prose + ValueAddendum(v, out.Metrics)
	return out, nil
}

// unavailable reports errors that mean no provider was asked at all.
func unavailable(err error) bool {
	return errors.Is(err, ErrProviderUnavailable) || errors.Is(err, ErrBudgetExceeded)
}

func narrativePrompt(c ComparisonContext, v Verdict) (string, error) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "A founder just asked you: %q\n\n", c.Query)
	b.WriteString("Structured data from your specialist team (fields with status \"degraded\" are unknown, write N/A):\n")
	b.Write(data)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "The winner is already decided: %s (decided by the %s rule). Do not pick %s.\n\n", v.Winner, v.Rule, v.Loser)
	b.WriteString("Getting-started steps for this category (adapt them to the winner and the founder's stack):\n")
	for i, step := range StarterSteps(c.TechCategory) {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step)
	}
	b.WriteString(`
Write a tight Decision Brief of 400-600 words in EXACTLY this Markdown structure:

# The Verdict
Pick the winner. State the biggest tangible benefit. Name the one specific condition under which to pick the other.

# Why This Fits You Right Now
Two short paragraphs tied to the constraints, use case, team and budget. Include one war story if available and one honest trade-off.

# The Money
Year 1 cost at their scale for winner vs loser, the breakeven user count and the biggest cost trap.

# Watch Out For
Winner risks and loser risks as bullets, then your take on which set is uglier in practice.

# Start in 15 Minutes
Numbered steps from the list above plus a short, runnable starter snippet for the winner using environment variables.

# Escape Hatch
Migration effort winner to loser and loser to winner.

No hedging. Use real numbers from the data. End with momentum.`)
	return b.String(), nil
}

// templateBrief renders the brief without a model, from the same data.
func templateBrief(c ComparisonContext, v Verdict) string {
	var b strings.Builder
	w, l := v.Side, otherSide(v.Side)

	b.WriteString("# The Verdict\n\n")
	fmt.Fprintf(&b, "Pick %s. %s\n", v.Winner, verdictReason(c, v))

	b.WriteString("\n# Why This Fits You Right Now\n\n")
	if len(c.Constraints) > 0 {
		fmt.Fprintf(&b, "You asked for: %s. ", strings.Join(c.Constraints, ", "))
	}
	if uc := stringOrEmpty(c.UseCase); uc != "" {
		fmt.Fprintf(&b, "For %s, ", uc)
	}
	fmt.Fprintf(&b, "%s is the option that fits the evidence gathered for this comparison.\n", v.Winner)
	if c.Performance.Usable() && len(c.Performance.Value.WarStories) > 0 {
		fmt.Fprintf(&b, "\nFrom the field: %s\n", c.Performance.Value.WarStories[0])
	}

	b.WriteString("\n# The Money\n\n")
	tco := c.Cost.Value.Year1TCO
	fmt.Fprintf(&b, "Year 1 cost at your scale: %s ~%s vs %s ~%s\n",
		v.Winner, money(pick(tco, w), c.Cost.Usable()), v.Loser, money(pick(tco, l), c.Cost.Usable()))
	if c.Cost.Usable() && c.Cost.Value.BreakevenUsers.Valid {
		fmt.Fprintf(&b, "- Breakeven at ~%s users\n", c.Cost.Value.BreakevenUsers)
	}
	if c.Cost.Usable() && len(c.Cost.Value.Traps) > 0 {
		fmt.Fprintf(&b, "- Biggest trap: %s\n", c.Cost.Value.Traps[0])
	}

	b.WriteString("\n# Watch Out For\n\n")
	fmt.Fprintf(&b, "%s risks:\n", v.Winner)
	writeBullets(&b, gotchas(c, w))
	fmt.Fprintf(&b, "\n%s risks:\n", v.Loser)
	writeBullets(&b, gotchas(c, l))

	b.WriteString("\n# Start in 15 Minutes\n\n")
	for i, step := range StarterSteps(c.TechCategory) {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step)
	}

	b.WriteString("\n# Escape Hatch\n\n")
	m := c.Risk.Value.Migration
	toLoser, toWinner := m.AToB, m.BToA
	if w == "b" {
		toLoser, toWinner = m.BToA, m.AToB
	}
	fmt.Fprintf(&b, "- %s to %s: %s\n", v.Winner, v.Loser, orDefault(toLoser, "N/A"))
	fmt.Fprintf(&b, "- %s to %s: %s\n", v.Loser, v.Winner, orDefault(toWinner, "N/A"))
	return b.String()
}

func verdictReason(c ComparisonContext, v Verdict) string {
	switch v.Rule {
	case RuleCost:
		return fmt.Sprintf("It is the cheaper option in year one and you told me cost matters. You keep about $%d.", MoneySaved(c))
	case RulePerformance:
		return "It has the lower measured latency and your question is about performance."
	case RuleSimplicity:
		return "It carries fewer known gotchas, which is what matters when you need to ship fast."
	default:
		return "It carries fewer known gotchas."
	}
}

func otherSide(side string) string {
	if side == "a" {
		return "b"
	}
	return "a"
}

func pick[T any](p Pair[T], side string) T {
	if side == "a" {
		return p.A
	}
	return p.B
}

func money(n Number, usable bool) string {
	if !usable || !n.Valid {
		return "N/A"
	}
	return "$" + n.String()
}

func gotchas(c ComparisonContext, side string) []string {
	if !c.Risk.Usable() {
		return nil
	}
	if side == "a" {
		return c.Risk.Value.GotchasA
	}
	return c.Risk.Value.GotchasB
}

func writeBullets(b *strings.Builder, items []string) {
	if len(items) == 0 {
		b.WriteString("- N/A\n")
		return
	}
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", it)
	}
}
