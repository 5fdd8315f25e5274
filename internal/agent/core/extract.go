package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const (
	placeholderA = "Option A"
	placeholderB = "Option B"

	specialistMaxTokens = 512
)

const contextSystemPrompt = "You are a precise JSON extractor. Respond with one JSON object only. Never add explanations or prose."

const contextUserTemplate = `You are an expert query parser for technology comparison decisions.

User query: %q

Identify the two technologies being compared (option_a, option_b), the explicit constraints
(for example "low cost", "bootstrapped", "MVP", "mobile-first"), and infer where possible:
use_case, team_size, timeline, budget. Use null for anything you cannot infer.

Respond with ONLY this JSON shape:
{
  "option_a": "First technology name",
  "option_b": "Second technology name",
  "constraints": ["constraint1", "constraint2"],
  "use_case": "inferred use case or null",
  "team_size": "inferred team size or null",
  "timeline": "inferred timeline or null",
  "budget": "inferred budget or null"
}`

// Extractor turns a raw query into an Extraction.
type Extractor interface {
	Extract(ctx context.Context, query string) Extraction
}

// ContextAgent parses the query with one gateway call. It never fails:
// unusable output degrades to heuristic or placeholder options.
type ContextAgent struct {
	gateway *Gateway
	logger  *zap.Logger
}

func NewContextAgent(g *Gateway, logger *zap.Logger) *ContextAgent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContextAgent{gateway: g, logger: logger}
}

func (a *ContextAgent) Extract(ctx context.Context, query string) Extraction {
	resp := a.gateway.Invoke(ctx, Request{
		Purpose:     PurposeContext,
		System:      contextSystemPrompt,
		User:        fmt.Sprintf(contextUserTemplate, query),
		MaxTokens:   specialistMaxTokens,
		Temperature: 0.3,
	})
	ext, err := parseExtraction(resp.Text)
	if err != nil {
		ext = fallbackExtraction(query, err.Error())
		a.logger.Warn("extraction degraded", zap.String("reason", ext.Reason))
	}
	ext.Category = Classify(ext.OptionA, ext.OptionB)
	return ext
}

// parseExtraction decodes the model reply. Missing or empty option keys are
// an error; the situational fields are best effort.
func parseExtraction(text string) (Extraction, error) {
	obj, err := decodeObject(text)
	if err != nil {
		return Extraction{}, err
	}
	var ext Extraction
	var constraints stringList
	var useCase, teamSize, timeline, budgetStr optionalString
	d := fieldDecoder{obj: obj}
	d.field("option_a", &ext.OptionA)
	d.field("option_b", &ext.OptionB)
	d.field("constraints", &constraints)
	d.field("use_case", &useCase)
	d.field("team_size", &teamSize)
	d.field("timeline", &timeline)
	d.field("budget", &budgetStr)

	ext.OptionA = strings.TrimSpace(ext.OptionA)
	ext.OptionB = strings.TrimSpace(ext.OptionB)
	if ext.OptionA == "" || ext.OptionB == "" {
		return Extraction{}, fmt.Errorf("missing option_a/option_b")
	}
	ext.Constraints = []string(constraints)
	if ext.Constraints == nil {
		ext.Constraints = []string{}
	}
	ext.UseCase, ext.TeamSize, ext.Timeline, ext.Budget = useCase.v, teamSize.v, timeline.v, budgetStr.v
	ext.Status = StatusOK
	return ext, nil
}

// fallbackExtraction splits "X vs Y" out of the query, else uses placeholders.
func fallbackExtraction(query, reason string) Extraction {
	ext := Extraction{
		OptionA:     placeholderA,
		OptionB:     placeholderB,
		Constraints: []string{},
		Category:    CategoryOther,
		Status:      StatusDegraded,
		Reason:      reason,
	}
	if a, b, ok := splitVersus(query); ok {
		ext.OptionA, ext.OptionB = a, b
	}
	return ext
}

// Err reports the extraction's degradation as a typed error, or nil.
func (e Extraction) Err() error {
	if e.Status != StatusDegraded {
		return nil
	}
	return degraded(ErrExtractionDegraded, PurposeContext, e.Reason)
}

// MarshalJSON keeps constraints an array even when empty.
func (e Extraction) MarshalJSON() ([]byte, error) {
	type alias Extraction
	if e.Constraints == nil {
		e.Constraints = []string{}
	}
	return json.Marshal(alias(e))
}
