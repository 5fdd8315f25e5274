package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/techbrief/config"
	"github.com/mohammad-safakhou/techbrief/internal/agent/telemetry"
	"github.com/mohammad-safakhou/techbrief/internal/budget"
)

// Gateway purposes. Each maps to a configured provider through routing.
const (
	PurposeContext           = "context"
	PurposeCost              = "cost"
	PurposePerformance       = "performance"
	PurposeRisk              = "risk"
	PurposeNarrative         = "narrative"
	PurposeNarrativeFallback = "narrative_fallback"
)

const defaultProviderTimeout = 30 * time.Second

const reasonNoCredentials = "no credentials"

// Request is a single gateway call.
type Request struct {
	Purpose     string
	System      string
	User        string
	MaxTokens   int
	Model       string
	Temperature float64
}

// Response is the gateway's reply. Stub marks deterministic offline output.
type Response struct {
	Text         string
	Provider     string
	Model        string
	Stub         bool
	Reason       string
	InputTokens  int64
	OutputTokens int64
	Cost         float64
	// Skipped is set when the run's budget was spent and no provider was asked.
	Skipped bool
}

// Gateway routes requests to providers by purpose and substitutes a
// deterministic stub when a provider cannot answer.
type Gateway struct {
	providers map[string]Provider
	routes    map[string]string
	timeouts  map[string]time.Duration
	telemetry *telemetry.Telemetry
	logger    *zap.Logger
}

// NewGateway wires providers (by name) to purposes (purpose -> provider name).
func NewGateway(providers map[string]Provider, routes map[string]string, tel *telemetry.Telemetry, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	if providers == nil {
		providers = map[string]Provider{}
	}
	if routes == nil {
		routes = map[string]string{}
	}
	return &Gateway{
		providers: providers,
		routes:    routes,
		timeouts:  map[string]time.Duration{},
		telemetry: tel,
		logger:    logger,
	}
}

// NewGatewayFromConfig builds all configured providers and the routing table.
func NewGatewayFromConfig(cfg config.LLMConfig, tel *telemetry.Telemetry, logger *zap.Logger) (*Gateway, error) {
	providers, err := NewProviders(cfg)
	if err != nil {
		return nil, err
	}
	g := NewGateway(providers, RoutesFromConfig(cfg.Routing), tel, logger)
	for name, p := range cfg.Providers {
		if p.Timeout > 0 {
			g.timeouts[name] = p.Timeout
		}
	}
	return g, nil
}

// RoutesFromConfig flattens the routing section into a purpose map.
func RoutesFromConfig(r config.LLMRoutingConfig) map[string]string {
	return map[string]string{
		PurposeContext:           r.Context,
		PurposeCost:              r.Cost,
		PurposePerformance:       r.Performance,
		PurposeRisk:              r.Risk,
		PurposeNarrative:         r.Narrative,
		PurposeNarrativeFallback: r.NarrativeFallback,
	}
}

func (g *Gateway) provider(purpose string) (Provider, bool) {
	name := g.routes[purpose]
	if name == "" {
		return nil, false
	}
	p, ok := g.providers[name]
	if !ok || p == nil || !p.Available() {
		return nil, false
	}
	return p, true
}

// HasCredentials reports whether the provider routed for purpose can be called.
func (g *Gateway) HasCredentials(purpose string) bool {
	_, ok := g.provider(purpose)
	return ok
}

// Invoke never fails: provider absence or errors yield a stub response.
func (g *Gateway) Invoke(ctx context.Context, req Request) Response {
	resp, err := g.Call(ctx, req)
	if err == nil {
		return resp
	}
	reason := err.Error()
	skipped := errors.Is(err, ErrBudgetExceeded)
	switch {
	case errors.Is(err, ErrProviderUnavailable):
		reason = reasonNoCredentials
		g.logger.Info("using stub", zap.String("purpose", req.Purpose), zap.String("reason", reason))
	case skipped:
		g.logger.Warn("budget spent, using stub", zap.String("purpose", req.Purpose), zap.String("reason", reason))
	default:
		g.logger.Warn("provider call failed, using stub", zap.String("purpose", req.Purpose), zap.String("provider", resp.Provider), zap.Error(err))
	}
	g.telemetry.RecordStub(req.Purpose)
	return Response{
		Text:     stubText(req.Purpose, req.User),
		Provider: resp.Provider,
		Model:    "stub",
		Stub:     true,
		Reason:   reason,
		Skipped:  skipped,
	}
}

// Call is the strict variant. It returns ErrProviderUnavailable when the
// routed provider has no credentials and the provider error otherwise.
func (g *Gateway) Call(ctx context.Context, req Request) (Response, error) {
	name := g.routes[req.Purpose]
	p, ok := g.provider(req.Purpose)
	if !ok {
		return Response{Provider: name}, ErrProviderUnavailable
	}
	if m := monitorFrom(ctx); m != nil {
		if err := m.Exceeded(); err != nil {
			return Response{Provider: name}, fmt.Errorf("%w: %v", ErrBudgetExceeded, err)
		}
	}

	timeout := g.timeouts[name]
	if timeout <= 0 {
		timeout = defaultProviderTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	c, err := p.Complete(cctx, Prompt{
		System:      req.System,
		User:        req.User,
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		g.telemetry.RecordProviderCall(name, false, 0, 0, 0)
		return Response{Provider: name}, err
	}
	g.telemetry.RecordProviderCall(name, true, c.InputTokens, c.OutputTokens, c.Cost)
	if m := monitorFrom(ctx); m != nil {
		if err := m.Record(req.Purpose, c.Cost, c.InputTokens+c.OutputTokens); err != nil {
			g.logger.Warn("budget exceeded", zap.String("purpose", req.Purpose), zap.Error(err))
		}
	}
	g.logger.Debug("provider call",
		zap.String("purpose", req.Purpose),
		zap.String("provider", name),
		zap.String("model", c.Model),
		zap.Int64("input_tokens", c.InputTokens),
		zap.Int64("output_tokens", c.OutputTokens),
		zap.Duration("elapsed", time.Since(start)))
	return Response{
		Text:         c.Text,
		Provider:     name,
		Model:        c.Model,
		InputTokens:  c.InputTokens,
		OutputTokens: c.OutputTokens,
		Cost:         c.Cost,
	}, nil
}

type monitorKey struct{}

// withMonitor attaches a per-run usage monitor that Call reports into.
func withMonitor(ctx context.Context, m *budget.Monitor) context.Context {
	return context.WithValue(ctx, monitorKey{}, m)
}

func monitorFrom(ctx context.Context) *budget.Monitor {
	m, _ := ctx.Value(monitorKey{}).(*budget.Monitor)
	return m
}
