package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mohammad-safakhou/techbrief/config"
	"github.com/mohammad-safakhou/techbrief/internal/agent/telemetry"
	"github.com/mohammad-safakhou/techbrief/internal/budget"
)

// DegradedBudget is listed in ComparisonResult.Degraded when the run crossed
// a configured limit.
const DegradedBudget = "budget"

// DecisionRecorder persists finished runs. Failures never fail the run.
type DecisionRecorder interface {
	Record(ctx context.Context, r ComparisonResult) error
}

// Pipeline runs EXTRACT -> FANOUT -> JOIN -> SYNTHESIZE -> DONE for one query.
type Pipeline struct {
	extractor   Extractor
	specialists []Specialist
	narrative   *NarrativeAgent
	recorder    DecisionRecorder
	telemetry   *telemetry.Telemetry
	logger      *zap.Logger
	budget      budget.Config

	specialistTimeout time.Duration
	narrativeTimeout  time.Duration

	// Processing state
	processing map[string]*ProcessingStatus
	mu         sync.RWMutex

	// Concurrency control
	semaphore chan struct{}
}

var pipelineTracer trace.Tracer = otel.Tracer("techbrief/internal/agent/core")

// PipelineOption customises a Pipeline.
type PipelineOption func(*Pipeline)

func WithRecorder(r DecisionRecorder) PipelineOption {
	return func(p *Pipeline) { p.recorder = r }
}

func WithTelemetry(t *telemetry.Telemetry) PipelineOption {
	return func(p *Pipeline) { p.telemetry = t }
}

func WithLogger(l *zap.Logger) PipelineOption {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

func WithBudget(b budget.Config) PipelineOption {
	return func(p *Pipeline) { p.budget = b }
}

// WithTimeouts bounds each specialist and the narrative stage. Zero keeps the default.
func WithTimeouts(specialist, narrative time.Duration) PipelineOption {
	return func(p *Pipeline) {
		if specialist > 0 {
			p.specialistTimeout = specialist
		}
		if narrative > 0 {
			p.narrativeTimeout = narrative
		}
	}
}

func WithMaxConcurrentRuns(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.semaphore = make(chan struct{}, n)
		}
	}
}

// WithExtractor replaces the context agent.
func WithExtractor(e Extractor) PipelineOption {
	return func(p *Pipeline) { p.extractor = e }
}

// WithSpecialists replaces the fan-out set.
func WithSpecialists(s ...Specialist) PipelineOption {
	return func(p *Pipeline) { p.specialists = s }
}

// NewPipeline wires the default agents to a gateway.
func NewPipeline(g *Gateway, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		logger:            zap.NewNop(),
		specialistTimeout: 20 * time.Second,
		narrativeTimeout:  60 * time.Second,
		processing:        make(map[string]*ProcessingStatus),
		semaphore:         make(chan struct{}, 8),
	}
	for _, opt := range opts {
		opt(p)
	}
	agentLog := p.logger.Named("agent")
	if p.extractor == nil {
		p.extractor = NewContextAgent(g, agentLog.Named("context"))
	}
	if p.specialists == nil {
		p.specialists = []Specialist{
			NewCostAgent(g, agentLog.Named("cost")),
			NewPerformanceAgent(g, agentLog.Named("performance")),
			NewRiskAgent(g, agentLog.Named("risk")),
		}
	}
	p.narrative = NewNarrativeAgent(g, agentLog.Named("narrative"))
	p.logger = p.logger.Named("orch")
	return p
}

// NewPipelineFromConfig builds the gateway and pipeline from configuration.
func NewPipelineFromConfig(cfg *config.Config, tel *telemetry.Telemetry, logger *zap.Logger, opts ...PipelineOption) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	g, err := NewGatewayFromConfig(cfg.LLM, tel, logger.Named("gateway"))
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}
	base := []PipelineOption{
		WithLogger(logger),
		WithTelemetry(tel),
		WithBudget(budget.FromLimits(cfg.Budget.MaxCost, cfg.Budget.MaxTokens, cfg.Budget.MaxTimeSeconds)),
		WithTimeouts(cfg.Agents.SpecialistTimeout, cfg.Agents.NarrativeTimeout),
		WithMaxConcurrentRuns(cfg.Agents.MaxConcurrentRuns),
	}
	return NewPipeline(g, append(base, opts...)...), nil
}

// RunComparison produces a decision brief for query under a fresh run id.
func (p *Pipeline) RunComparison(ctx context.Context, query string) (ComparisonResult, error) {
	return p.RunComparisonWithID(ctx, uuid.New().String(), query)
}

// RunComparisonWithID is RunComparison with a caller-chosen run id, so the
// caller can poll Status while the run is in flight. An id that is already
// in flight is rejected with ErrRunInFlight.
func (p *Pipeline) RunComparisonWithID(ctx context.Context, runID, query string) (ComparisonResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return ComparisonResult{}, ErrEmptyQuery
	}
	if runID == "" {
		runID = uuid.New().String()
	}
	started := time.Now()
	ctx, span := pipelineTracer.Start(ctx, "comparison.run",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.Int("query.length", len(query)),
		))
	defer span.End()

	status := &ProcessingStatus{
		RunID:       runID,
		Query:       query,
		Phase:       PhaseExtract,
		CreatedAt:   started,
		LastUpdated: started,
	}
	p.mu.Lock()
	if _, busy := p.processing[runID]; busy {
		p.mu.Unlock()
		span.SetStatus(codes.Error, ErrRunInFlight.Error())
		return ComparisonResult{}, fmt.Errorf("%w: %s", ErrRunInFlight, runID)
	}
	p.processing[runID] = status
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.processing, runID)
		p.mu.Unlock()
	}()

	// Acquire semaphore for concurrency control
	select {
	case p.semaphore <- struct{}{}:
		defer func() { <-p.semaphore }()
	case <-ctx.Done():
		return ComparisonResult{}, ctx.Err()
	}

	monitor := budget.NewMonitor(p.budget)
	ctx = withMonitor(ctx, monitor)
	log := p.logger.With(zap.String("run_id", runID))
	log.Info("comparison started", zap.String("query", query))

	fail := func(err error) (ComparisonResult, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.updateStatus(status, PhaseFailed, 1, "", err)
		usage := monitor.Snapshot()
		p.telemetry.RecordRun(false, usage.Cost, usage.Tokens)
		log.Error("comparison failed", zap.Error(err))
		return ComparisonResult{}, err
	}

	c := NewComparisonContext(query)
	var degradedStages []string

	// Phase 1: extract
	p.updateStatus(status, PhaseExtract, 0.1, "extracting options and constraints", nil)
	stageStart := time.Now()
	ectx, espan := pipelineTracer.Start(ctx, "comparison.extract")
	ext := p.extractor.Extract(ectx, query)
	if err := c.applyExtraction(ext); err != nil {
		log.Error("context write rejected", zap.Error(err))
	}
	if err := ext.Err(); err != nil {
		degradedStages = append(degradedStages, PurposeContext)
		espan.SetStatus(codes.Error, err.Error())
	} else {
		espan.SetStatus(codes.Ok, "completed")
	}
	espan.SetAttributes(attribute.String("option.a", c.OptionA), attribute.String("option.b", c.OptionB), attribute.String("category", string(c.TechCategory)))
	espan.End()
	p.telemetry.RecordAgent(PurposeContext, string(ext.Status))
	p.telemetry.RecordStage(string(PhaseExtract), time.Since(stageStart))
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	// Phase 2: fan out to the specialists over a snapshot of the extraction
	p.updateStatus(status, PhaseFanout, 0.3, fmt.Sprintf("analysing %s vs %s", c.OptionA, c.OptionB), nil)
	stageStart = time.Now()
	snapshot := c.snapshot()
	fragments := p.fanOut(ctx, snapshot)
	p.telemetry.RecordStage(string(PhaseFanout), time.Since(stageStart))

	// Phase 3: join
	p.updateStatus(status, PhaseJoin, 0.6, "joining specialist results", nil)
	for _, f := range fragments {
		if err := f.apply(c); err != nil {
			log.Error("context write rejected", zap.String("agent", f.Agent()), zap.Error(err))
			continue
		}
		p.telemetry.RecordAgent(f.Agent(), string(f.State()))
		if err := FragmentErr(f); err != nil {
			degradedStages = append(degradedStages, f.Agent())
			log.Warn("specialist degraded", zap.String("agent", f.Agent()), zap.String("reason", f.Why()))
		}
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	// Phase 4: synthesize
	p.updateStatus(status, PhaseSynthesize, 0.8, "writing the brief", nil)
	stageStart = time.Now()
	nctx, cancel := context.WithTimeout(ctx, p.narrativeTimeout)
	nctx, nspan := pipelineTracer.Start(nctx, "comparison.synthesize")
	syn, err := p.narrative.Synthesize(nctx, c.snapshot(), started)
	cancel()
	p.telemetry.RecordStage(string(PhaseSynthesize), time.Since(stageStart))
	if err != nil {
		nspan.RecordError(err)
		nspan.SetStatus(codes.Error, err.Error())
		nspan.End()
		if cerr := ctx.Err(); cerr != nil {
			return fail(cerr)
		}
		if !errors.Is(err, ErrSynthesisFailed) {
			err = fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
		}
		p.telemetry.RecordAgent(PurposeNarrative, string(StatusDegraded))
		return fail(err)
	}
	nspan.SetAttributes(attribute.String("winner", syn.Verdict.Winner), attribute.String("rule", syn.Verdict.Rule), attribute.String("provider", syn.Provider))
	nspan.SetStatus(codes.Ok, "completed")
	nspan.End()
	p.telemetry.RecordAgent(PurposeNarrative, string(StatusOK))
	if err := c.applyBrief(syn.Brief); err != nil {
		log.Error("context write rejected", zap.Error(err))
	}

	if err := monitor.Exceeded(); err != nil {
		degradedStages = append(degradedStages, DegradedBudget)
		log.Warn("budget exceeded", zap.Error(err))
	}
	usage := monitor.Snapshot()
	result := ComparisonResult{
		ID:           runID,
		Query:        query,
		Brief:        c.FinalBrief,
		SliderData:   sliderFor(c),
		ValueMetrics: syn.Metrics,
		Verdict:      syn.Verdict,
		Context:      c,
		Degraded:     degradedStages,
		Usage:        usage,
		CreatedAt:    started.UTC(),
	}

	// Done
	p.updateStatus(status, PhaseDone, 1, "completed", nil)
	p.telemetry.RecordRun(true, usage.Cost, usage.Tokens)
	span.SetAttributes(attribute.String("winner", result.Verdict.Winner), attribute.StringSlice("degraded", degradedStages))
	span.SetStatus(codes.Ok, "completed")
	log.Info("comparison completed",
		zap.String("winner", result.Verdict.Winner),
		zap.String("rule", result.Verdict.Rule),
		zap.Strings("degraded", degradedStages),
		zap.Int64("tokens", usage.Tokens),
		zap.Duration("elapsed", time.Since(started)))

	if p.recorder != nil {
		if err := p.recorder.Record(ctx, result); err != nil {
			log.Warn("persist result", zap.Error(fmt.Errorf("%w: %v", ErrPersistenceFailed, err)))
		}
	}
	return result, nil
}

// fanOut runs every specialist concurrently with its own timeout and waits
// for all of them. A specialist that returns nothing is marked degraded.
func (p *Pipeline) fanOut(ctx context.Context, in ComparisonContext) []Fragment {
	fragments := make([]Fragment, len(p.specialists))
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range p.specialists {
		g.Go(func() error {
			sctx, cancel := context.WithTimeout(gctx, p.specialistTimeout)
			defer cancel()
			sctx, sspan := pipelineTracer.Start(sctx, "comparison.specialist",
				trace.WithAttributes(attribute.String("agent", s.Name())))
			defer sspan.End()

			f := s.Analyze(sctx, in)
			if f == nil {
				f = degradedFragment(s.Name(), "specialist returned no fragment")
			}
			if err := FragmentErr(f); err != nil {
				sspan.SetStatus(codes.Error, err.Error())
			} else {
				sspan.SetStatus(codes.Ok, "completed")
			}
			fragments[i] = f
			return nil
		})
	}
	_ = g.Wait()
	return fragments
}

func sliderFor(c *ComparisonContext) SliderData {
	s := SliderData{UserLevels: []Number{}, CostsA: []Number{}, CostsB: []Number{}}
	if c.Cost.Usable() && !c.Cost.Value.Slider.Empty() {
		s = c.Cost.Value.Slider
	}
	return s
}

func (p *Pipeline) updateStatus(status *ProcessingStatus, phase Phase, progress float64, message string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	status.Phase = phase
	status.Progress = progress
	if message != "" {
		status.Message = message
	}
	if err != nil {
		status.Error = err.Error()
	}
	status.LastUpdated = time.Now()
}

// Status returns the in-flight status of a run.
func (p *Pipeline) Status(runID string) (ProcessingStatus, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	status, exists := p.processing[runID]
	if !exists {
		return ProcessingStatus{}, false
	}
	return *status, true
}

// InFlight lists the runs currently being processed.
func (p *Pipeline) InFlight() []ProcessingStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]ProcessingStatus, 0, len(p.processing))
	for _, s := range p.processing {
		out = append(out, *s)
	}
	return out
}
