package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/patternd/internal/config"
	"github.com/fyrsmithlabs/patternd/internal/eviction"
	"github.com/fyrsmithlabs/patternd/internal/evolution"
	"github.com/fyrsmithlabs/patternd/internal/pattern"
	"github.com/fyrsmithlabs/patternd/internal/query"
	"github.com/fyrsmithlabs/patternd/internal/scoring"
	"github.com/fyrsmithlabs/patternd/internal/store"
)

// Engine coordinates the store, the evolution pipeline and queries.
type Engine struct {
	store    *store.FileStore
	clock    scoring.Clock
	logger   *zap.Logger
	tracer   trace.Tracer
	metrics  *evolution.Metrics
	queries  *query.Service
	exporter *query.Exporter

	mu       sync.RWMutex
	cfg      config.Engine
	pipeline *evolution.Pipeline
}

type options struct {
	clock  scoring.Clock
	logger *zap.Logger
	tracer trace.Tracer
	meter  metric.Meter
}

// Option configures an Engine.
type Option func(*options)

// WithClock sets the clock used for every age calculation.
func WithClock(c scoring.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTracer sets the tracer for evolution spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithMeter sets the meter for evolution instruments.
func WithMeter(m metric.Meter) Option {
	return func(o *options) { o.meter = m }
}

// Open opens the store at root and creates an Engine over it.
func Open(ctx context.Context, root string, opts ...Option) (*Engine, error) {
	o := resolve(opts)
	st, err := store.New(root, store.WithLogger(o.logger.Named("store")))
	if err != nil {
		return nil, err
	}
	return newEngine(ctx, st, o)
}

// New creates an Engine over an existing store.
func New(ctx context.Context, st *store.FileStore, opts ...Option) (*Engine, error) {
	if st == nil {
		return nil, errors.New("store is required")
	}
	return newEngine(ctx, st, resolve(opts))
}

func resolve(opts []Option) options {
	o := options{
		clock:  scoring.SystemClock,
		logger: zap.NewNop(),
		tracer: evolution.Tracer(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func newEngine(ctx context.Context, st *store.FileStore, o options) (*Engine, error) {
	metrics, err := evolution.NewMetrics(o.meter)
	if err != nil {
		return nil, fmt.Errorf("creating evolution metrics: %w", err)
	}

	e := &Engine{
		store:   st,
		clock:   o.clock,
		logger:  o.logger,
		tracer:  o.tracer,
		metrics: metrics,
		queries: query.NewService(st),
	}
	e.exporter = query.NewExporter(st, st, o.clock)

	cfg, err := st.LoadEngineConfig(ctx)
	if err != nil {
		return nil, err
	}
	if err := e.install(cfg); err != nil {
		return nil, err
	}
	return e, nil
}

// install swaps in a new config and the pipeline built from it.
func (e *Engine) install(cfg config.Engine) error {
	p, err := evolution.New(e.store, cfg,
		evolution.WithClock(e.clock),
		evolution.WithLogger(e.logger.Named("evolution")),
		evolution.WithTracer(e.tracer),
		evolution.WithMetrics(e.metrics),
		evolution.WithReporter(e.exporter),
	)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.cfg = cfg
	e.pipeline = p
	e.mu.Unlock()
	return nil
}

func (e *Engine) currentPipeline() *evolution.Pipeline {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.pipeline
}

// Config returns a copy of the active engine config.
func (e *Engine) Config() config.Engine {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// Store returns the underlying store.
func (e *Engine) Store() *store.FileStore {
	return e.store
}

// UpdateConfig applies fn to the stored config, persists it if valid and
// activates it for subsequent operations.
func (e *Engine) UpdateConfig(ctx context.Context, fn func(*config.Engine) error) (config.Engine, error) {
	cfg, err := e.store.UpdateEngineConfig(ctx, fn)
	if err != nil {
		return config.Engine{}, err
	}
	if err := e.install(cfg); err != nil {
		return config.Engine{}, err
	}
	e.logger.Info("engine config updated")
	return cfg, nil
}

// ReloadConfig re-reads config.json. On error the active config is kept.
func (e *Engine) ReloadConfig(ctx context.Context) (config.Engine, error) {
	cfg, err := e.store.LoadEngineConfig(ctx)
	if err != nil {
		return config.Engine{}, err
	}
	if err := e.install(cfg); err != nil {
		return config.Engine{}, err
	}
	e.logger.Info("engine config reloaded")
	return cfg, nil
}

// RunEvolution evolves one scope.
func (e *Engine) RunEvolution(ctx context.Context, scope pattern.Scope) (*evolution.Report, error) {
	return e.currentPipeline().Run(ctx, scope)
}

// RunEvolutionAllScopes evolves every scope; failures are joined.
func (e *Engine) RunEvolutionAllScopes(ctx context.Context) ([]*evolution.Report, error) {
	return e.currentPipeline().RunAll(ctx)
}

// PlanEvolution computes a run's outcome for scope without persisting it.
func (e *Engine) PlanEvolution(ctx context.Context, scope pattern.Scope) (*evolution.Plan, error) {
	return e.currentPipeline().Plan(ctx, scope)
}

// GetEvictionPreview reports which patterns the next run would evict.
// Nothing is modified.
func (e *Engine) GetEvictionPreview(ctx context.Context, scope pattern.Scope) (*eviction.Result, error) {
	plan, err := e.PlanEvolution(ctx, scope)
	if err != nil {
		return nil, err
	}
	if plan.Eviction == nil {
		return &eviction.Result{Scope: scope, Capacity: e.Config().Capacity.MaxPatternsPerScope}, nil
	}
	return plan.Eviction, nil
}

// QueryPatterns returns stored patterns matching f.
func (e *Engine) QueryPatterns(ctx context.Context, f query.Filter) ([]pattern.Pattern, error) {
	return e.queries.Query(ctx, f)
}

// ExportMarkdown regenerates PATTERNS.md and returns its path.
func (e *Engine) ExportMarkdown(ctx context.Context) (string, error) {
	return e.exporter.Export(ctx)
}

// RenderMarkdown returns the report without writing it.
func (e *Engine) RenderMarkdown(ctx context.Context) (string, error) {
	return e.exporter.Render(ctx)
}

// Sessions returns stored session summaries, oldest first.
func (e *Engine) Sessions(ctx context.Context) ([]pattern.SessionSummary, error) {
	return e.store.ListSessions(ctx)
}
