// Package evolution runs the staged maintenance pipeline that keeps each
// scope's pattern set bounded and useful:
//
//	load -> confidence -> decay -> dedup -> cluster -> evict -> persist -> report
//
// Every stage before persist works on copies, so Plan can show the outcome
// of a run without touching disk. Run holds the scope lock from load
// through persist, so two runs on one scope never interleave while runs on
// different scopes proceed independently.
package evolution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/patternd/internal/cluster"
	"github.com/fyrsmithlabs/patternd/internal/config"
	"github.com/fyrsmithlabs/patternd/internal/dedup"
	"github.com/fyrsmithlabs/patternd/internal/eviction"
	"github.com/fyrsmithlabs/patternd/internal/logging"
	"github.com/fyrsmithlabs/patternd/internal/pattern"
	"github.com/fyrsmithlabs/patternd/internal/scoring"
	"github.com/fyrsmithlabs/patternd/internal/similarity"
	"github.com/fyrsmithlabs/patternd/internal/store"
)

// Stage names, in execution order.
const (
	StageLoad       = "load"
	StageConfidence = "confidence"
	StageDecay      = "decay"
	StageDedup      = "dedup"
	StageCluster    = "cluster"
	StageEvict      = "evict"
	StagePersist    = "persist"
	StageReport     = "report"
)

// Store is the persistence the pipeline needs.
type Store interface {
	LockScope(scope pattern.Scope) func()
	LoadScope(ctx context.Context, scope pattern.Scope) (*store.Snapshot, error)
	SaveScope(ctx context.Context, snap *store.Snapshot) error
}

// Reporter regenerates the human-readable report after a scope is persisted.
type Reporter interface {
	Export(ctx context.Context) (string, error)
}

// Pipeline runs evolution for one scope at a time using a fixed config.
type Pipeline struct {
	store    Store
	cfg      config.Engine
	evictor  *eviction.Evictor
	clock    scoring.Clock
	logger   *zap.Logger
	tracer   trace.Tracer
	metrics  *Metrics
	reporter Reporter
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock sets the reference clock.
func WithClock(c scoring.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithTracer sets the tracer used for stage spans.
func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) { p.tracer = t }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithReporter sets the report generator run after persisting.
func WithReporter(r Reporter) Option {
	return func(p *Pipeline) { p.reporter = r }
}

// New creates a Pipeline. The config is copied and validated.
func New(st Store, cfg config.Engine, opts ...Option) (*Pipeline, error) {
	if st == nil {
		return nil, errors.New("store is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{
		store:  st,
		cfg:    cfg,
		clock:  scoring.SystemClock,
		logger: zap.NewNop(),
		tracer: Tracer(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.evictor = eviction.New(eviction.PolicyFrom(cfg), cfg.Decay, p.logger)
	return p, nil
}

// Config returns the config this pipeline runs with.
func (p *Pipeline) Config() config.Engine {
	return p.cfg
}

// StageTiming records how long one stage took.
type StageTiming struct {
	Stage    string        `json:"stage"`
	Duration time.Duration `json:"duration"`
}

// Plan is the computed outcome of a run before anything is persisted.
type Plan struct {
	Scope  pattern.Scope
	RunID  string
	Now    time.Time
	Loaded int

	// Result is the scope state a run would persist.
	Result     *store.Snapshot
	Dedup      *dedup.Result
	Clustering *cluster.Result
	Eviction   *eviction.Result
	Stages     []StageTiming
}

// Empty reports whether the scope had nothing to evolve.
func (pl *Plan) Empty() bool {
	return pl.Loaded == 0
}

// Report summarizes a completed run.
type Report struct {
	RunID           string        `json:"runId"`
	Scope           pattern.Scope `json:"scope"`
	StartedAt       time.Time     `json:"startedAt"`
	Duration        time.Duration `json:"duration"`
	Skipped         bool          `json:"skipped"`
	Loaded          int           `json:"loaded"`
	Merged          int           `json:"merged"`
	Clusters        int           `json:"clusters"`
	ClustersDropped int           `json:"clustersDropped"`
	Evicted         int           `json:"evicted"`
	Kept            int           `json:"kept"`
	Protected       int           `json:"protected"`
	OverCapacity    bool          `json:"overCapacity"`
	ReportPath      string        `json:"reportPath,omitempty"`
	Stages          []StageTiming `json:"stages"`
}

// Plan computes what Run would do for scope without persisting anything.
func (p *Pipeline) Plan(ctx context.Context, scope pattern.Scope) (*Plan, error) {
	if !scope.Valid() {
		return nil, fmt.Errorf("%w: %q", pattern.ErrInvalidScope, scope)
	}
	unlock := p.store.LockScope(scope)
	defer unlock()
	return p.plan(ctx, scope, uuid.NewString())
}

// Run evolves one scope and persists the result. An empty scope is a no-op
// and writes nothing.
func (p *Pipeline) Run(ctx context.Context, scope pattern.Scope) (*Report, error) {
	if !scope.Valid() {
		return nil, fmt.Errorf("%w: %q", pattern.ErrInvalidScope, scope)
	}

	runID := uuid.NewString()
	ctx = logging.WithRunID(logging.WithScope(ctx, scope), runID)
	ctx, span := p.tracer.Start(ctx, "evolution.run", trace.WithAttributes(
		attribute.String("evolution.scope", string(scope)),
		attribute.String("evolution.run_id", runID),
	))
	defer span.End()

	rep, err := p.run(ctx, scope, runID)
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.metrics.RecordRun(ctx, string(scope), "error", rep)
	case rep.Skipped:
		p.metrics.RecordRun(ctx, string(scope), "skipped", rep)
	default:
		p.metrics.RecordRun(ctx, string(scope), "success", rep)
	}
	return rep, err
}

func (p *Pipeline) run(ctx context.Context, scope pattern.Scope, runID string) (*Report, error) {
	start := time.Now()
	log := logging.For(ctx, p.logger)
	unlock := p.store.LockScope(scope)
	defer unlock()

	plan, err := p.plan(ctx, scope, runID)
	if err != nil {
		return nil, err
	}

	rep := &Report{
		RunID:     runID,
		Scope:     scope,
		StartedAt: plan.Now,
		Loaded:    plan.Loaded,
		Stages:    plan.Stages,
	}
	if plan.Empty() {
		rep.Skipped = true
		rep.Duration = time.Since(start)
		log.Debug("evolution skipped, scope is empty")
		return rep, nil
	}

	rep.Merged = len(plan.Dedup.Merges)
	rep.Clusters = len(plan.Result.Clusters)
	rep.ClustersDropped = plan.Clustering.Dropped
	rep.Evicted = len(plan.Eviction.Evicted)
	rep.Kept = len(plan.Result.Patterns)
	rep.Protected = len(plan.Eviction.Protected)
	rep.OverCapacity = plan.Eviction.OverCapacity

	if err := p.stage(ctx, &rep.Stages, StagePersist, func(ctx context.Context) error {
		return p.store.SaveScope(ctx, plan.Result)
	}); err != nil {
		rep.Duration = time.Since(start)
		return rep, fmt.Errorf("persisting scope %s: %w", scope, err)
	}

	if p.reporter != nil {
		if err := p.stage(ctx, &rep.Stages, StageReport, func(ctx context.Context) error {
			path, err := p.reporter.Export(ctx)
			rep.ReportPath = path
			return err
		}); err != nil {
			rep.Duration = time.Since(start)
			return rep, fmt.Errorf("writing report: %w", err)
		}
	}

	rep.Duration = time.Since(start)
	log.Info("evolution complete",
		zap.Int("loaded", rep.Loaded),
		zap.Int("merged", rep.Merged),
		zap.Int("clusters", rep.Clusters),
		zap.Int("evicted", rep.Evicted),
		zap.Int("kept", rep.Kept),
		zap.Bool("over_capacity", rep.OverCapacity),
		zap.Duration("duration", rep.Duration))
	return rep, nil
}

// plan runs every pure stage. The caller must hold the scope lock.
func (p *Pipeline) plan(ctx context.Context, scope pattern.Scope, runID string) (*Plan, error) {
	pl := &Plan{Scope: scope, RunID: runID, Now: p.clock.Now()}

	var snap *store.Snapshot
	if err := p.stage(ctx, &pl.Stages, StageLoad, func(ctx context.Context) error {
		var err error
		snap, err = p.store.LoadScope(ctx, scope)
		return err
	}); err != nil {
		return nil, fmt.Errorf("loading scope %s: %w", scope, err)
	}

	pl.Loaded = len(snap.Patterns)
	if snap.Empty() {
		pl.Result = snap
		return pl, nil
	}

	patterns := make([]pattern.Pattern, len(snap.Patterns))
	for i := range snap.Patterns {
		patterns[i] = snap.Patterns[i].Clone()
	}

	stages := []struct {
		name string
		fn   func(context.Context) error
	}{
		{StageConfidence, func(context.Context) error {
			for i := range patterns {
				patterns[i].Confidence = scoring.Confidence(&patterns[i], pl.Now)
			}
			return nil
		}},
		{StageDecay, func(context.Context) error {
			for i := range patterns {
				patterns[i].Score = scoring.Decay(&patterns[i], pl.Now, p.cfg.Decay)
			}
			return nil
		}},
		{StageDedup, func(context.Context) error {
			pl.Dedup = dedup.Deduplicate(patterns, p.cfg.Thresholds.Dedup)
			// Merged frequencies change the derived caches.
			for i := range pl.Dedup.Patterns {
				scoring.Refresh(&pl.Dedup.Patterns[i], pl.Now, p.cfg.Decay)
			}
			return nil
		}},
		{StageCluster, func(context.Context) error {
			deduped := pl.Dedup.Patterns
			for i := range deduped {
				if !deduped[i].HasEmbedding() {
					deduped[i].Embedding = similarity.Embed(deduped[i].Text())
				}
			}
			pl.Clustering = cluster.Assign(scope, deduped, p.cfg.Thresholds.Cluster, p.cfg.Capacity.MaxClusters)
			return nil
		}},
		{StageEvict, func(context.Context) error {
			pl.Eviction = p.evictor.Evict(scope, pl.Clustering.Patterns, pl.Clustering.Clusters, pl.Now)
			return nil
		}},
	}
	for _, st := range stages {
		if err := p.stage(ctx, &pl.Stages, st.name, st.fn); err != nil {
			return nil, fmt.Errorf("%s stage for scope %s: %w", st.name, scope, err)
		}
	}

	kept := pl.Eviction.Kept
	result := &store.Snapshot{
		Scope:    scope,
		Patterns: kept,
		Clusters: cluster.Prune(scope, pl.Clustering.Clusters, kept),
		Index:    snap.Index,
	}
	result.RebuildIndex(pl.Dedup.Aliases())

	pl.Result = result
	return pl, nil
}

// stage runs fn inside a span named evolution.<name> and appends its timing.
func (p *Pipeline) stage(ctx context.Context, timings *[]StageTiming, name string, fn func(context.Context) error) error {
	ctx, span := p.tracer.Start(ctx, "evolution."+name)
	defer span.End()

	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	*timings = append(*timings, StageTiming{Stage: name, Duration: elapsed})
	p.metrics.RecordStage(ctx, name, elapsed)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// RunAll evolves every scope in processing order. A failing scope does not
// stop the others; all failures are joined in the returned error.
func (p *Pipeline) RunAll(ctx context.Context) ([]*Report, error) {
	var (
		reports []*Report
		errs    []error
	)
	for _, scope := range pattern.Scopes() {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		rep, err := p.Run(ctx, scope)
		if err != nil {
			p.logger.Error("evolution failed",
				zap.String("scope", string(scope)),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("scope %s: %w", scope, err))
			continue
		}
		reports = append(reports, rep)
	}
	return reports, errors.Join(errs...)
}
