// internal/logging/sampling.go
package logging

import (
	"go.uber.org/zap/zapcore"
)

// newSampledCore wraps core with per-level sampling from cfg.Levels.
// Levels without a budget pass through. Error and above are never sampled,
// and neither is Trace, which sits below zap's sampled range. A child core
// that gains a run.id field starts a fresh budget, so a noisy evolution run
// cannot starve the next one.
func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled {
		return core
	}
	return &runSampler{Core: sampleLevels(core, cfg), base: core, cfg: cfg}
}

// sampleLevels tees one sampler per budgeted level with a pass-through core
// for every other level.
func sampleLevels(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	budgeted := func(lvl zapcore.Level) bool {
		_, ok := cfg.Levels[lvl]
		return ok && lvl >= zapcore.DebugLevel && lvl < zapcore.ErrorLevel
	}

	cores := make([]zapcore.Core, 0, len(cfg.Levels)+1)
	for lvl, lc := range cfg.Levels {
		if !budgeted(lvl) {
			continue
		}
		only := &levelCore{Core: core, allow: func(l zapcore.Level) bool { return l == lvl }}
		cores = append(cores, zapcore.NewSamplerWithOptions(only, cfg.Tick.Duration(), lc.Initial, lc.Thereafter))
	}
	cores = append(cores, &levelCore{Core: core, allow: func(l zapcore.Level) bool { return !budgeted(l) }})
	return zapcore.NewTee(cores...)
}

// levelCore passes only the levels allow accepts.
type levelCore struct {
	zapcore.Core
	allow func(zapcore.Level) bool
}

func (c *levelCore) Enabled(lvl zapcore.Level) bool {
	return c.allow(lvl) && c.Core.Enabled(lvl)
}

func (c *levelCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.allow(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}

func (c *levelCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelCore{Core: c.Core.With(fields), allow: c.allow}
}

// runSampler keeps the unsampled base so a run-scoped child can rebuild
// its samplers.
type runSampler struct {
	zapcore.Core
	base zapcore.Core
	cfg  SamplingConfig
}

func (s *runSampler) With(fields []zapcore.Field) zapcore.Core {
	base := s.base.With(fields)
	for _, f := range fields {
		if f.Key == RunKey {
			return &runSampler{Core: sampleLevels(base, s.cfg), base: base, cfg: s.cfg}
		}
	}
	return &runSampler{Core: s.Core.With(fields), base: base, cfg: s.cfg}
}
