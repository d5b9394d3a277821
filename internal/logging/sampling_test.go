package logging

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fyrsmithlabs/patternd/internal/config"
	"github.com/fyrsmithlabs/patternd/internal/pattern"
)

// sampled returns a zap logger over an observer at TraceLevel, sampled
// with levels for the length of one test.
func sampled(levels map[zapcore.Level]LevelSamplingConfig) (*zap.Logger, *observer.ObservedLogs) {
	core, observed := observer.New(TraceLevel)
	cfg := SamplingConfig{
		Enabled: true,
		Tick:    config.Duration(time.Minute),
		Levels:  levels,
	}
	return zap.New(newSampledCore(core, cfg)), observed
}

func TestNewSampledCore_Disabled(t *testing.T) {
	core, _ := observer.New(zapcore.InfoLevel)
	assert.Equal(t, core, newSampledCore(core, SamplingConfig{Enabled: false}))
}

func TestSampling_PerLevelBudgets(t *testing.T) {
	logger, observed := sampled(map[zapcore.Level]LevelSamplingConfig{
		TraceLevel:        {Initial: 1, Thereafter: 0},
		zapcore.InfoLevel: {Initial: 3, Thereafter: 0},
		zapcore.WarnLevel: {Initial: 2, Thereafter: 4},
		// Error budgets are ignored.
		zapcore.ErrorLevel: {Initial: 1, Thereafter: 0},
	})

	for i := 0; i < 10; i++ {
		logger.Log(TraceLevel, "pattern kept")
		logger.Debug("stage finished")
		logger.Info("pattern created")
		logger.Warn("over capacity")
		logger.Error("save failed")
	}

	count := func(msg string) int { return observed.FilterMessage(msg).Len() }
	assert.Equal(t, 10, count("pattern kept"), "trace is gated by level only")
	assert.Equal(t, 10, count("stage finished"), "debug has no budget and passes through")
	assert.Equal(t, 3, count("pattern created"))
	// First 2, then every 4th of the remaining 8.
	assert.Equal(t, 4, count("over capacity"))
	assert.Equal(t, 10, count("save failed"))
}

func TestSampling_ErrorsNeverDropped(t *testing.T) {
	logger, observed := sampled(DefaultLevelSamplingConfig())

	for i := 0; i < 500; i++ {
		logger.Error("evolution failed")
	}
	assert.Equal(t, 500, observed.FilterMessage("evolution failed").Len())
}

func TestSampling_RunGetsFreshBudget(t *testing.T) {
	logger, observed := sampled(map[zapcore.Level]LevelSamplingConfig{
		zapcore.DebugLevel: {Initial: 2, Thereafter: 0},
	})
	ctx := WithScope(context.Background(), pattern.ScopeImplement)

	for _, run := range []string{"run-a", "run-b"} {
		runLogger := For(WithRunID(ctx, run), logger)
		for i := 0; i < 5; i++ {
			runLogger.Debug("pattern evicted")
		}
	}
	for i := 0; i < 5; i++ {
		logger.Debug("pattern evicted")
	}

	logs := observed.FilterMessage("pattern evicted").All()
	assert.Len(t, logs, 6)

	perRun := map[string]int{}
	for _, e := range logs {
		perRun[e.ContextMap()[RunKey].(string)]++
	}
	assert.Equal(t, 2, perRun["run-a"])
	assert.Equal(t, 2, perRun["run-b"])
}

func TestSampling_ChildWithoutRunSharesBudget(t *testing.T) {
	logger, observed := sampled(map[zapcore.Level]LevelSamplingConfig{
		zapcore.InfoLevel: {Initial: 2, Thereafter: 0},
	})
	child := For(WithScope(context.Background(), pattern.ScopeReview), logger)

	logger.Info("observation recorded")
	logger.Info("observation recorded")
	child.Info("observation recorded")

	assert.Equal(t, 2, observed.FilterMessage("observation recorded").Len())
}

func TestSampling_LoggerWrapperKeepsLevels(t *testing.T) {
	core, observed := observer.New(TraceLevel)
	filtered := &levelCore{Core: core, allow: func(l zapcore.Level) bool { return l >= zapcore.ErrorLevel }}
	logger := &Logger{zap: zap.New(filtered), config: NewDefaultConfig()}

	child := logger.With(zap.String("component", "store"))
	ctx := context.Background()
	child.Info(ctx, "scope loaded")
	child.Warn(ctx, "lock contended")
	child.Error(ctx, "save failed")

	logs := observed.All()
	if assert.Len(t, logs, 1) {
		assert.Equal(t, "save failed", logs[0].Message)
		assert.Equal(t, "store", logs[0].ContextMap()["component"])
	}
}
