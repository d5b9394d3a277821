package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestTestLogger_Creation(t *testing.T) {
	tl := NewTestLogger()
	assert.NotNil(t, tl.Logger)
	assert.NotNil(t, tl.observed)
}

func TestTestLogger_AssertLogged(t *testing.T) {
	tl := NewTestLogger()
	ctx := context.Background()

	tl.Info(ctx, "test message", zap.String("key", "value"))

	tl.AssertLogged(t, zapcore.InfoLevel, "test message")
}

func TestTestLogger_AssertNotLogged(t *testing.T) {
	tl := NewTestLogger()

	tl.AssertNotLogged(t, zapcore.ErrorLevel, "should not exist")
}

func TestTestLogger_AssertField(t *testing.T) {
	tl := NewTestLogger()
	ctx := context.Background()

	tl.Info(ctx, "test", zap.String("key", "value"))

	tl.AssertField(t, "test", "key", "value")
}

func TestTestLogger_AssertTraceCorrelation(t *testing.T) {
	tl := NewTestLogger()

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	tl.Info(ctx, "correlated")
	tl.AssertTraceCorrelation(t, "correlated")
}

func TestTestLogger_Reset(t *testing.T) {
	tl := NewTestLogger()
	tl.Warn(context.Background(), "first")
	tl.Reset()

	assert.Empty(t, tl.All())
	assert.Equal(t, 0, tl.FilterMessage("first").Len())
}
