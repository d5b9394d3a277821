// internal/logging/context.go
package logging

import (
	"context"
	"regexp"
	"unicode/utf8"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/patternd/internal/pattern"
)

// Correlation field keys added by ContextFields.
const (
	ScopeKey   = "scope"
	SessionKey = "session.id"
	RunKey     = "run.id"
)

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 6)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
		if sc.IsSampled() {
			fields = append(fields, zap.Bool("trace_sampled", true))
		}
	}

	if scope := ScopeFromContext(ctx); scope != "" {
		fields = append(fields, zap.String(ScopeKey, string(scope)))
	}
	if sessionID := SessionIDFromContext(ctx); sessionID != "" {
		fields = append(fields, zap.String(SessionKey, sessionID))
	}
	if runID := RunIDFromContext(ctx); runID != "" {
		fields = append(fields, zap.String(RunKey, runID))
	}

	return fields
}

// For returns l annotated with the correlation fields carried by ctx.
// A logger carrying a run ID samples on its own budget.
func For(ctx context.Context, l *zap.Logger) *zap.Logger {
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return l
	}
	return l.With(fields...)
}

type scopeCtxKey struct{}
type sessionCtxKey struct{}
type runCtxKey struct{}

const maxIDLen = 128

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// validID reports whether id is safe to emit as a session or run ID.
func validID(id string) bool {
	return id != "" && len(id) <= maxIDLen && utf8.ValidString(id) && idPattern.MatchString(id)
}

// ScopeFromContext extracts the pattern scope from context.
func ScopeFromContext(ctx context.Context) pattern.Scope {
	if s, ok := ctx.Value(scopeCtxKey{}).(pattern.Scope); ok {
		return s
	}
	return ""
}

// WithScope adds the pattern scope to context. Unknown scopes leave ctx
// unchanged.
func WithScope(ctx context.Context, scope pattern.Scope) context.Context {
	if !scope.Valid() {
		return ctx
	}
	return context.WithValue(ctx, scopeCtxKey{}, scope)
}

// SessionIDFromContext extracts session ID from context.
func SessionIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(sessionCtxKey{}).(string); ok {
		return s
	}
	return ""
}

// WithSessionID adds session ID to context. Session IDs come from caller
// bundles, so one that is empty, too long or not alphanumeric (plus dot,
// hyphen, underscore) is not attached.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	if !validID(sessionID) {
		return ctx
	}
	return context.WithValue(ctx, sessionCtxKey{}, sessionID)
}

// RunIDFromContext extracts the evolution run ID from context.
func RunIDFromContext(ctx context.Context) string {
	if r, ok := ctx.Value(runCtxKey{}).(string); ok {
		return r
	}
	return ""
}

// WithRunID adds an evolution run ID to context. Invalid IDs leave ctx
// unchanged.
func WithRunID(ctx context.Context, runID string) context.Context {
	if !validID(runID) {
		return ctx
	}
	return context.WithValue(ctx, runCtxKey{}, runID)
}
