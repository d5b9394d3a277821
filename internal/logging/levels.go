// internal/logging/levels.go
package logging

import (
	"strings"

	"go.uber.org/zap/zapcore"
)

// TraceLevel is a custom level below Debug for ultra-verbose logging.
// Value: -2 (Debug is -1, Info is 0)
//
// Used for per-pattern decisions inside the evolution stages.
const TraceLevel = zapcore.Level(-2)

// LevelFromString parses a log.level value, supporting "trace".
// An empty value selects Info.
func LevelFromString(level string) (zapcore.Level, error) {
	level = strings.TrimSpace(level)
	if strings.EqualFold(level, "trace") {
		return TraceLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return zapcore.InfoLevel, err
	}
	return l, nil
}

// levelEncoder renders TraceLevel by name; zap prints it as Level(-2).
func levelEncoder(console bool) zapcore.LevelEncoder {
	return func(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		switch {
		case l == TraceLevel && console:
			enc.AppendString("TRACE")
		case l == TraceLevel:
			enc.AppendString("trace")
		case console:
			zapcore.CapitalColorLevelEncoder(l, enc)
		default:
			zapcore.LowercaseLevelEncoder(l, enc)
		}
	}
}
