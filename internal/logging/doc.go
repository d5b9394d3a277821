// Package logging provides structured logging with OpenTelemetry integration.
//
// Logging wraps Zap with:
//   - Custom Trace level (-2, below Debug)
//   - Dual output (console on stderr + OpenTelemetry)
//   - Automatic context field injection (trace_id, scope, session, run)
//   - Level-aware sampling (errors never sampled)
//
// # Usage
//
//	cfg, err := logging.FromServiceConfig(svc.Log, svc.Telemetry.Enabled)
//	if err != nil {
//	    return err
//	}
//	logger, err := logging.NewLogger(cfg, tel.LoggerProvider())
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithScope(ctx, pattern.ScopeImplement)
//	ctx = logging.WithSessionID(ctx, "sess_123")
//	logger.Info(ctx, "observation recorded", zap.Int("created", 2))
//
// Engine packages take the underlying *zap.Logger (Logger.Underlying).
//
// # Sampling
//
//   - Debug: first 10 per second, drop rest
//   - Info: first 100, then 1 every 10
//   - Warn: first 100, then 1 every 100
//   - Trace, Error+: never sampled
//
// A logger annotated with a run ID (logging.For after WithRunID) samples on
// its own budget, so every evolution run keeps its first lines.
//
// Console format disables sampling.
//
// # Testing
//
//	tl := logging.NewTestLogger()
//	tl.Info(ctx, "test message", zap.String("key", "value"))
//	tl.AssertLogged(t, zapcore.InfoLevel, "test message")
//	tl.AssertField(t, "test message", "key", "value")
package logging
