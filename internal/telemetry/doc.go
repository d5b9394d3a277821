// Package telemetry provides OpenTelemetry instrumentation for patternd.
//
// Traces and metrics are exported over OTLP (gRPC or HTTP) to a collector
// when enabled; otherwise tracers and meters come from the global no-op
// providers.
//
//	cfg := telemetry.FromServiceConfig(svc.Telemetry, version)
//	tel, err := telemetry.New(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	tracer := tel.Tracer(evolution.InstrumentationName)
//	meter := tel.Meter(evolution.InstrumentationName)
//
// Configuration (config.yaml):
//
//	telemetry:
//	  enabled: true
//	  endpoint: "localhost:4317"
//	  protocol: grpc
//	  service_name: "patternd"
//
// Tests use NewTestTelemetry, which records spans in memory and exposes a
// manual metric reader.
package telemetry
