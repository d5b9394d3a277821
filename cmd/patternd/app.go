package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/patternd/internal/config"
	"github.com/fyrsmithlabs/patternd/internal/engine"
	"github.com/fyrsmithlabs/patternd/internal/evolution"
	"github.com/fyrsmithlabs/patternd/internal/logging"
	"github.com/fyrsmithlabs/patternd/internal/telemetry"
)

// app holds everything a command needs once PersistentPreRunE has run.
type app struct {
	flags rootFlags

	cfg    *config.Config
	logger *logging.Logger
	tel    *telemetry.Telemetry
	engine *engine.Engine
}

func (a *app) open(ctx context.Context) error {
	cfg, err := config.Load(a.flags.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if a.flags.storePath != "" {
		cfg.Store.Path = a.flags.storePath
	}
	if a.flags.logLevel != "" {
		cfg.Log.Level = a.flags.logLevel
	}
	if a.flags.metricsFile != "" {
		cfg.Metrics.TextfilePath = a.flags.metricsFile
	}
	a.cfg = cfg

	tel, err := telemetry.New(ctx, telemetry.FromServiceConfig(cfg.Telemetry, version))
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	a.tel = tel

	logCfg, err := logging.FromServiceConfig(cfg.Log, cfg.Telemetry.Enabled)
	if err != nil {
		return fmt.Errorf("configuring logging: %w", err)
	}
	logger, err := logging.NewLogger(logCfg, tel.LoggerProvider())
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	a.logger = logger

	for _, reason := range tel.Health().Reasons {
		logger.Warn(ctx, "telemetry degraded", zap.String("reason", reason))
	}

	root, err := cfg.StorePath()
	if err != nil {
		return err
	}
	eng, err := engine.Open(ctx, root,
		engine.WithLogger(logger.Underlying()),
		engine.WithTracer(tel.Tracer(evolution.InstrumentationName)),
		engine.WithMeter(tel.Meter(evolution.InstrumentationName)),
	)
	if err != nil {
		return fmt.Errorf("opening store %s: %w", root, err)
	}
	a.engine = eng

	logger.Debug(ctx, "store opened", zap.String("root", root))
	return nil
}

// close flushes metrics, telemetry and logs. It is safe to call when open
// failed part way or never ran.
func (a *app) close() error {
	var errs []error

	if a.cfg != nil && a.cfg.Metrics.TextfilePath != "" {
		if err := prometheus.WriteToTextfile(a.cfg.Metrics.TextfilePath, prometheus.DefaultGatherer); err != nil {
			errs = append(errs, fmt.Errorf("writing metrics textfile: %w", err))
		}
	}

	if a.tel != nil {
		timeout := 5 * time.Second
		if a.cfg != nil && a.cfg.Telemetry.Shutdown > 0 {
			timeout = a.cfg.Telemetry.Shutdown.Duration()
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := a.tel.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutting down telemetry: %w", err))
		}
	}

	if a.logger != nil {
		_ = a.logger.Sync()
	}
	return errors.Join(errs...)
}
