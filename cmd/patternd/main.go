// Package main implements patternd, the command-line front end of the
// pattern lifecycle engine.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// version information
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// execute runs the root command and always releases the app afterwards so
// telemetry and the metrics textfile are flushed on failure too.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	a := &app{}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	return errors.Join(err, a.close())
}

type rootFlags struct {
	configPath  string
	storePath   string
	logLevel    string
	metricsFile string
	json        bool
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "patternd",
		Short: "Learn, score and prune workflow patterns",
		Long: `patternd keeps a local store of patterns observed during recurring
workflow phases (research, plan, implement, review, release). It scores them
by confidence and decay, merges near duplicates, clusters similar entries and
evicts low-value ones so each scope stays within capacity.

Examples:
  # Record a bundle of extracted fragments
  patternd record bundle.json

  # Run the evolution pipeline for every scope
  patternd evolve --all

  # Show the ten best implementation patterns
  patternd query --scope implement --limit 10`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd.Context())
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configPath, "config", "", "service config file (default ~/.config/patternd/config.yaml)")
	pf.StringVar(&a.flags.storePath, "store", "", "pattern store root (overrides store.path)")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	pf.StringVar(&a.flags.metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile on exit")
	pf.BoolVar(&a.flags.json, "json", false, "print machine-readable JSON")

	root.AddCommand(
		newRecordCmd(a),
		newEvolveCmd(a),
		newQueryCmd(a),
		newPreviewCmd(a),
		newExportCmd(a),
		newConfigCmd(a),
		newWatchCmd(a),
		newSessionsCmd(a),
	)
	return root
}
