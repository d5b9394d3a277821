package main

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/patternd/internal/inbox"
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		dir    string
		evolve bool
		settle time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Ingest observation bundles dropped into the inbox",
		Long: `Watch the inbox directory and record every bundle file written to it.
Ingested files move to inbox/processed, rejected ones to inbox/failed.
Runs until interrupted.

Examples:
  # Watch the default inbox (<store>/inbox)
  patternd watch

  # Evolve the scope after each bundle
  patternd watch --evolve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			if dir == "" {
				d, err := a.cfg.InboxDir()
				if err != nil {
					return err
				}
				dir = d
			}
			if !cmd.Flags().Changed("evolve") {
				evolve = a.cfg.Inbox.EvolveOnIngest
			}
			if !cmd.Flags().Changed("settle") && a.cfg.Inbox.Settle > 0 {
				settle = a.cfg.Inbox.Settle.Duration()
			}

			w, err := inbox.NewWatcher(dir, a.engine,
				inbox.WithLogger(a.logger.Underlying()),
				inbox.WithSettle(settle),
				inbox.WithEvolveOnIngest(evolve),
			)
			if err != nil {
				return err
			}
			defer w.Stop()

			if err := w.Start(ctx); err != nil {
				return err
			}
			a.logger.Info(ctx, "watching inbox",
				zap.String("dir", w.Dir()),
				zap.Bool("evolve", evolve))

			out := cmd.OutOrStdout()
			for {
				select {
				case <-ctx.Done():
					return nil
				case r := <-w.Results():
					if a.flags.json {
						if err := printJSON(out, resultView(r)); err != nil {
							return err
						}
						continue
					}
					renderResult(out, r)
				}
			}
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&dir, "dir", "", "inbox directory (default inbox.dir or <store>/inbox)")
	fl.BoolVar(&evolve, "evolve", false, "run evolution for the bundle's scope after each ingest")
	fl.DurationVar(&settle, "settle", inbox.DefaultSettle, "quiet period before a written file is ingested")
	return cmd
}

type watchResult struct {
	File        string `json:"file"`
	Observation any    `json:"observation,omitempty"`
	Evolution   any    `json:"evolution,omitempty"`
	Error       string `json:"error,omitempty"`
}

func resultView(r inbox.Result) watchResult {
	v := watchResult{File: r.File}
	if r.Observation != nil {
		v.Observation = r.Observation
	}
	if r.Evolution != nil {
		v.Evolution = r.Evolution
	}
	if r.Err != nil {
		v.Error = r.Err.Error()
	}
	return v
}

func renderResult(w io.Writer, r inbox.Result) {
	name := filepath.Base(r.File)
	if r.Err != nil {
		fmt.Fprintf(w, "%s %s %s\n", errorStyle.Render("✗"), name, dimStyle.Render(r.Err.Error()))
		return
	}
	fmt.Fprintf(w, "%s %s\n", healthyStyle.Render("✓"), name)
	if r.Observation != nil {
		renderObservation(w, r.Observation)
	}
	if r.Evolution != nil {
		renderReport(w, r.Evolution)
	}
}
