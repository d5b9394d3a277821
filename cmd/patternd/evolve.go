package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/patternd/internal/evolution"
	"github.com/fyrsmithlabs/patternd/internal/pattern"
)

func newEvolveCmd(a *app) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "evolve [scope]",
		Short: "Run the evolution pipeline",
		Long: `Recompute confidence and decay, merge duplicates, rebuild clusters and
evict low-value patterns, then rewrite PATTERNS.md.

Examples:
  # Evolve one scope
  patternd evolve implement

  # Evolve every scope in order
  patternd evolve --all`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				reports []*evolution.Report
				err     error
			)
			switch {
			case all && len(args) > 0:
				return errors.New("pass a scope or --all, not both")
			case all:
				// Completed scopes are still reported when a later one fails.
				reports, err = a.engine.RunEvolutionAllScopes(cmd.Context())
			case len(args) == 1:
				scope, perr := pattern.ParseScope(args[0])
				if perr != nil {
					return perr
				}
				var r *evolution.Report
				if r, err = a.engine.RunEvolution(cmd.Context(), scope); r != nil {
					reports = append(reports, r)
				}
			default:
				return errors.New("a scope or --all is required")
			}

			if a.flags.json {
				if perr := printJSON(cmd.OutOrStdout(), reports); perr != nil {
					return errors.Join(err, perr)
				}
				return err
			}
			for _, r := range reports {
				if r != nil {
					renderReport(cmd.OutOrStdout(), r)
				}
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "evolve every scope")
	return cmd
}
