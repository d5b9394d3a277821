package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/patternd/internal/pattern"
	"github.com/fyrsmithlabs/patternd/internal/query"
)

type queryFlags struct {
	scopes        []string
	types         []string
	minConfidence float64
	minScore      float64
	tags          []string
	text          string
	limit         int
}

func (f *queryFlags) filter() (query.Filter, error) {
	filter := query.Filter{
		MinConfidence: f.minConfidence,
		MinScore:      f.minScore,
		Tags:          f.tags,
		Text:          f.text,
		Limit:         f.limit,
	}
	for _, s := range f.scopes {
		scope, err := pattern.ParseScope(s)
		if err != nil {
			return query.Filter{}, err
		}
		filter.Scopes = append(filter.Scopes, scope)
	}
	for _, t := range f.types {
		typ, err := pattern.ParseType(t)
		if err != nil {
			return query.Filter{}, err
		}
		filter.Types = append(filter.Types, typ)
	}
	return filter, nil
}

func newQueryCmd(a *app) *cobra.Command {
	f := &queryFlags{}
	cmd := &cobra.Command{
		Use:   "query",
		Short: "List stored patterns by score",
		Long: `List stored patterns, highest score first.

Examples:
  # Top ten patterns across all scopes
  patternd query --limit 10

  # Review anti-patterns mentioning flaky tests
  patternd query --scope review --type anti-pattern --text flaky`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, err := f.filter()
			if err != nil {
				return err
			}
			patterns, err := a.engine.QueryPatterns(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if a.flags.json {
				return printJSON(cmd.OutOrStdout(), patterns)
			}
			renderPatterns(cmd.OutOrStdout(), patterns)
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringSliceVar(&f.scopes, "scope", nil, "restrict to scope (repeatable)")
	fl.StringSliceVar(&f.types, "type", nil, "restrict to pattern type (repeatable)")
	fl.Float64Var(&f.minConfidence, "min-confidence", 0, "minimum confidence in [0,1]")
	fl.Float64Var(&f.minScore, "min-score", 0, "minimum decay score")
	fl.StringSliceVar(&f.tags, "tag", nil, "required tag (repeatable)")
	fl.StringVar(&f.text, "text", "", "case-insensitive text search")
	fl.IntVar(&f.limit, "limit", 0, "maximum results (0 for all)")
	return cmd
}

func newPreviewCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "preview <scope>",
		Short: "Show what the next evolution run would evict",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := pattern.ParseScope(args[0])
			if err != nil {
				return err
			}
			res, err := a.engine.GetEvictionPreview(cmd.Context(), scope)
			if err != nil {
				return err
			}
			if a.flags.json {
				return printJSON(cmd.OutOrStdout(), res)
			}
			renderPreview(cmd.OutOrStdout(), res)
			return nil
		},
	}
}

func newExportCmd(a *app) *cobra.Command {
	var stdout bool
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Regenerate PATTERNS.md",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if stdout {
				doc, err := a.engine.RenderMarkdown(cmd.Context())
				if err != nil {
					return err
				}
				_, err = fmt.Fprint(cmd.OutOrStdout(), doc)
				return err
			}
			path, err := a.engine.ExportMarkdown(cmd.Context())
			if err != nil {
				return err
			}
			if a.flags.json {
				return printJSON(cmd.OutOrStdout(), map[string]string{"path": path})
			}
			fmt.Fprintln(cmd.OutOrStdout(), stat("wrote", path))
			return nil
		},
	}
	cmd.Flags().BoolVar(&stdout, "stdout", false, "print the report instead of writing PATTERNS.md")
	return cmd
}

func newSessionsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List recently recorded sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sessions, err := a.engine.Sessions(cmd.Context())
			if err != nil {
				return err
			}
			if a.flags.json {
				return printJSON(cmd.OutOrStdout(), sessions)
			}
			renderSessions(cmd.OutOrStdout(), sessions)
			return nil
		},
	}
}
