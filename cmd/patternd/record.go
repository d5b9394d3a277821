package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/patternd/internal/inbox"
	"github.com/fyrsmithlabs/patternd/internal/pattern"
)

type recordFlags struct {
	scope       string
	session     string
	typ         string
	name        string
	problem     string
	solution    string
	content     string
	description string
	tags        []string
	outcome     string
}

func newRecordCmd(a *app) *cobra.Command {
	f := &recordFlags{}
	cmd := &cobra.Command{
		Use:   "record [file|-]",
		Short: "Record an observation bundle",
		Long: `Record extracted fragments as pattern observations.

Either pass a bundle file (or - for stdin) containing
{"scope": "...", "sessionId": "...", "fragments": [...]}, or describe a
single fragment with flags. --scope and --session override the bundle.

Examples:
  # Record a bundle file
  patternd record bundle.json

  # Record one fragment
  patternd record --scope implement --type approach \
    --name "table-driven tests" --content "Cover parsers with table tests"

  # Record a failed attempt
  patternd record --scope review --type anti-pattern --outcome failure \
    --content "Merged without running the integration suite"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bundle, err := f.bundle(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			res, err := a.engine.RecordObservation(cmd.Context(), bundle.Scope, bundle.Fragments, bundle.SessionID)
			if err != nil {
				return err
			}
			if a.flags.json {
				return printJSON(cmd.OutOrStdout(), res)
			}
			renderObservation(cmd.OutOrStdout(), res)
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.scope, "scope", "", "scope: research, plan, implement, review, release")
	fl.StringVar(&f.session, "session", "", "session ID (generated when empty)")
	fl.StringVar(&f.typ, "type", "", "pattern type for a single fragment")
	fl.StringVar(&f.name, "name", "", "fragment name")
	fl.StringVar(&f.problem, "problem", "", "fragment problem")
	fl.StringVar(&f.solution, "solution", "", "fragment solution")
	fl.StringVar(&f.content, "content", "", "fragment content")
	fl.StringVar(&f.description, "description", "", "fragment description")
	fl.StringSliceVar(&f.tags, "tag", nil, "fragment tag (repeatable)")
	fl.StringVar(&f.outcome, "outcome", "", "observed outcome: success or failure")
	return cmd
}

// bundle assembles the bundle to record from the file argument and flags.
func (f *recordFlags) bundle(stdin io.Reader, args []string) (*inbox.Bundle, error) {
	b := &inbox.Bundle{}
	if len(args) == 1 {
		var (
			data []byte
			err  error
		)
		if args[0] == "-" {
			data, err = io.ReadAll(stdin)
		} else {
			data, err = os.ReadFile(args[0])
		}
		if err != nil {
			return nil, fmt.Errorf("reading bundle: %w", err)
		}
		if b, err = inbox.DecodeBundle(data); err != nil {
			return nil, err
		}
	}

	if f.scope != "" {
		b.Scope = pattern.Scope(f.scope)
	}
	if f.session != "" {
		b.SessionID = f.session
	}

	if f.hasFragment() {
		frag, err := f.fragment()
		if err != nil {
			return nil, err
		}
		b.Fragments = append(b.Fragments, frag)
	}

	if b.Scope == "" {
		return nil, errors.New("a scope is required (--scope or bundle scope)")
	}
	if len(b.Fragments) == 0 {
		return nil, errors.New("nothing to record: pass a bundle file or fragment flags")
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

func (f *recordFlags) hasFragment() bool {
	return f.typ != "" || f.name != "" || f.problem != "" || f.solution != "" ||
		f.content != "" || f.description != ""
}

func (f *recordFlags) fragment() (pattern.Fragment, error) {
	typ, err := pattern.ParseType(f.typ)
	if err != nil {
		return pattern.Fragment{}, err
	}
	frag := pattern.Fragment{
		Type:        typ,
		Name:        f.name,
		Problem:     f.problem,
		Solution:    f.solution,
		Content:     f.content,
		Description: f.description,
		Tags:        f.tags,
	}
	switch strings.ToLower(f.outcome) {
	case "":
	case "success":
		ok := true
		frag.Success = &ok
	case "failure":
		ok := false
		frag.Success = &ok
	default:
		return pattern.Fragment{}, fmt.Errorf("unknown outcome %q (want success or failure)", f.outcome)
	}
	return frag, nil
}
