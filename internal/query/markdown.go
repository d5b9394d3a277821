package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/patternd/internal/pattern"
	"github.com/fyrsmithlabs/patternd/internal/scoring"
)

const (
	// TopOverallLimit caps the cross-scope highlight section.
	TopOverallLimit = 10
	// PerTypeLimit caps each type section and the anti-pattern section.
	PerTypeLimit = 20
)

var typeHeadings = map[pattern.Type]string{
	pattern.TypeSequentialDependency: "Sequential Dependencies",
	pattern.TypeParallelSuccess:      "Parallel Successes",
	pattern.TypeAccomplishment:       "Accomplishments",
	pattern.TypeRisk:                 "Risks",
	pattern.TypeDecision:             "Decisions",
	pattern.TypeApproach:             "Approaches",
	pattern.TypeToolUsage:            "Tool Usage",
	pattern.TypeAntiPattern:          "Anti-Patterns",
}

// ReportWriter persists the rendered report.
type ReportWriter interface {
	WriteReport(ctx context.Context, content string) (string, error)
}

// Exporter renders and writes PATTERNS.md.
type Exporter struct {
	src   Source
	w     ReportWriter
	clock scoring.Clock
}

// NewExporter creates an Exporter. A nil clock uses the system clock.
func NewExporter(src Source, w ReportWriter, clock scoring.Clock) *Exporter {
	if clock == nil {
		clock = scoring.SystemClock
	}
	return &Exporter{src: src, w: w, clock: clock}
}

// Render returns the markdown report for the current store contents.
func (e *Exporter) Render(ctx context.Context) (string, error) {
	all, err := e.src.LoadAll(ctx)
	if err != nil {
		return "", err
	}
	return Render(all, e.clock.Now()), nil
}

// Export renders the report and writes it, returning the written path.
func (e *Exporter) Export(ctx context.Context) (string, error) {
	content, err := e.Render(ctx)
	if err != nil {
		return "", err
	}
	return e.w.WriteReport(ctx, content)
}

// Render produces the markdown report. Output depends only on its inputs.
func Render(all map[pattern.Scope][]pattern.Pattern, now time.Time) string {
	var b strings.Builder

	total, scopes := 0, 0
	for _, scope := range pattern.Scopes() {
		if n := len(all[scope]); n > 0 {
			total += n
			scopes++
		}
	}

	b.WriteString("# Learned Patterns\n\n")
	fmt.Fprintf(&b, "_Generated %s from %d patterns across %d scopes._\n", now.UTC().Format(time.RFC3339), total, scopes)

	if total == 0 {
		b.WriteString("\n_No patterns recorded yet._\n")
		return b.String()
	}

	top := Apply(all, Filter{Limit: TopOverallLimit})
	fmt.Fprintf(&b, "\n## Top %d Overall\n\n", TopOverallLimit)
	for i := range top {
		fmt.Fprintf(&b, "%d. **%s** `%s/%s` (score %.2f, confidence %.2f, seen %dx)\n",
			i+1, escape(top[i].Title()), top[i].Scope, top[i].Type, top[i].Score, top[i].Confidence, top[i].Frequency)
	}

	for _, scope := range pattern.Scopes() {
		if len(all[scope]) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n", heading(string(scope)))
		for _, t := range pattern.Types() {
			if t == pattern.TypeAntiPattern {
				continue
			}
			section := Apply(all, Filter{Scopes: []pattern.Scope{scope}, Types: []pattern.Type{t}, Limit: PerTypeLimit})
			if len(section) == 0 {
				continue
			}
			fmt.Fprintf(&b, "\n### %s\n\n", typeHeadings[t])
			for i := range section {
				writeEntry(&b, &section[i])
			}
		}
	}

	anti := Apply(all, Filter{Types: []pattern.Type{pattern.TypeAntiPattern}, Limit: PerTypeLimit})
	if len(anti) > 0 {
		b.WriteString("\n## Anti-Patterns\n\n")
		for i := range anti {
			writeEntry(&b, &anti[i])
		}
	}
	return b.String()
}

func writeEntry(b *strings.Builder, p *pattern.Pattern) {
	fmt.Fprintf(b, "- **%s** (score %.2f, confidence %.2f, seen %dx, last %s)\n",
		escape(p.Title()), p.Score, p.Confidence, p.Frequency, p.LastSeen.UTC().Format(time.DateOnly))
	if p.Type == pattern.TypeAntiPattern {
		fmt.Fprintf(b, "  - Scope: %s\n", p.Scope)
	}
	for _, field := range []struct{ label, value string }{
		{"Problem", p.Problem},
		{"Solution", p.Solution},
		{"Details", p.Content},
		{"Notes", p.Description},
	} {
		if v := strings.TrimSpace(field.value); v != "" {
			fmt.Fprintf(b, "  - %s: %s\n", field.label, escape(v))
		}
	}
	if len(p.Tags) > 0 {
		fmt.Fprintf(b, "  - Tags: %s\n", strings.Join(p.Tags, ", "))
	}
}

func heading(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// escape keeps pattern text on one line.
func escape(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
