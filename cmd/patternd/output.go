package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/fyrsmithlabs/patternd/internal/engine"
	"github.com/fyrsmithlabs/patternd/internal/eviction"
	"github.com/fyrsmithlabs/patternd/internal/evolution"
	"github.com/fyrsmithlabs/patternd/internal/pattern"
)

// maxTextWidth bounds the pattern text column in tables.
const maxTextWidth = 60

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	healthyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	cellStyle = lipgloss.NewStyle().Padding(0, 1)
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// stat renders "label value" with the dashboard colors.
func stat(label string, value any) string {
	return labelStyle.Render(label) + " " + valueStyle.Render(fmt.Sprint(value))
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(dimStyle).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 3, 64)
}

func renderPatterns(w io.Writer, patterns []pattern.Pattern) {
	if len(patterns) == 0 {
		fmt.Fprintln(w, dimStyle.Render("no matching patterns"))
		return
	}
	t := newTable("SCORE", "CONF", "FREQ", "SCOPE", "TYPE", "ID", "TEXT")
	for i := range patterns {
		p := &patterns[i]
		t.Row(
			formatFloat(p.Score),
			formatFloat(p.Confidence),
			strconv.Itoa(p.Frequency),
			string(p.Scope),
			string(p.Type),
			p.ID,
			truncate(p.Text(), maxTextWidth),
		)
	}
	fmt.Fprintln(w, t.String())
	fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("%d pattern(s)", len(patterns))))
}

func renderReport(w io.Writer, r *evolution.Report) {
	title := sectionStyle.Render(string(r.Scope))
	if r.Skipped {
		fmt.Fprintf(w, "%s %s\n", title, dimStyle.Render("empty, skipped"))
		return
	}
	fmt.Fprintf(w, "%s %s\n", title, dimStyle.Render("run "+r.RunID))
	fmt.Fprintf(w, "  %s  %s  %s  %s  %s  %s  %s\n",
		stat("loaded", r.Loaded),
		stat("merged", r.Merged),
		stat("clusters", r.Clusters),
		stat("evicted", r.Evicted),
		stat("kept", r.Kept),
		stat("protected", r.Protected),
		dimStyle.Render(r.Duration.Round(time.Millisecond).String()),
	)
	if r.ClustersDropped > 0 {
		fmt.Fprintf(w, "  %s\n", warningStyle.Render(fmt.Sprintf("%d cluster(s) dropped over capacity", r.ClustersDropped)))
	}
	if r.OverCapacity {
		fmt.Fprintf(w, "  %s\n", warningStyle.Render("over capacity: protected patterns exceed the limit"))
	}
}

func renderPreview(w io.Writer, r *eviction.Result) {
	fmt.Fprintf(w, "%s  %s  %s\n",
		sectionStyle.Render(string(r.Scope)),
		stat("patterns", r.Total),
		stat("capacity", r.Capacity),
	)
	if len(r.Evicted) == 0 {
		fmt.Fprintln(w, healthyStyle.Render("nothing would be evicted"))
	} else {
		fmt.Fprintln(w, errorStyle.Render(fmt.Sprintf("%d pattern(s) would be evicted", len(r.Evicted))))
		renderPatterns(w, r.Evicted)
	}

	if len(r.Protected) > 0 {
		ids := make([]string, 0, len(r.Protected))
		for id := range r.Protected {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		fmt.Fprintln(w, labelStyle.Render("protected:"))
		for _, id := range ids {
			fmt.Fprintf(w, "  %s %s\n", id, dimStyle.Render(string(r.Protected[id])))
		}
	}
	if r.OverCapacity {
		fmt.Fprintln(w, warningStyle.Render("over capacity: protected patterns exceed the limit"))
	}
}

func renderObservation(w io.Writer, r *engine.ObservationResult) {
	fmt.Fprintf(w, "%s %s  %s  %s\n",
		sectionStyle.Render(string(r.Scope)),
		dimStyle.Render("session "+r.SessionID),
		stat("created", len(r.Created)),
		stat("updated", len(r.Updated)),
	)
	for _, id := range r.Created {
		fmt.Fprintf(w, "  %s %s\n", healthyStyle.Render("+"), id)
	}
	for _, id := range r.Updated {
		fmt.Fprintf(w, "  %s %s\n", labelStyle.Render("~"), id)
	}
}

func renderSessions(w io.Writer, sessions []pattern.SessionSummary) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, dimStyle.Render("no recorded sessions"))
		return
	}
	t := newTable("SESSION", "SCOPE", "RECORDED", "CREATED", "UPDATED")
	for _, s := range sessions {
		t.Row(
			s.SessionID,
			string(s.Scope),
			s.RecordedAt.Local().Format(time.DateTime),
			strconv.Itoa(len(s.Created)),
			strconv.Itoa(len(s.Updated)),
		)
	}
	fmt.Fprintln(w, t.String())
}
