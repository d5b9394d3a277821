// Package query filters stored patterns and renders them as a markdown report.
package query

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/fyrsmithlabs/patternd/internal/pattern"
)

// ErrInvalidFilter is returned for filters that can never be satisfied.
var ErrInvalidFilter = errors.New("invalid query filter")

// Source provides read access to every scope's patterns.
type Source interface {
	LoadAll(ctx context.Context) (map[pattern.Scope][]pattern.Pattern, error)
}

// Filter selects patterns. Zero-valued fields do not filter.
type Filter struct {
	Scopes        []pattern.Scope `json:"scopes,omitempty"`
	Types         []pattern.Type  `json:"types,omitempty"`
	MinConfidence float64         `json:"minConfidence,omitempty"`
	MinScore      float64         `json:"minScore,omitempty"`

	// Tags must all be present on a matching pattern.
	Tags []string `json:"tags,omitempty"`

	// Text is a case-insensitive substring of the pattern text.
	Text string `json:"text,omitempty"`

	// Limit caps the number of results; zero means unlimited.
	Limit int `json:"limit,omitempty"`
}

// Validate checks that every scope and type in the filter is known.
func (f *Filter) Validate() error {
	for _, s := range f.Scopes {
		if !s.Valid() {
			return fmt.Errorf("%w: %w: %q", ErrInvalidFilter, pattern.ErrInvalidScope, s)
		}
	}
	for _, t := range f.Types {
		if !t.Valid() {
			return fmt.Errorf("%w: %w: %q", ErrInvalidFilter, pattern.ErrInvalidType, t)
		}
	}
	if f.MinConfidence < 0 || f.MinConfidence > 1 {
		return fmt.Errorf("%w: minConfidence %v out of range", ErrInvalidFilter, f.MinConfidence)
	}
	if f.Limit < 0 {
		return fmt.Errorf("%w: negative limit", ErrInvalidFilter)
	}
	return nil
}

// Match reports whether p satisfies the filter, ignoring Limit.
func (f *Filter) Match(p *pattern.Pattern) bool {
	if len(f.Scopes) > 0 && !slices.Contains(f.Scopes, p.Scope) {
		return false
	}
	if len(f.Types) > 0 && !slices.Contains(f.Types, p.Type) {
		return false
	}
	if p.Confidence < f.MinConfidence || p.Score < f.MinScore {
		return false
	}
	for _, tag := range f.Tags {
		if !slices.Contains(p.Tags, strings.ToLower(strings.TrimSpace(tag))) {
			return false
		}
	}
	if f.Text != "" && !strings.Contains(strings.ToLower(p.Text()), strings.ToLower(f.Text)) {
		return false
	}
	return true
}

// Apply returns the matching patterns across all scopes, ranked.
func Apply(all map[pattern.Scope][]pattern.Pattern, f Filter) []pattern.Pattern {
	var out []pattern.Pattern
	for _, scope := range pattern.Scopes() {
		for i := range all[scope] {
			if f.Match(&all[scope][i]) {
				out = append(out, all[scope][i])
			}
		}
	}
	Rank(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

// Rank sorts patterns by descending score, then ascending ID.
func Rank(patterns []pattern.Pattern) {
	slices.SortFunc(patterns, func(a, b pattern.Pattern) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// Service answers pattern queries against a Source.
type Service struct {
	src Source
}

// NewService creates a query Service.
func NewService(src Source) *Service {
	return &Service{src: src}
}

// Query returns patterns matching f.
func (s *Service) Query(ctx context.Context, f Filter) ([]pattern.Pattern, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	all, err := s.src.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	return Apply(all, f), nil
}
