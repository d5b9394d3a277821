package pattern

import (
	"fmt"
	"time"
)

// Fragment is one extracted observation handed to the engine by the
// extraction layer. Success is optional; nil means the outcome is unknown.
type Fragment struct {
	Type        Type     `json:"type"`
	Name        string   `json:"name,omitempty"`
	Problem     string   `json:"problem,omitempty"`
	Solution    string   `json:"solution,omitempty"`
	Content     string   `json:"content,omitempty"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Success     *bool    `json:"success,omitempty"`
}

// Text joins the fragment text fields in the same order as Pattern.Text.
func (f *Fragment) Text() string {
	return joinText(f.Name, f.Problem, f.Solution, f.Content, f.Description)
}

// Validate checks that the fragment can become a pattern.
func (f *Fragment) Validate() error {
	if !f.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, f.Type)
	}
	if f.Text() == "" {
		return ErrEmptyContent
	}
	return nil
}

// NewPattern creates a first-observation pattern from a fragment.
// Derived caches (confidence, score, embedding) are left for the scorers.
func NewPattern(scope Scope, f Fragment, sessionID string, now time.Time) (Pattern, error) {
	if !scope.Valid() {
		return Pattern{}, fmt.Errorf("%w: %q", ErrInvalidScope, scope)
	}
	if err := f.Validate(); err != nil {
		return Pattern{}, err
	}

	text := f.Text()
	successRate := 1.0
	if f.Success != nil && !*f.Success {
		successRate = 0
	}

	p := Pattern{
		ID:           PatternID(scope, f.Type, text),
		SemanticHash: SemanticHash(f.Type, text),
		Scope:        scope,
		Type:         f.Type,
		Name:         f.Name,
		Problem:      f.Problem,
		Solution:     f.Solution,
		Content:      f.Content,
		Description:  f.Description,
		Tags:         MergeTags(f.Tags),
		Frequency:    1,
		SuccessRate:  successRate,
		FirstSeen:    now,
		LastSeen:     now,
	}
	p.AddExample(sessionID)
	return p, nil
}

// Observe folds a repeat observation into an existing pattern: frequency
// increments, lastSeen moves forward, the session is appended to examples
// and tags are merged. A known outcome updates the success rate as a
// running mean.
func (p *Pattern) Observe(f Fragment, sessionID string, now time.Time) {
	p.Frequency++
	if now.After(p.LastSeen) {
		p.LastSeen = now
	}
	p.AddExample(sessionID)
	p.Tags = MergeTags(p.Tags, f.Tags)
	if f.Success != nil {
		outcome := 0.0
		if *f.Success {
			outcome = 1
		}
		n := float64(p.Frequency)
		p.SuccessRate = (p.SuccessRate*(n-1) + outcome) / n
	}
}
