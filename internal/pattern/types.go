package pattern

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Common errors for pattern records.
var (
	ErrInvalidScope   = errors.New("invalid scope")
	ErrInvalidType    = errors.New("invalid pattern type")
	ErrEmptyContent   = errors.New("pattern has no text content")
	ErrInvalidPattern = errors.New("invalid pattern")
)

// MaxExamples bounds the number of example session IDs kept per pattern.
const MaxExamples = 5

// Scope is one lifecycle phase of the recurring workflow.
type Scope string

const (
	ScopeResearch  Scope = "research"
	ScopePlan      Scope = "plan"
	ScopeImplement Scope = "implement"
	ScopeReview    Scope = "review"
	ScopeRelease   Scope = "release"
)

// Scopes returns every scope in processing order.
func Scopes() []Scope {
	return []Scope{ScopeResearch, ScopePlan, ScopeImplement, ScopeReview, ScopeRelease}
}

// Valid reports whether s is a known scope.
func (s Scope) Valid() bool {
	return slices.Contains(Scopes(), s)
}

// ParseScope converts a string into a Scope.
func ParseScope(s string) (Scope, error) {
	scope := Scope(strings.ToLower(strings.TrimSpace(s)))
	if !scope.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidScope, s)
	}
	return scope, nil
}

// Type classifies what kind of knowledge a pattern captures.
type Type string

const (
	TypeSequentialDependency Type = "sequential-dependency"
	TypeParallelSuccess      Type = "parallel-success"
	TypeAccomplishment       Type = "accomplishment"
	TypeRisk                 Type = "risk"
	TypeDecision             Type = "decision"
	TypeApproach             Type = "approach"
	TypeToolUsage            Type = "tool-usage"
	TypeAntiPattern          Type = "anti-pattern"
)

// Types returns every pattern type in report order.
func Types() []Type {
	return []Type{
		TypeSequentialDependency,
		TypeParallelSuccess,
		TypeAccomplishment,
		TypeRisk,
		TypeDecision,
		TypeApproach,
		TypeToolUsage,
		TypeAntiPattern,
	}
}

// Valid reports whether t is a known pattern type.
func (t Type) Valid() bool {
	return slices.Contains(Types(), t)
}

// ParseType converts a string into a Type.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
	return t, nil
}

// Pattern is the atomic unit of learned knowledge.
//
// Confidence, Score and Embedding are caches. They are recomputed by the
// scorers and the similarity engine and must never be treated as inputs.
type Pattern struct {
	// ID is derived from scope, type and normalized text.
	ID string `json:"id"`

	// SemanticHash fingerprints the typed, normalized text for exact duplicate detection.
	SemanticHash string `json:"semanticHash"`

	Scope Scope `json:"scope"`
	Type  Type  `json:"type"`

	// ClusterID is a weak back-reference to the cluster this pattern belongs to.
	ClusterID *string `json:"clusterId"`

	Name        string `json:"name,omitempty"`
	Problem     string `json:"problem,omitempty"`
	Solution    string `json:"solution,omitempty"`
	Content     string `json:"content,omitempty"`
	Description string `json:"description,omitempty"`

	Tags []string `json:"tags,omitempty"`

	// Examples lists session IDs where the pattern was observed, newest last.
	Examples []string `json:"examples,omitempty"`

	Frequency   int     `json:"frequency"`
	SuccessRate float64 `json:"successRate"`
	Confidence  float64 `json:"confidence"`

	// Score is the decay-adjusted vitality score.
	Score float64 `json:"score"`

	FirstSeen time.Time `json:"firstSeen"`
	LastSeen  time.Time `json:"lastSeen"`

	// Embedding is a fixed-width vector used only for similarity.
	Embedding []float64 `json:"embedding,omitempty"`
}

// Text joins the non-empty text fields in a fixed order.
func (p *Pattern) Text() string {
	return joinText(p.Name, p.Problem, p.Solution, p.Content, p.Description)
}

// Title returns a short human-readable label for the pattern.
func (p *Pattern) Title() string {
	if p.Name != "" {
		return p.Name
	}
	text := p.Text()
	if runes := []rune(text); len(runes) > titleRunes {
		return strings.TrimSpace(string(runes[:titleRunes])) + "..."
	}
	return text
}

// titleRunes is the label length Title cuts text to.
const titleRunes = 60

// HasEmbedding reports whether the pattern carries a usable embedding.
func (p *Pattern) HasEmbedding() bool {
	return len(p.Embedding) > 0
}

// Validate checks the structural invariants of a stored pattern.
func (p *Pattern) Validate() error {
	switch {
	case p.ID == "":
		return fmt.Errorf("%w: empty id", ErrInvalidPattern)
	case !p.Scope.Valid():
		return fmt.Errorf("%w: %q", ErrInvalidScope, p.Scope)
	case !p.Type.Valid():
		return fmt.Errorf("%w: %q", ErrInvalidType, p.Type)
	case p.Text() == "":
		return ErrEmptyContent
	case p.Frequency < 1:
		return fmt.Errorf("%w: frequency %d < 1", ErrInvalidPattern, p.Frequency)
	case p.SuccessRate < 0 || p.SuccessRate > 1:
		return fmt.Errorf("%w: success rate %v out of range", ErrInvalidPattern, p.SuccessRate)
	case p.LastSeen.Before(p.FirstSeen):
		return fmt.Errorf("%w: lastSeen before firstSeen", ErrInvalidPattern)
	}
	return nil
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (p *Pattern) Clone() Pattern {
	c := *p
	if p.ClusterID != nil {
		id := *p.ClusterID
		c.ClusterID = &id
	}
	c.Tags = slices.Clone(p.Tags)
	c.Examples = slices.Clone(p.Examples)
	c.Embedding = slices.Clone(p.Embedding)
	return c
}

// SetCluster points the pattern at a cluster, or clears it when id is empty.
func (p *Pattern) SetCluster(id string) {
	if id == "" {
		p.ClusterID = nil
		return
	}
	p.ClusterID = &id
}

// AddExample records a session ID, keeping the newest MaxExamples entries.
func (p *Pattern) AddExample(sessionID string) {
	if sessionID == "" {
		return
	}
	if i := slices.Index(p.Examples, sessionID); i >= 0 {
		p.Examples = slices.Delete(p.Examples, i, i+1)
	}
	p.Examples = append(p.Examples, sessionID)
	if len(p.Examples) > MaxExamples {
		p.Examples = slices.Clone(p.Examples[len(p.Examples)-MaxExamples:])
	}
}

// MergeExamples returns the deduplicated union of a then b, capped at MaxExamples.
func MergeExamples(a, b []string) []string {
	out := make([]string, 0, min(len(a)+len(b), MaxExamples))
	for _, id := range slices.Concat(a, b) {
		if len(out) == MaxExamples {
			break
		}
		if id == "" || slices.Contains(out, id) {
			continue
		}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// MergeTags returns the sorted, deduplicated union of tag sets.
func MergeTags(sets ...[]string) []string {
	var out []string
	for _, set := range sets {
		for _, tag := range set {
			tag = strings.ToLower(strings.TrimSpace(tag))
			if tag != "" {
				out = append(out, tag)
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Cluster is a group of semantically related patterns within one scope.
type Cluster struct {
	// ID is derived from the sorted member ID set.
	ID    string `json:"id"`
	Scope Scope  `json:"scope"`

	// Members holds pattern IDs, sorted.
	Members []string `json:"members"`

	// Centroid is the mean of member embeddings.
	Centroid []float64 `json:"centroid,omitempty"`

	// AvgConfidence is the mean of member confidences.
	AvgConfidence float64 `json:"avgConfidence"`
}

// SessionSummary records which patterns one observation run touched.
// It exists for traceability only and never feeds scoring.
type SessionSummary struct {
	SessionID  string    `json:"sessionId"`
	Scope      Scope     `json:"scope"`
	RecordedAt time.Time `json:"recordedAt"`
	Created    []string  `json:"created,omitempty"`
	Updated    []string  `json:"updated,omitempty"`
}

func joinText(parts ...string) string {
	var b strings.Builder
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(part)
	}
	return b.String()
}
