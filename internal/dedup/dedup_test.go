package dedup

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/patternd/internal/pattern"
)

var t0 = time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

func newPattern(t *testing.T, typ pattern.Type, text string, freq int, seen time.Time) pattern.Pattern {
	t.Helper()
	p, err := pattern.NewPattern(pattern.ScopeImplement, pattern.Fragment{Type: typ, Content: text}, "sess-"+text[:3], seen)
	require.NoError(t, err)
	p.Frequency = freq
	return p
}

// sharedText returns thirty shared words plus one distinguishing word.
func sharedText(tail string) string {
	words := make([]string, 0, 31)
	for i := 1; i <= 30; i++ {
		words = append(words, fmt.Sprintf("w%02d", i))
	}
	return strings.Join(append(words, tail), " ")
}

func TestDeduplicate_MergesNearDuplicates(t *testing.T) {
	a := newPattern(t, pattern.TypeApproach, sharedText("alpha"), 2, t0)
	a.SuccessRate = 1
	a.Confidence = 0.4
	a.Tags = []string{"ci"}

	b := newPattern(t, pattern.TypeApproach, sharedText("beta"), 3, t0.Add(48*time.Hour))
	b.FirstSeen = t0.Add(-24 * time.Hour)
	b.SuccessRate = 0.5
	b.Confidence = 0.6
	b.Tags = []string{"build"}

	res := Deduplicate([]pattern.Pattern{a, b}, 0.9)

	require.Len(t, res.Patterns, 1)
	require.Len(t, res.Merges, 1)
	merged := res.Patterns[0]

	assert.Equal(t, a.ID, merged.ID, "earlier pattern is the representative")
	assert.Equal(t, 5, merged.Frequency)
	assert.Equal(t, b.LastSeen, merged.LastSeen)
	assert.Equal(t, b.FirstSeen, merged.FirstSeen)
	assert.Equal(t, 0.6, merged.Confidence)
	assert.InDelta(t, (1*2+0.5*3)/5.0, merged.SuccessRate, 1e-9)
	assert.Equal(t, []string{"build", "ci"}, merged.Tags)
	assert.Equal(t, pattern.MergeExamples(a.Examples, b.Examples), merged.Examples)

	assert.Equal(t, Merge{Into: a.ID, From: b.ID, Similarity: res.Merges[0].Similarity}, res.Merges[0])
	assert.Greater(t, res.Merges[0].Similarity, 0.9)
	assert.Equal(t, map[string]string{b.ID: a.ID}, res.Aliases())
}

func TestDeduplicate_DoesNotMutateInput(t *testing.T) {
	a := newPattern(t, pattern.TypeApproach, sharedText("alpha"), 2, t0)
	b := newPattern(t, pattern.TypeApproach, sharedText("beta"), 3, t0)
	in := []pattern.Pattern{a, b}

	Deduplicate(in, 0.9)
	assert.Equal(t, 2, in[0].Frequency)
	assert.Equal(t, 3, in[1].Frequency)
}

func TestDeduplicate_RespectsTypeBoundary(t *testing.T) {
	a := newPattern(t, pattern.TypeApproach, "pin every dependency version", 1, t0)
	b := newPattern(t, pattern.TypeRisk, "pin every dependency version", 1, t0)

	res := Deduplicate([]pattern.Pattern{a, b}, 0.5)
	assert.Len(t, res.Patterns, 2)
	assert.Empty(t, res.Merges)
}

func TestDeduplicate_ExactHashMerges(t *testing.T) {
	a := newPattern(t, pattern.TypeDecision, "Use SQLite for local state", 1, t0)
	b := a.Clone()
	b.ID = "pat_copy"
	b.Frequency = 4

	// A threshold above 1 disables similarity merging, leaving only the hash path.
	res := Deduplicate([]pattern.Pattern{a, b}, 1.1)
	require.Len(t, res.Patterns, 1)
	assert.Equal(t, 5, res.Patterns[0].Frequency)
	assert.True(t, res.Merges[0].ExactMatch)
}

func TestDeduplicate_KeepsDistinctPatterns(t *testing.T) {
	in := []pattern.Pattern{
		newPattern(t, pattern.TypeApproach, "retry flaky integration tests", 1, t0),
		newPattern(t, pattern.TypeApproach, "document public api changes", 1, t0),
		newPattern(t, pattern.TypeApproach, "profile slow database queries", 1, t0),
	}

	res := Deduplicate(in, 0.9)
	assert.Len(t, res.Patterns, 3)
	assert.Empty(t, res.Merges)
	for i := range in {
		assert.Equal(t, in[i].ID, res.Patterns[i].ID, "input order is preserved")
	}
}

func TestDeduplicate_Idempotent(t *testing.T) {
	in := []pattern.Pattern{
		newPattern(t, pattern.TypeApproach, sharedText("alpha"), 1, t0),
		newPattern(t, pattern.TypeApproach, "document public api changes", 1, t0),
		newPattern(t, pattern.TypeApproach, sharedText("beta"), 1, t0),
	}

	first := Deduplicate(in, 0.9)
	require.Len(t, first.Patterns, 2)

	second := Deduplicate(first.Patterns, 0.9)
	assert.Empty(t, second.Merges)
	assert.Equal(t, first.Patterns, second.Patterns)
}

func TestDeduplicate_IdempotentOnRandomInputs(t *testing.T) {
	vocab := []string{"cache", "retry", "schema", "deploy", "review", "index", "queue", "token", "build", "lint"}
	rng := rand.New(rand.NewPCG(42, 7))

	for _, threshold := range []float64{0.9, 0.8, 0.6} {
		for trial := range 3000 {
			n := 3 + rng.IntN(4)
			in := make([]pattern.Pattern, 0, n)
			for range n {
				words := make([]string, 2+rng.IntN(5))
				for k := range words {
					words[k] = vocab[rng.IntN(len(vocab))]
				}
				p, err := pattern.NewPattern(pattern.ScopeImplement,
					pattern.Fragment{Type: pattern.TypeApproach, Content: strings.Join(words, " ")}, "sess-rand", t0)
				require.NoError(t, err)
				in = append(in, p)
			}

			first := Deduplicate(in, threshold)
			second := Deduplicate(first.Patterns, threshold)
			require.Empty(t, second.Merges, "threshold %v trial %d merged again", threshold, trial)
			require.Equal(t, first.Patterns, second.Patterns)
			require.Len(t, first.Merges, len(in)-len(first.Patterns))
		}
	}
}

func TestResult_AliasesResolveChains(t *testing.T) {
	res := &Result{Merges: []Merge{
		{Into: "pat_b", From: "pat_c"},
		{Into: "pat_a", From: "pat_d"},
		{Into: "pat_a", From: "pat_b"},
	}}

	assert.Equal(t, map[string]string{
		"pat_b": "pat_a",
		"pat_c": "pat_a",
		"pat_d": "pat_a",
	}, res.Aliases())
}

func TestDeduplicate_Empty(t *testing.T) {
	res := Deduplicate(nil, 0.9)
	assert.Empty(t, res.Patterns)
	assert.Empty(t, res.Merges)
}
