// Package dedup merges near-duplicate patterns within a scope.
package dedup

import (
	"github.com/fyrsmithlabs/patternd/internal/pattern"
	"github.com/fyrsmithlabs/patternd/internal/similarity"
)

// Merge records that one pattern was absorbed into another.
type Merge struct {
	Into       string  `json:"into"`
	From       string  `json:"from"`
	Similarity float64 `json:"similarity"`
	ExactMatch bool    `json:"exactMatch"`
}

// Result is the outcome of one deduplication pass.
type Result struct {
	Patterns []pattern.Pattern
	Merges   []Merge
}

// Aliases maps each absorbed pattern ID to the surviving ID that finally
// holds it. Chains across passes are resolved.
func (r *Result) Aliases() map[string]string {
	aliases := make(map[string]string, len(r.Merges))
	for _, m := range r.Merges {
		aliases[m.From] = m.Into
	}
	for from, into := range aliases {
		for seen := 0; seen < len(aliases); seen++ {
			next, ok := aliases[into]
			if !ok {
				break
			}
			into = next
		}
		aliases[from] = into
	}
	return aliases
}

// Deduplicate merges each pattern into the first earlier representative of
// the same scope and type whose TF-IDF similarity reaches threshold or
// whose semantic hash is identical. Input patterns are not modified.
//
// Removing absorbed documents changes the corpus IDF, which can bring two
// survivors over the threshold, so passes repeat until one merges nothing.
// Feeding the result back in therefore merges nothing.
//
// Merging sums frequencies, keeps the maximum confidence, score and
// lastSeen, the minimum firstSeen, unions examples and tags, and takes the
// frequency-weighted mean success rate.
func Deduplicate(patterns []pattern.Pattern, threshold float64) *Result {
	res := firstFit(patterns, threshold)
	for merged := len(res.Merges); merged > 0; {
		next := firstFit(res.Patterns, threshold)
		merged = len(next.Merges)
		res.Patterns = next.Patterns
		res.Merges = append(res.Merges, next.Merges...)
	}
	return res
}

// firstFit is one deduplication pass in input order.
func firstFit(patterns []pattern.Pattern, threshold float64) *Result {
	texts := make([]string, len(patterns))
	for i := range patterns {
		texts[i] = patterns[i].Text()
	}

	vectorizer := similarity.NewVectorizer()
	vectorizer.BuildVocabulary(texts)

	vectors := make([][]float64, len(patterns))
	for i, text := range texts {
		// The vocabulary was built above, so Vectorize cannot fail.
		vectors[i], _ = vectorizer.Vectorize(text)
	}

	res := &Result{Patterns: make([]pattern.Pattern, 0, len(patterns))}
	repVectors := make([][]float64, 0, len(patterns))

	for i := range patterns {
		p := &patterns[i]
		merged := false
		for j := range res.Patterns {
			rep := &res.Patterns[j]
			if rep.Scope != p.Scope || rep.Type != p.Type {
				continue
			}
			exact := rep.SemanticHash == p.SemanticHash
			sim := similarity.Cosine(repVectors[j], vectors[i])
			if !exact && sim < threshold {
				continue
			}
			absorb(rep, p)
			res.Merges = append(res.Merges, Merge{Into: rep.ID, From: p.ID, Similarity: sim, ExactMatch: exact})
			merged = true
			break
		}
		if !merged {
			res.Patterns = append(res.Patterns, p.Clone())
			repVectors = append(repVectors, vectors[i])
		}
	}
	return res
}

// absorb folds src into dst.
func absorb(dst *pattern.Pattern, src *pattern.Pattern) {
	total := dst.Frequency + src.Frequency
	if total > 0 {
		dst.SuccessRate = (dst.SuccessRate*float64(dst.Frequency) + src.SuccessRate*float64(src.Frequency)) / float64(total)
	}
	dst.Frequency = total

	dst.Confidence = max(dst.Confidence, src.Confidence)
	dst.Score = max(dst.Score, src.Score)
	if src.LastSeen.After(dst.LastSeen) {
		dst.LastSeen = src.LastSeen
	}
	if src.FirstSeen.Before(dst.FirstSeen) {
		dst.FirstSeen = src.FirstSeen
	}

	dst.Examples = pattern.MergeExamples(dst.Examples, src.Examples)
	dst.Tags = pattern.MergeTags(dst.Tags, src.Tags)
}
