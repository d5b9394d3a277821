package similarity

import (
	"errors"
	"math"
	"slices"
)

// ErrVocabularyNotBuilt is returned when vectorizing before BuildVocabulary.
var ErrVocabularyNotBuilt = errors.New("tfidf vocabulary not built")

// Vectorizer produces TF-IDF vectors over a fixed vocabulary.
// A Vectorizer is not safe for concurrent BuildVocabulary calls.
type Vectorizer struct {
	terms map[string]int
	idf   []float64
	built bool
}

// NewVectorizer returns a Vectorizer with no vocabulary.
func NewVectorizer() *Vectorizer {
	return &Vectorizer{}
}

// BuildVocabulary derives terms and inverse document frequencies from corpus.
// Term indices follow sorted term order so output is deterministic.
func (v *Vectorizer) BuildVocabulary(corpus []string) {
	df := make(map[string]int)
	for _, doc := range corpus {
		seen := make(map[string]struct{})
		for _, tok := range Tokenize(doc) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}

	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	slices.Sort(terms)

	n := float64(len(corpus))
	v.terms = make(map[string]int, len(terms))
	v.idf = make([]float64, len(terms))
	for i, term := range terms {
		v.terms[term] = i
		// Smoothed idf keeps terms shared by every document above zero.
		v.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}
	v.built = true
}

// VocabularySize returns the number of distinct terms.
func (v *Vectorizer) VocabularySize() int {
	return len(v.terms)
}

// Vectorize returns the unit-length TF-IDF vector for text. Terms outside
// the vocabulary are ignored; text with no known terms yields a zero vector.
func (v *Vectorizer) Vectorize(text string) ([]float64, error) {
	if !v.built {
		return nil, ErrVocabularyNotBuilt
	}

	vec := make([]float64, len(v.terms))
	for _, tok := range Tokenize(text) {
		if i, ok := v.terms[tok]; ok {
			vec[i]++
		}
	}
	for i := range vec {
		vec[i] *= v.idf[i]
	}
	normalize(vec)
	return vec, nil
}
