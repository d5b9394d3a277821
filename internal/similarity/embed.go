package similarity

import "github.com/cespare/xxhash/v2"

// Dimensions is the width of pattern embeddings.
const Dimensions = 100

// Embed returns a unit-length hashed term-frequency vector for text, or nil
// when no tokens survive tokenization.
func Embed(text string) []float64 {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}

	vec := make([]float64, Dimensions)
	for _, tok := range tokens {
		vec[xxhash.Sum64String(tok)%Dimensions]++
	}
	if !normalize(vec) {
		return nil
	}
	return vec
}
