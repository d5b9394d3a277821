package similarity

import (
	"strings"
	"unicode"
)

// stopWords are dropped before vectorizing.
var stopWords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`
		a about above after again against all am an and any are as at
		be because been before being below between both but by
		can could did do does doing down during each few for from further
		had has have having he her here hers herself him himself his how
		i if in into is it its itself just me more most my myself
		no nor not now of off on once only or other our ours ourselves out over own
		same she should so some such than that the their theirs them themselves then
		there these they this those through to too under until up very
		was we were what when where which while who whom why will with would
		you your yours yourself yourselves`) {
		stopWords[w] = struct{}{}
	}
}

// IsStopWord reports whether w is filtered out during tokenization.
func IsStopWord(w string) bool {
	_, ok := stopWords[w]
	return ok
}

// Tokenize lower-cases text, strips punctuation and drops stop words.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := fields[:0]
	for _, f := range fields {
		if IsStopWord(f) {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}
