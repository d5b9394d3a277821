package pattern

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strings"
)

const hashLen = 16

// NormalizeText lower-cases text and collapses whitespace.
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// SemanticHash fingerprints the typed, normalized text of a pattern.
// Two observations with the same type and the same text (ignoring case and
// whitespace) share a hash.
func SemanticHash(t Type, text string) string {
	return shortHash(string(t) + "\n" + NormalizeText(text))
}

// PatternID derives the stable pattern identifier for scope, type and text.
func PatternID(scope Scope, t Type, text string) string {
	return "pat_" + shortHash(string(scope)+"|"+string(t)+"|"+NormalizeText(text))
}

// ClusterID derives a cluster identifier from its member IDs.
// Member order does not matter.
func ClusterID(memberIDs []string) string {
	sorted := slices.Clone(memberIDs)
	slices.Sort(sorted)
	return "clu_" + shortHash(strings.Join(sorted, ","))
}

func shortHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:hashLen]
}
