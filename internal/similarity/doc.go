// Package similarity turns pattern text into vectors and compares them.
//
// Two vector spaces exist. Embed produces a fixed-width hashed
// term-frequency vector that is stored on each pattern and used for
// clustering. Vectorizer produces TF-IDF vectors over a vocabulary built
// from one corpus and is used for deduplication within a single run.
// Both spaces are compared with Cosine, which is clamped to [0,1].
package similarity
