// Package scoring computes the derived confidence and decay scores of a
// pattern. Both are pure functions of the pattern's raw metrics, the
// engine configuration and an explicit reference time, so the same inputs
// always produce the same score.
package scoring
