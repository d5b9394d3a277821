package scoring

import (
	"math"
	"time"

	"github.com/fyrsmithlabs/patternd/internal/pattern"
)

const (
	// frequencyWeight and recencyWeight split confidence between how often
	// and how recently a pattern was seen.
	frequencyWeight = 0.7
	recencyWeight   = 0.3

	// frequencySaturation is the observation count at which the frequency
	// component stops growing.
	frequencySaturation = 10.0
)

// recencyBucket maps days since last observation to a step value.
func recencyBucket(ageDays float64) float64 {
	switch {
	case ageDays < 7:
		return 1.0
	case ageDays < 30:
		return 0.8
	case ageDays < 90:
		return 0.5
	default:
		return 0.3
	}
}

// Confidence returns how trustworthy a pattern is, in [0,1].
//
//	confidence = 0.7 * min(frequency/10, 1) + 0.3 * recencyBucket(age)
func Confidence(p *pattern.Pattern, now time.Time) float64 {
	freq := math.Min(float64(max(p.Frequency, 0))/frequencySaturation, 1)
	c := frequencyWeight*freq + recencyWeight*recencyBucket(AgeDays(p.LastSeen, now))
	return clampUnit(c)
}

func clampUnit(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
