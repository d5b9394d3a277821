package scoring

import (
	"math"
	"time"

	"github.com/fyrsmithlabs/patternd/internal/config"
	"github.com/fyrsmithlabs/patternd/internal/pattern"
)

// Decay returns the decay-adjusted vitality score of p under cfg.
//
// The score is monotonically non-increasing in age and non-decreasing in
// frequency and success rate. A non-positive half-life or an unknown
// algorithm scores zero.
func Decay(p *pattern.Pattern, now time.Time, cfg config.DecayConfig) float64 {
	halfLife := cfg.HalfLifeDays
	if !(halfLife > 0) {
		return 0
	}

	age := AgeDays(p.LastSeen, now)
	freq := float64(max(p.Frequency, 0))
	success := clampUnit(p.SuccessRate)

	var score float64
	switch cfg.Algorithm {
	case config.DecayExponential:
		score = freq * math.Pow(0.5, age/halfLife) * success
	case config.DecayLinear:
		score = freq * math.Max(0, 1-age/(2*halfLife)) * success
	case config.DecayHybrid:
		w := cfg.Weights
		score = w.Recency*math.Pow(0.5, age/halfLife) +
			w.Frequency*math.Log2(freq+1) +
			w.SuccessRate*success
	default:
		return 0
	}

	if math.IsNaN(score) || score < 0 {
		return 0
	}
	return score
}

// Refresh recomputes the cached confidence and score of p in place.
func Refresh(p *pattern.Pattern, now time.Time, cfg config.DecayConfig) {
	p.Confidence = Confidence(p, now)
	p.Score = Decay(p, now, cfg)
}
