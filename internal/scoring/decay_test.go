package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fyrsmithlabs/patternd/internal/config"
	"github.com/fyrsmithlabs/patternd/internal/pattern"
)

func decayConfig(alg config.DecayAlgorithm) config.DecayConfig {
	cfg := config.DefaultEngine().Decay
	cfg.Algorithm = alg
	return cfg
}

func TestDecay_Exponential(t *testing.T) {
	cfg := decayConfig(config.DecayExponential)
	p := &pattern.Pattern{Frequency: 4, SuccessRate: 0.5, LastSeen: daysAgo(90)}
	assert.InDelta(t, 4*0.5*0.5, Decay(p, refNow, cfg), 1e-9)
}

func TestDecay_Linear(t *testing.T) {
	cfg := decayConfig(config.DecayLinear)
	p := &pattern.Pattern{Frequency: 2, SuccessRate: 1, LastSeen: daysAgo(90)}
	assert.InDelta(t, 1.0, Decay(p, refNow, cfg), 1e-9)

	p.LastSeen = daysAgo(500)
	assert.Equal(t, 0.0, Decay(p, refNow, cfg))
}

func TestDecay_Hybrid(t *testing.T) {
	cfg := decayConfig(config.DecayHybrid)
	p := &pattern.Pattern{Frequency: 3, SuccessRate: 1, LastSeen: refNow}
	want := 0.5*1 + 0.3*math.Log2(4) + 0.2*1
	assert.InDelta(t, want, Decay(p, refNow, cfg), 1e-9)
}

func TestDecay_DegenerateConfig(t *testing.T) {
	p := &pattern.Pattern{Frequency: 3, SuccessRate: 1, LastSeen: refNow}

	cfg := decayConfig(config.DecayHybrid)
	cfg.HalfLifeDays = 0
	assert.Equal(t, 0.0, Decay(p, refNow, cfg))

	cfg.HalfLifeDays = -5
	assert.Equal(t, 0.0, Decay(p, refNow, cfg))

	assert.Equal(t, 0.0, Decay(p, refNow, decayConfig("cubic")))
}

func TestDecay_Monotonic(t *testing.T) {
	for _, alg := range []config.DecayAlgorithm{config.DecayExponential, config.DecayLinear, config.DecayHybrid} {
		t.Run(string(alg), func(t *testing.T) {
			cfg := decayConfig(alg)

			// Non-increasing in age.
			prev := math.Inf(1)
			for _, age := range []float64{0, 1, 10, 45, 90, 180, 365} {
				s := Decay(&pattern.Pattern{Frequency: 3, SuccessRate: 0.8, LastSeen: daysAgo(age)}, refNow, cfg)
				assert.LessOrEqual(t, s, prev)
				assert.GreaterOrEqual(t, s, 0.0)
				prev = s
			}

			// Non-decreasing in frequency.
			prev = math.Inf(-1)
			for _, freq := range []int{1, 2, 5, 20} {
				s := Decay(&pattern.Pattern{Frequency: freq, SuccessRate: 0.8, LastSeen: daysAgo(10)}, refNow, cfg)
				assert.GreaterOrEqual(t, s, prev)
				prev = s
			}

			// Non-decreasing in success rate.
			prev = math.Inf(-1)
			for _, rate := range []float64{0, 0.25, 0.5, 1} {
				s := Decay(&pattern.Pattern{Frequency: 3, SuccessRate: rate, LastSeen: daysAgo(10)}, refNow, cfg)
				assert.GreaterOrEqual(t, s, prev)
				prev = s
			}
		})
	}
}

func TestDecay_ExponentialFavorsRecentOverStaleFrequency(t *testing.T) {
	cfg := decayConfig(config.DecayExponential)
	old := &pattern.Pattern{Frequency: 10, SuccessRate: 1, LastSeen: daysAgo(180)}
	fresh := &pattern.Pattern{Frequency: 3, SuccessRate: 1, LastSeen: refNow}
	assert.InDelta(t, 2.5, Decay(old, refNow, cfg), 1e-9)
	assert.Greater(t, Decay(fresh, refNow, cfg), Decay(old, refNow, cfg))
}

func TestRefresh(t *testing.T) {
	p := &pattern.Pattern{Frequency: 10, SuccessRate: 1, LastSeen: refNow}
	Refresh(p, refNow, decayConfig(config.DecayHybrid))
	assert.InDelta(t, 1.0, p.Confidence, 1e-9)
	assert.Greater(t, p.Score, 0.0)
}
