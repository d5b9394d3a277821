// Package eviction enforces the per-scope pattern capacity.
//
// When a scope holds more patterns than its capacity, the lowest-scoring
// unprotected patterns are removed until the scope fits. A pattern is
// protected when any of these hold:
//
//   - its frequency is at least the configured protect frequency
//   - it was seen within the configured number of recent days
//   - it is the representative of a cluster with two or more members
//   - it has a perfect success rate across three or more observations
//
// Protected patterns are never evicted. If protection alone keeps a scope
// above capacity, the scope stays over capacity and the result says so.
package eviction

import (
	"cmp"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/patternd/internal/cluster"
	"github.com/fyrsmithlabs/patternd/internal/config"
	"github.com/fyrsmithlabs/patternd/internal/pattern"
	"github.com/fyrsmithlabs/patternd/internal/scoring"
)

// provenSuccessMinFrequency is the observation count a perfect success
// rate needs before it protects a pattern.
const provenSuccessMinFrequency = 3

// Reason explains why a pattern is protected.
type Reason string

const (
	ReasonFrequency      Reason = "frequency"
	ReasonRecent         Reason = "recent"
	ReasonRepresentative Reason = "cluster-representative"
	ReasonProvenSuccess  Reason = "proven-success"
)

// Policy holds the capacity and protection settings for one run.
type Policy struct {
	MaxPatterns                   int
	ProtectFrequency              int
	ProtectRecentDays             float64
	ProtectClusterRepresentatives bool
}

// PolicyFrom extracts the eviction policy from engine config.
func PolicyFrom(cfg config.Engine) Policy {
	return Policy{
		MaxPatterns:                   cfg.Capacity.MaxPatternsPerScope,
		ProtectFrequency:              cfg.Eviction.ProtectFrequency,
		ProtectRecentDays:             cfg.Eviction.ProtectRecentDays,
		ProtectClusterRepresentatives: cfg.Eviction.ProtectClusterRepresentatives,
	}
}

// Result describes what eviction kept and removed.
type Result struct {
	Scope    pattern.Scope `json:"scope"`
	Capacity int           `json:"capacity"`
	Total    int           `json:"total"`

	// Kept holds surviving patterns in input order.
	Kept    []pattern.Pattern `json:"-"`
	Evicted []pattern.Pattern `json:"evicted"`

	// Protected maps protected pattern IDs to the first rule that applied.
	// It is only populated when the scope exceeded capacity.
	Protected map[string]Reason `json:"protected,omitempty"`

	// OverCapacity is set when protected patterns alone exceed capacity.
	OverCapacity bool `json:"overCapacity"`
}

// EvictedIDs returns the IDs of evicted patterns.
func (r *Result) EvictedIDs() []string {
	ids := make([]string, len(r.Evicted))
	for i := range r.Evicted {
		ids[i] = r.Evicted[i].ID
	}
	return ids
}

// Evictor applies a Policy.
type Evictor struct {
	policy Policy
	decay  config.DecayConfig
	logger *zap.Logger
}

// New creates an Evictor. A nil logger disables logging.
func New(policy Policy, decay config.DecayConfig, logger *zap.Logger) *Evictor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evictor{policy: policy, decay: decay, logger: logger}
}

// Evict returns which patterns survive the capacity limit. Inputs are not
// modified, so calling Evict doubles as a preview.
func (e *Evictor) Evict(scope pattern.Scope, patterns []pattern.Pattern, clusters []pattern.Cluster, now time.Time) *Result {
	res := &Result{
		Scope:    scope,
		Capacity: e.policy.MaxPatterns,
		Total:    len(patterns),
	}

	kept := make([]pattern.Pattern, len(patterns))
	for i := range patterns {
		kept[i] = patterns[i].Clone()
	}
	if len(kept) <= e.policy.MaxPatterns {
		res.Kept = kept
		return res
	}

	for i := range kept {
		kept[i].Score = scoring.Decay(&kept[i], now, e.decay)
	}

	representatives := e.representatives(kept, clusters)
	res.Protected = make(map[string]Reason)
	var candidates []int
	for i := range kept {
		if reason, ok := e.protect(&kept[i], representatives, now); ok {
			res.Protected[kept[i].ID] = reason
			continue
		}
		candidates = append(candidates, i)
	}

	slices.SortStableFunc(candidates, func(a, b int) int {
		pa, pb := &kept[a], &kept[b]
		if c := cmp.Compare(pa.Score, pb.Score); c != 0 {
			return c
		}
		if c := pa.LastSeen.Compare(pb.LastSeen); c != 0 {
			return c
		}
		return cmp.Compare(pa.ID, pb.ID)
	})

	excess := len(kept) - e.policy.MaxPatterns
	if excess > len(candidates) {
		res.OverCapacity = true
		e.logger.Warn("scope remains over capacity after eviction",
			zap.String("scope", string(scope)),
			zap.Int("capacity", e.policy.MaxPatterns),
			zap.Int("protected", len(res.Protected)),
			zap.Int("total", len(kept)))
		excess = len(candidates)
	}

	evict := make(map[int]struct{}, excess)
	for _, i := range candidates[:excess] {
		evict[i] = struct{}{}
		res.Evicted = append(res.Evicted, kept[i])
	}
	for i := range kept {
		if _, ok := evict[i]; !ok {
			res.Kept = append(res.Kept, kept[i])
		}
	}
	return res
}

func (e *Evictor) protect(p *pattern.Pattern, representatives map[string]struct{}, now time.Time) (Reason, bool) {
	if e.policy.ProtectFrequency > 0 && p.Frequency >= e.policy.ProtectFrequency {
		return ReasonFrequency, true
	}
	if e.policy.ProtectRecentDays > 0 && scoring.AgeDays(p.LastSeen, now) < e.policy.ProtectRecentDays {
		return ReasonRecent, true
	}
	if _, ok := representatives[p.ID]; ok {
		return ReasonRepresentative, true
	}
	if p.SuccessRate >= 1 && p.Frequency >= provenSuccessMinFrequency {
		return ReasonProvenSuccess, true
	}
	return "", false
}

// representatives finds the representative of every cluster with two or
// more members.
func (e *Evictor) representatives(patterns []pattern.Pattern, clusters []pattern.Cluster) map[string]struct{} {
	reps := make(map[string]struct{})
	if !e.policy.ProtectClusterRepresentatives {
		return reps
	}

	byID := make(map[string]*pattern.Pattern, len(patterns))
	for i := range patterns {
		byID[patterns[i].ID] = &patterns[i]
	}
	for i := range clusters {
		if len(clusters[i].Members) < 2 {
			continue
		}
		if id, ok := cluster.Representative(&clusters[i], byID); ok {
			reps[id] = struct{}{}
		}
	}
	return reps
}
