// Package cluster groups related patterns of one scope by embedding
// similarity and maintains the derived fields of each cluster.
package cluster

import (
	"cmp"
	"slices"

	"github.com/fyrsmithlabs/patternd/internal/pattern"
	"github.com/fyrsmithlabs/patternd/internal/similarity"
)

// Result is the outcome of one clustering pass.
type Result struct {
	// Patterns are copies of the input with ClusterID set or cleared.
	Patterns []pattern.Pattern
	Clusters []pattern.Cluster

	// Dropped counts clusters discarded to honor the cluster cap.
	Dropped int
}

// Assign groups patterns first-fit: each pattern with an embedding joins
// the first existing cluster whose average similarity to its members
// reaches threshold, otherwise it starts a new cluster. Patterns without an
// embedding stay unclustered. When more than maxClusters clusters form, the
// largest are kept (ties by average confidence, then ID) and members of the
// rest are left unclustered. A maxClusters of zero disables the cap.
//
// The result depends only on input order and contents.
func Assign(scope pattern.Scope, patterns []pattern.Pattern, threshold float64, maxClusters int) *Result {
	out := make([]pattern.Pattern, len(patterns))
	for i := range patterns {
		out[i] = patterns[i].Clone()
		out[i].ClusterID = nil
	}

	var groups [][]int
	for i := range out {
		if !out[i].HasEmbedding() {
			continue
		}
		placed := false
		for g, members := range groups {
			if averageSimilarity(out, members, out[i].Embedding) >= threshold {
				groups[g] = append(groups[g], i)
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, []int{i})
		}
	}

	clusters := make([]pattern.Cluster, 0, len(groups))
	for _, members := range groups {
		clusters = append(clusters, build(scope, out, members))
	}

	dropped := 0
	if maxClusters > 0 && len(clusters) > maxClusters {
		dropped = len(clusters) - maxClusters
		clusters = keepLargest(clusters, maxClusters)
	}

	link(out, clusters)
	return &Result{Patterns: out, Clusters: clusters, Dropped: dropped}
}

// Prune drops members that no longer exist in patterns, discards emptied
// clusters, recomputes every derived field and re-links the survivors.
// Patterns are updated in place.
func Prune(scope pattern.Scope, clusters []pattern.Cluster, patterns []pattern.Pattern) []pattern.Cluster {
	pos := make(map[string]int, len(patterns))
	for i := range patterns {
		pos[patterns[i].ID] = i
	}

	out := make([]pattern.Cluster, 0, len(clusters))
	for _, c := range clusters {
		var members []int
		for _, id := range c.Members {
			if i, ok := pos[id]; ok {
				members = append(members, i)
			}
		}
		if len(members) == 0 {
			continue
		}
		out = append(out, build(scope, patterns, members))
	}

	for i := range patterns {
		patterns[i].ClusterID = nil
	}
	link(patterns, out)
	return out
}

// Representative returns the member of c closest to its centroid, breaking
// ties by higher score and then smaller ID. It returns false when no
// member can be found in patterns.
func Representative(c *pattern.Cluster, patterns map[string]*pattern.Pattern) (string, bool) {
	var (
		bestID    string
		bestSim   float64
		bestScore float64
		found     bool
	)
	for _, id := range c.Members {
		p, ok := patterns[id]
		if !ok {
			continue
		}
		sim := similarity.Cosine(p.Embedding, c.Centroid)
		better := !found ||
			sim > bestSim ||
			(sim == bestSim && p.Score > bestScore) ||
			(sim == bestSim && p.Score == bestScore && id < bestID)
		if better {
			bestID, bestSim, bestScore, found = id, sim, p.Score, true
		}
	}
	return bestID, found
}

func averageSimilarity(patterns []pattern.Pattern, members []int, vec []float64) float64 {
	var sum float64
	for _, m := range members {
		sum += similarity.Cosine(patterns[m].Embedding, vec)
	}
	return sum / float64(len(members))
}

// build derives the ID, sorted membership, centroid and average confidence.
func build(scope pattern.Scope, patterns []pattern.Pattern, members []int) pattern.Cluster {
	ids := make([]string, 0, len(members))
	vectors := make([][]float64, 0, len(members))
	var confidence float64
	for _, m := range members {
		p := &patterns[m]
		ids = append(ids, p.ID)
		if p.HasEmbedding() {
			vectors = append(vectors, p.Embedding)
		}
		confidence += p.Confidence
	}
	slices.Sort(ids)

	return pattern.Cluster{
		ID:            pattern.ClusterID(ids),
		Scope:         scope,
		Members:       ids,
		Centroid:      similarity.Centroid(vectors),
		AvgConfidence: confidence / float64(len(members)),
	}
}

// keepLargest keeps n clusters ranked by size, average confidence and ID,
// preserving their original order.
func keepLargest(clusters []pattern.Cluster, n int) []pattern.Cluster {
	ranked := slices.Clone(clusters)
	slices.SortStableFunc(ranked, func(a, b pattern.Cluster) int {
		if c := cmp.Compare(len(b.Members), len(a.Members)); c != 0 {
			return c
		}
		if c := cmp.Compare(b.AvgConfidence, a.AvgConfidence); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	keep := make(map[string]struct{}, n)
	for _, c := range ranked[:n] {
		keep[c.ID] = struct{}{}
	}
	return slices.DeleteFunc(slices.Clone(clusters), func(c pattern.Cluster) bool {
		_, ok := keep[c.ID]
		return !ok
	})
}

func link(patterns []pattern.Pattern, clusters []pattern.Cluster) {
	pos := make(map[string]int, len(patterns))
	for i := range patterns {
		pos[patterns[i].ID] = i
	}
	for _, c := range clusters {
		for _, id := range c.Members {
			if i, ok := pos[id]; ok {
				patterns[i].SetCluster(c.ID)
			}
		}
	}
}
