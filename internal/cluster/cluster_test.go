package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/patternd/internal/pattern"
)

func vecPattern(id string, conf float64, vec ...float64) pattern.Pattern {
	return pattern.Pattern{ID: id, Scope: pattern.ScopeReview, Confidence: conf, Embedding: vec}
}

func TestAssign_GroupsSimilarPatterns(t *testing.T) {
	in := []pattern.Pattern{
		vecPattern("pat_a", 0.4, 1, 0, 0),
		vecPattern("pat_b", 0.6, 0.95, 0.05, 0),
		vecPattern("pat_c", 0.9, 0, 0, 1),
		{ID: "pat_noembed", Scope: pattern.ScopeReview},
	}

	res := Assign(pattern.ScopeReview, in, 0.75, 0)
	require.Len(t, res.Clusters, 2)

	first := res.Clusters[0]
	assert.Equal(t, []string{"pat_a", "pat_b"}, first.Members)
	assert.Equal(t, pattern.ClusterID([]string{"pat_b", "pat_a"}), first.ID)
	assert.Equal(t, pattern.ScopeReview, first.Scope)
	assert.InDelta(t, 0.5, first.AvgConfidence, 1e-9)
	assert.InDeltaSlice(t, []float64{0.975, 0.025, 0}, first.Centroid, 1e-9)

	assert.Equal(t, []string{"pat_c"}, res.Clusters[1].Members)

	require.NotNil(t, res.Patterns[0].ClusterID)
	assert.Equal(t, first.ID, *res.Patterns[0].ClusterID)
	assert.Equal(t, first.ID, *res.Patterns[1].ClusterID)
	assert.Equal(t, res.Clusters[1].ID, *res.Patterns[2].ClusterID)
	assert.Nil(t, res.Patterns[3].ClusterID, "patterns without embeddings stay unclustered")
}

func TestAssign_Deterministic(t *testing.T) {
	in := []pattern.Pattern{
		vecPattern("pat_a", 0.4, 1, 0),
		vecPattern("pat_b", 0.6, 0.9, 0.1),
		vecPattern("pat_c", 0.9, 0, 1),
	}
	assert.Equal(t, Assign(pattern.ScopeReview, in, 0.75, 0), Assign(pattern.ScopeReview, in, 0.75, 0))
}

func TestAssign_DoesNotMutateInput(t *testing.T) {
	id := "clu_old"
	in := []pattern.Pattern{vecPattern("pat_a", 0.4, 1, 0)}
	in[0].ClusterID = &id

	Assign(pattern.ScopeReview, in, 0.75, 0)
	assert.Equal(t, "clu_old", *in[0].ClusterID)
}

func TestAssign_UsesAverageSimilarity(t *testing.T) {
	// pat_c is close to pat_b but not to pat_a, so its average similarity
	// to the first cluster falls below the threshold.
	in := []pattern.Pattern{
		vecPattern("pat_a", 0, 1, 0),
		vecPattern("pat_b", 0, 0.8, 0.6),
		vecPattern("pat_c", 0, 0.3, 0.95),
	}
	res := Assign(pattern.ScopeReview, in, 0.75, 0)
	require.Len(t, res.Clusters, 2)
	assert.Equal(t, []string{"pat_a", "pat_b"}, res.Clusters[0].Members)
	assert.Equal(t, []string{"pat_c"}, res.Clusters[1].Members)
}

func TestAssign_MaxClusters(t *testing.T) {
	in := []pattern.Pattern{
		vecPattern("pat_a", 0.1, 1, 0, 0),
		vecPattern("pat_b", 0.2, 0, 1, 0),
		vecPattern("pat_c", 0.3, 0, 1, 0),
		vecPattern("pat_d", 0.9, 0, 0, 1),
	}
	res := Assign(pattern.ScopeReview, in, 0.75, 2)

	require.Len(t, res.Clusters, 2)
	assert.Equal(t, 1, res.Dropped)
	assert.Equal(t, []string{"pat_b", "pat_c"}, res.Clusters[0].Members)
	assert.Equal(t, []string{"pat_d"}, res.Clusters[1].Members, "higher confidence wins the size tie")
	assert.Nil(t, res.Patterns[0].ClusterID)
}

func TestPrune(t *testing.T) {
	res := Assign(pattern.ScopeReview, []pattern.Pattern{
		vecPattern("pat_a", 0.2, 1, 0),
		vecPattern("pat_b", 0.8, 0.95, 0.05),
		vecPattern("pat_c", 0.5, 0, 1),
	}, 0.75, 0)
	require.Len(t, res.Clusters, 2)

	// pat_a and pat_c are evicted.
	survivors := []pattern.Pattern{res.Patterns[1]}
	pruned := Prune(pattern.ScopeReview, res.Clusters, survivors)

	require.Len(t, pruned, 1)
	assert.Equal(t, []string{"pat_b"}, pruned[0].Members)
	assert.Equal(t, pattern.ClusterID([]string{"pat_b"}), pruned[0].ID)
	assert.InDelta(t, 0.8, pruned[0].AvgConfidence, 1e-9)
	assert.Equal(t, pruned[0].ID, *survivors[0].ClusterID)
}

func TestRepresentative(t *testing.T) {
	a := vecPattern("pat_a", 0, 1, 0)
	b := vecPattern("pat_b", 0, 0.9, 0.1)
	c := pattern.Cluster{Members: []string{"pat_a", "pat_b"}, Centroid: []float64{0.95, 0.05}}
	byID := map[string]*pattern.Pattern{"pat_a": &a, "pat_b": &b}

	id, ok := Representative(&c, byID)
	require.True(t, ok)
	assert.Equal(t, "pat_a", id)

	_, ok = Representative(&pattern.Cluster{Members: []string{"pat_missing"}}, byID)
	assert.False(t, ok)
}

func TestRepresentative_TieBreaksOnScore(t *testing.T) {
	a := vecPattern("pat_a", 0, 1, 0)
	b := vecPattern("pat_b", 0, 1, 0)
	b.Score = 2
	c := pattern.Cluster{Members: []string{"pat_a", "pat_b"}, Centroid: []float64{1, 0}}

	id, ok := Representative(&c, map[string]*pattern.Pattern{"pat_a": &a, "pat_b": &b})
	require.True(t, ok)
	assert.Equal(t, "pat_b", id)
}

func TestRepresentative_TieBreaksOnID(t *testing.T) {
	a := vecPattern("pat_b", 1, 1, 0)
	b := vecPattern("pat_a", 1, 1, 0)
	c := pattern.Cluster{Members: []string{"pat_a", "pat_b"}, Centroid: []float64{1, 0}}

	id, ok := Representative(&c, map[string]*pattern.Pattern{"pat_b": &a, "pat_a": &b})
	require.True(t, ok)
	assert.Equal(t, "pat_a", id)
}
