package similarity

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	got := Tokenize("Run the Linter, then push! (CI-green)")
	assert.Equal(t, []string{"run", "linter", "push", "ci", "green"}, got)
	assert.Empty(t, Tokenize("the and of ..."))
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float64{1, 2, 3}, []float64{2, 4, 6}), 1e-9)
	assert.Equal(t, 0.0, Cosine([]float64{1, 0}, []float64{0, 1}))
	assert.Equal(t, 0.0, Cosine([]float64{1, 0}, []float64{-1, 0}), "negative similarity clamps to zero")
	assert.Equal(t, 0.0, Cosine([]float64{1, 2}, []float64{1, 2, 3}), "length mismatch")
	assert.Equal(t, 0.0, Cosine([]float64{0, 0}, []float64{1, 1}), "zero vector")
	assert.Equal(t, 0.0, Cosine(nil, nil))
}

func TestCosine_Symmetric(t *testing.T) {
	a := []float64{0.3, 0.1, 0.9}
	b := []float64{0.5, 0.7, 0.2}
	assert.Equal(t, Cosine(a, b), Cosine(b, a))
}

func TestCentroid(t *testing.T) {
	c := Centroid([][]float64{{1, 0}, {0, 1}, {1, 2, 3}})
	assert.Equal(t, []float64{0.5, 0.5}, c)
	assert.Nil(t, Centroid(nil))
}

func TestEmbed(t *testing.T) {
	v := Embed("Always run database migrations inside a transaction")
	require.Len(t, v, Dimensions)

	var norm float64
	for _, x := range v {
		norm += x * x
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-9)

	// Case and punctuation do not change the embedding.
	assert.Equal(t, v, Embed("always RUN database migrations, inside a transaction."))

	assert.Nil(t, Embed(""))
	assert.Nil(t, Embed("the of and"))
}

func TestEmbed_SimilarTextsScoreHigher(t *testing.T) {
	base := Embed("cache dependency downloads between ci runs")
	near := Embed("cache dependency downloads across ci runs")
	far := Embed("schedule quarterly security review meeting")
	assert.Greater(t, Cosine(base, near), Cosine(base, far))
}

func TestVectorizer_RequiresVocabulary(t *testing.T) {
	v := NewVectorizer()
	_, err := v.Vectorize("anything")
	assert.ErrorIs(t, err, ErrVocabularyNotBuilt)
}

func TestVectorizer(t *testing.T) {
	v := NewVectorizer()
	v.BuildVocabulary([]string{
		"retry flaky integration tests",
		"retry flaky integration tests twice",
		"document public api changes",
	})
	assert.Equal(t, 9, v.VocabularySize())

	a, err := v.Vectorize("retry flaky integration tests")
	require.NoError(t, err)
	b, err := v.Vectorize("retry flaky integration tests twice")
	require.NoError(t, err)
	c, err := v.Vectorize("document public api changes")
	require.NoError(t, err)

	assert.Greater(t, Cosine(a, b), 0.8)
	assert.Equal(t, 0.0, Cosine(a, c))

	// Unknown terms are ignored.
	z, err := v.Vectorize("completely unrelated words")
	require.NoError(t, err)
	assert.Equal(t, 0.0, Cosine(a, z))
}
