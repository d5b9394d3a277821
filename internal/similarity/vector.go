package similarity

import "math"

// Cosine returns the cosine similarity of a and b clamped to [0,1].
// Empty, mismatched or zero-magnitude vectors score 0.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, magA, magB float64
	for i := range a {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}
	if magA == 0 || magB == 0 {
		return 0
	}

	sim := dot / (math.Sqrt(magA) * math.Sqrt(magB))
	switch {
	case math.IsNaN(sim) || sim < 0:
		return 0
	case sim > 1:
		return 1
	}
	return sim
}

// Centroid returns the element-wise mean of vectors. Vectors whose width
// differs from the first are skipped.
func Centroid(vectors [][]float64) []float64 {
	if len(vectors) == 0 {
		return nil
	}

	size := len(vectors[0])
	if size == 0 {
		return nil
	}
	centroid := make([]float64, size)
	count := 0
	for _, vec := range vectors {
		if len(vec) != size {
			continue
		}
		for i, v := range vec {
			centroid[i] += v
		}
		count++
	}
	for i := range centroid {
		centroid[i] /= float64(count)
	}
	return centroid
}

// normalize scales v to unit length in place. It returns false for a zero vector.
func normalize(v []float64) bool {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return false
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] /= norm
	}
	return true
}
