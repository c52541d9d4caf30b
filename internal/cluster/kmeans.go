package cluster

import (
	"math"
	"math/rand"

	"github.com/lodestone-labs/synapse/internal/scoring"
)

// kmeans assigns each vector to one of k clusters. Centroids are seeded from
// a deterministic shuffle of the inputs, so a fixed seed yields identical
// assignments run to run. Distance is 1 - cosine similarity, matching the
// semantic signal.
func kmeans(vectors [][]float64, k int, seed int64, iterations int) []int {
	n := len(vectors)
	if k <= 1 || n == 0 {
		return make([]int, n)
	}
	if k > n {
		k = n
	}

	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(n)

	centroids := make([][]float64, k)
	for i := 0; i < k; i++ {
		centroids[i] = append([]float64(nil), vectors[perm[i]]...)
	}

	assignments := make([]int, n)
	for iter := 0; iter < iterations; iter++ {
		changed := false
		for i, vec := range vectors {
			best, bestDist := 0, math.Inf(1)
			for c, centroid := range centroids {
				d := 1 - scoring.CosineSimilarity(vec, centroid)
				if d < bestDist {
					best, bestDist = c, d
				}
			}
			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		// Recompute centroids as member means. Empty clusters keep their
		// previous centroid.
		dims := len(vectors[0])
		sums := make([][]float64, k)
		counts := make([]int, k)
		for i := range sums {
			sums[i] = make([]float64, dims)
		}
		for i, vec := range vectors {
			c := assignments[i]
			counts[c]++
			for d := 0; d < dims && d < len(vec); d++ {
				sums[c][d] += vec[d]
			}
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				continue
			}
			for d := range sums[c] {
				sums[c][d] /= float64(counts[c])
			}
			centroids[c] = sums[c]
		}
	}

	return assignments
}
