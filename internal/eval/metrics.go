package eval

import "math"

// PrecisionAt is 1 when any of the first k ranked ids is in ideal, else 0.
func PrecisionAt(ranked, ideal []string, k int) float64 {
	want := toSet(ideal)
	for i, id := range ranked {
		if i >= k {
			break
		}
		if want[id] {
			return 1
		}
	}
	return 0
}

// NDCGAt is the normalized discounted cumulative gain of ranked over its
// first k positions. Relevance is binary: 1 for ids in ideal. The ideal
// DCG places every ideal id at the top.
func NDCGAt(ranked, ideal []string, k int) float64 {
	want := toSet(ideal)
	if len(want) == 0 || k <= 0 {
		return 0
	}

	var dcg float64
	seen := make(map[string]bool, len(ranked))
	for i, id := range ranked {
		if i >= k {
			break
		}
		if want[id] && !seen[id] {
			dcg += gain(1) / discount(i)
		}
		seen[id] = true
	}

	var idcg float64
	for i := 0; i < min(len(want), k); i++ {
		idcg += gain(1) / discount(i)
	}
	return dcg / idcg
}

func gain(rel int) float64 { return math.Pow(2, float64(rel)) - 1 }

// discount for zero-based rank.
func discount(rank int) float64 { return math.Log2(float64(rank) + 2) }

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
