package loss

import (
	"gonum.org/v1/gonum/floats"
)

// Triplet is the batch-hard margin triplet loss. For every anchor in a
// batch it selects the farthest embedding with the same label and the
// nearest embedding with a different label, and penalizes
//
//	max(0, ||a-p||² - ||a-n||² + margin)
//
// Distances are squared Euclidean, which keeps the derivatives linear in
// the embeddings.
type Triplet struct {
	Margin float64
}

// Batch computes the mean triplet loss over a batch of embeddings and the
// per-sample loss derivatives with respect to each embedding. Samples whose
// label has no positive partner in the batch, and inactive triplets, get nil
// deltas. active reports how many anchors had a positive margin violation.
func (t Triplet) Batch(embeddings [][]float64, labels []int) (cost float64, deltas [][]float64, active int) {
	n := len(embeddings)
	deltas = make([][]float64, n)
	if n < 3 {
		return 0, deltas, 0
	}

	dist := pairwiseSquared(embeddings)

	for a := 0; a < n; a++ {
		hardestPos, hardestNeg := -1, -1
		for b := 0; b < n; b++ {
			if b == a {
				continue
			}
			if labels[b] == labels[a] {
				if hardestPos < 0 || dist[a][b] > dist[a][hardestPos] {
					hardestPos = b
				}
			} else {
				if hardestNeg < 0 || dist[a][b] < dist[a][hardestNeg] {
					hardestNeg = b
				}
			}
		}
		if hardestPos < 0 || hardestNeg < 0 {
			continue
		}

		violation := dist[a][hardestPos] - dist[a][hardestNeg] + t.Margin
		if violation <= 0 {
			continue
		}
		cost += violation
		active++

		// d/da = 2(n-p), d/dp = 2(p-a), d/dn = 2(a-n), all scaled by 1/batch
		// below once the count of active anchors is known.
		addScaled(&deltas[a], embeddings[hardestNeg], embeddings[hardestPos], 2)
		addScaled(&deltas[hardestPos], embeddings[hardestPos], embeddings[a], 2)
		addScaled(&deltas[hardestNeg], embeddings[a], embeddings[hardestNeg], 2)
	}

	if active == 0 {
		return 0, deltas, 0
	}

	// Average over anchors so the triplet term's scale does not grow with
	// the batch size.
	scale := 1 / float64(active)
	cost *= scale
	for i := range deltas {
		if deltas[i] != nil {
			floats.Scale(scale, deltas[i])
		}
	}
	return cost, deltas, active
}

// pairwiseSquared fills the symmetric matrix of squared Euclidean distances.
func pairwiseSquared(embeddings [][]float64) [][]float64 {
	n := len(embeddings)
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}
	diff := make([]float64, len(embeddings[0]))
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			floats.SubTo(diff, embeddings[i], embeddings[j])
			d := floats.Dot(diff, diff)
			dist[i][j] = d
			dist[j][i] = d
		}
	}
	return dist
}

// addScaled accumulates scale*(x-y) into *dst, allocating it on first use.
func addScaled(dst *[]float64, x, y []float64, scale float64) {
	if *dst == nil {
		*dst = make([]float64, len(x))
	}
	for i := range x {
		(*dst)[i] += scale * (x[i] - y[i])
	}
}
