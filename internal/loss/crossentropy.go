// Package loss implements the two training criteria: softmax cross-entropy
// over class logits and a margin triplet loss over embeddings. Both return
// explicit derivative vectors that nn.Accumulate backpropagates.
package loss

import (
	"math"

	"github.com/vk/selftraingo/internal/nn"
)

// CrossEntropy computes the softmax cross-entropy for one sample and the
// loss derivative with respect to the logits (softmax minus one-hot).
func CrossEntropy(logits []float64, label int) (cost float64, deltas []float64) {
	probs := nn.Softmax(logits)

	p := probs[label]
	if p < 1e-12 {
		p = 1e-12
	}
	cost = -math.Log(p)

	deltas = probs
	deltas[label] -= 1
	return cost, deltas
}

// WeightedCrossEntropy scales the cross-entropy derivative by weight.
// Pseudo-labeled samples train with a down-weighted loss so a large noisy
// pool cannot drown out the labeled data.
func WeightedCrossEntropy(logits []float64, label int, weight float64) (cost float64, deltas []float64) {
	cost, deltas = CrossEntropy(logits, label)
	cost *= weight
	for i := range deltas {
		deltas[i] *= weight
	}
	return cost, deltas
}
