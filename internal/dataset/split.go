package dataset

import (
	"math"
	"math/rand"
)

// Split partitions a training pool into validation, labeled, and unlabeled
// subsets. The pool is shuffled with the given seed, then the first
// round(n*validationFraction) samples become the validation set, the next
// round(n*labelFraction) become the labeled set, and the remainder is the
// unlabeled pool. The same (pool, seed, fractions) always yields the same
// partitions.
func Split(pool []Sample, labelFraction, validationFraction float64, seed int64) Partitions {
	n := len(pool)
	order := rand.New(rand.NewSource(seed)).Perm(n)

	numValidation := int(math.Round(validationFraction * float64(n)))
	numLabeled := int(math.Round(labelFraction * float64(n)))
	if numValidation+numLabeled > n {
		numLabeled = n - numValidation
	}

	pick := func(indices []int) []Sample {
		out := make([]Sample, len(indices))
		for i, idx := range indices {
			out[i] = pool[idx]
		}
		return out
	}

	return Partitions{
		Validation: pick(order[:numValidation]),
		Labeled:    pick(order[numValidation : numValidation+numLabeled]),
		Unlabeled:  pick(order[numValidation+numLabeled:]),
	}
}
