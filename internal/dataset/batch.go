package dataset

import "math/rand"

// Batcher produces shuffled mini-batches of sample indices, reshuffling on
// every epoch. It owns its RNG so that two runs with the same seed see the
// same batch order.
type Batcher struct {
	batchSize int
	rng       *rand.Rand
}

// NewBatcher creates a Batcher. batchSize must be positive.
func NewBatcher(batchSize int, seed int64) *Batcher {
	if batchSize <= 0 {
		panic("batch size must be positive")
	}
	return &Batcher{
		batchSize: batchSize,
		rng:       rand.New(rand.NewSource(seed)),
	}
}

// Batches returns a fresh shuffled batching of n indices. The final batch
// may be smaller than the batch size.
func (b *Batcher) Batches(n int) [][]int {
	order := b.rng.Perm(n)
	batches := make([][]int, 0, (n+b.batchSize-1)/b.batchSize)
	for start := 0; start < n; start += b.batchSize {
		end := start + b.batchSize
		if end > n {
			end = n
		}
		batches = append(batches, order[start:end])
	}
	return batches
}
