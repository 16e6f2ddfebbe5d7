// Package trainer drives the training stages: epoch loops with
// data-parallel gradient workers, validation, best-checkpoint tracking,
// pseudo-label generation, and per-stage JSON epoch logs.
package trainer

import "github.com/vk/selftraingo/internal/dataset"

// Example is one training input: an image, the label to train towards, and
// the weight of its cross-entropy term. Ground-truth samples train with
// weight 1; pseudo-labeled samples may be down-weighted by the confidence
// the labeling model had in them.
type Example struct {
	Image  []float64
	Label  int
	Weight float64
}

// FromSamples converts dataset samples into training examples with a shared
// weight.
func FromSamples(samples []dataset.Sample, weight float64) []Example {
	examples := make([]Example, len(samples))
	for i, s := range samples {
		examples[i] = Example{Image: s.Image, Label: s.Label, Weight: weight}
	}
	return examples
}
