// Package dataset loads image-classification datasets from their binary
// batch files and partitions them for semi-supervised training.
package dataset

// Image geometry shared by all supported datasets. CIFAR-10, CIFAR-100 and
// the binary SVHN conversion all store 32x32 RGB images in planar order:
// 1024 red bytes, then 1024 green, then 1024 blue.
const (
	ImageSide     = 32
	ImageChannels = 3
	ImageSize     = ImageSide * ImageSide * ImageChannels
)

// Sample is a single image with its class label. Pixels are stored planar
// (matching the on-disk layout) and scaled to [0,1].
type Sample struct {
	Image []float64
	Label int
}

// Dataset is a fully loaded dataset: the training pool that the split
// operates on, plus the held-out test set.
type Dataset struct {
	Name    string
	Classes int
	Train   []Sample
	Test    []Sample
}

// Partitions is the result of the labeled/unlabeled/validation split over a
// dataset's training pool. The three slices are disjoint and together cover
// the whole pool.
type Partitions struct {
	Labeled    []Sample
	Unlabeled  []Sample
	Validation []Sample
}
