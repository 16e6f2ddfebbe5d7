package testutil

import (
	"bufio"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/selftraingo/internal/dataset"
)

// WriteCIFAR10Dir writes a synthetic dataset in the CIFAR-10 binary layout
// (five training batches plus a test batch) under a new temp directory and
// returns its path. Images are class-separable: every pixel of a class-c
// image clusters around a class-specific intensity, so even a small model
// can learn the mapping in a couple of epochs.
func WriteCIFAR10Dir(t *testing.T, classes, perBatch int, seed int64) string {
	t.Helper()
	dir := t.TempDir()

	rng := rand.New(rand.NewSource(seed))
	for i := 1; i <= 5; i++ {
		writeBatchFile(t, rng, filepath.Join(dir, fmt.Sprintf("data_batch_%d.bin", i)), classes, perBatch)
	}
	writeBatchFile(t, rng, filepath.Join(dir, "test_batch.bin"), classes, perBatch)
	return dir
}

// writeBatchFile emits perRecord CIFAR-10 records, cycling through classes.
func writeBatchFile(t *testing.T, rng *rand.Rand, path string, classes, records int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, f.Close()) }()

	w := bufio.NewWriter(f)
	for r := 0; r < records; r++ {
		label := r % classes
		require.NoError(t, w.WriteByte(byte(label)))

		// Class c pixels cluster around (c+1)/(classes+1) with light noise.
		center := float64(label+1) / float64(classes+1)
		for p := 0; p < dataset.ImageSize; p++ {
			v := center + rng.NormFloat64()*0.03
			if v < 0 {
				v = 0
			}
			if v > 1 {
				v = 1
			}
			require.NoError(t, w.WriteByte(byte(v*255)))
		}
	}
	require.NoError(t, w.Flush())
}

// SyntheticSamples builds in-memory class-separable samples with the given
// input width, cycling labels over the class count.
func SyntheticSamples(n, inputs, classes int, seed int64) []dataset.Sample {
	rng := rand.New(rand.NewSource(seed))
	samples := make([]dataset.Sample, n)
	for i := range samples {
		label := i % classes
		center := float64(label+1) / float64(classes+1)
		image := make([]float64, inputs)
		for p := range image {
			image[p] = center + rng.NormFloat64()*0.03
		}
		samples[i] = dataset.Sample{Image: image, Label: label}
	}
	return samples
}
