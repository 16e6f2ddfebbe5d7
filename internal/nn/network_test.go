package nn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		Inputs:    4,
		Hidden:    []int{5},
		Embedding: 3,
		Classes:   3,
		Seed:      1,
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero inputs", func(c *Config) { c.Inputs = 0 }},
		{"zero embedding", func(c *Config) { c.Embedding = 0 }},
		{"single class", func(c *Config) { c.Classes = 1 }},
		{"zero hidden width", func(c *Config) { c.Hidden = []int{8, 0} }},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := testConfig()
			tc.mutate(&cfg)
			_, err := New(cfg)
			require.Error(t, err)
		})
	}
}

func TestNew_Shape(t *testing.T) {
	t.Parallel()

	net, err := New(Config{Inputs: 10, Hidden: []int{8, 6}, Embedding: 4, Classes: 5, Seed: 1})
	require.NoError(t, err)

	layers := net.Layers()
	require.Len(t, layers, 4)

	wantDims := [][2]int{{8, 10}, {6, 8}, {4, 6}, {5, 4}}
	for i, layer := range layers {
		rows, cols := layer.W.Dims()
		assert.Equal(t, wantDims[i][0], rows)
		assert.Equal(t, wantDims[i][1], cols)
		assert.Equal(t, wantDims[i][0], layer.B.Len())
	}

	// Hidden layers are ReLU; embedding and classifier head are linear.
	assert.True(t, layers[0].ReLU)
	assert.True(t, layers[1].ReLU)
	assert.False(t, layers[2].ReLU)
	assert.False(t, layers[3].ReLU)
}

func TestNetwork_OutputWidths(t *testing.T) {
	t.Parallel()

	net, err := New(testConfig())
	require.NoError(t, err)

	x := []float64{0.1, 0.2, 0.3, 0.4}
	assert.Len(t, net.Logits(x), 3)
	assert.Len(t, net.Embed(x), 3)
	assert.Len(t, net.Predict(x), 3)
}

func TestNetwork_PredictIsDistribution(t *testing.T) {
	t.Parallel()

	net, err := New(testConfig())
	require.NoError(t, err)

	probs := net.Predict([]float64{1, -1, 0.5, 0})
	var sum float64
	for _, p := range probs {
		assert.Greater(t, p, 0.0)
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
}

func TestNetwork_DeterministicInit(t *testing.T) {
	t.Parallel()

	a, err := New(testConfig())
	require.NoError(t, err)
	b, err := New(testConfig())
	require.NoError(t, err)

	x := []float64{0.4, 0.1, -0.2, 0.9}
	assert.Equal(t, a.Logits(x), b.Logits(x))

	cfg := testConfig()
	cfg.Seed = 2
	c, err := New(cfg)
	require.NoError(t, err)
	assert.NotEqual(t, a.Logits(x), c.Logits(x))
}

func TestNetwork_ForwardPanicsOnWrongWidth(t *testing.T) {
	t.Parallel()

	net, err := New(testConfig())
	require.NoError(t, err)
	assert.Panics(t, func() { net.Logits([]float64{1, 2}) })
}

func TestSoftmax(t *testing.T) {
	t.Parallel()

	probs := Softmax([]float64{1, 2, 3})
	require.Len(t, probs, 3)

	// exp(1):exp(2):exp(3) normalized.
	denom := math.Exp(1) + math.Exp(2) + math.Exp(3)
	assert.InDelta(t, math.Exp(1)/denom, probs[0], 1e-12)
	assert.InDelta(t, math.Exp(2)/denom, probs[1], 1e-12)
	assert.InDelta(t, math.Exp(3)/denom, probs[2], 1e-12)
}

func TestSoftmax_LargeLogitsStable(t *testing.T) {
	t.Parallel()

	probs := Softmax([]float64{1000, 1000, 999})
	for _, p := range probs {
		assert.False(t, math.IsNaN(p))
		assert.False(t, math.IsInf(p, 0))
	}
	assert.InDelta(t, probs[0], probs[1], 1e-12)
	assert.Less(t, probs[2], probs[0])
}
