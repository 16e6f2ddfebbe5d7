// Package nn implements the feed-forward classifier the pipeline trains: a
// stack of dense layers ending in a linear metric-learning embedding and a
// linear classification head. Gradients are explicit values so that batch
// workers can compute them independently and merge.
package nn

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Config describes a network's architecture.
type Config struct {
	// Inputs is the flattened input width.
	Inputs int

	// Hidden lists the widths of the ReLU hidden layers.
	Hidden []int

	// Embedding is the width of the linear embedding layer the triplet
	// loss operates on.
	Embedding int

	// Classes is the width of the linear classification head.
	Classes int

	// Seed drives weight initialization.
	Seed int64
}

// Dense is one fully connected layer. Weights are laid out out-by-in so a
// forward pass is W*x + b.
type Dense struct {
	W    *mat.Dense
	B    *mat.VecDense
	ReLU bool
}

// Network is a stack of dense layers. The second-to-last layer's output is
// the embedding; the last layer produces class logits.
type Network struct {
	cfg    Config
	layers []*Dense
}

// New builds a network with He-initialized weights.
func New(cfg Config) (*Network, error) {
	if cfg.Inputs <= 0 {
		return nil, errors.Errorf("network needs a positive input width, got %d", cfg.Inputs)
	}
	if cfg.Embedding <= 0 {
		return nil, errors.Errorf("network needs a positive embedding width, got %d", cfg.Embedding)
	}
	if cfg.Classes <= 1 {
		return nil, errors.Errorf("network needs at least two classes, got %d", cfg.Classes)
	}
	for i, h := range cfg.Hidden {
		if h <= 0 {
			return nil, errors.Errorf("hidden layer %d needs a positive width, got %d", i, h)
		}
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	net := &Network{cfg: cfg}

	in := cfg.Inputs
	for _, h := range cfg.Hidden {
		net.layers = append(net.layers, newDense(rng, in, h, true))
		in = h
	}
	// Embedding and classifier head are linear; ReLU would collapse half of
	// the embedding space the triplet loss works in.
	net.layers = append(net.layers, newDense(rng, in, cfg.Embedding, false))
	net.layers = append(net.layers, newDense(rng, cfg.Embedding, cfg.Classes, false))

	return net, nil
}

func newDense(rng *rand.Rand, in, out int, relu bool) *Dense {
	w := mat.NewDense(out, in, nil)
	scale := math.Sqrt(2 / float64(in))
	for r := 0; r < out; r++ {
		for c := 0; c < in; c++ {
			w.Set(r, c, rng.NormFloat64()*scale)
		}
	}
	return &Dense{
		W:    w,
		B:    mat.NewVecDense(out, nil),
		ReLU: relu,
	}
}

// Config returns the architecture the network was built with.
func (n *Network) Config() Config { return n.cfg }

// Layers exposes the layer stack for the optimizer and checkpointing.
func (n *Network) Layers() []*Dense { return n.layers }

// forwardState caches the per-layer activations of one forward pass for
// backpropagation. inputs[i] is the input vector fed to layer i and
// outputs[i] its post-activation output.
type forwardState struct {
	inputs  []*mat.VecDense
	outputs []*mat.VecDense
}

// forward runs one sample through the network and caches activations.
func (n *Network) forward(x []float64) *forwardState {
	if len(x) != n.cfg.Inputs {
		panic(errors.Errorf("input has %d values, network expects %d", len(x), n.cfg.Inputs))
	}

	state := &forwardState{
		inputs:  make([]*mat.VecDense, len(n.layers)),
		outputs: make([]*mat.VecDense, len(n.layers)),
	}

	v := mat.NewVecDense(len(x), append([]float64(nil), x...))
	for i, layer := range n.layers {
		state.inputs[i] = v

		out := mat.NewVecDense(layer.W.RawMatrix().Rows, nil)
		out.MulVec(layer.W, v)
		out.AddVec(out, layer.B)
		if layer.ReLU {
			raw := out.RawVector().Data
			for j, val := range raw {
				if val < 0 {
					raw[j] = 0
				}
			}
		}
		state.outputs[i] = out
		v = out
	}
	return state
}

// Logits returns the raw class scores for one sample.
func (n *Network) Logits(x []float64) []float64 {
	state := n.forward(x)
	out := state.outputs[len(n.layers)-1]
	return append([]float64(nil), out.RawVector().Data...)
}

// Predict returns the softmax class distribution for one sample.
func (n *Network) Predict(x []float64) []float64 {
	return Softmax(n.Logits(x))
}

// Embed returns the embedding-layer activation for one sample.
func (n *Network) Embed(x []float64) []float64 {
	state := n.forward(x)
	out := state.outputs[len(n.layers)-2]
	return append([]float64(nil), out.RawVector().Data...)
}

// Softmax converts logits to a probability distribution. The max-logit shift
// keeps the exponentials from overflowing.
func Softmax(logits []float64) []float64 {
	max := math.Inf(-1)
	for _, v := range logits {
		if v > max {
			max = v
		}
	}
	probs := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		probs[i] = math.Exp(v - max)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}
