package nn

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Gradients holds one set of parameter gradients, shaped like the network's
// layers. Workers accumulate into private Gradients and merge them before
// the optimizer step.
type Gradients struct {
	W []*mat.Dense
	B []*mat.VecDense
}

// NewGradients allocates zeroed gradients matching the network's shape.
func NewGradients(n *Network) *Gradients {
	g := &Gradients{
		W: make([]*mat.Dense, len(n.layers)),
		B: make([]*mat.VecDense, len(n.layers)),
	}
	for i, layer := range n.layers {
		rows, cols := layer.W.Dims()
		g.W[i] = mat.NewDense(rows, cols, nil)
		g.B[i] = mat.NewVecDense(layer.B.Len(), nil)
	}
	return g
}

// Add merges another gradient set into this one.
func (g *Gradients) Add(other *Gradients) {
	for i := range g.W {
		g.W[i].Add(g.W[i], other.W[i])
		g.B[i].AddVec(g.B[i], other.B[i])
	}
}

// Scale multiplies every gradient by f. Used to average over a batch.
func (g *Gradients) Scale(f float64) {
	for i := range g.W {
		g.W[i].Scale(f, g.W[i])
		g.B[i].ScaleVec(f, g.B[i])
	}
}

// SampleDeltas carries the loss derivatives for one sample: the derivative
// with respect to the class logits and, optionally, an extra derivative with
// respect to the embedding (the triplet term). Either may be nil when that
// loss component does not apply to the sample.
type SampleDeltas struct {
	Logits    []float64
	Embedding []float64
}

// Accumulate runs one forward/backward pass for a sample and adds the
// resulting parameter gradients into g.
func (n *Network) Accumulate(g *Gradients, x []float64, deltas SampleDeltas) error {
	state := n.forward(x)
	last := len(n.layers) - 1

	// delta is dLoss/d(output of layer i), walked from the top down.
	var delta *mat.VecDense
	startLayer := last
	if deltas.Logits != nil {
		if len(deltas.Logits) != n.cfg.Classes {
			return errors.Errorf("logit delta has %d values, want %d", len(deltas.Logits), n.cfg.Classes)
		}
		delta = mat.NewVecDense(len(deltas.Logits), append([]float64(nil), deltas.Logits...))
	} else {
		// Pure embedding loss: backpropagation starts below the classifier
		// head, which receives no gradient.
		if deltas.Embedding == nil {
			return errors.New("sample deltas carry neither a logit nor an embedding derivative")
		}
		startLayer = last - 1
		delta = mat.NewVecDense(len(deltas.Embedding), append([]float64(nil), deltas.Embedding...))
	}

	for i := startLayer; i >= 0; i-- {
		layer := n.layers[i]

		// The embedding sits at the output of the second-to-last layer;
		// inject the triplet derivative where it applies.
		if i == last-1 && deltas.Logits != nil && deltas.Embedding != nil {
			if len(deltas.Embedding) != n.cfg.Embedding {
				return errors.Errorf("embedding delta has %d values, want %d", len(deltas.Embedding), n.cfg.Embedding)
			}
			extra := mat.NewVecDense(len(deltas.Embedding), deltas.Embedding)
			delta.AddVec(delta, extra)
		}

		if layer.ReLU {
			out := state.outputs[i].RawVector().Data
			raw := delta.RawVector().Data
			for j := range raw {
				if out[j] <= 0 {
					raw[j] = 0
				}
			}
		}

		// dW = delta ⊗ input, db = delta.
		g.W[i].RankOne(g.W[i], 1, delta, state.inputs[i])
		g.B[i].AddVec(g.B[i], delta)

		if i > 0 {
			next := mat.NewVecDense(state.inputs[i].Len(), nil)
			next.MulVec(layer.W.T(), delta)
			delta = next
		}
	}
	return nil
}
