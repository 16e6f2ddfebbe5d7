package nn

import (
	"gonum.org/v1/gonum/mat"
)

// SGD applies stochastic gradient descent with L2 weight decay and optional
// (Nesterov) momentum. One SGD instance holds the velocity state for one
// network across a training stage.
type SGD struct {
	LearningRate float64
	WeightDecay  float64
	Momentum     float64
	Nesterov     bool

	vw []*mat.Dense
	vb []*mat.VecDense
}

// NewSGD creates an optimizer with velocity buffers shaped for net.
func NewSGD(net *Network, learningRate, weightDecay, momentum float64, nesterov bool) *SGD {
	s := &SGD{
		LearningRate: learningRate,
		WeightDecay:  weightDecay,
		Momentum:     momentum,
		Nesterov:     nesterov,
	}
	for _, layer := range net.Layers() {
		rows, cols := layer.W.Dims()
		s.vw = append(s.vw, mat.NewDense(rows, cols, nil))
		s.vb = append(s.vb, mat.NewVecDense(layer.B.Len(), nil))
	}
	return s
}

// Step applies one update from batch-averaged gradients. Weight decay is
// added to the weight gradients (not the biases) before the momentum update:
//
//	v = momentum*v + (grad + wd*W)
//	W = W - lr*v               (or lr*(momentum*v + grad + wd*W) with Nesterov)
func (s *SGD) Step(net *Network, grads *Gradients) {
	for i, layer := range net.Layers() {
		gw := grads.W[i]
		gb := grads.B[i]

		var decayed mat.Dense
		decayed.Scale(s.WeightDecay, layer.W)
		decayed.Add(&decayed, gw)

		if s.Momentum == 0 {
			applyDense(layer.W, &decayed, s.LearningRate)
			applyVec(layer.B, gb, s.LearningRate)
			continue
		}

		s.vw[i].Scale(s.Momentum, s.vw[i])
		s.vw[i].Add(s.vw[i], &decayed)
		s.vb[i].ScaleVec(s.Momentum, s.vb[i])
		s.vb[i].AddVec(s.vb[i], gb)

		if s.Nesterov {
			var lookahead mat.Dense
			lookahead.Scale(s.Momentum, s.vw[i])
			lookahead.Add(&lookahead, &decayed)
			applyDense(layer.W, &lookahead, s.LearningRate)

			lookVec := mat.NewVecDense(gb.Len(), nil)
			lookVec.ScaleVec(s.Momentum, s.vb[i])
			lookVec.AddVec(lookVec, gb)
			applyVec(layer.B, lookVec, s.LearningRate)
		} else {
			applyDense(layer.W, s.vw[i], s.LearningRate)
			applyVec(layer.B, s.vb[i], s.LearningRate)
		}
	}
}

func applyDense(param, update *mat.Dense, lr float64) {
	var scaled mat.Dense
	scaled.Scale(lr, update)
	param.Sub(param, &scaled)
}

func applyVec(param, update *mat.VecDense, lr float64) {
	scaled := mat.NewVecDense(update.Len(), nil)
	scaled.ScaleVec(lr, update)
	param.SubVec(param, scaled)
}
