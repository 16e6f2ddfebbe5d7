package trainer

import (
	"context"

	"github.com/vk/selftraingo/internal/ctxlog"
	"github.com/vk/selftraingo/internal/dataset"
	"github.com/vk/selftraingo/internal/nn"
)

// PseudoStats summarizes one pseudo-labeling pass.
type PseudoStats struct {
	Total         int
	Retained      int
	Discarded     int
	MeanConfidence float64 // over retained samples
}

// PseudoLabel predicts a label for every unlabeled sample and keeps those
// whose softmax confidence is at least threshold; predictions below the
// threshold are discarded. Retained examples carry their confidence as the
// training weight when weighted is true, and weight 1 otherwise.
func PseudoLabel(ctx context.Context, net *nn.Network, unlabeled []dataset.Sample, threshold float64, weighted bool, workers int) ([]Example, PseudoStats, error) {
	logger := ctxlog.FromContext(ctx)
	stats := PseudoStats{Total: len(unlabeled)}
	if len(unlabeled) == 0 {
		return nil, stats, nil
	}

	t := &Trainer{net: net, workers: workers}
	if t.workers <= 0 {
		t.workers = 1
	}
	results, err := t.parallelForward(ctx, FromSamples(unlabeled, 1))
	if err != nil {
		return nil, stats, err
	}

	var retained []Example
	var confidenceSum float64
	for i, r := range results {
		probs := nn.Softmax(r.logits)
		label := argmax(probs)
		confidence := probs[label]
		if confidence < threshold {
			stats.Discarded++
			continue
		}

		weight := 1.0
		if weighted {
			weight = confidence
		}
		retained = append(retained, Example{
			Image:  unlabeled[i].Image,
			Label:  label,
			Weight: weight,
		})
		confidenceSum += confidence
	}

	stats.Retained = len(retained)
	if stats.Retained > 0 {
		stats.MeanConfidence = confidenceSum / float64(stats.Retained)
	}

	logger.Info("Pseudo-labeling finished.",
		"total", stats.Total,
		"retained", stats.Retained,
		"discarded", stats.Discarded,
		"mean_confidence", stats.MeanConfidence,
		"threshold", threshold)
	return retained, stats, nil
}
