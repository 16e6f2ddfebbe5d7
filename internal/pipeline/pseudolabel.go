package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/vk/selftraingo/internal/ctxlog"
	"github.com/vk/selftraingo/internal/trainer"
)

// RunPseudoLabel is the single-round self-training flow: fine-tune on the
// labeled partition, pseudo-label the unlabeled pool once with the best
// fine-tuned model, then retrain on labeled plus retained pseudo-labels.
func RunPseudoLabel(ctx context.Context, run *Run) error {
	logger := ctxlog.FromContext(ctx)
	exp := run.Experiment

	best, err := fineTune(ctx, run)
	if err != nil {
		return err
	}

	pseudo, stats, err := trainer.PseudoLabel(ctx, best, run.Partitions.Unlabeled, exp.Pseudo.Threshold, false, run.Workers)
	if err != nil {
		return fmt.Errorf("pseudo-label stage: %w", err)
	}
	if stats.Retained == 0 {
		logger.Warn("No pseudo-labels met the confidence threshold; retraining on labeled data only.",
			"threshold", exp.Pseudo.Threshold, "unlabeled", stats.Total)
	}

	train := append(trainer.FromSamples(run.Partitions.Labeled, 1), pseudo...)

	t := trainer.New(best, exp, run.Workers, exp.Dataset.Seed+1)
	_, err = t.RunStage(ctx, trainer.StageConfig{
		Name:        "retrain",
		Epochs:      exp.Model.Epochs,
		LogPath:     exp.Pseudo.LogFile,
		RunID:       run.RunID,
		Experiment:  exp.Name,
		DatasetName: run.Dataset.Name,
		Meta: []any{
			"pseudo_retained", stats.Retained,
			"pseudo_discarded", stats.Discarded,
			"pseudo_mean_confidence", stats.MeanConfidence,
		},
	}, train, run.Partitions.Validation)
	if err != nil {
		return fmt.Errorf("retrain stage: %w", err)
	}

	return saveFinal(ctx, run, t, "retrain")
}

func nowUTC() time.Time { return time.Now().UTC() }
