package pipeline

import (
	"context"
	"fmt"

	"github.com/vk/selftraingo/internal/ctxlog"
	"github.com/vk/selftraingo/internal/dataset"
	"github.com/vk/selftraingo/internal/nn"
	"github.com/vk/selftraingo/internal/trainer"
)

// RunNoisyStudent is the iterative variant: after the fine-tune stage, each
// round pseudo-labels the unlabeled pool with the current teacher on clean
// inputs, then trains a fresh student on the labeled set plus noised
// pseudo-labeled inputs. The student becomes the next round's teacher.
// Pseudo-labeled examples are weighted by the teacher's confidence.
func RunNoisyStudent(ctx context.Context, run *Run) error {
	logger := ctxlog.FromContext(ctx)
	exp := run.Experiment

	teacher, err := fineTune(ctx, run)
	if err != nil {
		return err
	}

	var student *trainer.Trainer
	for round := 1; round <= exp.Pseudo.Rounds; round++ {
		roundLogger := logger.With("round", round)
		roundCtx := ctxlog.WithLogger(ctx, roundLogger)

		pseudo, stats, err := trainer.PseudoLabel(roundCtx, teacher, run.Partitions.Unlabeled, exp.Pseudo.Threshold, true, run.Workers)
		if err != nil {
			return fmt.Errorf("pseudo-label round %d: %w", round, err)
		}
		if stats.Retained == 0 {
			roundLogger.Warn("No pseudo-labels met the confidence threshold; student trains on labeled data only.",
				"threshold", exp.Pseudo.Threshold)
		}

		// Input noise goes on the student's copies only; the teacher has
		// already predicted on the clean images.
		augmenter := dataset.NewAugmenter(exp.Dataset.Seed + int64(round))
		for i := range pseudo {
			pseudo[i].Image = augmenter.Noise(pseudo[i].Image)
		}

		train := append(trainer.FromSamples(run.Partitions.Labeled, 1), pseudo...)

		net, err := newStudentNetwork(run, round)
		if err != nil {
			return fmt.Errorf("building student for round %d: %w", round, err)
		}
		student = trainer.New(net, exp, run.Workers, exp.Dataset.Seed+int64(round))

		_, err = student.RunStage(roundCtx, trainer.StageConfig{
			Name:        fmt.Sprintf("student_round_%d", round),
			Epochs:      exp.Model.Epochs,
			LogPath:     exp.Pseudo.LogFile,
			RunID:       run.RunID,
			Experiment:  exp.Name,
			DatasetName: run.Dataset.Name,
			Meta: []any{
				"round", round,
				"pseudo_retained", stats.Retained,
				"pseudo_discarded", stats.Discarded,
				"pseudo_mean_confidence", stats.MeanConfidence,
			},
		}, train, run.Partitions.Validation)
		if err != nil {
			return fmt.Errorf("student round %d: %w", round, err)
		}

		teacher = student.Network()
	}

	return saveFinal(ctx, run, student, fmt.Sprintf("student_round_%d", exp.Pseudo.Rounds))
}

// newStudentNetwork builds a freshly initialized student. The round offsets
// the init seed so successive students do not start from identical weights.
func newStudentNetwork(run *Run, round int) (*nn.Network, error) {
	return nn.New(nn.Config{
		Inputs:    dataset.ImageSize,
		Hidden:    run.Experiment.Model.Hidden,
		Embedding: run.Experiment.Model.Embedding,
		Classes:   run.Dataset.Classes,
		Seed:      run.Experiment.Dataset.Seed + int64(round),
	})
}
