package app

import (
	"context"
	"fmt"

	"github.com/vk/selftraingo/internal/checkpoint"
	"github.com/vk/selftraingo/internal/ctxlog"
	"github.com/vk/selftraingo/internal/dataset"
	"github.com/vk/selftraingo/internal/pipeline"
)

// Run executes the selected experiment end to end: load the dataset, split
// it, and hand the run to the experiment's pipeline method.
func (a *App) Run(ctx context.Context, appConfig *Config) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	exp := a.experiment

	runner, err := a.methods.Get(exp.Method)
	if err != nil {
		return err
	}

	ds, err := a.datasets.Open(ctx, exp.Dataset.Name, exp.Dataset.Root)
	if err != nil {
		return err
	}

	parts := dataset.Split(ds.Train, exp.Dataset.LabelFraction, exp.Dataset.ValidationFraction, exp.Dataset.Seed)
	a.logger.Info("Training pool partitioned.",
		"labeled", len(parts.Labeled),
		"unlabeled", len(parts.Unlabeled),
		"validation", len(parts.Validation),
		"seed", exp.Dataset.Seed)
	if len(parts.Labeled) == 0 {
		return fmt.Errorf("label_fraction %v leaves no labeled samples to fine-tune on", exp.Dataset.LabelFraction)
	}

	run := &pipeline.Run{
		Experiment: exp,
		Dataset:    ds,
		Partitions: parts,
		Workers:    appConfig.Workers,
		RunID:      checkpoint.NewRunID(),
	}
	a.logger.Info("Run starting.",
		"run_id", run.RunID, "experiment", exp.Name, "method", exp.Method, "workers", run.Workers)

	if err := runner(ctx, run); err != nil {
		return fmt.Errorf("method %s: %w", exp.Method, err)
	}

	a.logger.Info("Run finished.", "run_id", run.RunID)
	return nil
}
