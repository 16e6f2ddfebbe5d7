// Package pipeline wires training stages into the method variants an
// experiment can select, and holds the registry that maps method names to
// their runners.
package pipeline

import (
	"context"
	"fmt"

	"github.com/vk/selftraingo/internal/checkpoint"
	"github.com/vk/selftraingo/internal/config"
	"github.com/vk/selftraingo/internal/ctxlog"
	"github.com/vk/selftraingo/internal/dataset"
	"github.com/vk/selftraingo/internal/nn"
	"github.com/vk/selftraingo/internal/trainer"
)

// Run bundles everything a method runner needs for one experiment run.
type Run struct {
	Experiment *config.Experiment
	Dataset    *dataset.Dataset
	Partitions dataset.Partitions
	Workers    int
	RunID      string
}

// Runner executes one pipeline variant end to end.
type Runner func(ctx context.Context, run *Run) error

// Registry maps method names to runners.
type Registry struct {
	runners map[config.Method]Runner
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{runners: make(map[config.Method]Runner)}
}

// Register adds a method runner. Registering a method twice is a programmer
// error and panics.
func (r *Registry) Register(method config.Method, runner Runner) {
	if _, exists := r.runners[method]; exists {
		panic(fmt.Sprintf("pipeline method %q already registered", method))
	}
	r.runners[method] = runner
}

// Get returns the runner for a method.
func (r *Registry) Get(method config.Method) (Runner, error) {
	runner, ok := r.runners[method]
	if !ok {
		return nil, fmt.Errorf("no pipeline registered for method %q", method)
	}
	return runner, nil
}

// DefaultRegistry returns a registry with both built-in methods.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(config.MethodPseudoLabel, RunPseudoLabel)
	r.Register(config.MethodNoisyStudent, RunNoisyStudent)
	return r
}

// newNetwork builds the experiment's network architecture.
func newNetwork(run *Run) (*nn.Network, error) {
	return nn.New(nn.Config{
		Inputs:    dataset.ImageSize,
		Hidden:    run.Experiment.Model.Hidden,
		Embedding: run.Experiment.Model.Embedding,
		Classes:   run.Dataset.Classes,
		Seed:      run.Experiment.Dataset.Seed,
	})
}

// fineTune runs the labeled-only stage, checkpointing the best-validation
// weights, and returns the network restored from that checkpoint.
func fineTune(ctx context.Context, run *Run) (*nn.Network, error) {
	exp := run.Experiment

	net, err := newNetwork(run)
	if err != nil {
		return nil, err
	}

	t := trainer.New(net, exp, run.Workers, exp.Dataset.Seed)
	_, err = t.RunStage(ctx, trainer.StageConfig{
		Name:           "finetune",
		Epochs:         exp.Model.Epochs,
		LogPath:        exp.FineTune.LogFile,
		CheckpointPath: exp.FineTune.Checkpoint,
		RunID:          run.RunID,
		Experiment:     exp.Name,
		DatasetName:    run.Dataset.Name,
	}, trainer.FromSamples(run.Partitions.Labeled, 1), run.Partitions.Validation)
	if err != nil {
		return nil, fmt.Errorf("fine-tune stage: %w", err)
	}

	best, meta, err := checkpoint.Load(exp.FineTune.Checkpoint)
	if err != nil {
		return nil, fmt.Errorf("restoring fine-tune checkpoint: %w", err)
	}
	ctxlog.FromContext(ctx).Info("Restored best fine-tune checkpoint.",
		"epoch", meta.Epoch, "validation_accuracy", meta.ValidationAccuracy)
	return best, nil
}

// saveFinal writes the finished model to the experiment's model path and
// logs test-set performance.
func saveFinal(ctx context.Context, run *Run, t *trainer.Trainer, stage string) error {
	exp := run.Experiment

	testLoss, testAcc, err := t.Evaluate(ctx, run.Dataset.Test)
	if err != nil {
		return fmt.Errorf("evaluating test set: %w", err)
	}

	err = checkpoint.Save(exp.Model.Path, t.Network(), checkpoint.Metadata{
		RunID:              run.RunID,
		Experiment:         exp.Name,
		Dataset:            run.Dataset.Name,
		Stage:              stage,
		Epoch:              exp.Model.Epochs,
		ValidationAccuracy: testAcc,
		CreatedAt:          nowUTC(),
	})
	if err != nil {
		return fmt.Errorf("saving final model: %w", err)
	}

	ctxlog.FromContext(ctx).Info("Final model saved.",
		"path", exp.Model.Path, "test_loss", testLoss, "test_accuracy", testAcc)
	return nil
}
