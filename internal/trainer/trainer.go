package trainer

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/vk/selftraingo/internal/checkpoint"
	"github.com/vk/selftraingo/internal/config"
	"github.com/vk/selftraingo/internal/ctxlog"
	"github.com/vk/selftraingo/internal/dataset"
	"github.com/vk/selftraingo/internal/loss"
	"github.com/vk/selftraingo/internal/nn"
)

// Trainer runs training epochs for one network with one optimizer state.
// Create a fresh Trainer per stage; optimizer momentum does not carry over
// between stages.
type Trainer struct {
	net     *nn.Network
	opt     *nn.SGD
	triplet loss.Triplet
	batcher *dataset.Batcher
	workers int
}

// New creates a Trainer for net using the experiment's optimizer and loss
// settings. stageSeed keeps batch shuffling reproducible yet distinct
// across stages.
func New(net *nn.Network, exp *config.Experiment, workers int, stageSeed int64) *Trainer {
	if workers <= 0 {
		workers = 1
	}
	return &Trainer{
		net: net,
		opt: nn.NewSGD(net,
			exp.Optimizer.LearningRate,
			exp.Optimizer.WeightDecay,
			exp.Optimizer.Momentum,
			exp.Optimizer.Nesterov,
		),
		triplet: loss.Triplet{Margin: exp.Loss.Margin},
		batcher: dataset.NewBatcher(exp.Model.BatchSize, stageSeed),
		workers: workers,
	}
}

// Network returns the network being trained.
func (t *Trainer) Network() *nn.Network { return t.net }

// TrainEpoch runs one epoch over the examples: per batch, a parallel
// forward pass, cross-entropy deltas per sample, batch-hard triplet deltas
// over the embeddings, a parallel backward pass, and one SGD step.
func (t *Trainer) TrainEpoch(ctx context.Context, examples []Example) (*Accumulator, error) {
	acc := NewAccumulator()

	for _, batchIdx := range t.batcher.Batches(len(examples)) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		batch := make([]Example, len(batchIdx))
		for i, idx := range batchIdx {
			batch[i] = examples[idx]
		}

		results, err := t.parallelForward(ctx, batch)
		if err != nil {
			return nil, errors.Wrap(err, "forward pass")
		}

		embeddings := make([][]float64, len(batch))
		labels := make([]int, len(batch))
		for i := range batch {
			embeddings[i] = results[i].embedding
			labels[i] = batch[i].Label
		}
		tripletCost, tripletDeltas, active := t.triplet.Batch(embeddings, labels)

		deltas := make([]nn.SampleDeltas, len(batch))
		var ceCost, correct float64
		for i := range batch {
			cost, d := loss.WeightedCrossEntropy(results[i].logits, batch[i].Label, batch[i].Weight)
			ceCost += cost
			deltas[i] = nn.SampleDeltas{Logits: d, Embedding: tripletDeltas[i]}

			if argmax(results[i].logits) == batch[i].Label {
				correct++
			}
		}

		grads, err := t.parallelGradients(ctx, batch, deltas)
		if err != nil {
			return nil, errors.Wrap(err, "backward pass")
		}
		t.opt.Step(t.net, grads)

		n := float64(len(batch))
		acc.Add(len(batch), map[string]float64{
			"loss":     ceCost/n + tripletCost,
			"accuracy": correct / n,
			"triplet":  tripletCost,
			"active":   float64(active) / n,
		})
	}

	return acc, nil
}

// Evaluate computes mean cross-entropy loss and accuracy over a sample set
// without updating the network.
func (t *Trainer) Evaluate(ctx context.Context, samples []dataset.Sample) (meanLoss, accuracy float64, err error) {
	if len(samples) == 0 {
		return 0, 0, nil
	}
	examples := FromSamples(samples, 1)

	results, err := t.parallelForward(ctx, examples)
	if err != nil {
		return 0, 0, err
	}

	var totalLoss, correct float64
	for i, r := range results {
		cost, _ := loss.CrossEntropy(r.logits, examples[i].Label)
		totalLoss += cost
		if argmax(r.logits) == examples[i].Label {
			correct++
		}
	}
	n := float64(len(samples))
	return totalLoss / n, correct / n, nil
}

// StageConfig describes one training stage.
type StageConfig struct {
	Name           string
	Epochs         int
	LogPath        string
	CheckpointPath string // empty disables best-checkpoint saving

	RunID       string
	Experiment  string
	DatasetName string

	// Meta is extra slog key/value pairs recorded on the stage's opening
	// log record, such as pseudo-label retention counts.
	Meta []any
}

// StageResult summarizes a finished stage.
type StageResult struct {
	Epochs             int
	BestEpoch          int
	BestAccuracy       float64
	FinalTrainLoss     float64
	FinalTrainAccuracy float64
}

// RunStage trains for the configured number of epochs, validating after
// each one, logging a JSON record per epoch, and checkpointing whenever
// validation accuracy improves.
func (t *Trainer) RunStage(ctx context.Context, stage StageConfig, train []Example, validation []dataset.Sample) (*StageResult, error) {
	logger := ctxlog.FromContext(ctx).With("stage", stage.Name)

	stageLog, err := NewStageLogger(stage.LogPath, stage.Name, stage.RunID, stage.Experiment)
	if err != nil {
		return nil, err
	}
	defer stageLog.Close()

	logger.Info("Stage started.",
		"epochs", stage.Epochs, "train", len(train), "validation", len(validation))
	stageLog.Event("stage_started", append([]any{
		"epochs", stage.Epochs, "train", len(train), "validation", len(validation),
	}, stage.Meta...)...)

	result := &StageResult{Epochs: stage.Epochs, BestEpoch: -1, BestAccuracy: -1}
	for epoch := 1; epoch <= stage.Epochs; epoch++ {
		acc, err := t.TrainEpoch(ctx, train)
		if err != nil {
			return nil, errors.Wrapf(err, "epoch %d of stage %s", epoch, stage.Name)
		}

		valLoss, valAcc, err := t.Evaluate(ctx, validation)
		if err != nil {
			return nil, errors.Wrapf(err, "validating epoch %d of stage %s", epoch, stage.Name)
		}

		m := EpochMetrics{
			Epoch:              epoch,
			TrainLoss:          acc.Mean("loss"),
			TrainAccuracy:      acc.Mean("accuracy"),
			TripletLoss:        acc.Mean("triplet"),
			ValidationLoss:     valLoss,
			ValidationAccuracy: valAcc,
		}
		stageLog.Epoch(m)
		logger.Debug("Epoch finished.",
			"epoch", epoch, "train_loss", m.TrainLoss, "validation_accuracy", valAcc)

		result.FinalTrainLoss = m.TrainLoss
		result.FinalTrainAccuracy = m.TrainAccuracy

		if valAcc > result.BestAccuracy {
			result.BestAccuracy = valAcc
			result.BestEpoch = epoch
			if stage.CheckpointPath != "" {
				err := checkpoint.Save(stage.CheckpointPath, t.net, checkpoint.Metadata{
					RunID:              stage.RunID,
					Experiment:         stage.Experiment,
					Dataset:            stage.DatasetName,
					Stage:              stage.Name,
					Epoch:              epoch,
					ValidationAccuracy: valAcc,
					CreatedAt:          nowUTC(),
				})
				if err != nil {
					return nil, errors.Wrapf(err, "checkpointing epoch %d of stage %s", epoch, stage.Name)
				}
				logger.Debug("Checkpoint saved.", "path", stage.CheckpointPath, "validation_accuracy", valAcc)
			}
		}
	}

	logger.Info("Stage finished.",
		"best_epoch", result.BestEpoch, "best_validation_accuracy", result.BestAccuracy)
	return result, nil
}

func nowUTC() time.Time { return time.Now().UTC() }

func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}
