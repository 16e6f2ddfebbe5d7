package config

// Method names the pipeline variant an experiment runs with.
type Method string

const (
	// MethodPseudoLabel is the single-round self-training flow:
	// fine-tune on labeled data, pseudo-label the unlabeled pool once,
	// then retrain on the union.
	MethodPseudoLabel Method = "pseudo_label"

	// MethodNoisyStudent repeats the pseudo-label/retrain cycle, feeding
	// noised unlabeled inputs to each student round.
	MethodNoisyStudent Method = "noisy_student"
)

// Experiment is the unified, format-agnostic representation of one training
// run, with all defaults applied. It is immutable after Loader.Load returns.
type Experiment struct {
	Name      string
	Method    Method
	Dataset   DatasetConfig
	Model     ModelConfig
	Optimizer OptimizerConfig
	Loss      LossConfig
	FineTune  FineTuneConfig
	Pseudo    PseudoConfig
}

// DatasetConfig selects a dataset and describes the labeled/unlabeled/
// validation split applied to it.
type DatasetConfig struct {
	// Name is one of the registered dataset loaders: cifar10, cifar100, svhn.
	Name string

	// Root is the directory holding the dataset's binary batch files.
	Root string

	// LabelFraction is the proportion of the training set treated as
	// labeled, in [0,1]. The remainder (after validation) is the unlabeled
	// pool.
	LabelFraction float64

	// ValidationFraction is the proportion reserved for validation, in [0,1].
	ValidationFraction float64

	// Seed drives the shuffle that determines the split. Runs with the same
	// seed and fractions produce identical partitions.
	Seed int64
}

// ModelConfig holds the classifier shape and training duration.
type ModelConfig struct {
	Epochs    int
	BatchSize int

	// Hidden lists the widths of the hidden layers between the input and
	// the embedding layer.
	Hidden []int

	// Embedding is the width of the metric-learning embedding the triplet
	// loss operates on.
	Embedding int

	// Path is where the final trained model is saved after the last stage.
	Path string
}

// OptimizerConfig holds the SGD hyperparameters.
type OptimizerConfig struct {
	LearningRate float64
	WeightDecay  float64
	Momentum     float64
	Nesterov     bool
}

// LossConfig holds the margin for the triplet loss term.
type LossConfig struct {
	Margin float64
}

// FineTuneConfig describes the labeled-only training stage.
type FineTuneConfig struct {
	// LogFile receives the stage's per-epoch JSON records.
	LogFile string

	// Checkpoint is where the best-validation weights are saved during the
	// stage and read back before pseudo-labeling.
	Checkpoint string
}

// PseudoConfig describes the pseudo-label and retraining stages.
type PseudoConfig struct {
	// Threshold is the softmax confidence below which a pseudo-label is
	// discarded, in [0,1].
	Threshold float64

	// LogFile receives the retraining stage's per-epoch JSON records.
	LogFile string

	// Rounds is the number of student rounds for the noisy_student method.
	// The pseudo_label method always runs a single round.
	Rounds int
}

// Default hyperparameter values, matching the defaults the experiment format
// documents for runs that omit the optional attributes.
const (
	defaultMethod       = MethodPseudoLabel
	defaultEmbedding    = 64
	defaultMomentum     = 0.9
	defaultPseudoRounds = 1
)

// defaultHidden is the hidden layer stack used when an experiment does not
// specify one.
var defaultHidden = []int{512, 256}
