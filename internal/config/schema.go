package config

import "github.com/hashicorp/hcl/v2"

// experimentFile represents the top-level structure of an experiment file.
type experimentFile struct {
	Experiments []*experimentBlock `hcl:"experiment,block"`
	Body        hcl.Body           `hcl:",remain"`
}

// experimentBlock is the HCL-facing shape of a single `experiment` block.
// Optional scalars are pointers so that defaults can be distinguished from
// explicit zero values.
type experimentBlock struct {
	Name      string          `hcl:"name,label"`
	Method    *string         `hcl:"method,optional"`
	Dataset   *datasetBlock   `hcl:"dataset,block"`
	Model     *modelBlock     `hcl:"model,block"`
	Optimizer *optimizerBlock `hcl:"optimizer,block"`
	Loss      *lossBlock      `hcl:"loss,block"`
	FineTune  *fineTuneBlock  `hcl:"finetune,block"`
	Pseudo    *pseudoBlock    `hcl:"pseudo,block"`
}

type datasetBlock struct {
	Name               string  `hcl:"name"`
	Root               string  `hcl:"root"`
	LabelFraction      float64 `hcl:"label_fraction"`
	ValidationFraction float64 `hcl:"validation_fraction"`
	Seed               int64   `hcl:"seed"`
}

type modelBlock struct {
	Epochs    int    `hcl:"epochs"`
	BatchSize int    `hcl:"batch_size"`
	Hidden    []int  `hcl:"hidden,optional"`
	Embedding *int   `hcl:"embedding,optional"`
	Path      string `hcl:"path"`
}

type optimizerBlock struct {
	LearningRate float64  `hcl:"learning_rate"`
	WeightDecay  float64  `hcl:"weight_decay"`
	Momentum     *float64 `hcl:"momentum,optional"`
	Nesterov     *bool    `hcl:"nesterov,optional"`
}

type lossBlock struct {
	Margin float64 `hcl:"margin"`
}

type fineTuneBlock struct {
	LogFile    string `hcl:"log_file"`
	Checkpoint string `hcl:"checkpoint"`
}

type pseudoBlock struct {
	Threshold float64 `hcl:"threshold"`
	LogFile   string  `hcl:"log_file"`
	Rounds    *int    `hcl:"rounds,optional"`
}
