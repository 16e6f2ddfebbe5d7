package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/selftraingo/internal/ctxlog"
	"github.com/vk/selftraingo/internal/fsutil"
)

// Loader parses experiment files into validated Experiment models.
type Loader struct {
	parser *hclparse.Parser
}

// NewLoader creates a Loader with a fresh HCL parser.
func NewLoader() *Loader {
	return &Loader{parser: hclparse.NewParser()}
}

// Load reads every .hcl file under each of the given paths (files or
// directories), decodes all experiment blocks, applies defaults, and
// validates each experiment. Experiment names must be unique across files.
func (l *Loader) Load(ctx context.Context, paths ...string) ([]*Experiment, error) {
	logger := ctxlog.FromContext(ctx)

	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("experiment path %q: %w", path, err)
		}
		if info.IsDir() {
			found, err := fsutil.FindFilesByExtension(path, ".hcl")
			if err != nil {
				return nil, fmt.Errorf("scanning %q for experiment files: %w", path, err)
			}
			files = append(files, found...)
		} else {
			files = append(files, path)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .hcl experiment files found in %s", strings.Join(paths, ", "))
	}
	logger.Debug("Discovered experiment files.", "count", len(files))

	evalCtx := newEvalContext()

	var experiments []*Experiment
	seen := map[string]string{}
	for _, file := range files {
		hclFile, diags := l.parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("parsing %s: %w", file, diags)
		}

		var root experimentFile
		if diags := gohcl.DecodeBody(hclFile.Body, evalCtx, &root); diags.HasErrors() {
			return nil, fmt.Errorf("decoding %s: %w", file, diags)
		}

		for _, block := range root.Experiments {
			if prev, dup := seen[block.Name]; dup {
				return nil, fmt.Errorf("experiment %q declared in both %s and %s", block.Name, prev, file)
			}
			seen[block.Name] = file

			exp, err := translate(block)
			if err != nil {
				return nil, fmt.Errorf("experiment %q in %s: %w", block.Name, file, err)
			}
			if err := Validate(exp); err != nil {
				return nil, fmt.Errorf("experiment %q in %s: %w", block.Name, file, err)
			}
			experiments = append(experiments, exp)
		}
	}

	if len(experiments) == 0 {
		return nil, fmt.Errorf("no experiment blocks found in %s", strings.Join(files, ", "))
	}
	logger.Debug("Experiments loaded and validated.", "count", len(experiments))
	return experiments, nil
}

// newEvalContext builds the evaluation context available to expressions in
// experiment files. It exposes the process environment as `env`, so paths
// can be written as "${env.HOME}/datasets/cifar10".
func newEvalContext() *hcl.EvalContext {
	vars := map[string]cty.Value{}
	for _, kv := range os.Environ() {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) == 2 && parts[0] != "" {
			vars[parts[0]] = cty.StringVal(parts[1])
		}
	}
	env := cty.EmptyObjectVal
	if len(vars) > 0 {
		env = cty.ObjectVal(vars)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"env": env},
	}
}

// translate converts a decoded experiment block into the agnostic model,
// filling in defaults for any omitted optional attributes.
func translate(block *experimentBlock) (*Experiment, error) {
	for name, missing := range map[string]bool{
		"dataset":   block.Dataset == nil,
		"model":     block.Model == nil,
		"optimizer": block.Optimizer == nil,
		"loss":      block.Loss == nil,
		"finetune":  block.FineTune == nil,
		"pseudo":    block.Pseudo == nil,
	} {
		if missing {
			return nil, fmt.Errorf("missing required block %q", name)
		}
	}

	exp := &Experiment{
		Name:   block.Name,
		Method: defaultMethod,
		Dataset: DatasetConfig{
			Name:               block.Dataset.Name,
			Root:               block.Dataset.Root,
			LabelFraction:      block.Dataset.LabelFraction,
			ValidationFraction: block.Dataset.ValidationFraction,
			Seed:               block.Dataset.Seed,
		},
		Model: ModelConfig{
			Epochs:    block.Model.Epochs,
			BatchSize: block.Model.BatchSize,
			Hidden:    append([]int(nil), defaultHidden...),
			Embedding: defaultEmbedding,
			Path:      block.Model.Path,
		},
		Optimizer: OptimizerConfig{
			LearningRate: block.Optimizer.LearningRate,
			WeightDecay:  block.Optimizer.WeightDecay,
			Momentum:     defaultMomentum,
		},
		Loss: LossConfig{Margin: block.Loss.Margin},
		FineTune: FineTuneConfig{
			LogFile:    block.FineTune.LogFile,
			Checkpoint: block.FineTune.Checkpoint,
		},
		Pseudo: PseudoConfig{
			Threshold: block.Pseudo.Threshold,
			LogFile:   block.Pseudo.LogFile,
			Rounds:    defaultPseudoRounds,
		},
	}

	if block.Method != nil {
		exp.Method = Method(*block.Method)
	}
	if len(block.Model.Hidden) > 0 {
		exp.Model.Hidden = append([]int(nil), block.Model.Hidden...)
	}
	if block.Model.Embedding != nil {
		exp.Model.Embedding = *block.Model.Embedding
	}
	if block.Optimizer.Momentum != nil {
		exp.Optimizer.Momentum = *block.Optimizer.Momentum
	}
	if block.Optimizer.Nesterov != nil {
		exp.Optimizer.Nesterov = *block.Optimizer.Nesterov
	}
	if block.Pseudo.Rounds != nil {
		exp.Pseudo.Rounds = *block.Pseudo.Rounds
	}
	return exp, nil
}
