package config

import (
	"errors"
	"fmt"
)

// knownMethods is the set of pipeline variants experiments may select.
var knownMethods = map[Method]bool{
	MethodPseudoLabel:  true,
	MethodNoisyStudent: true,
}

// Validate checks an Experiment for semantic errors: unknown names,
// fractions outside [0,1], non-positive counts, and missing output paths.
// It reports every violation at once rather than stopping at the first.
func Validate(exp *Experiment) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if !knownMethods[exp.Method] {
		add("unknown method %q (want pseudo_label or noisy_student)", exp.Method)
	}

	d := exp.Dataset
	if d.Name == "" {
		add("dataset.name must not be empty")
	}
	if d.Root == "" {
		add("dataset.root must not be empty")
	}
	if d.LabelFraction < 0 || d.LabelFraction > 1 {
		add("dataset.label_fraction must be in [0,1], got %v", d.LabelFraction)
	}
	if d.ValidationFraction < 0 || d.ValidationFraction > 1 {
		add("dataset.validation_fraction must be in [0,1], got %v", d.ValidationFraction)
	}
	if d.LabelFraction >= 0 && d.ValidationFraction >= 0 && d.LabelFraction+d.ValidationFraction > 1 {
		add("dataset.label_fraction + dataset.validation_fraction must not exceed 1, got %v", d.LabelFraction+d.ValidationFraction)
	}

	m := exp.Model
	if m.Epochs <= 0 {
		add("model.epochs must be positive, got %d", m.Epochs)
	}
	if m.BatchSize <= 0 {
		add("model.batch_size must be positive, got %d", m.BatchSize)
	}
	if m.Embedding <= 0 {
		add("model.embedding must be positive, got %d", m.Embedding)
	}
	for i, width := range m.Hidden {
		if width <= 0 {
			add("model.hidden[%d] must be positive, got %d", i, width)
		}
	}
	if m.Path == "" {
		add("model.path must not be empty")
	}

	o := exp.Optimizer
	if o.LearningRate <= 0 {
		add("optimizer.learning_rate must be positive, got %v", o.LearningRate)
	}
	if o.WeightDecay < 0 {
		add("optimizer.weight_decay must not be negative, got %v", o.WeightDecay)
	}
	if o.Momentum < 0 || o.Momentum >= 1 {
		add("optimizer.momentum must be in [0,1), got %v", o.Momentum)
	}
	if o.Nesterov && o.Momentum == 0 {
		add("optimizer.nesterov requires a non-zero momentum")
	}

	if exp.Loss.Margin < 0 {
		add("loss.margin must not be negative, got %v", exp.Loss.Margin)
	}

	if exp.FineTune.LogFile == "" {
		add("finetune.log_file must not be empty")
	}
	if exp.FineTune.Checkpoint == "" {
		add("finetune.checkpoint must not be empty")
	}

	p := exp.Pseudo
	if p.Threshold < 0 || p.Threshold > 1 {
		add("pseudo.threshold must be in [0,1], got %v", p.Threshold)
	}
	if p.LogFile == "" {
		add("pseudo.log_file must not be empty")
	}
	if p.Rounds <= 0 {
		add("pseudo.rounds must be positive, got %d", p.Rounds)
	}
	if exp.Method == MethodPseudoLabel && p.Rounds != 1 {
		add("pseudo.rounds is only meaningful with method = \"noisy_student\"")
	}

	return errors.Join(errs...)
}
