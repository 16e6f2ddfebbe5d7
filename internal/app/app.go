package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/selftraingo/internal/config"
	"github.com/vk/selftraingo/internal/ctxlog"
	"github.com/vk/selftraingo/internal/dataset"
	"github.com/vk/selftraingo/internal/pipeline"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW       io.Writer
	logger     *slog.Logger
	datasets   *dataset.Registry
	methods    *pipeline.Registry
	experiment *config.Experiment
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger and registries, and
// the selected experiment loaded and validated. Registries may be nil, in
// which case the built-in datasets and methods are used.
func NewApp(outW io.Writer, appConfig *Config, datasets *dataset.Registry, methods *pipeline.Registry) *App {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	if datasets == nil {
		datasets = dataset.DefaultRegistry()
	}
	if methods == nil {
		methods = pipeline.DefaultRegistry()
	}

	experiments, err := config.NewLoader().Load(ctx, appConfig.ExperimentPath)
	if err != nil {
		// A failure to load the experiment is a fatal startup error.
		panic(fmt.Errorf("failed to load experiment configuration: %w", err))
	}

	experiment, err := selectExperiment(experiments, appConfig.ExperimentName)
	if err != nil {
		panic(err)
	}

	// CLI overrides are applied before re-validation so an invalid override
	// fails just like an invalid file.
	if appConfig.DataRoot != "" {
		experiment.Dataset.Root = appConfig.DataRoot
	}
	if appConfig.Method != "" {
		experiment.Method = config.Method(appConfig.Method)
	}
	if err := config.Validate(experiment); err != nil {
		panic(fmt.Errorf("experiment %q invalid after CLI overrides: %w", experiment.Name, err))
	}
	logger.Debug("Experiment loaded and validated.", "experiment", experiment.Name, "method", experiment.Method)

	return &App{
		outW:       outW,
		logger:     logger,
		datasets:   datasets,
		methods:    methods,
		experiment: experiment,
	}
}

// Experiment returns the selected experiment. This is primarily for testing.
func (a *App) Experiment() *config.Experiment {
	return a.experiment
}

// selectExperiment picks the experiment to run: the named one, or the only
// one when the files define exactly one.
func selectExperiment(experiments []*config.Experiment, name string) (*config.Experiment, error) {
	if name == "" {
		if len(experiments) == 1 {
			return experiments[0], nil
		}
		names := make([]string, len(experiments))
		for i, exp := range experiments {
			names[i] = exp.Name
		}
		return nil, fmt.Errorf("%d experiments defined, select one with -experiment: %v", len(experiments), names)
	}
	for _, exp := range experiments {
		if exp.Name == name {
			return exp, nil
		}
	}
	return nil, fmt.Errorf("no experiment named %q found", name)
}
