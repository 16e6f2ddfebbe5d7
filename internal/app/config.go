package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	ExperimentPath string // .hcl file or directory of .hcl files
	ExperimentName string // selects one experiment when several are defined
	DataRoot       string // overrides dataset.root from the experiment file
	Method         string // overrides method from the experiment file

	LogFormat string
	LogLevel  string
	Workers   int
}

// NewConfig validates and returns the application configuration.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.ExperimentPath == "" {
		return nil, errors.New("ExperimentPath is a required configuration field and cannot be empty")
	}
	if cfg.Workers <= 0 {
		return nil, errors.New("Workers must be positive")
	}
	return &cfg, nil
}
