// Package config loads and validates experiment files.
//
// An experiment is declared in HCL and describes one semi-supervised
// training run end to end: which dataset to use and how to split it, the
// model and optimizer hyperparameters, and where each stage writes its
// logs, checkpoints, and the final model. The HCL-facing structs live in
// schema.go; Loader translates them into the validated, format-agnostic
// Experiment model consumed by the rest of the application.
package config
