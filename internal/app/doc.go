// Package app owns the application lifecycle: it builds the logger, loads
// and validates the experiment, wires the dataset and method registries,
// and runs the selected pipeline.
package app
