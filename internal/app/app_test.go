package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/selftraingo/internal/config"
	"github.com/vk/selftraingo/internal/testutil"
)

func validConfig(path string) *Config {
	return &Config{
		ExperimentPath: path,
		LogFormat:      "text",
		LogLevel:       "error",
		Workers:        1,
	}
}

func TestNewApp_LoadsSoleExperiment(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.WriteExperimentFile(t, dir, "exp.hcl",
		testutil.ExperimentHCL("solo", "cifar10", "/data/cifar10", dir))

	out := &testutil.SafeBuffer{}
	a := NewApp(out, validConfig(dir), nil, nil)

	require.NotNil(t, a.Experiment())
	assert.Equal(t, "solo", a.Experiment().Name)
	assert.Equal(t, config.MethodPseudoLabel, a.Experiment().Method)
}

func TestNewApp_SelectsNamedExperiment(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.WriteExperimentFile(t, dir, "a.hcl",
		testutil.ExperimentHCL("first", "cifar10", "/data", dir))
	testutil.WriteExperimentFile(t, dir, "b.hcl",
		testutil.ExperimentHCL("second", "svhn", "/data", dir))

	cfg := validConfig(dir)
	cfg.ExperimentName = "second"

	a := NewApp(&testutil.SafeBuffer{}, cfg, nil, nil)
	assert.Equal(t, "second", a.Experiment().Name)
	assert.Equal(t, "svhn", a.Experiment().Dataset.Name)
}

func TestNewApp_AmbiguousExperimentPanics(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.WriteExperimentFile(t, dir, "a.hcl",
		testutil.ExperimentHCL("first", "cifar10", "/data", dir))
	testutil.WriteExperimentFile(t, dir, "b.hcl",
		testutil.ExperimentHCL("second", "svhn", "/data", dir))

	assert.Panics(t, func() {
		NewApp(&testutil.SafeBuffer{}, validConfig(dir), nil, nil)
	})
}

func TestNewApp_UnknownExperimentNamePanics(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.WriteExperimentFile(t, dir, "exp.hcl",
		testutil.ExperimentHCL("solo", "cifar10", "/data", dir))

	cfg := validConfig(dir)
	cfg.ExperimentName = "missing"

	assert.Panics(t, func() {
		NewApp(&testutil.SafeBuffer{}, cfg, nil, nil)
	})
}

func TestNewApp_InvalidConfigPanics(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.WriteExperimentFile(t, dir, "broken.hcl", `experiment "broken" {`)

	assert.Panics(t, func() {
		NewApp(&testutil.SafeBuffer{}, validConfig(dir), nil, nil)
	})
}

func TestNewApp_AppliesCLIOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.WriteExperimentFile(t, dir, "exp.hcl",
		testutil.ExperimentHCL("solo", "cifar10", "/original/root", dir))

	cfg := validConfig(dir)
	cfg.DataRoot = "/override/root"
	cfg.Method = "noisy_student"

	a := NewApp(&testutil.SafeBuffer{}, cfg, nil, nil)
	assert.Equal(t, "/override/root", a.Experiment().Dataset.Root)
	assert.Equal(t, config.MethodNoisyStudent, a.Experiment().Method)
}

func TestNewApp_InvalidOverridePanics(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.WriteExperimentFile(t, dir, "exp.hcl",
		testutil.ExperimentHCL("solo", "cifar10", "/data", dir))

	cfg := validConfig(dir)
	cfg.Method = "mean_teacher"

	assert.Panics(t, func() {
		NewApp(&testutil.SafeBuffer{}, cfg, nil, nil)
	})
}

func TestNewConfig(t *testing.T) {
	t.Parallel()

	_, err := NewConfig(Config{ExperimentPath: "", Workers: 1})
	require.Error(t, err)

	_, err = NewConfig(Config{ExperimentPath: "exp.hcl", Workers: 0})
	require.Error(t, err)

	cfg, err := NewConfig(Config{ExperimentPath: "exp.hcl", Workers: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Workers)
}
