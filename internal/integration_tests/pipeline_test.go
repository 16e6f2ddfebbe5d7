package integration_tests

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/selftraingo/internal/app"
	"github.com/vk/selftraingo/internal/checkpoint"
	"github.com/vk/selftraingo/internal/testutil"
)

func appConfig(path string) *app.Config {
	return &app.Config{
		ExperimentPath: path,
		LogFormat:      "text",
		LogLevel:       "error",
		Workers:        2,
	}
}

// TestPipeline_PseudoLabelEndToEnd runs the full default pipeline against a
// synthetic dataset in the CIFAR-10 binary layout: fine-tune, pseudo-label,
// retrain, and final model save.
func TestPipeline_PseudoLabelEndToEnd(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	dataRoot := testutil.WriteCIFAR10Dir(t, 4, 20, 1)
	outDir := t.TempDir()
	expPath := testutil.WriteExperimentFile(t, t.TempDir(), "exp.hcl",
		testutil.ExperimentHCL("cifar10_e2e", "cifar10", dataRoot, outDir))

	cfg := appConfig(expPath)
	out := &testutil.SafeBuffer{}

	// --- Act ---
	a := app.NewApp(out, cfg, nil, nil)
	err := a.Run(context.Background(), cfg)

	// --- Assert ---
	require.NoError(t, err)

	// The fine-tune stage logged epochs and checkpointed its best weights.
	ftLog, err := os.ReadFile(filepath.Join(outDir, "finetune.log"))
	require.NoError(t, err)
	assert.Contains(t, string(ftLog), "stage_started")
	assert.Contains(t, string(ftLog), `"stage":"finetune"`)
	assert.Contains(t, string(ftLog), "validation_accuracy")

	_, ftMeta, err := checkpoint.Load(filepath.Join(outDir, "finetune.ckpt"))
	require.NoError(t, err)
	assert.Equal(t, "finetune", ftMeta.Stage)
	assert.Equal(t, "cifar10_e2e", ftMeta.Experiment)
	assert.Equal(t, "cifar10", ftMeta.Dataset)

	// The retraining stage logged its pseudo-label statistics.
	psLog, err := os.ReadFile(filepath.Join(outDir, "pseudo.log"))
	require.NoError(t, err)
	assert.Contains(t, string(psLog), `"stage":"retrain"`)
	assert.Contains(t, string(psLog), "pseudo_retained")
	assert.Contains(t, string(psLog), "pseudo_discarded")

	// The final model is loadable and belongs to the same run.
	net, meta, err := checkpoint.Load(filepath.Join(outDir, "final.model"))
	require.NoError(t, err)
	assert.Equal(t, "retrain", meta.Stage)
	assert.Equal(t, ftMeta.RunID, meta.RunID)
	assert.NotEmpty(t, meta.RunID)
	assert.Equal(t, 10, net.Config().Classes)
}

// TestPipeline_NoisyStudentEndToEnd overrides the method from the CLI side
// and checks that the student round trains and saves the final model.
func TestPipeline_NoisyStudentEndToEnd(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	dataRoot := testutil.WriteCIFAR10Dir(t, 4, 20, 2)
	outDir := t.TempDir()
	expPath := testutil.WriteExperimentFile(t, t.TempDir(), "exp.hcl",
		testutil.ExperimentHCL("cifar10_ns", "cifar10", dataRoot, outDir))

	cfg := appConfig(expPath)
	cfg.Method = "noisy_student"
	out := &testutil.SafeBuffer{}

	// --- Act ---
	a := app.NewApp(out, cfg, nil, nil)
	err := a.Run(context.Background(), cfg)

	// --- Assert ---
	require.NoError(t, err)

	psLog, err := os.ReadFile(filepath.Join(outDir, "pseudo.log"))
	require.NoError(t, err)
	assert.Contains(t, string(psLog), `"stage":"student_round_1"`)

	_, meta, err := checkpoint.Load(filepath.Join(outDir, "final.model"))
	require.NoError(t, err)
	assert.Equal(t, "student_round_1", meta.Stage)
}

// TestPipeline_NoisyStudentMultipleRounds runs two student rounds; both
// rounds append to the shared retraining log.
func TestPipeline_NoisyStudentMultipleRounds(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	dataRoot := testutil.WriteCIFAR10Dir(t, 3, 15, 3)
	outDir := t.TempDir()

	content := fmt.Sprintf(`
experiment "cifar10_rounds" {
  method = "noisy_student"

  dataset {
    name                = "cifar10"
    root                = %q
    label_fraction      = 0.4
    validation_fraction = 0.2
    seed                = 11
  }

  model {
    epochs     = 1
    batch_size = 8
    hidden     = [16]
    embedding  = 8
    path       = %q
  }

  optimizer {
    learning_rate = 0.05
    weight_decay  = 0.0001
  }

  loss { margin = 0.5 }

  finetune {
    log_file   = %q
    checkpoint = %q
  }

  pseudo {
    threshold = 0.4
    log_file  = %q
    rounds    = 2
  }
}
`, dataRoot,
		filepath.Join(outDir, "final.model"),
		filepath.Join(outDir, "finetune.log"),
		filepath.Join(outDir, "finetune.ckpt"),
		filepath.Join(outDir, "pseudo.log"))

	expPath := testutil.WriteExperimentFile(t, t.TempDir(), "exp.hcl", content)
	cfg := appConfig(expPath)

	// --- Act ---
	a := app.NewApp(&testutil.SafeBuffer{}, cfg, nil, nil)
	err := a.Run(context.Background(), cfg)

	// --- Assert ---
	require.NoError(t, err)

	psLog, err := os.ReadFile(filepath.Join(outDir, "pseudo.log"))
	require.NoError(t, err)
	assert.Contains(t, string(psLog), `"stage":"student_round_1"`)
	assert.Contains(t, string(psLog), `"stage":"student_round_2"`)

	_, meta, err := checkpoint.Load(filepath.Join(outDir, "final.model"))
	require.NoError(t, err)
	assert.Equal(t, "student_round_2", meta.Stage)
}

// TestPipeline_FullThresholdRetrainsLabeledOnly sets the confidence
// threshold to 1.0 so every pseudo-label is discarded; the pipeline warns
// and retrains on the labeled partition alone.
func TestPipeline_FullThresholdRetrainsLabeledOnly(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	dataRoot := testutil.WriteCIFAR10Dir(t, 3, 15, 4)
	outDir := t.TempDir()

	content := fmt.Sprintf(`
experiment "cifar10_strict" {
  dataset {
    name                = "cifar10"
    root                = %q
    label_fraction      = 0.4
    validation_fraction = 0.2
    seed                = 5
  }

  model {
    epochs     = 1
    batch_size = 8
    hidden     = [16]
    embedding  = 8
    path       = %q
  }

  optimizer {
    learning_rate = 0.05
    weight_decay  = 0.0001
  }

  loss { margin = 0.5 }

  finetune {
    log_file   = %q
    checkpoint = %q
  }

  pseudo {
    threshold = 1.0
    log_file  = %q
  }
}
`, dataRoot,
		filepath.Join(outDir, "final.model"),
		filepath.Join(outDir, "finetune.log"),
		filepath.Join(outDir, "finetune.ckpt"),
		filepath.Join(outDir, "pseudo.log"))

	expPath := testutil.WriteExperimentFile(t, t.TempDir(), "exp.hcl", content)
	cfg := appConfig(expPath)
	cfg.LogLevel = "warn"
	out := &testutil.SafeBuffer{}

	// --- Act ---
	a := app.NewApp(out, cfg, nil, nil)
	err := a.Run(context.Background(), cfg)

	// --- Assert ---
	require.NoError(t, err)
	assert.Contains(t, out.String(), "No pseudo-labels met the confidence threshold")

	psLog, err := os.ReadFile(filepath.Join(outDir, "pseudo.log"))
	require.NoError(t, err)
	assert.Contains(t, string(psLog), `"pseudo_retained":0`)

	_, _, err = checkpoint.Load(filepath.Join(outDir, "final.model"))
	require.NoError(t, err)
}

// TestPipeline_CancelledContext aborts the run between batches.
func TestPipeline_CancelledContext(t *testing.T) {
	t.Parallel()

	dataRoot := testutil.WriteCIFAR10Dir(t, 3, 15, 6)
	outDir := t.TempDir()
	expPath := testutil.WriteExperimentFile(t, t.TempDir(), "exp.hcl",
		testutil.ExperimentHCL("cifar10_cancel", "cifar10", dataRoot, outDir))

	cfg := appConfig(expPath)
	a := app.NewApp(&testutil.SafeBuffer{}, cfg, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := a.Run(ctx, cfg)
	require.Error(t, err)
}
