// Package testutil provides shared helpers for unit and integration tests:
// a thread-safe log buffer, experiment file scaffolding, and synthetic
// dataset writers in the CIFAR binary layout.
package testutil

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// WriteExperimentFile writes an experiment HCL file into dir and returns
// its path.
func WriteExperimentFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// ExperimentHCL renders a minimal but complete experiment block whose
// output paths all live under outDir. Extra attributes can be appended by
// tests that need them.
func ExperimentHCL(name, datasetName, dataRoot, outDir string) string {
	return fmt.Sprintf(`
experiment %q {
  dataset {
    name                = %q
    root                = %q
    label_fraction      = 0.3
    validation_fraction = 0.2
    seed                = 7
  }

  model {
    epochs     = 2
    batch_size = 8
    hidden     = [16]
    embedding  = 8
    path       = %q
  }

  optimizer {
    learning_rate = 0.05
    weight_decay  = 0.0001
  }

  loss {
    margin = 0.5
  }

  finetune {
    log_file   = %q
    checkpoint = %q
  }

  pseudo {
    threshold = 0.6
    log_file  = %q
  }
}
`, name, datasetName, dataRoot,
		filepath.Join(outDir, "final.model"),
		filepath.Join(outDir, "finetune.log"),
		filepath.Join(outDir, "finetune.ckpt"),
		filepath.Join(outDir, "pseudo.log"))
}
