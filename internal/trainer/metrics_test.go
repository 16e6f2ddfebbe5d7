package trainer

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccumulator_WeightedMean(t *testing.T) {
	t.Parallel()

	acc := NewAccumulator()
	acc.Add(10, map[string]float64{"loss": 2.0, "accuracy": 0.5})
	acc.Add(5, map[string]float64{"loss": 5.0, "accuracy": 1.0})

	// (10*2 + 5*5) / 15 and (10*0.5 + 5*1) / 15.
	assert.InDelta(t, 3.0, acc.Mean("loss"), 1e-12)
	assert.InDelta(t, 10.0/15, acc.Mean("accuracy"), 1e-12)
	assert.Equal(t, 15, acc.Count())
}

func TestAccumulator_Empty(t *testing.T) {
	t.Parallel()

	acc := NewAccumulator()
	assert.Zero(t, acc.Mean("anything"))
	assert.Zero(t, acc.Count())
}

func TestAccumulator_Concurrent(t *testing.T) {
	t.Parallel()

	acc := NewAccumulator()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				acc.Add(1, map[string]float64{"loss": 1})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 800, acc.Count())
	assert.InDelta(t, 1.0, acc.Mean("loss"), 1e-12)
}

func TestStageLogger_WritesJSONRecords(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "stage.log")
	l, err := NewStageLogger(path, "finetune", "run-9", "exp-a")
	require.NoError(t, err)

	l.Event("stage_started", "train", 100)
	l.Epoch(EpochMetrics{
		Epoch:              1,
		TrainLoss:          1.5,
		TrainAccuracy:      0.4,
		TripletLoss:        0.2,
		ValidationLoss:     1.7,
		ValidationAccuracy: 0.35,
	})
	require.NoError(t, l.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var records []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		records = append(records, rec)
	}
	require.NoError(t, scanner.Err())
	require.Len(t, records, 2)

	assert.Equal(t, "stage_started", records[0]["msg"])
	assert.Equal(t, "run-9", records[0]["run_id"])
	assert.Equal(t, "exp-a", records[0]["experiment"])
	assert.Equal(t, "finetune", records[0]["stage"])
	assert.Equal(t, float64(100), records[0]["train"])

	assert.Equal(t, "epoch", records[1]["msg"])
	assert.Equal(t, float64(1), records[1]["epoch"])
	assert.Equal(t, 1.5, records[1]["train_loss"])
	assert.Equal(t, 0.35, records[1]["validation_accuracy"])
}

func TestStageLogger_Appends(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "rounds.log")

	for round := 1; round <= 2; round++ {
		l, err := NewStageLogger(path, "student", "run-1", "exp")
		require.NoError(t, err)
		l.Event("round", "n", round)
		require.NoError(t, l.Close())
	}

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"n":1`)
	assert.Contains(t, string(raw), `"n":2`)
}

func TestStageLogger_CreatesParentDir(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "deep", "nested", "stage.log")
	l, err := NewStageLogger(path, "s", "r", "e")
	require.NoError(t, err)
	require.NoError(t, l.Close())

	_, err = os.Stat(path)
	require.NoError(t, err)
}
