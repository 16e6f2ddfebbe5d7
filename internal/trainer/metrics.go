package trainer

import (
	"log/slog"
	"os"
	"sync"

	"github.com/pkg/errors"

	"github.com/vk/selftraingo/internal/fsutil"
)

// Accumulator sums weighted metric contributions across batches so that an
// epoch's averages come out right even with a short final batch.
type Accumulator struct {
	mu     sync.Mutex
	sums   map[string]float64
	weight float64
}

// NewAccumulator creates an empty Accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{sums: make(map[string]float64)}
}

// Add records the given metric values for `count` samples. Values are
// treated as per-sample means over those samples.
func (a *Accumulator) Add(count int, values map[string]float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	w := float64(count)
	for k, v := range values {
		a.sums[k] += v * w
	}
	a.weight += w
}

// Mean returns the weighted mean of a metric, or 0 before any Add.
func (a *Accumulator) Mean(name string) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.weight == 0 {
		return 0
	}
	return a.sums[name] / a.weight
}

// Count returns the number of samples recorded so far.
func (a *Accumulator) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return int(a.weight)
}

// EpochMetrics is the summary of one epoch.
type EpochMetrics struct {
	Epoch              int
	TrainLoss          float64
	TrainAccuracy      float64
	TripletLoss        float64
	ValidationLoss     float64
	ValidationAccuracy float64
}

// StageLogger writes one JSON record per epoch to the log file an
// experiment configures for the stage.
type StageLogger struct {
	file   *os.File
	logger *slog.Logger
}

// NewStageLogger opens the stage's log file in append mode (noisy-student
// rounds share one retraining log) and returns a logger whose records carry
// the run and stage identity.
func NewStageLogger(path, stage, runID, experiment string) (*StageLogger, error) {
	if err := fsutil.EnsureParentDir(path); err != nil {
		return nil, errors.Wrapf(err, "creating log directory for %s", path)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "opening stage log %s", path)
	}
	logger := slog.New(slog.NewJSONHandler(file, nil)).With(
		"run_id", runID,
		"experiment", experiment,
		"stage", stage,
	)
	return &StageLogger{file: file, logger: logger}, nil
}

// Epoch writes one epoch record.
func (l *StageLogger) Epoch(m EpochMetrics) {
	l.logger.Info("epoch",
		"epoch", m.Epoch,
		"train_loss", m.TrainLoss,
		"train_accuracy", m.TrainAccuracy,
		"triplet_loss", m.TripletLoss,
		"validation_loss", m.ValidationLoss,
		"validation_accuracy", m.ValidationAccuracy,
	)
}

// Event writes an arbitrary stage-level record, such as pseudo-label
// retention counts.
func (l *StageLogger) Event(msg string, args ...any) {
	l.logger.Info(msg, args...)
}

// Close flushes and closes the underlying file.
func (l *StageLogger) Close() error {
	return l.file.Close()
}
