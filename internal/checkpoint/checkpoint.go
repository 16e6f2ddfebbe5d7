// Package checkpoint saves and restores model weights. Snapshots are
// msgpack-encoded and carry enough metadata to tell runs, stages, and
// architectures apart when a directory accumulates several of them.
package checkpoint

import (
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/vk/selftraingo/internal/fsutil"
	"github.com/vk/selftraingo/internal/nn"
)

// Metadata identifies a snapshot.
type Metadata struct {
	RunID              string    `msgpack:"run_id"`
	Experiment         string    `msgpack:"experiment"`
	Dataset            string    `msgpack:"dataset"`
	Stage              string    `msgpack:"stage"`
	Epoch              int       `msgpack:"epoch"`
	ValidationAccuracy float64   `msgpack:"validation_accuracy"`
	CreatedAt          time.Time `msgpack:"created_at"`
}

// NewRunID returns a fresh identifier shared by all snapshots of one run.
func NewRunID() string { return uuid.NewString() }

// snapshot is the on-disk layout. Weights are stored row-major per layer.
type snapshot struct {
	Meta    Metadata    `msgpack:"meta"`
	Inputs  int         `msgpack:"inputs"`
	Hidden  []int       `msgpack:"hidden"`
	Embed   int         `msgpack:"embedding"`
	Classes int         `msgpack:"classes"`
	Seed    int64       `msgpack:"seed"`
	Weights [][]float64 `msgpack:"weights"`
	Biases  [][]float64 `msgpack:"biases"`
}

// Save writes the network and metadata to path, creating parent directories
// as needed. The file is written to a temporary sibling and renamed so a
// crash mid-write cannot leave a truncated checkpoint behind.
func Save(path string, net *nn.Network, meta Metadata) error {
	cfg := net.Config()
	snap := snapshot{
		Meta:    meta,
		Inputs:  cfg.Inputs,
		Hidden:  cfg.Hidden,
		Embed:   cfg.Embedding,
		Classes: cfg.Classes,
		Seed:    cfg.Seed,
	}
	for _, layer := range net.Layers() {
		raw := layer.W.RawMatrix()
		snap.Weights = append(snap.Weights, append([]float64(nil), raw.Data...))
		snap.Biases = append(snap.Biases, append([]float64(nil), layer.B.RawVector().Data...))
	}

	encoded, err := msgpack.Marshal(&snap)
	if err != nil {
		return errors.Wrap(err, "encoding checkpoint")
	}

	if err := fsutil.EnsureParentDir(path); err != nil {
		return errors.Wrapf(err, "creating checkpoint directory for %s", path)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "creating temporary checkpoint file")
	}
	if _, err := tmp.Write(encoded); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrapf(err, "writing checkpoint %s", path)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrapf(err, "closing checkpoint %s", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrapf(err, "renaming checkpoint into place at %s", path)
	}
	return nil
}

// Load reads a snapshot and rebuilds the network it describes.
func Load(path string) (*nn.Network, *Metadata, error) {
	encoded, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "reading checkpoint %s", path)
	}

	var snap snapshot
	if err := msgpack.Unmarshal(encoded, &snap); err != nil {
		return nil, nil, errors.Wrapf(err, "decoding checkpoint %s", path)
	}

	net, err := nn.New(nn.Config{
		Inputs:    snap.Inputs,
		Hidden:    snap.Hidden,
		Embedding: snap.Embed,
		Classes:   snap.Classes,
		Seed:      snap.Seed,
	})
	if err != nil {
		return nil, nil, errors.Wrapf(err, "checkpoint %s describes an invalid architecture", path)
	}

	layers := net.Layers()
	if len(snap.Weights) != len(layers) || len(snap.Biases) != len(layers) {
		return nil, nil, errors.Errorf("checkpoint %s has %d weight layers, architecture wants %d", path, len(snap.Weights), len(layers))
	}
	for i, layer := range layers {
		raw := layer.W.RawMatrix()
		if len(snap.Weights[i]) != len(raw.Data) {
			return nil, nil, errors.Errorf("checkpoint %s layer %d has %d weights, architecture wants %d", path, i, len(snap.Weights[i]), len(raw.Data))
		}
		copy(raw.Data, snap.Weights[i])

		bias := layer.B.RawVector().Data
		if len(snap.Biases[i]) != len(bias) {
			return nil, nil, errors.Errorf("checkpoint %s layer %d has %d biases, architecture wants %d", path, i, len(snap.Biases[i]), len(bias))
		}
		copy(bias, snap.Biases[i])
	}

	meta := snap.Meta
	return net, &meta, nil
}
