package dataset

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/vk/selftraingo/internal/ctxlog"
)

// Loader reads a dataset from its root directory.
type Loader func(ctx context.Context, root string) (*Dataset, error)

// Registry maps dataset names to their loaders. Each App instance owns its
// own registry so tests can register synthetic datasets in isolation.
type Registry struct {
	loaders map[string]Loader
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{loaders: make(map[string]Loader)}
}

// Register adds a named loader. Registering the same name twice is a
// programmer error and panics.
func (r *Registry) Register(name string, loader Loader) {
	if _, exists := r.loaders[name]; exists {
		panic(fmt.Sprintf("dataset loader %q already registered", name))
	}
	r.loaders[name] = loader
}

// Names returns the registered dataset names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.loaders))
	for name := range r.loaders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open loads the named dataset from root.
func (r *Registry) Open(ctx context.Context, name, root string) (*Dataset, error) {
	loader, ok := r.loaders[name]
	if !ok {
		return nil, fmt.Errorf("unknown dataset %q (registered: %s)", name, strings.Join(r.Names(), ", "))
	}
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading dataset.", "name", name, "root", root)

	ds, err := loader(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("loading dataset %q from %q: %w", name, root, err)
	}
	logger.Info("Dataset loaded.",
		"name", name, "classes", ds.Classes,
		"train", len(ds.Train), "test", len(ds.Test))
	return ds, nil
}

// DefaultRegistry returns a registry with all built-in dataset loaders.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("cifar10", LoadCIFAR10)
	r.Register("cifar100", LoadCIFAR100)
	r.Register("svhn", LoadSVHN)
	return r
}
