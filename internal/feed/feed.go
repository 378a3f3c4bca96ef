package feed

import (
	"context"
	"fmt"
	"time"

	"vcscout/internal/domain"
)

// Request carries all parameters required to execute a feed pull.
type Request struct {
	Lookback time.Duration
	Limit    int
}

// Loader captures a single feed strategy (DefiLlama, future providers).
type Loader interface {
	Name() string
	Load(ctx context.Context, req Request) ([]domain.Raise, error)
}

// Registry keeps a mapping from loader names to their implementations.
type Registry struct {
	loaders map[string]Loader
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{loaders: map[string]Loader{}}
}

// Register adds or replaces a loader implementation.
func (r *Registry) Register(loader Loader) {
	if r.loaders == nil {
		r.loaders = map[string]Loader{}
	}
	r.loaders[loader.Name()] = loader
}

// Resolve returns a loader by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Loader, error) {
	if loader, ok := r.loaders[name]; ok {
		return loader, nil
	}
	return nil, fmt.Errorf("feed loader %s is not registered", name)
}
