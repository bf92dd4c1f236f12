// Package registry implements C12: a name -> constructor map so strategies
// can be instantiated by config-driven name rather than compiled-in
// references. Directly grounded on the teacher's internal/strategy
// Registry (internal/strategy/strategy.go in the original teacher copy,
// since superseded): map[string]Strategy keyed by Name(), Register/Get.
package registry

import (
	"fmt"

	"github.com/kkim/hanaro-trader/internal/strategy"
)

// Factory builds a Strategy instance from a parameter bundle.
type Factory func(params map[string]float64) (strategy.Strategy, error)

// Registry maps a strategy type name to its Factory.
type Registry struct {
	factories map[string]Factory
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// Build instantiates the strategy registered under name.
func (r *Registry) Build(name string, params map[string]float64) (strategy.Strategy, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("registry: unknown strategy %q", name)
	}
	return f(params)
}

// Names returns every registered strategy type name.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	return out
}
