package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/childsim/internal/integrators"
	"github.com/san-kum/childsim/internal/metrics"
	"github.com/san-kum/childsim/internal/sim"
)

type Registry struct {
	integrators map[string]func() sim.Integrator
}

func NewRegistry() *Registry {
	r := &Registry{
		integrators: make(map[string]func() sim.Integrator),
	}

	r.integrators["euler"] = func() sim.Integrator { return integrators.NewEuler() }
	r.integrators["rk4"] = func() sim.Integrator { return integrators.NewRK4() }

	return r
}

// Register adds or replaces an integrator factory.
func (r *Registry) Register(name string, fn func() sim.Integrator) {
	r.integrators[name] = fn
}

func (r *Registry) GetIntegrator(name string) (sim.Integrator, error) {
	fn, ok := r.integrators[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown integrator: %s", sim.ErrInvalidConfiguration, name)
	}
	return fn(), nil
}

func (r *Registry) ListIntegrators() []string {
	names := make([]string, 0, len(r.integrators))
	for name := range r.integrators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) DefaultMetrics(n int) []sim.Metric {
	return metrics.Cohort(n)
}
