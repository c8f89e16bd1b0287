// Package sim provides the fixed-step simulation primitives used by childsim.
//
// The package defines the fundamental interfaces and types for integrating a
// system of ordinary differential equations forward in time:
//
//   - [State]: flat vector holding the system state
//   - [Dynamics]: right-hand side dX/dt = f(X, t)
//   - [Integrator]: one fixed step of a numerical method
//   - [Metric], [Observer]: hooks called on every recorded state
//   - [Simulator]: drives the step loop and records the result
//
// # Example
//
//	child, _ := models.NewChild(cohort, spec, 1.0)
//	s := sim.New(child, integrators.NewRK4())
//	result, _ := s.Run(ctx, child.InitialState(), sim.Config{Dt: 1, Duration: 365})
//
// # Thread Safety
//
// Simulator instances are NOT thread-safe. Independent scenarios can be run
// concurrently with [Ensemble], which gives every job its own simulator.
package sim
