// Package dynamo provides the numerical primitives shared by the trajectory
// simulator.
//
// The package defines the fundamental interfaces and types for integrating
// ordinary differential equations (ODEs) of the form dX/dt = f(X, t):
//
//   - [State]: flat vector holding position and momentum components
//   - [System]: interface for ODE right-hand sides
//   - [Stepper]: embedded Runge-Kutta pair producing a trial step and an error estimate
//   - [Stats]: step and evaluation counters accumulated by an integrator
//   - [Ensemble]: bounded parallel execution of independent runs
//
// # Errors
//
// Failures are classified by sentinel errors ([ErrConfig], [ErrStagnation],
// [ErrField], [ErrInvalidState]) and checked with errors.Is. Run-time failures
// are wrapped in [SimulationError] which records where the run stopped.
//
// # Thread Safety
//
// Steppers keep scratch buffers and are NOT thread-safe. Every concurrent run
// must own its own stepper; use [Ensemble] to fan independent runs out.
package dynamo
