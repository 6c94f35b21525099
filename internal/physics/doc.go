// Package physics provides the relativistic equations of motion of a charged
// particle in atomic units.
//
// Both regimes implement [dynamo.System] over the packed state
// [x y z px py pz]:
//
//   - [Free]: ballistic flight, dp/dt = 0
//   - [Laser]: Lorentz force from a node-local field sample
//
// Systems are stateless between calls and never retain the states handed to
// Derive, so trial stages of an embedded Runge-Kutta step leave no trace.
package physics
