package physics

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/micrenda/circlesim-sub000/internal/lab"
	"github.com/micrenda/circlesim-sub000/internal/units"
)

const c = units.SpeedOfLight

// Factor returns c / sqrt(c² + |p/m|²), the inverse Lorentz factor, so that
// dx/dt = Factor · p / m. The momentum is divided by the rest mass before
// squaring; for m = 1 this is the familiar c / sqrt(c² + |p|²), and for any
// other mass it keeps |v| below c where the unscaled form would not.
func Factor(p lab.Particle, mom r3.Vec) float64 {
	u := r3.Scale(1/p.Mass, mom)
	return c / math.Sqrt(c*c+r3.Dot(u, u))
}

// Gamma returns the Lorentz factor of momentum mom.
func Gamma(p lab.Particle, mom r3.Vec) float64 {
	u := r3.Norm(mom) / (p.Mass * c)
	return math.Sqrt(1 + u*u)
}

// Velocity returns dx/dt for momentum mom.
func Velocity(p lab.Particle, mom r3.Vec) r3.Vec {
	return r3.Scale(Factor(p, mom)/p.Mass, mom)
}

// KineticEnergy returns (γ-1)mc², evaluated without cancellation at low
// momentum.
func KineticEnergy(p lab.Particle, mom r3.Vec) float64 {
	u := r3.Norm(mom) / (p.Mass * c)
	u2 := u * u
	return p.Mass * c * c * u2 / (math.Sqrt(1+u2) + 1)
}
