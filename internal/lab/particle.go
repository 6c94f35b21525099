package lab

import (
	"math"

	"github.com/micrenda/circlesim-sub000/internal/dynamo"
)

// Particle holds the rest mass and signed charge in atomic units. Charge is
// measured in units of the electron charge, so an electron has Charge 1 and
// a proton -1.
type Particle struct {
	Mass   float64 `json:"mass" yaml:"mass"`
	Charge float64 `json:"charge" yaml:"charge"`
}

// Electron returns a particle with electron mass and charge.
func Electron() Particle {
	return Particle{Mass: 1, Charge: 1}
}

func (p Particle) Validate() error {
	if !(p.Mass > 0) || math.IsInf(p.Mass, 0) {
		return dynamo.Configf("rest mass must be positive, got %g", p.Mass)
	}
	if math.IsNaN(p.Charge) || math.IsInf(p.Charge, 0) {
		return dynamo.Configf("charge must be finite, got %g", p.Charge)
	}
	return nil
}
