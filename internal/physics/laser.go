package physics

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/micrenda/circlesim-sub000/internal/dynamo"
	"github.com/micrenda/circlesim-sub000/internal/field"
	"github.com/micrenda/circlesim-sub000/internal/lab"
	"github.com/micrenda/circlesim-sub000/internal/vec"
)

// Sampler returns the field at local time t and local position pos, both in
// atomic units. *field.Boundary implements it.
type Sampler interface {
	At(t float64, pos r3.Vec) (field.Sample, error)
}

// Laser is motion under the Lorentz force of a node-local field:
//
//	dp/dt = -q·E - (q/m)·Factor·(p × B)
//
// q counts electron charges, so the leading minus makes q = 1 an electron.
// The time passed to Derive is the node-local clock.
type Laser struct {
	Particle lab.Particle
	Field    Sampler
}

func NewLaser(p lab.Particle, f Sampler) *Laser {
	return &Laser{Particle: p, Field: f}
}

func (l *Laser) StateDim() int {
	return lab.StateDim
}

func (l *Laser) Derive(x dynamo.State, t float64, dxdt dynamo.State) error {
	if len(x) != lab.StateDim || len(dxdt) != lab.StateDim {
		return dynamo.ErrDimensionMismatch
	}
	pos := vec.FromSlice(x[0:3])
	mom := vec.FromSlice(x[3:6])

	s, err := l.Field.At(t, pos)
	if err != nil {
		return err
	}

	q := l.Particle.Charge
	factor := Factor(l.Particle, mom)
	force := r3.Add(
		r3.Scale(-q, s.E),
		r3.Scale(-q/l.Particle.Mass*factor, r3.Cross(mom, s.B)),
	)

	vec.Put(dxdt[0:3], r3.Scale(factor/l.Particle.Mass, mom))
	vec.Put(dxdt[3:6], force)
	return nil
}
