package physics

import (
	"github.com/micrenda/circlesim-sub000/internal/dynamo"
	"github.com/micrenda/circlesim-sub000/internal/lab"
	"github.com/micrenda/circlesim-sub000/internal/vec"
)

// Free is ballistic flight. Momentum derivatives are exactly zero, so an
// integrated momentum never changes.
type Free struct {
	Particle lab.Particle
}

func NewFree(p lab.Particle) *Free {
	return &Free{Particle: p}
}

func (f *Free) StateDim() int {
	return lab.StateDim
}

func (f *Free) Derive(x dynamo.State, t float64, dxdt dynamo.State) error {
	if len(x) != lab.StateDim || len(dxdt) != lab.StateDim {
		return dynamo.ErrDimensionMismatch
	}
	mom := vec.FromSlice(x[3:6])
	vec.Put(dxdt[0:3], Velocity(f.Particle, mom))
	dxdt[3], dxdt[4], dxdt[5] = 0, 0, 0
	return nil
}
