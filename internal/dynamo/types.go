package dynamo

import (
	"fmt"
	"math"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// System is the right-hand side of an ODE. Derive writes dX/dt at (x, t)
// into dxdt. Implementations must not retain x: integrators pass trial
// stage states that are never accepted.
type System interface {
	Derive(x State, t float64, dxdt State) error
	StateDim() int
}

// Stepper is an embedded Runge-Kutta pair. Try computes a single trial step
// of size h from (x, t), writing the propagated state into out and the local
// error estimate into errEst. It neither accepts nor rejects the step.
type Stepper interface {
	Name() string
	Order() int
	ErrorOrder() int
	Stages() int
	Try(sys System, x State, t, h float64, out, errEst State) error
}

// Stats counts integrator work.
type Stats struct {
	Steps       int `json:"steps"`
	Rejected    int `json:"rejected"`
	Evaluations int `json:"evaluations"`
}

func (s *Stats) Merge(other Stats) {
	s.Steps += other.Steps
	s.Rejected += other.Rejected
	s.Evaluations += other.Evaluations
}

func (s Stats) String() string {
	return fmt.Sprintf("%d steps, %d rejected, %d evaluations", s.Steps, s.Rejected, s.Evaluations)
}
