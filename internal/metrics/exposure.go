package metrics

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/micrenda/circlesim-sub000/internal/field"
	"github.com/micrenda/circlesim-sub000/internal/lab"
	"github.com/micrenda/circlesim-sub000/internal/sim"
)

// FieldExposure is the mean electric field magnitude seen by the particle
// across all interaction samples, in atomic units.
type FieldExposure struct {
	sim.NopReporter
	sum     float64
	samples int
}

func NewFieldExposure() *FieldExposure {
	return &FieldExposure{}
}

func (f *FieldExposure) Name() string { return "field_exposure" }

func (f *FieldExposure) OnNodeProgress(_ int, _ *lab.Node, _ float64, _ lab.LocalState, s field.Sample) error {
	f.sum += r3.Norm(s.E)
	f.samples++
	return nil
}

func (f *FieldExposure) Value() float64 {
	if f.samples == 0 {
		return 0
	}
	return f.sum / float64(f.samples)
}

func (f *FieldExposure) Reset() {
	f.sum = 0
	f.samples = 0
}

// Excursion is the largest distance between the particle and its first
// observed free-flight position.
type Excursion struct {
	sim.NopReporter
	origin  lab.GlobalState
	started bool
	max     float64
}

func NewExcursion() *Excursion {
	return &Excursion{}
}

func (e *Excursion) Name() string { return "max_excursion" }

func (e *Excursion) observe(s lab.GlobalState) {
	if !e.started {
		e.origin = s
		e.started = true
		return
	}
	if d := s.Position.Distance(e.origin.Position); d > e.max {
		e.max = d
	}
}

func (e *Excursion) OnFreeEnter(_ float64, s lab.GlobalState) error {
	e.observe(s)
	return nil
}

func (e *Excursion) OnFreeProgress(_ float64, s lab.GlobalState) error {
	e.observe(s)
	return nil
}

func (e *Excursion) Value() float64 { return e.max }

func (e *Excursion) Reset() {
	*e = Excursion{}
}

// Standard returns the metrics recorded with every stored run.
func Standard(p lab.Particle) Set {
	gain := NewEnergyGain(p)
	return Set{gain, NewMaxGain(gain), NewFieldExposure(), NewExcursion()}
}
