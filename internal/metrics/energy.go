package metrics

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/micrenda/circlesim-sub000/internal/field"
	"github.com/micrenda/circlesim-sub000/internal/lab"
	"github.com/micrenda/circlesim-sub000/internal/physics"
	"github.com/micrenda/circlesim-sub000/internal/sim"
)

// EnergyGain is the kinetic energy of the last observed state minus that of
// the first, in hartree. Momentum magnitude does not depend on the frame,
// so local and global states are mixed freely.
type EnergyGain struct {
	sim.NopReporter

	particle lab.Particle
	samples  int
	initial  float64
	current  float64

	enter   float64
	pending bool
	gains   []float64
}

func NewEnergyGain(p lab.Particle) *EnergyGain {
	return &EnergyGain{particle: p}
}

func (e *EnergyGain) Name() string { return "energy_gain" }

func (e *EnergyGain) observe(mom r3.Vec) {
	energy := physics.KineticEnergy(e.particle, mom)
	if e.samples == 0 {
		e.initial = energy
	}
	e.current = energy
	e.samples++
	if e.pending {
		e.enter = energy
		e.pending = false
	}
}

func (e *EnergyGain) OnNodeEnter(int, *lab.Node, float64) error {
	// a run that starts inside a node has no state yet; take the first sample.
	if e.samples == 0 {
		e.pending = true
		return nil
	}
	e.enter = e.current
	return nil
}

func (e *EnergyGain) OnNodeProgress(_ int, _ *lab.Node, _ float64, s lab.LocalState, _ field.Sample) error {
	e.observe(s.Momentum)
	return nil
}

func (e *EnergyGain) OnNodeExit(int, *lab.Node, float64) error {
	e.gains = append(e.gains, e.current-e.enter)
	e.pending = false
	return nil
}

func (e *EnergyGain) OnFreeEnter(_ float64, s lab.GlobalState) error {
	e.observe(s.Momentum)
	return nil
}

func (e *EnergyGain) OnFreeProgress(_ float64, s lab.GlobalState) error {
	e.observe(s.Momentum)
	return nil
}

func (e *EnergyGain) Value() float64 {
	if e.samples == 0 {
		return 0
	}
	return e.current - e.initial
}

// Gains returns the energy change of each interaction, in order.
func (e *EnergyGain) Gains() []float64 {
	return append([]float64(nil), e.gains...)
}

func (e *EnergyGain) Reset() {
	*e = EnergyGain{particle: e.particle}
}

// MaxGain reports the largest single-interaction energy change recorded by
// an EnergyGain. It observes nothing itself.
type MaxGain struct {
	sim.NopReporter
	gain *EnergyGain
}

func NewMaxGain(gain *EnergyGain) MaxGain {
	return MaxGain{gain: gain}
}

func (m MaxGain) Name() string { return "max_interaction_gain" }

func (m MaxGain) Value() float64 {
	if len(m.gain.gains) == 0 {
		return 0
	}
	best := math.Inf(-1)
	for _, g := range m.gain.gains {
		best = math.Max(best, g)
	}
	return best
}

func (m MaxGain) Reset() {}
