// Package field defines the electromagnetic field capability consumed by the
// laser regime, a boundary adapter that converts atomic units to SI around
// every call, and a few built-in field models.
package field

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/micrenda/circlesim-sub000/internal/dynamo"
	"github.com/micrenda/circlesim-sub000/internal/units"
	"github.com/micrenda/circlesim-sub000/internal/vec"
)

// Sample is the electric and magnetic field at one point.
type Sample struct {
	E r3.Vec `json:"e"`
	B r3.Vec `json:"b"`
}

func (s Sample) IsFinite() bool {
	return vec.IsFiniteVec(s.E) && vec.IsFiniteVec(s.B)
}

// Field evaluates E (V/m) and B (T) at node-local time t (s) and node-local
// position (x, y, z) in metres.
type Field interface {
	Evaluate(t, x, y, z float64) (Sample, error)
}

// Func adapts an ordinary function to Field.
type Func func(t, x, y, z float64) (Sample, error)

func (f Func) Evaluate(t, x, y, z float64) (Sample, error) {
	return f(t, x, y, z)
}

// Factory builds an independent Field for each run. Fields that keep mutable
// state (scripts) must not be shared between goroutines.
type Factory func() (Field, error)

// Shared returns a Factory that hands out f itself. Use it only for
// stateless fields.
func Shared(f Field) Factory {
	return func() (Field, error) { return f, nil }
}

// Boundary wraps a Field for use in atomic units.
type Boundary struct {
	f Field
}

func NewBoundary(f Field) *Boundary {
	return &Boundary{f: f}
}

// At samples the field at local time t and local position pos, both in
// atomic units, and returns the sample in atomic units. Failures and
// non-finite samples wrap dynamo.ErrField.
func (b *Boundary) At(t float64, pos r3.Vec) (Sample, error) {
	s, err := b.f.Evaluate(
		units.ToSI(units.Time, t),
		units.ToSI(units.Length, pos.X),
		units.ToSI(units.Length, pos.Y),
		units.ToSI(units.Length, pos.Z),
	)
	if err != nil {
		return Sample{}, fmt.Errorf("%w: %w", dynamo.ErrField, err)
	}
	if !s.IsFinite() {
		return Sample{}, fmt.Errorf("%w: non-finite sample at t=%g pos=%v", dynamo.ErrField, t, pos)
	}
	return Sample{
		E: r3.Scale(1/units.ElectricFieldSI, s.E),
		B: r3.Scale(1/units.MagneticFieldSI, s.B),
	}, nil
}

// Zero is the vanishing field.
type Zero struct{}

func (Zero) Evaluate(t, x, y, z float64) (Sample, error) {
	return Sample{}, nil
}

// Uniform is a static homogeneous field.
type Uniform struct {
	E r3.Vec
	B r3.Vec
}

func (u Uniform) Evaluate(t, x, y, z float64) (Sample, error) {
	return Sample{E: u.E, B: u.B}, nil
}

// GaussianPulse is a linearly polarised plane wave travelling along local +z
// with E along x and B along y. The envelope is Gaussian in the retarded
// time t - z/c and peaks at t = 0, z = 0.
type GaussianPulse struct {
	Amplitude  float64 // peak E, V/m
	Wavelength float64 // m
	Duration   float64 // envelope FWHM, s
	Phase      float64 // carrier-envelope phase, rad
}

func (g GaussianPulse) Validate() error {
	if !(g.Wavelength > 0) {
		return dynamo.Configf("pulse wavelength must be positive, got %g", g.Wavelength)
	}
	if !(g.Duration > 0) {
		return dynamo.Configf("pulse duration must be positive, got %g", g.Duration)
	}
	if math.IsNaN(g.Amplitude) || math.IsInf(g.Amplitude, 0) {
		return dynamo.Configf("pulse amplitude must be finite")
	}
	return nil
}

func (g GaussianPulse) Evaluate(t, x, y, z float64) (Sample, error) {
	tau := t - z/units.SpeedOfLightSI
	omega := 2 * math.Pi * units.SpeedOfLightSI / g.Wavelength
	sigma := g.Duration / (2 * math.Sqrt(2*math.Ln2))

	env := math.Exp(-tau * tau / (2 * sigma * sigma))
	ex := g.Amplitude * env * math.Cos(omega*tau+g.Phase)
	return Sample{
		E: r3.Vec{X: ex},
		B: r3.Vec{Y: ex / units.SpeedOfLightSI},
	}, nil
}
