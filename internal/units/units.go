// Package units converts between Hartree atomic units, used inside the
// simulator, and SI units, used at the field function boundary and in
// configuration files that opt into them.
//
// Values are CODATA 2018.
package units

import "fmt"

// SpeedOfLight in atomic units (the inverse fine-structure constant).
const SpeedOfLight = 137.035999084

// SI value of one atomic unit of each quantity.
const (
	TimeSI          = 2.4188843265857e-17 // s
	LengthSI        = 5.29177210903e-11   // m
	MassSI          = 9.1093837015e-31    // kg
	ChargeSI        = 1.602176634e-19     // C
	EnergySI        = 4.3597447222071e-18 // J
	MomentumSI      = 1.99285191410e-24   // kg m/s
	VelocitySI      = 2.18769126364e6     // m/s
	ElectricFieldSI = 5.14220674763e11    // V/m
	MagneticFieldSI = 2.35051756758e5     // T
)

// SpeedOfLightSI in m/s.
const SpeedOfLightSI = 299792458.0

type Quantity int

const (
	Time Quantity = iota
	Length
	Mass
	Charge
	Energy
	Momentum
	Velocity
	ElectricField
	MagneticField
)

var scales = [...]float64{
	Time:          TimeSI,
	Length:        LengthSI,
	Mass:          MassSI,
	Charge:        ChargeSI,
	Energy:        EnergySI,
	Momentum:      MomentumSI,
	Velocity:      VelocitySI,
	ElectricField: ElectricFieldSI,
	MagneticField: MagneticFieldSI,
}

var names = [...]string{
	Time:          "time",
	Length:        "length",
	Mass:          "mass",
	Charge:        "charge",
	Energy:        "energy",
	Momentum:      "momentum",
	Velocity:      "velocity",
	ElectricField: "electric_field",
	MagneticField: "magnetic_field",
}

func (q Quantity) String() string {
	if q < 0 || int(q) >= len(names) {
		return fmt.Sprintf("Quantity(%d)", int(q))
	}
	return names[q]
}

// Scale returns the SI value of one atomic unit of q.
func (q Quantity) Scale() float64 {
	return scales[q]
}

func ToSI(q Quantity, v float64) float64 {
	return v * scales[q]
}

func FromSI(q Quantity, v float64) float64 {
	return v / scales[q]
}

// System names the unit system of user-facing input.
type System string

const (
	Atomic System = "atomic"
	SI     System = "si"
)

func ParseSystem(s string) (System, error) {
	switch System(s) {
	case "", Atomic:
		return Atomic, nil
	case SI:
		return SI, nil
	}
	return "", fmt.Errorf("unknown unit system %q (want %q or %q)", s, Atomic, SI)
}

// ToAtomic converts v, expressed in system s, to atomic units.
func (s System) ToAtomic(q Quantity, v float64) float64 {
	if s == SI {
		return FromSI(q, v)
	}
	return v
}
