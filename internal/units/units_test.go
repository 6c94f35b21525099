package units

import (
	"math"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	for q := Time; q <= MagneticField; q++ {
		v := 3.25
		if got := FromSI(q, ToSI(q, v)); math.Abs(got-v) > 1e-14 {
			t.Errorf("%s: round trip %g -> %g", q, v, got)
		}
	}
}

func TestConsistency(t *testing.T) {
	// c in atomic units times the atomic velocity unit is c in SI.
	if c := SpeedOfLight * VelocitySI; math.Abs(c-SpeedOfLightSI)/SpeedOfLightSI > 1e-9 {
		t.Errorf("c = %g m/s", c)
	}
	// one atomic unit of velocity is one length unit per time unit.
	if v := LengthSI / TimeSI; math.Abs(v-VelocitySI)/VelocitySI > 1e-9 {
		t.Errorf("length/time = %g", v)
	}
	// momentum unit is mass times velocity.
	if p := MassSI * VelocitySI; math.Abs(p-MomentumSI)/MomentumSI > 1e-9 {
		t.Errorf("mass*velocity = %g", p)
	}
	// E field unit is energy per charge per length.
	if e := EnergySI / (ChargeSI * LengthSI); math.Abs(e-ElectricFieldSI)/ElectricFieldSI > 1e-9 {
		t.Errorf("energy/(charge*length) = %g", e)
	}
	// B field unit is momentum per charge per length.
	if b := MomentumSI / (ChargeSI * LengthSI); math.Abs(b-MagneticFieldSI)/MagneticFieldSI > 1e-9 {
		t.Errorf("momentum/(charge*length) = %g", b)
	}
}

func TestParseSystem(t *testing.T) {
	tests := []struct {
		in      string
		want    System
		wantErr bool
	}{
		{"", Atomic, false},
		{"atomic", Atomic, false},
		{"si", SI, false},
		{"cgs", "", true},
	}

	for _, tt := range tests {
		got, err := ParseSystem(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSystem(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseSystem(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSystemToAtomic(t *testing.T) {
	if got := Atomic.ToAtomic(Length, 10); got != 10 {
		t.Errorf("atomic passthrough = %g", got)
	}
	if got := SI.ToAtomic(Length, LengthSI); math.Abs(got-1) > 1e-15 {
		t.Errorf("one bohr = %g a.u.", got)
	}
}

func TestQuantityString(t *testing.T) {
	if Momentum.String() != "momentum" {
		t.Errorf("got %q", Momentum.String())
	}
	if Quantity(42).String() != "Quantity(42)" {
		t.Errorf("got %q", Quantity(42).String())
	}
}
