package vec

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// ToSpherical converts v to (r, theta, phi) with theta the polar angle in
// [0, pi] measured from +z and phi the azimuth in [0, 2pi). The zero vector
// maps to (0, 0, 0).
func ToSpherical(v r3.Vec) (r, theta, phi float64) {
	r = r3.Norm(v)
	if r == 0 {
		return 0, 0, 0
	}
	theta = math.Acos(math.Max(-1, math.Min(1, v.Z/r)))
	phi = NormalizeAngle(math.Atan2(v.Y, v.X))
	return r, theta, phi
}

// FromSpherical is the inverse of ToSpherical. Any theta is accepted.
func FromSpherical(r, theta, phi float64) r3.Vec {
	st, ct := math.Sincos(theta)
	sp, cp := math.Sincos(phi)
	return r3.Vec{X: r * st * cp, Y: r * st * sp, Z: r * ct}
}

// NormalizeAngle maps a to [0, 2pi).
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	if a >= 2*math.Pi {
		a = 0
	}
	return a
}

// SnapZero sets components with magnitude below eps to exactly zero.
func SnapZero(v r3.Vec, eps float64) r3.Vec {
	if math.Abs(v.X) < eps {
		v.X = 0
	}
	if math.Abs(v.Y) < eps {
		v.Y = 0
	}
	if math.Abs(v.Z) < eps {
		v.Z = 0
	}
	return v
}

// FromSlice reads three components starting at s[0].
func FromSlice(s []float64) r3.Vec {
	return r3.Vec{X: s[0], Y: s[1], Z: s[2]}
}

// Put writes v into s[0:3].
func Put(s []float64, v r3.Vec) {
	s[0], s[1], s[2] = v.X, v.Y, v.Z
}
