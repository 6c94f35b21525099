package vec

import (
	"fmt"
	"math"
	"math/big"

	"gonum.org/v1/gonum/spatial/r3"
)

// WidePrec is the significand precision of Wide components, matching IEEE
// binary128.
const WidePrec = 113

// Wide is a 3D position held in extended precision. Values are immutable:
// every operation allocates fresh components, so a Wide may be copied and
// shared freely. The zero value is the origin.
type Wide struct {
	c [3]*big.Float
}

func newFloat() *big.Float {
	return new(big.Float).SetPrec(WidePrec)
}

var zero = newFloat()

func (w Wide) comp(i int) *big.Float {
	if w.c[i] == nil {
		return zero
	}
	return w.c[i]
}

// Widen converts a float64 vector without loss. Components must be finite.
func Widen(v r3.Vec) Wide {
	return Wide{c: [3]*big.Float{
		newFloat().SetFloat64(v.X),
		newFloat().SetFloat64(v.Y),
		newFloat().SetFloat64(v.Z),
	}}
}

// ParseWide parses three decimal strings at full precision.
func ParseWide(x, y, z string) (Wide, error) {
	var w Wide
	for i, s := range [3]string{x, y, z} {
		f, _, err := big.ParseFloat(s, 10, WidePrec, big.ToNearestEven)
		if err != nil {
			return Wide{}, fmt.Errorf("parse component %d %q: %w", i, s, err)
		}
		if f.IsInf() {
			return Wide{}, fmt.Errorf("parse component %d %q: infinite", i, s)
		}
		w.c[i] = f
	}
	return w, nil
}

// Narrow rounds each component to the nearest float64.
func (w Wide) Narrow() r3.Vec {
	x, _ := w.comp(0).Float64()
	y, _ := w.comp(1).Float64()
	z, _ := w.comp(2).Float64()
	return r3.Vec{X: x, Y: y, Z: z}
}

// Sub returns w - o computed in extended precision and then narrowed.
func (w Wide) Sub(o Wide) r3.Vec {
	var out [3]float64
	for i := range out {
		d := newFloat().Sub(w.comp(i), o.comp(i))
		out[i], _ = d.Float64()
	}
	return r3.Vec{X: out[0], Y: out[1], Z: out[2]}
}

// AddNarrow returns w + d with d widened first.
func (w Wide) AddNarrow(d r3.Vec) Wide {
	return w.Add(Widen(d))
}

func (w Wide) Add(o Wide) Wide {
	var r Wide
	for i := range r.c {
		r.c[i] = newFloat().Add(w.comp(i), o.comp(i))
	}
	return r
}

// Scale multiplies every component by k in extended precision.
func (w Wide) Scale(k float64) Wide {
	f := newFloat().SetFloat64(k)
	var r Wide
	for i := range r.c {
		r.c[i] = newFloat().Mul(w.comp(i), f)
	}
	return r
}

// Quo divides every component by k in extended precision.
func (w Wide) Quo(k float64) Wide {
	f := newFloat().SetFloat64(k)
	var r Wide
	for i := range r.c {
		r.c[i] = newFloat().Quo(w.comp(i), f)
	}
	return r
}

// Component returns a copy of component i (0, 1 or 2).
func (w Wide) Component(i int) *big.Float {
	return newFloat().Set(w.comp(i))
}

func (w Wide) Equal(o Wide) bool {
	for i := range w.c {
		if w.comp(i).Cmp(o.comp(i)) != 0 {
			return false
		}
	}
	return true
}

// IsFinite reports whether every component is finite.
func (w Wide) IsFinite() bool {
	for i := range w.c {
		if w.comp(i).IsInf() {
			return false
		}
	}
	return true
}

// Text formats component i with the shortest decimal representation that
// round-trips at WidePrec.
func (w Wide) Text(i int) string {
	return w.comp(i).Text('g', -1)
}

func (w Wide) Strings() [3]string {
	return [3]string{w.Text(0), w.Text(1), w.Text(2)}
}

func (w Wide) String() string {
	return fmt.Sprintf("(%s, %s, %s)", w.Text(0), w.Text(1), w.Text(2))
}

// Distance returns |w - o|.
func (w Wide) Distance(o Wide) float64 {
	return r3.Norm(w.Sub(o))
}

// IsFiniteVec reports whether every component of v is finite.
func IsFiniteVec(v r3.Vec) bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
