package integrators

import (
	"fmt"
	"math"

	"github.com/micrenda/circlesim-sub000/internal/dynamo"
)

// DefaultMaxAttempts bounds the sub-step attempts of a single Advance call.
const DefaultMaxAttempts = 1_000_000

// Controlled drives an embedded stepper with an error-per-step controller.
// It is not safe for concurrent use.
type Controlled struct {
	stepper     dynamo.Stepper
	abs, rel    float64
	maxAttempts int

	safety   float64
	minScale float64
	maxScale float64

	out, errEst dynamo.State
	stats       dynamo.Stats
}

func NewControlled(stepper dynamo.Stepper, abs, rel float64, maxAttempts int) (*Controlled, error) {
	if stepper == nil {
		return nil, dynamo.Configf("nil stepper")
	}
	if abs < 0 || rel < 0 || math.IsNaN(abs) || math.IsNaN(rel) || abs+rel == 0 {
		return nil, dynamo.Configf("tolerances must be non-negative and not both zero, got abs=%g rel=%g", abs, rel)
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Controlled{
		stepper:     stepper,
		abs:         abs,
		rel:         rel,
		maxAttempts: maxAttempts,
		safety:      0.9,
		minScale:    0.2,
		maxScale:    5.0,
	}, nil
}

func (c *Controlled) Stepper() dynamo.Stepper { return c.stepper }

func (c *Controlled) Stats() dynamo.Stats { return c.stats }

func (c *Controlled) ensureScratch(n int) {
	if len(c.out) != n {
		c.out = make(dynamo.State, n)
		c.errEst = make(dynamo.State, n)
	}
}

// Advance integrates y in place from t to target and returns the time
// reached together with a step-size hint for the next call. Sub-steps are
// clamped so the last one lands exactly on target. On failure y holds the
// last accepted state and reached its time.
func (c *Controlled) Advance(sys dynamo.System, y dynamo.State, t, target, hint float64) (reached, nextHint float64, err error) {
	if len(y) != sys.StateDim() {
		return t, hint, dynamo.ErrDimensionMismatch
	}
	c.ensureScratch(len(y))

	span := target - t
	if span <= 0 {
		return t, hint, nil
	}
	h := hint
	if !(h > 0) || h > span {
		h = span
	}

	for attempts := 1; t < target; attempts++ {
		if attempts > c.maxAttempts {
			return t, h, c.fail(t, y, fmt.Errorf("%w: %d attempts without reaching t=%g", dynamo.ErrStagnation, c.maxAttempts, target))
		}

		natural := h
		clamped := false
		if t+h >= target {
			h = target - t
			clamped = true
		}
		if t+h == t {
			return t, natural, c.fail(t, y, fmt.Errorf("%w: step %g underflows at t=%g", dynamo.ErrStagnation, h, t))
		}

		stepErr := c.stepper.Try(sys, y, t, h, c.out, c.errEst)
		c.stats.Evaluations += c.stepper.Stages()
		if stepErr != nil {
			return t, natural, stepErr
		}

		ratio := c.errorRatio(y, c.out, c.errEst)
		if !(ratio <= 1) {
			c.stats.Rejected++
			scale := c.minScale
			if !math.IsNaN(ratio) && !math.IsInf(ratio, 0) {
				scale = math.Max(c.minScale, c.safety*math.Pow(ratio, -1/float64(c.stepper.ErrorOrder())))
			}
			h *= scale
			continue
		}

		if !c.out.IsValid() {
			return t, natural, c.fail(t, y, dynamo.ErrInvalidState)
		}
		copy(y, c.out)
		if clamped {
			t = target
		} else {
			t += h
		}
		c.stats.Steps++

		scale := c.maxScale
		if ratio > 0 {
			scale = math.Min(c.maxScale, c.safety*math.Pow(ratio, -1/float64(c.stepper.Order())))
		}
		h *= scale
		if clamped {
			h = math.Max(h, natural)
		}
	}

	return t, h, nil
}

// errorRatio is max_i |err_i| / (abs + rel·max(|y_i|, |out_i|)).
func (c *Controlled) errorRatio(y, out, errEst dynamo.State) float64 {
	worst := 0.0
	for i, e := range errEst {
		if e == 0 {
			continue
		}
		if math.IsNaN(e) {
			return math.NaN()
		}
		den := c.abs + c.rel*math.Max(math.Abs(y[i]), math.Abs(out[i]))
		r := math.Abs(e) / den
		if math.IsNaN(r) {
			return math.NaN()
		}
		if r > worst {
			worst = r
		}
	}
	return worst
}

func (c *Controlled) fail(t float64, y dynamo.State, err error) error {
	return &dynamo.SimulationError{
		Step:    c.stats.Steps,
		Time:    t,
		State:   y.Clone(),
		Wrapped: err,
	}
}
