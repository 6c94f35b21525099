package analysis

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"github.com/micrenda/circlesim-sub000/internal/dynamo"
	"github.com/micrenda/circlesim-sub000/internal/lab"
	"github.com/micrenda/circlesim-sub000/internal/metrics"
	"github.com/micrenda/circlesim-sub000/internal/sim"
)

// Vary derives the initial state of one sweep run from the parameter.
type Vary func(param float64, base lab.GlobalState) lab.GlobalState

// MomentumAlong sets the initial momentum to param·dir.
func MomentumAlong(dir r3.Vec) Vary {
	return func(param float64, base lab.GlobalState) lab.GlobalState {
		return lab.GlobalState{Position: base.Position, Momentum: r3.Scale(param, dir)}
	}
}

// OffsetAlong shifts the initial position by param·dir.
func OffsetAlong(dir r3.Vec) Vary {
	return func(param float64, base lab.GlobalState) lab.GlobalState {
		return lab.GlobalState{Position: base.Position.AddNarrow(r3.Scale(param, dir)), Momentum: base.Momentum}
	}
}

type SweepPoint struct {
	Param   float64            `json:"param"`
	Result  *sim.Result        `json:"result"`
	Metrics map[string]float64 `json:"metrics"`
}

// Sweep runs job once per parameter value and records the standard metrics.
// Points come back in the order of params.
func Sweep(ctx context.Context, job Job, base lab.GlobalState, params []float64, vary Vary, workers int) ([]SweepPoint, error) {
	if vary == nil {
		return nil, dynamo.Configf("sweep needs a variation")
	}
	points := make([]SweepPoint, len(params))
	err := dynamo.NewEnsemble(workers).Run(ctx, len(params), func(ctx context.Context, idx int) error {
		set := metrics.Standard(job.Particle)
		res, err := job.Run(ctx, vary(params[idx], base), set.Reporter())
		if err != nil {
			return fmt.Errorf("param %g: %w", params[idx], err)
		}
		points[idx] = SweepPoint{Param: params[idx], Result: res, Metrics: set.Values()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return points, nil
}

// Work totals the integrator statistics of a sweep.
func Work(points []SweepPoint) dynamo.Stats {
	var total dynamo.Stats
	for _, p := range points {
		if p.Result != nil {
			total.Merge(p.Result.Stats)
		}
	}
	return total
}

// Linspace returns n evenly spaced values from lo to hi inclusive.
func Linspace(lo, hi float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{lo}
	}
	return floats.Span(make([]float64, n), lo, hi)
}

type Summary struct {
	Metric  string  `json:"metric"`
	Mean    float64 `json:"mean"`
	StdDev  float64 `json:"std_dev"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	ArgMax  float64 `json:"arg_max"`
	Samples int     `json:"samples"`
}

// Summarize reduces one metric across a sweep.
func Summarize(points []SweepPoint, metric string) Summary {
	s := Summary{Metric: metric}
	vals := make([]float64, 0, len(points))
	params := make([]float64, 0, len(points))
	for _, p := range points {
		if v, ok := p.Metrics[metric]; ok && !math.IsNaN(v) {
			vals = append(vals, v)
			params = append(params, p.Param)
		}
	}
	s.Samples = len(vals)
	if len(vals) == 0 {
		return s
	}
	s.Mean, s.StdDev = stat.MeanStdDev(vals, nil)
	if len(vals) == 1 {
		s.StdDev = 0
	}
	s.Min = floats.Min(vals)
	idx := floats.MaxIdx(vals)
	s.Max = vals[idx]
	s.ArgMax = params[idx]
	return s
}
