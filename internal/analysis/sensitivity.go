package analysis

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/micrenda/circlesim-sub000/internal/dynamo"
	"github.com/micrenda/circlesim-sub000/internal/lab"
)

// Response is the linear response of the final state to the initial state.
// Rows and columns are ordered x, y, z, px, py, pz.
type Response struct {
	Baseline *lab.GlobalState
	Jacobian *mat.Dense
	Delta    float64
	// Work totals the integrator statistics of every run.
	Work dynamo.Stats
}

// Amplification returns the largest singular value of the Jacobian: the
// worst-case growth of an initial error.
func (r *Response) Amplification() float64 {
	var svd mat.SVD
	if !svd.Factorize(r.Jacobian, mat.SVDNone) {
		return 0
	}
	return svd.Values(nil)[0]
}

func perturb(x lab.GlobalState, i int, d float64) lab.GlobalState {
	var dv r3.Vec
	switch i % 3 {
	case 0:
		dv.X = d
	case 1:
		dv.Y = d
	case 2:
		dv.Z = d
	}
	if i < 3 {
		return lab.GlobalState{Position: x.Position.AddNarrow(dv), Momentum: x.Momentum}
	}
	return lab.GlobalState{Position: x.Position, Momentum: r3.Add(x.Momentum, dv)}
}

// Sensitivity estimates d(final)/d(initial) by central differences, with
// step delta in every component. It runs 2·StateDim+1 simulations on an
// ensemble of the given size (0 means one per CPU).
func Sensitivity(ctx context.Context, job Job, x0 lab.GlobalState, delta float64, workers int) (*Response, error) {
	if !(delta > 0) {
		return nil, dynamo.Configf("perturbation must be positive, got %g", delta)
	}
	if !x0.IsValid() {
		return nil, fmt.Errorf("%w: initial state %v", dynamo.ErrInvalidState, x0)
	}

	const n = lab.StateDim
	finals := make([]lab.GlobalState, 2*n+1)
	stats := make([]dynamo.Stats, len(finals))
	err := dynamo.NewEnsemble(workers).Run(ctx, len(finals), func(ctx context.Context, idx int) error {
		start := x0
		if idx < 2*n {
			sign := 1.0
			if idx%2 == 1 {
				sign = -1
			}
			start = perturb(x0, idx/2, sign*delta)
		}
		res, err := job.Run(ctx, start, nil)
		if err != nil {
			return fmt.Errorf("run %d: %w", idx, err)
		}
		finals[idx] = res.Final
		stats[idx] = res.Stats
		return nil
	})
	if err != nil {
		return nil, err
	}

	jac := mat.NewDense(n, n, nil)
	for j := 0; j < n; j++ {
		plus, minus := finals[2*j], finals[2*j+1]
		dx := plus.Position.Sub(minus.Position)
		dp := r3.Sub(plus.Momentum, minus.Momentum)
		col := []float64{dx.X, dx.Y, dx.Z, dp.X, dp.Y, dp.Z}
		for i, v := range col {
			jac.Set(i, j, v/(2*delta))
		}
	}

	resp := &Response{Baseline: &finals[2*n], Jacobian: jac, Delta: delta}
	for _, st := range stats {
		resp.Work.Merge(st)
	}
	return resp, nil
}
