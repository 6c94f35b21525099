package integrators

import (
	"github.com/micrenda/circlesim-sub000/internal/dynamo"
)

// Fehlberg 7(8) tableau: 13 stages, 8th-order solution, error estimate from
// the difference with the embedded 7th-order solution.
var (
	rkf78C = [13]float64{0, 2.0 / 27, 1.0 / 9, 1.0 / 6, 5.0 / 12, 1.0 / 2, 5.0 / 6, 1.0 / 6, 2.0 / 3, 1.0 / 3, 1, 0, 1}

	rkf78A = [13][]float64{
		{},
		{2.0 / 27},
		{1.0 / 36, 1.0 / 12},
		{1.0 / 24, 0, 1.0 / 8},
		{5.0 / 12, 0, -25.0 / 16, 25.0 / 16},
		{1.0 / 20, 0, 0, 1.0 / 4, 1.0 / 5},
		{-25.0 / 108, 0, 0, 125.0 / 108, -65.0 / 27, 125.0 / 54},
		{31.0 / 300, 0, 0, 0, 61.0 / 225, -2.0 / 9, 13.0 / 900},
		{2, 0, 0, -53.0 / 6, 704.0 / 45, -107.0 / 9, 67.0 / 90, 3},
		{-91.0 / 108, 0, 0, 23.0 / 108, -976.0 / 135, 311.0 / 54, -19.0 / 60, 17.0 / 6, -1.0 / 12},
		{2383.0 / 4100, 0, 0, -341.0 / 164, 4496.0 / 1025, -301.0 / 82, 2133.0 / 4100, 45.0 / 82, 45.0 / 164, 18.0 / 41},
		{3.0 / 205, 0, 0, 0, 0, -6.0 / 41, -3.0 / 205, -3.0 / 41, 3.0 / 41, 6.0 / 41, 0},
		{-1777.0 / 4100, 0, 0, -341.0 / 164, 4496.0 / 1025, -289.0 / 82, 2193.0 / 4100, 51.0 / 82, 33.0 / 164, 12.0 / 41, 0, 1},
	}

	rkf78B = [13]float64{0, 0, 0, 0, 0, 34.0 / 105, 9.0 / 35, 9.0 / 35, 9.0 / 280, 9.0 / 280, 0, 41.0 / 840, 41.0 / 840}

	rkf78Err = 41.0 / 840
)

// RKF78 is the Runge-Kutta-Fehlberg 7(8) pair.
type RKF78 struct {
	k   [13]dynamo.State
	tmp dynamo.State
}

func NewRKF78() *RKF78 {
	return &RKF78{}
}

func (r *RKF78) Name() string    { return "rkf78" }
func (r *RKF78) Order() int      { return 8 }
func (r *RKF78) ErrorOrder() int { return 7 }
func (r *RKF78) Stages() int     { return 13 }

func (r *RKF78) ensureScratch(n int) {
	if len(r.tmp) == n {
		return
	}
	for i := range r.k {
		r.k[i] = make(dynamo.State, n)
	}
	r.tmp = make(dynamo.State, n)
}

func (r *RKF78) Try(sys dynamo.System, x dynamo.State, t, h float64, out, errEst dynamo.State) error {
	n := len(x)
	r.ensureScratch(n)
	k, tmp := r.k, r.tmp

	if err := sys.Derive(x, t, k[0]); err != nil {
		return err
	}

	for s := 1; s < len(rkf78C); s++ {
		row := rkf78A[s]
		for i := 0; i < n; i++ {
			sum := 0.0
			for j, a := range row {
				if a != 0 {
					sum += a * k[j][i]
				}
			}
			tmp[i] = advance(x[i], h, sum)
		}
		if err := sys.Derive(tmp, t+rkf78C[s]*h, k[s]); err != nil {
			return err
		}
	}

	for i := 0; i < n; i++ {
		sum := 0.0
		for j, b := range rkf78B {
			if b != 0 {
				sum += b * k[j][i]
			}
		}
		out[i] = advance(x[i], h, sum)
		errEst[i] = h * rkf78Err * (k[0][i] + k[10][i] - k[11][i] - k[12][i])
	}
	return nil
}
