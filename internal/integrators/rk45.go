package integrators

import (
	"github.com/micrenda/circlesim-sub000/internal/dynamo"
)

// Dormand-Prince coefficients (RK45)
var (
	a2 = 1.0 / 5.0
	a3 = 3.0 / 10.0
	a4 = 4.0 / 5.0
	a5 = 8.0 / 9.0

	b21 = 1.0 / 5.0
	b31 = 3.0 / 40.0
	b32 = 9.0 / 40.0
	b41 = 44.0 / 45.0
	b42 = -56.0 / 15.0
	b43 = 32.0 / 9.0
	b51 = 19372.0 / 6561.0
	b52 = -25360.0 / 2187.0
	b53 = 64448.0 / 6561.0
	b54 = -212.0 / 729.0
	b61 = 9017.0 / 3168.0
	b62 = -355.0 / 33.0
	b63 = 46732.0 / 5247.0
	b64 = 49.0 / 176.0
	b65 = -5103.0 / 18656.0

	c1 = 35.0 / 384.0
	c3 = 500.0 / 1113.0
	c4 = 125.0 / 192.0
	c5 = -2187.0 / 6784.0
	c6 = 11.0 / 84.0

	dc1 = c1 - 5179.0/57600.0
	dc3 = c3 - 7571.0/16695.0
	dc4 = c4 - 393.0/640.0
	dc5 = c5 - -92097.0/339200.0
	dc6 = c6 - 187.0/2100.0
	dc7 = -1.0 / 40.0
)

// DormandPrince is the 5(4) embedded pair. It is cheaper per step than
// RKF78 and useful for loose tolerances.
type DormandPrince struct {
	k   [7]dynamo.State
	tmp dynamo.State
}

func NewDormandPrince() *DormandPrince {
	return &DormandPrince{}
}

func (d *DormandPrince) Name() string    { return "dopri5" }
func (d *DormandPrince) Order() int      { return 5 }
func (d *DormandPrince) ErrorOrder() int { return 4 }
func (d *DormandPrince) Stages() int     { return 7 }

func (d *DormandPrince) ensureScratch(n int) {
	if len(d.tmp) == n {
		return
	}
	for i := range d.k {
		d.k[i] = make(dynamo.State, n)
	}
	d.tmp = make(dynamo.State, n)
}

func (d *DormandPrince) Try(sys dynamo.System, x dynamo.State, t, dt float64, out, errEst dynamo.State) error {
	n := len(x)
	d.ensureScratch(n)
	k1, k2, k3, k4, k5, k6, k7 := d.k[0], d.k[1], d.k[2], d.k[3], d.k[4], d.k[5], d.k[6]
	tmp := d.tmp

	if err := sys.Derive(x, t, k1); err != nil {
		return err
	}

	for i := 0; i < n; i++ {
		tmp[i] = x[i] + dt*b21*k1[i]
	}
	if err := sys.Derive(tmp, t+a2*dt, k2); err != nil {
		return err
	}

	for i := 0; i < n; i++ {
		tmp[i] = x[i] + dt*(b31*k1[i]+b32*k2[i])
	}
	if err := sys.Derive(tmp, t+a3*dt, k3); err != nil {
		return err
	}

	for i := 0; i < n; i++ {
		tmp[i] = x[i] + dt*(b41*k1[i]+b42*k2[i]+b43*k3[i])
	}
	if err := sys.Derive(tmp, t+a4*dt, k4); err != nil {
		return err
	}

	for i := 0; i < n; i++ {
		tmp[i] = x[i] + dt*(b51*k1[i]+b52*k2[i]+b53*k3[i]+b54*k4[i])
	}
	if err := sys.Derive(tmp, t+a5*dt, k5); err != nil {
		return err
	}

	for i := 0; i < n; i++ {
		tmp[i] = x[i] + dt*(b61*k1[i]+b62*k2[i]+b63*k3[i]+b64*k4[i]+b65*k5[i])
	}
	if err := sys.Derive(tmp, t+dt, k6); err != nil {
		return err
	}

	for i := 0; i < n; i++ {
		out[i] = advance(x[i], dt, c1*k1[i]+c3*k3[i]+c4*k4[i]+c5*k5[i]+c6*k6[i])
	}

	if err := sys.Derive(out, t+dt, k7); err != nil {
		return err
	}

	for i := 0; i < n; i++ {
		errEst[i] = dt * (dc1*k1[i] + dc3*k3[i] + dc4*k4[i] + dc5*k5[i] + dc6*k6[i] + dc7*k7[i])
	}
	return nil
}

// advance returns x + dt*slope, leaving x untouched when the slope is zero.
func advance(x, dt, slope float64) float64 {
	if slope == 0 {
		return x
	}
	return x + dt*slope
}
