package field

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/micrenda/circlesim-sub000/internal/dynamo"
	"github.com/micrenda/circlesim-sub000/internal/units"
)

func TestBoundary_ConvertsUnits(t *testing.T) {
	var gotT, gotX float64
	f := Func(func(t, x, y, z float64) (Sample, error) {
		gotT, gotX = t, x
		return Sample{
			E: r3.Vec{X: units.ElectricFieldSI},
			B: r3.Vec{Z: 2 * units.MagneticFieldSI},
		}, nil
	})

	s, err := NewBoundary(f).At(1, r3.Vec{X: 1})
	if err != nil {
		t.Fatal(err)
	}
	if gotT != units.TimeSI || gotX != units.LengthSI {
		t.Errorf("field called with t=%g x=%g, want SI units", gotT, gotX)
	}
	if math.Abs(s.E.X-1) > 1e-15 || math.Abs(s.B.Z-2) > 1e-15 {
		t.Errorf("sample not converted back: %+v", s)
	}
}

func TestBoundary_Errors(t *testing.T) {
	tests := []struct {
		name string
		f    Field
	}{
		{"failure", Func(func(t, x, y, z float64) (Sample, error) {
			return Sample{}, errors.New("boom")
		})},
		{"nan", Uniform{E: r3.Vec{X: math.NaN()}}},
		{"inf", Uniform{B: r3.Vec{Y: math.Inf(1)}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBoundary(tt.f).At(0, r3.Vec{})
			if !errors.Is(err, dynamo.ErrField) {
				t.Errorf("expected ErrField, got %v", err)
			}
		})
	}
}

func TestGaussianPulse(t *testing.T) {
	g := GaussianPulse{Amplitude: 1e10, Wavelength: 800e-9, Duration: 10e-15}
	if err := g.Validate(); err != nil {
		t.Fatal(err)
	}

	peak, _ := g.Evaluate(0, 0, 0, 0)
	if peak.E.X != 1e10 {
		t.Errorf("peak E = %g, want amplitude", peak.E.X)
	}
	if math.Abs(peak.B.Y-1e10/units.SpeedOfLightSI) > 1e-9 {
		t.Errorf("peak B = %g, want E/c", peak.B.Y)
	}

	// half maximum of the envelope at half the FWHM, sampled at a carrier crest.
	period := 800e-9 / units.SpeedOfLightSI
	half := math.Round(5e-15/period) * period
	s, _ := g.Evaluate(half, 0, 0, 0)
	env := math.Exp(-math.Pow(half/(g.Duration/(2*math.Sqrt(2*math.Ln2))), 2) / 2)
	if math.Abs(s.E.X-1e10*env) > 1e-3*1e10 {
		t.Errorf("envelope at %g s = %g, want %g", half, s.E.X, 1e10*env)
	}

	// the pulse moves at c along z.
	z := 3e-6
	moved, _ := g.Evaluate(z/units.SpeedOfLightSI, 0, 0, z)
	if math.Abs(moved.E.X-peak.E.X) > 1e-6*peak.E.X {
		t.Errorf("pulse not travelling at c: %g vs %g", moved.E.X, peak.E.X)
	}

	if err := (GaussianPulse{Wavelength: 1}).Validate(); !errors.Is(err, dynamo.ErrConfig) {
		t.Errorf("zero duration: got %v", err)
	}
}

const uniformScript = `
function field(t, x, y, z)
  return 1.5, 0, -2, 0, 0, t
end
`

func TestLua_Evaluate(t *testing.T) {
	l, err := NewLua(uniformScript)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	s, err := l.Evaluate(3, 0, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	want := Sample{E: r3.Vec{X: 1.5, Z: -2}, B: r3.Vec{Z: 3}}
	if s != want {
		t.Errorf("got %+v, want %+v", s, want)
	}
	// stack must be clean after each call.
	if top := l.L.GetTop(); top != 0 {
		t.Errorf("lua stack top = %d after call", top)
	}
}

func TestLua_Errors(t *testing.T) {
	if _, err := NewLua("x = 1"); err == nil {
		t.Error("expected error for missing entry function")
	}
	if _, err := NewLua("function field("); err == nil {
		t.Error("expected syntax error")
	}

	l, err := NewLua(`function field(t, x, y, z) error("bad") end`)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	if _, err := NewBoundary(l).At(0, r3.Vec{}); !errors.Is(err, dynamo.ErrField) {
		t.Errorf("expected ErrField, got %v", err)
	}

	s, err := NewLua(`function field(t, x, y, z) return "a", 0, 0, 0, 0, 0 end`)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if _, err := s.Evaluate(0, 0, 0, 0); err == nil {
		t.Error("expected error for non-numeric return")
	}
}

func TestLua_Sandbox(t *testing.T) {
	const entry = "\nfunction field(t, x, y, z) return 0, 0, 0, 0, 0, 0 end"
	for _, src := range []string{
		`os.execute("true")`,
		`io.write("x")`,
		`dofile("/dev/null")`,
		`loadfile("/dev/null")`,
		`require("os")`,
		`debug.traceback()`,
		`package.loaded.os.exit(1)`,
	} {
		if l, err := NewLua(src + entry); err == nil {
			l.Close()
			t.Errorf("%s: expected error in sandbox", src)
		}
	}

	l, err := NewLua(`local s = string.format("%d", math.floor(table.getn and 2 or 2.5))` + entry)
	if err != nil {
		t.Fatalf("base, math, string and table should be available: %v", err)
	}
	l.Close()
}

func TestLua_LoadTimeout(t *testing.T) {
	old := LuaLoadTimeout
	LuaLoadTimeout = 50 * time.Millisecond
	defer func() { LuaLoadTimeout = old }()

	start := time.Now()
	if _, err := NewLua(`while true do end`); err == nil {
		t.Fatal("expected a timeout loading a script that never returns")
	}
	if d := time.Since(start); d > 10*time.Second {
		t.Errorf("load took %v", d)
	}
}

func TestLua_SetContext(t *testing.T) {
	l, err := NewLua(`function field(t, x, y, z) while true do end end`)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	l.SetContext(ctx)
	if _, err := NewBoundary(l).At(0, r3.Vec{}); !errors.Is(err, dynamo.ErrField) {
		t.Errorf("expected ErrField once the context expires, got %v", err)
	}
}

func TestLua_EvaluateAfterClose(t *testing.T) {
	l, err := NewLua(uniformScript)
	if err != nil {
		t.Fatal(err)
	}
	l.Close()
	l.Close()
	if _, err := l.Evaluate(0, 0, 0, 0); err == nil {
		t.Error("expected error from a closed interpreter")
	}
	l.SetContext(context.Background())
}

func TestLuaFactory_Independent(t *testing.T) {
	factory := LuaFactory(uniformScript)
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f, err := factory()
			if err != nil {
				errs <- err
				return
			}
			defer f.(*Lua).Close()
			s, err := f.Evaluate(float64(i), 0, 0, 0)
			if err != nil {
				errs <- err
				return
			}
			if s.B.Z != float64(i) {
				errs <- errors.New("crossed interpreter state")
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
