package sim

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/micrenda/circlesim-sub000/internal/dynamo"
	"github.com/micrenda/circlesim-sub000/internal/field"
	"github.com/micrenda/circlesim-sub000/internal/lab"
	"github.com/micrenda/circlesim-sub000/internal/physics"
	"github.com/micrenda/circlesim-sub000/internal/vec"
)

type event struct {
	kind      string
	id        int
	node      int
	t         float64
	localTime float64
	momentum  r3.Vec
}

type recorder struct {
	events []event
}

func (r *recorder) OnNodeEnter(id int, node *lab.Node, localTime float64) error {
	r.events = append(r.events, event{kind: "node_enter", id: id, node: node.ID(), localTime: localTime})
	return nil
}

func (r *recorder) OnNodeProgress(id int, node *lab.Node, localTime float64, s lab.LocalState, _ field.Sample) error {
	r.events = append(r.events, event{kind: "node_progress", id: id, node: node.ID(), localTime: localTime, momentum: s.Momentum})
	return nil
}

func (r *recorder) OnNodeExit(id int, node *lab.Node, localTime float64) error {
	r.events = append(r.events, event{kind: "node_exit", id: id, node: node.ID(), localTime: localTime})
	return nil
}

func (r *recorder) OnFreeEnter(t float64, s lab.GlobalState) error {
	r.events = append(r.events, event{kind: "free_enter", t: t, momentum: s.Momentum})
	return nil
}

func (r *recorder) OnFreeProgress(t float64, s lab.GlobalState) error {
	r.events = append(r.events, event{kind: "free_progress", t: t, momentum: s.Momentum})
	return nil
}

func (r *recorder) OnFreeExit(t float64, s lab.GlobalState) error {
	r.events = append(r.events, event{kind: "free_exit", t: t, momentum: s.Momentum})
	return nil
}

// transitions drops progress events.
func (r *recorder) transitions() []event {
	var out []event
	for _, e := range r.events {
		if e.kind != "node_progress" && e.kind != "free_progress" {
			out = append(out, e)
		}
	}
	return out
}

func kinds(events []event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.kind
	}
	return out
}

func newLab(t *testing.T, positions map[int]r3.Vec) *lab.Lab {
	t.Helper()
	var nodes []*lab.Node
	for id, p := range positions {
		n, err := lab.NewNode(id, vec.Widen(p), 0, 0)
		if err != nil {
			t.Fatal(err)
		}
		nodes = append(nodes, n)
	}
	l, err := lab.NewLab(nodes...)
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func crossingConfig() Config {
	cfg := DefaultConfig()
	cfg.TimeResolutionFree = 1
	cfg.TimeResolutionLaser = 0.1
	cfg.Duration = 150
	cfg.InfluenceRadius = 10
	return cfg
}

func start(x r3.Vec, p r3.Vec) lab.GlobalState {
	return lab.GlobalState{Position: vec.Widen(x), Momentum: p}
}

func TestRun_CrossingScenario(t *testing.T) {
	particle := lab.Particle{Mass: 1, Charge: 1}
	rec := &recorder{}
	s, err := New(particle, newLab(t, map[int]r3.Vec{0: {}}), field.Zero{}, crossingConfig(), WithReporter(rec))
	if err != nil {
		t.Fatal(err)
	}

	p0 := r3.Vec{X: -1}
	res, err := s.Run(context.Background(), start(r3.Vec{X: 100}, p0))
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"free_enter", "free_exit", "node_enter", "node_exit", "free_enter", "free_exit"}
	got := kinds(rec.transitions())
	if len(got) != len(want) {
		t.Fatalf("transitions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("transitions = %v, want %v", got, want)
		}
	}

	tr := rec.transitions()
	if tr[1].momentum != p0 || tr[4].momentum != p0 {
		t.Errorf("momentum across the episode: entry %v exit %v", tr[1].momentum, tr[4].momentum)
	}
	if res.Interactions != 1 || res.FreeSegments != 2 {
		t.Errorf("result = %+v", res)
	}
	if res.Time != 150 {
		t.Errorf("final time %v, want 150", res.Time)
	}
	if res.Final.Momentum != p0 {
		t.Errorf("final momentum %v", res.Final.Momentum)
	}

	v := physics.Velocity(particle, p0)
	wantX := 100 + 150*v.X
	if got := res.Final.Position.Narrow(); math.Abs(got.X-wantX) > 1e-7 || got.Y != 0 || got.Z != 0 {
		t.Errorf("final position %v, want x=%g", got, wantX)
	}

	// entry happens at the first free boundary within the radius.
	if x := 100 + tr[1].t*v.X; x > 10 || x < 10+v.X {
		t.Errorf("entered at x=%g", x)
	}
}

func TestRun_CallbackOrdering(t *testing.T) {
	rec := &recorder{}
	l := newLab(t, map[int]r3.Vec{0: {}, 1: {X: -40}, 2: {X: -80}})
	cfg := crossingConfig()
	cfg.Duration = 200
	s, err := New(lab.Electron(), l, field.Zero{}, cfg, WithReporter(rec))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Run(context.Background(), start(r3.Vec{X: 30}, r3.Vec{X: -2})); err != nil {
		t.Fatal(err)
	}

	open := ""
	episode := -1
	var nodes []int
	for _, e := range rec.events {
		switch e.kind {
		case "free_enter", "node_enter":
			if open != "" {
				t.Fatalf("%s while %s is open", e.kind, open)
			}
			open = e.kind
			if e.kind == "node_enter" {
				if e.id != episode+1 {
					t.Fatalf("episode id %d after %d", e.id, episode)
				}
				episode = e.id
				nodes = append(nodes, e.node)
			}
		case "free_progress", "free_exit":
			if open != "free_enter" {
				t.Fatalf("%s outside a free segment", e.kind)
			}
			if e.kind == "free_exit" {
				open = ""
			}
		case "node_progress", "node_exit":
			if open != "node_enter" || e.id != episode {
				t.Fatalf("%s (id %d) outside episode %d", e.kind, e.id, episode)
			}
			if e.kind == "node_exit" {
				open = ""
			}
		}
	}
	if open != "" {
		t.Errorf("segment %s left open", open)
	}
	if len(nodes) != 3 || nodes[0] != 0 || nodes[1] != 1 || nodes[2] != 2 {
		t.Errorf("visited nodes %v, want [0 1 2]", nodes)
	}
}

func TestRun_StartInsideRadius(t *testing.T) {
	rec := &recorder{}
	cfg := crossingConfig()
	cfg.Duration = 5
	s, err := New(lab.Electron(), newLab(t, map[int]r3.Vec{3: {}}), field.Zero{}, cfg, WithReporter(rec))
	if err != nil {
		t.Fatal(err)
	}
	res, err := s.Run(context.Background(), start(r3.Vec{X: 1}, r3.Vec{}))
	if err != nil {
		t.Fatal(err)
	}

	got := kinds(rec.transitions())
	if len(got) != 2 || got[0] != "node_enter" || got[1] != "node_exit" {
		t.Errorf("transitions = %v", got)
	}
	if rec.events[0].id != 0 || rec.events[0].node != 3 {
		t.Errorf("first event %+v", rec.events[0])
	}
	if res.FreeSegments != 0 || res.Interactions != 1 || res.Intervals != 50 {
		t.Errorf("result %+v", res)
	}
}

func TestRun_Selection(t *testing.T) {
	tests := []struct {
		policy Selection
		want   int
	}{
		{SelectNearest, 2},
		{SelectFirst, 1},
	}

	for _, tt := range tests {
		t.Run(tt.policy.String(), func(t *testing.T) {
			rec := &recorder{}
			cfg := crossingConfig()
			cfg.Duration = 1
			cfg.Selection = tt.policy
			l := newLab(t, map[int]r3.Vec{1: {X: 5}, 2: {X: 1}})
			s, err := New(lab.Electron(), l, field.Zero{}, cfg, WithReporter(rec))
			if err != nil {
				t.Fatal(err)
			}
			if _, err := s.Run(context.Background(), start(r3.Vec{}, r3.Vec{})); err != nil {
				t.Fatal(err)
			}
			if rec.events[0].kind != "node_enter" || rec.events[0].node != tt.want {
				t.Errorf("entered %+v, want node %d", rec.events[0], tt.want)
			}
		})
	}
}

func TestSelectNode_TieBreaksByID(t *testing.T) {
	l := newLab(t, map[int]r3.Vec{7: {X: 2}, 4: {X: -2}})
	n := selectNode(l, vec.Wide{}, 10, SelectNearest)
	if n == nil || n.ID() != 4 {
		t.Errorf("tie resolved to %v, want node 4", n)
	}
	if n := selectNode(l, vec.Widen(r3.Vec{X: 100}), 10, SelectNearest); n != nil {
		t.Errorf("out of range resolved to node %d", n.ID())
	}
}

func TestRun_LaserWindow(t *testing.T) {
	rec := &recorder{}
	cfg := crossingConfig()
	cfg.Duration = 4.5
	cfg.InfluenceRadius = 1000
	cfg.LaserHalfDuration = 1
	s, err := New(lab.Electron(), newLab(t, map[int]r3.Vec{0: {}}), field.Zero{}, cfg, WithReporter(rec))
	if err != nil {
		t.Fatal(err)
	}
	res, err := s.Run(context.Background(), start(r3.Vec{}, r3.Vec{}))
	if err != nil {
		t.Fatal(err)
	}

	tr := rec.transitions()
	if tr[0].kind != "node_enter" || tr[0].localTime != -1 {
		t.Fatalf("first transition %+v", tr[0])
	}
	if tr[1].kind != "node_exit" || math.Abs(tr[1].localTime-1) > 1e-9 {
		t.Errorf("window closed at %+v", tr[1])
	}
	// one free interval, then the particle is still in range and re-enters.
	if tr[2].kind != "free_enter" || tr[4].kind != "node_enter" || tr[4].id != 1 {
		t.Errorf("transitions %v", kinds(tr))
	}
	if res.Interactions != 2 {
		t.Errorf("interactions = %d, want 2", res.Interactions)
	}
}

func TestRun_ClipsLastInterval(t *testing.T) {
	rec := &recorder{}
	cfg := crossingConfig()
	cfg.Duration = 2.5
	s, err := New(lab.Electron(), newLab(t, nil), nil, cfg, WithReporter(rec))
	if err != nil {
		t.Fatal(err)
	}
	res, err := s.Run(context.Background(), start(r3.Vec{}, r3.Vec{Y: 1}))
	if err != nil {
		t.Fatal(err)
	}
	var times []float64
	for _, e := range rec.events {
		if e.kind == "free_progress" {
			times = append(times, e.t)
		}
	}
	if len(times) != 3 || times[2] != 2.5 || res.Time != 2.5 {
		t.Errorf("progress times %v, final %v", times, res.Time)
	}
}

func TestRun_FieldFailure(t *testing.T) {
	rec := &recorder{}
	bad := field.Uniform{E: r3.Vec{X: math.NaN()}}
	cfg := crossingConfig()
	s, err := New(lab.Electron(), newLab(t, map[int]r3.Vec{0: {}}), bad, cfg, WithReporter(rec))
	if err != nil {
		t.Fatal(err)
	}

	_, err = s.Run(context.Background(), start(r3.Vec{X: 1}, r3.Vec{}))
	if !errors.Is(err, dynamo.ErrField) {
		t.Fatalf("expected ErrField, got %v", err)
	}
	var se *dynamo.SimulationError
	if !errors.As(err, &se) || se.Regime != "laser" {
		t.Errorf("expected laser SimulationError, got %#v", err)
	}
	for _, e := range rec.events {
		if e.kind == "node_exit" || e.kind == "free_exit" {
			t.Errorf("exit callback %s after failure", e.kind)
		}
	}
}

func TestRun_ReporterErrorAborts(t *testing.T) {
	stop := errors.New("disk full")
	calls := 0
	hooks := Hooks{FreeProgress: func(float64, lab.GlobalState) error {
		calls++
		if calls == 3 {
			return stop
		}
		return nil
	}}
	s, err := New(lab.Electron(), newLab(t, nil), field.Zero{}, crossingConfig(), WithReporter(hooks))
	if err != nil {
		t.Fatal(err)
	}
	res, err := s.Run(context.Background(), start(r3.Vec{}, r3.Vec{X: 1}))
	if !errors.Is(err, stop) {
		t.Fatalf("expected reporter error, got %v", err)
	}
	if res == nil || res.Time != 3 {
		t.Errorf("partial result %+v", res)
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := &recorder{}
	s, err := New(lab.Electron(), newLab(t, nil), field.Zero{}, crossingConfig(), WithReporter(rec))
	if err != nil {
		t.Fatal(err)
	}
	_, err = s.Run(ctx, start(r3.Vec{}, r3.Vec{}))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if got := kinds(rec.events); len(got) != 1 || got[0] != "free_enter" {
		t.Errorf("events after cancel: %v", got)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	l := newLab(t, nil)
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"laser not finer than free", func(c *Config) { c.TimeResolutionLaser = c.TimeResolutionFree }},
		{"zero duration", func(c *Config) { c.Duration = 0 }},
		{"negative radius", func(c *Config) { c.InfluenceRadius = -1 }},
		{"zero abs tolerance", func(c *Config) { c.ErrorAbs = 0 }},
		{"nan rel tolerance", func(c *Config) { c.ErrorRel = math.NaN() }},
		{"negative window", func(c *Config) { c.LaserHalfDuration = -1 }},
		{"negative sub steps", func(c *Config) { c.MaxSubSteps = -1 }},
		{"bad selection", func(c *Config) { c.Selection = 9 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if _, err := New(lab.Electron(), l, nil, cfg); !errors.Is(err, dynamo.ErrConfig) {
				t.Errorf("expected ErrConfig, got %v", err)
			}
		})
	}

	if _, err := New(lab.Particle{Mass: 0}, l, nil, DefaultConfig()); !errors.Is(err, dynamo.ErrConfig) {
		t.Errorf("massless particle: got %v", err)
	}
	if _, err := New(lab.Electron(), l, nil, DefaultConfig(), WithIntegrator("leapfrog")); !errors.Is(err, dynamo.ErrConfig) {
		t.Errorf("unknown integrator: got %v", err)
	}
}

func TestNew_WarnsOnUnboundedPulseWindow(t *testing.T) {
	pulse := field.GaussianPulse{Amplitude: 1e10, Wavelength: 800e-9, Duration: 10e-15}
	l := newLab(t, nil)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	if _, err := New(lab.Electron(), l, pulse, DefaultConfig(), WithLogger(logger)); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "unbounded laser window") {
		t.Errorf("expected a warning, got %q", buf.String())
	}

	buf.Reset()
	cfg := DefaultConfig()
	cfg.LaserHalfDuration = 800
	if _, err := New(lab.Electron(), l, pulse, cfg, WithLogger(logger)); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Errorf("unexpected log output %q", buf.String())
	}
}

func TestReporters_FanOut(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	rs := Reporters{a, NopReporter{}, b}
	if err := rs.OnFreeEnter(1, lab.GlobalState{}); err != nil {
		t.Fatal(err)
	}
	if len(a.events) != 1 || len(b.events) != 1 {
		t.Errorf("fan-out reached %d and %d reporters", len(a.events), len(b.events))
	}
}

func TestSelectionText(t *testing.T) {
	var s Selection
	if err := s.UnmarshalText([]byte("first")); err != nil || s != SelectFirst {
		t.Errorf("UnmarshalText = %v, %v", s, err)
	}
	if err := s.UnmarshalText([]byte("random")); !errors.Is(err, dynamo.ErrConfig) {
		t.Errorf("expected ErrConfig, got %v", err)
	}
	if b, _ := SelectNearest.MarshalText(); string(b) != "nearest" {
		t.Errorf("MarshalText = %q", b)
	}
}
