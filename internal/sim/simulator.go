package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/micrenda/circlesim-sub000/internal/dynamo"
	"github.com/micrenda/circlesim-sub000/internal/field"
	"github.com/micrenda/circlesim-sub000/internal/integrators"
	"github.com/micrenda/circlesim-sub000/internal/lab"
	"github.com/micrenda/circlesim-sub000/internal/logging"
	"github.com/micrenda/circlesim-sub000/internal/physics"
)

// Simulator advances one particle through a lab. A Simulator may run many
// times; concurrent runs need distinct fields unless the field is stateless,
// and distinct reporters.
type Simulator struct {
	particle   lab.Particle
	lab        *lab.Lab
	field      field.Field
	cfg        Config
	reporter   Reporter
	logger     *slog.Logger
	integrator string
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithReporter sets the trajectory sink. The default discards everything.
func WithReporter(r Reporter) Option {
	return func(s *Simulator) {
		s.reporter = r
	}
}

// WithLogger sets a structured logger. Transitions are logged at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Simulator) {
		s.logger = logger
	}
}

// WithIntegrator selects the embedded stepper by name (see integrators.Names).
func WithIntegrator(name string) Option {
	return func(s *Simulator) {
		s.integrator = name
	}
}

// New validates its inputs and returns a ready Simulator.
func New(particle lab.Particle, l *lab.Lab, f field.Field, cfg Config, opts ...Option) (*Simulator, error) {
	if err := particle.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if l == nil {
		return nil, dynamo.Configf("nil lab")
	}
	if f == nil {
		f = field.Zero{}
	}

	s := &Simulator{
		particle:   particle,
		lab:        l,
		field:      f,
		cfg:        cfg,
		reporter:   NopReporter{},
		logger:     logging.NewNop(),
		integrator: integrators.Default,
	}
	for _, opt := range opts {
		opt(s)
	}
	if _, err := integrators.New(s.integrator); err != nil {
		return nil, err
	}
	if _, pulse := f.(field.GaussianPulse); pulse && cfg.LaserHalfDuration == 0 {
		s.logger.Warn("pulse field with an unbounded laser window: local time starts at the pulse peak",
			"laser_half_duration", cfg.LaserHalfDuration)
	}
	return s, nil
}

func (s *Simulator) Config() Config { return s.cfg }

// Run integrates from initial at t = 0 until Config.Duration. On failure
// the partial Result is returned together with the error; run-time errors
// are *dynamo.SimulationError.
func (s *Simulator) Run(ctx context.Context, initial lab.GlobalState) (*Result, error) {
	if !initial.IsValid() {
		return nil, dynamo.Configf("initial state must be finite: %v", initial)
	}

	stepper, err := integrators.New(s.integrator)
	if err != nil {
		return nil, err
	}
	ctrl, err := integrators.NewControlled(stepper, s.cfg.ErrorAbs, s.cfg.ErrorRel, s.cfg.MaxSubSteps)
	if err != nil {
		return nil, err
	}

	boundary := field.NewBoundary(s.field)
	r := &run{
		Simulator: s,
		ctrl:      ctrl,
		boundary:  boundary,
		free:      physics.NewFree(s.particle),
		laser:     physics.NewLaser(s.particle, boundary),
		global:    initial,
		y:         make(dynamo.State, lab.StateDim),
	}

	start := time.Now()
	err = r.execute(ctx)
	res := r.result(time.Since(start))

	if err != nil {
		s.logger.Error("run aborted", "t", res.Time, "regime", r.regime, "error", err)
		return res, err
	}
	s.logger.Info("run complete",
		"t", res.Time,
		"interactions", res.Interactions,
		"free_segments", res.FreeSegments,
		"intervals", res.Intervals,
		"steps", res.Stats.Steps,
		"rejected", res.Stats.Rejected,
		"elapsed", res.Elapsed,
	)
	return res, nil
}

// run is the mutable state of a single Run call.
type run struct {
	*Simulator

	ctrl     *integrators.Controlled
	boundary *field.Boundary
	free     *physics.Free
	laser    *physics.Laser
	y        dynamo.State

	t      float64
	global lab.GlobalState
	regime Regime

	node      *lab.Node
	local     lab.LocalState
	localTime float64

	interaction  int
	freeSegments int
	intervals    int

	freeHint  float64
	laserHint float64
}

func (r *run) execute(ctx context.Context) error {
	if n := r.nearby(); n != nil {
		if err := r.enterNode(n); err != nil {
			return r.fail(err)
		}
	} else if err := r.enterFree(); err != nil {
		return r.fail(err)
	}

	for r.t < r.cfg.Duration {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var err error
		if r.regime == Free {
			err = r.stepFree()
		} else {
			err = r.stepLaser()
		}
		if err != nil {
			return r.fail(err)
		}
		r.intervals++

		if r.t >= r.cfg.Duration {
			break
		}
		if err := r.transition(); err != nil {
			return r.fail(err)
		}
	}

	if r.regime == Free {
		return r.wrap(r.reporter.OnFreeExit(r.t, r.global))
	}
	return r.wrap(r.exitNode())
}

// clockEps is the fraction of an output interval below which a remaining
// span is treated as rounding and absorbed.
const clockEps = 1e-9

// interval returns the end of the next output interval of length res,
// clipped to the run duration.
func (r *run) interval(res float64) float64 {
	next := r.t + res
	if next >= r.cfg.Duration || r.cfg.Duration-next < clockEps*res {
		return r.cfg.Duration
	}
	return next
}

// stepFree integrates the displacement over one free interval from zero in
// float64 and adds it to the wide position once.
func (r *run) stepFree() error {
	next := r.interval(r.cfg.TimeResolutionFree)
	span := next - r.t

	y := lab.LocalState{Momentum: r.global.Momentum}.Pack(r.y)
	_, hint, err := r.ctrl.Advance(r.free, y, 0, span, r.freeHint)
	if err != nil {
		return err
	}
	r.freeHint = hint

	d := lab.Unpack(y)
	r.global = lab.GlobalState{
		Position: r.global.Position.AddNarrow(d.Position),
		Momentum: d.Momentum,
	}
	r.t = next
	return r.reporter.OnFreeProgress(r.t, r.global)
}

func (r *run) stepLaser() error {
	next := r.interval(r.cfg.TimeResolutionLaser)
	span := next - r.t
	target := r.localTime + span

	y := r.local.Pack(r.y)
	_, hint, err := r.ctrl.Advance(r.laser, y, r.localTime, target, r.laserHint)
	if err != nil {
		return err
	}
	r.laserHint = hint
	r.local = lab.Unpack(y)
	r.localTime = target
	r.t = next

	sample, err := r.boundary.At(r.localTime, r.local.Position)
	if err != nil {
		return err
	}
	return r.reporter.OnNodeProgress(r.interaction, r.node, r.localTime, r.local, sample)
}

func (r *run) transition() error {
	switch r.regime {
	case Free:
		n := r.nearby()
		if n == nil {
			return nil
		}
		if err := r.reporter.OnFreeExit(r.t, r.global); err != nil {
			return err
		}
		return r.enterNode(n)
	case Laser:
		if !leaving(r.local, r.localTime+clockEps*r.cfg.TimeResolutionLaser, r.cfg.LaserHalfDuration, r.cfg.InfluenceRadius) {
			return nil
		}
		if err := r.exitNode(); err != nil {
			return err
		}
		return r.enterFree()
	}
	return fmt.Errorf("unknown regime %v", r.regime)
}

func (r *run) nearby() *lab.Node {
	return selectNode(r.lab, r.global.Position, r.cfg.InfluenceRadius, r.cfg.Selection)
}

func (r *run) enterNode(n *lab.Node) error {
	r.regime = Laser
	r.node = n
	r.local = lab.ToLocal(r.global, n)
	r.localTime = 0
	if r.cfg.LaserHalfDuration > 0 {
		r.localTime = -r.cfg.LaserHalfDuration
	}
	r.laserHint = 0

	r.logger.Debug("node enter", "interaction", r.interaction, "node", n.ID(), "t", r.t)
	return r.reporter.OnNodeEnter(r.interaction, n, r.localTime)
}

// exitNode merges the local state back and closes the episode.
func (r *run) exitNode() error {
	r.global = lab.ToGlobal(r.local, r.node)
	r.logger.Debug("node exit", "interaction", r.interaction, "node", r.node.ID(), "t", r.t, "local_time", r.localTime)

	err := r.reporter.OnNodeExit(r.interaction, r.node, r.localTime)
	r.interaction++
	r.node = nil
	return err
}

func (r *run) enterFree() error {
	r.regime = Free
	r.freeSegments++
	return r.reporter.OnFreeEnter(r.t, r.global)
}

func (r *run) wrap(err error) error {
	if err == nil {
		return nil
	}
	return r.fail(err)
}

// fail attaches the run position to err.
func (r *run) fail(err error) error {
	var se *dynamo.SimulationError
	if errors.As(err, &se) {
		se.Step = r.intervals
		se.Time = r.t
		se.Regime = r.regime.String()
		return err
	}
	return &dynamo.SimulationError{
		Step:    r.intervals,
		Time:    r.t,
		Regime:  r.regime.String(),
		State:   r.y.Clone(),
		Wrapped: err,
	}
}

func (r *run) result(elapsed time.Duration) *Result {
	final := r.global
	if r.regime == Laser && r.node != nil {
		final = lab.ToGlobal(r.local, r.node)
	}
	return &Result{
		Time:         r.t,
		Final:        final,
		Regime:       r.regime,
		Interactions: r.interaction,
		FreeSegments: r.freeSegments,
		Intervals:    r.intervals,
		Stats:        r.ctrl.Stats(),
		Elapsed:      elapsed,
	}
}
