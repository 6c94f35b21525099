// Package experiment turns a configuration into a recorded simulation run.
package experiment

import (
	"context"
	"log/slog"

	"github.com/micrenda/circlesim-sub000/internal/analysis"
	"github.com/micrenda/circlesim-sub000/internal/config"
	"github.com/micrenda/circlesim-sub000/internal/field"
	"github.com/micrenda/circlesim-sub000/internal/lab"
	"github.com/micrenda/circlesim-sub000/internal/metrics"
	"github.com/micrenda/circlesim-sub000/internal/sim"
	"github.com/micrenda/circlesim-sub000/internal/storage"
)

// Experiment is a validated configuration, ready to run any number of times.
type Experiment struct {
	label    string
	cfg      *config.Config
	particle lab.Particle
	lab      *lab.Lab
	field    field.Factory
	simCfg   sim.Config
	initial  lab.GlobalState
}

// New builds every component of cfg. Relative script paths resolve against
// baseDir.
func New(label string, cfg *config.Config, baseDir string) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Experiment{label: label, cfg: cfg}

	var err error
	if e.particle, err = cfg.ParticleValue(); err != nil {
		return nil, err
	}
	if e.lab, err = cfg.Lab(); err != nil {
		return nil, err
	}
	if e.field, err = cfg.FieldFactory(baseDir); err != nil {
		return nil, err
	}
	if e.simCfg, err = cfg.SimConfig(); err != nil {
		return nil, err
	}
	if e.initial, err = cfg.InitialState(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Experiment) Label() string            { return e.label }
func (e *Experiment) Config() *config.Config   { return e.cfg }
func (e *Experiment) Particle() lab.Particle   { return e.particle }
func (e *Experiment) Lab() *lab.Lab            { return e.lab }
func (e *Experiment) SimConfig() sim.Config    { return e.simCfg }
func (e *Experiment) Initial() lab.GlobalState { return e.initial }

// Job returns the experiment as a repeatable analysis job.
func (e *Experiment) Job(logger *slog.Logger) analysis.Job {
	return analysis.Job{
		Particle:   e.particle,
		Lab:        e.lab,
		Field:      e.field,
		Config:     e.simCfg,
		Integrator: e.cfg.Integrator,
		Logger:     logger,
	}
}

// Options attach sinks to a run. All fields are optional.
type Options struct {
	Store     *storage.Store
	Collector *metrics.Collector
	Reporters []sim.Reporter
	Logger    *slog.Logger
}

type Outcome struct {
	RunID   string
	Result  *sim.Result
	Metrics map[string]float64
}

// Run performs one simulation from the configured initial state. When a
// store is given the trajectory is recorded even if the run fails, and the
// run ID is returned alongside the error.
func (e *Experiment) Run(ctx context.Context, opts Options) (*Outcome, error) {
	return e.RunWith(ctx, opts, nil)
}

// RunFunc performs the simulation with rep attached.
type RunFunc func(ctx context.Context, rep sim.Reporter) (*sim.Result, error)

// Driver wraps the simulation call, typically to add a reporter and watch
// progress.
type Driver func(ctx context.Context, rep sim.Reporter, run RunFunc) (*sim.Result, error)

// RunWith is Run with the simulation call handed to drive. A nil drive runs
// directly.
func (e *Experiment) RunWith(ctx context.Context, opts Options, drive Driver) (*Outcome, error) {
	set := metrics.Standard(e.particle)
	reps := sim.Reporters{set.Reporter()}

	out := &Outcome{}
	var rec *storage.Run
	if opts.Store != nil {
		var err error
		rec, err = opts.Store.Create(e.label, storage.RunMetadata{
			Integrator: e.cfg.Integrator,
			Config:     e.simCfg,
			Particle:   e.particle,
			Nodes:      e.lab.Len(),
			Initial:    storage.NewStateRecord(e.initial),
		})
		if err != nil {
			return nil, err
		}
		out.RunID = rec.ID()
		reps = append(reps, rec)
	}
	if opts.Collector != nil {
		reps = append(reps, opts.Collector.Reporter())
	}
	reps = append(reps, opts.Reporters...)

	job := e.Job(opts.Logger)
	run := RunFunc(func(ctx context.Context, rep sim.Reporter) (*sim.Result, error) {
		return job.Run(ctx, e.initial, rep)
	})

	var res *sim.Result
	var runErr error
	if drive != nil {
		res, runErr = drive(ctx, reps, run)
	} else {
		res, runErr = run(ctx, reps)
	}

	out.Result = res
	out.Metrics = set.Values()
	if opts.Collector != nil {
		opts.Collector.ObserveRun(res, runErr, out.Metrics)
	}
	if rec != nil {
		if err := rec.Finish(res, runErr, out.Metrics); err != nil && runErr == nil {
			return out, err
		}
	}
	return out, runErr
}
