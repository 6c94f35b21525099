package analysis

import (
	"context"
	"log/slog"

	"github.com/micrenda/circlesim-sub000/internal/field"
	"github.com/micrenda/circlesim-sub000/internal/lab"
	"github.com/micrenda/circlesim-sub000/internal/logging"
	"github.com/micrenda/circlesim-sub000/internal/sim"
)

// Job is everything needed to repeat a simulation from different initial
// states.
type Job struct {
	Particle   lab.Particle
	Lab        *lab.Lab
	Field      field.Factory
	Config     sim.Config
	Integrator string
	Logger     *slog.Logger
}

// Run performs one simulation with a fresh field.
func (j Job) Run(ctx context.Context, initial lab.GlobalState, reporter sim.Reporter) (*sim.Result, error) {
	var f field.Field = field.Zero{}
	if j.Field != nil {
		var err error
		if f, err = j.Field(); err != nil {
			return nil, err
		}
	}
	if c, ok := f.(interface{ Close() }); ok {
		defer c.Close()
	}
	if c, ok := f.(interface{ SetContext(context.Context) }); ok {
		c.SetContext(ctx)
	}

	logger := j.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	opts := []sim.Option{sim.WithLogger(logger)}
	if j.Integrator != "" {
		opts = append(opts, sim.WithIntegrator(j.Integrator))
	}
	if reporter != nil {
		opts = append(opts, sim.WithReporter(reporter))
	}

	s, err := sim.New(j.Particle, j.Lab, f, j.Config, opts...)
	if err != nil {
		return nil, err
	}
	return s.Run(ctx, initial)
}
