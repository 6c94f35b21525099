package metrics

import (
	"context"
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/micrenda/circlesim-sub000/internal/field"
	"github.com/micrenda/circlesim-sub000/internal/lab"
	"github.com/micrenda/circlesim-sub000/internal/sim"
)

const namespace = "circlesim"

// Collector exports run outcomes and live trajectory events to Prometheus.
type Collector struct {
	runs         *prometheus.CounterVec
	nodeVisits   *prometheus.CounterVec
	intervals    prometheus.Counter
	steps        prometheus.Counter
	rejected     prometheus.Counter
	evaluations  prometheus.Counter
	inLaser      prometheus.Gauge
	runDuration  prometheus.Histogram
	energyGain   prometheus.Histogram
	interactions prometheus.Histogram
}

func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished simulation runs by outcome.",
		}, []string{"status"}),
		nodeVisits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_visits_total",
			Help:      "Laser interactions started, by node.",
		}, []string{"node_id"}),
		intervals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intervals_total",
			Help:      "Reporting intervals integrated.",
		}),
		steps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "integrator_steps_total",
			Help:      "Accepted integrator steps.",
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "integrator_rejected_total",
			Help:      "Rejected integrator steps.",
		}),
		evaluations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "integrator_evaluations_total",
			Help:      "Derivative evaluations.",
		}),
		inLaser: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "in_laser",
			Help:      "1 while a watched run is inside a laser interaction.",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock time per run.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		energyGain: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "energy_gain_hartree",
			Help:      "Kinetic energy gained per run.",
			Buckets:   prometheus.LinearBuckets(-1, 0.25, 9),
		}),
		interactions: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "interactions_per_run",
			Help:      "Laser interactions per run.",
			Buckets:   prometheus.LinearBuckets(0, 1, 10),
		}),
	}

	for _, col := range []prometheus.Collector{
		c.runs, c.nodeVisits, c.intervals, c.steps, c.rejected,
		c.evaluations, c.inLaser, c.runDuration, c.energyGain, c.interactions,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ObserveRun records a finished run. res may be nil when the run never
// started.
func (c *Collector) ObserveRun(res *sim.Result, runErr error, values map[string]float64) {
	status := "complete"
	switch {
	case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
		status = "canceled"
	case runErr != nil:
		status = "failed"
	}
	c.runs.WithLabelValues(status).Inc()
	c.inLaser.Set(0)

	if res == nil {
		return
	}
	c.steps.Add(float64(res.Stats.Steps))
	c.rejected.Add(float64(res.Stats.Rejected))
	c.evaluations.Add(float64(res.Stats.Evaluations))
	c.runDuration.Observe(res.Elapsed.Seconds())
	c.interactions.Observe(float64(res.Interactions))
	if gain, ok := values["energy_gain"]; ok {
		c.energyGain.Observe(gain)
	}
}

// Reporter returns a Reporter that feeds the live series of one run.
func (c *Collector) Reporter() sim.Reporter {
	return sim.Hooks{
		NodeEnter: func(_ int, node *lab.Node, _ float64) error {
			c.nodeVisits.WithLabelValues(strconv.Itoa(node.ID())).Inc()
			c.inLaser.Set(1)
			return nil
		},
		NodeProgress: func(int, *lab.Node, float64, lab.LocalState, field.Sample) error {
			c.intervals.Inc()
			return nil
		},
		NodeExit: func(int, *lab.Node, float64) error {
			c.inLaser.Set(0)
			return nil
		},
		FreeProgress: func(float64, lab.GlobalState) error {
			c.intervals.Inc()
			return nil
		},
	}
}
