// Package metrics turns trajectory callbacks into scalar run metrics and
// Prometheus series.
package metrics

import "github.com/micrenda/circlesim-sub000/internal/sim"

// Metric is a Reporter that reduces a trajectory to one number.
type Metric interface {
	sim.Reporter
	Name() string
	Value() float64
	Reset()
}

// Set groups metrics so they can be attached to a run as one Reporter.
type Set []Metric

// Reporter returns the set as a fan-out Reporter.
func (s Set) Reporter() sim.Reporter {
	rs := make(sim.Reporters, len(s))
	for i, m := range s {
		rs[i] = m
	}
	return rs
}

func (s Set) Values() map[string]float64 {
	out := make(map[string]float64, len(s))
	for _, m := range s {
		out[m.Name()] = m.Value()
	}
	return out
}

func (s Set) Reset() {
	for _, m := range s {
		m.Reset()
	}
}
