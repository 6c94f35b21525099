package sim

import (
	"github.com/micrenda/circlesim-sub000/internal/field"
	"github.com/micrenda/circlesim-sub000/internal/lab"
)

// Reporter receives the trajectory of a run. An error from any method
// aborts the run. A Reporter belongs to a single run.
type Reporter interface {
	OnNodeEnter(id int, node *lab.Node, localTime float64) error
	OnNodeProgress(id int, node *lab.Node, localTime float64, state lab.LocalState, sample field.Sample) error
	OnNodeExit(id int, node *lab.Node, localTime float64) error
	OnFreeEnter(t float64, state lab.GlobalState) error
	OnFreeProgress(t float64, state lab.GlobalState) error
	OnFreeExit(t float64, state lab.GlobalState) error
}

// NopReporter ignores everything. Embed it to implement part of Reporter.
type NopReporter struct{}

func (NopReporter) OnNodeEnter(int, *lab.Node, float64) error { return nil }
func (NopReporter) OnNodeProgress(int, *lab.Node, float64, lab.LocalState, field.Sample) error {
	return nil
}
func (NopReporter) OnNodeExit(int, *lab.Node, float64) error      { return nil }
func (NopReporter) OnFreeEnter(float64, lab.GlobalState) error    { return nil }
func (NopReporter) OnFreeProgress(float64, lab.GlobalState) error { return nil }
func (NopReporter) OnFreeExit(float64, lab.GlobalState) error     { return nil }

// Hooks adapts optional functions to Reporter. Nil fields are skipped.
type Hooks struct {
	NodeEnter    func(id int, node *lab.Node, localTime float64) error
	NodeProgress func(id int, node *lab.Node, localTime float64, state lab.LocalState, sample field.Sample) error
	NodeExit     func(id int, node *lab.Node, localTime float64) error
	FreeEnter    func(t float64, state lab.GlobalState) error
	FreeProgress func(t float64, state lab.GlobalState) error
	FreeExit     func(t float64, state lab.GlobalState) error
}

func (h Hooks) OnNodeEnter(id int, node *lab.Node, localTime float64) error {
	if h.NodeEnter == nil {
		return nil
	}
	return h.NodeEnter(id, node, localTime)
}

func (h Hooks) OnNodeProgress(id int, node *lab.Node, localTime float64, state lab.LocalState, sample field.Sample) error {
	if h.NodeProgress == nil {
		return nil
	}
	return h.NodeProgress(id, node, localTime, state, sample)
}

func (h Hooks) OnNodeExit(id int, node *lab.Node, localTime float64) error {
	if h.NodeExit == nil {
		return nil
	}
	return h.NodeExit(id, node, localTime)
}

func (h Hooks) OnFreeEnter(t float64, state lab.GlobalState) error {
	if h.FreeEnter == nil {
		return nil
	}
	return h.FreeEnter(t, state)
}

func (h Hooks) OnFreeProgress(t float64, state lab.GlobalState) error {
	if h.FreeProgress == nil {
		return nil
	}
	return h.FreeProgress(t, state)
}

func (h Hooks) OnFreeExit(t float64, state lab.GlobalState) error {
	if h.FreeExit == nil {
		return nil
	}
	return h.FreeExit(t, state)
}

// Reporters fans every callback out in order and stops at the first error.
type Reporters []Reporter

func (rs Reporters) OnNodeEnter(id int, node *lab.Node, localTime float64) error {
	for _, r := range rs {
		if err := r.OnNodeEnter(id, node, localTime); err != nil {
			return err
		}
	}
	return nil
}

func (rs Reporters) OnNodeProgress(id int, node *lab.Node, localTime float64, state lab.LocalState, sample field.Sample) error {
	for _, r := range rs {
		if err := r.OnNodeProgress(id, node, localTime, state, sample); err != nil {
			return err
		}
	}
	return nil
}

func (rs Reporters) OnNodeExit(id int, node *lab.Node, localTime float64) error {
	for _, r := range rs {
		if err := r.OnNodeExit(id, node, localTime); err != nil {
			return err
		}
	}
	return nil
}

func (rs Reporters) OnFreeEnter(t float64, state lab.GlobalState) error {
	for _, r := range rs {
		if err := r.OnFreeEnter(t, state); err != nil {
			return err
		}
	}
	return nil
}

func (rs Reporters) OnFreeProgress(t float64, state lab.GlobalState) error {
	for _, r := range rs {
		if err := r.OnFreeProgress(t, state); err != nil {
			return err
		}
	}
	return nil
}

func (rs Reporters) OnFreeExit(t float64, state lab.GlobalState) error {
	for _, r := range rs {
		if err := r.OnFreeExit(t, state); err != nil {
			return err
		}
	}
	return nil
}
