package sim

import (
	"fmt"
	"math"
	"time"

	"github.com/micrenda/circlesim-sub000/internal/dynamo"
	"github.com/micrenda/circlesim-sub000/internal/lab"
)

type Regime int

const (
	Free Regime = iota
	Laser
)

func (r Regime) String() string {
	switch r {
	case Free:
		return "free"
	case Laser:
		return "laser"
	}
	return fmt.Sprintf("Regime(%d)", int(r))
}

// Selection decides which node is entered when several are in range.
type Selection int

const (
	// SelectNearest picks the closest node, breaking ties by ascending id.
	SelectNearest Selection = iota
	// SelectFirst picks the in-range node with the lowest id.
	SelectFirst
)

func (s Selection) String() string {
	switch s {
	case SelectNearest:
		return "nearest"
	case SelectFirst:
		return "first"
	}
	return fmt.Sprintf("Selection(%d)", int(s))
}

func ParseSelection(s string) (Selection, error) {
	switch s {
	case "", "nearest":
		return SelectNearest, nil
	case "first":
		return SelectFirst, nil
	}
	return 0, dynamo.Configf("unknown node selection %q (want nearest or first)", s)
}

func (s Selection) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Selection) UnmarshalText(b []byte) error {
	v, err := ParseSelection(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Config holds the run parameters, all in atomic units.
type Config struct {
	ErrorAbs            float64   `json:"error_abs"`
	ErrorRel            float64   `json:"error_rel"`
	TimeResolutionLaser float64   `json:"time_resolution_laser"`
	TimeResolutionFree  float64   `json:"time_resolution_free"`
	Duration            float64   `json:"duration"`
	InfluenceRadius     float64   `json:"influence_radius"`
	LaserHalfDuration   float64   `json:"laser_half_duration"` // 0 leaves the local window unbounded
	MaxSubSteps         int       `json:"max_sub_steps"`       // 0 selects the integrator default
	Selection           Selection `json:"selection"`
}

func DefaultConfig() Config {
	return Config{
		ErrorAbs:            1e-10,
		ErrorRel:            1e-10,
		TimeResolutionLaser: 0.1,
		TimeResolutionFree:  1,
		Duration:            1000,
		InfluenceRadius:     10,
		MaxSubSteps:         1_000_000,
		Selection:           SelectNearest,
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func (c Config) Validate() error {
	switch {
	case !finite(c.ErrorAbs) || !(c.ErrorAbs > 0):
		return dynamo.Configf("error_abs must be positive, got %g", c.ErrorAbs)
	case !finite(c.ErrorRel) || !(c.ErrorRel > 0):
		return dynamo.Configf("error_rel must be positive, got %g", c.ErrorRel)
	case !finite(c.TimeResolutionLaser) || !(c.TimeResolutionLaser > 0):
		return dynamo.Configf("time_resolution_laser must be positive, got %g", c.TimeResolutionLaser)
	case !finite(c.TimeResolutionFree) || !(c.TimeResolutionFree > 0):
		return dynamo.Configf("time_resolution_free must be positive, got %g", c.TimeResolutionFree)
	case c.TimeResolutionLaser >= c.TimeResolutionFree:
		return dynamo.Configf("time_resolution_laser (%g) must be smaller than time_resolution_free (%g)",
			c.TimeResolutionLaser, c.TimeResolutionFree)
	case !finite(c.Duration) || !(c.Duration > 0):
		return dynamo.Configf("duration must be positive, got %g", c.Duration)
	case !finite(c.InfluenceRadius) || !(c.InfluenceRadius > 0):
		return dynamo.Configf("influence_radius must be positive, got %g", c.InfluenceRadius)
	case !finite(c.LaserHalfDuration) || c.LaserHalfDuration < 0:
		return dynamo.Configf("laser_half_duration must be non-negative, got %g", c.LaserHalfDuration)
	case c.MaxSubSteps < 0:
		return dynamo.Configf("max_sub_steps must be non-negative, got %d", c.MaxSubSteps)
	case c.Selection != SelectNearest && c.Selection != SelectFirst:
		return dynamo.Configf("unknown node selection %d", int(c.Selection))
	}
	return nil
}

// Result summarises a finished or interrupted run.
type Result struct {
	Time         float64         `json:"time"`
	Final        lab.GlobalState `json:"-"`
	Regime       Regime          `json:"-"`
	Interactions int             `json:"interactions"`
	FreeSegments int             `json:"free_segments"`
	Intervals    int             `json:"intervals"`
	Stats        dynamo.Stats    `json:"stats"`
	Elapsed      time.Duration   `json:"elapsed_ns"`
}
