package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"

	"github.com/micrenda/circlesim-sub000/internal/dynamo"
	"github.com/micrenda/circlesim-sub000/internal/field"
	"github.com/micrenda/circlesim-sub000/internal/integrators"
	"github.com/micrenda/circlesim-sub000/internal/lab"
	"github.com/micrenda/circlesim-sub000/internal/sim"
	"github.com/micrenda/circlesim-sub000/internal/units"
	"github.com/micrenda/circlesim-sub000/internal/vec"
)

const (
	DefaultErrorAbs            = 1e-10
	DefaultErrorRel            = 1e-10
	DefaultTimeResolutionLaser = 0.1
	DefaultTimeResolutionFree  = 1.0
	DefaultDuration            = 1000.0
	DefaultInfluenceRadius     = 10.0
	DefaultMaxSubSteps         = 1_000_000

	// PulseWindow is the laser half-window, in pulse FWHMs, used for a pulse
	// field when laser_half_duration is left at zero.
	PulseWindow = 2.0
)

// Field types.
const (
	FieldZero    = "zero"
	FieldUniform = "uniform"
	FieldPulse   = "pulse"
	FieldLua     = "lua"
)

// Config is the on-disk description of a run. Quantities are in atomic
// units unless Units is "si". Field parameters are always SI, the units of
// the field function boundary.
type Config struct {
	Units      string           `yaml:"units"`
	Integrator string           `yaml:"integrator"`
	Particle   ParticleConfig   `yaml:"particle"`
	Initial    InitialConfig    `yaml:"initial"`
	Simulation SimulationConfig `yaml:"simulation"`
	Field      FieldConfig      `yaml:"field"`
	Nodes      []NodeConfig     `yaml:"nodes"`
}

type ParticleConfig struct {
	Mass   float64 `yaml:"mass"`
	Charge float64 `yaml:"charge"`
}

type InitialConfig struct {
	Position WideTriple `yaml:"position"`
	Momentum Vec3       `yaml:"momentum"`
}

type SimulationConfig struct {
	ErrorAbs            float64 `yaml:"error_abs"`
	ErrorRel            float64 `yaml:"error_rel"`
	TimeResolutionLaser float64 `yaml:"time_resolution_laser"`
	TimeResolutionFree  float64 `yaml:"time_resolution_free"`
	Duration            float64 `yaml:"duration"`
	InfluenceRadius     float64 `yaml:"influence_radius"`
	LaserHalfDuration   float64 `yaml:"laser_half_duration,omitempty"`
	MaxSubSteps         int     `yaml:"max_sub_steps,omitempty"`
	Selection           string  `yaml:"selection,omitempty"`
}

type FieldConfig struct {
	Type string `yaml:"type"`

	// uniform
	E Vec3 `yaml:"e,omitempty"`
	B Vec3 `yaml:"b,omitempty"`

	// pulse
	Amplitude  float64 `yaml:"amplitude,omitempty"`
	Wavelength float64 `yaml:"wavelength,omitempty"`
	Duration   float64 `yaml:"duration,omitempty"`
	Phase      float64 `yaml:"phase,omitempty"`

	// lua: Script is a file path relative to the config file, Source an
	// inline script. Script wins when both are set.
	Script string `yaml:"script,omitempty"`
	Source string `yaml:"source,omitempty"`
}

type NodeConfig struct {
	ID       int        `yaml:"id"`
	Position WideTriple `yaml:"position"`
	Theta    float64    `yaml:"theta"`
	Phi      float64    `yaml:"phi"`
}

// Vec3 is a float64 triple.
type Vec3 [3]float64

func (v Vec3) R3() r3.Vec {
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}
}

func (v Vec3) IsZero() bool {
	return v == Vec3{}
}

// WideTriple is a position given as three decimal literals. The literal
// text is kept so it can be parsed at extended precision.
type WideTriple [3]string

func (w *WideTriple) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.SequenceNode || len(n.Content) != 3 {
		return fmt.Errorf("line %d: position must be a sequence of three numbers", n.Line)
	}
	for i, c := range n.Content {
		if c.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: position component %d is not a scalar", c.Line, i)
		}
		w[i] = c.Value
	}
	return nil
}

func (w WideTriple) MarshalYAML() (any, error) {
	n := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for _, v := range w {
		if v == "" {
			v = "0"
		}
		n.Content = append(n.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: v})
	}
	return n, nil
}

// Wide parses the triple at extended precision. Empty components are zero.
func (w WideTriple) Wide() (vec.Wide, error) {
	var s [3]string
	for i, v := range w {
		s[i] = strings.TrimSpace(v)
		if s[i] == "" {
			s[i] = "0"
		}
	}
	return vec.ParseWide(s[0], s[1], s[2])
}

func DefaultConfig() *Config {
	return &Config{
		Units:      string(units.Atomic),
		Integrator: integrators.Default,
		Particle:   ParticleConfig{Mass: 1, Charge: 1},
		Simulation: SimulationConfig{
			ErrorAbs:            DefaultErrorAbs,
			ErrorRel:            DefaultErrorRel,
			TimeResolutionLaser: DefaultTimeResolutionLaser,
			TimeResolutionFree:  DefaultTimeResolutionFree,
			Duration:            DefaultDuration,
			InfluenceRadius:     DefaultInfluenceRadius,
			MaxSubSteps:         DefaultMaxSubSteps,
			Selection:           sim.SelectNearest.String(),
		},
		Field: FieldConfig{Type: FieldZero},
	}
}

// Load reads a YAML (.yaml, .yml) or INI (.ini, .gcfg, .cfg) file on top of
// DefaultConfig.
func Load(path string) (*Config, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ini", ".gcfg", ".cfg":
		return loadINI(path)
	case ".yaml", ".yml", "":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return Parse(data)
	}
	return nil, fmt.Errorf("unsupported config format %q", filepath.Ext(path))
}

// Parse decodes YAML on top of DefaultConfig.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", dynamo.ErrConfig, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) System() (units.System, error) {
	s, err := units.ParseSystem(c.Units)
	if err != nil {
		return "", fmt.Errorf("%w: %w", dynamo.ErrConfig, err)
	}
	return s, nil
}

// Validate builds every component once and reports the first problem.
func (c *Config) Validate() error {
	if _, err := c.SimConfig(); err != nil {
		return err
	}
	if _, err := c.ParticleValue(); err != nil {
		return err
	}
	if _, err := c.Lab(); err != nil {
		return err
	}
	if _, err := c.InitialState(); err != nil {
		return err
	}
	if err := c.Field.validate(); err != nil {
		return err
	}
	if _, err := integrators.New(c.Integrator); err != nil {
		return err
	}
	return nil
}

func (c *Config) SimConfig() (sim.Config, error) {
	sys, err := c.System()
	if err != nil {
		return sim.Config{}, err
	}
	sel, err := sim.ParseSelection(c.Simulation.Selection)
	if err != nil {
		return sim.Config{}, err
	}
	s := c.Simulation
	out := sim.Config{
		ErrorAbs:            s.ErrorAbs,
		ErrorRel:            s.ErrorRel,
		TimeResolutionLaser: sys.ToAtomic(units.Time, s.TimeResolutionLaser),
		TimeResolutionFree:  sys.ToAtomic(units.Time, s.TimeResolutionFree),
		Duration:            sys.ToAtomic(units.Time, s.Duration),
		InfluenceRadius:     sys.ToAtomic(units.Length, s.InfluenceRadius),
		LaserHalfDuration:   sys.ToAtomic(units.Time, s.LaserHalfDuration),
		MaxSubSteps:         s.MaxSubSteps,
		Selection:           sel,
	}
	if out.LaserHalfDuration == 0 && c.Field.Type == FieldPulse {
		// the pulse peaks at local time zero, so integrate both flanks
		out.LaserHalfDuration = units.FromSI(units.Time, PulseWindow*c.Field.Duration)
	}
	return out, out.Validate()
}

func (c *Config) ParticleValue() (lab.Particle, error) {
	sys, err := c.System()
	if err != nil {
		return lab.Particle{}, err
	}
	p := lab.Particle{
		Mass:   sys.ToAtomic(units.Mass, c.Particle.Mass),
		Charge: sys.ToAtomic(units.Charge, c.Particle.Charge),
	}
	return p, p.Validate()
}

func (c *Config) widePosition(w WideTriple, what string) (vec.Wide, error) {
	sys, err := c.System()
	if err != nil {
		return vec.Wide{}, err
	}
	pos, err := w.Wide()
	if err != nil {
		return vec.Wide{}, dynamo.Configf("%s: %v", what, err)
	}
	if sys == units.SI {
		pos = pos.Quo(units.LengthSI)
	}
	return pos, nil
}

func (c *Config) Lab() (*lab.Lab, error) {
	nodes := make([]*lab.Node, 0, len(c.Nodes))
	for _, nc := range c.Nodes {
		pos, err := c.widePosition(nc.Position, fmt.Sprintf("node %d position", nc.ID))
		if err != nil {
			return nil, err
		}
		n, err := lab.NewNode(nc.ID, pos, nc.Theta, nc.Phi)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return lab.NewLab(nodes...)
}

func (c *Config) InitialState() (lab.GlobalState, error) {
	sys, err := c.System()
	if err != nil {
		return lab.GlobalState{}, err
	}
	pos, err := c.widePosition(c.Initial.Position, "initial position")
	if err != nil {
		return lab.GlobalState{}, err
	}
	m := c.Initial.Momentum
	g := lab.GlobalState{
		Position: pos,
		Momentum: r3.Vec{
			X: sys.ToAtomic(units.Momentum, m[0]),
			Y: sys.ToAtomic(units.Momentum, m[1]),
			Z: sys.ToAtomic(units.Momentum, m[2]),
		},
	}
	if !g.IsValid() {
		return lab.GlobalState{}, dynamo.Configf("initial state must be finite")
	}
	return g, nil
}

func (f FieldConfig) validate() error {
	switch f.Type {
	case "", FieldZero, FieldUniform, FieldLua:
		if f.Type == FieldLua && f.Script == "" && f.Source == "" {
			return dynamo.Configf("lua field needs a script or source")
		}
		return nil
	case FieldPulse:
		return f.pulse().Validate()
	}
	return dynamo.Configf("unknown field type %q", f.Type)
}

func (f FieldConfig) pulse() field.GaussianPulse {
	return field.GaussianPulse{
		Amplitude:  f.Amplitude,
		Wavelength: f.Wavelength,
		Duration:   f.Duration,
		Phase:      f.Phase,
	}
}

// FieldFactory returns a constructor for independent field instances.
// Relative script paths resolve against baseDir.
func (c *Config) FieldFactory(baseDir string) (field.Factory, error) {
	f := c.Field
	if err := f.validate(); err != nil {
		return nil, err
	}
	switch f.Type {
	case FieldUniform:
		return field.Shared(field.Uniform{E: f.E.R3(), B: f.B.R3()}), nil
	case FieldPulse:
		return field.Shared(f.pulse()), nil
	case FieldLua:
		src := f.Source
		if f.Script != "" {
			path := f.Script
			if !filepath.IsAbs(path) {
				path = filepath.Join(baseDir, path)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read field script: %w", err)
			}
			src = string(data)
		}
		// compile once up front so syntax errors surface at load time
		l, err := field.NewLua(src)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", dynamo.ErrConfig, err)
		}
		l.Close()
		return field.LuaFactory(src), nil
	}
	return field.Shared(field.Zero{}), nil
}
