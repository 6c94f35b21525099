package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/gcfg.v1"

	"github.com/micrenda/circlesim-sub000/internal/dynamo"
)

// ExampleINI documents the INI layout accepted by Load.
const ExampleINI = `[Circlesim]
# atomic (default) or si
Units = atomic
Integrator = rkf78

[Particle]
Mass = 1
# in units of the electron charge: 1 is an electron
Charge = 1

[Initial]
# Positions are parsed at extended precision; keep every digit you need.
Position = 100 0 0
Momentum = -1 0 0

[Simulation]
ErrorAbs = 1e-10
ErrorRel = 1e-10
TimeResolutionLaser = 0.1
TimeResolutionFree = 1
Duration = 150
InfluenceRadius = 10
# 0 leaves the window unbounded, except for pulse fields which get two FWHMs
# LaserHalfDuration = 0
# MaxSubSteps = 1000000
# Selection = nearest

[Field]
# zero | uniform | pulse | lua. Field parameters are SI.
Type = zero
# E = 0 0 0
# B = 0 0 0
# Amplitude = 1e10
# Wavelength = 800e-9
# Duration = 10e-15
# Phase = 0
# Script = field.lua

# One section per node; the subsection name is the node id.
[Node "0"]
Position = 0 0 0
Theta = 0
Phi = 0
`

type iniFile struct {
	Circlesim struct {
		Units      string
		Integrator string
	}
	Particle struct {
		Mass, Charge float64
	}
	Initial struct {
		Position, Momentum string
	}
	Simulation struct {
		ErrorAbs, ErrorRel                      float64
		TimeResolutionLaser, TimeResolutionFree float64
		Duration, InfluenceRadius               float64
		LaserHalfDuration                       float64
		MaxSubSteps                             int
		Selection                               string
	}
	Field struct {
		Type                                    string
		E, B                                    string
		Amplitude, Wavelength, Duration, Phase float64
		Script                                  string
	}
	Node map[string]*iniNode
}

type iniNode struct {
	Position   string
	Theta, Phi float64
}

func loadINI(path string) (*Config, error) {
	def := DefaultConfig()

	var f iniFile
	f.Circlesim.Units = def.Units
	f.Circlesim.Integrator = def.Integrator
	f.Particle.Mass = def.Particle.Mass
	f.Particle.Charge = def.Particle.Charge
	f.Simulation.ErrorAbs = def.Simulation.ErrorAbs
	f.Simulation.ErrorRel = def.Simulation.ErrorRel
	f.Simulation.TimeResolutionLaser = def.Simulation.TimeResolutionLaser
	f.Simulation.TimeResolutionFree = def.Simulation.TimeResolutionFree
	f.Simulation.Duration = def.Simulation.Duration
	f.Simulation.InfluenceRadius = def.Simulation.InfluenceRadius
	f.Simulation.MaxSubSteps = def.Simulation.MaxSubSteps
	f.Simulation.Selection = def.Simulation.Selection
	f.Field.Type = def.Field.Type

	if err := gcfg.ReadFileInto(&f, path); err != nil {
		return nil, fmt.Errorf("%w: %w", dynamo.ErrConfig, err)
	}
	return f.config()
}

func (f *iniFile) config() (*Config, error) {
	cfg := &Config{
		Units:      f.Circlesim.Units,
		Integrator: f.Circlesim.Integrator,
		Particle:   ParticleConfig{Mass: f.Particle.Mass, Charge: f.Particle.Charge},
		Simulation: SimulationConfig{
			ErrorAbs:            f.Simulation.ErrorAbs,
			ErrorRel:            f.Simulation.ErrorRel,
			TimeResolutionLaser: f.Simulation.TimeResolutionLaser,
			TimeResolutionFree:  f.Simulation.TimeResolutionFree,
			Duration:            f.Simulation.Duration,
			InfluenceRadius:     f.Simulation.InfluenceRadius,
			LaserHalfDuration:   f.Simulation.LaserHalfDuration,
			MaxSubSteps:         f.Simulation.MaxSubSteps,
			Selection:           f.Simulation.Selection,
		},
		Field: FieldConfig{
			Type:       f.Field.Type,
			Amplitude:  f.Field.Amplitude,
			Wavelength: f.Field.Wavelength,
			Duration:   f.Field.Duration,
			Phase:      f.Field.Phase,
			Script:     f.Field.Script,
		},
	}

	var err error
	if cfg.Initial.Position, err = parseTriple("Initial.Position", f.Initial.Position); err != nil {
		return nil, err
	}
	if cfg.Initial.Momentum, err = parseVec3("Initial.Momentum", f.Initial.Momentum); err != nil {
		return nil, err
	}
	if cfg.Field.E, err = parseVec3("Field.E", f.Field.E); err != nil {
		return nil, err
	}
	if cfg.Field.B, err = parseVec3("Field.B", f.Field.B); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(f.Node))
	for name := range f.Node {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		n := f.Node[name]
		id, err := strconv.Atoi(name)
		if err != nil {
			return nil, dynamo.Configf("node section %q: name must be an integer id", name)
		}
		pos, err := parseTriple(fmt.Sprintf("Node %q Position", name), n.Position)
		if err != nil {
			return nil, err
		}
		cfg.Nodes = append(cfg.Nodes, NodeConfig{ID: id, Position: pos, Theta: n.Theta, Phi: n.Phi})
	}
	return cfg, nil
}

// parseTriple splits "x y z". An empty value is the origin.
func parseTriple(key, s string) (WideTriple, error) {
	var w WideTriple
	fields := strings.Fields(strings.ReplaceAll(s, ",", " "))
	if len(fields) == 0 {
		return w, nil
	}
	if len(fields) != 3 {
		return w, dynamo.Configf("%s: need three components, got %q", key, s)
	}
	copy(w[:], fields)
	return w, nil
}

func parseVec3(key, s string) (Vec3, error) {
	w, err := parseTriple(key, s)
	if err != nil {
		return Vec3{}, err
	}
	var v Vec3
	for i, c := range w {
		if c == "" {
			continue
		}
		if v[i], err = strconv.ParseFloat(c, 64); err != nil {
			return Vec3{}, dynamo.Configf("%s: %v", key, err)
		}
	}
	return v, nil
}
