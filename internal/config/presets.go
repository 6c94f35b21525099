package config

import "sort"

// Presets are ready-made scenarios in atomic units.
var Presets = map[string]*Config{
	// an electron crosses one node in a zero field.
	"crossing": {
		Units: "atomic", Integrator: "rkf78",
		Particle: ParticleConfig{Mass: 1, Charge: 1},
		Initial: InitialConfig{
			Position: WideTriple{"100", "0", "0"},
			Momentum: Vec3{-1, 0, 0},
		},
		Simulation: SimulationConfig{
			ErrorAbs: 1e-10, ErrorRel: 1e-10,
			TimeResolutionLaser: 0.1, TimeResolutionFree: 1,
			Duration: 150, InfluenceRadius: 10,
			Selection: "nearest",
		},
		Field: FieldConfig{Type: FieldZero},
		Nodes: []NodeConfig{{ID: 0, Position: WideTriple{"0", "0", "0"}}},
	},
	// an electron traverses an 800 nm, 10 fs pulse focused on the node.
	"pulse": {
		Units: "atomic", Integrator: "rkf78",
		Particle: ParticleConfig{Mass: 1, Charge: 1},
		Initial: InitialConfig{
			Position: WideTriple{"-2000", "0", "0"},
			Momentum: Vec3{10, 0, 0},
		},
		Simulation: SimulationConfig{
			ErrorAbs: 1e-9, ErrorRel: 1e-9,
			TimeResolutionLaser: 1, TimeResolutionFree: 10,
			Duration: 1000, InfluenceRadius: 1000,
			LaserHalfDuration: 400,
			Selection:         "nearest",
		},
		Field: FieldConfig{Type: FieldPulse, Amplitude: 5e10, Wavelength: 800e-9, Duration: 10e-15},
		Nodes: []NodeConfig{{ID: 0, Position: WideTriple{"0", "0", "0"}, Theta: 1.5707963267948966}},
	},
	// three tilted nodes in a row, each with a static field.
	"lattice": {
		Units: "atomic", Integrator: "rkf78",
		Particle: ParticleConfig{Mass: 1, Charge: 1},
		Initial: InitialConfig{
			Position: WideTriple{"0", "0", "-50"},
			Momentum: Vec3{0, 0, 5},
		},
		Simulation: SimulationConfig{
			ErrorAbs: 1e-10, ErrorRel: 1e-10,
			TimeResolutionLaser: 0.05, TimeResolutionFree: 0.5,
			Duration: 80, InfluenceRadius: 8,
			Selection: "nearest",
		},
		Field: FieldConfig{Type: FieldUniform, E: Vec3{1e9, 0, 0}},
		Nodes: []NodeConfig{
			{ID: 0, Position: WideTriple{"0", "0", "0"}, Theta: 0.3},
			{ID: 1, Position: WideTriple{"0", "0", "100"}, Theta: 0.6, Phi: 1},
			{ID: 2, Position: WideTriple{"0", "0", "200"}, Theta: 0.9, Phi: 2},
		},
	},
	// gyration in a uniform magnetic field that keeps the particle in range.
	"gyration": {
		Units: "atomic", Integrator: "rkf78",
		Particle: ParticleConfig{Mass: 1, Charge: 1},
		Initial: InitialConfig{
			Position: WideTriple{"0", "0", "0"},
			Momentum: Vec3{1, 0, 0},
		},
		Simulation: SimulationConfig{
			ErrorAbs: 1e-11, ErrorRel: 1e-11,
			TimeResolutionLaser: 0.05, TimeResolutionFree: 1,
			Duration: 60, InfluenceRadius: 50,
			Selection: "nearest",
		},
		// 1 a.u. of magnetic flux density along z.
		Field: FieldConfig{Type: FieldUniform, B: Vec3{0, 0, 2.35051756758e5}},
		Nodes: []NodeConfig{{ID: 0, Position: WideTriple{"0", "0", "0"}}},
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	cp := *p
	cp.Nodes = append([]NodeConfig(nil), p.Nodes...)
	return &cp
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
