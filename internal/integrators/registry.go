package integrators

import (
	"fmt"
	"sort"

	"github.com/micrenda/circlesim-sub000/internal/dynamo"
)

var registry = map[string]func() dynamo.Stepper{
	"rkf78":  func() dynamo.Stepper { return NewRKF78() },
	"dopri5": func() dynamo.Stepper { return NewDormandPrince() },
}

// Default is the stepper used when none is configured.
const Default = "rkf78"

// New returns a fresh stepper by name. An empty name selects Default.
func New(name string) (dynamo.Stepper, error) {
	if name == "" {
		name = Default
	}
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown integrator %q (available: %v)", dynamo.ErrConfig, name, Names())
	}
	return ctor(), nil
}

func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
