package dynamo

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
)

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		state State
		valid bool
	}{
		{"empty", State{}, true},
		{"normal", State{1.0, 2.0, 3.0}, true},
		{"zeros", State{0.0, 0.0}, true},
		{"with NaN", State{1.0, math.NaN()}, false},
		{"with +Inf", State{1.0, math.Inf(1)}, false},
		{"with -Inf", State{1.0, math.Inf(-1)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.valid {
				t.Errorf("IsValid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestState_Clone(t *testing.T) {
	a := State{1, 2, 3}
	c := a.Clone()
	c[0] = 99
	if a[0] == 99 {
		t.Error("Clone did not create independent copy")
	}
}

func TestStats_Merge(t *testing.T) {
	s := Stats{Steps: 1, Rejected: 2, Evaluations: 13}
	s.Merge(Stats{Steps: 4, Rejected: 0, Evaluations: 52})

	if s.Steps != 5 || s.Rejected != 2 || s.Evaluations != 65 {
		t.Errorf("Merge failed: got %+v", s)
	}
}

func TestSimulationError(t *testing.T) {
	err := &SimulationError{Step: 150, Time: 1.5, Regime: "laser", Wrapped: ErrStagnation}
	expected := "step 150 (t=1.5, laser): dynamo: adaptive step stagnated"
	if err.Error() != expected {
		t.Errorf("SimulationError.Error() = %q, want %q", err.Error(), expected)
	}
	if !errors.Is(err, ErrStagnation) {
		t.Error("SimulationError does not unwrap to ErrStagnation")
	}
	if errors.Is(err, ErrConfig) {
		t.Error("stagnation must be distinguishable from configuration errors")
	}
}

func TestConfigf(t *testing.T) {
	err := Configf("rest mass must be positive, got %g", -1.0)
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
	if err.Error() != "dynamo: invalid configuration: rest mass must be positive, got -1" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestEnsemble_Run(t *testing.T) {
	e := NewEnsemble(3)
	var count atomic.Int32
	results := make([]int, 10)

	err := e.Run(context.Background(), len(results), func(ctx context.Context, idx int) error {
		count.Add(1)
		results[idx] = idx * idx
		return nil
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if count.Load() != 10 {
		t.Errorf("expected 10 jobs, got %d", count.Load())
	}
	for i, v := range results {
		if v != i*i {
			t.Errorf("results[%d] = %d, want %d", i, v, i*i)
		}
	}
}

func TestEnsemble_RunError(t *testing.T) {
	e := NewEnsemble(2)
	err := e.Run(context.Background(), 5, func(ctx context.Context, idx int) error {
		if idx == 3 {
			return ErrStagnation
		}
		return nil
	})
	if !errors.Is(err, ErrStagnation) {
		t.Errorf("expected ErrStagnation, got %v", err)
	}
}

func TestEnsemble_DefaultWorkers(t *testing.T) {
	if NewEnsemble(0).Workers() < 1 {
		t.Error("default ensemble must have at least one worker")
	}
}
