package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/micrenda/circlesim-sub000/internal/field"
	"github.com/micrenda/circlesim-sub000/internal/lab"
	"github.com/micrenda/circlesim-sub000/internal/sim"
	"github.com/micrenda/circlesim-sub000/internal/vec"
)

func mustWide(t *testing.T, x, y, z string) vec.Wide {
	t.Helper()
	w, err := vec.ParseWide(x, y, z)
	if err != nil {
		t.Fatal(err)
	}
	return w
}

// record drives a run through one free segment and one interaction.
func record(t *testing.T, st *Store) *Run {
	t.Helper()
	start := lab.GlobalState{Position: mustWide(t, "1e9", "0", "-3"), Momentum: r3.Vec{X: 0.5}}
	run, err := st.Create("test", RunMetadata{
		Integrator: "rkf78",
		Config:     sim.DefaultConfig(),
		Particle:   lab.Electron(),
		Initial:    NewStateRecord(start),
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	node, err := lab.NewNode(3, mustWide(t, "1e9", "0", "0"), 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	moved := lab.GlobalState{Position: start.Position.AddNarrow(r3.Vec{Z: 1e-7}), Momentum: start.Momentum}

	steps := []error{
		run.OnFreeEnter(0, start),
		run.OnFreeProgress(1, moved),
		run.OnFreeExit(1, moved),
		run.OnNodeEnter(0, node, -5),
		run.OnNodeProgress(0, node, -4.9, lab.LocalState{Position: r3.Vec{Z: -3}, Momentum: r3.Vec{X: 0.5}},
			field.Sample{E: r3.Vec{X: 0.01}, B: r3.Vec{Y: 1e-4}}),
		run.OnNodeExit(0, node, -4.9),
	}
	for i, err := range steps {
		if err != nil {
			t.Fatalf("callback %d: %v", i, err)
		}
	}
	return run
}

func TestStoreRecordLoad(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	run := record(t, st)
	res := &sim.Result{Time: 1.1, Interactions: 1, FreeSegments: 1, Intervals: 2, Regime: sim.Free}
	if err := run.Finish(res, nil, map[string]float64{"energy_gain": 1.5}); err != nil {
		t.Fatalf("finish failed: %v", err)
	}

	meta, err := st.Load(run.ID())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if meta.Status != StatusComplete {
		t.Errorf("expected status complete, got %q", meta.Status)
	}
	if meta.Integrator != "rkf78" {
		t.Errorf("expected integrator rkf78, got %q", meta.Integrator)
	}
	if meta.Metrics["energy_gain"] != 1.5 {
		t.Errorf("expected energy_gain 1.5, got %f", meta.Metrics["energy_gain"])
	}
	if meta.Result == nil || meta.Result.Interactions != 1 {
		t.Errorf("result not stored: %+v", meta.Result)
	}
	if meta.FinalRegime != "free" {
		t.Errorf("expected final regime free, got %q", meta.FinalRegime)
	}

	tr, err := st.LoadTrajectory(run.ID())
	if err != nil {
		t.Fatalf("load trajectory failed: %v", err)
	}
	if len(tr.Free) != 3 {
		t.Fatalf("expected 3 free rows, got %d", len(tr.Free))
	}
	if len(tr.Laser) != 3 {
		t.Fatalf("expected 3 laser rows, got %d", len(tr.Laser))
	}

	// the 1e-7 displacement at 1e9 must survive the text round trip.
	got := mustWide(t, tr.Free[1].Position[0], tr.Free[1].Position[1], tr.Free[1].Position[2])
	want := mustWide(t, "1e9", "0", "-3").AddNarrow(r3.Vec{Z: 1e-7})
	if !got.Equal(want) {
		t.Errorf("position lost precision: %v", tr.Free[1].Position)
	}

	p := tr.Laser[1]
	if p.Event != EventProgress || p.Node != 3 || p.LocalTime != -4.9 {
		t.Errorf("unexpected laser row %+v", p)
	}
	if p.E[0] != 0.01 || p.B[1] != 1e-4 || p.Position[2] != -3 {
		t.Errorf("laser row values wrong: %+v", p)
	}
}

func TestStoreCompressed(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)
	st.SetCompression(true)

	run := record(t, st)
	if err := run.Finish(nil, errors.New("boom"), nil); err != nil {
		t.Fatalf("finish failed: %v", err)
	}

	for _, name := range []string{"free.csv.zst", "laser.csv.zst"} {
		if _, err := os.Stat(filepath.Join(tmpDir, run.ID(), name)); err != nil {
			t.Errorf("%s not created: %v", name, err)
		}
	}

	meta, err := st.Load(run.ID())
	if err != nil {
		t.Fatal(err)
	}
	if meta.Status != StatusFailed || meta.Error != "boom" || !meta.Compressed {
		t.Errorf("unexpected metadata %+v", meta)
	}

	tr, err := st.LoadTrajectory(run.ID())
	if err != nil {
		t.Fatalf("load trajectory failed: %v", err)
	}
	if len(tr.Free) != 3 || len(tr.Laser) != 3 {
		t.Errorf("expected 3+3 rows, got %d+%d", len(tr.Free), len(tr.Laser))
	}
}

func TestStoreList(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	runs, err := st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected 0 runs, got %d", len(runs))
	}

	for i := 0; i < 2; i++ {
		if err := record(t, st).Finish(nil, nil, nil); err != nil {
			t.Fatal(err)
		}
	}

	runs, err = st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].Timestamp.Before(runs[1].Timestamp) {
		t.Error("runs should be sorted newest first")
	}
}

func TestStoreListMissingDir(t *testing.T) {
	st := New(filepath.Join(t.TempDir(), "nope"))
	runs, err := st.List()
	if err != nil || len(runs) != 0 {
		t.Errorf("expected empty list, got %v, %v", runs, err)
	}
}

func TestStoreLoadRejectsPaths(t *testing.T) {
	st := New(t.TempDir())
	for _, id := range []string{"../etc", "a/b", "..", "."} {
		if _, err := st.Load(id); err == nil {
			t.Errorf("expected error for %q", id)
		}
	}
}

func TestExport(t *testing.T) {
	st := New(t.TempDir())
	run := record(t, st)
	if err := run.Finish(nil, nil, nil); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := st.ExportJSON(&buf, run.ID()); err != nil {
		t.Fatalf("export json failed: %v", err)
	}
	var data ExportData
	if err := json.Unmarshal(buf.Bytes(), &data); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if data.Run.ID != run.ID() || len(data.Trajectory.Free) != 3 {
		t.Errorf("unexpected export %+v", data.Run)
	}

	buf.Reset()
	if err := st.ExportCSV(&buf, run.ID()); err != nil {
		t.Fatalf("export csv failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Errorf("expected header plus 3 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "event,segment,t") {
		t.Errorf("unexpected header %q", lines[0])
	}
}
