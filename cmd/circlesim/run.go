package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/micrenda/circlesim-sub000/internal/analysis"
	"github.com/micrenda/circlesim-sub000/internal/experiment"
	"github.com/micrenda/circlesim-sub000/internal/logging"
	"github.com/micrenda/circlesim-sub000/internal/physics"
	"github.com/micrenda/circlesim-sub000/internal/sim"
	"github.com/micrenda/circlesim-sub000/internal/storage"
	"github.com/micrenda/circlesim-sub000/internal/tui"
)

func runSimulation(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	exp, err := loadExperiment(cmd)
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	st.SetCompression(compress)

	ctx, stop := signalContext()
	defer stop()

	opts := experiment.Options{Store: st, Logger: logger}
	var drive experiment.Driver
	if live {
		opts.Logger = logging.NewNop()
		drive = func(ctx context.Context, rep sim.Reporter, run experiment.RunFunc) (*sim.Result, error) {
			return tui.Run(ctx, exp.Label(), exp.SimConfig().Duration, exp.Particle(),
				func(ctx context.Context, view sim.Reporter) (*sim.Result, error) {
					return run(ctx, sim.Reporters{rep, view})
				})
		}
	} else {
		fmt.Printf("running %s (%d nodes, %s)...\n", exp.Label(), exp.Lab().Len(), exp.Config().Integrator)
	}

	out, err := exp.RunWith(ctx, opts, drive)
	if out != nil && out.RunID != "" {
		fmt.Printf("run id: %s\n", out.RunID)
	}
	if err != nil {
		return err
	}

	res := out.Result
	fmt.Printf("completed in %v\n", res.Elapsed)
	fmt.Printf("final time: %g a.u. (%s)\n", res.Time, res.Regime)
	fmt.Printf("interactions: %d, free segments: %d, intervals: %d\n", res.Interactions, res.FreeSegments, res.Intervals)
	fmt.Printf("integrator: %s\n", res.Stats)
	fmt.Printf("final state: %s\n", res.Final)
	printMetrics(os.Stdout, out.Metrics)
	return nil
}

func printMetrics(w io.Writer, values map[string]float64) {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintln(w, "\nmetrics:")
	for _, name := range names {
		fmt.Fprintf(w, "  %s: %.6g\n", name, values[name])
	}
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tLABEL\tTIME\tSTATUS\tDURATION\tNODES\tINTERACTIONS\tINTEG")

	for _, run := range runs {
		interactions := "-"
		if run.Result != nil {
			interactions = fmt.Sprint(run.Result.Interactions)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%g\t%d\t%s\t%s\n",
			run.ID,
			run.Label,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Status,
			run.Config.Duration,
			run.Nodes,
			interactions,
			run.Integrator,
		)
	}

	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

// outputWriter opens --output, or stdout when unset.
func outputWriter() (io.WriteCloser, error) {
	if output == "" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(output)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func exportJSON(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	w, err := outputWriter()
	if err != nil {
		return err
	}
	if err := st.ExportJSON(w, args[0]); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func exportCSV(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	w, err := outputWriter()
	if err != nil {
		return err
	}
	if err := st.ExportCSV(w, args[0]); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// laserValue extracts the series selected by --component.
func laserValue(meta *storage.RunMetadata, p storage.LaserPoint) (float64, error) {
	mom := r3.Vec{X: p.Momentum[0], Y: p.Momentum[1], Z: p.Momentum[2]}
	switch component {
	case "x":
		return p.Position[0], nil
	case "y":
		return p.Position[1], nil
	case "z":
		return p.Position[2], nil
	case "px":
		return mom.X, nil
	case "py":
		return mom.Y, nil
	case "pz":
		return mom.Z, nil
	case "p":
		return r3.Norm(mom), nil
	case "e":
		return physics.KineticEnergy(meta.Particle, mom), nil
	}
	return 0, fmt.Errorf("unknown component %q", component)
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	tr, err := st.LoadTrajectory(runID)
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("label: %s\n", meta.Label)
	fmt.Printf("samples: %d free, %d laser\n\n", len(tr.Free), len(tr.Laser))

	var energy []float64
	for _, p := range tr.Free {
		mom := r3.Vec{X: p.Momentum[0], Y: p.Momentum[1], Z: p.Momentum[2]}
		energy = append(energy, physics.KineticEnergy(meta.Particle, mom))
	}
	if len(energy) > 1 {
		fmt.Println(asciigraph.Plot(energy,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption("kinetic energy in free flight (Ha)"),
		))
		fmt.Println()
	}

	series := map[int][]float64{}
	var order []int
	for _, p := range tr.Laser {
		if p.Event != storage.EventProgress {
			continue
		}
		if _, seen := series[p.Interaction]; !seen {
			order = append(order, p.Interaction)
		}
		v, err := laserValue(meta, p)
		if err != nil {
			return err
		}
		series[p.Interaction] = append(series[p.Interaction], v)
	}

	for i, id := range order {
		if i >= maxPlots {
			fmt.Printf("(%d more interactions not shown)\n", len(order)-maxPlots)
			break
		}
		data := series[id]
		if len(data) < 2 {
			continue
		}
		fmt.Println(asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(fmt.Sprintf("interaction %d: %s (local frame)", id, component)),
		))
		if spectrum {
			f, err := analysis.DominantFrequency(data, meta.Config.TimeResolutionLaser)
			if err != nil {
				return err
			}
			fmt.Printf("dominant frequency: %.4g per a.u.", f)
			if f > 0 {
				fmt.Printf(" (period %.4g a.u.)", 1/f)
			}
			fmt.Println()
		}
		fmt.Println()
	}

	if len(energy) < 2 && len(order) == 0 {
		return fmt.Errorf("no data to plot")
	}
	return nil
}
