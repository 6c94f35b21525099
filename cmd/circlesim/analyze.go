package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"

	"github.com/micrenda/circlesim-sub000/internal/analysis"
	"github.com/micrenda/circlesim-sub000/internal/config"
	"github.com/micrenda/circlesim-sub000/internal/experiment"
	"github.com/micrenda/circlesim-sub000/internal/integrators"
	"github.com/micrenda/circlesim-sub000/internal/metrics"
	"github.com/micrenda/circlesim-sub000/internal/server"
	"github.com/micrenda/circlesim-sub000/internal/sim"
	"github.com/micrenda/circlesim-sub000/internal/storage"
)

func axis(name string) (r3.Vec, error) {
	switch strings.ToLower(name) {
	case "x":
		return r3.Vec{X: 1}, nil
	case "y":
		return r3.Vec{Y: 1}, nil
	case "z":
		return r3.Vec{Z: 1}, nil
	}
	return r3.Vec{}, fmt.Errorf("unknown axis %q (want x, y or z)", name)
}

func runSweep(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	exp, err := loadExperiment(cmd)
	if err != nil {
		return err
	}
	dir, err := axis(sweepAxis)
	if err != nil {
		return err
	}

	var vary analysis.Vary
	switch sweepParam {
	case "momentum":
		vary = analysis.MomentumAlong(dir)
	case "offset":
		vary = analysis.OffsetAlong(dir)
	default:
		return fmt.Errorf("unknown sweep parameter %q (want momentum or offset)", sweepParam)
	}

	ctx, stop := signalContext()
	defer stop()

	params := analysis.Linspace(sweepFrom, sweepTo, sweepSteps)
	fmt.Printf("sweeping %s along %s over %d runs...\n\n", sweepParam, sweepAxis, len(params))
	start := time.Now()
	points, err := analysis.Sweep(ctx, exp.Job(logger), exp.Initial(), params, vary, workers)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PARAM\tINTERACTIONS\tENERGY_GAIN\tMAX_GAIN\tEXCURSION\tSTEPS")
	gains := make([]float64, len(points))
	for i, p := range points {
		gains[i] = p.Metrics["energy_gain"]
		fmt.Fprintf(w, "%.4g\t%d\t%.6g\t%.6g\t%.6g\t%d\n",
			p.Param, p.Result.Interactions, p.Metrics["energy_gain"],
			p.Metrics["max_interaction_gain"], p.Metrics["max_excursion"], p.Result.Stats.Steps)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	s := analysis.Summarize(points, "energy_gain")
	fmt.Printf("\nenergy gain: mean %.6g, std %.6g, min %.6g, max %.6g at %.4g\n", s.Mean, s.StdDev, s.Min, s.Max, s.ArgMax)
	fmt.Printf("integrator: %s\n", analysis.Work(points))
	fmt.Printf("elapsed: %v\n\n", time.Since(start).Round(time.Millisecond))

	if len(gains) > 1 {
		fmt.Println(asciigraph.Plot(gains,
			asciigraph.Height(10),
			asciigraph.Width(60),
			asciigraph.Caption(fmt.Sprintf("energy gain vs %s (%s)", sweepParam, sweepAxis)),
		))
	}
	return nil
}

func runSensitivity(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	exp, err := loadExperiment(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	resp, err := analysis.Sensitivity(ctx, exp.Job(logger), exp.Initial(), delta, workers)
	if err != nil {
		return err
	}

	fmt.Printf("final state: %s\n\n", *resp.Baseline)
	fmt.Println("d(final)/d(initial), rows and columns x y z px py pz:")
	fmt.Printf("%.6g\n\n", mat.Formatted(resp.Jacobian, mat.Squeeze()))
	fmt.Printf("amplification: %.6g\n", resp.Amplification())
	fmt.Printf("integrator: %s over 13 runs\n", resp.Work)
	return nil
}

func compareIntegrators(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	exp, err := loadExperiment(cmd)
	if err != nil {
		return err
	}
	names := args
	if len(names) == 0 {
		names = integrators.Names()
	}

	ctx, stop := signalContext()
	defer stop()

	fmt.Printf("comparing integrators for %s (duration=%g a.u.)\n\n", exp.Label(), exp.SimConfig().Duration)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INTEGRATOR\tSTEPS\tREJECTED\tEVALS\tTIME\t|DX| VS FIRST\t|DP| VS FIRST")

	job := exp.Job(logger)
	var ref *sim.Result
	for _, name := range names {
		job.Integrator = name
		start := time.Now()
		res, err := job.Run(ctx, exp.Initial(), nil)
		elapsed := time.Since(start)
		if err != nil {
			fmt.Fprintf(w, "%s\terror: %v\n", name, err)
			continue
		}
		dx, dp := "-", "-"
		if ref == nil {
			ref = res
		} else {
			dx = fmt.Sprintf("%.3g", r3.Norm(res.Final.Position.Sub(ref.Final.Position)))
			dp = fmt.Sprintf("%.3g", r3.Norm(r3.Sub(res.Final.Momentum, ref.Final.Momentum)))
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%v\t%s\t%s\n", name, res.Stats.Steps, res.Stats.Rejected,
			res.Stats.Evaluations, elapsed.Round(time.Microsecond), dx, dp)
	}
	return w.Flush()
}

func showPresets(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		fmt.Println("presets:")
		for _, p := range config.ListPresets() {
			fmt.Printf("  %s\n", p)
		}
		return nil
	}
	cfg := config.GetPreset(args[0])
	if cfg == nil {
		return fmt.Errorf("unknown preset: %s (available: %v)", args[0], config.ListPresets())
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(args[0])
	if err != nil {
		return err
	}
	exp, err := experiment.New("validate", cfg, filepath.Dir(args[0]))
	if err != nil {
		return err
	}
	sc := exp.SimConfig()
	fmt.Printf("ok: %d nodes, duration %g a.u., radius %g a.u., integrator %s, field %s\n",
		exp.Lab().Len(), sc.Duration, sc.InfluenceRadius, cfg.Integrator, cfg.Field.Type)
	return nil
}

func initConfig(cmd *cobra.Command, args []string) error {
	path := args[0]
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ini", ".gcfg", ".cfg":
		return os.WriteFile(path, []byte(config.ExampleINI), 0644)
	}
	return config.Save(path, config.GetPreset("crossing"))
}

func serve(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	st.SetCompression(compress)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	col, err := metrics.NewCollector(reg)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr: listenAddr,
		Handler: server.NewHandler(server.Options{
			Store:     st,
			Gatherer:  reg,
			Collector: col,
			Logger:    logger,
			MaxRuns:   int64(workers),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signalContext()
	defer stop()

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", listenAddr, "data", dataDir)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func listIntegrators(cmd *cobra.Command, args []string) error {
	for _, name := range integrators.Names() {
		mark := ""
		if name == integrators.Default {
			mark = " (default)"
		}
		fmt.Printf("  %s%s\n", name, mark)
	}
	return nil
}
