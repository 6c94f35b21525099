package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/micrenda/circlesim-sub000/internal/config"
	"github.com/micrenda/circlesim-sub000/internal/experiment"
	"github.com/micrenda/circlesim-sub000/internal/logging"
)

var (
	dataDir    string
	logLevel   string
	configFile string
	preset     string
	integrator string
	duration   float64
	label      string
	compress   bool
	live       bool
	output     string

	sweepParam string
	sweepAxis  string
	sweepFrom  float64
	sweepTo    float64
	sweepSteps int
	workers    int
	delta      float64

	component  string
	spectrum   bool
	maxPlots   int
	listenAddr string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "circlesim",
		Short:         "relativistic charged particle trajectories through laser nodes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".circlesim", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	addSource := func(cmd *cobra.Command) {
		cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml or ini)")
		cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
		cmd.Flags().StringVar(&integrator, "integrator", "", "override the integrator")
		cmd.Flags().Float64Var(&duration, "time", 0, "override the duration (config units)")
		cmd.Flags().IntVar(&workers, "workers", 0, "parallel runs (0 = one per CPU)")
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run and record a simulation",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	addSource(runCmd)
	runCmd.Flags().StringVar(&label, "label", "", "run label (defaults to preset or config name)")
	runCmd.Flags().BoolVar(&compress, "compress", false, "zstd-compress the trajectory files")
	runCmd.Flags().BoolVar(&live, "live", false, "show live progress")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "print run metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a recorded trajectory",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&component, "component", "p", "laser series: x, y, z, px, py, pz, p or e")
	plotCmd.Flags().BoolVar(&spectrum, "spectrum", false, "report the dominant frequency of each interaction")
	plotCmd.Flags().IntVar(&maxPlots, "max-plots", 3, "maximum number of interactions to plot")

	exportJSONCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run metadata and trajectory as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export free-flight samples as CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "vary the initial state and compare outcomes",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	addSource(sweepCmd)
	sweepCmd.Flags().StringVar(&sweepParam, "param", "momentum", "what to vary: momentum or offset")
	sweepCmd.Flags().StringVar(&sweepAxis, "axis", "x", "direction: x, y or z")
	sweepCmd.Flags().Float64Var(&sweepFrom, "from", 0.5, "first value (atomic units)")
	sweepCmd.Flags().Float64Var(&sweepTo, "to", 2, "last value (atomic units)")
	sweepCmd.Flags().IntVar(&sweepSteps, "steps", 8, "number of runs")

	sensitivityCmd := &cobra.Command{
		Use:   "sensitivity",
		Short: "jacobian of the final state with respect to the initial state",
		Args:  cobra.NoArgs,
		RunE:  runSensitivity,
	}
	addSource(sensitivityCmd)
	sensitivityCmd.Flags().Float64Var(&delta, "delta", 1e-6, "finite difference step (atomic units)")

	compareCmd := &cobra.Command{
		Use:   "compare [integrator]...",
		Short: "compare integrators on the same scenario",
		RunE:  compareIntegrators,
	}
	addSource(compareCmd)

	presetsCmd := &cobra.Command{
		Use:   "presets [name]",
		Short: "list presets, or print one as yaml",
		Args:  cobra.MaximumNArgs(1),
		RunE:  showPresets,
	}

	validateCmd := &cobra.Command{
		Use:   "validate [config]",
		Short: "check a config file",
		Args:  cobra.ExactArgs(1),
		RunE:  validateConfig,
	}

	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "write an example config (.yaml or .ini)",
		Args:  cobra.ExactArgs(1),
		RunE:  initConfig,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "serve runs and metrics over http",
		Args:  cobra.NoArgs,
		RunE:  serve,
	}
	serveCmd.Flags().StringVar(&listenAddr, "addr", ":8080", "listen address")
	serveCmd.Flags().BoolVar(&compress, "compress", false, "zstd-compress the trajectory files")
	serveCmd.Flags().IntVar(&workers, "workers", 1, "concurrent runs")

	integratorsCmd := &cobra.Command{
		Use:   "integrators",
		Short: "list integrators",
		Args:  cobra.NoArgs,
		RunE:  listIntegrators,
	}

	rootCmd.AddCommand(runCmd, listCmd, showCmd, plotCmd, exportJSONCmd, exportCSVCmd,
		sweepCmd, sensitivityCmd, compareCmd, presetsCmd, validateCmd, initCmd, serveCmd, integratorsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger() (*slog.Logger, error) {
	level, err := logging.ParseLevel(logLevel)
	if err != nil {
		return nil, err
	}
	return logging.New(level), nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// loadExperiment builds the experiment selected by --preset or --config and
// applies command-line overrides.
func loadExperiment(cmd *cobra.Command) (*experiment.Experiment, error) {
	var cfg *config.Config
	name := preset
	baseDir := "."

	switch {
	case preset != "" && configFile != "":
		return nil, fmt.Errorf("use either --preset or --config")
	case preset != "":
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	case configFile != "":
		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		baseDir = filepath.Dir(configFile)
		name = strings.TrimSuffix(filepath.Base(configFile), filepath.Ext(configFile))
	default:
		return nil, fmt.Errorf("need --preset or --config (presets: %v)", config.ListPresets())
	}

	if cmd.Flags().Changed("integrator") {
		cfg.Integrator = integrator
	}
	if cmd.Flags().Changed("time") {
		cfg.Simulation.Duration = duration
	}
	if f := cmd.Flags().Lookup("label"); f != nil && f.Changed {
		name = label
	}
	return experiment.New(name, cfg, baseDir)
}
