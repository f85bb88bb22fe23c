package main

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sarchlab/akita/v4/sim"
	"github.com/spf13/cobra"

	"github.com/sarchlab/nugget/internal/logger"
	"github.com/sarchlab/nugget/metrics"
	"github.com/sarchlab/nugget/workload"
)

var (
	runWorkload    string
	runLanes       int
	runEvents      int
	runThreshold   uint64
	runBoundary    string
	runBounded     bool
	runWindow      int
	runSeed        uint64
	runOutput      string
	runMetricsFile string
)

func init() {
	cmd := newRunCmd()
	cmd.Flags().StringVarP(&runWorkload, "workload", "w", "phased", "Standard workload to record")
	cmd.Flags().IntVar(&runLanes, "lanes", 0, "Override the number of lanes")
	cmd.Flags().IntVar(&runEvents, "events", 0, "Override the events emitted per lane")
	cmd.Flags().Uint64VarP(&runThreshold, "threshold", "t", 0, "Region size in instructions (default from config)")
	cmd.Flags().StringVar(&runBoundary, "boundary", "", "Region boundary policy: ge or gt")
	cmd.Flags().BoolVar(&runBounded, "bounded", false, "Keep a fixed window of regions and stream full windows")
	cmd.Flags().IntVar(&runWindow, "window", 0, "Regions per window in bounded mode")
	cmd.Flags().Uint64Var(&runSeed, "seed", 1, "Seed of the lane event streams")
	cmd.Flags().StringVarP(&runOutput, "output", "o", "", "Output CSV (default from config)")
	cmd.Flags().StringVar(&runMetricsFile, "metrics-file", "", "Write Prometheus metrics in text format to this file")
	rootCmd.AddCommand(cmd)
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Record one workload into a basic-block vector CSV",
		Long: `The run command records a single synthetic workload and writes the
sparse basic-block vector CSV.

Example:
  bbvgen run --workload hot_loop --threshold 50000 --output hot.csv
  bbvgen run --workload uniform_multi_lane --lanes 16 --bounded --window 100
  bbvgen run --metrics-file run.prom`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd.Context())
		},
	}
	return cmd
}

func runRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadSessionConfig()
	if err != nil {
		return err
	}

	w, ok := workload.Find(runWorkload)
	if !ok {
		return fmt.Errorf("unknown workload %q", runWorkload)
	}
	if runLanes > 0 {
		w.Lanes = runLanes
	}
	if runEvents > 0 {
		w.EventsPerLane = runEvents
	}

	if runThreshold > 0 {
		cfg.Threshold = runThreshold
	}
	if runBoundary != "" {
		cfg.Boundary = runBoundary
	}
	if runBounded {
		cfg.Bounded = true
	}
	if runWindow > 0 {
		cfg.WindowSize = runWindow
	}
	if runOutput != "" {
		cfg.OutputPath = runOutput
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	hc := workload.HarnessConfig{
		Session:    cfg,
		Seed:       runSeed,
		OutputPath: cfg.OutputPath,
		Logger:     logger.NewLoggerWithContext("recorder"),
		Output:     os.Stdout,
	}

	var registry *prometheus.Registry
	if runMetricsFile != "" {
		collector := metrics.NewCollector("bbvgen", cfg.Threshold)
		registry = prometheus.NewRegistry()
		registry.MustRegister(collector)
		hc.Hooks = []sim.Hook{collector}
	}

	harness := workload.NewHarness(hc)
	result, err := harness.Run(ctx, w)
	if err != nil {
		return err
	}

	printInfo(os.Stdout, "Workload: %s\n", result.Name)
	printInfo(os.Stdout, "Region: %d\n", result.Regions)
	printInfo(os.Stdout, "Total IR instructions: %d\n", result.Instructions)
	printInfo(os.Stdout, "Events: %d (%.0f events/s)\n", result.Events, result.EventsPerSecond())
	printInfo(os.Stdout, "Output: %s\n", result.OutputPath)

	if !result.Conserved() {
		return fmt.Errorf("instruction count mismatch: generated %d, recorded %d",
			result.Generated, result.Instructions)
	}

	if registry != nil {
		if err := prometheus.WriteToTextfile(runMetricsFile, registry); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return nil
}
