package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/sarchlab/nugget/internal/logger"
	"github.com/sarchlab/nugget/workload"
)

var (
	benchCSV       bool
	benchJSON      bool
	benchThreshold uint64
	benchOutputDir string
)

func init() {
	cmd := newBenchCmd()
	cmd.Flags().BoolVar(&benchCSV, "csv", false, "Output results in CSV format")
	cmd.Flags().BoolVar(&benchJSON, "json", false, "Output results in JSON format")
	cmd.Flags().Uint64VarP(&benchThreshold, "threshold", "t", 100_000, "Region size in instructions")
	cmd.Flags().StringVar(&benchOutputDir, "output-dir", "", "Write one CSV per workload to this directory")
	rootCmd.AddCommand(cmd)
}

func newBenchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bench",
		Short: "Record every standard workload and report throughput",
		Long: `The bench command records all standard workloads and reports region
counts, region size bounds and recording throughput.

Example:
  bbvgen bench
  bbvgen bench --csv > results.csv
  bbvgen bench --output-dir out/`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runBench(ctx)
		},
	}
}

func runBench(ctx context.Context) error {
	cfg, err := loadSessionConfig()
	if err != nil {
		return err
	}
	cfg.Threshold = benchThreshold

	if benchOutputDir != "" {
		if err := os.MkdirAll(benchOutputDir, 0755); err != nil {
			return err
		}
	}

	harness := workload.NewHarness(workload.HarnessConfig{
		Session:   cfg,
		Seed:      1,
		OutputDir: benchOutputDir,
		Logger:    logger.NewLoggerWithContext("recorder"),
		Output:    os.Stdout,
	})
	harness.AddWorkloads(workload.GetStandardWorkloads())

	results, err := harness.RunAll(ctx)
	if err != nil {
		return err
	}

	switch {
	case benchJSON:
		return harness.PrintJSON(results)
	case benchCSV:
		harness.PrintCSV(results)
	default:
		harness.PrintResults(results)
	}
	return nil
}
