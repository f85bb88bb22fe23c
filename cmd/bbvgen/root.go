package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sarchlab/nugget/config"
	"github.com/sarchlab/nugget/internal/logger"
)

var (
	// Global flags
	configPath string
	logLevel   string
	quiet      bool
)

var rootCmd = &cobra.Command{
	Use:   "bbvgen",
	Short: "Record region-segmented basic-block vectors from synthetic workloads",
	Long: `bbvgen drives synthetic multi-lane basic-block event streams through the
region recorder and writes the sparse basic-block vector CSV used for phase
classification. It is useful to size thresholds, check output files and
measure recording throughput.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Session config JSON file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadSessionConfig reads the --config file, or the defaults, and sets up
// logging from it.
func loadSessionConfig() (*config.SessionConfig, error) {
	cfg := config.DefaultSessionConfig()
	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if quiet {
		cfg.Logging.Level = "error"
	}

	if err := logger.ConfigureLogging(cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to configure logging: %w", err)
	}
	return cfg, nil
}

// printer formats numbers with digit grouping.
var printer = message.NewPrinter(language.English)

// printInfo prints an info message if not in quiet mode
func printInfo(w io.Writer, format string, args ...interface{}) {
	if !quiet {
		_, _ = printer.Fprintf(w, format, args...)
	}
}
