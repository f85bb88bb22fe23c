// Package config holds the configuration of a recording session.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// SessionConfig holds the tunables of a basic-block vector recording
// session.
type SessionConfig struct {
	// Threshold is the nominal number of instructions per region.
	// Default: 100000000.
	Threshold uint64 `json:"threshold"`

	// Boundary selects when a region closes: "ge" closes on the first
	// event reaching the threshold, "gt" on the first event exceeding it.
	// Default: "ge".
	Boundary string `json:"boundary"`

	// ChunkSize is the number of regions allocated per growth step of the
	// unbounded store. Default: 1000.
	ChunkSize int `json:"chunk_size"`

	// GrowthMargin is how close the open region may come to the allocated
	// capacity before the store grows. Must be smaller than ChunkSize.
	// Default: 100.
	GrowthMargin int `json:"growth_margin"`

	// LanePadding is the number of padding slots between lanes.
	// Default: 0 (one cache line).
	LanePadding int `json:"lane_padding"`

	// MaxBytes caps the memory used by region buffers. Default: 0 (no cap).
	MaxBytes uint64 `json:"max_bytes"`

	// Bounded keeps a fixed window of regions in memory and writes each
	// window as soon as it fills. Default: false.
	Bounded bool `json:"bounded"`

	// WindowSize is the number of regions per window in bounded mode.
	// Default: 1000.
	WindowSize int `json:"window_size"`

	// ForceConcurrent uses the concurrent segmenter even for one lane.
	// Default: false.
	ForceConcurrent bool `json:"force_concurrent"`

	// OutputPath is the CSV file written at the end of the session.
	// Default: "analysis-output.csv".
	OutputPath string `json:"output_path"`

	// CountsPath is the file marker counts are appended to.
	// Default: "counts.txt".
	CountsPath string `json:"counts_path"`

	// Logging configures log output.
	Logging LoggingConfig `json:"logging"`
}

// LoggingConfig configures the application logger.
type LoggingConfig struct {
	// Level is one of trace, debug, info, warn, error. Default: "info".
	Level string `json:"level"`

	// Format is "auto" (colorized console), "logfmt" or "json".
	// Default: "auto".
	Format string `json:"format"`

	// Writer is "stderr" or "stdout". Default: "stderr".
	Writer string `json:"writer"`
}

// DefaultSessionConfig returns a SessionConfig with default values.
func DefaultSessionConfig() *SessionConfig {
	return &SessionConfig{
		Threshold:    100_000_000,
		Boundary:     "ge",
		ChunkSize:    1000,
		GrowthMargin: 100,
		WindowSize:   1000,
		OutputPath:   "analysis-output.csv",
		CountsPath:   "counts.txt",
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
			Writer: "stderr",
		},
	}
}

// LoadConfig loads a SessionConfig from a JSON file. Fields missing from the
// file keep their default values.
func LoadConfig(path string) (*SessionConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read session config file: %w", err)
	}

	config := DefaultSessionConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse session config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a SessionConfig to a JSON file.
func (c *SessionConfig) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize session config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write session config file: %w", err)
	}

	return nil
}

// Validate checks that the configuration describes a usable session.
func (c *SessionConfig) Validate() error {
	if c.Threshold == 0 {
		return fmt.Errorf("threshold must be > 0")
	}
	switch c.Boundary {
	case "ge", "gt":
	default:
		return fmt.Errorf("boundary must be \"ge\" or \"gt\", got %q", c.Boundary)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be > 0")
	}
	if c.GrowthMargin < 0 || c.GrowthMargin >= c.ChunkSize {
		return fmt.Errorf("growth_margin must be in [0, chunk_size)")
	}
	if c.LanePadding < 0 {
		return fmt.Errorf("lane_padding must be >= 0")
	}
	if c.Bounded && c.WindowSize <= 0 {
		return fmt.Errorf("window_size must be > 0 in bounded mode")
	}
	if c.OutputPath == "" {
		return fmt.Errorf("output_path must not be empty")
	}
	return nil
}

// Clone returns a copy of the SessionConfig.
func (c *SessionConfig) Clone() *SessionConfig {
	clone := *c
	return &clone
}
