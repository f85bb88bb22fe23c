package workload

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/phuslu/log"
	"github.com/sarchlab/akita/v4/sim"
	"golang.org/x/sync/errgroup"

	"github.com/sarchlab/nugget/config"
	"github.com/sarchlab/nugget/recorder"
)

// Result holds the outcome of recording one workload.
type Result struct {
	// Name identifies the workload
	Name string `json:"name"`

	// Description explains what the workload exercises
	Description string `json:"description"`

	Lanes  int    `json:"lanes"`
	Blocks uint64 `json:"blocks"`

	// Threshold is the nominal region size
	Threshold uint64 `json:"threshold"`

	// Events is the number of recorded block executions
	Events uint64 `json:"events"`

	// Generated is the sum of the weights of all emitted events
	Generated uint64 `json:"generated_instructions"`

	// Instructions is the sum of all region totals
	Instructions uint64 `json:"instructions"`

	// Regions is the number of regions, including the final partial one
	Regions uint64 `json:"regions"`

	// MinRegion and MaxRegion bound the totals of the non-final regions
	MinRegion uint64 `json:"min_region"`
	MaxRegion uint64 `json:"max_region"`

	// MaxWeight is the largest single event weight
	MaxWeight uint64 `json:"max_weight"`

	// WallTime is the time spent emitting and recording events
	WallTime time.Duration `json:"wall_time_ns"`

	// OutputPath is the CSV written for the workload, if any
	OutputPath string `json:"output_path,omitempty"`
}

// EventsPerSecond returns the recording throughput.
func (r Result) EventsPerSecond() float64 {
	if r.WallTime <= 0 {
		return 0
	}
	return float64(r.Events) / r.WallTime.Seconds()
}

// Conserved reports whether every generated instruction was accounted into
// exactly one region.
func (r Result) Conserved() bool {
	return r.Generated == r.Instructions
}

// HarnessConfig configures the workload harness.
type HarnessConfig struct {
	// Session is the recording configuration. Its Threshold is used for
	// every workload.
	Session *config.SessionConfig

	// Seed makes every lane's event stream reproducible
	Seed uint64

	// OutputDir receives one CSV per workload. Empty discards the CSV.
	OutputDir string

	// OutputPath, when set, overrides OutputDir with a single file. Meant
	// for harnesses running one workload.
	OutputPath string

	// Hooks are attached to every recording session
	Hooks []sim.Hook

	// Logger is passed to the recorders
	Logger log.Logger

	// Output is where to write results (default: os.Stdout)
	Output io.Writer
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	session := config.DefaultSessionConfig()
	session.Threshold = 100_000

	return HarnessConfig{
		Session: session,
		Seed:    1,
		Logger:  log.DefaultLogger,
		Output:  os.Stdout,
	}
}

// Harness records workloads and reports results.
type Harness struct {
	config    HarnessConfig
	workloads []Workload
}

// NewHarness creates a new workload harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.Session == nil {
		config.Session = DefaultConfig().Session
	}
	if config.Logger.Writer == nil {
		config.Logger = log.DefaultLogger
	}
	return &Harness{
		config:    config,
		workloads: []Workload{},
	}
}

// AddWorkload adds a workload to the harness.
func (h *Harness) AddWorkload(w Workload) {
	h.workloads = append(h.workloads, w)
}

// AddWorkloads adds multiple workloads to the harness.
func (h *Harness) AddWorkloads(workloads []Workload) {
	h.workloads = append(h.workloads, workloads...)
}

// RunAll records all workloads in order and returns their results.
func (h *Harness) RunAll(ctx context.Context) ([]Result, error) {
	results := make([]Result, 0, len(h.workloads))

	for _, w := range h.workloads {
		result, err := h.Run(ctx, w)
		if err != nil {
			return results, fmt.Errorf("workload %s: %w", w.Name, err)
		}
		results = append(results, result)
	}

	return results, nil
}

// Run records a single workload, one goroutine per lane.
func (h *Harness) Run(ctx context.Context, w Workload) (Result, error) {
	result := Result{
		Name:        w.Name,
		Description: w.Description,
		Lanes:       w.Lanes,
		Blocks:      w.Blocks,
		Threshold:   h.config.Session.Threshold,
	}

	opts := []recorder.Option{
		recorder.WithLogger(h.config.Logger),
		recorder.WithSink(h.sinkFor(w, &result)),
	}
	for _, hook := range h.config.Hooks {
		opts = append(opts, recorder.WithHook(hook))
	}
	rec := recorder.New(h.config.Session, opts...)

	if err := rec.Begin(result.Threshold, w.Blocks, w.Lanes); err != nil {
		return result, err
	}

	generated := make([]uint64, w.Lanes)
	start := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	for lane := 0; lane < w.Lanes; lane++ {
		g.Go(func() error {
			rng := rand.New(rand.NewPCG(h.config.Seed, uint64(lane)))
			var sum uint64
			for i := 0; i < w.EventsPerLane; i++ {
				if i&0xFFF == 0 && ctx.Err() != nil {
					return ctx.Err()
				}
				block, weight := w.Next(lane, i, rng)
				rec.Record(lane, block, weight)
				sum += weight
			}
			generated[lane] = sum
			return nil
		})
	}
	runErr := g.Wait()

	endErr := rec.End()
	result.WallTime = time.Since(start)
	if runErr != nil {
		return result, runErr
	}
	if endErr != nil {
		return result, endErr
	}

	for _, sum := range generated {
		result.Generated += sum
	}
	stats := rec.Stats()
	result.Events = stats.Events
	result.Instructions = stats.Instructions
	result.Regions = stats.Regions
	result.MaxWeight = stats.MaxWeight

	totals := rec.Totals()
	for i, t := range totals[:max(len(totals)-1, 0)] {
		if i == 0 || t < result.MinRegion {
			result.MinRegion = t
		}
		if t > result.MaxRegion {
			result.MaxRegion = t
		}
	}

	return result, nil
}

func (h *Harness) sinkFor(w Workload, result *Result) recorder.SinkOpener {
	path := h.config.OutputPath
	if path == "" && h.config.OutputDir != "" {
		path = filepath.Join(h.config.OutputDir, w.Name+".csv")
	}
	if path == "" {
		return func() (io.WriteCloser, error) {
			return discardCloser{}, nil
		}
	}

	result.OutputPath = path
	return func() (io.WriteCloser, error) {
		return os.Create(path)
	}
}

type discardCloser struct{}

func (discardCloser) Write(p []byte) (int, error) { return len(p), nil }
func (discardCloser) Close() error                { return nil }

// PrintResults outputs results in a human-readable format.
func (h *Harness) PrintResults(results []Result) {
	out := h.config.Output
	_, _ = fmt.Fprintln(out, "=== Region Recording Results ===")
	_, _ = fmt.Fprintln(out, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(out, "Workload: %s\n", r.Name)
		_, _ = fmt.Fprintf(out, "  Description: %s\n", r.Description)
		_, _ = fmt.Fprintf(out, "  Lanes: %d  Blocks: %d  Threshold: %d\n",
			r.Lanes, r.Blocks, r.Threshold)
		_, _ = fmt.Fprintf(out, "  Events:        %d\n", r.Events)
		_, _ = fmt.Fprintf(out, "  Instructions:  %d\n", r.Instructions)
		_, _ = fmt.Fprintf(out, "  Regions:       %d\n", r.Regions)
		if r.Regions > 1 {
			_, _ = fmt.Fprintf(out, "  Region size:   %d - %d\n", r.MinRegion, r.MaxRegion)
		}
		_, _ = fmt.Fprintf(out, "  Max weight:    %d\n", r.MaxWeight)
		_, _ = fmt.Fprintf(out, "  Conserved:     %v\n", r.Conserved())
		_, _ = fmt.Fprintf(out, "  Throughput:    %.0f events/s\n", r.EventsPerSecond())
		_, _ = fmt.Fprintf(out, "  Wall Time: %v\n", r.WallTime)
		if r.OutputPath != "" {
			_, _ = fmt.Fprintf(out, "  Output: %s\n", r.OutputPath)
		}
		_, _ = fmt.Fprintln(out, "")
	}
}

// PrintCSV outputs results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []Result) {
	_, _ = fmt.Fprintln(h.config.Output,
		"name,lanes,blocks,threshold,events,instructions,regions,min_region,max_region,max_weight,wall_time_ns")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%d,%d,%d,%d,%d,%d,%d,%d,%d,%d\n",
			r.Name,
			r.Lanes,
			r.Blocks,
			r.Threshold,
			r.Events,
			r.Instructions,
			r.Regions,
			r.MinRegion,
			r.MaxRegion,
			r.MaxWeight,
			r.WallTime.Nanoseconds(),
		)
	}
}

// PrintJSON outputs results as an indented JSON array.
func (h *Harness) PrintJSON(results []Result) error {
	encoder := json.NewEncoder(h.config.Output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(results)
}
