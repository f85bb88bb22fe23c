// Package recorder is the entry point bound to the per-basic-block hook of an
// instrumented program. It owns the lifecycle of one recording session:
// Begin when the region of interest starts, Record once per executed basic
// block, End when the region of interest stops.
package recorder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/phuslu/log"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/nugget/bbvcsv"
	"github.com/sarchlab/nugget/config"
	"github.com/sarchlab/nugget/region"
	"github.com/sarchlab/nugget/storage"
)

// Lifecycle errors.
var (
	ErrNotStarted     = errors.New("recorder not started")
	ErrAlreadyStarted = errors.New("recorder already started")
)

// SinkOpener opens the output artifact.
type SinkOpener func() (io.WriteCloser, error)

// Option is a functional option for configuring the Recorder.
type Option func(*Recorder)

// WithSink sets how the output artifact is opened. By default the file at
// the configured output path is created.
func WithSink(open SinkOpener) Option {
	return func(r *Recorder) {
		r.openSink = open
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(r *Recorder) {
		r.log = l
	}
}

// WithHook registers a hook on every segmenter the Recorder creates.
func WithHook(h sim.Hook) Option {
	return func(r *Recorder) {
		r.hooks = append(r.hooks, h)
	}
}

type session struct {
	seg    region.Segmenter
	store  storage.Manager
	sink   io.WriteCloser
	writer *bbvcsv.Writer
	start  time.Time
}

// Recorder records basic-block vectors for one region of interest at a time.
type Recorder struct {
	cfg      *config.SessionConfig
	openSink SinkOpener
	log      log.Logger
	hooks    []sim.Hook

	// mu serializes Begin and End. Record never takes it.
	mu     sync.Mutex
	active atomic.Pointer[session]

	last   region.Stats
	totals []uint64
}

// New creates a Recorder. cfg is copied.
func New(cfg *config.SessionConfig, opts ...Option) *Recorder {
	if cfg == nil {
		cfg = config.DefaultSessionConfig()
	}

	r := &Recorder{
		cfg: cfg.Clone(),
		log: log.DefaultLogger,
	}
	r.openSink = func() (io.WriteCloser, error) {
		return os.Create(r.cfg.OutputPath)
	}

	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Begin starts a session with regions of threshold instructions over a
// program with numBlocks basic blocks, recorded by numLanes lanes.
func (r *Recorder) Begin(threshold, numBlocks uint64, numLanes int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active.Load() != nil {
		return ErrAlreadyStarted
	}

	cfg := r.cfg.Clone()
	cfg.Threshold = threshold
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid session config: %w", err)
	}
	if numBlocks == 0 || numLanes <= 0 {
		return fmt.Errorf("invalid layout: %d blocks, %d lanes", numBlocks, numLanes)
	}
	boundary, err := region.ParseBoundary(cfg.Boundary)
	if err != nil {
		return err
	}

	s := &session{start: time.Now()}
	if err := r.buildStore(s, cfg, storage.Layout{
		NumBlocks:   numBlocks,
		NumLanes:    numLanes,
		LanePadding: cfg.LanePadding,
	}); err != nil {
		return err
	}

	segCfg := region.Config{
		Threshold: threshold,
		Boundary:  boundary,
		Logger:    &r.log,
	}
	if numLanes == 1 && !cfg.ForceConcurrent {
		s.seg = region.NewSequential(s.store, segCfg)
	} else {
		s.seg = region.NewConcurrent(s.store, segCfg)
	}
	for _, h := range r.hooks {
		s.seg.AcceptHook(h)
	}

	if err := s.seg.Begin(); err != nil {
		r.discard(s)
		return fmt.Errorf("failed to open first region: %w", err)
	}

	r.last = region.Stats{}
	r.totals = nil
	r.active.Store(s)

	r.log.Info().
		Uint64("threshold", threshold).
		Uint64("blocks", numBlocks).
		Int("lanes", numLanes).
		Str("boundary", boundary.String()).
		Bool("bounded", cfg.Bounded).
		Msg("ROI begin")
	return nil
}

func (r *Recorder) buildStore(s *session, cfg *config.SessionConfig, layout storage.Layout) error {
	opts := []storage.Option{
		storage.WithChunkSize(cfg.ChunkSize),
		storage.WithGrowthMargin(cfg.GrowthMargin),
		storage.WithWindowSize(cfg.WindowSize),
		storage.WithMaxBytes(cfg.MaxBytes),
		storage.WithLogger(r.log),
	}

	if !cfg.Bounded {
		store, err := storage.NewGrowingStore(layout, opts...)
		if err != nil {
			return err
		}
		s.store = store
		return nil
	}

	if err := r.openWriter(s); err != nil {
		return err
	}
	store, err := storage.NewWindowStore(layout, s.writer, opts...)
	if err != nil {
		_ = s.sink.Close()
		return err
	}
	s.store = store
	return nil
}

func (r *Recorder) openWriter(s *session) error {
	sink, err := r.openSink()
	if err != nil {
		return fmt.Errorf("failed to open output: %w", err)
	}

	s.sink = sink
	s.writer = bbvcsv.NewWriter(sink)
	if err := s.writer.WriteHeader(); err != nil {
		_ = sink.Close()
		return fmt.Errorf("failed to write output header: %w", err)
	}
	return nil
}

// Record accounts one execution of block on lane, weighing weight
// instructions. It is a no-op outside Begin/End.
func (r *Recorder) Record(lane int, block uint64, weight uint64) {
	s := r.active.Load()
	if s == nil {
		return
	}
	s.seg.Record(lane, block, weight)
}

// Segmenter returns the segmenter of the running session, or nil. Hot loops
// may call its Record directly to skip the session lookup.
func (r *Recorder) Segmenter() region.Segmenter {
	s := r.active.Load()
	if s == nil {
		return nil
	}
	return s.seg
}

// End closes the final region, writes the output artifact and releases all
// region storage. If recording was aborted by an allocation failure, no
// output is written and the failure is returned.
func (r *Recorder) End() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.active.Load()
	if s == nil {
		return ErrNotStarted
	}

	segErr := s.seg.End()
	r.active.Store(nil)
	r.last = s.seg.Stats()
	r.totals = append([]uint64(nil), s.store.Totals()...)

	if segErr != nil {
		r.discard(s)
		r.log.Error().Err(segErr).Msg("ROI end: recording aborted, no output written")
		return fmt.Errorf("recording aborted: %w", segErr)
	}

	err := r.writeOutput(s)
	s.store.Release()
	if err != nil {
		r.log.Error().Err(err).Msg("ROI end: output failed")
		return err
	}

	r.log.Info().
		Uint64("regions", r.last.Regions).
		Uint64("instructions", r.last.Instructions).
		Uint64("events", r.last.Events).
		Uint64("dropped", r.last.Dropped).
		Dur("elapsed", time.Since(s.start)).
		Msg("ROI end")
	return nil
}

func (r *Recorder) writeOutput(s *session) error {
	if s.writer == nil {
		if err := r.openWriter(s); err != nil {
			return err
		}
	}

	errs := []error{}
	if err := s.store.Drain(s.writer); err != nil {
		errs = append(errs, fmt.Errorf("failed to write regions: %w", err))
	}
	if err := s.writer.WriteRegionInst(s.store.Totals()); err != nil {
		errs = append(errs, fmt.Errorf("failed to write region totals: %w", err))
	}
	if err := s.writer.Flush(); err != nil {
		errs = append(errs, fmt.Errorf("failed to flush output: %w", err))
	}
	if err := s.sink.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close output: %w", err))
	}
	return errors.Join(errs...)
}

func (r *Recorder) discard(s *session) {
	if s.sink != nil {
		_ = s.sink.Close()
	}
	s.store.Release()
}

// Active reports whether a session is running.
func (r *Recorder) Active() bool {
	return r.active.Load() != nil
}

// Stats returns the statistics of the running session, or of the last
// finished one.
func (r *Recorder) Stats() region.Stats {
	if s := r.active.Load(); s != nil {
		return s.seg.Stats()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Totals returns the instruction totals of the regions of the last finished
// session.
func (r *Recorder) Totals() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.totals
}
