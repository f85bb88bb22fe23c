package region

import (
	"github.com/sarchlab/nugget/storage"
)

// Sequential segments a single lane of events. It uses no atomics and no
// locks and must be driven from one goroutine.
type Sequential struct {
	tracker

	phase   Phase
	counter uint64
	open    *storage.Region

	events    uint64
	dropped   uint64
	maxWeight uint64
}

// NewSequential creates a single-lane segmenter over store.
func NewSequential(store storage.Manager, cfg Config) *Sequential {
	s := &Sequential{}
	s.init(s, store, cfg)
	return s
}

// Begin opens region 0.
func (s *Sequential) Begin() error {
	if s.phase != PhaseNotStarted {
		return ErrAlreadyStarted
	}

	r, err := s.openRegion()
	if err != nil {
		s.fail(err)
		s.phase = PhaseStopped
		return err
	}

	s.open = r
	s.counter = 0
	s.phase = PhaseRunning
	return nil
}

// Record accounts one block execution. lane must be 0.
func (s *Sequential) Record(lane int, block uint64, weight uint64) {
	if s.phase != PhaseRunning {
		return
	}
	if lane != 0 || block >= s.numBlocks {
		s.dropped++
		return
	}

	s.counter += weight
	s.open.Hit(0, block, s.counter)
	s.events++
	if weight > s.maxWeight {
		s.maxWeight = weight
	}

	if s.boundary.Reached(s.counter, s.threshold) {
		s.transition()
	}
}

func (s *Sequential) transition() {
	s.phase = PhaseTransitioning

	if err := s.closeRegion(s.open, s.counter); err != nil {
		s.abort(err)
		return
	}
	next, err := s.openRegion()
	if err != nil {
		s.abort(err)
		return
	}

	s.open = next
	s.counter = 0
	s.phase = PhaseRunning
}

func (s *Sequential) abort(err error) {
	s.fail(err)
	s.open = nil
	s.counter = 0
	s.phase = PhaseStopped
}

// End closes the open region and stops.
func (s *Sequential) End() error {
	switch s.phase {
	case PhaseRunning:
	case PhaseStopped:
		return s.stoppedErr()
	default:
		return ErrNotStarted
	}

	s.phase = PhaseTransitioning
	if err := s.closeRegion(s.open, s.counter); err != nil {
		s.fail(err)
	}
	s.open = nil
	s.counter = 0
	s.phase = PhaseStopped
	return s.err
}

// Phase returns the current phase.
func (s *Sequential) Phase() Phase {
	return s.phase
}

// Counter returns the instruction count of the open region.
func (s *Sequential) Counter() uint64 {
	return s.counter
}

// Stats returns the segmentation statistics.
func (s *Sequential) Stats() Stats {
	return Stats{
		Regions:      s.regions.Load(),
		Instructions: s.instructions.Load(),
		Events:       s.events,
		Dropped:      s.dropped,
		MaxWeight:    s.maxWeight,
	}
}
