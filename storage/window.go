package storage

import (
	"fmt"

	"github.com/phuslu/log"
)

// WindowStore keeps a fixed window of region buffers. Whenever the window
// fills, all of its regions are written through the Flusher and the buffers
// are zeroed and reused, so memory stays constant for any run length.
type WindowStore struct {
	layout  Layout
	opts    options
	window  []*Region
	flusher Flusher
	totals  []uint64
	flushed uint64
	err     error
	log     log.Logger
}

// NewWindowStore allocates a window of region buffers. Full windows are
// written to f.
func NewWindowStore(layout Layout, f Flusher, opts ...Option) (*WindowStore, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	window, err := allocate(layout, o.windowSize, 0, o.maxBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate region window of %d: %w",
			o.windowSize, err)
	}

	return &WindowStore{
		layout:  layout,
		opts:    o,
		window:  window,
		flusher: f,
		log:     o.logger,
	}, nil
}

// Layout returns the layout shared by all regions.
func (s *WindowStore) Layout() Layout {
	return s.layout
}

// Open returns the buffer that holds the region with the given index.
func (s *WindowStore) Open(index uint64) (*Region, error) {
	if index < s.flushed || index >= s.flushed+uint64(len(s.window)) {
		return nil, fmt.Errorf("region %d outside window [%d, %d)",
			index, s.flushed, s.flushed+uint64(len(s.window)))
	}

	r := s.window[index%uint64(len(s.window))]
	r.Index = index
	return r, nil
}

// Close records the total for r. Closing the last region of the window
// writes the window and recycles its buffers.
func (s *WindowStore) Close(r *Region, total uint64) error {
	if r.Index != uint64(len(s.totals)) {
		return fmt.Errorf("region %d closed out of order, expected %d",
			r.Index, len(s.totals))
	}
	r.TotalInstructions = total
	s.totals = append(s.totals, total)

	if uint64(len(s.totals))-s.flushed == uint64(len(s.window)) {
		s.flushWindow(s.window)
	}
	return nil
}

// Drain writes the closed regions of the current, partially filled window
// and returns the first flush error seen during the session.
func (s *WindowStore) Drain(_ Flusher) error {
	pending := uint64(len(s.totals)) - s.flushed
	if pending > 0 {
		start := s.flushed % uint64(len(s.window))
		s.flushWindow(s.window[start : start+pending])
	}
	return s.err
}

// Totals returns the total instruction count of every closed region,
// including those already written.
func (s *WindowStore) Totals() []uint64 {
	return s.totals
}

// Flushed returns the number of regions already written.
func (s *WindowStore) Flushed() uint64 {
	return s.flushed
}

// Release drops the window buffers.
func (s *WindowStore) Release() {
	s.window = nil
}

func (s *WindowStore) flushWindow(regions []*Region) {
	if s.err == nil {
		if err := s.flusher.WriteRegions(regions); err != nil {
			s.err = fmt.Errorf("failed to write regions %d-%d: %w",
				s.flushed, s.flushed+uint64(len(regions))-1, err)
			s.log.Error().Err(err).
				Uint64("first_region", s.flushed).
				Int("regions", len(regions)).
				Msg("Region window flush failed")
		}
	}

	s.flushed += uint64(len(regions))
	for _, r := range regions {
		r.Reset()
	}

	s.log.Debug().
		Uint64("flushed", s.flushed).
		Msg("Region window recycled")
}
