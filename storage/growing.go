package storage

import (
	"fmt"

	"github.com/phuslu/log"
)

// GrowingStore keeps every region in memory until the session ends. Its
// capacity grows by whole chunks ahead of the open region so that recording
// never waits on an allocation.
type GrowingStore struct {
	layout  Layout
	opts    options
	regions []*Region
	totals  []uint64
	drained int
	held    uint64
	log     log.Logger
}

// NewGrowingStore allocates the first chunk of regions.
func NewGrowingStore(layout Layout, opts ...Option) (*GrowingStore, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	s := &GrowingStore{
		layout: layout,
		opts:   o,
		log:    o.logger,
	}
	if err := s.grow(); err != nil {
		return nil, err
	}
	return s, nil
}

// Layout returns the layout shared by all regions.
func (s *GrowingStore) Layout() Layout {
	return s.layout
}

// Capacity returns the number of regions currently allocated.
func (s *GrowingStore) Capacity() int {
	return len(s.regions)
}

// Open returns the region with the given index. Capacity is extended when
// index is within the growth margin of the end.
func (s *GrowingStore) Open(index uint64) (*Region, error) {
	for index >= uint64(len(s.regions)) {
		if err := s.grow(); err != nil {
			return nil, err
		}
	}
	if index+uint64(s.opts.growthMargin) >= uint64(len(s.regions)) {
		if err := s.grow(); err != nil {
			return nil, err
		}
	}

	r := s.regions[index]
	r.Index = index
	return r, nil
}

// Close records the total for r.
func (s *GrowingStore) Close(r *Region, total uint64) error {
	if r.Index != uint64(len(s.totals)) {
		return fmt.Errorf("region %d closed out of order, expected %d",
			r.Index, len(s.totals))
	}
	r.TotalInstructions = total
	s.totals = append(s.totals, total)
	return nil
}

// Drain writes all closed regions that were not drained before.
func (s *GrowingStore) Drain(f Flusher) error {
	closed := len(s.totals)
	if s.drained >= closed {
		return nil
	}
	if err := f.WriteRegions(s.regions[s.drained:closed]); err != nil {
		return err
	}
	s.drained = closed
	return nil
}

// Closed returns the closed regions in index order.
func (s *GrowingStore) Closed() []*Region {
	return s.regions[:len(s.totals)]
}

// Totals returns the total instruction count of every closed region.
func (s *GrowingStore) Totals() []uint64 {
	return s.totals
}

// Release drops all region buffers.
func (s *GrowingStore) Release() {
	s.regions = nil
	s.held = 0
}

// grow appends one chunk of zeroed regions. Existing regions keep their
// identity and contents.
func (s *GrowingStore) grow() error {
	chunk, err := allocate(s.layout, s.opts.chunkSize, s.held, s.opts.maxBytes)
	if err != nil {
		s.log.Error().
			Int("capacity", len(s.regions)).
			Int("chunk", s.opts.chunkSize).
			Uint64("held_bytes", s.held).
			Msg("Region storage growth failed")
		return fmt.Errorf("failed to grow region storage to %d regions: %w",
			len(s.regions)+s.opts.chunkSize, err)
	}

	s.regions = append(s.regions, chunk...)
	s.held += s.layout.RegionBytes() * uint64(len(chunk))

	s.log.Debug().
		Int("capacity", len(s.regions)).
		Uint64("held_bytes", s.held).
		Msg("Region storage grown")
	return nil
}
