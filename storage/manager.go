package storage

import (
	"github.com/phuslu/log"
)

// Flusher writes closed regions to the output artifact.
type Flusher interface {
	// WriteRegions writes the given closed regions in order.
	WriteRegions(regions []*Region) error
}

// Manager owns the region buffers of one recording session.
type Manager interface {
	// Layout returns the layout shared by all regions.
	Layout() Layout

	// Open returns the buffer for the region with the given index, growing
	// or recycling storage as needed.
	Open(index uint64) (*Region, error)

	// Close marks r as closed at total instructions.
	Close(r *Region, total uint64) error

	// Drain writes every closed region that has not been written yet.
	Drain(f Flusher) error

	// Totals returns the total instruction count of every closed region,
	// indexed by region number.
	Totals() []uint64

	// Release drops all buffers. The manager must not be used afterwards.
	Release()
}

// Option configures a store.
type Option func(*options)

type options struct {
	chunkSize    int
	growthMargin int
	windowSize   int
	maxBytes     uint64
	logger       log.Logger
}

func defaultOptions() options {
	return options{
		chunkSize:    1000,
		growthMargin: 100,
		windowSize:   1000,
		logger:       log.DefaultLogger,
	}
}

// WithChunkSize sets the number of regions added by each growth step.
func WithChunkSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.chunkSize = n
		}
	}
}

// WithGrowthMargin sets how close the open region index may come to the
// capacity before storage grows.
func WithGrowthMargin(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.growthMargin = n
		}
	}
}

// WithWindowSize sets the number of regions kept by a WindowStore.
func WithWindowSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.windowSize = n
		}
	}
}

// WithMaxBytes caps the memory held by region buffers. 0 means no limit.
func WithMaxBytes(n uint64) Option {
	return func(o *options) {
		o.maxBytes = n
	}
}

// WithLogger sets the logger used for growth and flush events.
func WithLogger(l log.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// allocate creates n zeroed regions, honoring the byte budget given the
// number of bytes already held.
func allocate(layout Layout, n int, held uint64, maxBytes uint64) ([]*Region, error) {
	if err := layout.check(); err != nil {
		return nil, err
	}
	need := layout.RegionBytes() * uint64(n)
	if maxBytes > 0 && held+need > maxBytes {
		return nil, ErrAllocation
	}

	regions := make([]*Region, n)
	for i := range regions {
		regions[i] = newRegion(layout)
	}
	return regions, nil
}
