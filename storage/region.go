// Package storage provides the per-region basic-block vector buffers and the
// managers that allocate, grow, and recycle them.
package storage

import (
	"errors"
	"math"
	"unsafe"

	"golang.org/x/sys/cpu"
)

// ErrAllocation is returned when region buffers cannot be allocated within
// the configured budget. It is fatal for a recording session.
var ErrAllocation = errors.New("region buffer allocation failed")

// cacheLineSlots is the number of uint64 slots in one CPU cache line.
var cacheLineSlots = int(unsafe.Sizeof(cpu.CacheLinePad{})) / 8

// Layout describes the shape of every region buffer.
type Layout struct {
	// NumBlocks is the number of basic blocks in the instrumented program.
	NumBlocks uint64

	// NumLanes is the number of concurrent event streams (1 for
	// single-threaded recording).
	NumLanes int

	// LanePadding is the number of unused slots placed after each lane so
	// that lanes never share a cache line. 0 selects one cache line.
	LanePadding int
}

// Stride returns the distance in slots between the start of two lanes.
func (l Layout) Stride() uint64 {
	return l.NumBlocks + uint64(l.padding())
}

// Slots returns the number of uint64 slots in one region's count buffer.
func (l Layout) Slots() uint64 {
	return l.Stride() * uint64(l.NumLanes)
}

// RegionBytes returns the memory held by one region (counts and stamps).
func (l Layout) RegionBytes() uint64 {
	return l.Slots() * 8 * 2
}

func (l Layout) padding() int {
	if l.NumLanes <= 1 {
		return 0
	}
	if l.LanePadding > 0 {
		return l.LanePadding
	}
	return cacheLineSlots
}

// check verifies that the layout describes an addressable buffer.
func (l Layout) check() error {
	if l.NumBlocks == 0 || l.NumLanes <= 0 {
		return ErrAllocation
	}
	stride := l.Stride()
	if stride < l.NumBlocks {
		return ErrAllocation
	}
	if uint64(l.NumLanes) > math.MaxInt/16/stride {
		return ErrAllocation
	}
	return nil
}

// Region holds the execution counts and count stamps recorded while one
// region was open.
type Region struct {
	// Index is the global, zero-based region number.
	Index uint64

	// TotalInstructions is the cumulative instruction count at which the
	// region closed. Valid only once the region is closed.
	TotalInstructions uint64

	layout Layout
	counts []uint64
	stamps []uint64
}

func newRegion(layout Layout) *Region {
	n := layout.Slots()
	return &Region{
		layout: layout,
		counts: make([]uint64, n),
		stamps: make([]uint64, n),
	}
}

// Layout returns the region's buffer layout.
func (r *Region) Layout() Layout {
	return r.layout
}

// Hit records one execution of block on lane with the given count stamp.
// Only the goroutine that owns lane may call Hit for that lane.
func (r *Region) Hit(lane int, block uint64, stamp uint64) {
	i := uint64(lane)*r.layout.Stride() + block
	r.counts[i]++
	r.stamps[i] = stamp
}

// Lane returns views of the counts and stamps of one lane, indexed by block
// id. Padding slots are not included.
func (r *Region) Lane(lane int) (counts, stamps []uint64) {
	start := uint64(lane) * r.layout.Stride()
	end := start + r.layout.NumBlocks
	return r.counts[start:end:end], r.stamps[start:end:end]
}

// Count returns the execution count of block on lane.
func (r *Region) Count(lane int, block uint64) uint64 {
	return r.counts[uint64(lane)*r.layout.Stride()+block]
}

// Stamp returns the count stamp of block on lane. 0 means the block was not
// hit in this region.
func (r *Region) Stamp(lane int, block uint64) uint64 {
	return r.stamps[uint64(lane)*r.layout.Stride()+block]
}

// Executions returns the total number of block executions in the region,
// summed over all lanes.
func (r *Region) Executions() uint64 {
	var n uint64
	for lane := 0; lane < r.layout.NumLanes; lane++ {
		counts, _ := r.Lane(lane)
		for _, c := range counts {
			n += c
		}
	}
	return n
}

// Reset zeroes the region so that its buffers can hold another region.
func (r *Region) Reset() {
	clear(r.counts)
	clear(r.stamps)
	r.Index = 0
	r.TotalInstructions = 0
}
