// Package workload provides synthetic basic-block event streams and a
// harness that records them through a Recorder.
package workload

import (
	"math/rand/v2"
)

// Generator produces the i-th event of a lane. rng is private to the lane and
// seeded deterministically, so a lane's stream depends only on the seed.
type Generator func(lane int, i int, rng *rand.Rand) (block uint64, weight uint64)

// Workload defines a synthetic instrumented program.
type Workload struct {
	// Name identifies the workload
	Name string

	// Description explains what the workload exercises
	Description string

	// Blocks is the number of basic blocks of the program
	Blocks uint64

	// Lanes is the number of concurrent event streams
	Lanes int

	// EventsPerLane is the number of block executions emitted by each lane
	EventsPerLane int

	// Next produces one event
	Next Generator
}

// GetStandardWorkloads returns the standard set of workloads.
func GetStandardWorkloads() []Workload {
	return []Workload{
		UnitSingleLane(),
		UniformMultiLane(),
		HotLoop(),
		Phased(),
		HeavyBlocks(),
	}
}

// UnitSingleLane emits weight-1 executions of blocks in round-robin order on
// one lane. Region sizes equal the threshold exactly.
func UnitSingleLane() Workload {
	return Workload{
		Name:          "unit_single_lane",
		Description:   "1 lane, round-robin blocks, weight 1",
		Blocks:        64,
		Lanes:         1,
		EventsPerLane: 200_000,
		Next: func(_ int, i int, _ *rand.Rand) (uint64, uint64) {
			return uint64(i % 64), 1
		},
	}
}

// UniformMultiLane emits uniformly random blocks and weights on 8 lanes.
func UniformMultiLane() Workload {
	return Workload{
		Name:          "uniform_multi_lane",
		Description:   "8 lanes, uniform blocks, weights 1-16",
		Blocks:        1024,
		Lanes:         8,
		EventsPerLane: 100_000,
		Next: func(_ int, _ int, rng *rand.Rand) (uint64, uint64) {
			return rng.Uint64N(1024), 1 + rng.Uint64N(16)
		},
	}
}

// HotLoop spends 90% of its executions in 8 hot blocks.
func HotLoop() Workload {
	return Workload{
		Name:          "hot_loop",
		Description:   "4 lanes, 90% of executions in 8 hot blocks",
		Blocks:        512,
		Lanes:         4,
		EventsPerLane: 100_000,
		Next: func(_ int, _ int, rng *rand.Rand) (uint64, uint64) {
			if rng.IntN(10) < 9 {
				return rng.Uint64N(8), 4
			}
			return 8 + rng.Uint64N(504), 1 + rng.Uint64N(32)
		},
	}
}

// Phased moves every lane through four disjoint bands of blocks, giving
// regions with clearly different vectors.
func Phased() Workload {
	const events = 80_000
	return Workload{
		Name:          "phased",
		Description:   "4 lanes, 4 program phases over disjoint block bands",
		Blocks:        256,
		Lanes:         4,
		EventsPerLane: events,
		Next: func(_ int, i int, rng *rand.Rand) (uint64, uint64) {
			band := uint64(i / (events / 4))
			return band*64 + rng.Uint64N(64), 2 + rng.Uint64N(6)
		},
	}
}

// HeavyBlocks mixes rare very large blocks into small ones, stressing the
// region size bound.
func HeavyBlocks() Workload {
	return Workload{
		Name:          "heavy_blocks",
		Description:   "2 lanes, 1% of executions weigh 1000 instructions",
		Blocks:        128,
		Lanes:         2,
		EventsPerLane: 100_000,
		Next: func(_ int, _ int, rng *rand.Rand) (uint64, uint64) {
			if rng.IntN(100) == 0 {
				return 127, 1000
			}
			return rng.Uint64N(127), 1 + rng.Uint64N(8)
		},
	}
}

// Find returns the standard workload with the given name.
func Find(name string) (Workload, bool) {
	for _, w := range GetStandardWorkloads() {
		if w.Name == name {
			return w, true
		}
	}
	return Workload{}, false
}
