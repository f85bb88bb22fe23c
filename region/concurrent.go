package region

import (
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/cpu"

	"github.com/sarchlab/nugget/storage"
)

// laneState is written by its own lane on every event. Each lane owns at
// least one cache line.
type laneState struct {
	// busy is 1 while the lane is between its phase check and its last slot
	// write.
	busy      atomic.Uint32
	events    atomic.Uint64
	dropped   atomic.Uint64
	maxWeight atomic.Uint64
	_         cpu.CacheLinePad
}

type paddedCounter struct {
	_ cpu.CacheLinePad
	v atomic.Uint64
	_ cpu.CacheLinePad
}

// Concurrent segments events emitted by several lanes at once.
//
// The running counter is advanced without locks. When a lane pushes it to
// the threshold, lanes that observe the full region contend for the
// transition lock and re-check the counter; exactly one of them closes the
// region and opens the next while the others wait at the gate.
type Concurrent struct {
	tracker

	counter paddedCounter
	phase   atomic.Int32
	open    atomic.Pointer[storage.Region]
	lanes   []laneState
	strays  atomic.Uint64

	// mu is the transition lock.
	mu sync.Mutex

	gateMu sync.Mutex
	gate   *sync.Cond
}

// NewConcurrent creates a multi-lane segmenter over store.
func NewConcurrent(store storage.Manager, cfg Config) *Concurrent {
	c := &Concurrent{
		lanes: make([]laneState, store.Layout().NumLanes),
	}
	c.init(c, store, cfg)
	c.gate = sync.NewCond(&c.gateMu)
	return c
}

// Begin opens region 0.
func (c *Concurrent) Begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if Phase(c.phase.Load()) != PhaseNotStarted {
		return ErrAlreadyStarted
	}

	r, err := c.openRegion()
	if err != nil {
		c.fail(err)
		c.release(PhaseStopped)
		return err
	}

	c.open.Store(r)
	c.counter.v.Store(0)
	c.release(PhaseRunning)
	return nil
}

// Record accounts one block execution on lane. Each lane must be driven by a
// single goroutine.
func (c *Concurrent) Record(lane int, block uint64, weight uint64) {
	if lane < 0 || lane >= len(c.lanes) {
		if Phase(c.phase.Load()) == PhaseRunning {
			c.strays.Add(1)
		}
		return
	}

	ls := &c.lanes[lane]
	if block >= c.numBlocks {
		if Phase(c.phase.Load()) == PhaseRunning {
			ls.dropped.Add(1)
		}
		return
	}

	for {
		ls.busy.Store(1)

		switch Phase(c.phase.Load()) {
		case PhaseRunning:
		case PhaseTransitioning:
			ls.busy.Store(0)
			c.waitGate()
			continue
		default:
			ls.busy.Store(0)
			return
		}

		v, ok := c.reserve(weight)
		if !ok {
			ls.busy.Store(0)
			c.tryTransition()
			continue
		}

		c.open.Load().Hit(lane, block, v)
		ls.busy.Store(0)

		ls.events.Add(1)
		if weight > ls.maxWeight.Load() {
			ls.maxWeight.Store(weight)
		}

		if c.boundary.Reached(v, c.threshold) {
			c.tryTransition()
		}
		return
	}
}

// reserve adds w to the running counter unless the open region has already
// reached the threshold. It returns the post-increment count.
func (c *Concurrent) reserve(w uint64) (uint64, bool) {
	for {
		cur := c.counter.v.Load()
		if c.boundary.Reached(cur, c.threshold) {
			return 0, false
		}
		if c.counter.v.CompareAndSwap(cur, cur+w) {
			return cur + w, true
		}
	}
}

// tryTransition closes the open region if it is still full once the
// transition lock is held.
func (c *Concurrent) tryTransition() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if Phase(c.phase.Load()) != PhaseRunning {
		return
	}
	if !c.boundary.Reached(c.counter.v.Load(), c.threshold) {
		return
	}

	c.transition()
}

// transition must be called with mu held.
func (c *Concurrent) transition() {
	c.phase.Store(int32(PhaseTransitioning))
	c.quiesce()

	if err := c.closeRegion(c.open.Load(), c.counter.v.Load()); err != nil {
		c.abort(err)
		return
	}
	next, err := c.openRegion()
	if err != nil {
		c.abort(err)
		return
	}

	c.open.Store(next)
	c.counter.v.Store(0)
	c.release(PhaseRunning)
}

func (c *Concurrent) abort(err error) {
	c.fail(err)
	c.open.Store(nil)
	c.counter.v.Store(0)
	c.release(PhaseStopped)
}

// quiesce waits until no lane is between its phase check and its last slot
// write. Lanes that check the phase after this point see
// PhaseTransitioning and wait at the gate.
func (c *Concurrent) quiesce() {
	for i := range c.lanes {
		for c.lanes[i].busy.Load() != 0 {
			runtime.Gosched()
		}
	}
}

// release publishes p and wakes lanes waiting at the gate.
func (c *Concurrent) release(p Phase) {
	c.gateMu.Lock()
	c.phase.Store(int32(p))
	c.gate.Broadcast()
	c.gateMu.Unlock()
}

func (c *Concurrent) waitGate() {
	c.gateMu.Lock()
	for Phase(c.phase.Load()) == PhaseTransitioning {
		c.gate.Wait()
	}
	c.gateMu.Unlock()
}

// End closes the open region and stops. Lanes still calling Record return
// without effect.
func (c *Concurrent) End() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch Phase(c.phase.Load()) {
	case PhaseRunning:
	case PhaseStopped:
		return c.stoppedErr()
	default:
		return ErrNotStarted
	}

	c.phase.Store(int32(PhaseTransitioning))
	c.quiesce()

	if err := c.closeRegion(c.open.Load(), c.counter.v.Load()); err != nil {
		c.fail(err)
	}
	c.open.Store(nil)
	c.counter.v.Store(0)
	c.release(PhaseStopped)
	return c.err
}

// Phase returns the current phase.
func (c *Concurrent) Phase() Phase {
	return Phase(c.phase.Load())
}

// Counter returns the instruction count of the open region.
func (c *Concurrent) Counter() uint64 {
	return c.counter.v.Load()
}

// Stats returns the segmentation statistics.
func (c *Concurrent) Stats() Stats {
	s := Stats{
		Regions:      c.regions.Load(),
		Instructions: c.instructions.Load(),
		Dropped:      c.strays.Load(),
	}
	for i := range c.lanes {
		ls := &c.lanes[i]
		s.Events += ls.events.Load()
		s.Dropped += ls.dropped.Load()
		if w := ls.maxWeight.Load(); w > s.MaxWeight {
			s.MaxWeight = w
		}
	}
	return s
}
