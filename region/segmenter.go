package region

import (
	"errors"
	"sync/atomic"

	"github.com/phuslu/log"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/nugget/storage"
)

// Lifecycle errors.
var (
	ErrNotStarted     = errors.New("segmenter not started")
	ErrAlreadyStarted = errors.New("segmenter already started")
	ErrStopped        = errors.New("segmenter already stopped")
)

// Hook positions invoked by segmenters.
var (
	// HookPosRegionOpened is invoked after a region becomes the open region.
	// Item is the *storage.Region.
	HookPosRegionOpened = &sim.HookPos{Name: "RegionOpened"}

	// HookPosRegionClosed is invoked after a region is closed. Item is the
	// *storage.Region, Detail is a RegionInfo.
	HookPosRegionClosed = &sim.HookPos{Name: "RegionClosed"}
)

// RegionInfo summarizes a closed region.
type RegionInfo struct {
	Index             uint64
	TotalInstructions uint64
}

// Segmenter consumes basic-block events and closes regions as the running
// instruction count reaches the threshold.
//
// Hooks run on the goroutine performing the transition while every other
// lane is held back. A hook must not call Record.
type Segmenter interface {
	sim.Hookable

	// Begin opens region 0 and starts accepting events.
	Begin() error

	// Record accounts one execution of block, weighing weight instructions,
	// on the given lane. Calls outside the running phase are ignored.
	Record(lane int, block uint64, weight uint64)

	// End closes the open region, possibly empty, and stops the segmenter.
	End() error

	// Phase returns the current lifecycle phase.
	Phase() Phase

	// Stats returns counters describing the session so far.
	Stats() Stats
}

// Config configures a segmenter.
type Config struct {
	// Threshold is the nominal region size in instructions. Must be > 0.
	Threshold uint64

	// Boundary selects the comparison that closes a region.
	Boundary Boundary

	// Logger receives lifecycle and failure messages.
	Logger *log.Logger
}

// Stats holds segmentation statistics.
type Stats struct {
	// Regions is the number of closed regions.
	Regions uint64
	// Instructions is the sum of the totals of all closed regions.
	Instructions uint64
	// Events is the number of recorded block executions.
	Events uint64
	// Dropped is the number of events ignored for out-of-range ids.
	Dropped uint64
	// MaxWeight is the largest weight of any recorded event.
	MaxWeight uint64
}

// tracker holds what both segmenters share: the store, the region index,
// the hooks and the closed-region counters. Its methods run only on the
// goroutine that owns the transition.
type tracker struct {
	*sim.HookableBase

	domain    sim.Hookable
	store     storage.Manager
	numBlocks uint64
	threshold uint64
	boundary  Boundary
	log       *log.Logger

	index        uint64
	err          error
	regions      atomic.Uint64
	instructions atomic.Uint64
}

func (t *tracker) init(domain sim.Hookable, store storage.Manager, cfg Config) {
	t.HookableBase = sim.NewHookableBase()
	t.domain = domain
	t.store = store
	t.numBlocks = store.Layout().NumBlocks
	t.threshold = cfg.Threshold
	t.boundary = cfg.Boundary
	t.log = cfg.Logger
	if t.log == nil {
		t.log = &log.DefaultLogger
	}
}

func (t *tracker) openRegion() (*storage.Region, error) {
	r, err := t.store.Open(t.index)
	if err != nil {
		return nil, err
	}

	if t.NumHooks() > 0 {
		t.InvokeHook(sim.HookCtx{
			Domain: t.domain,
			Pos:    HookPosRegionOpened,
			Item:   r,
		})
	}
	return r, nil
}

func (t *tracker) closeRegion(r *storage.Region, total uint64) error {
	if err := t.store.Close(r, total); err != nil {
		return err
	}
	t.regions.Add(1)
	t.instructions.Add(total)

	if t.NumHooks() > 0 {
		t.InvokeHook(sim.HookCtx{
			Domain: t.domain,
			Pos:    HookPosRegionClosed,
			Item:   r,
			Detail: RegionInfo{Index: r.Index, TotalInstructions: total},
		})
	}

	t.index++
	return nil
}

func (t *tracker) fail(err error) {
	t.err = err
	t.log.Error().Err(err).
		Uint64("region", t.index).
		Msg("Region transition failed, recording aborted")
}

func (t *tracker) stoppedErr() error {
	if t.err != nil {
		return t.err
	}
	return ErrStopped
}

// New returns a Sequential segmenter for single-lane layouts and a
// Concurrent one otherwise.
func New(store storage.Manager, cfg Config) Segmenter {
	if store.Layout().NumLanes == 1 {
		return NewSequential(store, cfg)
	}
	return NewConcurrent(store, cfg)
}
