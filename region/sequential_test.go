package region_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/nugget/region"
	"github.com/sarchlab/nugget/storage"
)

type regionLog struct {
	opened []uint64
	closed []region.RegionInfo
}

func (l *regionLog) Func(ctx sim.HookCtx) {
	switch ctx.Pos {
	case region.HookPosRegionOpened:
		l.opened = append(l.opened, ctx.Item.(*storage.Region).Index)
	case region.HookPosRegionClosed:
		l.closed = append(l.closed, ctx.Detail.(region.RegionInfo))
	}
}

func newStore(blocks uint64, lanes int, opts ...storage.Option) *storage.GrowingStore {
	store, err := storage.NewGrowingStore(storage.Layout{NumBlocks: blocks, NumLanes: lanes}, opts...)
	Expect(err).NotTo(HaveOccurred())
	return store
}

var _ = Describe("Sequential", func() {
	var (
		store *storage.GrowingStore
		seg   *region.Sequential
	)

	start := func(threshold uint64, boundary region.Boundary) {
		store = newStore(3, 1)
		seg = region.NewSequential(store, region.Config{
			Threshold: threshold,
			Boundary:  boundary,
		})
		Expect(seg.Begin()).To(Succeed())
	}

	exampleEvents := func() {
		seg.Record(0, 0, 4)
		seg.Record(0, 1, 4)
		seg.Record(0, 2, 4)
		seg.Record(0, 0, 1)
	}

	expectExampleRegion := func() {
		r := store.Closed()[0]
		counts, stamps := r.Lane(0)
		Expect(counts).To(Equal([]uint64{2, 1, 1}))
		Expect(stamps).To(Equal([]uint64{13, 8, 12}))
		Expect(r.TotalInstructions).To(Equal(uint64(13)))
	}

	It("should close on the event reaching the threshold with ge", func() {
		start(13, region.BoundaryAtLeast)
		exampleEvents()

		Expect(store.Totals()).To(Equal([]uint64{13}))
		expectExampleRegion()
		Expect(seg.Counter()).To(Equal(uint64(0)))
	})

	It("should close on the event exceeding the threshold with gt", func() {
		start(12, region.BoundaryExceeds)
		exampleEvents()

		Expect(store.Totals()).To(Equal([]uint64{13}))
		expectExampleRegion()
	})

	It("should close a threshold of 10 on the third event", func() {
		start(10, region.BoundaryAtLeast)
		exampleEvents()

		Expect(store.Totals()).To(Equal([]uint64{12}))
		counts, stamps := store.Closed()[0].Lane(0)
		Expect(counts).To(Equal([]uint64{1, 1, 1}))
		Expect(stamps).To(Equal([]uint64{4, 8, 12}))
		Expect(seg.Counter()).To(Equal(uint64(1)))
	})

	It("should close an empty final region on End", func() {
		start(13, region.BoundaryAtLeast)
		exampleEvents()
		Expect(seg.End()).To(Succeed())

		Expect(store.Totals()).To(Equal([]uint64{13, 0}))
		Expect(store.Closed()[1].Executions()).To(Equal(uint64(0)))
		Expect(seg.Phase()).To(Equal(region.PhaseStopped))
	})

	It("should close one empty region when nothing was recorded", func() {
		start(10, region.BoundaryAtLeast)
		Expect(seg.End()).To(Succeed())
		Expect(store.Totals()).To(Equal([]uint64{0}))
	})

	It("should ignore events outside Begin and End", func() {
		store = newStore(3, 1)
		seg = region.NewSequential(store, region.Config{Threshold: 5})
		seg.Record(0, 1, 100)
		Expect(seg.Phase()).To(Equal(region.PhaseNotStarted))

		Expect(seg.Begin()).To(Succeed())
		seg.Record(0, 1, 2)
		Expect(seg.End()).To(Succeed())
		seg.Record(0, 1, 100)

		Expect(store.Totals()).To(Equal([]uint64{2}))
		Expect(seg.Stats().Events).To(Equal(uint64(1)))
	})

	It("should drop out-of-range ids", func() {
		start(100, region.BoundaryAtLeast)
		seg.Record(0, 3, 1)
		seg.Record(1, 0, 1)
		seg.Record(0, 2, 1)

		stats := seg.Stats()
		Expect(stats.Dropped).To(Equal(uint64(2)))
		Expect(stats.Events).To(Equal(uint64(1)))
		Expect(seg.Counter()).To(Equal(uint64(1)))
	})

	It("should reject lifecycle misuse", func() {
		store = newStore(3, 1)
		seg = region.NewSequential(store, region.Config{Threshold: 5})
		Expect(seg.End()).To(MatchError(region.ErrNotStarted))
		Expect(seg.Begin()).To(Succeed())
		Expect(seg.Begin()).To(MatchError(region.ErrAlreadyStarted))
		Expect(seg.End()).To(Succeed())
		Expect(seg.End()).To(MatchError(region.ErrStopped))
	})

	It("should count a zero-weight event without moving the counter", func() {
		start(5, region.BoundaryAtLeast)
		seg.Record(0, 1, 0)
		Expect(seg.Counter()).To(Equal(uint64(0)))
		Expect(seg.End()).To(Succeed())

		r := store.Closed()[0]
		Expect(r.Count(0, 1)).To(Equal(uint64(1)))
		Expect(r.Stamp(0, 1)).To(Equal(uint64(0)))
	})

	It("should keep region sizes below threshold plus the largest weight", func() {
		start(50, region.BoundaryAtLeast)
		weights := []uint64{7, 3, 19, 1, 11, 23, 5}
		var total uint64
		for i := 0; i < 1000; i++ {
			w := weights[i%len(weights)]
			seg.Record(0, uint64(i%3), w)
			total += w
		}
		Expect(seg.End()).To(Succeed())

		totals := store.Totals()
		var sum uint64
		for i, t := range totals {
			sum += t
			if i < len(totals)-1 {
				Expect(t).To(BeNumerically(">=", 50))
				Expect(t).To(BeNumerically("<", 50+23))
			}
		}
		Expect(sum).To(Equal(total))
		Expect(seg.Stats().Instructions).To(Equal(total))
		Expect(seg.Stats().MaxWeight).To(Equal(uint64(23)))
	})

	It("should invoke hooks around transitions", func() {
		hooks := &regionLog{}
		store = newStore(3, 1)
		seg = region.NewSequential(store, region.Config{Threshold: 4})
		seg.AcceptHook(hooks)

		Expect(seg.Begin()).To(Succeed())
		seg.Record(0, 0, 4)
		seg.Record(0, 1, 2)
		Expect(seg.End()).To(Succeed())

		Expect(hooks.opened).To(Equal([]uint64{0, 1}))
		Expect(hooks.closed).To(Equal([]region.RegionInfo{
			{Index: 0, TotalInstructions: 4},
			{Index: 1, TotalInstructions: 2},
		}))
	})

	It("should abort when storage cannot grow", func() {
		layout := storage.Layout{NumBlocks: 3, NumLanes: 1}
		store = newStore(3, 1,
			storage.WithChunkSize(2),
			storage.WithGrowthMargin(0),
			storage.WithMaxBytes(layout.RegionBytes()*3))
		seg = region.NewSequential(store, region.Config{Threshold: 1})
		Expect(seg.Begin()).To(Succeed())

		seg.Record(0, 0, 1)
		seg.Record(0, 0, 1)
		Expect(seg.Phase()).To(Equal(region.PhaseStopped))

		seg.Record(0, 0, 1)
		err := seg.End()
		Expect(errors.Is(err, storage.ErrAllocation)).To(BeTrue())
		Expect(store.Totals()).To(Equal([]uint64{1, 1}))
	})
})
