package bbvcsv_test

import (
	"bytes"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/nugget/bbvcsv"
	"github.com/sarchlab/nugget/storage"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("no space left on device")
}

var _ = Describe("Writer", func() {
	var (
		buf   *bytes.Buffer
		w     *bbvcsv.Writer
		store *storage.GrowingStore
	)

	closed := func(total uint64, hits ...[3]uint64) *storage.Region {
		r, err := store.Open(uint64(len(store.Totals())))
		Expect(err).NotTo(HaveOccurred())
		for _, h := range hits {
			for i := uint64(0); i < h[2]; i++ {
				r.Hit(int(h[0]), h[1], total)
			}
		}
		Expect(store.Close(r, total)).To(Succeed())
		return r
	}

	BeforeEach(func() {
		buf = &bytes.Buffer{}
		w = bbvcsv.NewWriter(buf)
		var err error
		store, err = storage.NewGrowingStore(
			storage.Layout{NumBlocks: 5, NumLanes: 2},
			storage.WithChunkSize(4), storage.WithGrowthMargin(0))
		Expect(err).NotTo(HaveOccurred())
	})

	It("should write the header", func() {
		Expect(w.WriteHeader()).To(Succeed())
		Expect(w.Flush()).To(Succeed())
		Expect(buf.String()).To(Equal("type,region,thread,data\n"))
	})

	It("should write three sparse lines per lane", func() {
		r := closed(30, [3]uint64{0, 1, 2}, [3]uint64{0, 4, 1}, [3]uint64{1, 0, 3})

		Expect(w.WriteRegions([]*storage.Region{r})).To(Succeed())
		Expect(w.Flush()).To(Succeed())
		Expect(buf.String()).To(Equal(
			"bbv,0,0,2,1\n" +
				"csv,0,0,30,30\n" +
				"bb_id,0,0,1,4\n" +
				"bbv,0,1,3\n" +
				"csv,0,1,30\n" +
				"bb_id,0,1,0\n"))
		Expect(w.Regions()).To(Equal(uint64(1)))
	})

	It("should write empty lanes as bare prefixes", func() {
		r := closed(0)

		Expect(w.WriteRegions([]*storage.Region{r})).To(Succeed())
		Expect(w.Flush()).To(Succeed())
		Expect(strings.Split(strings.TrimSpace(buf.String()), "\n")).To(Equal([]string{
			"bbv,0,0", "csv,0,0", "bb_id,0,0",
			"bbv,0,1", "csv,0,1", "bb_id,0,1",
		}))
	})

	It("should list stamps of 0 when the count is not zero", func() {
		r, err := store.Open(0)
		Expect(err).NotTo(HaveOccurred())
		r.Hit(0, 2, 0)
		Expect(store.Close(r, 0)).To(Succeed())

		Expect(w.WriteRegions([]*storage.Region{r})).To(Succeed())
		Expect(w.Flush()).To(Succeed())
		Expect(buf.String()).To(HavePrefix("bbv,0,0,1\ncsv,0,0,0\nbb_id,0,0,2\n"))
	})

	It("should write the region_inst line", func() {
		Expect(w.WriteRegionInst([]uint64{13, 9, 0})).To(Succeed())
		Expect(w.Flush()).To(Succeed())
		Expect(buf.String()).To(Equal("region_inst,N/A,N/A,13,9,0\n"))
	})

	It("should write region_inst with no regions", func() {
		Expect(w.WriteRegionInst(nil)).To(Succeed())
		Expect(w.Flush()).To(Succeed())
		Expect(buf.String()).To(Equal("region_inst,N/A,N/A\n"))
	})

	It("should use each region's own index", func() {
		closed(1, [3]uint64{0, 0, 1})
		closed(2, [3]uint64{1, 3, 1})
		r2 := closed(3, [3]uint64{0, 2, 1})

		Expect(w.WriteRegions(store.Closed()[1:])).To(Succeed())
		Expect(w.Flush()).To(Succeed())
		Expect(buf.String()).To(ContainSubstring("bbv,1,1,1\n"))
		Expect(buf.String()).To(ContainSubstring("bb_id,2,0,2\n"))
		Expect(r2.Index).To(Equal(uint64(2)))
	})

	It("should keep the first write error", func() {
		w = bbvcsv.NewWriter(failingWriter{})
		Expect(w.WriteHeader()).To(Succeed())

		err := w.Flush()
		Expect(err).To(MatchError(ContainSubstring("no space left")))
		Expect(w.WriteRegionInst([]uint64{1})).To(MatchError(err))
	})
})
