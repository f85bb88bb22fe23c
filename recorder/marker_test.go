package recorder_test

import (
	"os"
	"path/filepath"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/nugget/recorder"
)

var _ = Describe("MarkerCounter", func() {
	var (
		path string
		m    *recorder.MarkerCounter
	)

	BeforeEach(func() {
		path = filepath.Join(GinkgoT().TempDir(), "counts.txt")
		m = recorder.NewMarkerCounter(path)
	})

	It("should count only between Begin and End", func() {
		m.Mark()
		m.Begin()
		m.Mark()
		m.Mark()
		Expect(m.End()).To(Succeed())
		m.Mark()

		Expect(m.Count()).To(Equal(uint64(2)))
		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal("Count: 2\n"))
	})

	It("should count marks from many goroutines", func() {
		m.Begin()
		var wg sync.WaitGroup
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 1000; i++ {
					m.Mark()
				}
			}()
		}
		wg.Wait()
		Expect(m.End()).To(Succeed())
		Expect(m.Count()).To(Equal(uint64(8000)))
	})

	It("should append to an existing counts file", func() {
		Expect(os.WriteFile(path, []byte("Count: 5\n"), 0644)).To(Succeed())

		m.Begin()
		m.Mark()
		Expect(m.End()).To(Succeed())

		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal("Count: 5\nCount: 1\n"))
	})

	It("should fail when the file cannot be opened", func() {
		m = recorder.NewMarkerCounter(filepath.Join(path, "missing", "counts.txt"))
		m.Begin()
		Expect(m.End()).To(HaveOccurred())
	})
})
