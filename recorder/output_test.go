package recorder_test

import (
	"bytes"
	"errors"
	"io"
	"strconv"
	"strings"

	. "github.com/onsi/gomega"
)

// sink is an in-memory output artifact.
type sink struct {
	bytes.Buffer
	closed bool
	err    error
}

func (s *sink) Write(p []byte) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.Buffer.Write(p)
}

func (s *sink) Close() error {
	s.closed = true
	return nil
}

func (s *sink) opener() func() (io.WriteCloser, error) {
	return func() (io.WriteCloser, error) {
		return s, nil
	}
}

var errSinkFull = errors.New("sink full")

type entry struct {
	count, stamp uint64
}

type key struct {
	region uint64
	lane   int
}

// output is a parsed CSV artifact.
type output struct {
	header  string
	regions []uint64
	vectors map[key]map[uint64]entry
	totals  []uint64
}

func parseOutput(text string) output {
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	Expect(len(lines)).To(BeNumerically(">=", 2))

	out := output{
		header:  lines[0],
		vectors: map[key]map[uint64]entry{},
	}

	last := strings.Split(lines[len(lines)-1], ",")
	Expect(last[:3]).To(Equal([]string{"region_inst", "N/A", "N/A"}))
	out.totals = parseUints(last[3:])

	body := lines[1 : len(lines)-1]
	Expect(len(body) % 3).To(Equal(0))
	for i := 0; i < len(body); i += 3 {
		bbv := strings.Split(body[i], ",")
		csv := strings.Split(body[i+1], ",")
		ids := strings.Split(body[i+2], ",")
		Expect(bbv[0]).To(Equal("bbv"))
		Expect(csv[0]).To(Equal("csv"))
		Expect(ids[0]).To(Equal("bb_id"))
		Expect(csv[1:3]).To(Equal(bbv[1:3]))
		Expect(ids[1:3]).To(Equal(bbv[1:3]))

		counts := parseUints(bbv[3:])
		stamps := parseUints(csv[3:])
		blocks := parseUints(ids[3:])
		Expect(stamps).To(HaveLen(len(counts)))
		Expect(blocks).To(HaveLen(len(counts)))

		r := parseUints(bbv[1:2])[0]
		lane := int(parseUints(bbv[2:3])[0])
		if len(out.regions) == 0 || out.regions[len(out.regions)-1] != r {
			out.regions = append(out.regions, r)
		}

		m := map[uint64]entry{}
		for k, b := range blocks {
			Expect(counts[k]).To(BeNumerically(">", 0))
			m[b] = entry{count: counts[k], stamp: stamps[k]}
		}
		out.vectors[key{r, lane}] = m
	}
	return out
}

func parseUints(fields []string) []uint64 {
	values := make([]uint64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseUint(f, 10, 64)
		Expect(err).NotTo(HaveOccurred())
		values = append(values, v)
	}
	return values
}
