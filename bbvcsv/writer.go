// Package bbvcsv writes basic-block vectors in the sparse CSV format consumed
// by offline phase classification.
//
// Each region and lane produces three lines of equal length:
//
//	bbv,<region>,<lane>,<count>,...
//	csv,<region>,<lane>,<stamp>,...
//	bb_id,<region>,<lane>,<block>,...
//
// Only blocks with a non-zero execution count are listed. The file ends with
// one region_inst line listing the instruction total of every region.
package bbvcsv

import (
	"bufio"
	"io"
	"strconv"

	"github.com/sarchlab/nugget/storage"
)

// Header is the first line of every output file.
const Header = "type,region,thread,data"

// Record type tags.
const (
	TypeBBV        = "bbv"
	TypeStamp      = "csv"
	TypeBlockID    = "bb_id"
	TypeRegionInst = "region_inst"
)

// Writer renders regions in the sparse CSV format. It implements
// storage.Flusher.
type Writer struct {
	w   *bufio.Writer
	buf []byte
	err error

	regions uint64
}

// NewWriter creates a Writer that writes to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		w:   bufio.NewWriterSize(w, 1<<16),
		buf: make([]byte, 0, 256),
	}
}

// WriteHeader writes the column header line.
func (w *Writer) WriteHeader() error {
	w.writeString(Header)
	w.writeByte('\n')
	return w.err
}

// WriteRegions writes the three sparse lines of every lane of every region.
func (w *Writer) WriteRegions(regions []*storage.Region) error {
	for _, r := range regions {
		w.writeRegion(r)
		if w.err != nil {
			return w.err
		}
	}
	return nil
}

// WriteRegionInst writes the closing summary line with one instruction
// total per region.
func (w *Writer) WriteRegionInst(totals []uint64) error {
	w.writeString(TypeRegionInst)
	w.writeString(",N/A,N/A")
	for _, t := range totals {
		w.writeUint(t)
	}
	w.writeByte('\n')
	return w.err
}

// Flush writes buffered data to the underlying writer.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	w.err = w.w.Flush()
	return w.err
}

// Regions returns the number of regions written so far.
func (w *Writer) Regions() uint64 {
	return w.regions
}

func (w *Writer) writeRegion(r *storage.Region) {
	layout := r.Layout()
	for lane := 0; lane < layout.NumLanes; lane++ {
		counts, stamps := r.Lane(lane)

		w.writePrefix(TypeBBV, r.Index, lane)
		for _, c := range counts {
			if c != 0 {
				w.writeUint(c)
			}
		}
		w.writeByte('\n')

		w.writePrefix(TypeStamp, r.Index, lane)
		for k, c := range counts {
			if c != 0 {
				w.writeUint(stamps[k])
			}
		}
		w.writeByte('\n')

		w.writePrefix(TypeBlockID, r.Index, lane)
		for k, c := range counts {
			if c != 0 {
				w.writeUint(uint64(k))
			}
		}
		w.writeByte('\n')
	}
	w.regions++
}

func (w *Writer) writePrefix(tag string, region uint64, lane int) {
	w.writeString(tag)
	w.writeUint(region)
	w.writeUint(uint64(lane))
}

// writeUint writes ",<v>".
func (w *Writer) writeUint(v uint64) {
	if w.err != nil {
		return
	}
	w.buf = append(w.buf[:0], ',')
	w.buf = strconv.AppendUint(w.buf, v, 10)
	_, w.err = w.w.Write(w.buf)
}

func (w *Writer) writeString(s string) {
	if w.err != nil {
		return
	}
	_, w.err = w.w.WriteString(s)
}

func (w *Writer) writeByte(b byte) {
	if w.err != nil {
		return
	}
	w.err = w.w.WriteByte(b)
}
