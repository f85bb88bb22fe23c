package recorder

import (
	"fmt"
	"os"
	"sync/atomic"
)

// MarkerCounter counts how many times a marker executes inside the region of
// interest. Mark may be called from any number of goroutines.
type MarkerCounter struct {
	active atomic.Bool
	count  atomic.Uint64
	path   string
}

// NewMarkerCounter creates a counter that appends its result to path.
func NewMarkerCounter(path string) *MarkerCounter {
	return &MarkerCounter{path: path}
}

// Begin starts counting.
func (m *MarkerCounter) Begin() {
	m.active.Store(true)
}

// Mark counts one marker execution if counting is active.
func (m *MarkerCounter) Mark() {
	if m.active.Load() {
		m.count.Add(1)
	}
}

// Count returns the number of marker executions counted so far.
func (m *MarkerCounter) Count() uint64 {
	return m.count.Load()
}

// End stops counting and appends "Count: N" to the counts file.
func (m *MarkerCounter) End() error {
	m.active.Store(false)
	count := m.count.Load()

	f, err := os.OpenFile(m.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open counts file: %w", err)
	}
	if _, err := fmt.Fprintf(f, "Count: %d\n", count); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write counts file: %w", err)
	}
	return f.Close()
}
