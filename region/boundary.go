// Package region partitions a stream of basic-block executions into
// consecutive regions of a fixed instruction count.
package region

import "fmt"

// Boundary decides when the running instruction count closes a region.
type Boundary int

const (
	// BoundaryAtLeast closes the region on the first event whose
	// cumulative count is >= the threshold.
	BoundaryAtLeast Boundary = iota

	// BoundaryExceeds closes the region on the first event whose
	// cumulative count is > the threshold.
	BoundaryExceeds
)

// ParseBoundary converts "ge" or "gt" to a Boundary.
func ParseBoundary(s string) (Boundary, error) {
	switch s {
	case "ge", ">=", "":
		return BoundaryAtLeast, nil
	case "gt", ">":
		return BoundaryExceeds, nil
	default:
		return BoundaryAtLeast, fmt.Errorf("unknown boundary policy %q", s)
	}
}

// String returns the short name of the policy.
func (b Boundary) String() string {
	switch b {
	case BoundaryAtLeast:
		return "ge"
	case BoundaryExceeds:
		return "gt"
	default:
		return fmt.Sprintf("Boundary(%d)", int(b))
	}
}

// Reached reports whether count closes a region of the given threshold.
func (b Boundary) Reached(count, threshold uint64) bool {
	if b == BoundaryExceeds {
		return count > threshold
	}
	return count >= threshold
}

// Phase is the lifecycle state of a segmenter.
type Phase int32

// Segmenter phases.
const (
	PhaseNotStarted Phase = iota
	PhaseRunning
	PhaseTransitioning
	PhaseStopped
)

func (p Phase) String() string {
	switch p {
	case PhaseNotStarted:
		return "not_started"
	case PhaseRunning:
		return "running"
	case PhaseTransitioning:
		return "transitioning"
	case PhaseStopped:
		return "stopped"
	default:
		return fmt.Sprintf("Phase(%d)", int32(p))
	}
}
