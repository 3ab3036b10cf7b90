package blot

import (
	"math"

	"github.com/tpncalc/virtualblot/pkg/core"
)

// Nearest returns the index of the weight closest to target. Ties go to the
// first candidate in slice order, so on a descending slice the heavier row wins.
// It returns -1 for an empty slice.
func Nearest(weights []float64, target float64) int {
	best := -1
	bestDiff := math.Inf(1)
	for i, w := range weights {
		if d := math.Abs(w - target); d < bestDiff {
			best, bestDiff = i, d
		}
	}
	return best
}

// SelectRange returns the half-open row window [start, end) of weights (sorted
// descending) covered by r. The rows nearest to r.Max and r.Min are both part
// of the window. A bound at or beyond the data edge leaves that side open.
func SelectRange(weights []float64, r core.MWRange) (start, end int) {
	n := len(weights)
	if n == 0 {
		return 0, 0
	}
	start, end = 0, n

	highest, lowest := weights[0], weights[n-1]
	if r.Max != nil && *r.Max < highest {
		start = Nearest(weights, *r.Max)
	}
	if r.Min != nil && lowest < *r.Min {
		end = Nearest(weights, *r.Min) + 1
	}
	if end < start {
		end = start
	}
	return start, end
}
