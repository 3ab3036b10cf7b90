package normalize

import (
	"fmt"
	"slices"

	"github.com/tpncalc/virtualblot/internal/parser"
	"github.com/tpncalc/virtualblot/pkg/core"
)

// DefaultRelationships declares every series of t as an unassociated Target.
func DefaultRelationships(t core.SignalTable) []core.Relationship {
	out := make([]core.Relationship, len(t.Series))
	for i, name := range t.Series {
		out[i] = core.Relationship{SampleName: name, Type: core.Target}
	}
	return out
}

// TotalSeries lists the Total sample names in relationship order.
func TotalSeries(rels []core.Relationship) []string {
	var out []string
	for _, r := range rels {
		if r.Type == core.Total {
			out = append(out, r.SampleName)
		}
	}
	return out
}

// AssignBySpecifier marks the 1-based indices in totalSpec as Total series and,
// when targetSpec is not blank, pairs the indices in targetSpec with them
// positionally. It returns a new slice; rels is not modified. Warnings are
// returned for conditions the caller should show but that do not block the
// assignment, such as an index selected as both Total and Target.
func AssignBySpecifier(rels []core.Relationship, totalSpec, targetSpec string) ([]core.Relationship, []string, error) {
	totals, err := parser.ExpandRange(totalSpec)
	if err != nil {
		return nil, nil, fmt.Errorf("total proteins: %w", err)
	}
	if len(totals) == 0 {
		return nil, nil, fmt.Errorf("total proteins: no index given: %w", core.ErrParse)
	}
	if err := checkIndices(totals, len(rels)); err != nil {
		return nil, nil, fmt.Errorf("total lane index: %w", err)
	}

	out := slices.Clone(rels)
	for _, i := range totals {
		out[i-1].Type = core.Total
		out[i-1].AssociatedLane = nil
	}

	targets, err := parser.ExpandRange(targetSpec)
	if err != nil {
		return nil, nil, fmt.Errorf("target proteins: %w", err)
	}
	if len(targets) == 0 {
		return out, nil, nil
	}
	if err := checkIndices(targets, len(rels)); err != nil {
		return nil, nil, fmt.Errorf("target series index: %w", err)
	}
	if len(targets) != len(totals) {
		return nil, nil, fmt.Errorf("%d total series and %d target series selected: %w", len(totals), len(targets), core.ErrConfiguration)
	}

	var warnings []string
	for _, i := range targets {
		if slices.Contains(totals, i) {
			warnings = append(warnings, fmt.Sprintf("%d is selected as both Total and Target series.", i))
		}
	}

	for k, i := range targets {
		assoc := out[totals[k]-1].SampleName
		out[i-1].Type = core.Target
		out[i-1].AssociatedLane = &assoc
	}
	return out, warnings, nil
}

func checkIndices(idx []int, n int) error {
	for _, i := range idx {
		if i < 1 || i > n {
			return fmt.Errorf("%d is out of range 1-%d: %w", i, n, core.ErrConfiguration)
		}
	}
	return nil
}
