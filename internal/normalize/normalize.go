// Package normalize scales signal series against total-protein reference series.
package normalize

import (
	"fmt"

	"github.com/tpncalc/virtualblot/pkg/core"
)

// SumMode selects how a series is integrated.
type SumMode int

const (
	// Full sums every row.
	Full SumMode = iota
	// PositiveRegion sums from the highest molecular weight down to, but not
	// including, the first negative value.
	PositiveRegion
)

// String returns the mode name used in logs.
func (m SumMode) String() string {
	if m == PositiveRegion {
		return "positive-region"
	}
	return "full"
}

// RestrictRange keeps the rows whose molecular weight lies in the closed range.
// Excluded rows are dropped, not zeroed.
func RestrictRange(t core.SignalTable, r core.MWRange) core.SignalTable {
	if !r.IsSet() {
		return t.Clone()
	}
	return t.Filter(func(row core.Row) bool { return r.Contains(row.MW) })
}

// SignalSums integrates each series of t.
func SignalSums(t core.SignalTable, mode SumMode) map[string]float64 {
	rows := t.Rows
	if mode == PositiveRegion {
		rows = t.SortedByMWDesc().Rows
	}

	sums := make(map[string]float64, len(t.Series))
	for i, name := range t.Series {
		var s float64
		for _, r := range rows {
			v := r.Values[i]
			if mode == PositiveRegion && v < 0 {
				break
			}
			s += v
		}
		sums[name] = s
	}
	return sums
}

// ComputeFactors returns sums[reference]/sums[s] for every total series s. A
// total with a zero sum gets factor 0 so its lane is blanked instead of failing.
func ComputeFactors(sums map[string]float64, totals []string, reference string) (map[string]float64, error) {
	ref, ok := sums[reference]
	if !ok {
		return nil, fmt.Errorf("reference series %q has no signal sum: %w", reference, core.ErrReference)
	}

	factors := make(map[string]float64, len(totals))
	for _, name := range totals {
		s, ok := sums[name]
		if !ok {
			return nil, fmt.Errorf("total series %q has no signal sum: %w", name, core.ErrReference)
		}
		if s == 0 {
			factors[name] = 0
			continue
		}
		factors[name] = ref / s
	}
	return factors, nil
}

// FactorFor returns the factor that applies to rel. The second result is false
// when rel stays unnormalized.
func FactorFor(rel core.Relationship, factors map[string]float64) (float64, bool) {
	switch rel.Type {
	case core.Total:
		f, ok := factors[rel.SampleName]
		return f, ok
	case core.Target:
		if rel.AssociatedLane == nil {
			return 1, false
		}
		f, ok := factors[*rel.AssociatedLane]
		if !ok {
			return 1, false
		}
		return f, true
	}
	return 1, false
}

// Apply scales every relationship's series by its factor. The output keeps the
// row order and molecular weights of t and lists series in relationship order.
// The second result maps each sample name to the factor actually used.
func Apply(t core.SignalTable, rels []core.Relationship, factors map[string]float64) (core.SignalTable, map[string]float64, error) {
	cols := make([]int, len(rels))
	used := make(map[string]float64, len(rels))
	out := core.SignalTable{MWColumn: t.MWColumn, Series: make([]string, len(rels))}

	for j, rel := range rels {
		idx, ok := t.Index(rel.SampleName)
		if !ok {
			return core.SignalTable{}, nil, fmt.Errorf("relationship sample %q: %w", rel.SampleName, core.ErrReference)
		}
		f, found := FactorFor(rel, factors)
		if rel.Type == core.Total && !found {
			return core.SignalTable{}, nil, fmt.Errorf("total series %q has no factor: %w", rel.SampleName, core.ErrReference)
		}
		cols[j] = idx
		used[rel.SampleName] = f
		out.Series[j] = rel.SampleName
	}

	out.Rows = make([]core.Row, len(t.Rows))
	for i, r := range t.Rows {
		vals := make([]float64, len(rels))
		for j, rel := range rels {
			vals[j] = used[rel.SampleName] * r.Values[cols[j]]
		}
		out.Rows[i] = core.Row{MW: r.MW, Values: vals}
	}
	return out, used, nil
}

func isReference(rel core.Relationship, reference string) bool {
	switch rel.Type {
	case core.Total:
		return rel.SampleName == reference
	case core.Target:
		return rel.AssociatedLane != nil && *rel.AssociatedLane == reference
	}
	return false
}

// Summarize builds one record per relationship. Note precedence is
// Reference, Not Normalized, Blank, then none.
func Summarize(rels []core.Relationship, sums, used map[string]float64, reference string) []core.SummaryRecord {
	out := make([]core.SummaryRecord, 0, len(rels))
	for _, rel := range rels {
		rec := core.SummaryRecord{
			SampleName:     rel.SampleName,
			RawTotalSignal: sums[rel.SampleName],
			Factor:         used[rel.SampleName],
		}
		switch {
		case isReference(rel, reference):
			rec.Note = core.NoteReference
		case rec.Factor == 1:
			rec.Note = core.NoteNotNormalized
		case rec.RawTotalSignal == 0:
			rec.Note = core.NoteBlank
		}
		out = append(out, rec)
	}
	return out
}
