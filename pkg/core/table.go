// pkg/core/table.go
package core

import (
	"fmt"
	"slices"
)

// DefaultMWColumn is the conventional header of the molecular-weight column.
const DefaultMWColumn = "kDa"

// Row is one molecular-weight position. Values[i] belongs to SignalTable.Series[i].
type Row struct {
	MW     float64   `json:"mw"`
	Values []float64 `json:"values"`
}

// SignalTable is an ordered set of rows, one numeric value per named series.
//
// Blank cells are coerced to 0 during ingestion, so a zero here may mean either
// "no signal" or "no data". Both engines treat it as a measured zero.
type SignalTable struct {
	MWColumn string   `json:"mwColumn"`
	Series   []string `json:"series"`
	Rows     []Row    `json:"rows"`
}

// Validate checks the structural invariants: unique non-empty series names and
// one value per series in every row.
func (t SignalTable) Validate() error {
	seen := make(map[string]struct{}, len(t.Series))
	for _, name := range t.Series {
		if name == "" {
			return fmt.Errorf("series name is empty: %w", ErrConfiguration)
		}
		if name == t.MWColumn {
			return fmt.Errorf("series %q collides with the molecular-weight column: %w", name, ErrConfiguration)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("duplicate series %q: %w", name, ErrConfiguration)
		}
		seen[name] = struct{}{}
	}
	for i, r := range t.Rows {
		if len(r.Values) != len(t.Series) {
			return fmt.Errorf("row %d has %d values, want %d: %w", i, len(r.Values), len(t.Series), ErrConfiguration)
		}
	}
	return nil
}

// Index returns the column index of the named series.
func (t SignalTable) Index(series string) (int, bool) {
	i := slices.Index(t.Series, series)
	return i, i >= 0
}

// Column returns a copy of the named series' values in row order.
func (t SignalTable) Column(series string) ([]float64, error) {
	idx, ok := t.Index(series)
	if !ok {
		return nil, fmt.Errorf("series %q: %w", series, ErrReference)
	}
	out := make([]float64, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Values[idx]
	}
	return out, nil
}

// Weights returns the molecular weights in row order.
func (t SignalTable) Weights() []float64 {
	out := make([]float64, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.MW
	}
	return out
}

// Clone returns a deep copy.
func (t SignalTable) Clone() SignalTable {
	out := SignalTable{
		MWColumn: t.MWColumn,
		Series:   slices.Clone(t.Series),
		Rows:     make([]Row, len(t.Rows)),
	}
	for i, r := range t.Rows {
		out.Rows[i] = Row{MW: r.MW, Values: slices.Clone(r.Values)}
	}
	return out
}

// SortedByMWDesc returns a copy with rows ordered by molecular weight, highest
// first. Rows with equal weight keep their original relative order.
func (t SignalTable) SortedByMWDesc() SignalTable {
	out := t.Clone()
	slices.SortStableFunc(out.Rows, func(a, b Row) int {
		switch {
		case a.MW > b.MW:
			return -1
		case a.MW < b.MW:
			return 1
		}
		return 0
	})
	return out
}

// Filter returns a copy holding only the rows for which keep reports true.
func (t SignalTable) Filter(keep func(Row) bool) SignalTable {
	out := SignalTable{MWColumn: t.MWColumn, Series: slices.Clone(t.Series)}
	for _, r := range t.Rows {
		if keep(r) {
			out.Rows = append(out.Rows, Row{MW: r.MW, Values: slices.Clone(r.Values)})
		}
	}
	return out
}
