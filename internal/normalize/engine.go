package normalize

import (
	"fmt"

	"github.com/tpncalc/virtualblot/pkg/core"
)

// Request is one normalization run.
type Request struct {
	Table         core.SignalTable
	Relationships []core.Relationship
	// Reference names the Total series every other Total is scaled to.
	Reference string
	Mode      SumMode
	// Range restricts both the integration and the returned table.
	Range core.MWRange
}

// Result carries the scaled table and everything needed to explain it.
type Result struct {
	Table   core.SignalTable
	Summary []core.SummaryRecord
	Sums    map[string]float64
	Factors map[string]float64
}

// Run restricts, integrates, computes factors, scales and summarizes.
func Run(req Request) (Result, error) {
	if err := req.Table.Validate(); err != nil {
		return Result{}, err
	}
	if len(req.Relationships) == 0 {
		req.Relationships = DefaultRelationships(req.Table)
	}

	table := RestrictRange(req.Table, req.Range)
	sums := SignalSums(table, req.Mode)

	factors, err := ComputeFactors(sums, TotalSeries(req.Relationships), req.Reference)
	if err != nil {
		return Result{}, err
	}
	if !isTotal(req.Relationships, req.Reference) {
		return Result{}, fmt.Errorf("reference %q is not a Total series: %w", req.Reference, core.ErrReference)
	}

	scaled, used, err := Apply(table, req.Relationships, factors)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Table:   scaled,
		Summary: Summarize(req.Relationships, sums, used, req.Reference),
		Sums:    sums,
		Factors: factors,
	}, nil
}

func isTotal(rels []core.Relationship, name string) bool {
	for _, r := range rels {
		if r.Type == core.Total && r.SampleName == name {
			return true
		}
	}
	return false
}
