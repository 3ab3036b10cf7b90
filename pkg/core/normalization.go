// pkg/core/normalization.go
package core

import (
	"encoding/json"
	"fmt"
)

// SeriesType classifies a series for normalization.
type SeriesType string

const (
	Total  SeriesType = "Total"
	Target SeriesType = "Target"
)

// Relationship declares how one series takes part in normalization. A Target
// with no AssociatedLane, or one that does not name a Total, stays unnormalized.
type Relationship struct {
	SampleName     string     `json:"sample_name"`
	Type           SeriesType `json:"type"`
	AssociatedLane *string    `json:"associated_lane,omitempty"`
}

// UnmarshalJSON rejects unknown series types.
func (r *Relationship) UnmarshalJSON(b []byte) error {
	type plain Relationship
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	switch p.Type {
	case Total, Target:
	case "":
		p.Type = Target
	default:
		return fmt.Errorf("relationship %q has type %q: %w", p.SampleName, p.Type, ErrParse)
	}
	*r = Relationship(p)
	return nil
}

// Summary notes.
const (
	NoteReference     = "Reference"
	NoteNotNormalized = "Not Normalized"
	NoteBlank         = "Blank"
)

// SummaryRecord reports the factor applied to one relationship entry.
type SummaryRecord struct {
	SampleName     string  `json:"sample_name"`
	RawTotalSignal float64 `json:"raw_total_signal"`
	Factor         float64 `json:"factor"`
	Note           string  `json:"note"`
}
