// pkg/core/blot.go
package core

import "fmt"

// Lane selects one series for the image. The position of the Lane in its slice
// is its left-to-right position.
type Lane struct {
	Series string  `json:"series"`
	Label  *string `json:"label,omitempty"`
}

// Layout holds the pixel geometry of the image.
type Layout struct {
	OffsetTop      int `json:"offsetTop" mapstructure:"offsetTop"`
	OffsetBottom   int `json:"offsetBottom" mapstructure:"offsetBottom"`
	OffsetLeft     int `json:"offsetLeft" mapstructure:"offsetLeft"`
	OffsetRight    int `json:"offsetRight" mapstructure:"offsetRight"`
	BandWidth      int `json:"bandWidth" mapstructure:"bandWidth"`
	BandSpacing    int `json:"bandSpacing" mapstructure:"bandSpacing"`
	LabelFontSize  int `json:"labelFontSize" mapstructure:"labelFontSize"`
	MarkerFontSize int `json:"markerFontSize" mapstructure:"markerFontSize"`
}

// UniformOffset sets all four offsets to v.
func (l Layout) UniformOffset(v int) Layout {
	l.OffsetTop, l.OffsetBottom, l.OffsetLeft, l.OffsetRight = v, v, v, v
	return l
}

// Validate rejects negative sizes. Zero is degenerate but legal.
func (l Layout) Validate() error {
	fields := []struct {
		name string
		v    int
	}{
		{"offset top", l.OffsetTop},
		{"offset bottom", l.OffsetBottom},
		{"offset left", l.OffsetLeft},
		{"offset right", l.OffsetRight},
		{"band width", l.BandWidth},
		{"band spacing", l.BandSpacing},
		{"label font size", l.LabelFontSize},
		{"marker font size", l.MarkerFontSize},
	}
	for _, f := range fields {
		if f.v < 0 {
			return fmt.Errorf("%s is %d: %w", f.name, f.v, ErrConfiguration)
		}
	}
	return nil
}

// MWRange bounds molecular weights. A nil side extends to the data edge.
type MWRange struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// NewMWRange builds a range with both sides set.
func NewMWRange(lo, hi float64) MWRange {
	return MWRange{Min: &lo, Max: &hi}
}

// IsSet reports whether either side is bounded.
func (r MWRange) IsSet() bool {
	return r.Min != nil || r.Max != nil
}

// Contains reports whether mw lies in the closed interval [Min, Max].
func (r MWRange) Contains(mw float64) bool {
	if r.Min != nil && mw < *r.Min {
		return false
	}
	if r.Max != nil && mw > *r.Max {
		return false
	}
	return true
}

// Marker is a reference molecular weight drawn beside the field.
type Marker struct {
	Weight Number  `json:"weight"`
	Label  *string `json:"label,omitempty"`
}

// Text is the marker's display text: its label when set, else its weight.
func (m Marker) Text() string {
	if m.Label != nil {
		return *m.Label
	}
	return m.Weight.String()
}
