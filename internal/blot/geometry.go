package blot

import (
	"image"

	"github.com/tpncalc/virtualblot/pkg/core"
)

// Geometry is the pixel layout of one image.
type Geometry struct {
	Width  int
	Height int
	// Field is the band area. Max is the bottom-right corner the frame is
	// drawn through, one row below the last band row.
	Field image.Rectangle
}

// FieldWidth is the horizontal extent of the band area.
func FieldWidth(l core.Layout, lanes int) int {
	return (l.BandWidth+l.BandSpacing)*lanes + l.BandSpacing
}

// ComputeGeometry lays out an image with one pixel row per data row.
func ComputeGeometry(l core.Layout, rows, lanes int) Geometry {
	fw := FieldWidth(l, lanes)
	return Geometry{
		Width:  fw + l.OffsetLeft + l.OffsetRight,
		Height: rows + l.OffsetTop + l.OffsetBottom,
		Field:  image.Rect(l.OffsetLeft, l.OffsetTop, l.OffsetLeft+fw, l.OffsetTop+rows),
	}
}

// laneStartX returns the x of the first band pixel of lane i.
func laneStartX(l core.Layout, g Geometry, i int) int {
	return g.Field.Min.X + l.BandSpacing + i*(l.BandWidth+l.BandSpacing)
}
