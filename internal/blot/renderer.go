// Package blot renders a signal table as a grayscale Western blot image: one
// pixel row per table row, one band column per lane, darker for stronger signal.
package blot

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strconv"

	"golang.org/x/image/font"

	"github.com/tpncalc/virtualblot/pkg/core"
)

const (
	labelGap        = 8
	rotatedLabelGap = 4
	tickLength      = 5
	frameWidth      = 2
)

// LabelMode selects the text drawn above each lane.
type LabelMode int

const (
	LabelNone LabelMode = iota
	LabelLaneNumber
	LabelSampleName
	LabelUserDefined
)

var labelModeNames = map[LabelMode]string{
	LabelNone:        "none",
	LabelLaneNumber:  "lane_number",
	LabelSampleName:  "sample_name",
	LabelUserDefined: "user_defined",
}

func (m LabelMode) String() string {
	if s, ok := labelModeNames[m]; ok {
		return s
	}
	return "LabelMode(" + strconv.Itoa(int(m)) + ")"
}

// ParseLabelMode accepts the names returned by LabelMode.String.
func ParseLabelMode(s string) (LabelMode, error) {
	for m, name := range labelModeNames {
		if name == s {
			return m, nil
		}
	}
	return LabelNone, fmt.Errorf("unknown label mode %q: %w", s, core.ErrConfiguration)
}

// Options are the per-render choices. The zero value draws bands only, over
// the full table, with an automatic ceiling.
type Options struct {
	// Ceiling is the signal drawn as pure black. Nil means the maximum of the
	// plotted data.
	Ceiling *float64
	Range   core.MWRange
	Markers []core.Marker

	Frame        bool
	LabelMode    LabelMode
	RotateLabels bool
	// Labels overrides the labels LabelMode would produce. It may be shorter
	// than the lane list; missing entries are blank.
	Labels []string

	MarkerTicks  bool
	MarkerLabels bool
}

// Result is a rendered image and the values that went into it.
type Result struct {
	Image    *image.Gray
	Geometry Geometry
	// Ceiling is the effective signal ceiling.
	Ceiling float64
	// Weights are the MW values of the drawn rows, heaviest first.
	Weights []float64
}

// Renderer draws one table with one lane order and layout. It memoizes the
// image geometry between renders and is not safe for concurrent use.
type Renderer struct {
	table  core.SignalTable
	lanes  []core.Lane
	cols   []int
	layout core.Layout

	geom    *Geometry
	geomKey [2]int
}

// New validates the inputs and returns a renderer over a copy of t sorted by
// MW descending.
func New(t core.SignalTable, lanes []core.Lane, layout core.Layout) (*Renderer, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if len(t.Rows) == 0 {
		return nil, core.ErrEmptyTable
	}

	cols := make([]int, len(lanes))
	for i, lane := range lanes {
		idx, ok := t.Index(lane.Series)
		if !ok {
			return nil, fmt.Errorf("lane %d: series %q not in table: %w", i+1, lane.Series, core.ErrReference)
		}
		cols[i] = idx
	}

	return &Renderer{
		table:  t.SortedByMWDesc(),
		lanes:  append([]core.Lane(nil), lanes...),
		cols:   cols,
		layout: layout,
	}, nil
}

// Geometry returns the layout for rows drawn rows, computing it on first use
// or when the row or lane count changed since the last call.
func (r *Renderer) Geometry(rows int) Geometry {
	key := [2]int{rows, len(r.lanes)}
	if r.geom == nil || r.geomKey != key {
		g := ComputeGeometry(r.layout, rows, len(r.lanes))
		r.geom, r.geomKey = &g, key
	}
	return *r.geom
}

// Invalidate drops the memoized geometry.
func (r *Renderer) Invalidate() {
	r.geom = nil
}

// Labels resolves the lane labels for mode.
func (r *Renderer) Labels(mode LabelMode) []string {
	if mode == LabelNone {
		return nil
	}
	out := make([]string, len(r.lanes))
	for i, lane := range r.lanes {
		switch mode {
		case LabelLaneNumber:
			out[i] = strconv.Itoa(i + 1)
		case LabelSampleName:
			out[i] = lane.Series
		case LabelUserDefined:
			if lane.Label != nil {
				out[i] = *lane.Label
			}
		}
	}
	return out
}

// Render draws the image. It fails before drawing anything if the options
// are inconsistent with the renderer.
func (r *Renderer) Render(opts Options) (*Result, error) {
	labels := opts.Labels
	if labels == nil {
		labels = r.Labels(opts.LabelMode)
	}
	if len(labels) > len(r.lanes) {
		return nil, fmt.Errorf("%d labels for %d lanes: %w", len(labels), len(r.lanes), core.ErrConfiguration)
	}
	if opts.Ceiling != nil && *opts.Ceiling < 0 {
		return nil, fmt.Errorf("negative signal ceiling %v: %w", *opts.Ceiling, core.ErrConfiguration)
	}

	labelFace, err := newFace(r.layout.LabelFontSize)
	if err != nil {
		return nil, err
	}
	if labelFace != nil {
		defer labelFace.Close()
	}
	markerFace, err := newFace(r.layout.MarkerFontSize)
	if err != nil {
		return nil, err
	}
	if markerFace != nil {
		defer markerFace.Close()
	}

	weights := r.table.Weights()
	start, end := SelectRange(weights, opts.Range)
	rows := r.table.Rows[start:end]
	selected := weights[start:end]

	g := r.Geometry(len(rows))
	ceiling := r.ceiling(rows, opts.Ceiling)

	img := image.NewGray(image.Rect(0, 0, g.Width, g.Height))
	fill(img, img.Bounds(), white)

	if labelFace != nil && len(labels) > 0 {
		r.drawLabels(img, g, labelFace, labels, opts.RotateLabels)
	}
	r.drawBands(img, g, rows, ceiling)
	if opts.Frame {
		drawFrame(img, g.Field)
	}
	if opts.MarkerTicks || (opts.MarkerLabels && markerFace != nil) {
		drawMarkers(img, g, selected, opts, markerFace)
	}

	return &Result{
		Image:    img,
		Geometry: g,
		Ceiling:  ceiling,
		Weights:  append([]float64(nil), selected...),
	}, nil
}

func (r *Renderer) ceiling(rows []core.Row, explicit *float64) float64 {
	if explicit != nil {
		return *explicit
	}
	var m float64
	for _, row := range rows {
		for _, c := range r.cols {
			if v := row.Values[c]; v > m {
				m = v
			}
		}
	}
	return m
}

func (r *Renderer) drawBands(img *image.Gray, g Geometry, rows []core.Row, ceiling float64) {
	for i, c := range r.cols {
		x0 := laneStartX(r.layout, g, i)
		x1 := x0 + r.layout.BandWidth
		for j, row := range rows {
			hline(img, x0, x1, g.Field.Min.Y+j, GrayLevel(row.Values[c], ceiling))
		}
	}
}

func (r *Renderer) drawLabels(img *image.Gray, g Geometry, face font.Face, labels []string, rotate bool) {
	for i, label := range labels {
		if label == "" {
			continue
		}
		x0 := laneStartX(r.layout, g, i)
		if rotate {
			mask := rotatedText(face, label)
			size := mask.Bounds().Size()
			at := image.Pt(
				x0+floorDiv(r.layout.BandWidth-size.X, 2),
				g.Field.Min.Y-rotatedLabelGap-size.Y,
			)
			pasteMask(img, mask, at)
			continue
		}
		center := float64(x0) + float64(r.layout.BandWidth)/2
		x := center - float64(textWidth(face, label))/2
		drawText(img, face, label, x, float64(g.Field.Min.Y-labelGap))
	}
}

func drawMarkers(img *image.Gray, g Geometry, weights []float64, opts Options, face font.Face) {
	if len(weights) == 0 {
		return
	}
	highest, lowest := weights[0], weights[len(weights)-1]
	tickEnd := g.Field.Min.X
	tickStart := tickEnd - tickLength

	for _, m := range opts.Markers {
		w := m.Weight.Float()
		if w < lowest || w > highest {
			continue
		}
		y := g.Field.Min.Y + Nearest(weights, w)

		if opts.MarkerTicks {
			fill(img, image.Rect(tickStart, y-1, tickEnd+1, y+2), black)
		}
		if opts.MarkerLabels && face != nil {
			text := m.Text()
			met := face.Metrics()
			ascent, descent := met.Ascent.Ceil(), met.Descent.Ceil()
			top := int(float64(y) - float64(ascent+descent)/2)
			x := tickStart - 1 - textWidth(face, text)
			drawText(img, face, text, float64(x), float64(top+ascent))
		}
	}
}

// drawFrame outlines rect inward, including its Max edge.
func drawFrame(img *image.Gray, rect image.Rectangle) {
	x0, y0, x1, y1 := rect.Min.X, rect.Min.Y, rect.Max.X, rect.Max.Y
	fill(img, image.Rect(x0, y0, x1+1, y0+frameWidth), black)
	fill(img, image.Rect(x0, y1-frameWidth+1, x1+1, y1+1), black)
	fill(img, image.Rect(x0, y0, x0+frameWidth, y1+1), black)
	fill(img, image.Rect(x1-frameWidth+1, y0, x1+1, y1+1), black)
}

// hline sets pixels x0..x1 inclusive on row y.
func hline(img *image.Gray, x0, x1, y int, v uint8) {
	fill(img, image.Rect(x0, y, x1+1, y+1), v)
}

func fill(img *image.Gray, r image.Rectangle, v uint8) {
	r = r.Intersect(img.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := img.Pix[img.PixOffset(r.Min.X, y):img.PixOffset(r.Max.X, y)]
		for i := range row {
			row[i] = v
		}
	}
}

// EncodePNG encodes img losslessly. The output is byte-identical for
// identical images.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}
