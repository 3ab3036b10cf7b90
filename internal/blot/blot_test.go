package blot

import (
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tpncalc/virtualblot/pkg/core"
)

func ptr(v float64) *float64 { return &v }

func defaultLayout() core.Layout {
	return core.Layout{
		OffsetTop: 40, OffsetBottom: 40, OffsetLeft: 40, OffsetRight: 40,
		BandWidth: 20, BandSpacing: 10,
		LabelFontSize: 16, MarkerFontSize: 16,
	}
}

func sampleTable() core.SignalTable {
	return core.SignalTable{
		MWColumn: core.DefaultMWColumn,
		Series:   []string{"A", "B", "C"},
		Rows: []core.Row{
			{MW: 12, Values: []float64{0, 5, 1}},
			{MW: 230, Values: []float64{10, 20, 2}},
			{MW: 66, Values: []float64{40, 15, 3}},
			{MW: 180, Values: []float64{30, 10, 4}},
			{MW: 40, Values: []float64{5, 50, 5}},
			{MW: 116, Values: []float64{100, 0, 6}},
		},
	}
}

func lanes(names ...string) []core.Lane {
	out := make([]core.Lane, len(names))
	for i, n := range names {
		out[i] = core.Lane{Series: n}
	}
	return out
}

func TestComputeGeometry(t *testing.T) {
	g := ComputeGeometry(defaultLayout(), 6, 3)

	assert.Equal(t, 100, FieldWidth(defaultLayout(), 3))
	assert.Equal(t, 180, g.Width)
	assert.Equal(t, 86, g.Height)
	assert.Equal(t, image.Rect(40, 40, 140, 46), g.Field)
}

func TestGrayLevel(t *testing.T) {
	tests := []struct {
		name   string
		v, max float64
		want   uint8
	}{
		{"zero is white", 0, 100, 255},
		{"ceiling is black", 100, 100, 0},
		{"above ceiling clamps", 250, 100, 0},
		{"half rounds up", 50, 100, 128},
		{"negative clamps to white", -5, 100, 255},
		{"zero ceiling", 10, 0, 255},
		{"negative ceiling", 10, -1, 255},
		{"infinite signal at infinite ceiling", math.Inf(1), math.Inf(1), 0},
		{"finite signal under infinite ceiling", 3, math.Inf(1), 255},
		{"infinite signal", math.Inf(1), 100, 0},
		{"negative infinite signal", math.Inf(-1), 100, 255},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GrayLevel(tt.v, tt.max))
		})
	}
}

func TestSelectRange(t *testing.T) {
	weights := []float64{230, 180, 116, 66, 40, 12}

	tests := []struct {
		name       string
		r          core.MWRange
		start, end int
	}{
		{"unset", core.MWRange{}, 0, 6},
		{"closed window", core.MWRange{Min: ptr(40), Max: ptr(180)}, 1, 5},
		{"beyond both edges", core.MWRange{Min: ptr(1), Max: ptr(1000)}, 0, 6},
		{"max only", core.MWRange{Max: ptr(100)}, 2, 6},
		{"min only", core.MWRange{Min: ptr(60)}, 0, 4},
		{"inverted is empty", core.MWRange{Min: ptr(200), Max: ptr(20)}, 5, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := SelectRange(weights, tt.r)
			assert.Equal(t, tt.start, start)
			assert.Equal(t, tt.end, end)
		})
	}
}

func TestNearest_FirstWinsTies(t *testing.T) {
	assert.Equal(t, 0, Nearest([]float64{20, 10}, 15))
	assert.Equal(t, -1, Nearest(nil, 15))
}

func TestRender_Bands(t *testing.T) {
	table := core.SignalTable{
		MWColumn: core.DefaultMWColumn,
		Series:   []string{"A", "B"},
		Rows: []core.Row{
			{MW: 1, Values: []float64{100, 100}},
			{MW: 2, Values: []float64{50, 100}},
			{MW: 3, Values: []float64{0, 100}},
		},
	}
	r, err := New(table, lanes("A", "B"), core.Layout{BandWidth: 2, BandSpacing: 1})
	require.NoError(t, err)

	res, err := r.Render(Options{})
	require.NoError(t, err)

	assert.Equal(t, 100.0, res.Ceiling)
	assert.Equal(t, []float64{3, 2, 1}, res.Weights)
	assert.Equal(t, image.Rect(0, 0, 7, 3), res.Image.Bounds())

	img := res.Image
	assert.Equal(t, uint8(255), img.GrayAt(0, 0).Y, "spacing stays white")
	assert.Equal(t, uint8(255), img.GrayAt(1, 0).Y, "heaviest row of A has no signal")
	assert.Equal(t, uint8(128), img.GrayAt(1, 1).Y)
	assert.Equal(t, uint8(0), img.GrayAt(2, 2).Y)
	assert.Equal(t, uint8(0), img.GrayAt(5, 0).Y)
	assert.Equal(t, uint8(0), img.GrayAt(6, 2).Y, "band run includes its end pixel")
}

func TestRender_ExplicitCeiling(t *testing.T) {
	table := core.SignalTable{
		Series: []string{"A"},
		Rows:   []core.Row{{MW: 1, Values: []float64{100}}},
	}
	r, err := New(table, lanes("A"), core.Layout{BandWidth: 1, BandSpacing: 1})
	require.NoError(t, err)

	res, err := r.Render(Options{Ceiling: ptr(200)})
	require.NoError(t, err)
	assert.Equal(t, 200.0, res.Ceiling)
	assert.Equal(t, uint8(128), res.Image.GrayAt(1, 0).Y)
}

func TestRender_ZeroSignalIsWhite(t *testing.T) {
	table := core.SignalTable{
		Series: []string{"A", "B"},
		Rows: []core.Row{
			{MW: 2, Values: []float64{0, 0}},
			{MW: 1, Values: []float64{0, 0}},
		},
	}
	layout := defaultLayout()
	layout.LabelFontSize, layout.MarkerFontSize = 0, 0
	r, err := New(table, lanes("A", "B"), layout)
	require.NoError(t, err)

	res, err := r.Render(Options{})
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Ceiling)
	for _, p := range res.Image.Pix {
		require.Equal(t, uint8(255), p)
	}
}

func TestRender_Range(t *testing.T) {
	r, err := New(sampleTable(), lanes("A", "C"), defaultLayout())
	require.NoError(t, err)

	res, err := r.Render(Options{Range: core.MWRange{Min: ptr(40), Max: ptr(180)}})
	require.NoError(t, err)

	assert.Equal(t, []float64{180, 116, 66, 40}, res.Weights)
	assert.Equal(t, 84, res.Geometry.Height)
	assert.Equal(t, 100.0, res.Ceiling, "ceiling comes from the drawn rows only")
}

func TestRender_Idempotent(t *testing.T) {
	label := "Ctrl"
	ls := lanes("A", "B", "C")
	ls[1].Label = &label
	opts := Options{
		Frame:        true,
		LabelMode:    LabelUserDefined,
		RotateLabels: true,
		Markers:      []core.Marker{{Weight: core.IntNumber(116)}, {Weight: core.DecNumber(40)}},
		MarkerTicks:  true,
		MarkerLabels: true,
	}

	r, err := New(sampleTable(), ls, defaultLayout())
	require.NoError(t, err)
	first, err := r.Render(opts)
	require.NoError(t, err)
	second, err := r.Render(opts)
	require.NoError(t, err)

	a, err := EncodePNG(first.Image)
	require.NoError(t, err)
	b, err := EncodePNG(second.Image)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	other, err := New(sampleTable(), ls, defaultLayout())
	require.NoError(t, err)
	third, err := other.Render(opts)
	require.NoError(t, err)
	c, err := EncodePNG(third.Image)
	require.NoError(t, err)
	assert.Equal(t, a, c)
}

func TestRender_Frame(t *testing.T) {
	table := core.SignalTable{Series: []string{"A"}}
	for i := 10; i > 0; i-- {
		table.Rows = append(table.Rows, core.Row{MW: float64(i), Values: []float64{1}})
	}
	layout := core.Layout{OffsetTop: 4, OffsetBottom: 4, OffsetLeft: 4, OffsetRight: 4, BandWidth: 10, BandSpacing: 5}
	r, err := New(table, lanes("A"), layout)
	require.NoError(t, err)

	res, err := r.Render(Options{Frame: true, Ceiling: ptr(2)})
	require.NoError(t, err)
	img := res.Image
	require.Equal(t, image.Rect(4, 4, 24, 14), res.Geometry.Field)

	for _, p := range []image.Point{{4, 9}, {5, 9}, {24, 9}, {23, 9}, {12, 4}, {12, 5}, {12, 13}, {12, 14}} {
		assert.Equal(t, uint8(0), img.GrayAt(p.X, p.Y).Y, "frame at %v", p)
	}
	for _, p := range []image.Point{{3, 9}, {25, 9}, {6, 9}, {22, 9}, {12, 3}, {12, 15}} {
		assert.Equal(t, uint8(255), img.GrayAt(p.X, p.Y).Y, "no frame at %v", p)
	}
	assert.Equal(t, GrayLevel(1, 2), img.GrayAt(12, 8).Y)
}

func TestRender_MarkerTicks(t *testing.T) {
	table := core.SignalTable{Series: []string{"A"}}
	for i := 5; i > 0; i-- {
		table.Rows = append(table.Rows, core.Row{MW: float64(i), Values: []float64{0}})
	}
	layout := core.Layout{OffsetTop: 10, OffsetBottom: 10, OffsetLeft: 10, OffsetRight: 10, BandWidth: 4, BandSpacing: 2}
	r, err := New(table, lanes("A"), layout)
	require.NoError(t, err)

	res, err := r.Render(Options{
		Markers:     []core.Marker{{Weight: core.IntNumber(3)}, {Weight: core.IntNumber(9)}},
		MarkerTicks: true,
	})
	require.NoError(t, err)
	img := res.Image

	for _, p := range []image.Point{{5, 12}, {10, 11}, {7, 13}} {
		assert.Equal(t, uint8(0), img.GrayAt(p.X, p.Y).Y, "tick at %v", p)
	}
	for _, p := range []image.Point{{4, 12}, {7, 10}, {7, 14}} {
		assert.Equal(t, uint8(255), img.GrayAt(p.X, p.Y).Y, "no tick at %v", p)
	}

	dark := 0
	for y := 0; y < img.Bounds().Dy(); y++ {
		if img.GrayAt(7, y).Y < 255 {
			dark++
		}
	}
	assert.Equal(t, 3, dark, "the out-of-range marker draws nothing")
}

// inkBox returns the bounding box of non-white pixels, their count and
// their mean row.
func inkBox(img *image.Gray) (image.Rectangle, int, float64) {
	box := image.Rectangle{}
	n, sumY := 0, 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.GrayAt(x, y).Y == 255 {
				continue
			}
			box = box.Union(image.Rect(x, y, x+1, y+1))
			n++
			sumY += y
		}
	}
	if n == 0 {
		return box, 0, 0
	}
	return box, n, float64(sumY) / float64(n)
}

func TestRender_MarkerLabels(t *testing.T) {
	table := core.SignalTable{Series: []string{"A"}}
	for mw := 60; mw > 0; mw-- {
		table.Rows = append(table.Rows, core.Row{MW: float64(mw), Values: []float64{0}})
	}
	layout := core.Layout{OffsetTop: 10, OffsetBottom: 10, OffsetLeft: 80, OffsetRight: 10, BandWidth: 4, BandSpacing: 2, MarkerFontSize: 12}
	r, err := New(table, lanes("A"), layout)
	require.NoError(t, err)

	// 30 kDa is row 30, so the label is centred on y = 40; ticks start at x = 75.
	const rowY, tickStart = 40, 75
	render := func(t *testing.T, opts Options) *image.Gray {
		t.Helper()
		opts.MarkerLabels = true
		res, err := r.Render(opts)
		require.NoError(t, err)
		return res.Image
	}

	numeric := render(t, Options{Markers: []core.Marker{{Weight: core.DecNumber(30.2)}}})
	box, n, meanY := inkBox(numeric)
	require.NotZero(t, n)
	assert.Less(t, box.Max.X, tickStart, "label ends 1px left of the tick start")
	assert.GreaterOrEqual(t, box.Max.X, tickStart-3, "label is right-aligned against the gap")
	assert.Greater(t, box.Min.Y, rowY-layout.MarkerFontSize)
	assert.Less(t, box.Max.Y, rowY+layout.MarkerFontSize)
	assert.InDelta(t, rowY, meanY, 3, "label is centred on the nearest row")

	custom := "Marker Lane"
	labeled := render(t, Options{Markers: []core.Marker{{Weight: core.DecNumber(30.2), Label: &custom}}})
	cbox, cn, _ := inkBox(labeled)
	require.NotZero(t, cn)
	assert.Less(t, cbox.Max.X, tickStart)
	assert.Less(t, cbox.Min.X, box.Min.X, "the custom label replaces the shorter weight text")

	t.Run("outside the data", func(t *testing.T) {
		img := render(t, Options{Markers: []core.Marker{{Weight: core.IntNumber(90)}}})
		_, n, _ := inkBox(img)
		assert.Zero(t, n)
	})

	t.Run("outside the selected range", func(t *testing.T) {
		img := render(t, Options{
			Range:   core.NewMWRange(10, 40),
			Markers: []core.Marker{{Weight: core.IntNumber(50)}},
		})
		_, n, _ := inkBox(img)
		assert.Zero(t, n)
	})
}

func darkAbove(img *image.Gray, y int) int {
	n := 0
	for yy := 0; yy < y; yy++ {
		for x := 0; x < img.Bounds().Dx(); x++ {
			if img.GrayAt(x, yy).Y < 255 {
				n++
			}
		}
	}
	return n
}

func TestRender_Labels(t *testing.T) {
	r, err := New(sampleTable(), lanes("A", "B"), defaultLayout())
	require.NoError(t, err)

	for _, rotate := range []bool{false, true} {
		res, err := r.Render(Options{LabelMode: LabelSampleName, RotateLabels: rotate})
		require.NoError(t, err)
		assert.Positive(t, darkAbove(res.Image, res.Geometry.Field.Min.Y), "rotate=%v", rotate)
	}

	res, err := r.Render(Options{})
	require.NoError(t, err)
	assert.Zero(t, darkAbove(res.Image, res.Geometry.Field.Min.Y))

	layout := defaultLayout()
	layout.LabelFontSize = 0
	silent, err := New(sampleTable(), lanes("A", "B"), layout)
	require.NoError(t, err)
	res, err = silent.Render(Options{LabelMode: LabelSampleName})
	require.NoError(t, err)
	assert.Zero(t, darkAbove(res.Image, res.Geometry.Field.Min.Y), "font size 0 suppresses labels")
}

func TestRenderer_Labels(t *testing.T) {
	label := "Ctrl"
	ls := lanes("A", "B")
	ls[0].Label = &label
	r, err := New(sampleTable(), ls, defaultLayout())
	require.NoError(t, err)

	assert.Nil(t, r.Labels(LabelNone))
	assert.Equal(t, []string{"1", "2"}, r.Labels(LabelLaneNumber))
	assert.Equal(t, []string{"A", "B"}, r.Labels(LabelSampleName))
	assert.Equal(t, []string{"Ctrl", ""}, r.Labels(LabelUserDefined))
}

func TestRenderer_GeometryMemoized(t *testing.T) {
	r, err := New(sampleTable(), lanes("A"), defaultLayout())
	require.NoError(t, err)

	g := r.Geometry(6)
	cached := r.geom
	assert.Equal(t, g, r.Geometry(6))
	assert.Same(t, cached, r.geom)

	assert.Equal(t, 84, r.Geometry(4).Height)
	assert.NotSame(t, cached, r.geom)

	r.Invalidate()
	assert.Nil(t, r.geom)
	assert.Equal(t, g, r.Geometry(6))
}

func TestNew_Errors(t *testing.T) {
	bad := defaultLayout()
	bad.BandWidth = -1
	_, err := New(sampleTable(), lanes("A"), bad)
	assert.ErrorIs(t, err, core.ErrConfiguration)

	_, err = New(sampleTable(), lanes("A", "Z"), defaultLayout())
	assert.ErrorIs(t, err, core.ErrReference)

	_, err = New(core.SignalTable{Series: []string{"A"}}, lanes("A"), defaultLayout())
	assert.ErrorIs(t, err, core.ErrEmptyTable)
}

func TestRender_Errors(t *testing.T) {
	r, err := New(sampleTable(), lanes("A"), defaultLayout())
	require.NoError(t, err)

	_, err = r.Render(Options{Labels: []string{"x", "y"}})
	assert.ErrorIs(t, err, core.ErrConfiguration)

	_, err = r.Render(Options{Ceiling: ptr(-1)})
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

func TestParseLabelMode(t *testing.T) {
	for _, m := range []LabelMode{LabelNone, LabelLaneNumber, LabelSampleName, LabelUserDefined} {
		got, err := ParseLabelMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := ParseLabelMode("upside_down")
	assert.ErrorIs(t, err, core.ErrConfiguration)
}
