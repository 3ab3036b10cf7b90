// Package profile plots every series of a signal table as a line chart, the
// preview shown next to the uploaded data.
package profile

import (
	"bytes"
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
	chart "github.com/wcharczuk/go-chart/v2"

	"github.com/tpncalc/virtualblot/pkg/core"
)

// TickEvery is the row interval between MW tick labels on the x axis.
const TickEvery = 10

// Options sizes the chart. Zero values fall back to go-chart's defaults.
type Options struct {
	Title  string
	Width  int
	Height int
}

// XValues spaces n points evenly over [0, 1].
func XValues(n int) []float64 {
	xs := make([]float64, n)
	if n == 1 {
		return xs
	}
	for i := range xs {
		xs[i] = float64(i) / float64(n-1)
	}
	return xs
}

// Ticks labels every TickEvery-th row with its molecular weight.
func Ticks(xs, weights []float64) []chart.Tick {
	ticks := make([]chart.Tick, 0, len(xs)/TickEvery+1)
	for i := 0; i < len(xs); i += TickEvery {
		ticks = append(ticks, chart.Tick{Value: xs[i], Label: humanize.Ftoa(weights[i])})
	}
	return ticks
}

// Chart builds the chart for t in row order.
func Chart(t core.SignalTable, opts Options) (*chart.Chart, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if len(t.Rows) == 0 {
		return nil, core.ErrEmptyTable
	}
	if len(t.Series) == 0 {
		return nil, fmt.Errorf("table has no series to plot: %w", core.ErrConfiguration)
	}

	xs := XValues(len(t.Rows))
	lo, hi := math.Inf(1), math.Inf(-1)
	series := make([]chart.Series, 0, len(t.Series))
	for _, name := range t.Series {
		ys, err := t.Column(name)
		if err != nil {
			return nil, err
		}
		for _, y := range ys {
			lo, hi = math.Min(lo, y), math.Max(hi, y)
		}
		series = append(series, chart.ContinuousSeries{Name: name, XValues: xs, YValues: ys})
	}
	if lo == hi {
		lo, hi = lo-1, hi+1
	}

	mwName := t.MWColumn
	if mwName == "" {
		mwName = core.DefaultMWColumn
	}
	ch := &chart.Chart{
		Title:      opts.Title,
		Width:      opts.Width,
		Height:     opts.Height,
		Background: chart.Style{Padding: chart.Box{Top: 20, Left: 16, Right: 12, Bottom: 16}},
		XAxis: chart.XAxis{
			Name:  mwName,
			Range: &chart.ContinuousRange{Min: 0, Max: 1},
			Ticks: Ticks(xs, t.Weights()),
		},
		YAxis: chart.YAxis{
			Name:  "Signal",
			Range: &chart.ContinuousRange{Min: lo, Max: hi},
		},
		Series: series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(ch)}
	return ch, nil
}

// RenderPNG renders the profile chart of t as PNG.
func RenderPNG(t core.SignalTable, opts Options) ([]byte, error) {
	ch, err := Chart(t, opts)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render profile chart: %w", err)
	}
	return buf.Bytes(), nil
}
