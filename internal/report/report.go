// Package report formats the human-readable artifacts that accompany a
// rendered blot: the render log, the normalization summary and table exports.
package report

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/tpncalc/virtualblot/pkg/core"
)

// TimeLayout is the DateTime format of the render log.
const TimeLayout = "2006-01-02 15:04:05.000000"

// RenderLog describes one render for the downloadable log.
type RenderLog struct {
	Time       time.Time
	DataFile   string
	Normalized bool
	Lanes      []core.Lane
	// SignalLimit is nil when the ceiling was automatic.
	SignalLimit *float64
	Range       core.MWRange
	Layout      core.Layout
	// Defaults is the layout the settings are compared to. Only groups that
	// differ from it are logged.
	Defaults core.Layout
}

// WriteTo writes the log text.
func (l RenderLog) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder

	mode := "As Is"
	if l.Normalized {
		mode = "Normalized"
	}
	fmt.Fprintf(&b, "DateTime: %s\n", l.Time.Format(TimeLayout))
	fmt.Fprintf(&b, "DataFile: %s\n", l.DataFile)
	fmt.Fprintf(&b, "Drawing Mode: %s\n", mode)
	b.WriteString("\nLane Order\n")
	for i, lane := range l.Lanes {
		label := ""
		if lane.Label != nil {
			label = *lane.Label
		}
		fmt.Fprintf(&b, "%d\t%s\t%s\n", i+1, lane.Series, label)
	}
	b.WriteString("\n")

	limit := "Not specified"
	if l.SignalLimit != nil {
		limit = humanize.Ftoa(*l.SignalLimit)
	}
	fmt.Fprintf(&b, "Signal Limit:\t%s\n", limit)

	if l.Range.IsSet() {
		fmt.Fprintf(&b, "Draw Range: \t Min: %s kDa, Max: %s kDa\n", bound(l.Range.Min), bound(l.Range.Max))
	}

	lay, def := l.Layout, l.Defaults
	if lay.BandWidth != def.BandWidth || lay.BandSpacing != def.BandSpacing {
		fmt.Fprintf(&b, "Band Width:\t %d px\n", lay.BandWidth)
		fmt.Fprintf(&b, "Band Spacing:\t %d px\n", lay.BandSpacing)
	}
	if lay.OffsetTop != def.OffsetTop || lay.OffsetBottom != def.OffsetBottom ||
		lay.OffsetLeft != def.OffsetLeft || lay.OffsetRight != def.OffsetRight {
		fmt.Fprintf(&b, "Margin Top:\t %d px\n", lay.OffsetTop)
		fmt.Fprintf(&b, "Margin Bottom:\t%d px\n", lay.OffsetBottom)
		fmt.Fprintf(&b, "Margin Left:\t %d px\n", lay.OffsetLeft)
		fmt.Fprintf(&b, "Margin Right:\t %d px\n", lay.OffsetRight)
	}
	if lay.LabelFontSize != def.LabelFontSize || lay.MarkerFontSize != def.MarkerFontSize {
		fmt.Fprintf(&b, "Lane Label Size:\t %d pt\n", lay.LabelFontSize)
		fmt.Fprintf(&b, "Molecular Weights Label Size:\t %d pt\n", lay.MarkerFontSize)
	}

	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

// String returns the log text.
func (l RenderLog) String() string {
	var b strings.Builder
	_, _ = l.WriteTo(&b)
	return b.String()
}

func bound(v *float64) string {
	if v == nil {
		return "-"
	}
	return humanize.Ftoa(*v)
}

// WriteSummary writes normalization summary records as a tab-separated table
// with a header row.
func WriteSummary(w io.Writer, records []core.SummaryRecord) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "Sample Name\tRaw Total Signal\tFactor\tNote")
	for _, r := range records {
		fmt.Fprintf(bw, "%s\t%s\t%s\t%s\n", r.SampleName, humanize.Ftoa(r.RawTotalSignal), humanize.Ftoa(r.Factor), r.Note)
	}
	return bw.Flush()
}

// WriteTable writes t with comma as the separator, MW column first. Values
// keep full precision so the export reads back unchanged.
func WriteTable(w io.Writer, t core.SignalTable, comma rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = comma

	mwCol := t.MWColumn
	if mwCol == "" {
		mwCol = core.DefaultMWColumn
	}
	if err := cw.Write(append([]string{mwCol}, t.Series...)); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	rec := make([]string, len(t.Series)+1)
	for _, row := range t.Rows {
		rec[0] = strconv.FormatFloat(row.MW, 'f', -1, 64)
		for i, v := range row.Values {
			rec[i+1] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
