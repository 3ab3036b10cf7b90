package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tpncalc/virtualblot/internal/ingest"
	"github.com/tpncalc/virtualblot/pkg/core"
)

func defaults() core.Layout {
	return core.Layout{BandWidth: 20, BandSpacing: 10, LabelFontSize: 16, MarkerFontSize: 16}.UniformOffset(40)
}

func TestRenderLog_Defaults(t *testing.T) {
	label := "Ctrl"
	l := RenderLog{
		Time:     time.Date(2024, 5, 1, 9, 30, 0, 123456000, time.UTC),
		DataFile: "blot.csv",
		Lanes:    []core.Lane{{Series: "A", Label: &label}, {Series: "B"}},
		Layout:   defaults(),
		Defaults: defaults(),
	}

	want := "DateTime: 2024-05-01 09:30:00.123456\n" +
		"DataFile: blot.csv\n" +
		"Drawing Mode: As Is\n" +
		"\n" +
		"Lane Order\n" +
		"1\tA\tCtrl\n" +
		"2\tB\t\n" +
		"\n" +
		"Signal Limit:\tNot specified\n"
	assert.Equal(t, want, l.String())
}

func TestRenderLog_Details(t *testing.T) {
	limit := 150.0
	lay := defaults()
	lay.BandWidth = 30
	lay.OffsetLeft = 60
	l := RenderLog{
		Normalized:  true,
		SignalLimit: &limit,
		Range:       core.NewMWRange(40, 180.5),
		Layout:      lay,
		Defaults:    defaults(),
	}
	out := l.String()

	assert.Contains(t, out, "Drawing Mode: Normalized\n")
	assert.Contains(t, out, "Signal Limit:\t150\n")
	assert.Contains(t, out, "Draw Range: \t Min: 40 kDa, Max: 180.5 kDa\n")
	assert.Contains(t, out, "Band Width:\t 30 px\nBand Spacing:\t 10 px\n")
	assert.Contains(t, out, "Margin Top:\t 40 px\nMargin Bottom:\t40 px\nMargin Left:\t 60 px\nMargin Right:\t 40 px\n")
	assert.NotContains(t, out, "Label Size")

	var buf bytes.Buffer
	n, err := l.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(len(out)), n)
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	err := WriteSummary(&buf, []core.SummaryRecord{
		{SampleName: "T1", RawTotalSignal: 100, Factor: 1, Note: core.NoteReference},
		{SampleName: "P1", RawTotalSignal: 200, Factor: 0.5},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Sample Name\tRaw Total Signal\tFactor\tNote", lines[0])
	assert.Equal(t, "T1\t100\t1\tReference", lines[1])
	assert.Equal(t, "P1\t200\t0.5\t", lines[2])
}

func TestWriteTable_RoundTrip(t *testing.T) {
	tbl := core.SignalTable{
		MWColumn: core.DefaultMWColumn,
		Series:   []string{"A", "B, with comma"},
		Rows: []core.Row{
			{MW: 230, Values: []float64{0.1234567891, -2}},
			{MW: 12.5, Values: []float64{0, 1e-7}},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, tbl, ','))

	res, err := ingest.Read("out.csv", &buf)
	require.NoError(t, err)
	assert.Equal(t, tbl, res.Table)
}
