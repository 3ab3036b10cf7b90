// Package ingest reads signal tables from uploaded CSV, TSV and XLSX files.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/tpncalc/virtualblot/internal/util"
	"github.com/tpncalc/virtualblot/pkg/core"
)

// Result is a parsed table plus the series that had blank cells coerced to 0.
type Result struct {
	Table       core.SignalTable
	BlankSeries []string
}

// BlankNote is the user-facing notice for coerced blanks, or "" if there were none.
func (r *Result) BlankNote() string {
	if len(r.BlankSeries) == 0 {
		return ""
	}
	return fmt.Sprintf("Note: The series %s contains blank cells.", strings.Join(r.BlankSeries, ", "))
}

// ReadFile opens path and reads it according to its extension.
func ReadFile(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return Read(filepath.Base(path), f)
}

// Read parses r as the format implied by name's extension: .csv, .tsv/.txt
// (tab separated) or .xlsx (first sheet).
func Read(name string, r io.Reader) (*Result, error) {
	switch ext := util.Ext(name); ext {
	case ".csv":
		return ReadDelimited(r, ',')
	case ".tsv", ".txt":
		return ReadDelimited(r, '\t')
	case ".xlsx":
		return ReadXLSX(r)
	default:
		return nil, fmt.Errorf("unsupported file type %q: %w", ext, core.ErrParse)
	}
}

// ReadDelimited parses delimiter-separated text.
func ReadDelimited(r io.Reader, comma rune) (*Result, error) {
	reader := csv.NewReader(r)
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read delimited data: %v: %w", err, core.ErrParse)
	}
	return FromRecords(records)
}

// ReadXLSX parses the first worksheet of a workbook.
func ReadXLSX(r io.Reader) (*Result, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %v: %w", err, core.ErrParse)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("workbook has no sheets: %w", core.ErrParse)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %v: %w", sheet, err, core.ErrParse)
	}
	return FromRecords(rows)
}

// FromRecords builds a table from a header row and data rows. The first header
// must be the molecular-weight column. Short rows are padded with blanks;
// blank signal cells become 0 and their series are reported in column order.
func FromRecords(records [][]string) (*Result, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no header row: %w", core.ErrParse)
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))
	}
	if len(header) == 0 || header[0] != core.DefaultMWColumn {
		return nil, fmt.Errorf("first column must be %q: %w", core.DefaultMWColumn, core.ErrParse)
	}

	series := header[1:]
	seen := make(map[string]struct{}, len(series))
	for i, name := range series {
		if name == "" {
			return nil, fmt.Errorf("column %d has no header: %w", i+2, core.ErrParse)
		}
		if _, dup := seen[name]; dup || name == core.DefaultMWColumn {
			return nil, fmt.Errorf("duplicate column %q: %w", name, core.ErrParse)
		}
		seen[name] = struct{}{}
	}

	table := core.SignalTable{MWColumn: core.DefaultMWColumn, Series: series}
	blank := make([]bool, len(series))
	for n, rec := range records[1:] {
		line := n + 2
		if emptyRecord(rec) {
			continue
		}
		if len(rec) > len(header) {
			return nil, fmt.Errorf("line %d has %d cells, header has %d: %w", line, len(rec), len(header), core.ErrParse)
		}

		mw, err := parseCell(rec[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: molecular weight %q: %w", line, rec[0], core.ErrParse)
		}
		row := core.Row{MW: mw, Values: make([]float64, len(series))}
		for i := range series {
			cell := ""
			if i+1 < len(rec) {
				cell = rec[i+1]
			}
			if strings.TrimSpace(cell) == "" {
				blank[i] = true
				continue
			}
			v, err := parseCell(cell)
			if err != nil {
				return nil, fmt.Errorf("line %d: %s value %q: %w", line, series[i], cell, core.ErrParse)
			}
			row.Values[i] = v
		}
		table.Rows = append(table.Rows, row)
	}

	res := &Result{Table: table}
	for i, b := range blank {
		if b {
			res.BlankSeries = append(res.BlankSeries, series[i])
		}
	}
	return res, nil
}

// parseCell accepts finite numbers only.
func parseCell(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, fmt.Errorf("%q is not a finite number", s)
	}
	return v, nil
}

func emptyRecord(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
