// Package export turns a bundle into its named files. Both storage backends
// write the same members.
package export

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"

	"github.com/tpncalc/virtualblot/internal/report"
	"github.com/tpncalc/virtualblot/pkg/core"
)

// Member is one named file of a bundle.
type Member struct {
	Name string
	Data []byte
}

// ImageName is the PNG member name for stem.
func ImageName(stem string) string { return fmt.Sprintf("image_%s.png", stem) }

// LogName is the render log member name for stem.
func LogName(stem string) string { return fmt.Sprintf("log_%s.txt", stem) }

// TableName is the normalized table member name for stem.
func TableName(stem string) string { return fmt.Sprintf("normalized_%s.csv", stem) }

// SummaryName is the normalization summary member name for stem.
func SummaryName(stem string, compressed bool) string {
	if compressed {
		return fmt.Sprintf("summary_%s.json.gz", stem)
	}
	return fmt.Sprintf("summary_%s.json", stem)
}

// ArchiveName is the zip file name for stem.
func ArchiveName(stem string) string { return fmt.Sprintf("%s.zip", stem) }

// SummaryJSON is the summary file layout.
type SummaryJSON struct {
	DataFile string               `json:"dataFile"`
	Created  string               `json:"created"`
	Records  []core.SummaryRecord `json:"records"`
}

// Members lists the files of b in a fixed order: image, log, table, summary.
// The image is omitted when empty; the log is always present.
func Members(b *core.Bundle, compressSummary bool) ([]Member, error) {
	if b.Stem == "" {
		return nil, fmt.Errorf("bundle has no file stem")
	}

	var members []Member
	if len(b.Image) > 0 {
		members = append(members, Member{Name: ImageName(b.Stem), Data: b.Image})
	}
	members = append(members, Member{Name: LogName(b.Stem), Data: []byte(b.Log)})

	if b.Normalized != nil {
		var buf bytes.Buffer
		if err := report.WriteTable(&buf, *b.Normalized, ','); err != nil {
			return nil, fmt.Errorf("failed to encode normalized table: %w", err)
		}
		members = append(members, Member{Name: TableName(b.Stem), Data: buf.Bytes()})
	}

	if len(b.Summary) > 0 {
		doc := SummaryJSON{
			DataFile: b.Stem,
			Created:  b.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			Records:  b.Summary,
		}
		var (
			data []byte
			err  error
		)
		if compressSummary {
			data, err = gzipJSON(doc)
		} else {
			data, err = plainJSON(doc)
		}
		if err != nil {
			return nil, err
		}
		members = append(members, Member{Name: SummaryName(b.Stem, compressSummary), Data: data})
	}

	return members, nil
}

func plainJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	if err := encoder.Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode summary: %w", err)
	}
	return buf.Bytes(), nil
}

func gzipJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	gzWriter := gzip.NewWriter(&buf)
	encoder := json.NewEncoder(gzWriter)
	if err := encoder.Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode summary: %w", err)
	}
	if err := gzWriter.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress summary: %w", err)
	}
	return buf.Bytes(), nil
}
