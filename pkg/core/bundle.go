// pkg/core/bundle.go
package core

import "time"

// Bundle is the downloadable output of one render: the image, its log and,
// when normalization ran, the normalized table and summary.
type Bundle struct {
	// Stem is the input file name without directory or extension.
	Stem      string
	CreatedAt time.Time

	Image []byte
	Log   string

	Normalized *SignalTable
	Summary    []SummaryRecord
}
