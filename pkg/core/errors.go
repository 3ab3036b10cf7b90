package core

import "errors"

// Error taxonomy shared by the engines and their callers. Call sites wrap these
// with context, so compare with errors.Is.
var (
	// ErrConfiguration is returned for invalid layout parameters (negative sizes, too many labels).
	ErrConfiguration = errors.New("invalid configuration")

	// ErrReference is returned when a lane, series or reference name does not resolve.
	ErrReference = errors.New("unresolved reference")

	// ErrParse is returned when a marker list, range specifier or input file violates its grammar.
	ErrParse = errors.New("parse error")

	// ErrEmptyTable is returned when an operation needs at least one row.
	ErrEmptyTable = errors.New("empty signal table")
)
