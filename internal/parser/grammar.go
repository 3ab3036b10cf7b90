// Package parser turns the free-text inputs of the outer surfaces (marker
// lists, index specifiers, lane lists) into typed values.
package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tpncalc/virtualblot/pkg/core"
)

// labeledNumber matches "230" or "116.5[B-gal]". The label cannot contain brackets.
var labeledNumber = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)(?:\[([^\[\]]*)\])?\s*$`)

// ParseLabeledNumbers parses a comma-separated marker list such as
// "230, 116[B-gal], 66.5". Blank input returns no markers and no error; any
// malformed token fails the whole list.
func ParseLabeledNumbers(s string) ([]core.Marker, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	markers := make([]core.Marker, 0, len(parts))
	for _, part := range parts {
		m := labeledNumber.FindStringSubmatch(part)
		if m == nil {
			return nil, fmt.Errorf("invalid element %q: %w", part, core.ErrParse)
		}
		n, err := core.ParseNumber(m[1])
		if err != nil {
			return nil, fmt.Errorf("error parsing weight %q: %w", m[1], core.ErrParse)
		}
		marker := core.Marker{Weight: n}
		if m[2] != "" {
			label := m[2]
			marker.Label = &label
		}
		markers = append(markers, marker)
	}
	return markers, nil
}

// ExpandRange expands an index specifier such as "1-3,5" into [1 2 3 5].
// Empty parts between commas are skipped. Blank input returns nil and no
// error, so callers can tell "nothing entered" from a malformed specifier.
func ExpandRange(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		lo, hi, isRange := strings.Cut(part, "-")
		if !isRange {
			v, err := parseIndex(part)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
			continue
		}

		if strings.Contains(hi, "-") {
			return nil, fmt.Errorf("invalid range %q: %w", part, core.ErrParse)
		}
		start, err := parseIndex(lo)
		if err != nil {
			return nil, err
		}
		end, err := parseIndex(hi)
		if err != nil {
			return nil, err
		}
		if start > end {
			return nil, fmt.Errorf("invalid range %q: start is after end: %w", part, core.ErrParse)
		}
		for i := start; i <= end; i++ {
			out = append(out, i)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("specifier %q selects nothing: %w", s, core.ErrParse)
	}
	return out, nil
}

// parseIndex accepts only unsigned decimal digits.
func parseIndex(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.TrimLeft(s, "0123456789") != "" {
		return 0, fmt.Errorf("invalid index %q: %w", s, core.ErrParse)
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid index %q: %w", s, core.ErrParse)
	}
	return v, nil
}

// ParseLanes parses a lane list: comma-separated series names, each optionally
// followed by "=label". Whitespace around names is trimmed; labels are kept verbatim.
func ParseLanes(s string) ([]core.Lane, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	var lanes []core.Lane
	for _, part := range strings.Split(s, ",") {
		name, label, hasLabel := strings.Cut(part, "=")
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("lane %q has no series name: %w", part, core.ErrParse)
		}
		lane := core.Lane{Series: name}
		if hasLabel {
			lane.Label = &label
		}
		lanes = append(lanes, lane)
	}
	return lanes, nil
}
