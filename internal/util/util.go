// Package util provides small helpers shared by the CLI and the HTTP API.
package util

import (
	"strings"
)

// DefaultStem names outputs when the input file name has no usable stem.
const DefaultStem = "data"

// FileStem returns the base name of name without its last extension. Both
// slash and backslash count as separators, since browsers on Windows may
// upload a full client path.
func FileStem(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	return name
}

// SafeStem is FileStem with every byte outside [A-Za-z0-9._-] replaced by
// an underscore, for use in output file names.
func SafeStem(name string) string {
	stem := FileStem(name)
	var b strings.Builder
	b.Grow(len(stem))
	for i := 0; i < len(stem); i++ {
		c := stem[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '.', c == '-', c == '_':
			b.WriteByte(c)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return DefaultStem
	}
	return out
}

// Ext returns the lower-cased extension of name including the dot.
func Ext(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 || strings.ContainsAny(name[i:], `/\`) {
		return ""
	}
	return strings.ToLower(name[i:])
}
