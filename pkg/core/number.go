package core

import (
	"encoding/json"
	"strconv"
	"strings"
)

// NumberKind tells whether a Number was written as an integer or a decimal.
type NumberKind uint8

const (
	Integer NumberKind = iota
	Decimal
)

// Number is a user-entered numeric value that remembers how it was written, so
// "116" is displayed as 116 and "116.0" as 116.0.
type Number struct {
	Kind NumberKind
	Int  int64
	Dec  float64
}

// IntNumber returns an Integer number.
func IntNumber(v int64) Number {
	return Number{Kind: Integer, Int: v}
}

// DecNumber returns a Decimal number.
func DecNumber(v float64) Number {
	return Number{Kind: Decimal, Dec: v}
}

// ParseNumber parses an integer or decimal literal. A literal with a '.' or an
// exponent is Decimal, anything else Integer.
func ParseNumber(s string) (Number, error) {
	if strings.ContainsAny(s, ".eE") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Number{}, err
		}
		return DecNumber(f), nil
	}
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return Number{}, err
	}
	return IntNumber(i), nil
}

// Float returns the value as float64.
func (n Number) Float() float64 {
	if n.Kind == Decimal {
		return n.Dec
	}
	return float64(n.Int)
}

// String formats the number according to its kind. Decimals always keep at
// least one fractional digit.
func (n Number) String() string {
	if n.Kind == Integer {
		return strconv.FormatInt(n.Int, 10)
	}
	s := strconv.FormatFloat(n.Dec, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// MarshalJSON encodes the number as a bare JSON number in its display form.
func (n Number) MarshalJSON() ([]byte, error) {
	return []byte(n.String()), nil
}

// UnmarshalJSON accepts a JSON number and keeps its written kind.
func (n *Number) UnmarshalJSON(b []byte) error {
	var raw json.Number
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := ParseNumber(raw.String())
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}
