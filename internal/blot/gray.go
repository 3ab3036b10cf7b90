package blot

import "math"

const (
	white uint8 = 255
	black uint8 = 0
)

// GrayLevel maps a signal to a gray value: 0 signal is white, the ceiling and
// anything above it is black. A ceiling of zero or less renders white.
func GrayLevel(v, ceiling float64) uint8 {
	if ceiling <= 0 || math.IsNaN(v) || math.IsNaN(ceiling) {
		return white
	}
	ratio := math.Min(v, ceiling) / ceiling
	if math.IsNaN(ratio) {
		// Inf/Inf: the signal sits at the ceiling.
		return black
	}
	g := math.Round(255 * (1 - ratio))
	switch {
	case g < 0:
		return black
	case g > 255:
		return white
	}
	return uint8(g)
}
