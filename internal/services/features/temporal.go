package features

import "math"

// DefaultDecayRate yields roughly 5% decay per 30 days.
const DefaultDecayRate = 0.05

// TimeWeight computes the recency weight exp(-k*days/30). It is strictly
// decreasing in days and equals 1.0 at days=0.
func TimeWeight(days, decayRate float64) float64 {
	return math.Exp(-decayRate * days / 30)
}

// Normalize min-max scales x into [0,1], clamping out-of-range values.
// When lo==hi the window is degenerate and every value maps to 0.5.
func Normalize(x, lo, hi float64) float64 {
	if lo == hi {
		return 0.5
	}
	n := (x - lo) / (hi - lo)
	if n < 0 {
		return 0
	}
	if n > 1 {
		return 1
	}
	return n
}
