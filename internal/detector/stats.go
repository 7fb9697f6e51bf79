package detector

import "math"

// mean is the incremental (Welford) running mean of values.
func mean(values []float64) float64 {
	var m float64
	for i, v := range values {
		m += (v - m) / float64(i+1)
	}
	return m
}

// finite maps NaN to 0 and infinities to the largest float so a state can be
// JSON encoded. Comparisons against a trigger keep their outcome.
func finite(x float64) float64 {
	switch {
	case math.IsNaN(x):
		return 0
	case math.IsInf(x, 1):
		return math.MaxFloat64
	case math.IsInf(x, -1):
		return -math.MaxFloat64
	}
	return x
}
