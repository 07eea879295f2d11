// Package indicators provides technical analysis indicators over float
// series. Every function returns a series aligned with its input; positions
// still in warmup hold NaN.
package indicators

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrPeriod           = errors.New("period must be positive")
	ErrInsufficientData = errors.New("not enough data")
)

func check(n, period int) error {
	if period <= 0 {
		return fmt.Errorf("%w, got %d", ErrPeriod, period)
	}
	if n < period {
		return fmt.Errorf("%w: need %d, got %d", ErrInsufficientData, period, n)
	}
	return nil
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// Last returns the final value of s and whether it is defined.
func Last(s []float64) (float64, bool) {
	return At(s, len(s)-1)
}

// At returns s[i] and whether it is defined. Negative or out of range
// indexes report false.
func At(s []float64, i int) (float64, bool) {
	if i < 0 || i >= len(s) || math.IsNaN(s[i]) {
		return 0, false
	}
	return s[i], true
}
