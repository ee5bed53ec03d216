package indicators

import (
	"errors"
	"math"

	"stock-analyzer/internal/models"
)

var (
	// ErrInvalidPeriod is returned when a window or span is not positive.
	ErrInvalidPeriod = errors.New("invalid period")
)

// mean calculates the arithmetic mean of a slice of float64.
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var total float64
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}

// padLeft aligns a trailing window output with its n-length input by
// prefixing undefined values.
func padLeft(values []float64, n int) models.Series {
	out := models.NewUndefinedSeries(n)
	offset := n - len(values)
	if offset < 0 {
		values = values[-offset:]
		offset = 0
	}
	copy(out[offset:], values)
	return out
}

// rollingMean returns the trailing mean over period values. A window that
// contains an undefined value is undefined.
func rollingMean(values []float64, period int) models.Series {
	out := models.NewUndefinedSeries(len(values))
	for i := period - 1; i < len(values); i++ {
		window := values[i-period+1 : i+1]
		defined := true
		for _, v := range window {
			if math.IsNaN(v) {
				defined = false
				break
			}
		}
		if defined {
			out[i] = mean(window)
		}
	}
	return out
}

// diff returns values[i] - values[i-1]; the first entry is undefined.
func diff(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	out[0] = math.NaN()
	for i := 1; i < len(values); i++ {
		out[i] = values[i] - values[i-1]
	}
	return out
}
