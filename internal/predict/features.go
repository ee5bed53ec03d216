package predict

import (
	"fmt"
	"math"

	"stock-analyzer/internal/analysis/indicators"
	"stock-analyzer/internal/analysis/risk"
	apperrors "stock-analyzer/internal/errors"
	"stock-analyzer/internal/models"
)

// FeatureNames lists the engineered columns in matrix order.
var FeatureNames = []string{
	"ma_cross",
	"rsi_overbought",
	"volatility",
	"momentum",
	"volume_trend",
	"trend",
	"price_volume_ratio",
	"macd_ratio",
}

const (
	volatilityWindow = 20
	momentumLag      = 5
	trendWindow      = 5
	rsiOverbought    = 70
)

// BuildFeatures derives one feature row per bar from the bars and their
// indicators. Undefined entries (including infinities from zero volume) are
// forward-filled per column and any leading gap is set to zero.
func BuildFeatures(bars []models.PriceBar, set models.IndicatorSet) ([][]float64, error) {
	n := len(bars)
	if set.Len() != n {
		return nil, apperrors.NewModelError("features", "build",
			fmt.Errorf("indicator length %d does not match %d bars", set.Len(), n))
	}

	closes := models.Closes(bars)
	volumes := models.Volumes(bars)

	ma20, err := movingAverage(set, closes, 20)
	if err != nil {
		return nil, err
	}
	ma50, err := movingAverage(set, closes, 50)
	if err != nil {
		return nil, err
	}

	returns := pctChange(closes, 1)
	cols := [][]float64{
		flag(n, func(i int) bool { return greater(ma20, ma50, i) }),
		flag(n, func(i int) bool { v, ok := set.RSI.At(i); return ok && v > rsiOverbought }),
		rollingStd(returns, volatilityWindow),
		pctChange(closes, momentumLag),
		pctChange(volumes, momentumLag),
		rollingMeanOf(diff(closes), trendWindow),
		ratio(closes, volumes),
		ratio(set.MACD, closes),
	}

	X := make([][]float64, n)
	for i := range X {
		X[i] = make([]float64, len(cols))
	}
	for f, col := range cols {
		last := 0.0
		for i := 0; i < n; i++ {
			v := col[i]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				v = last
			}
			X[i][f] = v
			last = v
		}
	}
	return X, nil
}

func movingAverage(set models.IndicatorSet, closes []float64, window int) (models.Series, error) {
	if ma := set.MovingAverage(window); ma != nil {
		return ma, nil
	}
	return indicators.MovingAverage(closes, window)
}

func greater(a, b models.Series, i int) bool {
	x, ok1 := a.At(i)
	y, ok2 := b.At(i)
	return ok1 && ok2 && x > y
}

func flag(n int, fn func(int) bool) []float64 {
	out := make([]float64, n)
	for i := range out {
		if fn(i) {
			out[i] = 1
		}
	}
	return out
}

// pctChange returns values[i]/values[i-lag] - 1; the first lag entries are NaN.
func pctChange(values []float64, lag int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		if i < lag {
			out[i] = math.NaN()
			continue
		}
		out[i] = values[i]/values[i-lag] - 1
	}
	return out
}

func diff(values []float64) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		if i == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = values[i] - values[i-1]
	}
	return out
}

func defined(window []float64) bool {
	for _, v := range window {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func rollingMeanOf(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
		if i+1 < window || !defined(values[i+1-window:i+1]) {
			continue
		}
		var s float64
		for _, v := range values[i+1-window : i+1] {
			s += v
		}
		out[i] = s / float64(window)
	}
	return out
}

func rollingStd(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
		if i+1 < window || !defined(values[i+1-window:i+1]) {
			continue
		}
		out[i] = risk.StdDev(values[i+1-window : i+1])
	}
	return out
}

func ratio(num, den []float64) []float64 {
	out := make([]float64, len(num))
	for i := range out {
		out[i] = num[i] / den[i]
	}
	return out
}
