package indicators

import (
	"fmt"
	"math"

	"stock-analyzer/internal/models"
)

// RSI computes the relative strength index from simple rolling means of
// gains and losses over period deltas:
//
//	RSI = 100 - 100/(1 + mean(gain)/mean(loss))
//
// This is not the Wilder-smoothed form. The value is undefined until the
// window is full and wherever the loss mean is zero.
func RSI(values []float64, period int) (models.Series, error) {
	if period <= 0 {
		return nil, fmt.Errorf("rsi period %d: %w", period, ErrInvalidPeriod)
	}

	deltas := diff(values)
	gains := make([]float64, len(values))
	losses := make([]float64, len(values))
	for i, d := range deltas {
		if math.IsNaN(d) {
			gains[i], losses[i] = d, d
			continue
		}
		gains[i] = math.Max(d, 0)
		losses[i] = math.Max(-d, 0)
	}

	gainMean := rollingMean(gains, period)
	lossMean := rollingMean(losses, period)

	out := models.NewUndefinedSeries(len(values))
	for i := range out {
		g, okG := gainMean.At(i)
		l, okL := lossMean.At(i)
		if !okG || !okL || l == 0 {
			continue
		}
		out[i] = 100 - 100/(1+g/l)
	}
	return out, nil
}

// RSIIndicator is the engine job for RSI.
type RSIIndicator struct {
	period int
}

// NewRSI creates a new RSI indicator.
func NewRSI(period int) *RSIIndicator {
	return &RSIIndicator{period: period}
}

func (r *RSIIndicator) Name() string {
	return fmt.Sprintf("RSI_%d", r.period)
}

func (r *RSIIndicator) Period() int {
	return r.period + 1
}

func (r *RSIIndicator) Calculate(closes []float64) (map[string]models.Series, error) {
	rsi, err := RSI(closes, r.period)
	if err != nil {
		return nil, err
	}
	return map[string]models.Series{keyRSI: rsi}, nil
}
