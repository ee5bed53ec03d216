// Package risk computes volatility, drawdown and risk-adjusted return metrics
// from a daily bar sequence.
package risk

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	apperrors "stock-analyzer/internal/errors"
	"stock-analyzer/internal/models"
)

// Unavailable is returned in place of metrics that could not be computed.
var Unavailable = models.RiskMetrics{}

// DailyReturns returns close[i]/close[i-1] - 1 for i = 1..n-1.
func DailyReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		out[i-1] = closes[i]/closes[i-1] - 1
	}
	return out
}

// StdDev is the sample standard deviation, zero for fewer than two values.
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return stat.StdDev(values, nil)
}

// Volatility annualises the daily return deviation, in percent.
func Volatility(returns []float64, tradingDays int) float64 {
	return StdDev(returns) * math.Sqrt(float64(tradingDays)) * 100
}

// MaxDrawdown is the largest peak-to-trough drop of the cumulative return
// curve as a positive percentage.
func MaxDrawdown(returns []float64) float64 {
	cumulative := 1.0
	peak := math.Inf(-1)
	worst := 0.0
	for _, r := range returns {
		cumulative *= 1 + r
		if cumulative > peak {
			peak = cumulative
		}
		if dd := (cumulative - peak) / peak; dd < worst {
			worst = dd
		}
	}
	return math.Abs(worst) * 100
}

// Sharpe is (mean*days - riskFree) / (stdev*sqrt(days)). It is zero when the
// return deviation is zero.
func Sharpe(returns []float64, riskFreeRate float64, tradingDays int) float64 {
	sd := StdDev(returns)
	if sd == 0 || len(returns) == 0 {
		return 0
	}
	days := float64(tradingDays)
	return (stat.Mean(returns, nil)*days - riskFreeRate) / (sd * math.Sqrt(days))
}

// ZScore returns the two-sided normal quantile for a confidence level in (0,1).
func ZScore(confidence float64) (float64, error) {
	if !(confidence > 0 && confidence < 1) {
		return 0, apperrors.NewValidationError("confidence", confidence, "must be within (0, 1)")
	}
	return distuv.UnitNormal.Quantile((1 + confidence) / 2), nil
}

// Engine computes RiskMetrics with a fixed risk-free rate and year length.
type Engine struct {
	RiskFreeRate float64
	TradingDays  int
	logger       zerolog.Logger
}

// NewEngine creates a risk engine.
func NewEngine(riskFreeRate float64, tradingDays int, logger zerolog.Logger) *Engine {
	if tradingDays <= 0 {
		tradingDays = 252
	}
	return &Engine{RiskFreeRate: riskFreeRate, TradingDays: tradingDays, logger: logger}
}

// Compute derives RiskMetrics over the full bar sequence. Any failure,
// including a panic, yields Unavailable and the error.
func (e *Engine) Compute(bars []models.PriceBar) (metrics models.RiskMetrics, err error) {
	defer func() {
		if p := recover(); p != nil {
			metrics = Unavailable
			err = fmt.Errorf("risk computation panicked: %v", p)
		}
		if err != nil {
			e.logger.Warn().Err(err).Msg("Risk metrics unavailable")
		}
	}()

	if len(bars) < 2 {
		return Unavailable, apperrors.NewDataError("", "risk", fmt.Sprintf("need at least 2 bars, have %d", len(bars)), nil)
	}
	if err := models.CheckBars(bars); err != nil {
		return Unavailable, apperrors.NewDataError("", "risk", "invalid bars", err)
	}

	returns := DailyReturns(models.Closes(bars))
	metrics = models.RiskMetrics{
		Volatility:  Volatility(returns, e.TradingDays),
		MaxDrawdown: MaxDrawdown(returns),
		Sharpe:      Sharpe(returns, e.RiskFreeRate, e.TradingDays),
		Available:   true,
	}
	for _, v := range []float64{metrics.Volatility, metrics.MaxDrawdown, metrics.Sharpe} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Unavailable, apperrors.Wrap(apperrors.ErrUndefinedValue, "risk metric not finite")
		}
	}
	return metrics, nil
}

// EstimateReturn annualises the historical mean daily return and brackets it
// with a normal confidence band: expected +/- z*sigma_annual*100.
func (e *Engine) EstimateReturn(bars []models.PriceBar, confidence float64) (models.ReturnEstimate, error) {
	z, err := ZScore(confidence)
	if err != nil {
		return models.ReturnEstimate{}, err
	}
	if len(bars) < 2 {
		return models.ReturnEstimate{}, apperrors.NewDataError("", "return", "need at least 2 bars", nil)
	}

	returns := DailyReturns(models.Closes(bars))
	days := float64(e.TradingDays)
	expected := stat.Mean(returns, nil) * days * 100
	margin := z * StdDev(returns) * math.Sqrt(days) * 100

	return models.ReturnEstimate{
		ExpectedReturn: expected,
		LowerBound:     expected - margin,
		UpperBound:     expected + margin,
		Confidence:     confidence,
	}, nil
}
