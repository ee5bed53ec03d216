package indicators

import (
	"fmt"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"

	"stock-analyzer/internal/models"
)

// MovingAverage returns the simple moving average of values over n trailing
// entries. Entries before index n-1 are undefined.
func MovingAverage(values []float64, n int) (models.Series, error) {
	if n <= 0 {
		return nil, fmt.Errorf("moving average window %d: %w", n, ErrInvalidPeriod)
	}
	if len(values) < n {
		return models.NewUndefinedSeries(len(values)), nil
	}

	sma := trend.NewSmaWithPeriod[float64](n)
	out := helper.ChanToSlice(sma.Compute(helper.SliceToChan(values)))
	return padLeft(out, len(values)), nil
}

// EMA returns the exponential moving average with smoothing factor
// 2/(span+1), seeded by the first value: ema[0] = values[0].
func EMA(values []float64, span int) (models.Series, error) {
	if span <= 0 {
		return nil, fmt.Errorf("ema span %d: %w", span, ErrInvalidPeriod)
	}
	out := make(models.Series, len(values))
	if len(values) == 0 {
		return out, nil
	}

	alpha := 2.0 / float64(span+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out, nil
}

// MACDResult holds the three MACD series.
type MACDResult struct {
	MACD      models.Series
	Signal    models.Series
	Histogram models.Series
}

// MACD computes EMA(fast) - EMA(slow), its signal EMA and the histogram.
func MACD(values []float64, fast, slow, signal int) (MACDResult, error) {
	if fast <= 0 || slow <= 0 || signal <= 0 {
		return MACDResult{}, fmt.Errorf("macd %d/%d/%d: %w", fast, slow, signal, ErrInvalidPeriod)
	}

	fastEMA, _ := EMA(values, fast)
	slowEMA, _ := EMA(values, slow)

	line := make(models.Series, len(values))
	for i := range values {
		line[i] = fastEMA[i] - slowEMA[i]
	}

	signalLine, _ := EMA(line, signal)

	hist := make(models.Series, len(values))
	for i := range values {
		hist[i] = line[i] - signalLine[i]
	}

	return MACDResult{MACD: line, Signal: signalLine, Histogram: hist}, nil
}

// SMA is the engine job for one moving-average window.
type SMA struct {
	period int
}

// NewSMA creates a new SMA indicator.
func NewSMA(period int) *SMA {
	return &SMA{period: period}
}

func (s *SMA) Name() string {
	return fmt.Sprintf("MA_%d", s.period)
}

func (s *SMA) Period() int {
	return s.period
}

func (s *SMA) Calculate(closes []float64) (map[string]models.Series, error) {
	ma, err := MovingAverage(closes, s.period)
	if err != nil {
		return nil, err
	}
	return map[string]models.Series{s.Name(): ma}, nil
}

// MACDIndicator is the engine job for MACD, signal and histogram.
type MACDIndicator struct {
	fastPeriod   int
	slowPeriod   int
	signalPeriod int
}

// NewMACD creates a new MACD indicator.
func NewMACD(fast, slow, signal int) *MACDIndicator {
	return &MACDIndicator{
		fastPeriod:   fast,
		slowPeriod:   slow,
		signalPeriod: signal,
	}
}

func (m *MACDIndicator) Name() string {
	return fmt.Sprintf("MACD_%d_%d_%d", m.fastPeriod, m.slowPeriod, m.signalPeriod)
}

func (m *MACDIndicator) Period() int {
	return m.slowPeriod
}

func (m *MACDIndicator) Calculate(closes []float64) (map[string]models.Series, error) {
	res, err := MACD(closes, m.fastPeriod, m.slowPeriod, m.signalPeriod)
	if err != nil {
		return nil, err
	}
	return map[string]models.Series{
		keyMACD:      res.MACD,
		keySignal:    res.Signal,
		keyHistogram: res.Histogram,
	}, nil
}
