package indicators

import (
	"context"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "stock-analyzer/internal/errors"
	"stock-analyzer/internal/models"
)

func TestMovingAverage(t *testing.T) {
	ma, err := MovingAverage([]float64{1, 2, 3, 4, 5}, 3)
	require.NoError(t, err)
	require.Len(t, ma, 5)

	_, ok := ma.At(1)
	assert.False(t, ok)
	for i, want := range map[int]float64{2: 2, 3: 3, 4: 4} {
		v, ok := ma.At(i)
		require.True(t, ok)
		assert.InDelta(t, want, v, 1e-9)
	}

	_, err = MovingAverage([]float64{1, 2}, 0)
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestMovingAverage_ShortSeries(t *testing.T) {
	ma, err := MovingAverage([]float64{1, 2}, 5)
	require.NoError(t, err)
	assert.Len(t, ma, 2)
	assert.Equal(t, -1, ma.FirstDefined())
}

func TestEMA_SeededByFirstValue(t *testing.T) {
	ema, err := EMA([]float64{10, 20, 30}, 3)
	require.NoError(t, err)

	// alpha = 0.5
	assert.Equal(t, 10.0, ema[0])
	assert.InDelta(t, 15.0, ema[1], 1e-12)
	assert.InDelta(t, 22.5, ema[2], 1e-12)
}

func TestRSI_SimpleMeanFormula(t *testing.T) {
	// deltas: +2, -1, +2, -1 -> period 2 windows alternate
	closes := []float64{10, 12, 11, 13, 12}
	rsi, err := RSI(closes, 2)
	require.NoError(t, err)

	_, ok := rsi.At(1)
	assert.False(t, ok, "window not full")
	// the first delta is undefined, so the first full window ends at index period
	assert.Equal(t, 2, rsi.FirstDefined())

	// window {+2,-1}: gain mean 1, loss mean 0.5 -> 100 - 100/3
	v, ok := rsi.At(2)
	require.True(t, ok)
	assert.InDelta(t, 100-100.0/3, v, 1e-9)

	// window {-1,+2}: same means
	v, ok = rsi.At(3)
	require.True(t, ok)
	assert.InDelta(t, 100-100.0/3, v, 1e-9)
}

func TestRSI_ZeroLossIsUndefined(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5, 6}
	rsi, err := RSI(closes, 3)
	require.NoError(t, err)
	for i := range rsi {
		_, ok := rsi.At(i)
		assert.False(t, ok, "index %d", i)
	}
}

func TestHistogramFlip(t *testing.T) {
	tests := []struct {
		name string
		s    models.Series
		want Cross
	}{
		{"negative to positive", models.Series{-0.5, 0.2}, Bullish},
		{"positive to negative", models.Series{0.3, -0.1}, Bearish},
		{"no change", models.Series{0.3, 0.4}, NoCross},
		{"touches zero", models.Series{-0.3, 0}, NoCross},
		{"undefined", models.Series{math.NaN(), 0.4}, NoCross},
		{"too short", models.Series{0.4}, NoCross},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HistogramFlip(tt.s))
		})
	}
}

func TestDetectCrossover(t *testing.T) {
	fast := models.Series{9, 11}
	slow := models.Series{10, 10}
	assert.Equal(t, Bullish, DetectCrossover(fast, slow))
	assert.Equal(t, Bearish, DetectCrossover(slow, fast))
	assert.Equal(t, NoCross, DetectCrossover(models.Series{math.NaN(), 11}, slow))
	assert.Equal(t, "bullish", Bullish.String())
}

func TestEngine_InvalidBarsYieldUndefinedSet(t *testing.T) {
	engine := newTestEngine(t)
	bars := barsFromCloses([]float64{10, 11, 12})
	bars[1].Close = -1

	set, err := engine.Compute(context.Background(), bars)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrDataUnavailable)
	assert.Equal(t, 3, set.Len())
	assert.Equal(t, -1, set.RSI.FirstDefined())
	assert.Equal(t, -1, set.MovingAverage(5).FirstDefined())
}

func TestEngine_EmptyBars(t *testing.T) {
	engine := newTestEngine(t)
	set, err := engine.Compute(context.Background(), nil)
	assert.ErrorIs(t, err, apperrors.ErrDataUnavailable)
	assert.Equal(t, 0, set.Len())
}

func TestEngine_CancelledContext(t *testing.T) {
	engine := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	set, err := engine.Compute(ctx, barsFromCloses([]float64{10, 11, 12, 13}))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 4, set.Len())
}

func TestNewEngine_RejectsBadWindow(t *testing.T) {
	opts := DefaultOptions()
	opts.MAWindows = []int{5, -1}
	_, err := NewEngine(2, opts, zerolog.Nop())
	assert.ErrorIs(t, err, apperrors.ErrConfigInvalid)
}

func TestEngine_ListIndicators(t *testing.T) {
	engine := newTestEngine(t)
	assert.Equal(t, []int{5, 20, 50, 60}, engine.Windows())
	assert.Equal(t, []string{"MACD_12_26_9", "MA_20", "MA_5", "MA_50", "MA_60", "RSI_14"}, engine.ListIndicators())
}
