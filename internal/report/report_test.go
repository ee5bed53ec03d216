package report

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-analyzer/internal/analysis/structure"
	"stock-analyzer/internal/models"
)

func sampleBars() []models.PriceBar {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]models.PriceBar, 3)
	for i := range bars {
		c := 100 + float64(i)
		bars[i] = models.PriceBar{Date: start.AddDate(0, 0, i), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1000}
	}
	return bars
}

func sampleInput() Input {
	nan := math.NaN()
	return Input{
		Ticker: "000001.SZ",
		Bars:   sampleBars(),
		Now:    time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC),
		Indicators: models.IndicatorSet{
			MA: map[int]models.Series{
				5:  {nan, 9, 11},
				20: {nan, 10, 10},
				60: {nan, nan, nan},
			},
			RSI:       models.Series{nan, 55, 60},
			MACD:      models.Series{0, 0.1, 0.2},
			Signal:    models.Series{0, 0.05, 0.1},
			Histogram: models.Series{0, 0.05, 0.1},
		},
		Risk:    models.RiskMetrics{Volatility: 21.5, MaxDrawdown: 8.25, Sharpe: 1.1, Available: true},
		Returns: &models.ReturnEstimate{ExpectedReturn: 12, LowerBound: -20, UpperBound: 44, Confidence: 0.95},
		Structure: &structure.Result{
			Available: true, Trend: structure.Up, HasLevels: true, Support: 95, Resistance: 110, Strokes: 4, Segments: 1,
		},
		Prediction: &models.PredictionResult{
			Ticker:         "000001.SZ",
			Horizon:        5,
			CurrentPrice:   102,
			PredictedPrice: 108,
			ExpectedReturn: 5.88,
			LowerBound:     -1,
			UpperBound:     12.7,
			Confidence:     0.97,
			Models: []models.ModelForecast{
				{Name: "gbrt", Confidence: 0.97, Weight: 0.5},
				{Name: "xgboost", Confidence: 0.97, Weight: 0.5},
			},
		},
	}
}

func TestBuild_AllStagesSucceed(t *testing.T) {
	r := Build(sampleInput())

	assert.Equal(t, "000001.SZ", r.Ticker)
	assert.Equal(t, 3, r.Bars)
	assert.Equal(t, 102.0, r.LastClose)
	assert.Equal(t, int64(1000), r.LastVolume)
	assert.Equal(t, 1.0, r.DayChange)
	assert.InDelta(t, 100.0/101.0, r.DayChangePct, 1e-9)
	assert.Empty(t, r.Failed())

	require.NotNil(t, r.Signal)
	assert.Equal(t, models.StrongBuy, r.Signal.Label)

	require.NotNil(t, r.Indicators.MA[5])
	assert.Equal(t, 11.0, *r.Indicators.MA[5])
	assert.Nil(t, r.Indicators.MA[60])
	assert.Equal(t, []int{5, 20, 60}, r.Indicators.Windows())

	// MA5 crossed above MA20 on the last bar
	assert.Equal(t, 1, r.Suggestion.Bullish)

	_, ok := r.Stage(StageNarrative)
	assert.False(t, ok, "narrative stage is only recorded when it ran")

	r.AttachNarrative("ignored", errors.New("rate limited"))
	assert.Empty(t, r.Narrative)
	assert.Equal(t, []string{StageNarrative}, r.Failed())
}

func TestBuild_PredictionFailureIsolated(t *testing.T) {
	in := sampleInput()
	in.Prediction = nil
	in.PredictionErr = errors.New("model fit failed: only 12 rows")

	r := Build(in)
	assert.Nil(t, r.Signal)
	assert.Equal(t, []string{StagePrediction, StageSignal}, r.Failed())

	st, ok := r.Stage(StageRisk)
	require.True(t, ok)
	assert.True(t, st.OK)

	md := RenderMarkdown(r)
	assert.Contains(t, md, "prediction unavailable: model fit failed: only 12 rows")
	assert.Contains(t, md, "| Risk | Volatility | 21.50% |")
}

func TestRenderMarkdown(t *testing.T) {
	r := Build(sampleInput())
	r.AttachNarrative("Momentum is constructive.", nil)
	md := RenderMarkdown(r)

	for _, want := range []string{
		"# Analysis report: 000001.SZ",
		"As of 2024-03-03, 3 bars, last close 102.00.",
		"| Prediction | Expected return (5 bars) | 5.88% |",
		"| Risk | Max drawdown | 8.25% |",
		"| MA60 | n/a |",
		"**Strong Buy**",
		"- Support: 95.00",
		"## Commentary",
		"Momentum is constructive.",
		"## Risk disclaimer",
		Disclaimer[0],
	} {
		assert.Contains(t, md, want)
	}
	assert.NotContains(t, md, "## Stage failures")
}

func TestRenderMarkdown_RiskUnavailable(t *testing.T) {
	in := sampleInput()
	in.Risk = models.RiskMetrics{}
	in.RiskErr = errors.New("too few bars")

	md := RenderMarkdown(Build(in))
	assert.Contains(t, md, "| Risk | Metrics | unavailable |")
	assert.Contains(t, md, "- risk: too few bars")
}

func TestRenderHTML(t *testing.T) {
	in := sampleInput()
	in.Ticker = "<b>X</b>"
	out, err := RenderHTML(Build(in))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "<!DOCTYPE html>"))
	assert.Contains(t, out, "<title>&lt;b&gt;X&lt;/b&gt; analysis</title>")
	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, "<strong>Strong Buy</strong>")
}

func TestFixed(t *testing.T) {
	assert.Equal(t, "n/a", fixed(math.NaN()))
	assert.Equal(t, "n/a", fixed(math.Inf(1)))
	assert.Equal(t, "1.23", fixed(1.234))
	assert.Equal(t, "n/a", fixedPtr(nil))
}
