package pipeline

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-analyzer/internal/cache"
	"stock-analyzer/internal/config"
	apperrors "stock-analyzer/internal/errors"
	"stock-analyzer/internal/models"
	"stock-analyzer/internal/report"
)

// driftBars rises by 0.5 a bar with a wobble large enough to produce some
// down days, so RSI stays defined.
func driftBars(n int) []models.PriceBar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]models.PriceBar, n)
	for i := range bars {
		c := 100 + 0.5*float64(i) + 0.6*math.Sin(float64(i))
		bars[i] = models.PriceBar{
			Date:   start.AddDate(0, 0, i),
			Open:   c - 0.2,
			High:   c + 0.8,
			Low:    c - 0.8,
			Close:  c,
			Volume: 500_000 + int64(i%5)*20_000,
		}
	}
	return bars
}

type fakeSource struct {
	bars  []models.PriceBar
	err   error
	calls int
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) FetchBars(ctx context.Context, ticker string, from, to time.Time) ([]models.PriceBar, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.bars, nil
}

type fakeNarrator struct {
	text string
	err  error
	seen *report.Report
}

func (f *fakeNarrator) Narrate(ctx context.Context, r *report.Report) (string, error) {
	f.seen = r
	return f.text, f.err
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, cache.Key) (*models.PredictionResult, error) {
	return nil, errors.New("connection refused")
}

func (brokenCache) Set(context.Context, cache.Key, *models.PredictionResult, time.Duration) error {
	return errors.New("connection refused")
}

func (brokenCache) Delete(context.Context, cache.Key) error { return nil }
func (brokenCache) Close() error                           { return nil }

func newPipeline(t *testing.T, cfg *config.Config, deps Deps) *Pipeline {
	t.Helper()
	if cfg == nil {
		cfg = config.Default()
	}
	p, err := New(cfg, deps, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func assertStagesOK(t *testing.T, r *report.Report, names ...string) {
	t.Helper()
	for _, name := range names {
		st, ok := r.Stage(name)
		if assert.True(t, ok, name) {
			assert.True(t, st.OK, "%s: %s", name, st.Error)
		}
	}
}

func TestRun_EndToEnd(t *testing.T) {
	bars := driftBars(120)
	metrics := NewMetrics()
	mem := cache.NewMemoryCache()
	narrator := &fakeNarrator{text: "Uptrend intact."}
	p := newPipeline(t, nil, Deps{Source: &fakeSource{bars: bars}, Cache: mem, Narrator: narrator, Metrics: metrics})

	r, err := p.Run(context.Background(), Request{Ticker: "trend"})
	require.NoError(t, err)

	assert.Equal(t, "TREND", r.Ticker)
	// a steady drift has no fractal structure; every other stage completes
	assertStagesOK(t, r, report.StageFetch, report.StageIndicators, report.StageRisk,
		report.StageReturns, report.StagePrediction, report.StageSignal, report.StageNarrative)
	assert.Equal(t, bars[119].Close, r.LastClose)

	require.NotNil(t, r.Indicators.MA[60])
	require.NotNil(t, r.Indicators.RSI)
	assert.Greater(t, *r.Indicators.RSI, 50.0)
	assert.Less(t, *r.Indicators.RSI, 100.0)

	// the drift is steady, so both MACD lines sit well above zero while the
	// histogram has faded to a small ripple
	require.NotNil(t, r.Indicators.MACD)
	require.NotNil(t, r.Indicators.Signal)
	require.NotNil(t, r.Indicators.Histogram)
	assert.Greater(t, *r.Indicators.MACD, 2.0)
	assert.Greater(t, *r.Indicators.Signal, 2.0)
	assert.InDelta(t, 0.0, *r.Indicators.Histogram, 0.5)

	set, err := p.indicators.Compute(context.Background(), bars)
	require.NoError(t, err)
	for _, w := range []int{5, 20, 60} {
		assert.Equal(t, w-1, set.MA[w].FirstDefined(), "MA%d", w)
		for i := 59; i < len(bars); i++ {
			_, ok := set.MA[w].At(i)
			assert.True(t, ok, "MA%d at %d", w, i)
		}
	}

	assert.True(t, r.Risk.Available)
	assert.Greater(t, r.Risk.Volatility, 0.0)
	assert.GreaterOrEqual(t, r.Risk.MaxDrawdown, 0.0)
	assert.Less(t, r.Risk.MaxDrawdown, 1.0)
	require.NotNil(t, r.Returns)

	require.NotNil(t, r.Prediction)
	assert.Len(t, r.Prediction.Forecast, 5)
	assert.Greater(t, r.Prediction.PredictedPrice, r.LastClose)
	require.NotNil(t, r.Signal)
	assert.Contains(t, []models.SignalLabel{models.Buy, models.StrongBuy}, r.Signal.Label)

	assert.Equal(t, "Uptrend intact.", r.Narrative)
	assert.Same(t, r, narrator.seen)
	assert.Equal(t, 1, mem.Len())

	again, err := p.Run(context.Background(), Request{Ticker: "TREND", SkipNarrative: true})
	require.NoError(t, err)
	assert.Equal(t, r.Prediction.Forecast, again.Prediction.Forecast)
	_, ran := again.Stage(report.StageNarrative)
	assert.False(t, ran)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheRequests.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheRequests.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.Reports))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.StageFailures.WithLabelValues(report.StagePrediction)))
}

func TestRun_FetchFailure(t *testing.T) {
	src := &fakeSource{err: apperrors.NewDataError("X", "fetch", "no rows", nil)}
	p := newPipeline(t, nil, Deps{Source: src})

	r, err := p.Run(context.Background(), Request{Ticker: "X"})
	assert.Nil(t, r)
	assert.ErrorIs(t, err, apperrors.ErrDataUnavailable)
}

func TestRun_InvalidTicker(t *testing.T) {
	cfg := config.Default()
	cfg.Data.Exchange = "SZSE"
	src := &fakeSource{bars: driftBars(10)}
	p := newPipeline(t, cfg, Deps{Source: src})

	_, err := p.Run(context.Background(), Request{Ticker: "ABC"})
	assert.ErrorIs(t, err, apperrors.ErrTickerInvalid)
	assert.Zero(t, src.calls)
}

func TestRun_ShortHistoryIsolatesPrediction(t *testing.T) {
	metrics := NewMetrics()
	p := newPipeline(t, nil, Deps{Source: &fakeSource{bars: driftBars(20)}, Metrics: metrics})

	r, err := p.Run(context.Background(), Request{Ticker: "SHORT"})
	require.NoError(t, err)

	assert.Subset(t, r.Failed(), []string{report.StagePrediction, report.StageSignal})
	assertStagesOK(t, r, report.StageIndicators, report.StageRisk)
	assert.Nil(t, r.Signal)
	assert.Contains(t, r.PredictionErr, "training rows")
	assert.True(t, r.Risk.Available)
	assert.Nil(t, r.Indicators.MA[60])
	assert.Contains(t, report.RenderMarkdown(r), "prediction unavailable:")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.StageFailures.WithLabelValues(report.StagePrediction)))
}

func TestRun_NarratorFailureKeepsReport(t *testing.T) {
	narrator := &fakeNarrator{err: errors.New("quota exceeded")}
	p := newPipeline(t, nil, Deps{Source: &fakeSource{bars: driftBars(120)}, Narrator: narrator})

	r, err := p.Run(context.Background(), Request{Ticker: "N", SkipPrediction: true})
	require.NoError(t, err)
	assert.Empty(t, r.Narrative)
	assert.Contains(t, r.Failed(), report.StageNarrative)
	assertStagesOK(t, r, report.StageIndicators, report.StageRisk)

	st, _ := r.Stage(report.StageNarrative)
	assert.Equal(t, "quota exceeded", st.Error)
}

func TestRun_CacheErrorsIgnored(t *testing.T) {
	metrics := NewMetrics()
	p := newPipeline(t, nil, Deps{Source: &fakeSource{bars: driftBars(120)}, Cache: brokenCache{}, Metrics: metrics})

	r, err := p.Run(context.Background(), Request{Ticker: "C"})
	require.NoError(t, err)
	assert.NotNil(t, r.Prediction)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheRequests.WithLabelValues("error")))
}

func TestRun_PredictionDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Prediction.Enabled = false
	p := newPipeline(t, cfg, Deps{Source: &fakeSource{bars: driftBars(120)}})

	r, err := p.Run(context.Background(), Request{Ticker: "D"})
	require.NoError(t, err)
	st, _ := r.Stage(report.StagePrediction)
	assert.Equal(t, errPredictionDisabled.Error(), st.Error)
}

func TestRun_Cancelled(t *testing.T) {
	p := newPipeline(t, nil, Deps{Source: &fakeSource{bars: driftBars(120)}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, Request{Ticker: "X"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew_RequiresSource(t *testing.T) {
	_, err := New(config.Default(), Deps{}, zerolog.Nop())
	assert.Error(t, err)
}

func TestOpenCache(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()

	cfg.Cache.Backend = "none"
	c, err := OpenCache(ctx, cfg)
	require.NoError(t, err)
	assert.Nil(t, c)

	cfg.Cache.Backend = "memory"
	c, err = OpenCache(ctx, cfg)
	require.NoError(t, err)
	assert.IsType(t, &cache.MemoryCache{}, c)

	cfg.Cache.Backend = "sqlite"
	cfg.Cache.SQLitePath = filepath.Join(t.TempDir(), "cache.db")
	c, err = OpenCache(ctx, cfg)
	require.NoError(t, err)
	assert.NoError(t, c.Close())

	mr := miniredis.RunT(t)
	cfg.Cache.Backend = "redis"
	cfg.Cache.RedisAddr = mr.Addr()
	c, err = OpenCache(ctx, cfg)
	require.NoError(t, err)
	assert.NoError(t, c.Close())

	cfg.Cache.Backend = "disk"
	_, err = OpenCache(ctx, cfg)
	assert.Error(t, err)
}
