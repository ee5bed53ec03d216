// Package pipeline runs the per-ticker analysis: fetch, indicators, risk,
// structure, prediction, signal and optional commentary. Every stage after
// the fetch fails on its own; the report records which stages produced no
// output.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"stock-analyzer/internal/analysis/indicators"
	"stock-analyzer/internal/analysis/risk"
	"stock-analyzer/internal/analysis/structure"
	"stock-analyzer/internal/cache"
	"stock-analyzer/internal/config"
	apperrors "stock-analyzer/internal/errors"
	"stock-analyzer/internal/logging"
	"stock-analyzer/internal/marketdata"
	"stock-analyzer/internal/models"
	"stock-analyzer/internal/predict"
	"stock-analyzer/internal/report"
)

// Narrator writes commentary for a finished report.
type Narrator interface {
	Narrate(ctx context.Context, r *report.Report) (string, error)
}

// Deps are the collaborators a Pipeline does not build itself. Only Source
// is required.
type Deps struct {
	Source   marketdata.Source
	Cache    cache.Cache
	Narrator Narrator
	Metrics  *Metrics
}

// Request selects the ticker and date range of one run. Zero dates fall
// back to the configured history ending today.
type Request struct {
	Ticker         string
	From, To       time.Time
	SkipPrediction bool
	SkipNarrative  bool
	// Refresh bypasses cached predictions; the fresh result is still stored.
	Refresh bool
}

// Pipeline holds the stage engines for repeated runs.
type Pipeline struct {
	source     marketdata.Source
	indicators *indicators.Engine
	risk       *risk.Engine
	structure  *structure.Analyzer
	ensemble   *predict.Ensemble
	cache      cache.Cache
	cacheTTL   time.Duration
	narrator   Narrator
	metrics    *Metrics

	exchange    string
	historyDays int
	confidence  float64
	logger      zerolog.Logger
	now         func() time.Time
}

// New builds a pipeline from cfg. Close releases the predictor's workers.
func New(cfg *config.Config, deps Deps, logger zerolog.Logger) (*Pipeline, error) {
	if deps.Source == nil {
		return nil, fmt.Errorf("pipeline: no data source")
	}

	ind, err := indicators.NewEngine(0, indicators.Options{
		MAWindows:  cfg.Analysis.MAWindows,
		RSIPeriod:  cfg.Analysis.RSIPeriod,
		MACDFast:   cfg.Analysis.MACDFast,
		MACDSlow:   cfg.Analysis.MACDSlow,
		MACDSignal: cfg.Analysis.MACDSignal,
	}, logger)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		source:      deps.Source,
		indicators:  ind,
		risk:        risk.NewEngine(cfg.Analysis.RiskFreeRate, cfg.Analysis.TradingDays, logger),
		structure:   structure.NewAnalyzer(),
		cache:       deps.Cache,
		cacheTTL:    cfg.Cache.TTL,
		narrator:    deps.Narrator,
		metrics:     deps.Metrics,
		exchange:    cfg.Data.Exchange,
		historyDays: cfg.Analysis.HistoryDays,
		confidence:  cfg.Analysis.Confidence,
		logger:      logger,
		now:         time.Now,
	}

	if cfg.Prediction.Enabled {
		p.ensemble, err = predict.New(predict.Options{
			Horizon:    cfg.Prediction.Horizon,
			Folds:      cfg.Prediction.Folds,
			MinRows:    cfg.Prediction.MinRows,
			Confidence: cfg.Analysis.Confidence,
			Workers:    cfg.Prediction.Workers,
			Models:     cfg.Prediction.Models,
		}, logger)
		if err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Close stops background workers. The cache and source belong to the caller.
func (p *Pipeline) Close() {
	if p.ensemble != nil {
		p.ensemble.Close()
	}
}

// Source returns the configured data source.
func (p *Pipeline) Source() marketdata.Source {
	return p.source
}

// Fetch validates the ticker and loads its bars for req.
func (p *Pipeline) Fetch(ctx context.Context, req Request) (string, []models.PriceBar, error) {
	ticker, err := marketdata.ValidateTicker(req.Ticker, p.exchange)
	if err != nil {
		return "", nil, err
	}

	from, to := req.From, req.To
	if to.IsZero() {
		to = p.now()
	}
	if from.IsZero() {
		from, to = marketdata.HistoryRange(to, p.historyDays)
	}

	start := time.Now()
	bars, err := p.source.FetchBars(ctx, ticker, from, to)
	p.finishStage(ticker, report.StageFetch, start, err)
	if err != nil {
		return ticker, nil, err
	}
	return ticker, bars, nil
}

// Run executes every stage for req. Only a failed fetch, an invalid ticker
// or a cancelled context returns an error; all other failures are carried
// in the report.
func (p *Pipeline) Run(ctx context.Context, req Request) (*report.Report, error) {
	ticker, bars, err := p.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	logger := logging.WithTicker(p.logger, ticker)
	in := report.Input{Ticker: ticker, Bars: bars, Now: p.now()}

	start := time.Now()
	in.Indicators, in.IndicatorsErr = p.indicators.Compute(ctx, bars)
	p.finishStage(ticker, report.StageIndicators, start, in.IndicatorsErr)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start = time.Now()
	in.Risk, in.RiskErr = p.risk.Compute(bars)
	p.finishStage(ticker, report.StageRisk, start, in.RiskErr)

	start = time.Now()
	est, err := p.risk.EstimateReturn(bars, p.confidence)
	if err == nil {
		in.Returns = &est
	}
	in.ReturnsErr = err
	p.finishStage(ticker, report.StageReturns, start, err)

	start = time.Now()
	res, err := p.structure.Analyze(bars)
	in.Structure, in.StructureErr = &res, err
	p.finishStage(ticker, report.StageStructure, start, err)

	switch {
	case req.SkipPrediction:
		in.PredictionErr = errPredictionSkipped
	case p.ensemble == nil:
		in.PredictionErr = errPredictionDisabled
	case in.IndicatorsErr != nil:
		in.PredictionErr = apperrors.Wrap(in.IndicatorsErr, "indicators unavailable")
	default:
		start = time.Now()
		in.Prediction, in.PredictionErr = p.predict(ctx, ticker, bars, in.Indicators, req.Refresh)
		p.finishStage(ticker, report.StagePrediction, start, in.PredictionErr)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r := report.Build(in)
	if r.Signal != nil {
		logging.LogPrediction(logger, ticker, string(r.Signal.Label), r.Prediction.PredictedPrice, r.Prediction.Confidence)
	}

	if p.narrator != nil && !req.SkipNarrative {
		start = time.Now()
		text, err := p.narrator.Narrate(ctx, r)
		r.AttachNarrative(text, err)
		p.finishStage(ticker, report.StageNarrative, start, err)
	}

	p.metrics.reportDone()
	return r, nil
}

// predict consults the cache before training. Cache failures are logged and
// otherwise ignored.
func (p *Pipeline) predict(ctx context.Context, ticker string, bars []models.PriceBar, set models.IndicatorSet, refresh bool) (*models.PredictionResult, error) {
	logger := logging.WithTicker(p.logger, ticker)
	key := cache.NewKey(ticker, bars)

	if p.cache != nil && !refresh {
		hit, err := p.cache.Get(ctx, key)
		switch {
		case err == nil && hit != nil && hit.Horizon == p.ensemble.Options().Horizon:
			p.metrics.cacheResult("hit")
			logger.Debug().Str("key", key.String()).Msg("Prediction cache hit")
			return hit, nil
		case err == nil || cache.IsMiss(err):
			p.metrics.cacheResult("miss")
		default:
			p.metrics.cacheResult("error")
			logger.Warn().Err(err).Str("key", key.String()).Msg("Prediction cache read failed")
		}
	}

	result, err := p.ensemble.Predict(ctx, ticker, bars, set)
	if err != nil {
		return nil, err
	}

	if p.cache != nil {
		if err := p.cache.Set(ctx, key, result, p.cacheTTL); err != nil {
			logger.Warn().Err(err).Str("key", key.String()).Msg("Prediction cache write failed")
		}
	}
	return result, nil
}

func (p *Pipeline) finishStage(ticker, stage string, start time.Time, err error) {
	d := time.Since(start)
	logging.LogStage(logging.WithTicker(p.logger, ticker), stage, d, err)
	p.metrics.observeStage(stage, d, err)
}

type pipelineError string

func (e pipelineError) Error() string { return string(e) }

const (
	errPredictionSkipped  = pipelineError("prediction skipped")
	errPredictionDisabled = pipelineError("prediction disabled in configuration")
)
