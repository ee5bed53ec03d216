package predict

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"stock-analyzer/internal/analysis/risk"
	"stock-analyzer/internal/config"
	apperrors "stock-analyzer/internal/errors"
	"stock-analyzer/internal/logging"
	"stock-analyzer/internal/models"
	"stock-analyzer/internal/performance"
)

// minConfidence floors model confidences before they are normalised.
const minConfidence = 1e-6

// Options configures the ensemble.
type Options struct {
	Horizon    int      `default:"5" validate:"gte=1"`
	Folds      int      `default:"5" validate:"gte=2"`
	MinRows    int      `default:"30" validate:"gte=0"`
	Confidence float64  `default:"0.95" validate:"gt=0,lt=1"`
	Workers    int      `default:"3" validate:"gte=1"`
	Models     []string `default:"[\"gbrt\",\"xgboost\",\"lightgbm\"]" validate:"min=1,unique,dive,required"`
}

// Ensemble trains every configured model slot and blends their forecasts.
type Ensemble struct {
	opts   Options
	specs  []Spec
	pool   *performance.WorkerPool
	logger zerolog.Logger
}

// New validates opts, resolves the model slots and starts the worker pool.
func New(opts Options, logger zerolog.Logger) (*Ensemble, error) {
	if err := config.ApplyDefaults(&opts); err != nil {
		return nil, err
	}
	if err := config.ValidateStruct(&opts); err != nil {
		return nil, err
	}

	specs := make([]Spec, 0, len(opts.Models))
	for _, name := range opts.Models {
		spec, err := Lookup(name)
		if err != nil {
			return nil, apperrors.NewValidationError("models", name, err.Error())
		}
		specs = append(specs, spec)
	}

	pool := performance.NewWorkerPool(opts.Workers)
	pool.Start()

	return &Ensemble{opts: opts, specs: specs, pool: pool, logger: logger}, nil
}

// Options returns the effective options.
func (e *Ensemble) Options() Options {
	return e.opts
}

// Close stops the worker pool.
func (e *Ensemble) Close() {
	e.pool.Stop()
}

// dataset is the supervised view of a bar sequence for horizon h. Targets
// are forward relative changes close[i+h]/close[i]-1 so tree models can
// follow a trend past the range of prices seen in training.
type dataset struct {
	X       [][]float64 // training rows 0..L-h-1
	Y       []float64   // forward returns
	Base    []float64   // close[i] of training rows
	Target  []float64   // close[i+h] of training rows
	Window  [][]float64 // feature rows of the last h bars
	WinBase []float64   // closes of the last h bars
}

func newDataset(features [][]float64, closes []float64, h int) dataset {
	L := len(closes)
	n := L - h
	ds := dataset{
		X:       features[:n],
		Y:       make([]float64, n),
		Base:    closes[:n],
		Target:  closes[h:],
		Window:  features[n:],
		WinBase: closes[n:],
	}
	for i := 0; i < n; i++ {
		ds.Y[i] = closes[i+h]/closes[i] - 1
	}
	return ds
}

// Predict trains every model slot on bars and returns the blended forecast
// for the next Horizon bars. Any failure is returned as an error; there is
// no fallback forecast.
func (e *Ensemble) Predict(ctx context.Context, ticker string, bars []models.PriceBar, set models.IndicatorSet) (*models.PredictionResult, error) {
	start := time.Now()
	logger := logging.WithTicker(e.logger, ticker)
	h := e.opts.Horizon

	if err := models.CheckBars(bars); err != nil {
		return nil, apperrors.NewDataError(ticker, "prediction", "invalid bars", err)
	}
	rows := len(bars) - h
	need := e.opts.MinRows
	if need < e.opts.Folds+1 {
		need = e.opts.Folds + 1
	}
	if rows < need {
		return nil, apperrors.NewModelError("ensemble", "prepare",
			apperrors.NewDataError(ticker, "prediction",
				fmt.Sprintf("%d training rows after dropping the %d-bar horizon, need %d", max(rows, 0), h, need), nil))
	}

	features, err := BuildFeatures(bars, set)
	if err != nil {
		return nil, err
	}
	closes := models.Closes(bars)
	ds := newDataset(features, closes, h)

	folds, err := TimeSeriesSplit(len(ds.Y), e.opts.Folds)
	if err != nil {
		return nil, err
	}

	forecasts := make([]models.ModelForecast, len(e.specs))
	tasks := make([]performance.Task, len(e.specs))
	for i, spec := range e.specs {
		i, spec := i, spec
		tasks[i] = func(ctx context.Context) error {
			mlog := logging.WithModel(logger, spec.Name)
			t0 := time.Now()
			fc, err := fitSlot(ctx, spec, ds, folds)
			if err != nil {
				mlog.Warn().Err(err).Msg("Model slot failed")
				return err
			}
			mlog.Debug().
				Str("params", Params(fc.Params).String()).
				Float64("cv_mse", fc.CVScore).
				Float64("confidence", fc.Confidence).
				Dur("duration", time.Since(t0)).
				Msg("Model slot fitted")
			forecasts[i] = fc
			return nil
		}
	}

	for i, err := range e.pool.RunAll(ctx, tasks) {
		if err != nil {
			var merr *apperrors.ModelError
			if apperrors.As(err, &merr) {
				return nil, err
			}
			return nil, apperrors.NewModelError(e.specs[i].Name, "fit", err)
		}
	}

	assignWeights(forecasts)

	blended := make([]float64, h)
	var confSum float64
	for _, m := range forecasts {
		for j, v := range m.Forecast {
			blended[j] += m.Weight * v
		}
		confSum += m.Confidence
	}

	current := closes[len(closes)-1]
	predicted := blended[h-1]
	z, err := risk.ZScore(e.opts.Confidence)
	if err != nil {
		return nil, err
	}
	expected := (predicted/current - 1) * 100
	margin := z * risk.StdDev(risk.DailyReturns(closes)) * math.Sqrt(float64(h)) * 100

	res := &models.PredictionResult{
		Ticker:         ticker,
		AsOf:           models.LastDate(bars),
		Horizon:        h,
		CurrentPrice:   current,
		Forecast:       blended,
		PredictedPrice: predicted,
		ExpectedReturn: expected,
		LowerBound:     expected - margin,
		UpperBound:     expected + margin,
		Confidence:     confSum / float64(len(forecasts)),
		Models:         forecasts,
	}

	logger.Debug().
		Float64("predicted_price", predicted).
		Float64("expected_return", expected).
		Dur("duration", time.Since(start)).
		Msg("Ensemble prediction complete")
	return res, nil
}

// fitSlot grid-searches one model slot, scores its confidence from the
// out-of-fold predictions, refits on every training row and forecasts the
// window rows in price space.
func fitSlot(ctx context.Context, spec Spec, ds dataset, folds []Fold) (models.ModelForecast, error) {
	search, err := GridSearch(ctx, spec, ds.X, ds.Y, folds)
	if err != nil {
		return models.ModelForecast{}, err
	}

	oofPrices := make([]float64, len(search.OOF))
	oofTargets := make([]float64, len(search.OOF))
	for i, row := range search.OOFRows {
		oofPrices[i] = ds.Base[row] * (1 + search.OOF[i])
		oofTargets[i] = ds.Target[row]
	}
	confidence := Confidence(oofPrices, oofTargets)

	model := spec.New(search.Params)
	if err := model.Fit(ds.X, ds.Y); err != nil {
		return models.ModelForecast{}, apperrors.NewModelError(spec.Name, "refit", err)
	}
	pred, err := model.Predict(ds.Window)
	if err != nil {
		return models.ModelForecast{}, apperrors.NewModelError(spec.Name, "predict", err)
	}

	forecast := make([]float64, len(pred))
	for j, r := range pred {
		forecast[j] = ds.WinBase[j] * (1 + r)
		if math.IsNaN(forecast[j]) || math.IsInf(forecast[j], 0) {
			return models.ModelForecast{}, apperrors.NewModelError(spec.Name, "predict",
				fmt.Errorf("non-finite forecast at step %d", j))
		}
	}

	return models.ModelForecast{
		Name:       spec.Name,
		Params:     search.Params,
		Forecast:   forecast,
		Confidence: confidence,
		CVScore:    search.Score,
	}, nil
}

// Confidence is 1 - stdev(predictions)/mean(targets). It is zero when the
// target mean is zero or there are fewer than two predictions.
func Confidence(predictions, targets []float64) float64 {
	if len(predictions) < 2 || len(targets) == 0 {
		return 0
	}
	m := stat.Mean(targets, nil)
	if m == 0 {
		return 0
	}
	c := 1 - risk.StdDev(predictions)/m
	if math.IsNaN(c) {
		return 0
	}
	return c
}

// assignWeights floors each confidence at minConfidence and normalises the
// results to sum to one.
func assignWeights(forecasts []models.ModelForecast) {
	var total float64
	for _, m := range forecasts {
		total += math.Max(m.Confidence, minConfidence)
	}
	for i := range forecasts {
		forecasts[i].Weight = math.Max(forecasts[i].Confidence, minConfidence) / total
	}
}
