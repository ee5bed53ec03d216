// Package indicators provides technical indicator calculations with parallel processing.
package indicators

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	apperrors "stock-analyzer/internal/errors"
	"stock-analyzer/internal/models"
)

const (
	keyRSI       = "rsi"
	keyMACD      = "macd"
	keySignal    = "signal"
	keyHistogram = "histogram"
	maPrefix     = "MA_"
)

// Indicator computes one or more named series from close prices.
type Indicator interface {
	Name() string
	Calculate(closes []float64) (map[string]models.Series, error)
	Period() int
}

// Options configures the default indicator set.
type Options struct {
	MAWindows  []int
	RSIPeriod  int
	MACDFast   int
	MACDSlow   int
	MACDSignal int
}

// DefaultOptions returns MA {5,20,50,60}, RSI 14 and MACD 12/26/9.
func DefaultOptions() Options {
	return Options{
		MAWindows:  []int{5, 20, 50, 60},
		RSIPeriod:  14,
		MACDFast:   12,
		MACDSlow:   26,
		MACDSignal: 9,
	}
}

// Engine computes registered indicators in parallel using a worker pool.
// A single Compute call still returns only once every job has finished.
type Engine struct {
	workers    int
	windows    []int
	indicators map[string]Indicator
	logger     zerolog.Logger
	mu         sync.RWMutex
}

// NewEngine creates an engine with the default indicators for opts registered.
func NewEngine(workers int, opts Options, logger zerolog.Logger) (*Engine, error) {
	if workers <= 0 {
		workers = 4
	}
	e := &Engine{
		workers:    workers,
		indicators: make(map[string]Indicator),
		logger:     logger,
	}

	for _, w := range opts.MAWindows {
		if w <= 0 {
			return nil, apperrors.NewValidationError("ma_windows", w, "window must be positive")
		}
		e.RegisterIndicator(NewSMA(w))
	}
	if opts.RSIPeriod <= 0 {
		return nil, apperrors.NewValidationError("rsi_period", opts.RSIPeriod, "period must be positive")
	}
	e.RegisterIndicator(NewRSI(opts.RSIPeriod))
	if opts.MACDFast <= 0 || opts.MACDSlow <= 0 || opts.MACDSignal <= 0 {
		return nil, apperrors.NewValidationError("macd", fmt.Sprintf("%d/%d/%d", opts.MACDFast, opts.MACDSlow, opts.MACDSignal), "periods must be positive")
	}
	e.RegisterIndicator(NewMACD(opts.MACDFast, opts.MACDSlow, opts.MACDSignal))

	return e, nil
}

// RegisterIndicator registers an indicator job. SMA jobs add their window
// to the output set.
func (e *Engine) RegisterIndicator(ind Indicator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.indicators[ind.Name()]; !exists {
		if sma, ok := ind.(*SMA); ok {
			e.windows = append(e.windows, sma.period)
			sort.Ints(e.windows)
		}
	}
	e.indicators[ind.Name()] = ind
}

// Windows returns the registered moving-average windows in ascending order.
func (e *Engine) Windows() []int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]int(nil), e.windows...)
}

// ListIndicators returns the names of all registered indicators, sorted.
func (e *Engine) ListIndicators() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.indicators))
	for name := range e.indicators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type result struct {
	name   string
	values map[string]models.Series
	err    error
}

// Compute derives the full IndicatorSet for bars. Invalid input or a failed
// job yields an all-undefined set of the same length together with the error,
// so callers can keep rendering sibling stages.
func (e *Engine) Compute(ctx context.Context, bars []models.PriceBar) (models.IndicatorSet, error) {
	windows := e.Windows()
	n := len(bars)
	undefined := models.NewUndefinedIndicatorSet(n, windows)

	if n == 0 {
		return undefined, apperrors.NewDataError("", "indicators", "no price bars", nil)
	}
	if err := models.CheckBars(bars); err != nil {
		return undefined, apperrors.NewDataError("", "indicators", "invalid bars", err)
	}

	e.mu.RLock()
	jobs := make([]Indicator, 0, len(e.indicators))
	for _, ind := range e.indicators {
		jobs = append(jobs, ind)
	}
	e.mu.RUnlock()

	closes := models.Closes(bars)
	results := make(chan result, len(jobs))
	work := make(chan Indicator, len(jobs))
	var wg sync.WaitGroup

	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ind := range work {
				select {
				case <-ctx.Done():
					results <- result{name: ind.Name(), err: ctx.Err()}
				default:
					results <- runIndicator(ind, closes)
				}
			}
		}()
	}

	for _, ind := range jobs {
		work <- ind
	}
	close(work)
	wg.Wait()
	close(results)

	set := models.NewUndefinedIndicatorSet(n, windows)
	var firstErr error
	for r := range results {
		if r.err != nil {
			e.logger.Warn().Str("indicator", r.name).Err(r.err).Msg("Indicator failed")
			if firstErr == nil {
				firstErr = r.err
			}
			continue
		}
		for key, series := range r.values {
			assign(&set, key, series)
		}
	}

	if firstErr != nil {
		return undefined, apperrors.Wrap(firstErr, "computing indicators")
	}
	return set, nil
}

func runIndicator(ind Indicator, closes []float64) (r result) {
	r.name = ind.Name()
	defer func() {
		if p := recover(); p != nil {
			r.err = fmt.Errorf("indicator %s panicked: %v", ind.Name(), p)
		}
	}()
	r.values, r.err = ind.Calculate(closes)
	return r
}

func assign(set *models.IndicatorSet, key string, series models.Series) {
	switch key {
	case keyRSI:
		set.RSI = series
	case keyMACD:
		set.MACD = series
	case keySignal:
		set.Signal = series
	case keyHistogram:
		set.Histogram = series
	default:
		if w, err := strconv.Atoi(strings.TrimPrefix(key, maPrefix)); err == nil {
			set.MA[w] = series
		}
	}
}
