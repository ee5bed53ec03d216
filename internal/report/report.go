// Package report assembles the per-ticker analysis report from the stage
// outputs and renders it as Markdown or HTML.
package report

import (
	"sort"
	"time"

	"stock-analyzer/internal/analysis/structure"
	"stock-analyzer/internal/models"
	"stock-analyzer/internal/signal"
)

// Stage names in pipeline order.
const (
	StageFetch      = "fetch"
	StageIndicators = "indicators"
	StageRisk       = "risk"
	StageReturns    = "returns"
	StageStructure  = "structure"
	StagePrediction = "prediction"
	StageSignal     = "signal"
	StageNarrative  = "narrative"
)

// Disclaimer is appended to every rendered report.
var Disclaimer = []string{
	"This analysis is for reference only and is not investment advice.",
	"Markets carry risk; invest with caution.",
	"Past performance does not guarantee future returns.",
	"Make decisions according to your own risk tolerance.",
}

// StageStatus records whether a pipeline stage produced output.
type StageStatus struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Snapshot holds the latest value of every indicator; nil means undefined.
type Snapshot struct {
	MA        map[int]*float64 `json:"ma"`
	RSI       *float64         `json:"rsi"`
	MACD      *float64         `json:"macd"`
	Signal    *float64         `json:"signal"`
	Histogram *float64         `json:"histogram"`
}

// Report is the complete analysis of one ticker.
type Report struct {
	Ticker        string                   `json:"ticker"`
	AsOf          time.Time                `json:"as_of"`
	GeneratedAt   time.Time                `json:"generated_at"`
	Bars          int                      `json:"bars"`
	LastClose     float64                  `json:"last_close"`
	LastVolume    int64                    `json:"last_volume"`
	DayChange     float64                  `json:"day_change"`
	DayChangePct  float64                  `json:"day_change_pct"`
	Indicators    Snapshot                 `json:"indicators"`
	Risk          models.RiskMetrics       `json:"risk"`
	Returns       *models.ReturnEstimate   `json:"returns,omitempty"`
	Prediction    *models.PredictionResult `json:"prediction,omitempty"`
	PredictionErr string                   `json:"prediction_error,omitempty"`
	Signal        *models.TradingSignal    `json:"signal,omitempty"`
	Suggestion    signal.Suggestion        `json:"suggestion"`
	Structure     *structure.Result        `json:"structure,omitempty"`
	Narrative     string                   `json:"narrative,omitempty"`
	Stages        []StageStatus            `json:"stages"`
}

// Input carries every stage output and error into Build.
type Input struct {
	Ticker string
	Bars   []models.PriceBar
	Now    time.Time

	Indicators    models.IndicatorSet
	IndicatorsErr error

	Risk    models.RiskMetrics
	RiskErr error

	Returns    *models.ReturnEstimate
	ReturnsErr error

	Structure    *structure.Result
	StructureErr error

	Prediction    *models.PredictionResult
	PredictionErr error
}

// Build assembles a Report. The trading signal is derived from the
// prediction and is absent when the prediction failed.
func Build(in Input) *Report {
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	r := &Report{
		Ticker:      in.Ticker,
		AsOf:        models.LastDate(in.Bars),
		GeneratedAt: now,
		Bars:        len(in.Bars),
		Risk:        in.Risk,
		Returns:     in.Returns,
		Structure:   in.Structure,
	}
	if n := len(in.Bars); n > 0 {
		last := in.Bars[n-1]
		r.LastClose, r.LastVolume = last.Close, last.Volume
		if n > 1 && in.Bars[n-2].Close != 0 {
			prev := in.Bars[n-2].Close
			r.DayChange = last.Close - prev
			r.DayChangePct = r.DayChange / prev * 100
		}
	}

	r.addStage(StageFetch, nil)

	r.addStage(StageIndicators, in.IndicatorsErr)
	r.Indicators = snapshot(in.Indicators)
	if in.IndicatorsErr == nil {
		r.Suggestion = signal.Suggest(in.Indicators)
	} else {
		r.Suggestion = signal.Suggest(models.IndicatorSet{})
	}

	r.addStage(StageRisk, in.RiskErr)
	r.addStage(StageReturns, in.ReturnsErr)
	if in.ReturnsErr != nil {
		r.Returns = nil
	}
	r.addStage(StageStructure, in.StructureErr)

	r.addStage(StagePrediction, in.PredictionErr)
	if in.PredictionErr != nil || in.Prediction == nil {
		if in.PredictionErr != nil {
			r.PredictionErr = in.PredictionErr.Error()
		}
		r.addStage(StageSignal, errNoPrediction)
	} else {
		r.Prediction = in.Prediction
		sig := signal.Classify(in.Prediction.CurrentPrice, in.Prediction.PredictedPrice)
		r.Signal = &sig
		r.addStage(StageSignal, nil)
	}

	return r
}

// AttachNarrative records the commentary stage. A failed narrative leaves
// the rest of the report untouched.
func (r *Report) AttachNarrative(text string, err error) {
	if err == nil {
		r.Narrative = text
	}
	r.addStage(StageNarrative, err)
}

type stageError string

func (e stageError) Error() string { return string(e) }

const errNoPrediction = stageError("no prediction to classify")

func (r *Report) addStage(name string, err error) {
	st := StageStatus{Name: name, OK: err == nil}
	if err != nil {
		st.Error = err.Error()
	}
	r.Stages = append(r.Stages, st)
}

// Stage returns the status for name.
func (r *Report) Stage(name string) (StageStatus, bool) {
	for _, s := range r.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return StageStatus{}, false
}

// Failed lists the names of stages that did not complete.
func (r *Report) Failed() []string {
	var out []string
	for _, s := range r.Stages {
		if !s.OK {
			out = append(out, s.Name)
		}
	}
	return out
}

func snapshot(set models.IndicatorSet) Snapshot {
	s := Snapshot{
		MA:        make(map[int]*float64, len(set.MA)),
		RSI:       last(set.RSI),
		MACD:      last(set.MACD),
		Signal:    last(set.Signal),
		Histogram: last(set.Histogram),
	}
	for w, series := range set.MA {
		s.MA[w] = last(series)
	}
	return s
}

// Windows returns the MA windows in ascending order.
func (s Snapshot) Windows() []int {
	out := make([]int, 0, len(s.MA))
	for w := range s.MA {
		out = append(out, w)
	}
	sort.Ints(out)
	return out
}

func last(s models.Series) *float64 {
	v, ok := s.Last()
	if !ok {
		return nil
	}
	return &v
}
