package models

import "time"

// RiskMetrics holds the risk snapshot computed over a full bar sequence.
// Available is false for the sentinel returned when the metrics could not be computed.
type RiskMetrics struct {
	Volatility  float64 `json:"volatility"`   // annualised, percent
	MaxDrawdown float64 `json:"max_drawdown"` // positive magnitude, percent
	Sharpe      float64 `json:"sharpe"`
	Available   bool    `json:"available"`
}

// ReturnEstimate is the historical annualised return with a confidence band.
type ReturnEstimate struct {
	ExpectedReturn float64 `json:"expected_return"` // percent
	LowerBound     float64 `json:"lower_bound"`
	UpperBound     float64 `json:"upper_bound"`
	Confidence     float64 `json:"confidence"`
}

// ModelForecast is one model slot's contribution to an ensemble prediction.
type ModelForecast struct {
	Name       string             `json:"name"`
	Params     map[string]float64 `json:"params"`
	Forecast   []float64          `json:"forecast"`
	Confidence float64            `json:"confidence"`
	Weight     float64            `json:"weight"`
	CVScore    float64            `json:"cv_mse"`
}

// PredictionResult is the ensemble output for one (ticker, as-of date).
type PredictionResult struct {
	Ticker         string          `json:"ticker"`
	AsOf           time.Time       `json:"as_of"`
	Horizon        int             `json:"horizon"`
	CurrentPrice   float64         `json:"current_price"`
	Forecast       []float64       `json:"forecast"`
	PredictedPrice float64         `json:"predicted_price"`
	ExpectedReturn float64         `json:"expected_return"` // percent over the horizon
	LowerBound     float64         `json:"lower_bound"`
	UpperBound     float64         `json:"upper_bound"`
	Confidence     float64         `json:"confidence"` // mean model confidence
	Models         []ModelForecast `json:"models"`
}

// Weights returns the per-model blend weights keyed by model name.
func (p *PredictionResult) Weights() map[string]float64 {
	w := make(map[string]float64, len(p.Models))
	for _, m := range p.Models {
		w[m.Name] = m.Weight
	}
	return w
}

// SignalLabel is the discrete trading recommendation.
type SignalLabel string

const (
	StrongBuy  SignalLabel = "Strong Buy"
	Buy        SignalLabel = "Buy"
	Hold       SignalLabel = "Hold"
	Sell       SignalLabel = "Sell"
	StrongSell SignalLabel = "Strong Sell"
)

// TradingSignal is the classified recommendation with its rationale text.
type TradingSignal struct {
	Label          SignalLabel `json:"label"`
	CurrentPrice   float64     `json:"current_price"`
	PredictedPrice float64     `json:"predicted_price"`
	Trend          string      `json:"trend"`
	Technical      string      `json:"technical"`
	Risk           string      `json:"risk"`
	Recommendation string      `json:"recommendation"`
}
