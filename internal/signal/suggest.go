package signal

import (
	"stock-analyzer/internal/analysis/indicators"
	"stock-analyzer/internal/models"
)

// Action is the suggested action from indicator crossovers.
type Action string

const (
	ActionBuy  Action = "Buy"
	ActionSell Action = "Sell"
	ActionHold Action = "Hold"
)

// Strength grades how many indicators agree.
type Strength string

const (
	StrengthHigh   Strength = "High"
	StrengthMedium Strength = "Medium"
	StrengthLow    Strength = "Low"
)

const (
	rsiOversold   = 30
	rsiOverbought = 70
)

// Suggestion is the indicator-only technical view.
type Suggestion struct {
	Action   Action   `json:"action"`
	Strength Strength `json:"strength"`
	Signals  []string `json:"signals"`
	Bullish  int      `json:"bullish"`
	Bearish  int      `json:"bearish"`
}

// Suggest inspects the last two bars of set for an MA5/MA20 cross, the RSI
// extremes and a MACD histogram flip. Undefined values never fire.
func Suggest(set models.IndicatorSet) Suggestion {
	var s Suggestion

	switch indicators.DetectCrossover(set.MovingAverage(5), set.MovingAverage(20)) {
	case indicators.Bullish:
		s.Signals = append(s.Signals, "MA5 crossed above MA20 (golden cross), upside likely")
		s.Bullish++
	case indicators.Bearish:
		s.Signals = append(s.Signals, "MA5 crossed below MA20 (death cross), downside likely")
		s.Bearish++
	}

	if rsi, ok := set.RSI.Last(); ok {
		switch {
		case rsi < rsiOversold:
			s.Signals = append(s.Signals, "RSI below 30, oversold and may rebound")
			s.Bullish++
		case rsi > rsiOverbought:
			s.Signals = append(s.Signals, "RSI above 70, overbought and may pull back")
			s.Bearish++
		}
	}

	switch indicators.HistogramFlip(set.Histogram) {
	case indicators.Bullish:
		s.Signals = append(s.Signals, "MACD histogram turned positive, bullish crossover")
		s.Bullish++
	case indicators.Bearish:
		s.Signals = append(s.Signals, "MACD histogram turned negative, bearish crossover")
		s.Bearish++
	}

	switch {
	case s.Bullish > s.Bearish:
		s.Action = ActionBuy
		s.Strength = grade(s.Bullish)
	case s.Bearish > s.Bullish:
		s.Action = ActionSell
		s.Strength = grade(s.Bearish)
	default:
		s.Action = ActionHold
		s.Strength = StrengthLow
	}

	if len(s.Signals) == 0 {
		s.Signals = []string{"No clear signal"}
	}
	return s
}

func grade(count int) Strength {
	if count >= 2 {
		return StrengthHigh
	}
	return StrengthMedium
}
