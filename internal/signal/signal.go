// Package signal turns a price forecast and indicator crossovers into a
// discrete trading recommendation with rationale text.
package signal

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"stock-analyzer/internal/models"
)

var (
	upperBand = decimal.RequireFromString("1.05")
	lowerBand = decimal.RequireFromString("0.95")
)

type rationale struct {
	trend          string
	technical      string
	risk           string
	recommendation string
}

var rationales = map[models.SignalLabel]rationale{
	models.StrongBuy: {
		trend:          "Strong upward trend: the forecast is more than 5% above the current price.",
		technical:      "Momentum supports further gains.",
		risk:           "Moderate risk; consider a stop loss below recent support.",
		recommendation: "Consider building a position.",
	},
	models.Buy: {
		trend:          "Mild upward trend: the forecast is up to 5% above the current price.",
		technical:      "Indicators lean positive.",
		risk:           "Low to moderate risk.",
		recommendation: "Consider a small position or adding on weakness.",
	},
	models.Hold: {
		trend:          "Flat: the forecast matches the current price.",
		technical:      "No directional edge from the model.",
		risk:           "Risk is balanced.",
		recommendation: "Hold existing positions and wait for a clearer signal.",
	},
	models.Sell: {
		trend:          "Mild downward trend: the forecast is up to 5% below the current price.",
		technical:      "Indicators lean negative.",
		risk:           "Elevated downside risk.",
		recommendation: "Consider reducing exposure.",
	},
	models.StrongSell: {
		trend:          "Strong downward trend: the forecast is more than 5% below the current price.",
		technical:      "Momentum points to further losses.",
		risk:           "High downside risk.",
		recommendation: "Consider exiting the position.",
	},
}

// Label compares predicted against current with symmetric 5% bands:
//
//	predicted >  current*1.05            Strong Buy
//	current   <  predicted <= current*1.05  Buy
//	predicted == current                 Hold
//	current*0.95 <= predicted < current  Sell
//	predicted <  current*0.95            Strong Sell
//
// The comparison uses decimal arithmetic so prices sitting exactly on a
// band are classified consistently. A non-finite price gives Hold.
func Label(current, predicted float64) models.SignalLabel {
	if !finite(current) || !finite(predicted) {
		return models.Hold
	}
	c := decimal.NewFromFloat(current)
	p := decimal.NewFromFloat(predicted)

	switch {
	case p.GreaterThan(c.Mul(upperBand)):
		return models.StrongBuy
	case p.GreaterThan(c):
		return models.Buy
	case p.LessThan(c.Mul(lowerBand)):
		return models.StrongSell
	case p.LessThan(c):
		return models.Sell
	default:
		return models.Hold
	}
}

// Classify builds the TradingSignal for a current and predicted price.
func Classify(current, predicted float64) models.TradingSignal {
	label := Label(current, predicted)
	r := rationales[label]
	return models.TradingSignal{
		Label:          label,
		CurrentPrice:   current,
		PredictedPrice: predicted,
		Trend:          r.trend,
		Technical:      r.technical,
		Risk:           r.risk,
		Recommendation: r.recommendation,
	}
}

// ChangePercent returns the predicted move relative to current, rounded to
// two decimal places.
func ChangePercent(current, predicted float64) string {
	if current == 0 || !finite(current) || !finite(predicted) {
		return "n/a"
	}
	c := decimal.NewFromFloat(current)
	p := decimal.NewFromFloat(predicted)
	return fmt.Sprintf("%s%%", p.Sub(c).Div(c).Mul(decimal.NewFromInt(100)).StringFixed(2))
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
