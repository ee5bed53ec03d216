// Package models provides domain models for the stock analysis pipeline.
package models

import (
	"fmt"
	"math"
	"time"
)

// Exchange represents a stock exchange.
type Exchange string

const (
	NSE  Exchange = "NSE"
	BSE  Exchange = "BSE"
	SZSE Exchange = "SZSE"
)

// PriceBar represents OHLCV data for one trading session.
type PriceBar struct {
	Date   time.Time `json:"date" yaml:"date"`
	Open   float64   `json:"open" yaml:"open"`
	High   float64   `json:"high" yaml:"high"`
	Low    float64   `json:"low" yaml:"low"`
	Close  float64   `json:"close" yaml:"close"`
	Volume int64     `json:"volume" yaml:"volume"`
}

// Instrument represents a tradeable instrument known to a data source.
type Instrument struct {
	Token    uint32
	Symbol   string
	Name     string
	Exchange Exchange
}

// Closes extracts close prices from bars.
func Closes(bars []PriceBar) []float64 {
	prices := make([]float64, len(bars))
	for i, b := range bars {
		prices[i] = b.Close
	}
	return prices
}

// Volumes extracts volumes from bars as floats.
func Volumes(bars []PriceBar) []float64 {
	vols := make([]float64, len(bars))
	for i, b := range bars {
		vols[i] = float64(b.Volume)
	}
	return vols
}

// Highs extracts high prices from bars.
func Highs(bars []PriceBar) []float64 {
	prices := make([]float64, len(bars))
	for i, b := range bars {
		prices[i] = b.High
	}
	return prices
}

// Lows extracts low prices from bars.
func Lows(bars []PriceBar) []float64 {
	prices := make([]float64, len(bars))
	for i, b := range bars {
		prices[i] = b.Low
	}
	return prices
}

// LastDate returns the date of the final bar, or the zero time for an empty sequence.
func LastDate(bars []PriceBar) time.Time {
	if len(bars) == 0 {
		return time.Time{}
	}
	return bars[len(bars)-1].Date
}

// CheckBars verifies the sequence invariants: positive prices, non-negative
// volume and strictly increasing dates.
func CheckBars(bars []PriceBar) error {
	for i, b := range bars {
		if !(b.Open > 0) || !(b.High > 0) || !(b.Low > 0) || !(b.Close > 0) ||
			math.IsInf(b.Close, 0) {
			return fmt.Errorf("bar %d (%s): prices must be positive", i, b.Date.Format("2006-01-02"))
		}
		if b.Volume < 0 {
			return fmt.Errorf("bar %d (%s): negative volume", i, b.Date.Format("2006-01-02"))
		}
		if i > 0 && !b.Date.After(bars[i-1].Date) {
			return fmt.Errorf("bar %d (%s): dates must be strictly increasing", i, b.Date.Format("2006-01-02"))
		}
	}
	return nil
}
