package models

import (
	"encoding/json"
	"math"
)

// Series is a derived value sequence aligned 1:1 with a bar sequence.
// NaN marks an undefined value (window not yet full, or a zero divisor).
type Series []float64

// NewUndefinedSeries returns a series of length n with every entry undefined.
func NewUndefinedSeries(n int) Series {
	s := make(Series, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}

// At returns the value at index i and whether it is defined.
func (s Series) At(i int) (float64, bool) {
	if i < 0 || i >= len(s) {
		return 0, false
	}
	v := s[i]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Last returns the final value and whether it is defined.
func (s Series) Last() (float64, bool) {
	return s.At(len(s) - 1)
}

// FirstDefined returns the index of the first defined value, or -1.
func (s Series) FirstDefined() int {
	for i := range s {
		if _, ok := s.At(i); ok {
			return i
		}
	}
	return -1
}

// MarshalJSON encodes undefined values as null.
func (s Series) MarshalJSON() ([]byte, error) {
	out := make([]*float64, len(s))
	for i := range s {
		if v, ok := s.At(i); ok {
			v := v
			out[i] = &v
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes null entries as undefined.
func (s *Series) UnmarshalJSON(data []byte) error {
	var in []*float64
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	out := make(Series, len(in))
	for i, v := range in {
		if v == nil {
			out[i] = math.NaN()
		} else {
			out[i] = *v
		}
	}
	*s = out
	return nil
}

// IndicatorSet holds the derived indicator series for one bar sequence.
type IndicatorSet struct {
	MA        map[int]Series `json:"ma"`
	RSI       Series         `json:"rsi"`
	MACD      Series         `json:"macd"`
	Signal    Series         `json:"signal"`
	Histogram Series         `json:"histogram"`
}

// NewUndefinedIndicatorSet returns a set of length n where every value is undefined.
func NewUndefinedIndicatorSet(n int, windows []int) IndicatorSet {
	set := IndicatorSet{
		MA:        make(map[int]Series, len(windows)),
		RSI:       NewUndefinedSeries(n),
		MACD:      NewUndefinedSeries(n),
		Signal:    NewUndefinedSeries(n),
		Histogram: NewUndefinedSeries(n),
	}
	for _, w := range windows {
		set.MA[w] = NewUndefinedSeries(n)
	}
	return set
}

// Len returns the length of the aligned series.
func (s IndicatorSet) Len() int {
	return len(s.RSI)
}

// MovingAverage returns the MA series for window n, or nil when it was not computed.
func (s IndicatorSet) MovingAverage(n int) Series {
	return s.MA[n]
}
