package indicators

import "stock-analyzer/internal/models"

// Cross is the direction of a crossover between two series.
type Cross int

const (
	NoCross Cross = iota
	Bullish
	Bearish
)

func (c Cross) String() string {
	switch c {
	case Bullish:
		return "bullish"
	case Bearish:
		return "bearish"
	default:
		return "none"
	}
}

// CrossAt reports whether fast crossed slow between bars i-1 and i. Any
// undefined input yields NoCross.
func CrossAt(fast, slow models.Series, i int) Cross {
	f0, ok1 := fast.At(i - 1)
	s0, ok2 := slow.At(i - 1)
	f1, ok3 := fast.At(i)
	s1, ok4 := slow.At(i)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return NoCross
	}
	switch {
	case f0 <= s0 && f1 > s1:
		return Bullish
	case f0 >= s0 && f1 < s1:
		return Bearish
	default:
		return NoCross
	}
}

// DetectCrossover checks the last two bars for a crossover of fast over slow.
func DetectCrossover(fast, slow models.Series) Cross {
	return CrossAt(fast, slow, len(fast)-1)
}

// HistogramFlip classifies a sign change of s between its last two values:
// turning positive is bullish, turning negative is bearish.
func HistogramFlip(s models.Series) Cross {
	n := len(s)
	prev, ok1 := s.At(n - 2)
	cur, ok2 := s.At(n - 1)
	if !ok1 || !ok2 {
		return NoCross
	}
	switch {
	case prev <= 0 && cur > 0:
		return Bullish
	case prev >= 0 && cur < 0:
		return Bearish
	default:
		return NoCross
	}
}
