package indicators

import (
	"context"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"

	"stock-analyzer/internal/models"
)

// closesGen generates positive close price sequences.
func closesGen(minLen, maxLen int) gopter.Gen {
	return gen.IntRange(minLen, maxLen).FlatMap(func(v interface{}) gopter.Gen {
		return gen.SliceOfN(v.(int), gen.Float64Range(10.0, 1000.0))
	}, reflect.TypeOf([]float64{}))
}

// barsFromCloses builds a valid daily bar sequence around closes.
func barsFromCloses(closes []float64) []models.PriceBar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]models.PriceBar, len(closes))
	for i, c := range closes {
		bars[i] = models.PriceBar{
			Date:   start.AddDate(0, 0, i),
			Open:   c,
			High:   c * 1.01,
			Low:    c * 0.99,
			Close:  c,
			Volume: 100000,
		}
	}
	return bars
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(4, DefaultOptions(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func TestProperty_MovingAverageWindow(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())
	parameters.MaxShrinkCount = 0

	properties := gopter.NewProperties(parameters)

	properties.Property("MA_n is undefined before n-1 and equals the first-n mean at n-1", prop.ForAll(
		func(closes []float64, n int) bool {
			ma, err := MovingAverage(closes, n)
			if err != nil || len(ma) != len(closes) {
				return false
			}
			for i := 0; i < n-1 && i < len(ma); i++ {
				if _, ok := ma.At(i); ok {
					return false
				}
			}
			if len(closes) < n {
				return true
			}
			v, ok := ma.At(n - 1)
			if !ok {
				return false
			}
			return math.Abs(v-mean(closes[:n])) < 1e-6*math.Max(1, math.Abs(v))
		},
		closesGen(1, 120),
		gen.IntRange(1, 60),
	))

	properties.TestingRun(t)
}

func TestProperty_RSIWithinBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())
	parameters.MaxShrinkCount = 0

	properties := gopter.NewProperties(parameters)

	properties.Property("defined RSI values are within [0, 100]", prop.ForAll(
		func(closes []float64) bool {
			rsi, err := RSI(closes, 14)
			if err != nil || len(rsi) != len(closes) {
				return false
			}
			for i := range rsi {
				v, ok := rsi.At(i)
				if i < 14 && ok {
					return false
				}
				if ok && (v < 0 || v > 100) {
					return false
				}
			}
			return true
		},
		closesGen(0, 100),
	))

	properties.TestingRun(t)
}

func TestProperty_RSIUndefinedForRisingSeries(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())
	parameters.MaxShrinkCount = 0

	properties := gopter.NewProperties(parameters)

	properties.Property("strictly rising closes have no losses so RSI is never defined", prop.ForAll(
		func(steps []float64) bool {
			closes := make([]float64, len(steps))
			price := 50.0
			for i, s := range steps {
				price += s
				closes[i] = price
			}
			rsi, _ := RSI(closes, 14)
			return rsi.FirstDefined() == -1
		},
		gen.SliceOfN(60, gen.Float64Range(0.01, 5.0)),
	))

	properties.TestingRun(t)
}

func TestProperty_EngineOutputAligned(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	parameters.Rng.Seed(time.Now().UnixNano())
	parameters.MaxShrinkCount = 0

	properties := gopter.NewProperties(parameters)
	engine := newTestEngine(t)

	properties.Property("every series has the bar count length", prop.ForAll(
		func(closes []float64) bool {
			set, err := engine.Compute(context.Background(), barsFromCloses(closes))
			if err != nil {
				return false
			}
			n := len(closes)
			if len(set.RSI) != n || len(set.MACD) != n || len(set.Signal) != n || len(set.Histogram) != n {
				return false
			}
			for _, w := range []int{5, 20, 50, 60} {
				ma := set.MovingAverage(w)
				if len(ma) != n {
					return false
				}
				if n >= w {
					if _, ok := ma.At(w - 1); !ok {
						return false
					}
				}
			}
			return true
		},
		closesGen(1, 150),
	))

	properties.TestingRun(t)
}

func TestProperty_MACDHistogramIdentity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())
	parameters.MaxShrinkCount = 0

	properties := gopter.NewProperties(parameters)

	properties.Property("histogram equals MACD minus signal and starts at zero", prop.ForAll(
		func(closes []float64) bool {
			res, err := MACD(closes, 12, 26, 9)
			if err != nil {
				return false
			}
			if res.MACD[0] != 0 || res.Histogram[0] != 0 {
				return false
			}
			for i := range closes {
				if math.Abs(res.Histogram[i]-(res.MACD[i]-res.Signal[i])) > 1e-9 {
					return false
				}
			}
			return true
		},
		closesGen(1, 100),
	))

	properties.TestingRun(t)
}
