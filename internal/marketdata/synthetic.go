package marketdata

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"stock-analyzer/internal/models"
	"stock-analyzer/pkg/utils"
)

// SyntheticSource generates a deterministic geometric random walk per
// ticker on weekdays. The same ticker and range always produce the same bars.
type SyntheticSource struct {
	StartPrice float64
	Drift      float64 // mean daily log return
	Volatility float64 // daily log return deviation
	Seed       int64
}

// NewSyntheticSource returns a source with a mild upward drift.
func NewSyntheticSource() *SyntheticSource {
	return &SyntheticSource{StartPrice: 100, Drift: 0.0005, Volatility: 0.015}
}

// Name implements Source.
func (s *SyntheticSource) Name() string { return "synthetic" }

func (s *SyntheticSource) rng(ticker string) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(NormalizeTicker(ticker)))
	return rand.New(rand.NewSource(int64(h.Sum64()) ^ s.Seed))
}

// FetchBars implements Source. A zero from defaults to one year before to;
// a zero to defaults to the last weekday.
func (s *SyntheticSource) FetchBars(ctx context.Context, ticker string, from, to time.Time) ([]models.PriceBar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if to.IsZero() {
		to = utils.LastTradingDay(time.Now())
	}
	if from.IsZero() {
		from = to.AddDate(-1, 0, 0)
	}

	days := utils.TradingDays(from, to)
	rng := s.rng(ticker)
	price := s.StartPrice
	if price <= 0 {
		price = 100
	}

	bars := make([]models.PriceBar, 0, len(days))
	for _, d := range days {
		open := price
		price *= math.Exp(s.Drift + s.Volatility*rng.NormFloat64())
		spread := math.Abs(rng.NormFloat64()) * s.Volatility * 0.5
		bars = append(bars, models.PriceBar{
			Date:   d,
			Open:   round2(open),
			High:   round2(math.Max(open, price) * (1 + spread)),
			Low:    round2(math.Min(open, price) * (1 - spread)),
			Close:  round2(price),
			Volume: 500_000 + rng.Int63n(1_500_000),
		})
	}
	return finish(s.Name(), ticker, bars, from, to)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
