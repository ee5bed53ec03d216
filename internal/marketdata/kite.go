package marketdata

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	apperrors "stock-analyzer/internal/errors"
	"stock-analyzer/internal/logging"
	"stock-analyzer/internal/models"
	"stock-analyzer/internal/performance"
	"stock-analyzer/pkg/utils"
)

// kiteClient is the subset of the Kite Connect client used for history.
type kiteClient interface {
	GetInstruments() (kiteconnect.Instruments, error)
	GetHistoricalData(instrumentToken int, interval string, fromDate time.Time, toDate time.Time, continuous bool, OI bool) ([]kiteconnect.HistoricalData, error)
}

// KiteConfig holds configuration for the Zerodha source.
type KiteConfig struct {
	APIKey      string
	AccessToken string
	Exchange    models.Exchange
	// RequestsPerSecond caps historical API calls; Kite allows 3/s.
	RequestsPerSecond float64
	Retry             utils.RetryConfig
}

// KiteSource fetches daily history from Zerodha Kite Connect.
type KiteSource struct {
	client      kiteClient
	exchange    models.Exchange
	limiter     *performance.RateLimiter
	retry       utils.RetryConfig
	logger      zerolog.Logger
	instruments map[string]models.Instrument
	mu          sync.RWMutex
}

// NewKiteSource creates a Kite source. It fails fast when no access token
// is configured.
func NewKiteSource(cfg KiteConfig, logger zerolog.Logger) (*KiteSource, error) {
	if cfg.APIKey == "" || cfg.AccessToken == "" {
		return nil, fmt.Errorf("kite api_key and access_token are required: %w", apperrors.ErrNotAuthenticated)
	}
	client := kiteconnect.New(cfg.APIKey)
	client.SetAccessToken(cfg.AccessToken)
	return newKiteSource(client, cfg, logger), nil
}

func newKiteSource(client kiteClient, cfg KiteConfig, logger zerolog.Logger) *KiteSource {
	if cfg.Exchange == "" {
		cfg.Exchange = models.NSE
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 3
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = utils.DefaultRetryConfig()
	}
	logger = logger.With().Str("source", "kite").Logger()
	if cfg.Retry.OnRetry == nil {
		cfg.Retry.OnRetry = func(attempt int, err error, delay time.Duration) {
			logger.Warn().Err(err).Int("attempt", attempt).Dur("backoff", delay).Msg("Kite request failed, retrying")
		}
	}
	return &KiteSource{
		client:      client,
		exchange:    cfg.Exchange,
		limiter:     performance.NewRateLimiter(cfg.RequestsPerSecond, 1),
		retry:       cfg.Retry,
		logger:      logger,
		instruments: make(map[string]models.Instrument),
	}
}

// Name implements Source.
func (k *KiteSource) Name() string { return "kite" }

// FetchBars implements Source with the "day" interval.
func (k *KiteSource) FetchBars(ctx context.Context, ticker string, from, to time.Time) ([]models.PriceBar, error) {
	symbol := NormalizeTicker(ticker)
	token, err := k.instrumentToken(ctx, symbol)
	if err != nil {
		return nil, apperrors.NewDataError(symbol, "fetch", "resolve instrument", err)
	}
	if to.IsZero() {
		to = time.Now()
	}
	if from.IsZero() {
		from = to.AddDate(-1, 0, 0)
	}

	start := time.Now()
	data, err := utils.RetryWithResult(ctx, k.retry, func() ([]kiteconnect.HistoricalData, error) {
		if err := k.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return k.client.GetHistoricalData(int(token), "day", from, to, false, false)
	})
	logging.LogAPICall(k.logger.With().Str("symbol", symbol).Logger(), "kite", "historical_data", time.Since(start), err)
	if err != nil {
		return nil, apperrors.NewDataError(symbol, "fetch", "get historical data", err)
	}

	bars := make([]models.PriceBar, len(data))
	for i, d := range data {
		bars[i] = models.PriceBar{
			Date:   dayUTC(d.Date.Time),
			Open:   d.Open,
			High:   d.High,
			Low:    d.Low,
			Close:  d.Close,
			Volume: int64(d.Volume),
		}
	}
	return finish(k.Name(), symbol, bars, dayUTC(from), dayUTC(to))
}

// Instruments fetches all equity instruments for the configured exchange.
func (k *KiteSource) Instruments(ctx context.Context) ([]models.Instrument, error) {
	start := time.Now()
	instruments, err := utils.RetryWithResult(ctx, k.retry, func() (kiteconnect.Instruments, error) {
		if err := k.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return k.client.GetInstruments()
	})
	logging.LogAPICall(k.logger, "kite", "instruments", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to get instruments: %w", err)
	}

	var result []models.Instrument
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, inst := range instruments {
		if inst.Exchange != string(k.exchange) {
			continue
		}
		m := models.Instrument{
			Token:    uint32(inst.InstrumentToken),
			Symbol:   inst.Tradingsymbol,
			Name:     inst.Name,
			Exchange: models.Exchange(inst.Exchange),
		}
		result = append(result, m)
		k.instruments[strings.ToUpper(inst.Tradingsymbol)] = m
	}
	return result, nil
}

func (k *KiteSource) instrumentToken(ctx context.Context, symbol string) (uint32, error) {
	k.mu.RLock()
	inst, ok := k.instruments[symbol]
	k.mu.RUnlock()
	if ok {
		return inst.Token, nil
	}

	// Fetch instruments if not cached
	if _, err := k.Instruments(ctx); err != nil {
		return 0, err
	}

	k.mu.RLock()
	inst, ok = k.instruments[symbol]
	k.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("instrument not found on %s: %s: %w", k.exchange, symbol, apperrors.ErrTickerInvalid)
	}
	return inst.Token, nil
}
