// Package cache stores prediction results keyed by ticker and as-of date.
//
// Entries are written with an explicit TTL and can be deleted explicitly.
// Concurrent writers for the same key are last-writer-wins.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apperrors "stock-analyzer/internal/errors"
	"stock-analyzer/internal/models"
)

// Key identifies a cached prediction.
type Key struct {
	Ticker string
	AsOf   time.Time
}

// NewKey builds a key for the last bar of bars.
func NewKey(ticker string, bars []models.PriceBar) Key {
	return Key{Ticker: ticker, AsOf: models.LastDate(bars)}
}

// String renders the key as TICKER:YYYY-MM-DD.
func (k Key) String() string {
	return strings.ToUpper(k.Ticker) + ":" + k.AsOf.UTC().Format("2006-01-02")
}

// Cache is a prediction store with explicit invalidation.
// Get returns an error wrapping apperrors.ErrCacheMiss when nothing usable is stored.
type Cache interface {
	Get(ctx context.Context, key Key) (*models.PredictionResult, error)
	Set(ctx context.Context, key Key, value *models.PredictionResult, ttl time.Duration) error
	Delete(ctx context.Context, key Key) error
	Close() error
}

func miss(key Key) error {
	return fmt.Errorf("%s: %w", key, apperrors.ErrCacheMiss)
}

// IsMiss reports whether err is a cache miss.
func IsMiss(err error) bool {
	return apperrors.Is(err, apperrors.ErrCacheMiss)
}

// Encode serialises a prediction for byte-oriented backends.
func Encode(value *models.PredictionResult) ([]byte, error) {
	if value == nil {
		return nil, fmt.Errorf("cache: nil value")
	}
	return json.Marshal(value)
}

// Decode is the inverse of Encode.
func Decode(data []byte) (*models.PredictionResult, error) {
	var out models.PredictionResult
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("cache: decode entry: %w", err)
	}
	return &out, nil
}
