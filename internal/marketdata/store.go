package marketdata

import (
	"context"
	"time"

	apperrors "stock-analyzer/internal/errors"
	"stock-analyzer/internal/models"
	"stock-analyzer/internal/store"
)

// StoreSource serves bars from the SQLite history, refetching from an
// upstream source when the stored history is stale.
type StoreSource struct {
	sync *store.SyncManager
}

// NewStoreSource wraps a sync manager. Its fetcher may be nil for a
// store-only source.
func NewStoreSource(sm *store.SyncManager) *StoreSource {
	return &StoreSource{sync: sm}
}

// Name implements Source.
func (s *StoreSource) Name() string { return "store" }

// FetchBars implements Source.
func (s *StoreSource) FetchBars(ctx context.Context, ticker string, from, to time.Time) ([]models.PriceBar, error) {
	bars, _, err := s.sync.GetBars(ctx, NormalizeTicker(ticker), from, to)
	if err != nil {
		return nil, apperrors.NewDataError(ticker, "fetch", "stored history", err)
	}
	return finish(s.Name(), ticker, bars, from, to)
}
