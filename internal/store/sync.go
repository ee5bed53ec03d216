package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"stock-analyzer/internal/models"
)

// Fetcher loads bars from an upstream data source.
type Fetcher interface {
	FetchBars(ctx context.Context, ticker string, from, to time.Time) ([]models.PriceBar, error)
}

// SyncStatus represents the sync status of one ticker.
type SyncStatus struct {
	Ticker       string
	LastSync     time.Time
	LatestBar    time.Time
	IsStale      bool
	StaleMinutes int
}

// SyncConfig holds configuration for the sync manager.
type SyncConfig struct {
	// StaleAfter is how old a ticker's last sync can be before it is refetched.
	StaleAfter time.Duration
}

// DefaultSyncConfig returns default sync configuration.
func DefaultSyncConfig() *SyncConfig {
	return &SyncConfig{StaleAfter: 12 * time.Hour}
}

func syncKey(ticker string) string {
	return "bars:" + strings.ToUpper(ticker)
}

// SyncManager keeps stored bar history fresh and serves reads through it.
type SyncManager struct {
	store   BarStore
	fetcher Fetcher
	config  *SyncConfig
	logger  zerolog.Logger
	now     func() time.Time
}

// NewSyncManager creates a new sync manager.
func NewSyncManager(store BarStore, fetcher Fetcher, config *SyncConfig, logger zerolog.Logger) *SyncManager {
	if config == nil {
		config = DefaultSyncConfig()
	}
	return &SyncManager{
		store:   store,
		fetcher: fetcher,
		config:  config,
		logger:  logger,
		now:     time.Now,
	}
}

// GetSyncStatus returns the sync status for ticker.
func (sm *SyncManager) GetSyncStatus(ctx context.Context, ticker string) (*SyncStatus, error) {
	lastSync := sm.store.GetLastSync(syncKey(ticker))
	latest, err := sm.store.GetBarsFreshness(ctx, ticker)
	if err != nil {
		return nil, err
	}

	age := sm.now().Sub(lastSync)
	return &SyncStatus{
		Ticker:       strings.ToUpper(ticker),
		LastSync:     lastSync,
		LatestBar:    latest,
		IsStale:      lastSync.IsZero() || age > sm.config.StaleAfter,
		StaleMinutes: int(age.Minutes()),
	}, nil
}

// Sync fetches [from, to] from upstream, saves it and marks ticker synced.
func (sm *SyncManager) Sync(ctx context.Context, ticker string, from, to time.Time) (int, error) {
	if sm.fetcher == nil {
		return 0, fmt.Errorf("no upstream source configured")
	}
	bars, err := sm.fetcher.FetchBars(ctx, ticker, from, to)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch %s: %w", ticker, err)
	}
	if err := sm.store.SaveBars(ctx, ticker, bars); err != nil {
		return 0, err
	}
	if err := sm.store.SetLastSync(syncKey(ticker), sm.now()); err != nil {
		return len(bars), err
	}
	sm.logger.Debug().Str("ticker", ticker).Int("bars", len(bars)).Msg("Synced bar history")
	return len(bars), nil
}

// GetBars returns stored bars when they are fresh, otherwise refetches. If
// the refetch fails and stored bars exist they are returned with a warning.
// The bool reports whether the result came from the store.
func (sm *SyncManager) GetBars(ctx context.Context, ticker string, from, to time.Time) ([]models.PriceBar, bool, error) {
	cached, err := sm.store.GetBars(ctx, ticker, DateRange{Start: from, End: to})
	if err != nil {
		return nil, false, fmt.Errorf("failed to get stored bars: %w", err)
	}

	status, err := sm.GetSyncStatus(ctx, ticker)
	if err != nil {
		return nil, false, err
	}
	if !status.IsStale && len(cached) > 0 {
		return cached, true, nil
	}
	if sm.fetcher == nil {
		if len(cached) > 0 {
			return cached, true, nil
		}
		return nil, false, fmt.Errorf("no stored bars for %s", ticker)
	}

	if _, err := sm.Sync(ctx, ticker, from, to); err != nil {
		if len(cached) > 0 {
			sm.logger.Warn().Err(err).Str("ticker", ticker).
				Str("freshness", FormatSyncStatus(status)).
				Msg("Refetch failed, serving stored bars")
			return cached, true, nil
		}
		return nil, false, fmt.Errorf("failed to fetch bars and none stored: %w", err)
	}

	bars, err := sm.store.GetBars(ctx, ticker, DateRange{Start: from, End: to})
	if err != nil {
		return nil, false, err
	}
	return bars, false, nil
}

// FormatSyncStatus returns a human-readable sync status string.
func FormatSyncStatus(status *SyncStatus) string {
	if status.LastSync.IsZero() {
		return fmt.Sprintf("%s: never synced", status.Ticker)
	}

	var ageStr string
	switch age := time.Duration(status.StaleMinutes) * time.Minute; {
	case age < time.Minute:
		ageStr = "just now"
	case age < time.Hour:
		ageStr = fmt.Sprintf("%d minutes ago", int(age.Minutes()))
	case age < 24*time.Hour:
		ageStr = fmt.Sprintf("%d hours ago", int(age.Hours()))
	default:
		ageStr = fmt.Sprintf("%d days ago", int(age.Hours()/24))
	}

	latest := "none"
	if !status.LatestBar.IsZero() {
		latest = status.LatestBar.Format("2006-01-02")
	}
	if status.IsStale {
		return fmt.Sprintf("%s: stale (synced %s, latest bar %s)", status.Ticker, ageStr, latest)
	}
	return fmt.Sprintf("%s: fresh (synced %s, latest bar %s)", status.Ticker, ageStr, latest)
}
