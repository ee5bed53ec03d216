// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"stock-analyzer/internal/models"
)

// BarStore defines the interface for price history persistence.
type BarStore interface {
	// Bars
	SaveBars(ctx context.Context, ticker string, bars []models.PriceBar) error
	GetBars(ctx context.Context, ticker string, r DateRange) ([]models.PriceBar, error)
	GetBarsFreshness(ctx context.Context, ticker string) (time.Time, error)
	ListTickers(ctx context.Context) ([]string, error)

	// Sync
	GetLastSync(key string) time.Time
	SetLastSync(key string, t time.Time) error

	// Lifecycle
	Close() error
}

// DateRange represents an inclusive date range. A zero bound is open.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && t.After(r.End) {
		return false
	}
	return true
}
