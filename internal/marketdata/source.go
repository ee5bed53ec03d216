// Package marketdata loads daily price bars from the configured source.
//
// Every source returns bars sorted ascending by date with duplicate dates
// removed, so the result always satisfies models.CheckBars ordering.
package marketdata

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	apperrors "stock-analyzer/internal/errors"
	"stock-analyzer/internal/models"
)

// Source fetches daily bars for a ticker in [from, to].
type Source interface {
	Name() string
	FetchBars(ctx context.Context, ticker string, from, to time.Time) ([]models.PriceBar, error)
}

// Clean sorts bars by date, keeps the last bar seen for each date and drops
// bars outside [from, to]. Zero bounds are open.
func Clean(bars []models.PriceBar, from, to time.Time) []models.PriceBar {
	out := make([]models.PriceBar, 0, len(bars))
	for _, b := range bars {
		if !from.IsZero() && b.Date.Before(from) {
			continue
		}
		if !to.IsZero() && b.Date.After(to) {
			continue
		}
		out = append(out, b)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })

	w := 0
	for i := range out {
		if w > 0 && out[i].Date.Equal(out[w-1].Date) {
			out[w-1] = out[i]
			continue
		}
		out[w] = out[i]
		w++
	}
	return out[:w]
}

// finish applies Clean and turns an empty result into a DataError.
func finish(source, ticker string, bars []models.PriceBar, from, to time.Time) ([]models.PriceBar, error) {
	bars = Clean(bars, from, to)
	if len(bars) == 0 {
		return nil, apperrors.NewDataError(ticker, "fetch",
			fmt.Sprintf("%s returned no bars between %s and %s", source, fmtDate(from), fmtDate(to)), nil)
	}
	return bars, nil
}

func fmtDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}

// HistoryRange returns [to - days, to] truncated to whole days in UTC.
func HistoryRange(to time.Time, days int) (time.Time, time.Time) {
	end := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return end.AddDate(0, 0, -days), end
}

// NormalizeTicker trims and upper-cases a ticker.
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// dayUTC truncates t to midnight UTC of its calendar day.
func dayUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
