package cli

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"stock-analyzer/internal/models"
	"stock-analyzer/pkg/utils"
)

// moneyStyle is how an exchange prints prices: its currency symbol and the
// digit group size after the first three (2 for lakh/crore, 3 for western).
type moneyStyle struct {
	symbol string
	group  int
}

var moneyStyles = map[models.Exchange]moneyStyle{
	models.NSE:  {"₹", 2},
	models.BSE:  {"₹", 2},
	models.SZSE: {"¥", 3},
}

// FormatCurrency formats a price with two decimals in the currency and digit
// grouping of exchange. Unknown exchanges print as NSE.
func FormatCurrency(amount float64, exchange models.Exchange) string {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return "n/a"
	}
	style, ok := moneyStyles[exchange]
	if !ok {
		style = moneyStyles[models.NSE]
	}

	digits := strconv.FormatFloat(math.Abs(amount), 'f', 2, 64)
	whole, frac, _ := strings.Cut(digits, ".")
	out := style.symbol + groupDigits(whole, style.group) + "." + frac
	if amount < 0 && strings.Trim(digits, "0.") != "" {
		out = "-" + out
	}
	return out
}

// FormatIndianCurrency formats rupees in lakh/crore grouping: 1,00,00,000.
func FormatIndianCurrency(amount float64) string {
	return FormatCurrency(amount, models.NSE)
}

// groupDigits puts a comma before the last three digits, then every size
// digits further left.
func groupDigits(s string, size int) string {
	if len(s) <= 3 {
		return s
	}
	head, tail := s[:len(s)-3], s[len(s)-3:]
	var groups []string
	for len(head) > size {
		groups = append([]string{head[len(head)-size:]}, groups...)
		head = head[:len(head)-size]
	}
	groups = append([]string{head}, groups...)
	return strings.Join(append(groups, tail), ",")
}

// FormatPercent formats a percentage with sign.
func FormatPercent(value float64) string {
	return utils.FormatPercent(value)
}

// volumeUnits are Indian units, largest first.
var volumeUnits = []struct {
	size   float64
	suffix string
}{
	{1e7, "Cr"},
	{1e5, "L"},
	{1e3, "K"},
}

// FormatVolume formats volume in crore, lakh or thousand units.
func FormatVolume(volume int64) string {
	for _, u := range volumeUnits {
		if float64(volume) >= u.size {
			return fmt.Sprintf("%.2f %s", float64(volume)/u.size, u.suffix)
		}
	}
	return strconv.FormatInt(volume, 10)
}

// FormatVolumeFor picks Indian or western units by exchange.
func FormatVolumeFor(volume int64, exchange models.Exchange) string {
	if exchange == models.SZSE {
		return utils.FormatCompact(float64(volume))
	}
	return FormatVolume(volume)
}

// FormatDate formats a bar date. Bar dates are UTC midnight of the
// trading day.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("02-Jan-2006")
}

// FormatDateTime formats a timestamp in the exchange's time zone.
func FormatDateTime(t time.Time, exchange models.Exchange) string {
	if t.IsZero() {
		return "-"
	}
	return t.In(utils.ExchangeLocation(exchange)).Format("02-Jan-2006 15:04:05 MST")
}

// FormatDuration prints the two largest units of d: "42s", "3m 5s",
// "2h 5m", "1d 4h".
func FormatDuration(d time.Duration) string {
	secs := int(d.Seconds())
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", secs)
	case d < time.Hour:
		return fmt.Sprintf("%dm %ds", secs/60, secs%60)
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh %dm", secs/3600, secs/60%60)
	}
	return fmt.Sprintf("%dd %dh", secs/86400, secs/3600%24)
}

// FormatConfidence formats a 0..1 confidence as a percentage.
func FormatConfidence(conf float64) string {
	if math.IsNaN(conf) || math.IsInf(conf, 0) {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", conf*100)
}

// FormatChange formats a price change.
func FormatChange(change, changePct float64) string {
	sign := ""
	if change > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.2f (%s%.2f%%)", sign, change, sign, changePct)
}
