package marketdata

import (
	"fmt"
	"os"
	"strings"

	"github.com/gocarina/gocsv"

	apperrors "stock-analyzer/internal/errors"
)

const shenzhenSuffix = ".SZ"

// IsShenzhenCode reports whether code has the form ######.SZ.
func IsShenzhenCode(code string) bool {
	digits, ok := strings.CutSuffix(code, shenzhenSuffix)
	if !ok || len(digits) != 6 {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// FormatShenzhenCode upper-cases code and appends .SZ when missing.
func FormatShenzhenCode(code string) string {
	code = NormalizeTicker(code)
	if !strings.HasSuffix(code, shenzhenSuffix) {
		code += shenzhenSuffix
	}
	return code
}

// ValidateTicker normalises ticker and, for the SZSE exchange, checks the
// ######.SZ form.
func ValidateTicker(ticker, exchange string) (string, error) {
	t := NormalizeTicker(ticker)
	if t == "" {
		return "", fmt.Errorf("empty ticker: %w", apperrors.ErrTickerInvalid)
	}
	if strings.EqualFold(exchange, "SZSE") {
		t = FormatShenzhenCode(t)
		if !IsShenzhenCode(t) {
			return "", fmt.Errorf("%q is not a ######.SZ code: %w", ticker, apperrors.ErrTickerInvalid)
		}
	}
	return t, nil
}

type tickerRow struct {
	Code string `csv:"code"`
	Name string `csv:"name,omitempty"`
}

// LoadTickerList reads a CSV with a "code" column. When shenzhen is set
// every code must be a valid ######.SZ code.
func LoadTickerList(path string, shenzhen bool) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ticker list: %w", err)
	}
	defer f.Close()

	var rows []tickerRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse ticker list %s: %w", path, err)
	}

	codes := make([]string, 0, len(rows))
	for i, r := range rows {
		code := NormalizeTicker(r.Code)
		if code == "" {
			return nil, fmt.Errorf("row %d: missing code: %w", i+2, apperrors.ErrTickerInvalid)
		}
		if shenzhen && !IsShenzhenCode(code) {
			return nil, fmt.Errorf("row %d: malformed code %q: %w", i+2, r.Code, apperrors.ErrTickerInvalid)
		}
		codes = append(codes, code)
	}
	return codes, nil
}
