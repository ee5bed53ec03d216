package marketdata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	apperrors "stock-analyzer/internal/errors"
	"stock-analyzer/internal/models"
)

// csvDate accepts YYYY-MM-DD, RFC 3339 and "YYYY-MM-DD HH:MM:SS".
type csvDate struct {
	time.Time
}

var csvDateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05", "2006/01/02"}

// UnmarshalCSV implements gocsv.TypeUnmarshaller.
func (d *csvDate) UnmarshalCSV(s string) error {
	s = strings.TrimSpace(s)
	for _, layout := range csvDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = dayUTC(t)
			return nil
		}
	}
	return fmt.Errorf("unrecognised date %q", s)
}

// MarshalCSV implements gocsv.TypeMarshaller.
func (d csvDate) MarshalCSV() (string, error) {
	return d.Format("2006-01-02"), nil
}

type csvBar struct {
	Date   csvDate `csv:"date"`
	Open   float64 `csv:"open"`
	High   float64 `csv:"high"`
	Low    float64 `csv:"low"`
	Close  float64 `csv:"close"`
	Volume float64 `csv:"volume"`
}

// CSVSource reads <TICKER>.csv files from a directory.
type CSVSource struct {
	Dir string
}

// NewCSVSource creates a source rooted at dir.
func NewCSVSource(dir string) *CSVSource {
	return &CSVSource{Dir: dir}
}

// Name implements Source.
func (s *CSVSource) Name() string { return "csv" }

// Path returns the file a ticker is read from.
func (s *CSVSource) Path(ticker string) string {
	return filepath.Join(s.Dir, NormalizeTicker(ticker)+".csv")
}

// FetchBars implements Source.
func (s *CSVSource) FetchBars(ctx context.Context, ticker string, from, to time.Time) ([]models.PriceBar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path(ticker))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperrors.NewDataError(ticker, "fetch", "no CSV file at "+s.Path(ticker), nil)
		}
		return nil, apperrors.NewDataError(ticker, "fetch", "open CSV", err)
	}
	defer f.Close()

	bars, err := ReadCSV(f)
	if err != nil {
		return nil, apperrors.NewDataError(ticker, "fetch", "parse "+s.Path(ticker), err)
	}
	return finish(s.Name(), ticker, bars, from, to)
}

// ReadCSV parses date,open,high,low,close,volume rows.
func ReadCSV(r io.Reader) ([]models.PriceBar, error) {
	var rows []csvBar
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, err
	}
	bars := make([]models.PriceBar, len(rows))
	for i, row := range rows {
		bars[i] = models.PriceBar{
			Date:   row.Date.Time,
			Open:   row.Open,
			High:   row.High,
			Low:    row.Low,
			Close:  row.Close,
			Volume: int64(row.Volume),
		}
	}
	return bars, nil
}

// WriteCSV writes bars in the format ReadCSV accepts.
func WriteCSV(w io.Writer, bars []models.PriceBar) error {
	rows := make([]csvBar, len(bars))
	for i, b := range bars {
		rows[i] = csvBar{
			Date:   csvDate{b.Date},
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: float64(b.Volume),
		}
	}
	return gocsv.Marshal(rows, w)
}
