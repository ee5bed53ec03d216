// Package structure derives market structure from daily bars: fractal turning
// points, strokes joining opposite fractals, segments of three or more
// strokes and pivot zones where consecutive segments overlap.
package structure

import (
	"errors"
	"fmt"
	"math"
	"time"

	"stock-analyzer/internal/models"
)

// ErrNoStructure is returned when the bars contain too few turning points.
var ErrNoStructure = errors.New("no market structure found")

// FractalKind distinguishes local highs from local lows.
type FractalKind string

const (
	Top    FractalKind = "top"
	Bottom FractalKind = "bottom"
)

// Direction is the direction of a stroke, segment or trend.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// Fractal is a bar whose high (top) or low (bottom) is strictly beyond the
// k bars on either side.
type Fractal struct {
	Index int         `json:"index"`
	Date  time.Time   `json:"date"`
	Price float64     `json:"price"`
	Kind  FractalKind `json:"kind"`
}

// Stroke joins two fractals of opposite kind.
type Stroke struct {
	Start     Fractal   `json:"start"`
	End       Fractal   `json:"end"`
	Direction Direction `json:"direction"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
}

// Segment is a run of strokes that begins in Direction.
type Segment struct {
	Strokes   []Stroke  `json:"-"`
	Direction Direction `json:"direction"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
}

// Pivot is the overlap of three consecutive segments.
type Pivot struct {
	StartSegment int     `json:"start_segment"`
	EndSegment   int     `json:"end_segment"`
	High         float64 `json:"high"`
	Low          float64 `json:"low"`
}

// Result summarises the structure of a bar sequence.
type Result struct {
	Available   bool      `json:"available"`
	Trend       Direction `json:"trend,omitempty"`
	Support     float64   `json:"support,omitempty"`
	Resistance  float64   `json:"resistance,omitempty"`
	HasLevels   bool      `json:"has_levels"`
	LatestPivot *Pivot    `json:"latest_pivot,omitempty"`
	Fractals    int       `json:"fractal_count"`
	Strokes     int       `json:"stroke_count"`
	Segments    int       `json:"segment_count"`
	Error       string    `json:"error,omitempty"`
}

// Analyzer holds the structure thresholds.
type Analyzer struct {
	// K is the number of neighbouring bars a fractal must exceed on each side.
	K int
	// MinStrokeSpan is the minimum fractal-count distance between stroke ends.
	MinStrokeSpan int
	// MinSegmentStrokes is the minimum number of strokes in a segment.
	MinSegmentStrokes int
}

// NewAnalyzer returns an analyzer with k = 3, stroke span 3 and 3-stroke segments.
func NewAnalyzer() *Analyzer {
	return &Analyzer{K: 3, MinStrokeSpan: 3, MinSegmentStrokes: 3}
}

// Fractals finds top and bottom fractals.
func (a *Analyzer) Fractals(bars []models.PriceBar) []Fractal {
	k := a.K
	var out []Fractal
	for i := k; i < len(bars)-k; i++ {
		if a.isTop(bars, i) {
			out = append(out, Fractal{Index: i, Date: bars[i].Date, Price: bars[i].High, Kind: Top})
		} else if a.isBottom(bars, i) {
			out = append(out, Fractal{Index: i, Date: bars[i].Date, Price: bars[i].Low, Kind: Bottom})
		}
	}
	return out
}

func (a *Analyzer) isTop(bars []models.PriceBar, i int) bool {
	h := bars[i].High
	for j := i - a.K; j <= i+a.K; j++ {
		if j != i && bars[j].High >= h {
			return false
		}
	}
	return true
}

func (a *Analyzer) isBottom(bars []models.PriceBar, i int) bool {
	l := bars[i].Low
	for j := i - a.K; j <= i+a.K; j++ {
		if j != i && bars[j].Low <= l {
			return false
		}
	}
	return true
}

// Strokes joins each fractal to the first later fractal of the opposite kind
// that lies at least MinStrokeSpan fractals away; the next stroke starts from
// that end point.
func (a *Analyzer) Strokes(fractals []Fractal) []Stroke {
	var out []Stroke
	i := 0
	for i < len(fractals)-1 {
		start := fractals[i]
		next := -1
		for j := i + 1; j < len(fractals); j++ {
			if fractals[j].Kind != start.Kind && j-i >= a.MinStrokeSpan {
				next = j
				break
			}
		}
		if next < 0 {
			break
		}
		end := fractals[next]
		dir := Down
		if start.Kind == Bottom {
			dir = Up
		}
		out = append(out, Stroke{
			Start:     start,
			End:       end,
			Direction: dir,
			High:      math.Max(start.Price, end.Price),
			Low:       math.Min(start.Price, end.Price),
		})
		i = next
	}
	return out
}

// Segments groups strokes into runs of at least MinSegmentStrokes. A run
// closes when a stroke against its opening direction arrives after the
// minimum has been collected; that stroke opens the next run.
func (a *Analyzer) Segments(strokes []Stroke) []Segment {
	var out []Segment
	i := 0
	for i < len(strokes) {
		dir := strokes[i].Direction
		run := []Stroke{strokes[i]}
		closed := false
		j := i + 1
		for ; j < len(strokes); j++ {
			if strokes[j].Direction != dir && len(run) >= a.MinSegmentStrokes {
				closed = true
				break
			}
			run = append(run, strokes[j])
		}
		if !closed && len(run) < a.MinSegmentStrokes {
			break
		}
		out = append(out, newSegment(run, dir))
		i = j
	}
	return out
}

func newSegment(strokes []Stroke, dir Direction) Segment {
	seg := Segment{Strokes: strokes, Direction: dir, High: math.Inf(-1), Low: math.Inf(1)}
	for _, s := range strokes {
		seg.High = math.Max(seg.High, s.High)
		seg.Low = math.Min(seg.Low, s.Low)
	}
	return seg
}

// Pivots finds every window of three consecutive segments whose price ranges
// share a non-empty overlap.
func (a *Analyzer) Pivots(segments []Segment) []Pivot {
	var out []Pivot
	for i := 0; i+2 < len(segments); i++ {
		high := math.Min(segments[i].High, math.Min(segments[i+1].High, segments[i+2].High))
		low := math.Max(segments[i].Low, math.Max(segments[i+1].Low, segments[i+2].Low))
		if high > low {
			out = append(out, Pivot{StartSegment: i, EndSegment: i + 2, High: high, Low: low})
		}
	}
	return out
}

// Analyze runs the full structure analysis. Failures are reported through an
// unavailable Result together with the error.
func (a *Analyzer) Analyze(bars []models.PriceBar) (Result, error) {
	fractals := a.Fractals(bars)
	strokes := a.Strokes(fractals)
	segments := a.Segments(strokes)
	pivots := a.Pivots(segments)

	res := Result{
		Fractals: len(fractals),
		Strokes:  len(strokes),
		Segments: len(segments),
	}

	switch {
	case len(segments) > 0:
		res.Trend = segments[len(segments)-1].Direction
	case len(strokes) > 0:
		res.Trend = strokes[len(strokes)-1].Direction
	default:
		err := fmt.Errorf("%w: %d fractals, %d strokes", ErrNoStructure, len(fractals), len(strokes))
		res.Error = err.Error()
		return res, err
	}
	res.Available = true

	if len(pivots) > 0 {
		latest := pivots[len(pivots)-1]
		res.LatestPivot = &latest
		res.Support, res.Resistance = latest.Low, latest.High
		res.HasLevels = true
	} else if len(segments) >= 3 {
		recent := newSegment(nil, "")
		for _, s := range segments[len(segments)-3:] {
			recent.High = math.Max(recent.High, s.High)
			recent.Low = math.Min(recent.Low, s.Low)
		}
		res.Support, res.Resistance = recent.Low, recent.High
		res.HasLevels = true
	}

	return res, nil
}
