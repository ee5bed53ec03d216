package structure

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-analyzer/internal/models"
)

// waveBars returns n bars whose close follows a cosine with a 10-bar period,
// so tops land on multiples of 10 and bottoms on odd multiples of 5.
func waveBars(n int) []models.PriceBar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]models.PriceBar, n)
	for i := range bars {
		c := 100 + 10*math.Cos(2*math.Pi*float64(i)/10)
		bars[i] = models.PriceBar{
			Date: start.AddDate(0, 0, i), Open: c, High: c + 0.5, Low: c - 0.5, Close: c, Volume: 1000,
		}
	}
	return bars
}

func TestFractals_Wave(t *testing.T) {
	a := NewAnalyzer()
	fractals := a.Fractals(waveBars(40))

	require.NotEmpty(t, fractals)
	assert.Equal(t, 5, fractals[0].Index)
	assert.Equal(t, Bottom, fractals[0].Kind)
	assert.Equal(t, 10, fractals[1].Index)
	assert.Equal(t, Top, fractals[1].Kind)
	for i := 1; i < len(fractals); i++ {
		assert.NotEqual(t, fractals[i-1].Kind, fractals[i].Kind, "fractals alternate")
	}
}

func TestStrokes_RespectMinimumSpan(t *testing.T) {
	a := NewAnalyzer()
	fractals := a.Fractals(waveBars(200))
	strokes := a.Strokes(fractals)

	require.Len(t, strokes, 12)
	assert.Equal(t, Up, strokes[0].Direction)
	assert.Equal(t, fractals[0].Index, strokes[0].Start.Index)
	assert.Equal(t, fractals[3].Index, strokes[0].End.Index)
	assert.Equal(t, strokes[0].End, strokes[1].Start)
	assert.Equal(t, Down, strokes[1].Direction)
}

func TestAnalyze_Wave(t *testing.T) {
	res, err := NewAnalyzer().Analyze(waveBars(200))
	require.NoError(t, err)

	assert.True(t, res.Available)
	assert.Equal(t, 39, res.Fractals)
	assert.Equal(t, 12, res.Strokes)
	assert.Equal(t, 4, res.Segments)
	assert.Equal(t, Down, res.Trend)
	require.NotNil(t, res.LatestPivot)
	assert.True(t, res.HasLevels)
	assert.InDelta(t, 89.5, res.Support, 1e-9)
	assert.InDelta(t, 110.5, res.Resistance, 1e-9)
}

func TestSegments_NeedThreeStrokes(t *testing.T) {
	a := NewAnalyzer()
	strokes := []Stroke{
		{Direction: Up, High: 10, Low: 5},
		{Direction: Down, High: 9, Low: 6},
	}
	assert.Empty(t, a.Segments(strokes))
}

func TestPivots_RequireOverlap(t *testing.T) {
	a := NewAnalyzer()
	segments := []Segment{
		{High: 10, Low: 5},
		{High: 20, Low: 15},
		{High: 12, Low: 8},
	}
	assert.Empty(t, a.Pivots(segments))

	segments[1] = Segment{High: 11, Low: 7}
	pivots := a.Pivots(segments)
	require.Len(t, pivots, 1)
	assert.Equal(t, 10.0, pivots[0].High)
	assert.Equal(t, 8.0, pivots[0].Low)
}

func TestAnalyze_MonotonicHasNoStructure(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]models.PriceBar, 50)
	for i := range bars {
		c := 100 + float64(i)
		bars[i] = models.PriceBar{Date: start.AddDate(0, 0, i), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1}
	}

	res, err := NewAnalyzer().Analyze(bars)
	assert.ErrorIs(t, err, ErrNoStructure)
	assert.False(t, res.Available)
	assert.NotEmpty(t, res.Error)
}
