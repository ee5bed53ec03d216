package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "stock-analyzer/internal/errors"
	"stock-analyzer/internal/models"
	"stock-analyzer/internal/pipeline"
	"stock-analyzer/internal/report"
)

type fakeAnalyzer struct {
	err  error
	last pipeline.Request
}

func (f *fakeAnalyzer) Run(ctx context.Context, req pipeline.Request) (*report.Report, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	bars := []models.PriceBar{
		{Date: time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), Open: 10, High: 11, Low: 9, Close: 10, Volume: 100},
		{Date: time.Date(2024, 6, 4, 0, 0, 0, 0, time.UTC), Open: 10, High: 11, Low: 9, Close: 10.4, Volume: 100},
	}
	return report.Build(report.Input{
		Ticker:     strings.ToUpper(req.Ticker),
		Bars:       bars,
		Risk:       models.RiskMetrics{Volatility: 12, Available: true},
		Prediction: &models.PredictionResult{Horizon: 5, CurrentPrice: 10.4, PredictedPrice: 9.8},
	}), nil
}

func serve(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func TestReport_JSON(t *testing.T) {
	a := &fakeAnalyzer{}
	s := New(a, Options{}, zerolog.Nop())

	rec := serve(t, s, "/api/v1/report/abc?refresh=true&from=2024-01-01")
	require.Equal(t, http.StatusOK, rec.Code)

	var body report.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ABC", body.Ticker)
	require.NotNil(t, body.Signal)
	assert.Equal(t, models.StrongSell, body.Signal.Label)

	assert.Equal(t, "abc", a.last.Ticker)
	assert.True(t, a.last.Refresh)
	assert.False(t, a.last.SkipPrediction)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), a.last.From)
	assert.True(t, a.last.To.IsZero())
}

func TestReport_Formats(t *testing.T) {
	s := New(&fakeAnalyzer{}, Options{}, zerolog.Nop())

	rec := serve(t, s, "/api/v1/report/abc?format=markdown")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/markdown")
	assert.Contains(t, rec.Body.String(), "# Analysis report: ABC")

	rec = serve(t, s, "/api/v1/report/abc?format=html")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<!DOCTYPE html>")
}

func TestReport_BadRequest(t *testing.T) {
	s := New(&fakeAnalyzer{}, Options{}, zerolog.Nop())

	for _, target := range []string{
		"/api/v1/report/abc?format=pdf",
		"/api/v1/report/abc?from=yesterday",
		"/api/v1/report/abc?refresh=maybe",
	} {
		rec := serve(t, s, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestReport_ErrorStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{apperrors.NewDataError("X", "fetch", "no rows", nil), http.StatusNotFound},
		{apperrors.Wrap(apperrors.ErrTickerInvalid, "ABC"), http.StatusBadRequest},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		s := New(&fakeAnalyzer{err: tc.err}, Options{}, zerolog.Nop())
		rec := serve(t, s, "/api/v1/report/x")
		assert.Equal(t, tc.want, rec.Code, tc.err.Error())

		var body ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, tc.want, body.Status)
		assert.Equal(t, tc.err.Error(), body.Error)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	metrics := pipeline.NewMetrics()
	metrics.Reports.Inc()
	s := New(&fakeAnalyzer{}, Options{Gatherer: metrics.Registry}, zerolog.Nop())

	rec := serve(t, s, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = serve(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "stock_analyzer_pipeline_reports_total 1")

	bare := New(&fakeAnalyzer{}, Options{}, zerolog.Nop())
	assert.Equal(t, http.StatusNotFound, serve(t, bare, "/metrics").Code)
}
