package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "stock-analyzer/internal/errors"
	"stock-analyzer/internal/models"
	"stock-analyzer/internal/report"
)

// run executes the root command against configDir and returns stdout.
func run(t *testing.T, configDir string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", configDir}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := run(t, t.TempDir(), "version", "--json")
	require.NoError(t, err)

	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, Version, got["version"])
}

func TestConfigCmds(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, dir, "config", "validate", "--json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"valid": true}`, out)
	assert.FileExists(t, filepath.Join(dir, "config.toml"))
	assert.FileExists(t, filepath.Join(dir, "credentials.toml"))

	out, err = run(t, dir, "config", "path", "--json")
	require.NoError(t, err)
	var paths map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &paths))
	assert.Equal(t, dir, paths["path"])

	out, err = run(t, dir, "config", "show", "--yaml", "--source", "csv")
	require.NoError(t, err)
	assert.Contains(t, out, "Source: csv")

	out, err = run(t, dir, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "synthetic")
}

func TestConfigRejectsUnknownSource(t *testing.T) {
	_, err := run(t, t.TempDir(), "config", "show", "--source", "ftp")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConfigInvalid)
}

func TestSignalCmd(t *testing.T) {
	dir := t.TempDir()
	cases := map[[2]string]models.SignalLabel{
		{"100", "106"}:  models.StrongBuy,
		{"100", "103"}:  models.Buy,
		{"100", "100"}:  models.Hold,
		{"100", "97"}:   models.Sell,
		{"100", "94.9"}: models.StrongSell,
	}
	for in, want := range cases {
		out, err := run(t, dir, "signal", in[0], in[1], "--json")
		require.NoError(t, err)
		var s models.TradingSignal
		require.NoError(t, json.Unmarshal([]byte(out), &s))
		assert.Equal(t, want, s.Label, in)
	}

	out, err := run(t, dir, "signal", "100", "106")
	require.NoError(t, err)
	assert.Contains(t, out, "Strong Buy")
	assert.Contains(t, out, "6.00%")

	_, err = run(t, dir, "signal", "abc", "1")
	assert.ErrorIs(t, err, apperrors.ErrConfigInvalid)
	_, err = run(t, dir, "signal", "100", "NaN")
	assert.ErrorIs(t, err, apperrors.ErrConfigInvalid)
	_, err = run(t, dir, "signal", "Inf", "100")
	assert.ErrorIs(t, err, apperrors.ErrConfigInvalid)
	_, err = run(t, dir, "signal", "1")
	assert.Error(t, err)
}

func TestIndicatorsCmd(t *testing.T) {
	out, err := run(t, t.TempDir(), "indicators", "demo", "--json")
	require.NoError(t, err)

	var got struct {
		Ticker     string          `json:"ticker"`
		Indicators report.Snapshot `json:"indicators"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "DEMO", got.Ticker)
	require.NotNil(t, got.Indicators.RSI)
	assert.True(t, *got.Indicators.RSI >= 0 && *got.Indicators.RSI <= 100)
	assert.NotNil(t, got.Indicators.MA[20])

	out, err = run(t, t.TempDir(), "indicators", "demo")
	require.NoError(t, err)
	assert.Contains(t, out, "MA20")
	assert.Contains(t, out, "Technical view")
}

func TestRiskCmd(t *testing.T) {
	out, err := run(t, t.TempDir(), "risk", "demo")
	require.NoError(t, err)
	assert.Contains(t, out, "Volatility")
	assert.Contains(t, out, "Sharpe ratio")
}

func TestAnalyzeCmd_NoPredict(t *testing.T) {
	out, err := run(t, t.TempDir(), "analyze", "demo", "--no-predict", "--json")
	require.NoError(t, err)

	var r report.Report
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	assert.Equal(t, "DEMO", r.Ticker)
	assert.True(t, r.Risk.Available)
	assert.Nil(t, r.Prediction)
	assert.Nil(t, r.Signal)
	assert.NotEmpty(t, r.PredictionErr)
}

func TestAnalyzeCmd_BadRange(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, dir, "analyze", "demo", "--from", "2024-13-01")
	assert.ErrorIs(t, err, apperrors.ErrConfigInvalid)

	_, err = run(t, dir, "analyze", "demo", "--from", "2024-06-01", "--to", "2024-01-01")
	assert.ErrorIs(t, err, apperrors.ErrConfigInvalid)
}

func TestReportCmd(t *testing.T) {
	dir := t.TempDir()
	md := filepath.Join(dir, "demo.md")
	_, err := run(t, dir, "report", "demo", "--no-predict", "--out", md)
	require.NoError(t, err)
	body, err := os.ReadFile(md)
	require.NoError(t, err)
	assert.Contains(t, string(body), "# Analysis report: DEMO")

	html := filepath.Join(dir, "demo.html")
	_, err = run(t, dir, "report", "demo", "--no-predict", "--format", "html", "--out", html)
	require.NoError(t, err)
	body, err = os.ReadFile(html)
	require.NoError(t, err)
	assert.Contains(t, string(body), "<!DOCTYPE html>")

	_, err = run(t, dir, "report", "demo", "--format", "pdf")
	assert.ErrorIs(t, err, apperrors.ErrConfigInvalid)
}

func TestDataExportFeedsCSVSource(t *testing.T) {
	dir := t.TempDir()
	csvDir := filepath.Join(dir, "csv")
	require.NoError(t, os.MkdirAll(csvDir, 0755))

	_, err := run(t, dir, "data", "export", "demo", "--out", filepath.Join(csvDir, "DEMO.csv"))
	require.NoError(t, err)

	synthetic, err := run(t, dir, "risk", "demo", "--json")
	require.NoError(t, err)
	fromCSV, err := run(t, dir, "risk", "demo", "--json", "--source", "csv", "--csv-dir", csvDir)
	require.NoError(t, err)
	assert.JSONEq(t, synthetic, fromCSV)

	_, err = run(t, dir, "risk", "missing", "--source", "csv", "--csv-dir", csvDir)
	assert.ErrorIs(t, err, apperrors.ErrDataUnavailable)
}

func TestDataSyncStatusAndStoreSource(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, dir, "data", "sync", "demo", "other", "--json")
	require.NoError(t, err)
	var results []syncResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Empty(t, r.Error)
		assert.Greater(t, r.Bars, 200)
	}

	out, err = run(t, dir, "data", "status", "--json")
	require.NoError(t, err)
	var rows []statusRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 2)
	for _, r := range rows {
		assert.False(t, r.Stale, r.Ticker)
	}

	synthetic, err := run(t, dir, "risk", "demo", "--json")
	require.NoError(t, err)
	stored, err := run(t, dir, "risk", "demo", "--json", "--source", "store")
	require.NoError(t, err)
	assert.JSONEq(t, synthetic, stored)

	// the store has no upstream, so unsynced tickers fail
	_, err = run(t, dir, "risk", "never", "--source", "store")
	assert.ErrorIs(t, err, apperrors.ErrDataUnavailable)
}

func TestDataTickersCmd(t *testing.T) {
	dir := t.TempDir()
	list := filepath.Join(dir, "tickers.csv")
	require.NoError(t, os.WriteFile(list, []byte("code,name\nreliance,Reliance\n INFY ,Infosys\n"), 0644))

	out, err := run(t, dir, "data", "tickers", list, "--json")
	require.NoError(t, err)
	var codes []string
	require.NoError(t, json.Unmarshal([]byte(out), &codes))
	assert.Equal(t, []string{"RELIANCE", "INFY"}, codes)
}

func TestExamplesCmd(t *testing.T) {
	out, err := run(t, t.TempDir(), "examples")
	require.NoError(t, err)
	assert.Contains(t, out, "analyzer analyze RELIANCE")
}
