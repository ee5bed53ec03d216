package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":  zerolog.DebugLevel,
		"WARN":   zerolog.WarnLevel,
		" error": zerolog.ErrorLevel,
		"off":    zerolog.Disabled,
		"":       zerolog.InfoLevel,
		"loud":   zerolog.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNewLoggerWithConfig_FileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "analyzer.log")
	logger := NewLoggerWithConfig(LogConfig{Level: "warn", File: true, FilePath: path, MaxSize: 1})

	logger.Info().Msg("dropped")
	logger.Warn().Msg("kept")

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(body), "kept")
	assert.NotContains(t, string(body), "dropped")
}

func TestLogStage(t *testing.T) {
	var buf bytes.Buffer
	logger := WithTicker(zerolog.New(&buf).Level(zerolog.DebugLevel), "INFY")

	LogStage(logger, "risk", time.Millisecond, errors.New("too few bars"))

	var ev map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &ev))
	assert.Equal(t, "warn", ev["level"])
	assert.Equal(t, "risk", ev["stage"])
	assert.Equal(t, "INFY", ev["ticker"])
	assert.Equal(t, "too few bars", ev["error"])
}

func TestFormatLevel(t *testing.T) {
	assert.Contains(t, formatLevel("info"), "INF")
	assert.Equal(t, "TRACE", formatLevel("trace"))
	assert.Equal(t, "???", formatLevel(3))
}
