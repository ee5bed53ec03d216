// Package logging builds the zerolog logger shared by the CLI, pipeline and
// server, and holds the structured event helpers they log through.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
}

// DefaultLogConfig logs info to stderr and a rotated file under the config dir.
func DefaultLogConfig() LogConfig {
	home, _ := os.UserHomeDir()
	return LogConfig{
		Level:      "info",
		Console:    true,
		File:       true,
		FilePath:   filepath.Join(home, ".config", "stock-analyzer", "logs", "analyzer.log"),
		MaxSize:    50,
		MaxBackups: 5,
		MaxAge:     30,
	}
}

var levelTags = map[string]string{
	"debug": "\033[36mDBG\033[0m",
	"info":  "\033[32mINF\033[0m",
	"warn":  "\033[33mWRN\033[0m",
	"error": "\033[31mERR\033[0m",
}

func formatLevel(i interface{}) string {
	s, ok := i.(string)
	if !ok {
		return "???"
	}
	if tag, ok := levelTags[s]; ok {
		return tag
	}
	return strings.ToUpper(s)
}

// sinks returns the writers enabled by cfg. A log directory that cannot be
// created silently drops the file sink.
func sinks(cfg LogConfig) []io.Writer {
	var out []io.Writer
	if cfg.Console {
		out = append(out, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339, FormatLevel: formatLevel})
	}
	if cfg.File && cfg.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err == nil {
			out = append(out, &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   true,
			})
		}
	}
	return out
}

// NewLoggerWithConfig creates a timestamped logger writing to every
// configured sink.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	var w io.Writer = io.Discard
	if s := sinks(cfg); len(s) == 1 {
		w = s[0]
	} else if len(s) > 1 {
		w = zerolog.MultiLevelWriter(s...)
	}
	return zerolog.New(w).Level(ParseLevel(cfg.Level)).With().Timestamp().Logger()
}

// ParseLevel maps a config string to a zerolog level. "off" disables
// logging; anything unrecognised is info.
func ParseLevel(level string) zerolog.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "off" {
		return zerolog.Disabled
	}
	l, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return l
}

// WithTicker adds a ticker to the logger context.
func WithTicker(logger zerolog.Logger, ticker string) zerolog.Logger {
	return logger.With().Str("ticker", ticker).Logger()
}

// WithModel adds a model slot name to the logger context.
func WithModel(logger zerolog.Logger, model string) zerolog.Logger {
	return logger.With().Str("model", model).Logger()
}

// LogStage records one pipeline stage: debug on success, warn on failure.
func LogStage(logger zerolog.Logger, stage string, duration time.Duration, err error) {
	ev := logger.Debug()
	msg := "Stage completed"
	if err != nil {
		ev = logger.Warn().Err(err)
		msg = "Stage failed"
	}
	ev.Str("event", "stage").Str("stage", stage).Dur("duration", duration).Msg(msg)
}

// LogPrediction logs an ensemble prediction.
func LogPrediction(logger zerolog.Logger, ticker, label string, predicted, confidence float64) {
	logger.Info().
		Str("event", "prediction").
		Str("ticker", ticker).
		Str("signal", label).
		Float64("predicted_price", predicted).
		Float64("confidence", confidence).
		Msg("Prediction ready")
}

// LogAPICall logs a call to an external data or LLM service.
func LogAPICall(logger zerolog.Logger, service, operation string, duration time.Duration, err error) {
	ev := logger.Debug().
		Str("event", "api_call").
		Str("service", service).
		Str("operation", operation).
		Dur("duration", duration)
	if err != nil {
		ev.Err(err).Msg("API call failed")
		return
	}
	ev.Msg("API call completed")
}
