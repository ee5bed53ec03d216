// Package config provides configuration management for the stock analyzer.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"stock-analyzer/internal/logging"
)

// Config holds all application configuration.
type Config struct {
	Analysis    AnalysisConfig    `mapstructure:"analysis"`
	Prediction  PredictionConfig  `mapstructure:"prediction"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Data        DataConfig        `mapstructure:"data"`
	LLM         LLMConfig         `mapstructure:"llm"`
	Log         logging.LogConfig `mapstructure:"log" default:"-"`
	Server      ServerConfig      `mapstructure:"server"`
	Credentials Credentials       `mapstructure:"-"` // Loaded separately
}

// AnalysisConfig holds indicator and risk parameters.
type AnalysisConfig struct {
	HistoryDays  int     `mapstructure:"history_days" default:"365" validate:"gt=0"`
	RiskFreeRate float64 `mapstructure:"risk_free_rate" default:"0.03" validate:"gte=0,lt=1"`
	TradingDays  int     `mapstructure:"trading_days" default:"252" validate:"gt=0"`
	Confidence   float64 `mapstructure:"confidence" default:"0.95" validate:"gt=0,lt=1"`
	MAWindows    []int   `mapstructure:"ma_windows" default:"[5,20,50,60]" validate:"min=1,dive,gt=0"`
	RSIPeriod    int     `mapstructure:"rsi_period" default:"14" validate:"gt=0"`
	MACDFast     int     `mapstructure:"macd_fast" default:"12" validate:"gt=0"`
	MACDSlow     int     `mapstructure:"macd_slow" default:"26" validate:"gtfield=MACDFast"`
	MACDSignal   int     `mapstructure:"macd_signal" default:"9" validate:"gt=0"`
}

// PredictionConfig holds ensemble predictor parameters.
type PredictionConfig struct {
	Enabled bool     `mapstructure:"enabled" default:"true"`
	Horizon int      `mapstructure:"horizon" default:"5" validate:"gte=1"`
	Folds   int      `mapstructure:"folds" default:"5" validate:"gte=2"`
	MinRows int      `mapstructure:"min_rows" default:"30" validate:"gte=0"`
	Workers int      `mapstructure:"workers" default:"3" validate:"gte=1"`
	Models  []string `mapstructure:"models" default:"[\"gbrt\",\"xgboost\",\"lightgbm\"]" validate:"min=1,unique,dive,oneof=gbrt xgboost lightgbm"`
}

// CacheConfig holds prediction cache configuration.
type CacheConfig struct {
	Backend     string        `mapstructure:"backend" default:"memory" validate:"oneof=none memory sqlite redis"`
	TTL         time.Duration `mapstructure:"ttl" default:"24h" validate:"gte=0"`
	RedisAddr   string        `mapstructure:"redis_addr" default:"localhost:6379"`
	RedisDB     int           `mapstructure:"redis_db" default:"0" validate:"gte=0"`
	RedisPrefix string        `mapstructure:"redis_prefix" default:"stock-analyzer"`
	SQLitePath  string        `mapstructure:"sqlite_path"`
}

// DataConfig selects the price data source.
type DataConfig struct {
	Source   string `mapstructure:"source" default:"synthetic" validate:"oneof=csv kite synthetic store"`
	Upstream string `mapstructure:"upstream" validate:"omitempty,oneof=csv kite synthetic"`
	CSVDir   string `mapstructure:"csv_dir" default:"data"`
	Exchange string `mapstructure:"exchange" default:"NSE" validate:"oneof=NSE BSE SZSE"`
	DBPath   string `mapstructure:"db_path"`
}

// LLMConfig holds narrative commentary configuration.
type LLMConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Provider    string  `mapstructure:"provider" default:"openai" validate:"oneof=openai deepseek"`
	Model       string  `mapstructure:"model" default:"gpt-4o-mini"`
	BaseURL     string  `mapstructure:"base_url"`
	Temperature float64 `mapstructure:"temperature" default:"0.3" validate:"gte=0,lte=2"`
	MaxTokens   int     `mapstructure:"max_tokens" default:"1024" validate:"gt=0"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr         string        `mapstructure:"addr" default:":8080"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" default:"30s"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" default:"5m"`
}

// Credentials holds API credentials.
type Credentials struct {
	Kite     KiteCredentials `mapstructure:"kite"`
	OpenAI   APIKey          `mapstructure:"openai"`
	DeepSeek APIKey          `mapstructure:"deepseek"`
	Redis    RedisAuth       `mapstructure:"redis"`
}

// RedisAuth holds the prediction cache password.
type RedisAuth struct {
	Password string `mapstructure:"password"`
}

// KiteCredentials holds Zerodha Kite Connect credentials.
type KiteCredentials struct {
	APIKey      string `mapstructure:"api_key"`
	AccessToken string `mapstructure:"access_token"`
}

// APIKey holds a single provider key.
type APIKey struct {
	APIKey string `mapstructure:"api_key"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/stock-analyzer"
	}
	return filepath.Join(home, ".config", "stock-analyzer")
}

// Default returns a configuration populated from struct defaults only.
func Default() *Config {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	cfg.Log = logging.DefaultLogConfig()
	return cfg
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. Missing files are
// written from templates and then read back.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := Default()

	if err := loadConfigFile(configDir, "config", configTemplate, 0644, cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	if err := loadConfigFile(configDir, "credentials", credentialsTemplate, 0600, &cfg.Credentials); err != nil {
		return nil, fmt.Errorf("loading credentials.toml: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.ResolvePaths(configDir)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func loadConfigFile(configDir, name, template string, perm os.FileMode, target interface{}) error {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		if err := writeTemplate(configDir, name, template, perm); err != nil {
			return err
		}
		if err := v.ReadInConfig(); err != nil {
			return err
		}
	}

	// target arrives pre-filled with defaults; a list in the file replaces
	// the default list rather than overwriting it index by index.
	return v.Unmarshal(target, func(dc *mapstructure.DecoderConfig) {
		dc.ZeroFields = true
	})
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("KITE_API_KEY"); v != "" {
		cfg.Credentials.Kite.APIKey = v
	}
	if v := os.Getenv("KITE_ACCESS_TOKEN"); v != "" {
		cfg.Credentials.Kite.AccessToken = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Credentials.OpenAI.APIKey = v
	}
	if v := os.Getenv("DEEPSEEK_API_KEY"); v != "" {
		cfg.Credentials.DeepSeek.APIKey = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Credentials.Redis.Password = v
	}
	if v := os.Getenv("ANALYZER_DATA_SOURCE"); v != "" {
		cfg.Data.Source = strings.ToLower(v)
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	return ValidateStruct(c)
}

// LLMAPIKey returns the key for the configured narrative provider.
func (c *Config) LLMAPIKey() string {
	if c.LLM.Provider == "deepseek" {
		return c.Credentials.DeepSeek.APIKey
	}
	return c.Credentials.OpenAI.APIKey
}

// LLMBaseURL returns the configured base URL, falling back to the provider default.
func (c *Config) LLMBaseURL() string {
	if c.LLM.BaseURL != "" {
		return c.LLM.BaseURL
	}
	if c.LLM.Provider == "deepseek" {
		return "https://api.deepseek.com/v1"
	}
	return ""
}
