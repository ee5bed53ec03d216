package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Stock Analyzer Configuration

[analysis]
# Days of daily history to fetch
history_days = 365
# Annualised risk-free rate used by the Sharpe ratio
risk_free_rate = 0.03
# Trading days per year
trading_days = 252
# Confidence level for return bounds, exclusive (0, 1)
confidence = 0.95
# Simple moving average windows
ma_windows = [5, 20, 50, 60]
rsi_period = 14
macd_fast = 12
macd_slow = 26
macd_signal = 9

[prediction]
enabled = true
# Forecast horizon in bars
horizon = 5
# Forward-chaining folds used by grid search
folds = 5
# Minimum training rows after dropping undefined targets
min_rows = 30
# Model slots trained in parallel
workers = 3
# Registered regressors: gbrt, xgboost, lightgbm
models = ["gbrt", "xgboost", "lightgbm"]

[cache]
# Backend: none, memory, sqlite, redis
backend = "memory"
ttl = "24h"
redis_addr = "localhost:6379"
redis_db = 0
redis_prefix = "stock-analyzer"
# Defaults to cache.db next to this file
sqlite_path = ""

[data]
# Source: csv, kite, synthetic, store
source = "synthetic"
# Source used to refill the store when history is stale (store source only)
upstream = ""
# Directory holding <TICKER>.csv files
csv_dir = "data"
# Exchange: NSE, BSE, SZSE
exchange = "NSE"
# Defaults to bars.db next to this file
db_path = ""

[llm]
# Narrative commentary on reports
enabled = false
# Provider: openai, deepseek
provider = "openai"
model = "gpt-4o-mini"
base_url = ""
temperature = 0.3
max_tokens = 1024

[log]
level = "info"
console = true
file = false
file_path = ""
max_size = 50
max_backups = 5
max_age = 30

[server]
addr = ":8080"
read_timeout = "30s"
write_timeout = "5m"
`

const credentialsTemplate = `# Stock Analyzer Credentials
# WARNING: Keep this file secure! Do not commit to version control.

[kite]
api_key = ""
access_token = ""

[openai]
api_key = ""

[deepseek]
api_key = ""

[redis]
password = ""
`

func writeTemplate(configDir, name, template string, perm os.FileMode) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name+".toml")
	if err := os.WriteFile(path, []byte(template), perm); err != nil {
		return fmt.Errorf("writing %s template: %w", name, err)
	}

	return nil
}

// TemplatePath returns the path of the named config file in configDir.
func TemplatePath(configDir, name string) string {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	return filepath.Join(configDir, name+".toml")
}
