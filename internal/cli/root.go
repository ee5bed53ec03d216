// Package cli provides the command-line interface for the stock analyzer.
package cli

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"stock-analyzer/internal/config"
	"stock-analyzer/internal/logging"
	"stock-analyzer/internal/marketdata"
	"stock-analyzer/internal/narrative"
	"stock-analyzer/internal/pipeline"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2024-06-01"
)

// App holds the application dependencies. Config and Logger are filled in
// by the root command before any subcommand runs.
type App struct {
	Config    *config.Config
	ConfigDir string
	Logger    zerolog.Logger
	Metrics   *pipeline.Metrics
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd() *cobra.Command {
	app := &App{Logger: zerolog.Nop()}

	rootCmd := &cobra.Command{
		Use:   "analyzer",
		Short: "Stock Analyzer - indicators, risk and ensemble price forecasts",
		Long: `Stock Analyzer computes technical indicators, risk metrics and an
ensemble price forecast for a ticker and turns them into a trading signal
and report.

Price history comes from CSV files, Zerodha Kite, a local SQLite store or a
deterministic synthetic generator.

Use 'analyzer help <command>' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.init(cmd)
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/stock-analyzer)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("yaml", false, "output in YAML format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().String("source", "", "price data source: csv, kite, synthetic, store")
	rootCmd.PersistentFlags().String("csv-dir", "", "directory holding <TICKER>.csv files")

	addCoreCommands(rootCmd, app)
	addAnalysisCommands(rootCmd, app)
	addDataCommands(rootCmd, app)
	rootCmd.AddCommand(newServeCmd(app))
	addHelpCommands(rootCmd)

	return rootCmd
}

// init loads configuration and builds the logger from the global flags.
func (a *App) init(cmd *cobra.Command) error {
	dir, _ := cmd.Flags().GetString("config")
	if dir == "" {
		dir = config.DefaultConfigDir()
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return err
	}

	if source, _ := cmd.Flags().GetString("source"); source != "" {
		cfg.Data.Source = strings.ToLower(source)
	}
	if csvDir, _ := cmd.Flags().GetString("csv-dir"); csvDir != "" {
		cfg.Data.CSVDir = csvDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.Log.Level = "debug"
	}

	a.Config = cfg
	a.ConfigDir = dir
	a.Logger = logging.NewLoggerWithConfig(cfg.Log)
	a.Metrics = pipeline.NewMetrics()
	a.Logger.Debug().Str("config_dir", dir).Str("source", cfg.Data.Source).Msg("Configuration loaded")
	return nil
}

// openPipeline wires the data source, prediction cache and narrator into a
// pipeline. The returned function releases all of them.
func (a *App) openPipeline(ctx context.Context, withNarrative bool) (*pipeline.Pipeline, func(), error) {
	src, closeSource, err := marketdata.Open(a.Config, a.Logger)
	if err != nil {
		return nil, nil, err
	}

	predictions, err := pipeline.OpenCache(ctx, a.Config)
	if err != nil {
		a.Logger.Warn().Err(err).Str("backend", a.Config.Cache.Backend).Msg("Prediction cache unavailable, continuing without it")
		predictions = nil
	}

	deps := pipeline.Deps{Source: src, Cache: predictions, Metrics: a.Metrics}
	if withNarrative || a.Config.LLM.Enabled {
		n, err := narrative.New(narrative.OptionsFromConfig(a.Config), a.Logger)
		if err != nil {
			a.Logger.Warn().Err(err).Msg("Narrative disabled")
		} else {
			deps.Narrator = n
		}
	}

	p, err := pipeline.New(a.Config, deps, a.Logger)
	if err != nil {
		if predictions != nil {
			predictions.Close()
		}
		closeSource()
		return nil, nil, err
	}

	cleanup := func() {
		p.Close()
		if predictions != nil {
			if err := predictions.Close(); err != nil {
				a.Logger.Warn().Err(err).Msg("Failed to close prediction cache")
			}
		}
		if err := closeSource(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close data source")
		}
	}
	return p, cleanup, nil
}

// addCoreCommands adds core utility commands.
func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsStructured() {
				return output.Structured(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("Stock Analyzer v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsStructured() {
				cfg := *app.Config
				cfg.Credentials = config.Credentials{}
				return output.Structured(cfg)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsStructured() {
				return output.Structured(map[string]string{
					"path":        app.ConfigDir,
					"config":      config.TemplatePath(app.ConfigDir, "config"),
					"credentials": config.TemplatePath(app.ConfigDir, "credentials"),
				})
			}
			output.Println(app.ConfigDir)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsStructured() {
				return output.Structured(map[string]bool{"valid": true})
			}
			output.Success("✓ Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Analysis")
	output.Printf("  History:         %d days\n", cfg.Analysis.HistoryDays)
	output.Printf("  MA windows:      %v\n", cfg.Analysis.MAWindows)
	output.Printf("  RSI period:      %d\n", cfg.Analysis.RSIPeriod)
	output.Printf("  MACD:            %d/%d/%d\n", cfg.Analysis.MACDFast, cfg.Analysis.MACDSlow, cfg.Analysis.MACDSignal)
	output.Printf("  Risk-free rate:  %.2f%%\n", cfg.Analysis.RiskFreeRate*100)
	output.Printf("  Confidence:      %.0f%%\n", cfg.Analysis.Confidence*100)
	output.Println()

	output.Bold("Prediction")
	output.Printf("  Enabled:         %v\n", cfg.Prediction.Enabled)
	output.Printf("  Horizon:         %d bars\n", cfg.Prediction.Horizon)
	output.Printf("  Folds:           %d\n", cfg.Prediction.Folds)
	output.Printf("  Models:          %s\n", strings.Join(cfg.Prediction.Models, ", "))
	output.Println()

	output.Bold("Data")
	output.Printf("  Source:          %s\n", cfg.Data.Source)
	if cfg.Data.Upstream != "" {
		output.Printf("  Upstream:        %s\n", cfg.Data.Upstream)
	}
	output.Printf("  Exchange:        %s\n", cfg.Data.Exchange)
	output.Printf("  CSV dir:         %s\n", cfg.Data.CSVDir)
	output.Println()

	output.Bold("Cache")
	output.Printf("  Backend:         %s\n", cfg.Cache.Backend)
	output.Printf("  TTL:             %s\n", cfg.Cache.TTL)
	output.Println()

	output.Bold("Narrative")
	output.Printf("  Enabled:         %v\n", cfg.LLM.Enabled)
	output.Printf("  Provider:        %s (%s)\n", cfg.LLM.Provider, cfg.LLM.Model)
	output.Println()

	output.Bold("Server")
	output.Printf("  Address:         %s\n", cfg.Server.Addr)
}
