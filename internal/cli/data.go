package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"stock-analyzer/internal/marketdata"
	"stock-analyzer/internal/models"
	"stock-analyzer/internal/store"
	"stock-analyzer/pkg/utils"
)

// addDataCommands adds price history commands.
func addDataCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "data",
		Short: "Price history management",
		Long: `Sync daily bars into the local SQLite store, inspect freshness and
export history as CSV.

Set data.source = "store" to analyze from the synced history.`,
	}

	cmd.AddCommand(newDataSyncCmd(app))
	cmd.AddCommand(newDataStatusCmd(app))
	cmd.AddCommand(newDataExportCmd(app))
	cmd.AddCommand(newDataTickersCmd(app))
	cmd.AddCommand(newDataPurgeCacheCmd(app))
	rootCmd.AddCommand(cmd)
}

// openStore opens the bar store with the upstream source used to fill it.
func (a *App) openStore() (*store.SQLiteStore, *store.SyncManager, error) {
	db, err := store.NewSQLiteStore(a.Config.Data.DBPath)
	if err != nil {
		return nil, nil, err
	}
	var fetcher store.Fetcher
	if up, err := marketdata.OpenUpstream(a.Config, a.Logger); err != nil {
		a.Logger.Debug().Err(err).Msg("No upstream source for sync")
	} else {
		fetcher = up
	}
	return db, store.NewSyncManager(db, fetcher, nil, a.Logger), nil
}

// syncResult is one ticker's outcome of data sync.
type syncResult struct {
	Ticker string `json:"ticker"`
	Bars   int    `json:"bars"`
	Error  string `json:"error,omitempty"`
}

func newDataSyncCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync [tickers...]",
		Short: "Fetch history from the upstream source into the store",
		Example: `  analyzer data sync RELIANCE INFY --days 730
  analyzer data sync --file watchlist.csv --source kite`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			tickers, err := tickersFromArgs(cmd, app, args)
			if err != nil {
				return err
			}
			if len(tickers) == 0 {
				return fmt.Errorf("no tickers given")
			}
			days, _ := cmd.Flags().GetInt("days")
			if days <= 0 {
				days = app.Config.Analysis.HistoryDays
			}

			db, sm, err := app.openStore()
			if err != nil {
				output.Error("Failed to open store: %v", err)
				return err
			}
			defer db.Close()

			ctx, cancel := context.WithTimeout(commandContext(cmd), 10*time.Minute)
			defer cancel()
			from, to := marketdata.HistoryRange(time.Now(), days)

			started := time.Now()
			results := make([]syncResult, 0, len(tickers))
			failed := 0
			for _, t := range tickers {
				ticker, err := marketdata.ValidateTicker(t, app.Config.Data.Exchange)
				if err == nil {
					var n int
					n, err = sm.Sync(ctx, ticker, from, to)
					results = append(results, syncResult{Ticker: ticker, Bars: n})
				} else {
					results = append(results, syncResult{Ticker: t})
				}
				if err != nil {
					failed++
					results[len(results)-1].Error = err.Error()
					app.Logger.Warn().Err(err).Str("ticker", t).Msg("Sync failed")
				}
				if ctx.Err() != nil {
					break
				}
			}

			if output.IsStructured() {
				if err := output.Structured(results); err != nil {
					return err
				}
			} else {
				table := NewTable(output, "TICKER", "BARS", "STATUS")
				for _, r := range results {
					status := output.Green("ok")
					if r.Error != "" {
						status = output.Red(r.Error)
					}
					table.AddRow(r.Ticker, fmt.Sprintf("%d", r.Bars), status)
				}
				table.Render()
				output.Dim("Synced %d tickers in %s", len(results)-failed, FormatDuration(time.Since(started)))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d tickers failed to sync", failed, len(tickers))
			}
			return nil
		},
	}
	cmd.Flags().Int("days", 0, "days of history to fetch (default analysis.history_days)")
	cmd.Flags().String("file", "", "CSV ticker list with a code column")
	return cmd
}

// tickersFromArgs merges positional tickers with a --file ticker list.
func tickersFromArgs(cmd *cobra.Command, app *App, args []string) ([]string, error) {
	tickers := append([]string(nil), args...)
	if path, _ := cmd.Flags().GetString("file"); path != "" {
		listed, err := marketdata.LoadTickerList(path, strings.EqualFold(app.Config.Data.Exchange, string(models.SZSE)))
		if err != nil {
			return nil, err
		}
		tickers = append(tickers, listed...)
	}
	return tickers, nil
}

// statusRow is the JSON form of a ticker's sync status.
type statusRow struct {
	Ticker    string    `json:"ticker"`
	LastSync  time.Time `json:"last_sync"`
	LatestBar time.Time `json:"latest_bar"`
	Stale     bool      `json:"stale"`
}

func newDataStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status [tickers...]",
		Short: "Show sync freshness for stored tickers",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := commandContext(cmd)

			db, sm, err := app.openStore()
			if err != nil {
				output.Error("Failed to open store: %v", err)
				return err
			}
			defer db.Close()

			tickers := args
			if len(tickers) == 0 {
				if tickers, err = db.ListTickers(ctx); err != nil {
					return err
				}
			}

			rows := make([]statusRow, 0, len(tickers))
			lines := make([]string, 0, len(tickers))
			for _, t := range tickers {
				st, err := sm.GetSyncStatus(ctx, marketdata.NormalizeTicker(t))
				if err != nil {
					return err
				}
				rows = append(rows, statusRow{Ticker: st.Ticker, LastSync: st.LastSync, LatestBar: st.LatestBar, Stale: st.IsStale})
				lines = append(lines, store.FormatSyncStatus(st))
			}

			if output.IsStructured() {
				return output.Structured(rows)
			}
			if len(rows) == 0 {
				output.Dim("No stored tickers. Run 'analyzer data sync <ticker>' first.")
				return nil
			}
			exchange := models.Exchange(app.Config.Data.Exchange)
			table := NewTable(output, "TICKER", "LATEST BAR", "LAST SYNC", "STATUS")
			for i, r := range rows {
				status := lines[i]
				if r.Stale {
					status = output.Yellow(status)
				}
				table.AddRow(r.Ticker, FormatDate(r.LatestBar), FormatDateTime(r.LastSync, exchange), status)
			}
			table.Render()
			if utils.IsTradingHours(exchange, time.Now()) {
				output.Dim("%s is in session; today's bar is still forming", exchange)
			}
			return nil
		},
	}
}

func newDataExportCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <ticker>",
		Short: "Write a ticker's history as CSV",
		Long: `Fetch history from the configured source and write it in the
date,open,high,low,close,volume layout the csv source reads.`,
		Example: `  analyzer data export RELIANCE --out data/RELIANCE.csv
  analyzer data export 000001.SZ --source store`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			outPath, _ := cmd.Flags().GetString("out")
			req, err := requestFromFlags(cmd, args[0])
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(commandContext(cmd), analysisTimeout)
			defer cancel()
			p, cleanup, err := app.openPipeline(ctx, false)
			if err != nil {
				return err
			}
			defer cleanup()

			ticker, bars, err := p.Fetch(ctx, req)
			if err != nil {
				output.Error("Failed to fetch %s: %v", args[0], err)
				return err
			}

			if outPath == "" {
				return marketdata.WriteCSV(cmd.OutOrStdout(), bars)
			}
			f, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", outPath, err)
			}
			if err := marketdata.WriteCSV(f, bars); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			if output.IsStructured() {
				return output.Structured(map[string]interface{}{"ticker": ticker, "bars": len(bars), "path": outPath})
			}
			output.Success("✓ Wrote %d bars for %s to %s", len(bars), ticker, outPath)
			return nil
		},
	}
	addRangeFlags(cmd)
	cmd.Flags().String("out", "", "output file (default stdout)")
	return cmd
}

func newDataTickersCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "tickers <file>",
		Short: "Validate a CSV ticker list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			shenzhen := strings.EqualFold(app.Config.Data.Exchange, string(models.SZSE))
			codes, err := marketdata.LoadTickerList(args[0], shenzhen)
			if err != nil {
				output.Error("%v", err)
				return err
			}
			if output.IsStructured() {
				return output.Structured(codes)
			}
			for _, c := range codes {
				output.Println(c)
			}
			output.Dim("%d tickers", len(codes))
			return nil
		},
	}
}

func newDataPurgeCacheCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "purge-cache",
		Short: "Delete expired predictions from the SQLite cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			c, err := store.NewSQLiteCache(app.Config.Cache.SQLitePath)
			if err != nil {
				return err
			}
			defer c.Close()

			n, err := c.Purge(commandContext(cmd))
			if err != nil {
				return err
			}
			if output.IsStructured() {
				return output.Structured(map[string]int64{"purged": n})
			}
			output.Success("✓ Purged %d expired predictions", n)
			return nil
		},
	}
}
