package cli

import (
	"github.com/spf13/cobra"
)

// addHelpCommands adds workflow documentation commands.
func addHelpCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newExamplesCmd())
	rootCmd.AddCommand(newQuickstartCmd())
}

type example struct {
	title    string
	commands []string
}

var examples = []example{
	{
		title: "Single Ticker",
		commands: []string{
			"analyzer analyze RELIANCE             # Full report",
			"analyzer indicators RELIANCE          # MA, RSI, MACD only",
			"analyzer risk RELIANCE --from 2023-01-01",
			"analyzer predict RELIANCE --refresh   # Retrain, skip the cache",
		},
	},
	{
		title: "Reports",
		commands: []string{
			"analyzer report INFY --out infy.md",
			"analyzer report INFY --format html --out infy.html --narrative",
			"analyzer analyze INFY --json > infy.json",
		},
	},
	{
		title: "Offline History",
		commands: []string{
			"analyzer data sync RELIANCE INFY --source kite   # Fill the store",
			"analyzer data status                             # Freshness per ticker",
			"analyzer analyze RELIANCE --source store",
			"analyzer data export RELIANCE --out data/RELIANCE.csv",
			"analyzer analyze RELIANCE --source csv --csv-dir data",
		},
	},
	{
		title: "Shenzhen Tickers",
		commands: []string{
			"analyzer data tickers sz.csv                     # Validate ######.SZ codes",
			"analyzer data sync --file sz.csv --source csv",
		},
	},
	{
		title: "Signals",
		commands: []string{
			"analyzer signal 100 105.5     # Strong Buy",
			"analyzer signal 100 99.4      # Sell",
		},
	},
	{
		title: "HTTP",
		commands: []string{
			"analyzer serve --addr :8080",
			"curl localhost:8080/api/v1/report/RELIANCE?format=markdown",
		},
	},
}

func newExamplesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "examples",
		Short: "Show common workflow examples",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsStructured() {
				out := make(map[string][]string, len(examples))
				for _, ex := range examples {
					out[ex.title] = ex.commands
				}
				return output.Structured(out)
			}

			output.Bold("Common Workflow Examples")
			output.Println()
			for _, ex := range examples {
				output.Info("%s", ex.title)
				for _, c := range ex.commands {
					output.Printf("  %s\n", c)
				}
				output.Println()
			}
			return nil
		},
	}
}

func newQuickstartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quickstart",
		Short: "New user guide",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			output.Bold("Stock Analyzer - Quick Start Guide")
			output.Println()

			steps := []struct {
				title string
				desc  string
				cmd   string
			}{
				{
					title: "Try the synthetic source",
					desc:  "No credentials needed; prices are generated per ticker.",
					cmd:   "analyzer analyze DEMO",
				},
				{
					title: "Point at real data",
					desc:  "Drop <TICKER>.csv files in a directory, or add Kite credentials.",
					cmd:   "analyzer config path  # credentials.toml lives here",
				},
				{
					title: "Check the configuration",
					desc:  "Windows, horizon, cache backend and data source.",
					cmd:   "analyzer config show",
				},
				{
					title: "Enable commentary",
					desc:  "Set llm.enabled and an OpenAI or DeepSeek key.",
					cmd:   "analyzer report RELIANCE --narrative --format html --out r.html",
				},
			}

			for i, s := range steps {
				output.Printf("%s %s\n", output.BoldText(string(rune('1'+i))+"."), s.title)
				output.Dim("   %s", s.desc)
				output.Printf("   %s\n", output.Green(s.cmd))
				output.Println()
			}
			return nil
		},
	}
}
